package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kindfund/kindfund/internal/config"
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

// app carries the state shared by every subcommand: the persistent flags
// and the viper instance the settings are merged into.
type app struct {
	v       *viper.Viper
	cfgFile string
	dataDir string
	version string
}

func newRootCmd(version, commit, date string) *cobra.Command {
	a := &app{v: viper.New(), version: version}

	cmd := &cobra.Command{
		Use:   "kindfund",
		Short: "Donation and crowdfunding backend",
		Long: `kindfund serves the content API of a donation platform: causes, events,
blog posts, donations, volunteer sign-ups and contact messages.

Public visitors read published content and submit donations, sign-ups and
messages. Everything else requires an administrator session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./kindfund.yaml)")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory for the SQLite database and session (default: ~/.kindfund)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd(a))
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newContentCmd(a))
	cmd.AddCommand(newOpenAPICmd(a))
	cmd.AddCommand(newMCPCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// initConfig registers the defaults, environment overrides and the optional
// config file.
func (a *app) initConfig() error {
	v := a.v
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("kindfund")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.kindfund")
	}

	setDefaults(v, config.DefaultYAMLConfig())

	v.SetEnvPrefix("KINDFUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional unless named explicitly.
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// setDefaults registers every key so environment variables can override
// keys that appear in no config file.
func setDefaults(v *viper.Viper, d *config.YAMLConfig) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.login_rate_limit", d.Server.LoginRateLimit)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// loadConfig decodes the merged settings.
func (a *app) loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database. The sqlite driver without a DSN
// uses <data-dir>/kindfund.db.
func (a *app) openStore(cfg *config.YAMLConfig) (*config.Store, error) {
	dsn := cfg.Database.DSN
	if dsn == "" && isSQLite(cfg.Database.Driver) {
		var err error
		if dsn, err = config.SQLiteDSN(a.resolveDataDir()); err != nil {
			return nil, err
		}
	}
	store, err := config.NewStore(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
