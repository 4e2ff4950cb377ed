package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/server"
	"github.com/kindfund/kindfund/internal/service"
)

const banner = `
 _    _           _  __                 _
| | _(_)_ __   __| |/ _|_   _ _ __   __| |
| |/ / | '_ \ / _' | |_| | | | '_ \ / _' |
|   <| | | | | (_| |  _| |_| | | | | (_| |
|_|\_\_|_| |_|\__,_|_|  \__,_|_| |_|\__,_|
`

func newServeCmd(a *app) *cobra.Command {
	var (
		dev   bool
		noUI  bool
		noMCP bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kindfund API server",
		Long: `Start the HTTP server exposing the content API, the admin session endpoints,
the embedded admin UI, /openapi.json, /metrics and the MCP endpoint.

The server refuses to start without auth.jwt_secret (KINDFUND_AUTH_JWT_SECRET).`,
		Example: `  KINDFUND_AUTH_JWT_SECRET=change-me kindfund serve
  kindfund serve --port 9000 --log-format json --log-file /var/log/kindfund.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a, dev, !noUI, !noMCP)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
	cmd.Flags().String("log-format", "text", "Log format: text or json")
	cmd.Flags().String("log-file", "", "Also write logs to this file, rotated by size")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "Disable the admin UI")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Disable the /mcp endpoint")

	a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	a.v.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	a.v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
	a.v.BindPFlag("log.format", cmd.Flags().Lookup("log-format"))
	a.v.BindPFlag("log.file", cmd.Flags().Lookup("log-file"))

	return cmd
}

func runServe(cmd *cobra.Command, a *app, dev, enableUI, enableMCP bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}
	srvCfg.EnableUI = enableUI
	srvCfg.EnableMCP = enableMCP
	srvCfg.Version = versionString(a.version)

	logger, logCloser, err := newLogger(cfg.Log, dev, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	logger.Info("store initialized", "driver", store.Driver())

	authSvc, err := service.NewAuthService(store, cfg.Auth.JWTSecret)
	if err != nil {
		store.Close()
		return err
	}

	hasAdmin, err := store.HasAnyAdmin(cmdContext(cmd))
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: kindfund admin create --email <address>")
	}

	srv, err := server.New(srvCfg, store, authSvc, metrics.NewManager(true), logger)
	if err != nil {
		store.Close()
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "→ kindfund %s\n", srvCfg.Version)
	fmt.Fprintf(out, "→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	if enableUI {
		fmt.Fprintf(out, "→ Admin UI:   http://%s:%d/admin\n", srvCfg.Host, srvCfg.Port)
	}
	fmt.Fprintf(out, "→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(out, "→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintln(out)

	return srv.ListenAndServe()
}

// serverConfig maps the file settings onto the HTTP server configuration.
func serverConfig(cfg *config.YAMLConfig) (server.Config, error) {
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.LoginRateLimit = cfg.Server.LoginRateLimit
	if len(cfg.Server.CORS.Origins) > 0 {
		srvCfg.CORSOrigins = cfg.Server.CORS.Origins
	}

	if cfg.Server.MaxBodySize != "" {
		n, err := config.ParseByteSize(cfg.Server.MaxBodySize)
		if err != nil {
			return srvCfg, fmt.Errorf("server.max_body_size: %w", err)
		}
		srvCfg.MaxBodySize = n
	}
	if cfg.Server.ShutdownTimeout != "" {
		d, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
		if err != nil {
			return srvCfg, fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		srvCfg.ShutdownTimeout = d
	}
	return srvCfg, nil
}
