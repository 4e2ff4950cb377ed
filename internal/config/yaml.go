package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level kindfund configuration file. The
// mapstructure tags let viper decode the merged file/env/flag settings into
// the same structure.
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	MaxBodySize     string     `yaml:"max_body_size" mapstructure:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	LoginRateLimit  int        `yaml:"login_rate_limit" mapstructure:"login_rate_limit"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// DatabaseConfig selects the backing database. An empty DSN with the sqlite
// driver stores data in <data-dir>/kindfund.db.
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
// The JWT secret has no default.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "1MB",
			ShutdownTimeout: "15s",
			LoginRateLimit:  10,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ErrMissingJWTSecret is returned by Validate when no signing secret is set.
var ErrMissingJWTSecret = errors.New("auth.jwt_secret is not set (use KINDFUND_AUTH_JWT_SECRET)")

// Validate checks the settings the server cannot start without.
func (c *YAMLConfig) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := lookupDialect(c.Database.Driver); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// Redacted returns a copy safe to print, with secrets masked.
func (c YAMLConfig) Redacted() YAMLConfig {
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = "********"
	}
	if c.Database.DSN != "" && c.Database.Driver != "sqlite" && c.Database.Driver != "" {
		c.Database.DSN = "********"
	}
	return c
}

// Marshal renders the configuration as YAML.
func (c YAMLConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := DefaultYAMLConfig().Marshal()
	if err != nil {
		return err
	}
	header := "# kindfund configuration\n# auth.jwt_secret is best supplied via KINDFUND_AUTH_JWT_SECRET.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}

// ParseByteSize parses sizes such as "512KB", "1MB" or "1048576".
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
