package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Credential source selectors accepted by AUTH_SOURCE.
const (
	SourceStatic   = "static"
	SourceDatabase = "database"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"VERSION" default:"dev"`

	AuthSecret     string   `envconfig:"AUTH_SECRET" default:""`
	AuthDisabled   bool     `envconfig:"AUTH_DISABLED" default:"false"`
	SessionTTL     string   `envconfig:"AUTH_SESSION_TTL" default:""`
	AuthSource     string   `envconfig:"AUTH_SOURCE" default:"static"`
	Users          string   `envconfig:"AUTH_USERS" default:""`
	UsersFile      string   `envconfig:"AUTH_USERS_FILE" default:""`
	AllowPlaintext bool     `envconfig:"AUTH_ALLOW_PLAINTEXT" default:"false"`
	DatabaseURL    string   `envconfig:"DATABASE_URL" default:""`
	UsersTable     string   `envconfig:"AUTH_USERS_TABLE" default:"portal_users"`
	PublicPaths    []string `envconfig:"AUTH_PUBLIC_PATHS" default:""`
	PublicPrefixes []string `envconfig:"AUTH_PUBLIC_PREFIXES" default:""`
	BcryptCost     int      `envconfig:"BCRYPT_COST" default:"12"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cfg.AuthSource = strings.ToLower(strings.TrimSpace(cfg.AuthSource))
	switch cfg.AuthSource {
	case SourceStatic:
	case SourceDatabase:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when AUTH_SOURCE=%s", SourceDatabase)
		}
	default:
		return nil, fmt.Errorf("unknown AUTH_SOURCE %q", cfg.AuthSource)
	}

	cfg.PublicPaths = compact(cfg.PublicPaths)
	cfg.PublicPrefixes = compact(cfg.PublicPrefixes)

	return &cfg, nil
}

// IsProduction reports whether the process runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// UsesDatabase reports whether credentials are looked up in Postgres.
func (c *Config) UsesDatabase() bool {
	return c.AuthSource == SourceDatabase
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
