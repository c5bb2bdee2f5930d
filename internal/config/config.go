// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const defaultSQLitePath = "formbuilder.db"

// Config is the full server configuration
type Config struct {
	Port               string   `env:"PORT"                             envDefault:"5000"`
	DBDriver           string   `env:"FORMBUILDER_DB_DRIVER"            envDefault:"sqlite"`
	DBDSN              string   `env:"FORMBUILDER_DB_DSN"`
	CORSOrigins        []string `env:"FORMBUILDER_CORS_ORIGINS"         envDefault:"http://localhost:3000" envSeparator:","`
	DefaultFormID      string   `env:"FORMBUILDER_DEFAULT_FORM_ID"      envDefault:"demo-form-1"`
	OwnerID            string   `env:"FORMBUILDER_OWNER_ID"             envDefault:"demo-user-1"`
	PurgeHiddenAnswers bool     `env:"FORMBUILDER_PURGE_HIDDEN_ANSWERS" envDefault:"false"`
	LogLevel           string   `env:"LOG_LEVEL"                        envDefault:"info"`
	OTelEndpoint       string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Airtable AirtableConfig
}

// AirtableConfig covers both record sync and the OAuth app
type AirtableConfig struct {
	APIKey       string        `env:"AIRTABLE_API_KEY"`
	BaseID       string        `env:"AIRTABLE_BASE_ID"`
	TableName    string        `env:"AIRTABLE_TABLE_NAME"`
	APIURL       string        `env:"AIRTABLE_API_URL"       envDefault:"https://api.airtable.com/v0"`
	ClientID     string        `env:"AIRTABLE_CLIENT_ID"`
	ClientSecret string        `env:"AIRTABLE_CLIENT_SECRET"`
	RedirectURI  string        `env:"AIRTABLE_REDIRECT_URI"`
	Timeout      time.Duration `env:"AIRTABLE_TIMEOUT"       envDefault:"15s"`
}

// SyncEnabled reports whether responses can be mirrored to Airtable
func (a AirtableConfig) SyncEnabled() bool {
	return a.APIKey != "" && a.BaseID != "" && a.TableName != ""
}

// OAuthEnabled reports whether the OAuth app is configured
func (a AirtableConfig) OAuthEnabled() bool {
	return a.ClientID != "" && a.RedirectURI != ""
}

// Load reads an optional .env file, then the process environment.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the configuration from the environment only.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBDSN = strings.TrimSpace(c.DBDSN)
	if c.DBDriver == "" {
		c.DBDriver = DriverSQLite
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.DBDSN == "" {
			c.DBDSN = defaultSQLitePath
		}
	case DriverPostgres:
		if c.DBDSN == "" {
			return errors.New("FORMBUILDER_DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}

	origins := c.CORSOrigins[:0]
	for _, origin := range c.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.CORSOrigins = origins

	if strings.TrimSpace(c.DefaultFormID) == "" {
		return errors.New("FORMBUILDER_DEFAULT_FORM_ID must not be empty")
	}
	c.Airtable.APIURL = strings.TrimRight(c.Airtable.APIURL, "/")
	return nil
}
