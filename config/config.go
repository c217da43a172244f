/*
Package config loads runtime configuration from the environment.

SOURCES:
  A .env file in the working directory is loaded first (if present);
  variables already set in the environment take precedence.

DATABASE:
  DB_DRIVER           sqlite3 (default) | postgres
  DB_PATH             SQLite file (default: rfm.db, ":memory:" allowed)
  DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SSLMODE
                      PostgreSQL connection
  DB_CONNECT_TIMEOUT  Ping timeout (default: 5s)

PIPELINE:
  RFM_INPUT           Transaction export (default: online_retail.csv)
  RFM_OUTPUT          Result file, .csv or .xlsx (default: rfm_results.csv)
  RFM_STRICT          Abort on the first malformed row (default: false)
  RFM_REFRESH_INTERVAL  Server-side re-run interval, e.g. 1h (default: 0, off)

SERVER / LOGGING:
  HTTP_PORT           API port (default: 8080)
  LOG_LEVEL           debug|info|warn|error (default: info)
  LOG_FORMAT          text|json (default: text)
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/warp/retail-rfm/store/sqlstore"
)

type Config struct {
	DB       DBConfig
	Pipeline PipelineConfig
	HTTP     HTTPConfig
	Logging  LoggingConfig
}

type DBConfig struct {
	Driver         string `validate:"required,oneof=sqlite3 postgres"`
	Path           string `validate:"required_if=Driver sqlite3"`
	Host           string `validate:"required_if=Driver postgres"`
	Port           int    `validate:"min=1,max=65535"`
	Name           string `validate:"required_if=Driver postgres"`
	User           string
	Password       string
	SSLMode        string
	ConnectTimeout time.Duration `validate:"gt=0"`
}

type PipelineConfig struct {
	Input           string `validate:"required"`
	Output          string `validate:"required"`
	Strict          bool
	RefreshInterval time.Duration `validate:"gte=0"`
}

type HTTPConfig struct {
	Port int `validate:"min=1,max=65535"`
}

type LoggingConfig struct {
	Level  string `validate:"omitempty,oneof=debug info warn warning error"`
	Format string `validate:"omitempty,oneof=text json"`
}

const (
	defaultDriver         = sqlstore.DriverSQLite
	defaultDBPath         = "rfm.db"
	defaultPGPort         = 5432
	defaultSSLMode        = "disable"
	defaultConnectTimeout = 5 * time.Second
	defaultInput          = "online_retail.csv"
	defaultOutput         = "rfm_results.csv"
	defaultHTTPPort       = 8080
)

var validate = validator.New()

// Load reads .env (if any) and the environment, applying defaults.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit env files. Missing files are ignored;
// unreadable or malformed ones are an error. Variables already set in the
// environment win.
func LoadFiles(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		DB: DBConfig{
			Driver:   valueOrDefault("DB_DRIVER", defaultDriver),
			Path:     valueOrDefault("DB_PATH", defaultDBPath),
			Host:     os.Getenv("DB_HOST"),
			Name:     os.Getenv("DB_NAME"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			SSLMode:  valueOrDefault("DB_SSLMODE", defaultSSLMode),
		},
		Pipeline: PipelineConfig{
			Input:  valueOrDefault("RFM_INPUT", defaultInput),
			Output: valueOrDefault("RFM_OUTPUT", defaultOutput),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", "info"),
			Format: valueOrDefault("LOG_FORMAT", "text"),
		},
	}

	var err error
	if cfg.DB.Port, err = parseInt("DB_PORT", defaultPGPort); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.Port, err = parseInt("HTTP_PORT", defaultHTTPPort); err != nil {
		return Config{}, err
	}
	if cfg.Pipeline.Strict, err = parseBool("RFM_STRICT", false); err != nil {
		return Config{}, err
	}
	cfg.DB.ConnectTimeout = defaultConnectTimeout
	if v := os.Getenv("DB_CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_CONNECT_TIMEOUT: %w", err)
		}
		cfg.DB.ConnectTimeout = d
	}
	if v := os.Getenv("RFM_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RFM_REFRESH_INTERVAL: %w", err)
		}
		cfg.Pipeline.RefreshInterval = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DSN returns the data source name for the configured driver.
func (c DBConfig) DSN() string {
	if c.Driver != sqlstore.DriverPostgres {
		return c.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// StoreOptions converts the database config for sqlstore.Open.
func (c DBConfig) StoreOptions() sqlstore.Options {
	return sqlstore.Options{
		Driver:         c.Driver,
		DSN:            c.DSN(),
		ConnectTimeout: c.ConnectTimeout,
	}
}

// Target is a log-safe description of the database.
func (c DBConfig) Target() string {
	if c.Driver != sqlstore.DriverPostgres {
		return c.Path
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Name)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return b, nil
}
