package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Log      LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds the local SQLite settings
type DatabaseConfig struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// RemoteConfig holds the remote accounting endpoint settings
type RemoteConfig struct {
	BaseURL       string
	APIKey        string
	AgentCode     string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// SyncConfig holds the background synchronisation settings
type SyncConfig struct {
	Enabled            bool
	Interval           time.Duration
	InvoiceSeries      string
	ReceiptSeries      string
	DefaultPaymentTerm int  // days, applied when the partner has none
	AllowFallback      bool // timestamp-derived numbers when no range is configured
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load reads configuration from config file and environment variables.
// Environment variables take precedence and use the LEDGERSYNC_ prefix,
// e.g. LEDGERSYNC_REMOTE_BASE_URL overrides remote.base_url.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ledgersync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LEDGERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Path:         v.GetString("database.path"),
			BusyTimeout:  v.GetDuration("database.busy_timeout"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		Remote: RemoteConfig{
			BaseURL:       v.GetString("remote.base_url"),
			APIKey:        v.GetString("remote.api_key"),
			AgentCode:     v.GetString("remote.agent_code"),
			Timeout:       v.GetDuration("remote.timeout"),
			RetryAttempts: v.GetInt("remote.retry_attempts"),
			RetryDelay:    v.GetDuration("remote.retry_delay"),
		},
		Sync: SyncConfig{
			Enabled:            v.GetBool("sync.enabled"),
			Interval:           v.GetDuration("sync.interval"),
			InvoiceSeries:      v.GetString("sync.invoice_series"),
			ReceiptSeries:      v.GetString("sync.receipt_series"),
			DefaultPaymentTerm: v.GetInt("sync.default_payment_term"),
			AllowFallback:      v.GetBool("sync.allow_fallback"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledgersync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "ledgersync.db"
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 1
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Remote.RetryAttempts == 0 {
		cfg.Remote.RetryAttempts = 3
	}
	if cfg.Remote.RetryDelay == 0 {
		cfg.Remote.RetryDelay = 2 * time.Second
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 5 * time.Minute
	}
	if cfg.Sync.InvoiceSeries == "" {
		cfg.Sync.InvoiceSeries = "FV"
	}
	if cfg.Sync.ReceiptSeries == "" {
		cfg.Sync.ReceiptSeries = "CH"
	}
	if cfg.Sync.DefaultPaymentTerm == 0 {
		cfg.Sync.DefaultPaymentTerm = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync.interval must be at least one second, got %s", c.Sync.Interval)
	}
	if c.Sync.DefaultPaymentTerm < 0 {
		return fmt.Errorf("sync.default_payment_term cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required in production")
		}
		if c.Remote.APIKey == "" {
			return fmt.Errorf("remote.api_key is required in production")
		}
	}

	return nil
}

// IsProduction returns true if the application is running in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the SQLite connection string with the busy timeout applied.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		d.Path, d.BusyTimeout.Milliseconds())
}
