// Package config provides configuration management for the arXiv Pulse service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
)

// Config holds all configuration for the arXiv Pulse service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Crawl contains ingestion and enrichment pipeline settings.
	Crawl CrawlConfig `mapstructure:"crawl"`
	// ArXiv contains the arXiv API client settings.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
	// LLM contains the summarizer client settings.
	LLM LLMConfig `mapstructure:"llm"`
	// DingTalk contains the notification webhook settings.
	DingTalk DingTalkConfig `mapstructure:"dingtalk"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8000).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown,
	// including in-flight pipeline cycles.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security. Default is "require";
	// use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum idle time of a connection.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between idle connection checks.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// CrawlConfig holds pipeline settings for the two periodic jobs.
type CrawlConfig struct {
	// Categories is the list of arXiv categories to poll (e.g. cs.AI).
	Categories []string `mapstructure:"categories"`
	// MaxResultsPerCategory caps the number of records fetched per
	// category per cycle. Kept large relative to expected volume.
	MaxResultsPerCategory int `mapstructure:"max_results_per_category"`
	// PageSize is the number of results per API request.
	PageSize int `mapstructure:"page_size"`
	// Interval is how often the ingestion cycle runs.
	Interval time.Duration `mapstructure:"interval"`
	// Keywords is the watchlist used to select papers for enrichment.
	// Empty disables enrichment.
	Keywords []string `mapstructure:"keywords"`
	// SummaryInterval is how often the enrichment cycle runs.
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
	// Lookback bounds enrichment candidates to recently published papers.
	Lookback time.Duration `mapstructure:"lookback"`
}

// ArXivConfig holds the arXiv API client settings.
type ArXivConfig struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// LLMConfig holds the summarizer client settings.
type LLMConfig struct {
	// APIKey is the LLM API key (loaded from PULSE_LLM_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Model is the model identifier.
	Model string `mapstructure:"model"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
}

// DingTalkConfig holds the notification webhook settings.
type DingTalkConfig struct {
	// WebhookURL is the DingTalk robot webhook URL, including its access
	// token (loaded from PULSE_DINGTALK_WEBHOOK_URL). Empty disables
	// notifications.
	WebhookURL string `mapstructure:"-"`
	// Timeout is the timeout for webhook calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/arxiv-pulse")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets are loaded exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	cfg.Crawl.Keywords = normalizeList(cfg.Crawl.Keywords)
	cfg.Crawl.Categories = normalizeList(cfg.Crawl.Categories)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// normalizeList trims entries and drops blanks. Environment overrides can
// carry comma-separated values, so entries are split on commas first.
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.APIKey = os.Getenv("PULSE_LLM_API_KEY")
	cfg.DingTalk.WebhookURL = os.Getenv("PULSE_DINGTALK_WEBHOOK_URL")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pulse")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "arxiv_pulse")
	// Default to "require" for production security. Use PULSE_DATABASE_SSL_MODE=disable locally.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Crawl defaults
	v.SetDefault("crawl.categories", []string{
		"cs.AI", "cs.CV", "cs.LG", "cs.CL", "cs.NE", "cs.SE", "cs.DC",
		"cs.DS", "cs.DB", "cs.IR", "cs.ET", "cs.GL", "cs.IT", "cs.MA",
	})
	v.SetDefault("crawl.max_results_per_category", 200)
	v.SetDefault("crawl.page_size", 100)
	v.SetDefault("crawl.interval", "60m")
	v.SetDefault("crawl.keywords", []string{"agent"})
	v.SetDefault("crawl.summary_interval", "30m")
	v.SetDefault("crawl.lookback", "720h") // 30 days

	// arXiv defaults
	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("arxiv.timeout", "30s")
	v.SetDefault("arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec

	// LLM defaults
	v.SetDefault("llm.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("llm.model", "qwen3-max")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)

	// DingTalk defaults
	v.SetDefault("dingtalk.timeout", "10s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.Crawl.Categories) == 0 {
		return fmt.Errorf("at least one crawl category is required")
	}
	if c.Crawl.MaxResultsPerCategory <= 0 {
		return fmt.Errorf("crawl max_results_per_category must be positive")
	}
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("crawl page_size must be positive")
	}
	if c.Crawl.Interval <= 0 {
		return fmt.Errorf("crawl interval must be positive")
	}
	if c.Crawl.SummaryInterval <= 0 {
		return fmt.Errorf("crawl summary_interval must be positive")
	}
	if c.Crawl.Lookback <= 0 {
		return fmt.Errorf("crawl lookback must be positive")
	}

	// An empty keyword list is valid: enrichment is simply disabled.
	// A missing LLM key only matters when keywords are configured.
	if len(c.Crawl.Keywords) > 0 && c.LLM.APIKey == "" {
		return fmt.Errorf("keywords are configured but PULSE_LLM_API_KEY is not set")
	}

	return nil
}
