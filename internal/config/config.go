// ABOUTME: Configuration loading and parsing for gatekeeperd
// ABOUTME: Supports YAML files with environment variable expansion and env overrides

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gatekeeper configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Limits   LimitsConfig   `yaml:"limits"`
	Owner    OwnerConfig    `yaml:"owner"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the HTTP listen address for serve mode.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LimitsConfig holds the request-limiting knobs.
type LimitsConfig struct {
	DailyLimit     int           `yaml:"daily_limit"`
	CooldownWindow time.Duration `yaml:"-"`
	StorageTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CooldownWindowRaw string `yaml:"cooldown_window"`
	StorageTimeoutRaw string `yaml:"storage_timeout"`
}

// OwnerConfig identifies the user granted the owner role on first contact.
// Zero means no owner is configured.
type OwnerConfig struct {
	UserID int64 `yaml:"user_id"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied when a field is absent from the file and not overridden
// by the environment.
const (
	DefaultDailyLimit     = 10
	DefaultCooldownWindow = 2 * time.Second
	DefaultStorageTimeout = 5 * time.Second
)

// Default returns a configuration with all defaults applied and
// environment overrides honored. Useful when no config file exists.
func Default() (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{HTTPAddr: ":8080"},
		Database: DatabaseConfig{Path: "gatekeeper.db"},
		Limits: LimitsConfig{
			DailyLimit:     DefaultDailyLimit,
			CooldownWindow: DefaultCooldownWindow,
			StorageTimeout: DefaultStorageTimeout,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded,
// duration strings are parsed, and GATEKEEPER_* environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Limits.CooldownWindowRaw != "" {
		cfg.Limits.CooldownWindow, err = time.ParseDuration(cfg.Limits.CooldownWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing cooldown_window %q: %w", cfg.Limits.CooldownWindowRaw, err)
		}
	}

	if cfg.Limits.StorageTimeoutRaw != "" {
		cfg.Limits.StorageTimeout, err = time.ParseDuration(cfg.Limits.StorageTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing storage_timeout %q: %w", cfg.Limits.StorageTimeoutRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Limits.DailyLimit == 0 {
		cfg.Limits.DailyLimit = DefaultDailyLimit
	}
	if cfg.Limits.CooldownWindow == 0 {
		cfg.Limits.CooldownWindow = DefaultCooldownWindow
	}
	if cfg.Limits.StorageTimeout == 0 {
		cfg.Limits.StorageTimeout = DefaultStorageTimeout
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// applyEnvOverrides applies plain environment variables on top of file
// values. These are the deployment knobs front ends are expected to set
// without shipping a config file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GATEKEEPER_DAILY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing GATEKEEPER_DAILY_LIMIT %q: %w", v, err)
		}
		cfg.Limits.DailyLimit = n
	}

	if v := os.Getenv("GATEKEEPER_COOLDOWN_WINDOW_SECONDS"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing GATEKEEPER_COOLDOWN_WINDOW_SECONDS %q: %w", v, err)
		}
		cfg.Limits.CooldownWindow = time.Duration(secs * float64(time.Second))
	}

	if v := os.Getenv("GATEKEEPER_OWNER_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing GATEKEEPER_OWNER_USER_ID %q: %w", v, err)
		}
		cfg.Owner.UserID = id
	}

	if v := os.Getenv("GATEKEEPER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	return nil
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Limits.DailyLimit < 0 {
		return fmt.Errorf("limits.daily_limit must not be negative")
	}
	if c.Limits.CooldownWindow < 0 {
		return fmt.Errorf("limits.cooldown_window must not be negative")
	}
	return nil
}
