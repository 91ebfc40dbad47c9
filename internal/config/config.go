// Package config loads fsaudit configuration from defaults, the user config
// file and FSAUDIT_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config schema version written by `fsaudit config init`.
const CurrentVersion = 1

// Store drivers accepted in store.driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// MaxPageSize bounds query.page_size.
const MaxPageSize = 10000

// Config is the complete fsaudit configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Crawler CrawlerConfig `yaml:"crawler" json:"crawler"`
	Query   QueryConfig   `yaml:"query" json:"query"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StoreConfig locates the metadata database.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path"`
	// Driver is "sqlite" (pure Go, default) or "sqlite3" (CGO).
	Driver string `yaml:"driver" json:"driver"`
}

// CrawlerConfig tunes the crawler.
type CrawlerConfig struct {
	// BatchSize is the number of file records per store transaction.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// SkipOwners disables owner lookup; every owner is recorded as absent.
	SkipOwners bool `yaml:"skip_owners" json:"skip_owners"`
}

// QueryConfig sets defaults for file page queries.
type QueryConfig struct {
	PageSize int `yaml:"page_size" json:"page_size"`
}

// DaemonConfig configures `fsaudit serve` and its clients.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	// Timeout is the client request timeout, as a Go duration string.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Version: CurrentVersion,
		Store: StoreConfig{
			Path:   filepath.Join(dataDir, "audit.db"),
			Driver: DriverModernc,
		},
		Crawler: CrawlerConfig{
			BatchSize: 500,
		},
		Query: QueryConfig{
			PageSize: 50,
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(dataDir, "fsaudit.sock"),
			PIDPath:    filepath.Join(dataDir, "fsaudit.pid"),
			Timeout:    "5s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DefaultDataDir returns ~/.fsaudit, or a temp-dir equivalent without a home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fsaudit")
	}
	return filepath.Join(home, ".fsaudit")
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/fsaudit/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/fsaudit/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fsaudit", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fsaudit", "config.yaml")
	}
	return filepath.Join(home, ".config", "fsaudit", "config.yaml")
}

// GetUserConfigDir returns the directory holding the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load builds the effective configuration:
//  1. built-in defaults
//  2. the user config file, if present
//  3. explicitPath, if non-empty (must exist)
//  4. FSAUDIT_* environment variables
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicitPath != "" {
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of the file at path into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Store.Path != "" {
		c.Store.Path = expandHome(other.Store.Path)
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}

	if other.Crawler.BatchSize != 0 {
		c.Crawler.BatchSize = other.Crawler.BatchSize
	}
	if other.Crawler.SkipOwners {
		c.Crawler.SkipOwners = true
	}

	if other.Query.PageSize != 0 {
		c.Query.PageSize = other.Query.PageSize
	}

	if other.Daemon.SocketPath != "" {
		c.Daemon.SocketPath = expandHome(other.Daemon.SocketPath)
	}
	if other.Daemon.PIDPath != "" {
		c.Daemon.PIDPath = expandHome(other.Daemon.PIDPath)
	}
	if other.Daemon.Timeout != "" {
		c.Daemon.Timeout = other.Daemon.Timeout
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies FSAUDIT_* environment variables. Unparseable
// numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FSAUDIT_DB_PATH"); v != "" {
		c.Store.Path = expandHome(v)
	}
	if v := os.Getenv("FSAUDIT_DB_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("FSAUDIT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Crawler.BatchSize = n
		}
	}
	if v := os.Getenv("FSAUDIT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Query.PageSize = n
		}
	}
	if v := os.Getenv("FSAUDIT_SOCKET"); v != "" {
		c.Daemon.SocketPath = expandHome(v)
	}
	if v := os.Getenv("FSAUDIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// expandHome replaces a leading "~/" with the home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	switch c.Store.Driver {
	case DriverModernc, DriverMattn:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverModernc, DriverMattn, c.Store.Driver)
	}

	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be positive, got %d", c.Crawler.BatchSize)
	}

	if c.Query.PageSize <= 0 || c.Query.PageSize > MaxPageSize {
		return fmt.Errorf("query.page_size must be between 1 and %d, got %d", MaxPageSize, c.Query.PageSize)
	}

	if c.Daemon.SocketPath == "" {
		return fmt.Errorf("daemon.socket_path must not be empty")
	}
	if _, err := c.DaemonTimeout(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return fmt.Errorf("logging.max_size_mb and logging.max_files must be non-negative")
	}

	return nil
}

// DaemonTimeout parses daemon.timeout.
func (c *Config) DaemonTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Daemon.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("daemon.timeout must be a positive duration, got %q", c.Daemon.Timeout)
	}
	return d, nil
}

// DataDir returns the directory holding the database; scan locks live here.
func (c *Config) DataDir() string {
	return filepath.Dir(c.Store.Path)
}

// WriteYAML writes the configuration to path, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
