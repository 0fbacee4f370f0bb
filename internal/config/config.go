package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/claimstore/agent/internal/errors"
)

// Config represents the complete agent configuration
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// AgentConfig identifies this agent instance
type AgentConfig struct {
	// ID is the lock owner recorded by this agent. Empty means <hostname>-<pid>.
	ID string `mapstructure:"id" yaml:"id"`
}

// CollectorConfig controls the collection loop
type CollectorConfig struct {
	// CheckInDirs are the directories producers drop unlocked files into
	CheckInDirs []string `mapstructure:"checkin_dirs" yaml:"checkin_dirs"`
	// CentralDir receives gathered (tracked) bodies
	CentralDir string `mapstructure:"central_dir" yaml:"central_dir"`
	// PollIntervalMs is the time between passes in milliseconds
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// LockTimeoutSeconds is how old a lock must be before another agent may reclaim it
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds" yaml:"lock_timeout_seconds"`
	// MaxWorkers bounds concurrent collections within a pass
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
	// Watch wakes the collector early on file-system notifications
	Watch bool `mapstructure:"watch" yaml:"watch"`
	// MinFileAgeMs delays freshly dropped files (0 = disabled)
	MinFileAgeMs int `mapstructure:"min_file_age_ms" yaml:"min_file_age_ms"`
	// Exclude holds glob patterns of base names the scanner ignores
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the size at which the log file rotates
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			CheckInDirs:        []string{},
			PollIntervalMs:     5000,
			LockTimeoutSeconds: 1800,
			MaxWorkers:         4,
			Exclude:            []string{},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// PollInterval returns the poll interval as a time.Duration
func (c *CollectorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LockTimeout returns the lock timeout as a time.Duration
func (c *CollectorConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// MinFileAge returns the minimum file age as a time.Duration
func (c *CollectorConfig) MinFileAge() time.Duration {
	return time.Duration(c.MinFileAgeMs) * time.Millisecond
}

// Owner returns the configured agent ID or <hostname>-<pid>.
func (c *AgentConfig) Owner() string {
	if c.ID != "" {
		return c.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "agent"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("agent.id", defaults.Agent.ID)

	viper.SetDefault("collector.checkin_dirs", defaults.Collector.CheckInDirs)
	viper.SetDefault("collector.central_dir", defaults.Collector.CentralDir)
	viper.SetDefault("collector.poll_interval_ms", defaults.Collector.PollIntervalMs)
	viper.SetDefault("collector.lock_timeout_seconds", defaults.Collector.LockTimeoutSeconds)
	viper.SetDefault("collector.max_workers", defaults.Collector.MaxWorkers)
	viper.SetDefault("collector.watch", defaults.Collector.Watch)
	viper.SetDefault("collector.min_file_age_ms", defaults.Collector.MinFileAgeMs)
	viper.SetDefault("collector.exclude", defaults.Collector.Exclude)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates
// it. Any failure is a ConfigError, which is fatal at startup.
func Load() (*Config, error) {
	cfg, err := Decode()
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.NewConfigError("invalid configuration", ValidationErrors(errs)).
			WithSource(viper.ConfigFileUsed())
	}
	return cfg, nil
}

// Decode reads the configuration from viper without validating it.
func Decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("failed to decode configuration", err).
			WithSource(viper.ConfigFileUsed())
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claimstore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claimstore"
	}
	return filepath.Join(home, ".config", "claimstore")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// YAML renders cfg as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile writes cfg to path, creating parent directories. It refuses to
// overwrite an existing file unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	data, err := c.YAML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
