// Package config loads the command configuration from flags, environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacoelho/i5validator/internal/compression"
)

// EnvPrefix prefixes every environment variable; dashes in keys become
// underscores, so --log-file is I5VALIDATOR_LOG_FILE.
const EnvPrefix = "I5VALIDATOR"

// Keys shared by the flags, the environment and the config file.
const (
	KeyLogFile     = "log-file"
	KeyParallel    = "parallel"
	KeyCompression = "compression"
	KeyDOM         = "dom"
	KeyLogToJSON   = "log-to-json"
	KeyJobs        = "jobs"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
	KeyMetricsFile = "metrics-file"
	KeySummary     = "summary"
)

// Default configuration values.
const (
	DefaultLogFile   = "i5validation.json"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Sentinel validation errors.
var (
	ErrInvalidCompression = errors.New("invalid compression")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidJobs        = errors.New("jobs must not be negative")
	ErrEmptyReportPath    = errors.New("report path must not be empty")
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Config holds the settings of one run.
type Config struct {
	LogFile     string `mapstructure:"log-file"`
	Compression string `mapstructure:"compression"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsFile string `mapstructure:"metrics-file"`
	Jobs        int    `mapstructure:"jobs"`
	Parallel    bool   `mapstructure:"parallel"`
	DOM         bool   `mapstructure:"dom"`
	LogToJSON   bool   `mapstructure:"log-to-json"`
	Summary     bool   `mapstructure:"summary"`
}

// Load resolves the configuration. Flags that were set explicitly win over
// the environment, which wins over the config file at configPath. An empty
// configPath reads no file. flags may be nil.
func Load(flags *pflag.FlagSet, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogFile, DefaultLogFile)
	v.SetDefault(KeyParallel, false)
	v.SetDefault(KeyCompression, compression.None.String())
	v.SetDefault(KeyDOM, false)
	v.SetDefault(KeyLogToJSON, false)
	v.SetDefault(KeyJobs, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeySummary, false)
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if _, err := compression.Parse(c.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCompression, err)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q (valid: %s)", ErrInvalidLogLevel, c.LogLevel, strings.Join(logLevels, ", "))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("%w: %q (valid: %s)", ErrInvalidLogFormat, c.LogFormat, strings.Join(logFormats, ", "))
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs)
	}
	if c.LogToJSON && c.LogFile == "" {
		return ErrEmptyReportPath
	}
	return nil
}

// CompressionKind returns the default compression of a validated config.
func (c *Config) CompressionKind() compression.Kind {
	kind, err := compression.Parse(c.Compression)
	if err != nil {
		return compression.None
	}
	return kind
}

// JSONLogs reports whether log records are written as JSON.
func (c *Config) JSONLogs() bool {
	return c.LogFormat == "json"
}
