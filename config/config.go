// Package config provides configuration for the peerdiffx server.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

// Config holds server configuration.
type Config struct {
	// Listen is the address to listen on (e.g., ":7450").
	Listen string
	// DBURL is a SQLite path or a postgres:// DSN.
	DBURL string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// Debug forces debug logging.
	Debug bool
	// Version is the server version string.
	Version string
	// LockTTL is the default lifetime of an editing lock.
	LockTTL time.Duration
	// ExportTTLDays is the default lifetime of a snapshot export.
	ExportTTLDays int
	// ReapInterval is how often expired locks and exports are purged.
	ReapInterval time.Duration
	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration
	// XMLDiff holds the default XML diff options.
	XMLDiff xmldiff.Options
}

// fileConfig is the YAML overlay. Pointer fields distinguish unset keys.
type fileConfig struct {
	Listen        *string      `yaml:"listen"`
	DBURL         *string      `yaml:"db_url"`
	LogLevel      *string      `yaml:"log_level"`
	LockTTL       *string      `yaml:"lock_ttl"`
	ExportTTLDays *int         `yaml:"export_ttl_days"`
	ReapInterval  *string      `yaml:"reap_interval"`
	XMLDiff       *xmlDiffFile `yaml:"xmldiff"`
}

type xmlDiffFile struct {
	IgnoreWhitespace *bool    `yaml:"ignore_whitespace"`
	IgnoreAttributes []string `yaml:"ignore_attributes"`
	IgnoreNamespaces *bool    `yaml:"ignore_namespaces"`
	SemanticGrouping *bool    `yaml:"semantic_grouping"`
	Context          *int     `yaml:"context"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:         ":7450",
		DBURL:          "./data/peerdiffx.db",
		LogLevel:       "info",
		Version:        "0.1.0",
		LockTTL:        30 * time.Minute,
		ExportTTLDays:  7,
		ReapInterval:   time.Minute,
		RequestTimeout: 30 * time.Second,
		XMLDiff:        xmldiff.DefaultOptions(),
	}
}

// FromEnv creates a Config from environment variables only.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load builds the configuration: defaults, then the YAML file named by
// PDX_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("PDX_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return c.apply(&fc)
}

func (c *Config) apply(fc *fileConfig) error {
	if fc.Listen != nil {
		c.Listen = *fc.Listen
	}
	if fc.DBURL != nil {
		c.DBURL = *fc.DBURL
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LockTTL != nil {
		d, err := time.ParseDuration(*fc.LockTTL)
		if err != nil {
			return fmt.Errorf("lock_ttl: %w", err)
		}
		c.LockTTL = d
	}
	if fc.ExportTTLDays != nil {
		c.ExportTTLDays = *fc.ExportTTLDays
	}
	if fc.ReapInterval != nil {
		d, err := time.ParseDuration(*fc.ReapInterval)
		if err != nil {
			return fmt.Errorf("reap_interval: %w", err)
		}
		c.ReapInterval = d
	}
	if x := fc.XMLDiff; x != nil {
		if x.IgnoreWhitespace != nil {
			c.XMLDiff.IgnoreWhitespace = *x.IgnoreWhitespace
		}
		if x.IgnoreAttributes != nil {
			c.XMLDiff.IgnoreAttributes = x.IgnoreAttributes
		}
		if x.IgnoreNamespaces != nil {
			c.XMLDiff.IgnoreNamespaces = *x.IgnoreNamespaces
		}
		if x.SemanticGrouping != nil {
			c.XMLDiff.SemanticGrouping = *x.SemanticGrouping
		}
		if x.Context != nil {
			c.XMLDiff.Context = *x.Context
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Listen = getEnv("PDX_LISTEN", c.Listen)
	c.DBURL = getEnv("PDX_DB_URL", c.DBURL)
	c.LogLevel = getEnv("PDX_LOG_LEVEL", c.LogLevel)
	c.Debug = getEnvBool("PDX_DEBUG", c.Debug)
	c.Version = getEnv("PDX_VERSION", c.Version)
	c.LockTTL = getEnvDuration("PDX_LOCK_TTL", c.LockTTL)
	c.ExportTTLDays = getEnvInt("PDX_EXPORT_TTL_DAYS", c.ExportTTLDays)
	c.ReapInterval = getEnvDuration("PDX_REAP_INTERVAL", c.ReapInterval)
	c.RequestTimeout = getEnvDuration("PDX_REQUEST_TIMEOUT", c.RequestTimeout)
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.DBURL == "" {
		errs = append(errs, errors.New("database url is empty"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL))
	}
	if c.ExportTTLDays <= 0 {
		errs = append(errs, fmt.Errorf("export ttl must be positive, got %d days", c.ExportTTLDays))
	}
	if c.ReapInterval <= 0 {
		errs = append(errs, fmt.Errorf("reap interval must be positive, got %s", c.ReapInterval))
	}
	if err := c.XMLDiff.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("xmldiff: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the slog level to log at. Debug overrides LogLevel.
func (c *Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
