// ABOUTME: Configuration loading and parsing for coven-playground
// ABOUTME: Supports YAML or TOML files with .env loading, env var expansion, and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the playground backend used when none is configured.
	DefaultEndpoint = "http://localhost:7777"
	// DefaultRefreshInterval is the workflow session-state refresh period.
	DefaultRefreshInterval = 5 * time.Second
	// DefaultHTTPTimeout bounds non-streaming requests.
	DefaultHTTPTimeout = 30 * time.Second
)

// Config represents the complete coven-playground configuration
type Config struct {
	Endpoint      string              `yaml:"endpoint" toml:"endpoint"`
	Target        TargetConfig        `yaml:"target" toml:"target"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
	WorkflowState WorkflowStateConfig `yaml:"workflow_state" toml:"workflow_state"`
	HTTP          HTTPConfig          `yaml:"http" toml:"http"`
}

// TargetConfig preselects a target. When several are set, team wins over
// agent, and agent over workflow.
type TargetConfig struct {
	Agent    string `yaml:"agent" toml:"agent"`
	Team     string `yaml:"team" toml:"team"`
	Workflow string `yaml:"workflow" toml:"workflow"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// WorkflowStateConfig holds the session-state refresher configuration
type WorkflowStateConfig struct {
	RefreshInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	RefreshIntervalRaw string `yaml:"refresh_interval" toml:"refresh_interval"`
}

// HTTPConfig holds settings for non-streaming requests. Streaming runs are
// never subject to Timeout.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to the config is loaded first; variables already set in
// the environment win. Environment variables in the format ${VAR_NAME} are
// expanded. Files ending in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// loadDotEnv loads a .env file if present.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.WorkflowState.RefreshInterval == 0 {
		cfg.WorkflowState.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = DefaultHTTPTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks that all configuration fields are valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := ValidateEndpoint(c.Endpoint); err != nil {
		return err
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	if c.WorkflowState.RefreshInterval < 0 {
		return fmt.Errorf("workflow_state.refresh_interval must be positive")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must be positive")
	}

	return nil
}

// ValidateEndpoint checks that endpoint is an http or https URL.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint must include a host")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.WorkflowState.RefreshIntervalRaw != "" {
		cfg.WorkflowState.RefreshInterval, err = time.ParseDuration(cfg.WorkflowState.RefreshIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing refresh_interval %q: %w", cfg.WorkflowState.RefreshIntervalRaw, err)
		}
	}

	if cfg.HTTP.TimeoutRaw != "" {
		cfg.HTTP.Timeout, err = time.ParseDuration(cfg.HTTP.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.HTTP.TimeoutRaw, err)
		}
	}

	return nil
}
