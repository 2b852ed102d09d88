// Package config loads lzstage settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/franksops/lzstage/engine"
)

// RelativePath is the config file location below the XDG config directories.
const RelativePath = "lzstage/config.yaml"

// Config defines configuration for the lzstage CLI.
type Config struct {
	SodarURL          string      `yaml:"sodar_url"`
	SodarAPIToken     string      `yaml:"sodar_api_token"`
	Storage           string      `yaml:"storage"`
	Concurrency       int         `yaml:"concurrency"`
	Retry             RetryConfig `yaml:"retry"`
	RemoteDirPattern  string      `yaml:"remote_dir_pattern"`
	StateDir          string      `yaml:"state_dir"`
	MaxBytesPerSecond int64       `yaml:"max_bytes_per_second"`
	Placeholder       string      `yaml:"placeholder"`
}

// RetryConfig defines retry behavior of remote steps.
type RetryConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Concurrency:      8,
		RemoteDirPattern: engine.DefaultRemoteDirPattern,
		StateDir:         defaultStateDir(),
		Placeholder:      engine.DefaultPlaceholder,
		Retry: RetryConfig{
			Attempts: engine.DefaultRetryConfig.Attempts,
			Delay:    engine.DefaultRetryConfig.Delay,
		},
	}
}

func defaultStateDir() string {
	return filepath.Join(xdg.StateHome, "lzstage")
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	SodarURL          string          `yaml:"sodar_url"`
	SodarAPIToken     string          `yaml:"sodar_api_token"`
	Storage           string          `yaml:"storage"`
	Concurrency       *int            `yaml:"concurrency"`
	Retry             yamlRetryConfig `yaml:"retry"`
	RemoteDirPattern  string          `yaml:"remote_dir_pattern"`
	StateDir          string          `yaml:"state_dir"`
	MaxBytesPerSecond int64           `yaml:"max_bytes_per_second"`
	Placeholder       string          `yaml:"placeholder"`
}

type yamlRetryConfig struct {
	Attempts uint   `yaml:"attempts"`
	Delay    string `yaml:"delay"`
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.SodarURL != "" {
		cfg.SodarURL = yc.SodarURL
	}
	if yc.SodarAPIToken != "" {
		cfg.SodarAPIToken = yc.SodarAPIToken
	}
	if yc.Storage != "" {
		cfg.Storage = yc.Storage
	}
	// concurrency: 0 is meaningful, it selects sequential transfers
	if yc.Concurrency != nil {
		cfg.Concurrency = *yc.Concurrency
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Delay != "" {
		d, err := time.ParseDuration(yc.Retry.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.delay: %w", err)
		}
		cfg.Retry.Delay = d
	}
	if yc.RemoteDirPattern != "" {
		cfg.RemoteDirPattern = yc.RemoteDirPattern
	}
	if yc.StateDir != "" {
		cfg.StateDir = yc.StateDir
	}
	if yc.MaxBytesPerSecond != 0 {
		cfg.MaxBytesPerSecond = yc.MaxBytesPerSecond
	}
	if yc.Placeholder != "" {
		cfg.Placeholder = yc.Placeholder
	}

	return cfg, nil
}

// Load reads path when given. Otherwise the XDG config directories are
// searched and a missing file yields the defaults.
func Load(path string) (Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}

	found, err := xdg.SearchConfigFile(RelativePath)
	if err != nil {
		return Default(), nil
	}
	cfg, err := LoadFromFile(found)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides values from environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SODAR_URL"); v != "" {
		c.SodarURL = v
	}
	if v := os.Getenv("SODAR_API_TOKEN"); v != "" {
		c.SodarAPIToken = v
	}
	if v := os.Getenv("LZSTAGE_STORAGE"); v != "" {
		c.Storage = v
	}
	if v := os.Getenv("LZSTAGE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse LZSTAGE_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return errors.New("config: concurrency must not be negative")
	}
	if c.Retry.Attempts == 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	if c.Retry.Delay < 0 {
		return errors.New("config: retry.delay must not be negative")
	}
	if c.MaxBytesPerSecond < 0 {
		return errors.New("config: max_bytes_per_second must not be negative")
	}
	if c.Placeholder == "" || strings.ContainsAny(c.Placeholder, " \t/") {
		return fmt.Errorf("config: invalid placeholder %q", c.Placeholder)
	}
	if c.SodarURL != "" && !strings.HasPrefix(c.SodarURL, "http://") && !strings.HasPrefix(c.SodarURL, "https://") {
		return fmt.Errorf("config: sodar_url %q is not an http(s) URL", c.SodarURL)
	}
	return nil
}

// RequireRemote reports whether the landing zone service can be reached.
func (c *Config) RequireRemote() error {
	if c.SodarURL == "" {
		return errors.New("config: sodar_url is required")
	}
	if c.SodarAPIToken == "" {
		return errors.New("config: sodar_api_token is required")
	}
	return nil
}
