package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/txpool2json/internal/errors"
)

// Hex rendering modes
const (
	HexModeString = "string"
	HexModeNumber = "number"
)

// Config represents the complete configuration for txpool2json
type Config struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Render  RenderConfig  `yaml:"render"`
	Output  OutputConfig  `yaml:"output"`
	Dev     DevConfig     `yaml:"dev"`
}

// MetricsConfig controls telemetry export. Endpoint is the push gateway URL.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Endpoint     string        `yaml:"endpoint"`
	Job          string        `yaml:"job"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// RenderConfig controls JSON rendering
type RenderConfig struct {
	Pretty      bool     `yaml:"pretty"`
	Indent      string   `yaml:"indent"`
	HexMode     string   `yaml:"hex_mode"`
	Transparent []string `yaml:"transparent"`
}

// OutputConfig controls where JSON is written
type OutputConfig struct {
	// Path is the output file; empty means stdout.
	Path string `yaml:"path"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug bool `yaml:"debug"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Enabled:      true,
			Endpoint:     "http://localhost:9091",
			Job:          "txpool2json",
			FlushTimeout: 5 * time.Second,
		},
		Render: RenderConfig{
			Pretty:      false,
			Indent:      "  ",
			HexMode:     HexModeString,
			Transparent: []string{"Some"},
		},
		Output: OutputConfig{},
		Dev: DevConfig{
			Debug: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".txpool2json.yml", ".txpool2json.yaml", "txpool2json.yml", "txpool2json.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks option values that the YAML decoder cannot
func (c *Config) Validate() error {
	switch c.Render.HexMode {
	case HexModeString, HexModeNumber:
	default:
		return fmt.Errorf("%w: render.hex_mode must be %q or %q, got %q",
			errors.ErrInvalidConfig, HexModeString, HexModeNumber, c.Render.HexMode)
	}

	if strings.Trim(c.Render.Indent, " \t") != "" {
		return fmt.Errorf("%w: render.indent may only contain spaces and tabs", errors.ErrInvalidConfig)
	}

	if c.Metrics.Enabled {
		u, err := url.Parse(c.Metrics.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: metrics.endpoint %q is not an http(s) URL",
				errors.ErrInvalidConfig, c.Metrics.Endpoint)
		}
		if c.Metrics.Job == "" {
			return fmt.Errorf("%w: metrics.job is empty", errors.ErrInvalidConfig)
		}
	}

	if c.Metrics.FlushTimeout < 0 {
		return fmt.Errorf("%w: metrics.flush_timeout is negative", errors.ErrInvalidConfig)
	}

	return nil
}

// Overrides carries command-line values. Empty strings and false booleans
// leave the file or default value untouched.
type Overrides struct {
	MetricsEndpoint string
	NoMetrics       bool
	Pretty          bool
	HexMode         string
	Output          string
	Debug           bool
}

// LoadConfigWithCLI loads config with CLI argument precedence
func LoadConfigWithCLI(configPath string, cli Overrides) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if cli.MetricsEndpoint != "" {
		cfg.Metrics.Endpoint = cli.MetricsEndpoint
	}
	if cli.NoMetrics {
		cfg.Metrics.Enabled = false
	}
	if cli.Pretty {
		cfg.Render.Pretty = true
	}
	if cli.HexMode != "" {
		cfg.Render.HexMode = cli.HexMode
	}
	if cli.Output != "" {
		cfg.Output.Path = cli.Output
	}
	if cli.Debug {
		cfg.Dev.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
