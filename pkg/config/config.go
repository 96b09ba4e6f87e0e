// Package config handles configuration for cdt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults for a local Chrome started with --remote-debugging-port.
const (
	DefaultHost          = "localhost"
	DefaultPort          = 9222
	DefaultOrigin        = "origin"
	DefaultLogLevel      = "notice"
	DefaultLogTarget     = "stderr"
	DefaultPollInterval  = 250 * time.Millisecond
	DefaultReadChunkSize = 4096
)

// Config represents the workspace configuration (cdt.yaml or cdt.toml).
// Zero-valued fields in a file keep their defaults.
type Config struct {
	// Endpoint
	Host   string `yaml:"host" toml:"host"`
	Port   int    `yaml:"port" toml:"port"`
	Origin string `yaml:"origin" toml:"origin"`

	// Logging
	LogLevel  string `yaml:"logLevel" toml:"log_level"`
	LogTarget string `yaml:"logTarget" toml:"log_target"`

	// Output directory for screenshots and screencast frames
	OutputDir string `yaml:"outputDir" toml:"output_dir"`

	// Run report file; empty disables the report
	Report string `yaml:"report" toml:"report"`

	// Event loop tuning
	PollIntervalMs int `yaml:"pollIntervalMs" toml:"poll_interval_ms"`
	ReadChunkSize  int `yaml:"readChunkSize" toml:"read_chunk_size"`

	Screencast Screencast `yaml:"screencast" toml:"screencast"`
	Screenshot Screenshot `yaml:"screenshot" toml:"screenshot"`
	Drag       Drag       `yaml:"drag" toml:"drag"`
	Swipe      Swipe      `yaml:"swipe" toml:"swipe"`
}

// Screencast holds defaults for the screencast command.
type Screencast struct {
	Format  string `yaml:"format" toml:"format"`
	MaxSize int    `yaml:"maxSize" toml:"max_size"`
}

// Screenshot holds defaults for the screenshot command.
type Screenshot struct {
	Format string `yaml:"format" toml:"format"`
}

// Drag holds defaults for the drag command.
type Drag struct {
	Steps      int `yaml:"steps" toml:"steps"`
	DurationMs int `yaml:"durationMs" toml:"duration_ms"`
}

// Swipe holds defaults for the swipe command.
type Swipe struct {
	Speed int `yaml:"speed" toml:"speed"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Origin:         DefaultOrigin,
		LogLevel:       DefaultLogLevel,
		LogTarget:      DefaultLogTarget,
		OutputDir:      ".",
		PollIntervalMs: int(DefaultPollInterval / time.Millisecond),
		ReadChunkSize:  DefaultReadChunkSize,
		Screencast:     Screencast{Format: "jpeg"},
		Screenshot:     Screenshot{Format: "png"},
		Drag:           Drag{Steps: 10, DurationMs: 500},
		Swipe:          Swipe{Speed: 800},
	}
}

// PollInterval returns the event loop's bounded wait.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("pollIntervalMs must be positive, got %d", c.PollIntervalMs)
	}
	if c.ReadChunkSize <= 0 {
		return fmt.Errorf("readChunkSize must be positive, got %d", c.ReadChunkSize)
	}
	if c.Drag.Steps < 0 || c.Drag.DurationMs < 0 {
		return fmt.Errorf("drag steps and duration must not be negative")
	}
	return nil
}

// Load loads configuration from a file. Files ending in .toml are read as
// TOML; anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FileNames are the names LoadFromDir looks for, in order.
var FileNames = []string{"cdt.yaml", "cdt.yml", "cdt.toml"}

// LoadFromDir loads the first of FileNames found in dir.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}
