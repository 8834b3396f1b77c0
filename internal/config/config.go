// Package config loads hltest settings from YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zboralski/hltest/internal/log"
)

//go:embed default.yaml
var defaultConfigData []byte

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "HLTEST_CONFIG"

// Host holds the supervisor settings.
type Host struct {
	Command       []string      `yaml:"command"`
	Timeout       time.Duration `yaml:"timeout"`
	QueueLimit    int           `yaml:"queue_limit"`
	ReadColors    int           `yaml:"read_colors"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Config is the effective configuration.
type Config struct {
	ChunkSize   int           `yaml:"chunk_size"`
	Delay       time.Duration `yaml:"delay"`
	CancelEvery int           `yaml:"cancel_every"`
	Log         log.Config    `yaml:"log"`
	Host        Host          `yaml:"host"`
}

// Default returns the embedded defaults.
func Default() Config {
	c, err := parse(defaultConfigData)
	if err != nil {
		panic(fmt.Sprintf("config: bad embedded defaults: %v", err))
	}
	return c
}

// Load returns the defaults merged with the file at path. An empty path
// falls back to $HLTEST_CONFIG; a missing file is not an error.
func Load(path string) (Config, error) {
	base := Default()

	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return base, fmt.Errorf("read config: %w", err)
	}
	if err := merge(&base, data); err != nil {
		return base, fmt.Errorf("parse config: %w", err)
	}
	if err := base.Validate(); err != nil {
		return base, err
	}
	return base, nil
}

func parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// merge decodes data over c; keys absent from data keep their value.
func merge(c *Config, data []byte) error {
	return yaml.Unmarshal(data, c)
}

// Validate rejects values the driver and host cannot run with.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.ChunkSize)
	case c.Delay < 0:
		return fmt.Errorf("config: delay must not be negative, got %s", c.Delay)
	case c.CancelEvery < 0:
		return fmt.Errorf("config: cancel_every must not be negative, got %d", c.CancelEvery)
	case c.Host.Timeout <= 0:
		return fmt.Errorf("config: host.timeout must be positive, got %s", c.Host.Timeout)
	case c.Host.QueueLimit <= 0:
		return fmt.Errorf("config: host.queue_limit must be positive, got %d", c.Host.QueueLimit)
	case c.Host.ReadColors <= 0:
		return fmt.Errorf("config: host.read_colors must be positive, got %d", c.Host.ReadColors)
	case c.Host.RetryInterval < 0:
		return fmt.Errorf("config: host.retry_interval must not be negative, got %s", c.Host.RetryInterval)
	}
	return nil
}
