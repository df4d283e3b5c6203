// Package config provides configuration loading and management for
// connsurfer: movie defaults from an optional YAML file, and explicit
// discovery of the external renderer and encoder binaries. Binary paths
// are resolved once at startup and passed down; nothing below the CLI
// consults the environment.
package config

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrCommandNotFound is returned when a required external binary is
// neither configured nor present on PATH.
var ErrCommandNotFound = errors.New("command not found")

// Default external binaries and their override environment variables.
const (
	RendererCommand = "wb_command"
	RendererEnvVar  = "WBCOMMAND_BINARY_PATH"
	EncoderCommand  = "ffmpeg"
	EncoderEnvVar   = "FFMPEG_BINARY_PATH"
)

// Config holds the movie generation defaults and resolved binary paths.
type Config struct {
	// Renderer is the scene renderer binary path. Empty means discover
	// via ResolveBinaries.
	Renderer string `yaml:"renderer"`

	// Encoder is the video encoder binary path. Empty means discover.
	Encoder string `yaml:"encoder"`

	// Movie defaults, overridable per invocation from the CLI.
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	Framerate int `yaml:"framerate"`
	Loops     int `yaml:"loops"`
	NumCPUs   int `yaml:"numCpus"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Width:     1920,
		Height:    1080,
		Framerate: 10,
		Loops:     1,
		NumCPUs:   1,
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// ResolveBinaries fills in any unset binary path via FindBinary.
func (c *Config) ResolveBinaries() error {
	if c.Renderer == "" {
		path, err := FindBinary(RendererCommand, RendererEnvVar)
		if err != nil {
			return err
		}
		c.Renderer = path
	}
	if c.Encoder == "" {
		path, err := FindBinary(EncoderCommand, EncoderEnvVar)
		if err != nil {
			return err
		}
		c.Encoder = path
	}
	return nil
}

// FindBinary locates an external binary: the override environment
// variable wins when set, otherwise PATH is searched.
func FindBinary(command, envVar string) (string, error) {
	if override := os.Getenv(envVar); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", errors.Wrapf(ErrCommandNotFound, "%s points to %s: %v", envVar, override, err)
		}
		return filepath.Clean(override), nil
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", errors.Wrapf(ErrCommandNotFound,
			"%s not found in PATH; set %s or add %s to your PATH", command, envVar, command)
	}
	return path, nil
}
