package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"fsgate/internal/logging"
	"fsgate/pkg/fileops"
)

const APP_NAME = "fsgate" // application name used for config directory and env prefix

// Config holds the server configuration. The only behavior-affecting value
// is Root, the single directory all tool operations are confined to.
type Config struct {
	// Root is the allowed root directory. Tool calls touching anything
	// outside it are denied.
	Root    string `yaml:"root" envconfig:"ROOT"`
	Version string `yaml:"version"` // Track config version
}

// ConfigPath returns the standard config file path for the current platform
func ConfigPath() string {
	configPath := filepath.Join(xdg.ConfigHome, APP_NAME, "config.yaml")
	logging.Debug("Determined config path", "path", configPath)
	return configPath
}

// Load loads the config from the standard location, then applies
// environment overrides (FSGATE_ROOT). A missing config file is not an
// error as long as the environment or a flag supplies a root.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, exists := FindConfigFile()
	if exists {
		loaded, err := LoadFrom(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from FSGATE_* environment variables and expands
// a leading "~/" in the root.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(APP_NAME, c); err != nil {
		return fmt.Errorf("failed to process environment config: %w", err)
	}
	c.Root = fileops.ExpandPath(c.Root)
	return nil
}

// FindConfigFile returns the path to an existing config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary := ConfigPath()
	if _, err := os.Stat(primary); err == nil {
		logging.Debug("Config found", "path", primary)
		return primary, true
	}
	return primary, false
}

// DefaultConfig returns a Config with sensible defaults. Root is left empty
// on purpose: there is no safe directory to expose by default, so startup
// requires an explicit value from flag, environment, or file.
func DefaultConfig() Config {
	return Config{
		Root:    "",
		Version: "1.0",
	}
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	path, _ := FindConfigFile()
	return c.SaveTo(path)
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	if err := fileops.EnsureDirectoryExists(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with restrictive permissions (600) for security
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
