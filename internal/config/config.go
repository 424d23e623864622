// Package config loads the CLI configuration. Everything has a working
// default; a config file and environment override are optional.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/glance-reader/glance/internal/textnorm"
)

// Config is the resolved CLI configuration.
type Config struct {
	// DataDir holds the book database and copied source files.
	DataDir string `yaml:"data_dir"`
	// Normalize selects the default text-cleanup stages.
	Normalize textnorm.Options `yaml:"normalize"`
}

// Default returns the configuration used when no file or environment
// override is present. The data directory follows XDG conventions.
func Default() Config {
	return Config{
		DataDir:   defaultDataDir(),
		Normalize: textnorm.DefaultOptions(),
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "glance")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "glance")
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "glance", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "glance", "config.yaml")
}

// Load reads the YAML config at path, layered over Default. A missing
// file is not an error. GLANCE_DATA_DIR overrides the data directory
// last.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if dir := os.Getenv("GLANCE_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

// DBPath returns the bolt database location under the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "glance.db")
}
