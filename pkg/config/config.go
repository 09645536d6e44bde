// Package config loads the optional tool configuration file.
//
// The file lives at <XDG_CONFIG_HOME>/virtualenv-tools/config.toml and
// supplies defaults that command-line flags override.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/logging"
)

// Config holds user-configurable defaults.
type Config struct {
	// WorkonHome is a fallback registry root used when the WORKON_HOME
	// environment variable is not set.
	WorkonHome string `toml:"workon_home"`

	// Verbose enables per-file change diagnostics by default.
	Verbose bool `toml:"verbose"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "virtualenv-tools", "config.toml")
}

// Load reads the config from the default location. A missing file is not
// an error and yields the zero config.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	logger := logging.GetLogger("config")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", path).Msg("no config file, using defaults")
			return &Config{}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "reading config file %s", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "parsing config file %s", path)
	}

	logger.Debug().Str("path", path).Msg("config loaded")
	return &cfg, nil
}
