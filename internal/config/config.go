// Package config loads dmxctl's optional local defaults file
// (~/.dmxctlrc), so a user who always talks to the same device doesn't
// have to pass -d/--device on every invocation. The gateway daemon's own
// configuration is unrelated and lives in internal/gatewayconfig (it's
// YAML, per the external interface contract); this package only ever
// backs the CLI client.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the shape of ~/.dmxctlrc.
type Config struct {
	Device string `toml:"device"` // default -d/--device value
	Format string `toml:"format"` // "human", "json", or "quiet"
}

// DefaultPath returns ~/.dmxctlrc, or "" if the home directory can't be
// resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dmxctlrc")
}

// Load reads path if it exists. A missing file is not an error: it just
// means no overrides apply, and Load returns a zero Config.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
