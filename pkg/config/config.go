// Package config loads the client configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoEndpoint is returned by Validate when no server endpoint is set.
var ErrNoEndpoint = errors.New("config: endpoint is required")

// Config is the resolved client configuration.
type Config struct {
	// Endpoint is the control server websocket URL (ws:// or wss://).
	Endpoint string
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// StorePath is where the encrypted credential store lives.
	StorePath string
	// LogLevel is the console log level (trace, debug, info, warn, error).
	LogLevel string
}

type fileConfig struct {
	Endpoint           string `toml:"endpoint"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	StorePath          string `toml:"store_path"`
	LogLevel           string `toml:"log_level"`
}

// Default returns the built-in defaults. The endpoint has no default; it
// must come from the file or a flag.
func Default() Config {
	return Config{
		StorePath: defaultStorePath(),
		LogLevel:  "info",
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dronelink.store"
	}
	return filepath.Join(dir, "dronelink", "store")
}

// Load reads the TOML file at path over the defaults. Keys absent from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("insecure_skip_verify") {
		cfg.InsecureSkipVerify = raw.InsecureSkipVerify
	}
	if meta.IsDefined("store_path") {
		if p := strings.TrimSpace(raw.StorePath); p != "" {
			cfg.StorePath = p
		}
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}

// Validate checks that the configuration is complete enough to connect.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	if !strings.HasPrefix(c.Endpoint, "ws://") && !strings.HasPrefix(c.Endpoint, "wss://") {
		return fmt.Errorf("config: endpoint %q must be a ws:// or wss:// URL", c.Endpoint)
	}
	return nil
}
