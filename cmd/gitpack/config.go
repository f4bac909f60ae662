package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// cliConfig holds optional settings read from <store>/gitpack.toml.
type cliConfig struct {
	Pack packConfig `toml:"pack"`
}

type packConfig struct {
	// Threads is the compression worker count; 0 means all available.
	Threads int `toml:"threads"`
	// Window is the delta base search window; 0 disables deltas.
	Window int `toml:"window"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		Pack: packConfig{Threads: 1, Window: 10},
	}
}

// loadConfig reads gitpack.toml under the store root. A missing file yields
// the defaults.
func loadConfig(storeRoot string) (cliConfig, error) {
	cfg := defaultConfig()
	path := filepath.Join(storeRoot, "gitpack.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if cfg.Pack.Threads < 0 {
		return cfg, fmt.Errorf("config %s: pack.threads must be >= 0", path)
	}
	if cfg.Pack.Window < 0 {
		return cfg, fmt.Errorf("config %s: pack.window must be >= 0", path)
	}
	return cfg, nil
}
