package main

import (
	"strings"

	"rudder/internal/config"
)

// loadConfig reads path (or the default locations when empty) and makes sure
// every configured directory exists.
func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}
