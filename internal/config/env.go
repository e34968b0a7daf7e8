package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// applyEnvOverlay folds SAVESYNC_* environment variables over cfg. Only
// variables that are actually set modify the config.
func applyEnvOverlay(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env overlay: %w", err)
	}
	return nil
}
