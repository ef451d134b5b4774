// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

// Load builds the effective configuration: defaults, then the YAML file
// (when path is non-empty), then the environment. The result is validated.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return AppConfig{}, err
		}
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
