// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures Load.
type LoaderOptions struct {
	// ConfigDir is the directory holding <environment>.yaml / default.yaml
	// / config.yaml (default "config").
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables Validate.
	SkipValidation bool
}

// DefaultLoaderOptions returns the defaults Load uses when called with no
// options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: it tries
// <dir>/<env>.yaml, then <dir>/default.yaml, then <dir>/config.yaml,
// falling back to an empty Config with defaults applied if none exist.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	candidates := []string{
		filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)),
		filepath.Join(options.ConfigDir, "default.yaml"),
		filepath.Join(options.ConfigDir, "config.yaml"),
	}

	var cfg *Config
	for _, path := range candidates {
		loaded, err := loadConfigFile(path)
		if err == nil {
			cfg = loaded
			break
		}
	}
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, issue := range Validate(cfg) {
			if issue.Level == "error" {
				return nil, fmt.Errorf("config: validation failed: %s: %s", issue.Field, issue.Message)
			}
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// LoadForEnvironment loads configuration for a specific environment,
// using the default config directory.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}
