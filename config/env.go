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
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces every ${VAR} or ${VAR:default} in input with
// the named environment variable's value, or its default if unset.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig substitutes ${VAR} references in the node
// (key file, listen address, bootstrap peers), logging and metrics path
// string fields of cfg; other fields are left as they are.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Node != nil {
		cfg.Node.KeyFile = SubstituteEnvVars(cfg.Node.KeyFile)
		cfg.Node.ListenAddr = SubstituteEnvVars(cfg.Node.ListenAddr)
		for i, peer := range cfg.Node.BootstrapPeers {
			cfg.Node.BootstrapPeers[i] = SubstituteEnvVars(peer)
		}
	}

	if cfg.Logging != nil {
		cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
		cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
		cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
		cfg.Logging.FilePath = SubstituteEnvVars(cfg.Logging.FilePath)
	}

	if cfg.Metrics != nil {
		cfg.Metrics.Path = SubstituteEnvVars(cfg.Metrics.Path)
	}
}

// GetEnvironment returns the deployment environment from TOM_ENV,
// falling back to ENVIRONMENT, defaulting to "development".
func GetEnvironment() string {
	env := os.Getenv("TOM_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether GetEnvironment is "production".
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether GetEnvironment is "development" or
// "local".
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}

// applyEnvironmentOverrides applies the highest-priority environment
// variable overrides, mirroring the teacher's SAGE_* convention under a
// TOM_* prefix.
func applyEnvironmentOverrides(cfg *Config) {
	if cfg.Logging != nil {
		if v := os.Getenv("TOM_LOG_LEVEL"); v != "" {
			cfg.Logging.Level = v
		}
		if v := os.Getenv("TOM_LOG_FORMAT"); v != "" {
			cfg.Logging.Format = v
		}
	}

	if cfg.Metrics != nil {
		if v := os.Getenv("TOM_METRICS_ENABLED"); v != "" {
			cfg.Metrics.Enabled = getEnvBool("TOM_METRICS_ENABLED", cfg.Metrics.Enabled)
		}
		if v := os.Getenv("TOM_METRICS_PORT"); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Metrics.Port = port
			}
		}
	}

	if cfg.Node != nil {
		cfg.Node.ListenAddr = getEnvOrDefault("TOM_LISTEN_ADDR", cfg.Node.ListenAddr)
		cfg.Node.KeyFile = getEnvOrDefault("TOM_KEY_FILE", cfg.Node.KeyFile)
	}

	if cfg.Discovery != nil {
		cfg.Discovery.HeartbeatIntervalMs = getEnvDuration("TOM_HEARTBEAT_INTERVAL", time.Duration(cfg.Discovery.HeartbeatIntervalMs)*time.Millisecond).Milliseconds()
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
