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

// Package config loads and validates tom-node's YAML configuration,
// modeled on the teacher's config package: nested sections, environment
// variable substitution and overrides, and a Load entry point with
// sensible defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads and parses a YAML config document at path.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config file: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path as YAML.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in zero-valued fields of every present section.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Node != nil {
		if cfg.Node.ListenAddr == "" {
			cfg.Node.ListenAddr = ":7700"
		}
		if cfg.Node.MaxMessageSize == 0 {
			cfg.Node.MaxMessageSize = 1 << 20
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Discovery != nil {
		if cfg.Discovery.HeartbeatIntervalMs == 0 {
			cfg.Discovery.HeartbeatIntervalMs = 15_000
		}
		if cfg.Discovery.GossipIntervalMs == 0 {
			cfg.Discovery.GossipIntervalMs = 30_000
		}
		if cfg.Discovery.StaleThresholdMs == 0 {
			cfg.Discovery.StaleThresholdMs = 60_000
		}
		if cfg.Discovery.OfflineThresholdMs == 0 {
			cfg.Discovery.OfflineThresholdMs = 180_000
		}
		if cfg.Discovery.MaxFutureDriftMs == 0 {
			cfg.Discovery.MaxFutureDriftMs = 5_000
		}
		if cfg.Discovery.MaxPeersPerGossip == 0 {
			cfg.Discovery.MaxPeersPerGossip = 16
		}
	}

	if cfg.Backup != nil {
		if cfg.Backup.QueryDebounceMs == 0 {
			cfg.Backup.QueryDebounceMs = 2_000
		}
		if cfg.Backup.QueryTimeoutMs == 0 {
			cfg.Backup.QueryTimeoutMs = 10_000
		}
		if cfg.Backup.CleanupIntervalMs == 0 {
			cfg.Backup.CleanupIntervalMs = 60_000
		}
		if cfg.Backup.ViabilityCheckIntervalMs == 0 {
			cfg.Backup.ViabilityCheckIntervalMs = 30_000
		}
	}

	if cfg.Group != nil && cfg.Group.MaxMembers == 0 {
		cfg.Group.MaxMembers = 256
	}
}

// ValidationIssue is one finding from Validate: Level is "error" (fails
// the load) or "warning" (surfaced to the operator but not fatal).
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// Validate checks cfg for configuration that would desync a deployment or
// otherwise cannot be honored. The normative wire constants (spec §6.6:
// max TTL, replica counts, TTL durations) are compile-time constants in
// package types and are never configurable: a document that sets the
// `wire` section at all is rejected outright, regardless of the values it
// names, since there is no such thing as a locally-tuned wire constant.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if len(cfg.Wire) > 0 {
		issues = append(issues, ValidationIssue{
			Field:   "wire",
			Message: "wire-protocol constants (max_ttl, max_replicas, ttl_ms, ...) are compile-time normative constants and cannot be overridden by config",
			Level:   "error",
		})
	}

	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "", "debug", "info", "warn", "error":
		default:
			issues = append(issues, ValidationIssue{
				Field:   "logging.level",
				Message: fmt.Sprintf("invalid log level %q", cfg.Logging.Level),
				Level:   "error",
			})
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Port <= 0 {
		issues = append(issues, ValidationIssue{
			Field:   "metrics.port",
			Message: "metrics.port must be set when metrics.enabled is true",
			Level:   "error",
		})
	}

	if cfg.Group != nil && cfg.Group.MaxMembers < 0 {
		issues = append(issues, ValidationIssue{
			Field:   "group.max_members",
			Message: "group.max_members cannot be negative",
			Level:   "error",
		})
	}

	if cfg.Node != nil && cfg.Node.MaxMessageSize < 0 {
		issues = append(issues, ValidationIssue{
			Field:   "node.max_message_size",
			Message: "node.max_message_size cannot be negative",
			Level:   "error",
		})
	}

	return issues
}
