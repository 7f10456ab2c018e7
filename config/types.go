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

// Config is the root configuration document for a tom-node process,
// loaded from YAML with environment-variable overrides (see env.go,
// loader.go).
type Config struct {
	Environment string           `yaml:"environment" json:"environment"`
	Node        *NodeConfig      `yaml:"node" json:"node"`
	Logging     *LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig   `yaml:"metrics" json:"metrics"`
	Discovery   *DiscoveryConfig `yaml:"discovery" json:"discovery"`
	Backup      *BackupConfig    `yaml:"backup" json:"backup"`
	Role        *RoleConfig      `yaml:"role" json:"role"`
	Group       *GroupConfig     `yaml:"group" json:"group"`

	// Wire, if non-empty, names wire-protocol constants (max_ttl,
	// max_replicas, and the rest of spec §6.6's normative set) a config
	// file attempted to override. These are compile-time constants in
	// package types; Validate rejects any document that sets this field
	// rather than silently ignoring the override.
	Wire map[string]interface{} `yaml:"wire,omitempty" json:"wire,omitempty"`
}

// NodeConfig identifies this node and how it reaches the mesh.
type NodeConfig struct {
	KeyFile        string   `yaml:"key_file" json:"key_file"`
	ListenAddr     string   `yaml:"listen_addr" json:"listen_addr"`
	BootstrapPeers []string `yaml:"bootstrap_peers" json:"bootstrap_peers"`

	// MaxMessageSize caps the serialized size (bytes) of an envelope this
	// node will originate or relay; larger payloads are rejected with
	// errs.MessageTooLarge rather than fragmented.
	MaxMessageSize int `yaml:"max_message_size" json:"max_message_size"`
}

// LoggingConfig controls the internal/logger package.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig controls the internal/metrics Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// DiscoveryConfig holds the tunables of discovery.HeartbeatTracker and the
// gossip fan-out (spec §4.1/§4.2).
type DiscoveryConfig struct {
	HeartbeatIntervalMs int64 `yaml:"heartbeat_interval_ms" json:"heartbeat_interval_ms"`
	GossipIntervalMs    int64 `yaml:"gossip_interval_ms" json:"gossip_interval_ms"`
	StaleThresholdMs    int64 `yaml:"stale_threshold_ms" json:"stale_threshold_ms"`
	OfflineThresholdMs  int64 `yaml:"offline_threshold_ms" json:"offline_threshold_ms"`
	MaxFutureDriftMs    int64 `yaml:"max_future_drift_ms" json:"max_future_drift_ms"`
	MaxPeersPerGossip   int   `yaml:"max_peers_per_gossip" json:"max_peers_per_gossip"`
}

// BackupConfig holds the tunables of backup.Coordinator (spec §4.3).
type BackupConfig struct {
	QueryDebounceMs          int64 `yaml:"query_debounce_ms" json:"query_debounce_ms"`
	QueryTimeoutMs           int64 `yaml:"query_timeout_ms" json:"query_timeout_ms"`
	CleanupIntervalMs        int64 `yaml:"cleanup_interval_ms" json:"cleanup_interval_ms"`
	ViabilityCheckIntervalMs int64 `yaml:"viability_check_interval_ms" json:"viability_check_interval_ms"`
}

// RoleConfig holds the role manager's tunables. The scoring constants
// themselves (promotion/demotion thresholds, decay factor) are gossiped,
// versioned constants in package roles and are deliberately not exposed
// here: a deployment cannot locally retune what every peer must agree on.
type RoleConfig struct {
	AnnounceOnChange bool `yaml:"announce_on_change" json:"announce_on_change"`
}

// GroupConfig holds the group hub's tunables (spec §4.4).
type GroupConfig struct {
	MaxMembers int `yaml:"max_members" json:"max_members"`
}
