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

import "github.com/tom-mesh/tom-protocol/runtime"

// RuntimeConfig projects the loaded document's Discovery, Backup, Group
// and Node sections onto a runtime.Config, starting from
// runtime.DefaultConfig so an absent section still yields sane tunables.
// The wire-protocol constants never appear here: Validate already refuses
// to load a document that sets them.
func (c *Config) RuntimeConfig() runtime.Config {
	cfg := runtime.DefaultConfig()

	if c.Discovery != nil {
		cfg.HeartbeatIntervalMs = c.Discovery.HeartbeatIntervalMs
		cfg.GossipIntervalMs = c.Discovery.GossipIntervalMs
		cfg.StaleThresholdMs = c.Discovery.StaleThresholdMs
		cfg.OfflineThresholdMs = c.Discovery.OfflineThresholdMs
		cfg.MaxFutureDriftMs = c.Discovery.MaxFutureDriftMs
		cfg.MaxPeersPerGossip = c.Discovery.MaxPeersPerGossip
	}

	if c.Backup != nil {
		cfg.QueryDebounceMs = c.Backup.QueryDebounceMs
		cfg.QueryTimeoutMs = c.Backup.QueryTimeoutMs
		cfg.CleanupIntervalMs = c.Backup.CleanupIntervalMs
		cfg.ViabilityCheckIntervalMs = c.Backup.ViabilityCheckIntervalMs
	}

	if c.Group != nil && c.Group.MaxMembers > 0 {
		cfg.MaxGroupMembers = c.Group.MaxMembers
	}

	if c.Node != nil && c.Node.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.Node.MaxMessageSize
	}

	return cfg
}
