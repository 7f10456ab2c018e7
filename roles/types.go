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

// Package roles implements contribution scoring, time decay, and
// promotion/demotion between Peer and Relay, including the signed
// RoleChangeAnnounce gossip message (spec §3, §4.5).
package roles

import "github.com/tom-mesh/tom-protocol/types"

// Role is a peer's current contribution tier.
type Role uint8

const (
	RolePeer Role = iota
	RoleRelay
)

func (r Role) String() string {
	if r == RoleRelay {
		return "Relay"
	}
	return "Peer"
}

// Scoring weights and thresholds. The spec acknowledges these are not
// fully locked upstream; they are declared here as stable, versioned
// constants because scores are gossiped and must agree across a
// deployment (spec §4.5, §9 Open Questions).
const (
	ScoringVersion = 1

	WeightRelayCount    = 1.0
	WeightBytesRelayed  = 2.0
	WeightUptimeHours   = 0.5
	WeightRelayFailures = 3.0

	// DecayFactorPerHour is 1 - 0.05: score *= 0.95^(hours since last eval).
	DecayFactorPerHour = 0.95

	PromotionThreshold = 50.0
	DemotionThreshold  = 10.0
)

// ContributionMetrics is the per-peer state the role manager tracks.
type ContributionMetrics struct {
	Role           Role
	Score          float64
	RelayCount     uint64
	RelayFailures  uint64
	BytesRelayed   uint64
	BytesReceived  uint64
	FirstSeen      int64
	LastActivity   int64
	LastEvaluated  int64
}

// RoleMetrics is the externally observable snapshot returned by
// get_role_metrics / get_all_role_scores (spec §6.5), matching the
// original implementation's roles/metrics.rs shape.
type RoleMetrics struct {
	NodeID         types.NodeId
	Role           Role
	Score          float64
	RelayCount     uint64
	RelayFailures  uint64
	SuccessRate    float64
	BytesRelayed   uint64
	BytesReceived  uint64
	BandwidthRatio float64
	UptimeHours    float64
	FirstSeen      int64
	LastActivity   int64
}

// RoleAction describes what the manager decided for a peer on a tick.
type RoleAction int

const (
	ActionNone RoleAction = iota
	ActionPromoted
	ActionDemoted
)
