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

// Package discovery tracks peer liveness from heartbeats and clusters
// communicating peers into ephemeral subnets (spec §3, §4.2's tick
// handler).
package discovery

import "github.com/tom-mesh/tom-protocol/types"

// Tunable timing constants (spec §6.6). Unlike the first eight normative
// constants in package types, these must simply agree across a
// deployment; they are exposed here as defaults and may be overridden by
// config.
const (
	DefaultHeartbeatIntervalMs = 15_000
	DefaultGossipIntervalMs    = 30_000
	DefaultStaleThresholdMs    = 45_000
	DefaultOfflineThresholdMs  = 120_000
	DefaultMaxFutureDriftMs    = 5_000
	DefaultMaxPeersPerGossip   = 32
)

// LivenessState is derived on read from a peer's last-heard timestamp.
type LivenessState int

const (
	Fresh LivenessState = iota
	Stale
	Offline
)

func (s LivenessState) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Stale:
		return "Stale"
	case Offline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// DiscoverySource records where a peer observation came from.
type DiscoverySource int

const (
	SourceHeartbeat DiscoverySource = iota
	SourceGossip
	SourceDHT
	SourceDirect
)

// PeerAnnounce is the gossiped "I am alive, here is my address" message.
type PeerAnnounce struct {
	NodeID    types.NodeId `msgpack:"node_id"`
	Timestamp int64        `msgpack:"timestamp"`
}

// DissolveReason explains why an ephemeral subnet was torn down.
type DissolveReason int

const (
	DissolveIdle DissolveReason = iota
	DissolveAllOffline
	DissolveExplicit
)

// CommunicationEdge records that two peers have exchanged traffic
// recently, the basis for ephemeral subnet clustering.
type CommunicationEdge struct {
	A, B     types.NodeId
	LastSeen int64
}

// SubnetInfo describes one ephemeral cluster of mutually communicating
// peers.
type SubnetInfo struct {
	Members  []types.NodeId
	FormedAt int64
}

// SubnetEvent is emitted when subnet membership changes.
type SubnetEvent struct {
	Formed  bool
	Reason  DissolveReason
	Subnet  SubnetInfo
}

// DiscoveryEvent is the set of externally visible discovery occurrences a
// tick or gossip input can produce.
type DiscoveryEvent struct {
	PeerBecameFresh   *types.NodeId
	PeerBecameStale   *types.NodeId
	PeerBecameOffline *types.NodeId
	Subnet            *SubnetEvent
}
