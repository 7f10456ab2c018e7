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

// Package backup implements the "virus backup" store and coordinator: a
// TTL-based, self-replicating, self-deleting cache of envelopes for
// offline recipients (spec §3, §4.3).
package backup

import (
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

// Normative replication constants (spec §6.6, first eight).
const (
	MaxReplicas          = types.MaxReplicas
	ReplicationThreshold = types.ReplicationThreshold
	DeletionThreshold    = types.DeletionThreshold
	DefaultTTLMs         = types.DefaultTTLMs
	MaxTTLMs             = types.MaxTTLMs
)

// Tunable timing constants (spec §6.6).
const (
	DefaultQueryDebounceMs       = 5_000
	DefaultQueryTimeoutMs        = 20_000
	DefaultCleanupIntervalMs     = 60_000
	DefaultViabilityCheckIntervalMs = 300_000
)

// HostFactors describes a candidate relay's willingness to hold a backup
// entry: uptime history, spare bandwidth budget, and spare disk.
// Replication targets are ranked by these factors (spec §4.3 step 2).
type HostFactors struct {
	UptimeHours      float64
	BandwidthBudget  float64 // 0..1, fraction of budget still available
	DiskBudgetBytes  int64
}

// Viable reports whether a candidate is currently willing to host a new
// backup entry of the given size.
func (h HostFactors) Viable(entrySize int64) bool {
	return h.BandwidthBudget > 0 && h.DiskBudgetBytes >= entrySize
}

// BackupEntry is one cached envelope held on behalf of an offline
// recipient.
type BackupEntry struct {
	Envelope       envelope.Envelope
	StoredAt       int64
	TTLMs          int64
	Replicas       map[types.NodeId]struct{}
	Delivered      bool
	DeletionAcks   map[types.NodeId]struct{}
	ViableTargets  map[types.NodeId]struct{}
}

// NewBackupEntry creates an entry for env stored at nowMs. A ttlMs of zero
// or less means DefaultTTLMs; larger values are capped at MaxTTLMs.
func NewBackupEntry(env envelope.Envelope, nowMs int64, ttlMs int64) *BackupEntry {
	if ttlMs <= 0 {
		ttlMs = DefaultTTLMs
	}
	if ttlMs > MaxTTLMs {
		ttlMs = MaxTTLMs
	}
	return &BackupEntry{
		Envelope:      env,
		StoredAt:      nowMs,
		TTLMs:         ttlMs,
		Replicas:      make(map[types.NodeId]struct{}),
		DeletionAcks:  make(map[types.NodeId]struct{}),
		ViableTargets: make(map[types.NodeId]struct{}),
	}
}

// Expired reports whether the entry's hard TTL ceiling has passed.
func (e *BackupEntry) Expired(nowMs int64) bool {
	return e.StoredAt+e.TTLMs <= nowMs
}

// ReadyForDeletion reports whether the entry may be purged: delivered and
// enough replicas have acked deletion.
func (e *BackupEntry) ReadyForDeletion() bool {
	return e.Delivered && len(e.DeletionAcks) >= DeletionThreshold
}

// ReplicationPayload is the message sent to a candidate replica asking it
// to hold env.
type ReplicationPayload struct {
	Envelope envelope.Envelope `msgpack:"envelope"`
	TTLMs    int64             `msgpack:"ttl_ms"`
}

// ReplicateAck is a replica's BackupReplicateAck response confirming it
// now holds EnvelopeID.
type ReplicateAck struct {
	EnvelopeID string `msgpack:"envelope_id"`
}

// QueryPayload is the BackupQuery message: a node freshly back online
// asking its known peers whether they are holding anything for it.
type QueryPayload struct {
	Recipient types.NodeId `msgpack:"recipient"`
}

// QueryResponsePayload is the BackupQueryResponse reply, carrying every
// buffered envelope the responder holds for the querying recipient.
type QueryResponsePayload struct {
	Entries []envelope.Envelope `msgpack:"entries"`
}

// ConfirmDeliveryPayload is the BackupConfirmDelivery message a recipient
// sends back to the holder once BackupDeliver has been applied locally.
type ConfirmDeliveryPayload struct {
	EnvelopeID string `msgpack:"envelope_id"`
}
