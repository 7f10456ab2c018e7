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

// Package tracker maintains the per-message delivery-status ladder
// Pending -> Sent -> Relayed -> Delivered -> Read (spec §3, §4.2).
package tracker

import "github.com/tom-mesh/tom-protocol/types"

// StatusChange is emitted whenever a tracked message's status advances.
type StatusChange struct {
	EnvelopeID string
	Status     types.MessageStatus
}

// Tracker owns the status ladder for every envelope id this node has sent
// or relayed. It is part of RuntimeState and is never accessed directly by
// external code.
type Tracker struct {
	statuses map[string]types.MessageStatus
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{statuses: make(map[string]types.MessageStatus)}
}

// Track registers a new envelope id at MessageStatusPending if not already
// tracked.
func (t *Tracker) Track(envelopeID string) {
	if _, ok := t.statuses[envelopeID]; !ok {
		t.statuses[envelopeID] = types.MessageStatusPending
	}
}

// Advance moves envelopeID to status if status is strictly greater than
// its current status (the ladder never moves backward). Returns true if
// the status actually advanced, along with the StatusChange to emit.
func (t *Tracker) Advance(envelopeID string, status types.MessageStatus) (StatusChange, bool) {
	current, ok := t.statuses[envelopeID]
	if ok && status <= current {
		return StatusChange{}, false
	}
	t.statuses[envelopeID] = status
	return StatusChange{EnvelopeID: envelopeID, Status: status}, true
}

// Status returns the current status of envelopeID and whether it is
// tracked at all.
func (t *Tracker) Status(envelopeID string) (types.MessageStatus, bool) {
	s, ok := t.statuses[envelopeID]
	return s, ok
}

// Forget removes an envelope id from tracking (used once a message is
// fully resolved and its status no longer needs to be retained).
func (t *Tracker) Forget(envelopeID string) {
	delete(t.statuses, envelopeID)
}

// Len reports how many envelope ids are currently tracked.
func (t *Tracker) Len() int {
	return len(t.statuses)
}
