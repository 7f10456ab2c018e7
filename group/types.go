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

// Package group implements hub-and-spoke group messaging: deterministic
// hub election, migration, and message fan-out (spec §3, §4.4).
package group

import (
	"github.com/google/uuid"

	"github.com/tom-mesh/tom-protocol/types"
)

// GroupID uniquely identifies a group.
type GroupID = uuid.UUID

// NewGroupID generates a fresh GroupID.
func NewGroupID() GroupID {
	return uuid.New()
}

// MemberRole is a member's standing within a group (independent of its
// network-wide Peer/Relay role).
type MemberRole uint8

const (
	RoleOwner MemberRole = iota
	RoleAdmin
	RoleMember
)

// Member is one participant of a group.
type Member struct {
	NodeID types.NodeId
	Role   MemberRole
}

// Info is the full state of one group.
type Info struct {
	ID        GroupID
	Members   map[types.NodeId]MemberRole
	Hub       types.NodeId
	HubEpoch  uint64
	CreatedAt int64
}

// LeaveReason explains why a member left (or the hub stepped down).
type LeaveReason int

const (
	LeaveVoluntary LeaveReason = iota
	LeaveKicked
	LeaveHubStepDown
)

// Payload is the msgpack-encoded body carried inside a GroupMessage
// envelope. Sender carries the original author when the hub re-signs a
// fanned-out copy under its own key (the envelope's own From becomes the
// hub, the signer, so the original author has to travel in the payload
// instead); it is the zero NodeId on the member-to-hub leg, where the
// envelope's From is already the real author.
type Payload struct {
	GroupID GroupID      `msgpack:"group_id"`
	Body    []byte       `msgpack:"body"`
	Sender  types.NodeId `msgpack:"sender,omitempty"`
}

// Invite is the body of a GroupInvite envelope.
type Invite struct {
	GroupID GroupID      `msgpack:"group_id"`
	Inviter types.NodeId `msgpack:"inviter"`
	Hub     types.NodeId `msgpack:"hub"`
}

// ElectionReason explains why a hub election was triggered.
type ElectionReason int

const (
	ElectionHubTimeout ElectionReason = iota
	ElectionHubStepDown
	ElectionQuorumUnreachable
)

// ElectionResult is the outcome of electHub.
type ElectionResult struct {
	NewHub types.NodeId
	Epoch  uint64
	Reason ElectionReason
}

// Event lists the kinds of outcome a group transition can have. Nothing in
// this module constructs one; the runtime builds ProtocolEvents directly.
type Event struct {
	Created        *GroupID
	MemberJoined   *Member
	MemberLeft     *types.NodeId
	HubMigrated    *ElectionResult
	MessageToFanOut *Payload
}
