package runtime

import (
	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/types"
)

// PathKind classifies how a peer is currently reached, surfaced by the
// transport boundary (supplements the distilled spec per
// original_source's ProtocolEvent::PathChanged).
type PathKind int

const (
	PathUnknown PathKind = iota
	PathDirect
	PathRelay
)

// ProtocolEvent is the tagged union of everything RuntimeState can emit on
// the events channel. Only one field is populated per instance, mirroring
// a Rust enum via Go's "exactly one non-nil field" idiom.
type ProtocolEvent struct {
	RolePromoted  *types.NodeId
	RoleDemoted   *types.NodeId
	Error         *string
	PathChanged   *PathChangedEvent
	BackupStored  *string
	BackupExpired *string
	HubMigrated   *HubMigratedEvent
	PeerDiscovered *types.NodeId
	SubnetDissolved *discovery.SubnetEvent
}

// PathChangedEvent reports a peer's reachability classification changing.
type PathChangedEvent struct {
	Peer types.NodeId
	Kind PathKind
}

// HubMigratedEvent reports a successful group hub migration.
type HubMigratedEvent struct {
	GroupID string
	NewHub  types.NodeId
	Epoch   uint64
}

// ErrorEvent builds a ProtocolEvent carrying a description, the shape
// every drop-on-failure path in the handlers uses (spec §7 policy: "the
// runtime never panics on input... unrecoverable errors become
// Emit(ProtocolEvent::Error{description})").
func ErrorEvent(description string) ProtocolEvent {
	return ProtocolEvent{Error: &description}
}

// GossipInput is the tagged union of gossip payload kinds HandleGossipEvent
// tries in order (spec §4.2).
type GossipInput struct {
	PeerAnnounce        []byte
	RoleChangeAnnounce []byte
}
