package runtime

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/roles"
)

// HandleGossipEvent tries each known gossip payload kind in turn
// (PeerAnnounce, then RoleChangeAnnounce), updates topology, and may emit
// RolePromoted/RoleDemoted/Error (spec §4.2 handle_gossip_event).
func (s *State) HandleGossipEvent(input GossipInput, nowMs int64) []Effect {
	if input.PeerAnnounce != nil {
		return s.handlePeerAnnounce(input.PeerAnnounce, nowMs)
	}
	if input.RoleChangeAnnounce != nil {
		return s.HandleRoleAnnounce(input.RoleChangeAnnounce, nowMs)
	}
	return []Effect{EmitEffect{Event: ErrorEvent("gossip: unrecognized payload kind")}}
}

func (s *State) handlePeerAnnounce(raw []byte, nowMs int64) []Effect {
	var announce discovery.PeerAnnounce
	if err := msgpack.Unmarshal(raw, &announce); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("gossip: malformed peer announce: " + err.Error())}}
	}
	s.Heartbeat.RecordHeartbeat(announce.NodeID, announce.Timestamp, nowMs)
	s.AddPeer(announce.NodeID)
	return []Effect{EmitEffect{Event: ProtocolEvent{PeerDiscovered: &announce.NodeID}}}
}

// HandleRoleAnnounce verifies and applies a gossiped RoleChangeAnnounce
// (scenario B/C, properties 8/9). Bad signatures are dropped with an
// Error event, never retried; stale announces (older than the last known
// for that peer) are silently ignored per spec §4.5.
func (s *State) HandleRoleAnnounce(raw []byte, nowMs int64) []Effect {
	announce, err := roles.RoleChangeAnnounceFromBytes(raw)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("gossip: malformed role announce: " + err.Error())}}
	}
	if err := announce.Verify(); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	previousRole := s.Roles.Role(announce.NodeID)
	applied := s.Roles.HandleAnnounce(announce, nowMs)
	if !applied {
		return nil
	}

	if previousRole == roles.RolePeer && announce.NewRole == roles.RoleRelay {
		return []Effect{EmitEffect{Event: ProtocolEvent{RolePromoted: &announce.NodeID}}}
	}
	if previousRole == roles.RoleRelay && announce.NewRole == roles.RolePeer {
		return []Effect{EmitEffect{Event: ProtocolEvent{RoleDemoted: &announce.NodeID}}}
	}
	return nil
}
