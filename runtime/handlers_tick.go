package runtime

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/roles"
	"github.com/tom-mesh/tom-protocol/types"
)

// gossipEnvelopeFor wraps wire (an already-signed RoleChangeAnnounce) in a
// plain, unencrypted, self-signed envelope addressed directly to peer. Role
// announces travel as gossip, not through relays, so TTL is 0 and Via is
// left empty.
func gossipEnvelopeFor(s *State, peer types.NodeId, wire []byte, nowMs int64) envelope.Envelope {
	env, err := envelope.NewBuilder(s.nextID(), s.Self, peer, types.MessageTypeRoleAnnounce, wire, nowMs).
		TTL(0).
		Sign(s.secret)
	if err != nil {
		return envelope.Envelope{}
	}
	return env
}

// peerAnnouncePayload msgpack-encodes this node's PeerAnnounce for nowMs,
// shared by broadcastHeartbeat (addressed per known peer) and
// BuildSelfAnnounce (addressed to an as-yet-unknown peer).
func (s *State) peerAnnouncePayload(nowMs int64) ([]byte, error) {
	return msgpack.Marshal(&discovery.PeerAnnounce{NodeID: s.Self, Timestamp: nowMs})
}

// broadcastHeartbeat builds one PeerAnnounce envelope per known peer so
// this node's own liveness is visible on the next tick's gossip round
// (spec §4.2 tick "drive heartbeats").
func (s *State) broadcastHeartbeat(nowMs int64) []Effect {
	wire, err := s.peerAnnouncePayload(nowMs)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	effects := make([]Effect, 0, len(s.knownPeers))
	for peer := range s.knownPeers {
		env, err := envelope.NewBuilder(s.nextID(), s.Self, peer, types.MessageTypePeerAnnounce, wire, nowMs).
			TTL(0).
			Sign(s.secret)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return effects
}

// Tick drives every time-based transition: peer score decay/evaluation,
// backup TTL expiry/maintenance, and subnet idle dissolution (spec §4.2
// tick(now_ms)). It is the only place RuntimeState reads a clock, and the
// clock is injected by the caller so the whole subsystem stays
// deterministic and testable.
//
// Self's own role is evaluated separately by EvaluateSelfRole, since only
// a promotion/demotion of self produces a signed, broadcastable
// RoleChangeAnnounce (a node cannot sign an announce on another peer's
// behalf).
func (s *State) Tick(nowMs int64) []Effect {
	var effects []Effect

	if nowMs-s.lastHeartbeatTickMs >= s.cfg.HeartbeatIntervalMs {
		s.lastHeartbeatTickMs = nowMs
		effects = append(effects, s.broadcastHeartbeat(nowMs)...)
	}

	for _, peer := range s.Heartbeat.KnownPeers() {
		if peer == s.Self {
			continue
		}
		action := s.Roles.Evaluate(peer, nowMs)
		switch action {
		case roles.ActionPromoted:
			p := peer
			effects = append(effects, EmitEffect{Event: ProtocolEvent{RolePromoted: &p}})
		case roles.ActionDemoted:
			p := peer
			effects = append(effects, EmitEffect{Event: ProtocolEvent{RoleDemoted: &p}})
		}
	}

	if selfEffects, _ := s.EvaluateSelfRole(nowMs); len(selfEffects) > 0 {
		effects = append(effects, selfEffects...)
	}

	if nowMs-s.lastCleanupTickMs >= s.cfg.CleanupIntervalMs {
		s.lastCleanupTickMs = nowMs
		removed := s.Backup.Cleanup(nowMs)
		for _, id := range removed {
			idCopy := id
			effects = append(effects, EmitEffect{Event: ProtocolEvent{BackupExpired: &idCopy}})
		}
	}

	for _, evt := range s.Subnets.DissolveIdleEdges(nowMs) {
		evtCopy := evt
		effects = append(effects, EmitEffect{Event: ProtocolEvent{SubnetDissolved: &evtCopy}})
	}

	return effects
}

// EvaluateSelfRole re-evaluates this node's own role/score on a tick and,
// if it crosses a promotion/demotion threshold, builds a signed
// RoleChangeAnnounce and returns the effects to broadcast it to every
// currently known peer as a gossip message (spec §4.5).
func (s *State) EvaluateSelfRole(nowMs int64) ([]Effect, *roles.RoleChangeAnnounce) {
	action := s.Roles.Evaluate(s.Self, nowMs)
	if action == roles.ActionNone {
		return nil, nil
	}

	announce := s.Roles.BuildAnnounce(nowMs, s.secret)
	wire, err := announce.ToBytes()
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, nil
	}

	self := s.Self
	var event ProtocolEvent
	if action == roles.ActionPromoted {
		event = ProtocolEvent{RolePromoted: &self}
	} else {
		event = ProtocolEvent{RoleDemoted: &self}
	}

	effects := []Effect{EmitEffect{Event: event}}
	for peer := range s.knownPeers {
		env := gossipEnvelopeFor(s, peer, wire, nowMs)
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return effects, &announce
}
