package runtime

import (
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/types"
)

// IncomingEnvelope handles a raw envelope received from the transport
// (spec §4.2 incoming_envelope / "Routing decision for an incoming
// envelope").
func (s *State) IncomingEnvelope(raw []byte, nowMs int64) []Effect {
	if len(raw) > s.cfg.MaxMessageSize {
		return []Effect{EmitEffect{Event: ErrorEvent(errs.MessageTooLarge(len(raw), s.cfg.MaxMessageSize).Error())}}
	}

	env, err := envelope.FromBytes(raw)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	if err := env.Validate(); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}
	if err := env.VerifySignature(); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	s.Heartbeat.RecordHeartbeat(env.From, env.Timestamp, nowMs)
	effects := s.deliverBuffered(env.From, nowMs)

	// A zero To address can only mean a bootstrap self-announce (spec
	// §6.5 add_peer_addr(addr)): the dialing side has no NodeId to
	// address it to yet, so "addressed to nobody in particular" is
	// dispatched the same as "addressed to me".
	if env.To == s.Self || env.To.IsZero() {
		switch env.MsgType {
		case types.MessageTypeGroupInvite:
			return append(effects, s.handleGroupInvite(env.Payload, nowMs)...)
		case types.MessageTypeGroupJoin:
			return append(effects, s.handleGroupJoin(env.Payload, env.From, nowMs)...)
		case types.MessageTypeGroupSync:
			return append(effects, s.handleGroupSync(env.Payload)...)
		case types.MessageTypeGroupMessage:
			return append(effects, s.handleGroupMessage(env.Payload, env.From, nowMs)...)
		case types.MessageTypeGroupLeave:
			return append(effects, s.handleGroupLeave(env.Payload, env.From)...)
		case types.MessageTypeGroupHubMigration:
			return append(effects, s.handleGroupHubMigration(env.Payload)...)
		case types.MessageTypeRoleAnnounce:
			return append(effects, s.HandleRoleAnnounce(env.Payload, nowMs)...)
		case types.MessageTypePeerAnnounce:
			return append(effects, s.handlePeerAnnounce(env.Payload, nowMs)...)
		case types.MessageTypeBackupStore:
			return append(effects, s.handleBackupStore(env.Payload, env.From, nowMs)...)
		case types.MessageTypeBackupReplicateAck:
			return append(effects, s.handleBackupReplicateAck(env.Payload, env.From)...)
		case types.MessageTypeBackupQuery:
			return append(effects, s.handleBackupQuery(env.Payload, env.From, nowMs)...)
		case types.MessageTypeBackupQueryResponse:
			return append(effects, s.handleBackupQueryResponse(env.Payload, env.From, nowMs)...)
		case types.MessageTypeBackupDeliver:
			return append(effects, s.handleBackupDeliver(env.Payload, env.From, nowMs)...)
		case types.MessageTypeBackupConfirmDelivery:
			return append(effects, s.handleBackupConfirmDelivery(env.Payload)...)
		}
		return append(effects, s.deliverLocally(env, nowMs)...)
	}

	return append(effects, s.relay(env, nowMs)...)
}

func (s *State) deliverLocally(env envelope.Envelope, nowMs int64) []Effect {
	payload := env.Payload
	wasEncrypted := env.Encrypted
	if env.Encrypted {
		plaintext, err := env.DecryptPayload(s.secret)
		if err != nil {
			return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
		}
		payload = plaintext
	}

	change, _ := s.Tracker.Advance(env.ID, types.MessageStatusDelivered)

	ack, ackErr := envelope.NewBuilder(s.nextID(), s.Self, env.From, types.MessageTypeAck, nil, nowMs).
		Sign(s.secret)

	effects := []Effect{
		DeliverMessageEffect{Message: DeliveredMessage{
			EnvelopeID:     env.ID,
			From:           env.From,
			Payload:        payload,
			WasEncrypted:   wasEncrypted,
			SignatureValid: true,
			Timestamp:      env.Timestamp,
		}},
		StatusChangeEffect{Change: change},
	}
	if ackErr == nil {
		effects = append(effects, SendEnvelope{Envelope: ack})
	}
	return effects
}

// relay forwards env one hop further without re-signing (spec §9: "relays
// are transparent" — they never re-sign forwarded envelopes). It decrements
// TTL, records bytes_relayed against the relaying peer's contribution
// score (itself, since this node is the one doing the relaying), and pops
// self from the via chain if present.
func (s *State) relay(env envelope.Envelope, nowMs int64) []Effect {
	if env.TTL == 0 {
		return []Effect{EmitEffect{Event: ErrorEvent(errs.RelayRejected("ttl exhausted").Error())}}
	}
	if env.NextHop() != s.Self {
		// Not the designated next hop (and via is exhausted): nothing
		// left to relay. Drop per spec §4.2's incoming routing decision.
		return []Effect{EmitEffect{Event: ErrorEvent(errs.RelayRejected("not the designated next hop").Error())}}
	}

	env.TTL--
	env.PopVia(s.Self)

	s.Roles.RecordRelaySuccess(s.Self, uint64(len(env.Payload)), nowMs)
	change, advanced := s.Tracker.Advance(env.ID, types.MessageStatusRelayed)

	effects := []Effect{SendEnvelope{Envelope: env}}
	if advanced {
		effects = append(effects, StatusChangeEffect{Change: change})
	}
	return effects
}
