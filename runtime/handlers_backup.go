package runtime

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/backup"
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/types"
)

// buildBackupEnvelope msgpack-encodes body as the payload of a signed,
// unencrypted envelope addressed to target. Backup control traffic
// carries only envelope ids and already-signed envelopes, never
// plaintext content, so it is not re-encrypted.
func (s *State) buildBackupEnvelope(target types.NodeId, msgType types.MessageType, body interface{}, nowMs int64) (envelope.Envelope, error) {
	payload, err := msgpack.Marshal(body)
	if err != nil {
		return envelope.Envelope{}, errs.Serialization(err)
	}
	return envelope.NewBuilder(s.nextID(), s.Self, target, msgType, payload, nowMs).Sign(s.secret)
}

// handleBackupStore is a replica candidate receiving a request to hold a
// copy of someone else's undeliverable envelope (spec §4.3 step 2). It
// acks back with BackupReplicateAck so the originator can count
// confirmed replicas toward ReplicationThreshold.
func (s *State) handleBackupStore(payload []byte, from types.NodeId, nowMs int64) []Effect {
	var msg backup.ReplicationPayload
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	s.Backup.StoreReplica(msg.Envelope, msg.TTLMs, nowMs)

	ack, err := s.buildBackupEnvelope(from, types.MessageTypeBackupReplicateAck, backup.ReplicateAck{
		EnvelopeID: msg.Envelope.ID,
	}, nowMs)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}
	return []Effect{SendEnvelope{Envelope: ack}}
}

// handleBackupReplicateAck is the originator learning that a candidate
// now holds a replica.
func (s *State) handleBackupReplicateAck(payload []byte, from types.NodeId) []Effect {
	var ack backup.ReplicateAck
	if err := msgpack.Unmarshal(payload, &ack); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}
	s.Backup.ConfirmReplica(ack.EnvelopeID, from)
	return nil
}

// handleBackupQuery answers a peer asking "are you holding anything for
// me?" (spec §4.3 step 3, pull side: a recipient back online after a full
// restart has no local record of who might be holding its backups, so it
// broadcasts this to its known peers instead of waiting for a push).
func (s *State) handleBackupQuery(payload []byte, from types.NodeId, nowMs int64) []Effect {
	var q backup.QueryPayload
	if err := msgpack.Unmarshal(payload, &q); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	entries := s.Backup.DeliverBuffered(q.Recipient)
	if len(entries) == 0 {
		return nil
	}

	resp, err := s.buildBackupEnvelope(from, types.MessageTypeBackupQueryResponse, backup.QueryResponsePayload{
		Entries: entries,
	}, nowMs)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}
	return []Effect{SendEnvelope{Envelope: resp}}
}

// handleBackupQueryResponse delivers every envelope a holder returned in
// response to this node's earlier BackupQuery, confirming each back to
// its holder.
func (s *State) handleBackupQueryResponse(payload []byte, from types.NodeId, nowMs int64) []Effect {
	var resp backup.QueryResponsePayload
	if err := msgpack.Unmarshal(payload, &resp); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	var effects []Effect
	for _, env := range resp.Entries {
		effects = append(effects, s.deliverBackupEnvelope(env, from, nowMs)...)
	}
	return effects
}

// handleBackupDeliver is a push-side delivery: a holder noticed (via any
// inbound traffic from this node, see deliverBuffered in
// handlers_incoming.go) that the recipient is reachable again and is
// handing the buffered envelope straight over.
func (s *State) handleBackupDeliver(payload []byte, from types.NodeId, nowMs int64) []Effect {
	env, err := envelope.FromBytes(payload)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}
	return s.deliverBackupEnvelope(env, from, nowMs)
}

// deliverBackupEnvelope applies a recovered backup envelope the same way
// deliverLocally would, then confirms delivery back to the holder so it
// can stop retaining the entry (spec §4.3 step 3/4).
func (s *State) deliverBackupEnvelope(env envelope.Envelope, holder types.NodeId, nowMs int64) []Effect {
	if err := env.VerifySignature(); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}

	effects := s.deliverLocally(env, nowMs)

	confirm, err := s.buildBackupEnvelope(holder, types.MessageTypeBackupConfirmDelivery, backup.ConfirmDeliveryPayload{
		EnvelopeID: env.ID,
	}, nowMs)
	if err != nil {
		return append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
	}
	return append(effects, SendEnvelope{Envelope: confirm})
}

// handleBackupConfirmDelivery is a holder learning the recipient finally
// received a buffered envelope directly, so it can stop serving it
// (spec §4.3 step 3). Full cross-replica deletion-ack propagation is not
// wired: DeletionThreshold/AckDeletion track acks on a single node's own
// store and are exercised by Cleanup's TTL expiry instead (see DESIGN.md).
func (s *State) handleBackupConfirmDelivery(payload []byte) []Effect {
	var confirm backup.ConfirmDeliveryPayload
	if err := msgpack.Unmarshal(payload, &confirm); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}
	}
	s.Backup.ConfirmDelivery(confirm.EnvelopeID)
	return nil
}

// RequestBackupQuery broadcasts a BackupQuery to every known peer,
// app command issued when this node suspects it missed messages while
// offline (spec §4.3 step 3 pull side).
func (s *State) RequestBackupQuery(nowMs int64) []Effect {
	var effects []Effect
	for peer := range s.knownPeers {
		env, err := s.buildBackupEnvelope(peer, types.MessageTypeBackupQuery, backup.QueryPayload{
			Recipient: s.Self,
		}, nowMs)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return effects
}

// deliverBuffered pushes every envelope this node still holds for peer
// once any inbound traffic from peer proves it is reachable again (spec
// §4.3 step 3 push side), called from IncomingEnvelope.
func (s *State) deliverBuffered(peer types.NodeId, nowMs int64) []Effect {
	pending := s.Backup.DeliverBuffered(peer)
	if len(pending) == 0 {
		return nil
	}

	effects := make([]Effect, 0, len(pending))
	for _, env := range pending {
		wire, err := env.ToBytes()
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		// The payload carried here is the recovered envelope's own wire
		// bytes verbatim (not msgpack-wrapped again), matching what
		// handleBackupDeliver decodes with envelope.FromBytes.
		deliverEnv, err := envelope.NewBuilder(s.nextID(), s.Self, peer, types.MessageTypeBackupDeliver, wire, nowMs).
			Sign(s.secret)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: deliverEnv})
	}
	return effects
}
