package runtime

import (
	"crypto/ed25519"

	"github.com/tom-mesh/tom-protocol/backup"
	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/types"
)

// SendMessage builds, encrypts, and signs a Chat envelope to recipient and
// decides how to route it (spec §4.2 send_message / "Routing decision for
// an outgoing envelope"):
//
//   - to == self: deliver locally, no network effect.
//   - via non-empty: handled by the caller building a relay-prefixed
//     envelope (send_message always builds a fresh direct envelope; route
//     rewriting is a relay-time concern, see IncomingEnvelope).
//   - recipient Fresh and directly known: plain SendEnvelope.
//   - a known Relay exists: send via the highest-scoring one (via=[relay]).
//   - none of the above: no route exists to even attempt, so the envelope
//     is stored locally as a backup entry and offered to replica
//     candidates instead (spec §4.3 step 2).
func (s *State) SendMessage(recipient types.NodeId, recipientPub ed25519.PublicKey, plaintext []byte, nowMs int64) ([]Effect, error) {
	if len(plaintext) > s.cfg.MaxMessageSize {
		err := errs.MessageTooLarge(len(plaintext), s.cfg.MaxMessageSize)
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	if recipient == s.Self {
		return []Effect{
			DeliverMessageEffect{Message: DeliveredMessage{
				EnvelopeID:     s.nextID(),
				From:           s.Self,
				Payload:        plaintext,
				WasEncrypted:   false,
				SignatureValid: true,
				Timestamp:      nowMs,
			}},
		}, nil
	}

	env, err := envelope.NewBuilder(s.nextID(), s.Self, recipient, 0 /* Chat */, plaintext, nowMs).
		EncryptAndSign(s.secret, recipientPub)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	s.Tracker.Track(env.ID)

	liveness := s.Heartbeat.Liveness(recipient, nowMs)
	if liveness == discovery.Fresh && s.isKnownDirect(recipient) {
		return []Effect{SendEnvelope{Envelope: env}}, nil
	}

	if relay, ok := s.Roles.HighestScoringRelay(); ok {
		env.Via = []types.NodeId{relay}
		return []Effect{SendEnvelope{Envelope: env}}, nil
	}

	// No known direct route and no relay candidate: nothing to actually
	// attempt over the wire, so fall back to local backup storage now
	// rather than deferring to a transport failure that will never come
	// (spec §4.3 step 2, triggered here instead of on a real send error
	// since RuntimeState has no route to even try).
	return s.storeAsBackup(env, nowMs), nil
}

// storeAsBackup inserts env into this node's backup store and asks up to
// MaxReplicas candidates (ranked by HostFactors derived from their
// roles.RoleMetrics) to also hold a copy (spec §4.3 step 2).
func (s *State) storeAsBackup(env envelope.Envelope, nowMs int64) []Effect {
	candidates := make(map[types.NodeId]backup.HostFactors, len(s.knownPeers))
	for peer := range s.knownPeers {
		if peer == env.To || peer == s.Self {
			continue
		}
		m, ok := s.Roles.Metrics(peer, nowMs)
		if !ok {
			continue
		}
		bandwidthBudget := 1.0 - m.BandwidthRatio
		if bandwidthBudget < 0 {
			bandwidthBudget = 0
		}
		candidates[peer] = backup.HostFactors{
			UptimeHours:     m.UptimeHours,
			BandwidthBudget: bandwidthBudget,
			DiskBudgetBytes: defaultReplicaDiskBudgetBytes,
		}
	}

	chosen := s.Backup.StoreAndSelectReplicas(env, nowMs, backup.DefaultTTLMs, candidates)

	effects := []Effect{EmitEffect{Event: ProtocolEvent{BackupStored: strPtr(env.ID)}}}
	for _, replica := range chosen {
		repEnv, err := s.buildBackupEnvelope(replica, types.MessageTypeBackupStore, backup.ReplicationPayload{
			Envelope: env,
			TTLMs:    backup.DefaultTTLMs,
		}, nowMs)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: repEnv})
	}
	return effects
}

// defaultReplicaDiskBudgetBytes is the spare-disk assumption used when
// ranking replica candidates; RuntimeState has no real local disk
// accounting for peers, so every known peer is treated as having this
// much headroom.
const defaultReplicaDiskBudgetBytes = 64 << 20

func strPtr(s string) *string { return &s }
