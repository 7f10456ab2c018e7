package runtime

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/backup"
	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

// TestGroupMessageMemberToHubToMemberRoundTrip pins down spec §4.4's normal
// group-message path end to end: a non-hub member sends a GroupMessage, the
// hub fans it out re-signed under its own key, and a third member verifies
// and delivers it attributing the original author, not the hub. This is the
// path a prior bug broke: fanned envelopes carried From=original sender but
// were signed by the hub, so every recipient's VerifySignature failed and
// silently dropped the message.

func newNode(t *testing.T) (*State, types.NodeId, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := types.NodeIdFromBytes(pub)
	require.NoError(t, err)
	return New(id, priv, DefaultConfig(), 1000), id, priv
}

func newPeer(t *testing.T) (types.NodeId, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := types.NodeIdFromBytes(pub)
	require.NoError(t, err)
	return id, pub, priv
}

func findSendEnvelope(t *testing.T, effects []Effect) (SendEnvelope, bool) {
	t.Helper()
	for _, e := range effects {
		if se, ok := e.(SendEnvelope); ok {
			return se, true
		}
	}
	return SendEnvelope{}, false
}

func TestSendMessageToSelfDeliversLocally(t *testing.T) {
	s, self, _ := newNode(t)
	effects, err := s.SendMessage(self, nil, []byte("hi"), 1000)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	deliver, ok := effects[0].(DeliverMessageEffect)
	require.True(t, ok)
	require.Equal(t, []byte("hi"), deliver.Message.Payload)
}

func TestSendMessageDirectFreshKnownSendsEnvelope(t *testing.T) {
	s, _, _ := newNode(t)
	peer, peerPub, _ := newPeer(t)

	s.AddPeer(peer)
	s.Heartbeat.RecordHeartbeat(peer, 1000, 1000)

	effects, err := s.SendMessage(peer, peerPub, []byte("hi"), 1000)
	require.NoError(t, err)
	se, ok := findSendEnvelope(t, effects)
	require.True(t, ok)
	require.Equal(t, peer, se.Envelope.To)
}

func TestSendMessageWithNoRouteStoresAsBackup(t *testing.T) {
	s, _, _ := newNode(t)
	peer, peerPub, _ := newPeer(t)

	effects, err := s.SendMessage(peer, peerPub, []byte("undeliverable"), 1000)
	require.NoError(t, err)
	require.Equal(t, 1, s.Backup.Len())

	var sawBackupStored bool
	for _, e := range effects {
		if emit, ok := e.(EmitEffect); ok && emit.Event.BackupStored != nil {
			sawBackupStored = true
		}
	}
	require.True(t, sawBackupStored)
}

func TestIncomingBackupStoreAcksReplicate(t *testing.T) {
	replica, _, _ := newNode(t)
	originator, originatorPub, originatorPriv := newPeer(t)
	recipient, _, _ := newPeer(t)
	_ = originatorPub

	env, err := envelope.NewBuilder("env-1", originator, recipient, types.MessageTypeChat, []byte("payload"), 1000).
		Sign(originatorPriv)
	require.NoError(t, err)

	payload, err := msgpack.Marshal(backup.ReplicationPayload{Envelope: env, TTLMs: backup.DefaultTTLMs})
	require.NoError(t, err)

	effects := replica.handleBackupStore(payload, originator, 1000)
	require.Equal(t, 1, replica.Backup.Len())

	se, ok := findSendEnvelope(t, effects)
	require.True(t, ok)
	require.Equal(t, types.MessageTypeBackupReplicateAck, se.Envelope.MsgType)
	require.Equal(t, originator, se.Envelope.To)
}

func TestHandleBackupReplicateAckConfirmsReplica(t *testing.T) {
	originator, _, _ := newNode(t)
	recipient, recipientPub, _ := newPeer(t)
	replica, _, _ := newPeer(t)

	originator.AddPeer(replica)
	originator.Roles.RecordRelaySuccess(replica, 128, 1000)

	effects, err := originator.SendMessage(recipient, recipientPub, []byte("x"), 1000)
	require.NoError(t, err)
	se, ok := findSendEnvelope(t, effects)
	require.True(t, ok)
	require.Equal(t, types.MessageTypeBackupStore, se.Envelope.MsgType)
	require.Equal(t, replica, se.Envelope.To)

	var store backup.ReplicationPayload
	require.NoError(t, msgpack.Unmarshal(se.Envelope.Payload, &store))

	ackEffects := originator.handleBackupReplicateAck(mustMarshal(t, backup.ReplicateAck{EnvelopeID: store.Envelope.ID}), replica)
	require.Empty(t, ackEffects)
	// The ack already recorded replica, so one more holder reaches
	// ReplicationThreshold.
	second, _, _ := newPeer(t)
	require.True(t, originator.Backup.ConfirmReplica(store.Envelope.ID, second))
}

func TestBackupQueryAndDeliverRoundTrip(t *testing.T) {
	holder, _, _ := newNode(t)
	recipient, _, recipientPriv := newPeer(t)
	sender, senderPub, senderPriv := newPeer(t)
	_ = senderPub

	env, err := envelope.NewBuilder("env-2", sender, recipient, types.MessageTypeChat, []byte("buffered"), 1000).
		Sign(senderPriv)
	require.NoError(t, err)
	holder.Backup.StoreReplica(env, backup.DefaultTTLMs, 1000)

	queryPayload := mustMarshal(t, backup.QueryPayload{Recipient: recipient})
	effects := holder.handleBackupQuery(queryPayload, recipient, 2000)
	se, ok := findSendEnvelope(t, effects)
	require.True(t, ok)
	require.Equal(t, types.MessageTypeBackupQueryResponse, se.Envelope.MsgType)

	recipientState := New(recipient, recipientPriv, DefaultConfig(), 1000)
	responseEffects := recipientState.handleBackupQueryResponse(se.Envelope.Payload, holder.Self, 2000)

	var sawDeliver, sawConfirm bool
	for _, e := range responseEffects {
		switch eff := e.(type) {
		case DeliverMessageEffect:
			sawDeliver = true
			require.Equal(t, []byte("buffered"), eff.Message.Payload)
		case SendEnvelope:
			if eff.Envelope.MsgType == types.MessageTypeBackupConfirmDelivery {
				sawConfirm = true
			}
		}
	}
	require.True(t, sawDeliver)
	require.True(t, sawConfirm)
}

func TestHandleBackupConfirmDeliveryMarksDelivered(t *testing.T) {
	holder, _, _ := newNode(t)
	sender, _, senderPriv := newPeer(t)
	recipient, _, _ := newPeer(t)

	env, err := envelope.NewBuilder("env-3", sender, recipient, types.MessageTypeChat, []byte("x"), 1000).
		Sign(senderPriv)
	require.NoError(t, err)
	holder.Backup.StoreReplica(env, backup.DefaultTTLMs, 1000)

	confirmPayload := mustMarshal(t, backup.ConfirmDeliveryPayload{EnvelopeID: env.ID})
	effects := holder.handleBackupConfirmDelivery(confirmPayload)
	require.Empty(t, effects)

	entries := holder.Backup.DeliverBuffered(recipient)
	require.Empty(t, entries)
}

func TestCreateGroupRejectsOverMaxMembers(t *testing.T) {
	s, _, _ := newNode(t)
	s.cfg.MaxGroupMembers = 2

	var members []types.NodeId
	for i := 0; i < 3; i++ {
		id, _, _ := newPeer(t)
		members = append(members, id)
	}

	_, _, err := s.CreateGroup(members, 1000)
	require.Error(t, err)
}

func TestGetRoleMetricsUnknownPeer(t *testing.T) {
	s, _, _ := newNode(t)
	peer, _, _ := newPeer(t)

	_, ok := s.GetRoleMetrics(peer, 1000)
	require.False(t, ok)
}

func TestSendRawBypassesRouting(t *testing.T) {
	s, _, _ := newNode(t)
	peer, _, _ := newPeer(t)

	effects, err := s.SendRaw(peer, []byte("raw"), 1000)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	st, ok := effects[0].(SendEnvelopeTo)
	require.True(t, ok)
	require.Equal(t, peer, st.Target)
	require.Equal(t, []byte("raw"), st.Envelope.Payload)
}

func TestTTLMonotonicAcrossRelay(t *testing.T) {
	relay, relaySelf, _ := newNode(t)
	sender, _, senderPriv := newPeer(t)
	dest, _, _ := newPeer(t)

	env, err := envelope.NewBuilder("env-4", sender, dest, types.MessageTypeChat, []byte("hop"), 1000).
		TTL(types.MaxTTL).
		Via([]types.NodeId{relaySelf}).
		Sign(senderPriv)
	require.NoError(t, err)
	originalTTL := env.TTL

	raw, err := env.ToBytes()
	require.NoError(t, err)

	effects := relay.IncomingEnvelope(raw, 1000)
	se, ok := findSendEnvelope(t, effects)
	require.True(t, ok)
	require.Less(t, se.Envelope.TTL, originalTTL)
}

func TestIncomingEnvelopeRejectsOversize(t *testing.T) {
	s, _, _ := newNode(t)
	s.cfg.MaxMessageSize = 4
	effects := s.IncomingEnvelope(make([]byte, 64), 1000)
	require.Len(t, effects, 1)
	emit, ok := effects[0].(EmitEffect)
	require.True(t, ok)
	require.NotNil(t, emit.Event.Error)
}

func TestHeartbeatDrivesLiveness(t *testing.T) {
	s, _, _ := newNode(t)
	peer, _, _ := newPeer(t)

	require.Equal(t, discovery.Offline, s.Heartbeat.Liveness(peer, 1000))
	s.Heartbeat.RecordHeartbeat(peer, 1000, 1000)
	require.Equal(t, discovery.Fresh, s.Heartbeat.Liveness(peer, 1000))
}

func TestGroupMessageMemberToHubToMemberRoundTrip(t *testing.T) {
	hub, hubID, _ := newNode(t)
	memberAID, _, memberAPriv := newPeer(t)
	memberBID, _, memberBPriv := newPeer(t)

	info := hub.Groups.Create([]types.NodeId{memberAID, memberBID}, 1000)

	memberA := New(memberAID, memberAPriv, DefaultConfig(), 1000)
	memberA.Groups.Join(*info)

	memberB := New(memberBID, memberBPriv, DefaultConfig(), 1000)
	memberB.Groups.Join(*info)

	sendEffects, err := memberA.SendGroupMessage(info.ID, []byte("hello"), 1000)
	require.NoError(t, err)
	toHub, ok := findSendEnvelope(t, sendEffects)
	require.True(t, ok)
	require.Equal(t, memberAID, toHub.Envelope.From)
	require.Equal(t, hubID, toHub.Envelope.To)

	rawToHub, err := toHub.Envelope.ToBytes()
	require.NoError(t, err)

	hubEffects := hub.IncomingEnvelope(rawToHub, 1000)
	toMemberB, ok := findSendEnvelope(t, hubEffects)
	require.True(t, ok, "hub must fan the message back out to the other member")
	require.Equal(t, hubID, toMemberB.Envelope.From, "fanned envelope must be signed by, and addressed From, the hub")
	require.Equal(t, memberBID, toMemberB.Envelope.To)
	require.NoError(t, toMemberB.Envelope.VerifySignature(), "fanned envelope must verify against its own From")

	rawToMemberB, err := toMemberB.Envelope.ToBytes()
	require.NoError(t, err)

	memberBEffects := memberB.IncomingEnvelope(rawToMemberB, 1000)
	var delivered *DeliveredMessage
	for _, e := range memberBEffects {
		if de, ok := e.(DeliverMessageEffect); ok {
			delivered = &de.Message
			break
		}
	}
	require.NotNil(t, delivered, "member B must receive a delivered message effect")
	require.Equal(t, memberAID, delivered.From, "delivered message must attribute the original author, not the hub")
	require.Equal(t, []byte("hello"), delivered.Payload)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return b
}
