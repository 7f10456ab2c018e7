package envelope_test

import (
	"crypto/ed25519"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

func genNodeID(t *testing.T) (types.NodeId, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := types.NodeIdFromBytes(pub)
	require.NoError(t, err)
	return id, pub, priv
}

func randVia(r *rand.Rand, n int) []types.NodeId {
	via := make([]types.NodeId, n)
	for i := range via {
		var id types.NodeId
		r.Read(id[:])
		via[i] = id
	}
	return via
}

// roundtrip_envelope (property 1): from_bytes(to_bytes(E)) == E for empty
// via, up to 5-hop chains, arbitrary payload sizes, any MessageType.
func TestEnvelope_RoundtripVariousShapes(t *testing.T) {
	from, _, fromPriv := genNodeID(t)
	to, _, _ := genNodeID(t)
	r := rand.New(rand.NewSource(7))

	payloadSizes := []int{0, 1, 255, 65536}
	msgTypes := []types.MessageType{
		types.MessageTypeChat, types.MessageTypeAck, types.MessageTypeHeartbeat,
		types.MessageTypeGroupMessage, types.MessageTypeBackupStore, types.MessageTypePeerAnnounce,
	}

	for _, viaLen := range []int{0, 1, 3, 5} {
		for _, size := range payloadSizes {
			for _, mt := range msgTypes {
				payload := make([]byte, size)
				r.Read(payload)

				b := envelope.NewBuilder("msg-1", from, to, mt, payload, 1000)
				b.Via(randVia(r, viaLen))
				env, err := b.Sign(fromPriv)
				require.NoError(t, err)

				wire, err := env.ToBytes()
				require.NoError(t, err)

				decoded, err := envelope.FromBytes(wire)
				require.NoError(t, err)

				require.Equal(t, env, decoded)
			}
		}
	}
}

func TestEnvelope_RoundtripArbitrarySignatureLength(t *testing.T) {
	from, _, _ := genNodeID(t)
	to, _, _ := genNodeID(t)

	for _, sigLen := range []int{0, 1, 64, 128} {
		env := envelope.NewBuilder("msg-x", from, to, types.MessageTypeChat, []byte("hi"), 1).Build()
		env.Signature = make([]byte, sigLen)

		wire, err := env.ToBytes()
		require.NoError(t, err)
		decoded, err := envelope.FromBytes(wire)
		require.NoError(t, err)
		require.Equal(t, env, decoded)
	}
}

// signing_bytes_deterministic (property 2)
func TestEnvelope_SigningBytesDeterministic(t *testing.T) {
	from, _, _ := genNodeID(t)
	to, _, _ := genNodeID(t)

	env := envelope.NewBuilder("abc", from, to, types.MessageTypeChat, []byte("payload"), 42).Build()
	a := env.SigningBytes()
	b := env.SigningBytes()
	require.Equal(t, a, b)
}

// signing_bytes_ignores_signature
func TestEnvelope_SigningBytesIgnoresSignature(t *testing.T) {
	from, _, _ := genNodeID(t)
	to, _, _ := genNodeID(t)

	env := envelope.NewBuilder("abc", from, to, types.MessageTypeChat, []byte("payload"), 42).Build()
	before := env.SigningBytes()
	env.Signature = []byte{1, 2, 3, 4}
	after := env.SigningBytes()
	require.Equal(t, before, after)
}

// sign_verify_roundtrip (property 3): build.sign.verify succeeds; flipping
// any byte of payload breaks it.
func TestEnvelope_SignVerifyRoundtripAndTamperDetection(t *testing.T) {
	from, _, fromPriv := genNodeID(t)
	to, _, _ := genNodeID(t)

	for ttl := uint32(0); ttl <= types.MaxTTL; ttl++ {
		env, err := envelope.NewBuilder("id", from, to, types.MessageTypeChat, []byte("payload-data"), 10).
			TTL(ttl).Sign(fromPriv)
		require.NoError(t, err)
		require.NoError(t, env.VerifySignature())

		tampered := env
		tampered.Payload = append([]byte(nil), env.Payload...)
		tampered.Payload[0] ^= 0xFF
		require.Error(t, tampered.VerifySignature())
	}
}

func TestEnvelope_FromMustEqualSigner(t *testing.T) {
	from, _, fromPriv := genNodeID(t)
	to, _, _ := genNodeID(t)
	impostor, _, _ := genNodeID(t)

	env, err := envelope.NewBuilder("id", from, to, types.MessageTypeChat, []byte("x"), 1).Sign(fromPriv)
	require.NoError(t, err)

	env.From = impostor
	require.Error(t, env.VerifySignature())
}

func TestEnvelope_InvalidSignatureLength(t *testing.T) {
	from, _, _ := genNodeID(t)
	to, _, _ := genNodeID(t)

	env := envelope.NewBuilder("id", from, to, types.MessageTypeChat, []byte("x"), 1).Build()
	env.Signature = make([]byte, 10)
	require.Error(t, env.VerifySignature())
	require.Error(t, env.Validate())
}

// encrypt_and_sign / decrypt_payload roundtrip (property 4/5/6/7 at the
// envelope layer)
func TestEnvelope_EncryptAndSignDecryptRoundtrip(t *testing.T) {
	from, _, fromPriv := genNodeID(t)
	to, toPub, toPriv := genNodeID(t)

	plaintext := []byte("this is a secret chat message")
	env, err := envelope.NewBuilder("id", from, to, types.MessageTypeChat, plaintext, 5).
		EncryptAndSign(fromPriv, toPub)
	require.NoError(t, err)
	require.True(t, env.Encrypted)
	require.NoError(t, env.VerifySignature())

	got, err := env.DecryptPayload(toPriv)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
	require.False(t, env.Encrypted)
	require.Equal(t, plaintext, env.Payload)
}

func TestEnvelope_DecryptWrongKeyFails(t *testing.T) {
	from, _, fromPriv := genNodeID(t)
	to, toPub, _ := genNodeID(t)
	_, _, wrongPriv := genNodeID(t)

	env, err := envelope.NewBuilder("id", from, to, types.MessageTypeChat, []byte("secret"), 1).
		EncryptAndSign(fromPriv, toPub)
	require.NoError(t, err)

	_, err = env.DecryptPayload(wrongPriv)
	require.Error(t, err)
}

// TTL monotonicity (property 10) is exercised at the runtime routing layer
// (see runtime package tests); the envelope itself just carries TTL.
func TestEnvelope_NextHopAndPopVia(t *testing.T) {
	from, _, _ := genNodeID(t)
	to, _, _ := genNodeID(t)
	hop1, _, _ := genNodeID(t)
	hop2, _, _ := genNodeID(t)

	env := envelope.NewBuilder("id", from, to, types.MessageTypeChat, nil, 1).
		Via([]types.NodeId{hop1, hop2}).Build()

	require.Equal(t, hop1, env.NextHop())
	require.True(t, env.PopVia(hop1))
	require.Equal(t, []types.NodeId{hop2}, env.Via)
	require.Equal(t, hop2, env.NextHop())

	emptyVia := envelope.NewBuilder("id2", from, to, types.MessageTypeChat, nil, 1).Build()
	require.Equal(t, to, emptyVia.NextHop())
}
