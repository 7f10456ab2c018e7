package roles

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/types"
)

// RoleChangeAnnounce is the signed gossip message broadcast whenever a
// node's local role crosses a promotion or demotion threshold (spec
// §4.5). NodeID signs with its own secret key: the signature proves the
// announce was not forged by a third party.
type RoleChangeAnnounce struct {
	NodeID    types.NodeId `msgpack:"node_id"`
	NewRole   Role         `msgpack:"new_role"`
	Score     float64      `msgpack:"score"`
	Timestamp int64        `msgpack:"timestamp"`
	Signature []byte       `msgpack:"signature"`
}

// signingBytes computes node_id || role_tag(1B) || score_le(f64,8B) ||
// timestamp_le(u64,8B), matching the original implementation's
// discovery/role_sync.rs exactly so cross-implementation verification
// would agree.
func (a *RoleChangeAnnounce) signingBytes() []byte {
	var buf bytes.Buffer
	buf.Write(a.NodeID[:])
	buf.WriteByte(byte(a.NewRole))

	var scoreBuf [8]byte
	binary.LittleEndian.PutUint64(scoreBuf[:], math.Float64bits(a.Score))
	buf.Write(scoreBuf[:])

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(a.Timestamp))
	buf.Write(tsBuf[:])

	return buf.Bytes()
}

// Sign signs the announce with secret, which must be the private key
// belonging to a.NodeID.
func (a *RoleChangeAnnounce) Sign(secret ed25519.PrivateKey) {
	a.Signature = ed25519.Sign(secret, a.signingBytes())
}

// Verify checks that Signature is a valid Ed25519 signature by NodeID over
// signingBytes(). A forged announce (wrong signer) or any tampered field
// fails verification (spec testable property 8 & 9).
func (a *RoleChangeAnnounce) Verify() error {
	if len(a.Signature) != ed25519.SignatureSize {
		return errs.InvalidSignature()
	}
	pub := ed25519.PublicKey(a.NodeID.Bytes())
	if !ed25519.Verify(pub, a.signingBytes(), a.Signature) {
		return errs.InvalidSignature()
	}
	return nil
}

// ToBytes encodes the announce for gossip transmission.
func (a *RoleChangeAnnounce) ToBytes() ([]byte, error) {
	b, err := msgpack.Marshal(a)
	if err != nil {
		return nil, errs.Serialization(err)
	}
	return b, nil
}

// RoleChangeAnnounceFromBytes decodes a gossiped announce.
func RoleChangeAnnounceFromBytes(data []byte) (RoleChangeAnnounce, error) {
	var a RoleChangeAnnounce
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return RoleChangeAnnounce{}, errs.Deserialization(err)
	}
	return a, nil
}
