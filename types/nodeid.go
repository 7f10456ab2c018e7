// Package types holds the wire-level identifiers and enums shared by every
// ToM protocol component: NodeId, MessageType, and MessageStatus.
package types

import (
	"encoding/base32"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// NodeId is a 32-byte Ed25519 public key identifying a participant.
type NodeId [32]byte

var b32Encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NodeIdFromBytes builds a NodeId from a raw 32-byte Ed25519 public key.
func NodeIdFromBytes(b []byte) (NodeId, error) {
	var id NodeId
	if len(b) != len(id) {
		return id, fmt.Errorf("types: node id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns the raw 32-byte public key.
func (n NodeId) Bytes() []byte {
	out := make([]byte, len(n))
	copy(out, n[:])
	return out
}

// String renders the NodeId as base32 text (no padding), matching the
// "displayed as base-32 text" requirement in the data model.
func (n NodeId) String() string {
	return b32Encoding.EncodeToString(n[:])
}

// ParseNodeId parses the base32 text form produced by String.
func ParseNodeId(s string) (NodeId, error) {
	var id NodeId
	raw, err := b32Encoding.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("types: invalid node id %q: %w", s, err)
	}
	return NodeIdFromBytes(raw)
}

// IsZero reports whether this is the zero-value NodeId (no key assigned).
func (n NodeId) IsZero() bool {
	return n == NodeId{}
}

// EncodeMsgpack implements msgpack.CustomEncoder so NodeIds are carried on
// the wire as raw 32-byte binary, not as their base32 text form.
func (n NodeId) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(n[:])
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (n *NodeId) DecodeMsgpack(dec *msgpack.Decoder) error {
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	id, err := NodeIdFromBytes(b)
	if err != nil {
		return err
	}
	*n = id
	return nil
}
