// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package envelope implements the ToM wire frame: canonical signing bytes,
// sign/verify, and encrypt/decrypt over the opaque payload.
package envelope

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/crypto"
	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/types"
)

// Envelope is the signed, optionally encrypted message frame relayed
// between nodes. See spec §3 for the field table.
type Envelope struct {
	ID        string          `msgpack:"id"`
	From      types.NodeId    `msgpack:"from"`
	To        types.NodeId    `msgpack:"to"`
	Via       []types.NodeId  `msgpack:"via"`
	MsgType   types.MessageType `msgpack:"msg_type"`
	Payload   []byte          `msgpack:"payload"`
	Timestamp int64           `msgpack:"timestamp"`
	Signature []byte          `msgpack:"signature"`
	TTL       uint32          `msgpack:"ttl"`
	Encrypted bool            `msgpack:"encrypted"`
}

// NextHop returns the next relay target: via[0] if the via chain is
// non-empty, else the ultimate recipient.
func (e *Envelope) NextHop() types.NodeId {
	if len(e.Via) > 0 {
		return e.Via[0]
	}
	return e.To
}

// PopVia removes self from the front of the via chain if present, and
// returns whether it was removed.
func (e *Envelope) PopVia(self types.NodeId) bool {
	if len(e.Via) > 0 && e.Via[0] == self {
		e.Via = e.Via[1:]
		return true
	}
	return false
}

// signingBytes computes the canonical, deterministic byte sequence signed
// by Sign and checked by VerifySignature. It covers every field except
// Signature, using little-endian integers and length-prefixed byte/string
// fields. This is intentionally independent of the msgpack codec so that a
// future wire-format change cannot silently alter what gets signed.
func (e *Envelope) signingBytes() []byte {
	var buf bytes.Buffer

	writeLP := func(b []byte) {
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
		buf.Write(lenBuf[:])
		buf.Write(b)
	}

	writeLP([]byte(e.ID))
	buf.Write(e.From[:])
	buf.Write(e.To[:])

	var viaCount [8]byte
	binary.LittleEndian.PutUint64(viaCount[:], uint64(len(e.Via)))
	buf.Write(viaCount[:])
	for _, v := range e.Via {
		buf.Write(v[:])
	}

	var msgType [1]byte
	msgType[0] = byte(e.MsgType)
	buf.Write(msgType[:])

	writeLP(e.Payload)

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(e.Timestamp))
	buf.Write(ts[:])

	var ttl [4]byte
	binary.LittleEndian.PutUint32(ttl[:], e.TTL)
	buf.Write(ttl[:])

	if e.Encrypted {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// SigningBytes exposes the canonical signing bytes for testing and for
// callers that need to verify signatures out-of-band.
func (e *Envelope) SigningBytes() []byte {
	return e.signingBytes()
}

// Sign computes and sets e.Signature over e.signingBytes() using secret.
// secret must be a 64-byte ed25519.PrivateKey whose public half equals
// e.From.
func (e *Envelope) Sign(secret ed25519.PrivateKey) error {
	if len(secret) != ed25519.PrivateKeySize {
		return errs.Crypto("invalid ed25519 private key length")
	}
	e.Signature = ed25519.Sign(secret, e.signingBytes())
	return nil
}

// VerifySignature recomputes signing bytes, parses From as an Ed25519
// public key, and checks Signature against it.
func (e *Envelope) VerifySignature() error {
	if len(e.Signature) != ed25519.SignatureSize {
		return errs.InvalidSignature()
	}
	pub := ed25519.PublicKey(e.From.Bytes())
	if !ed25519.Verify(pub, e.signingBytes(), e.Signature) {
		return errs.InvalidSignature()
	}
	return nil
}

// EncryptPayload replaces e.Payload with the msgpack-encoded
// EncryptedPayload sealed for recipientPub, and sets Encrypted=true. It
// does not sign; callers typically call Sign immediately afterward (see
// EncryptAndSign).
func (e *Envelope) EncryptPayload(plaintext []byte, recipientPub ed25519.PublicKey) error {
	sealed, err := crypto.Encrypt(plaintext, recipientPub)
	if err != nil {
		return err
	}
	encoded, err := msgpack.Marshal(&sealed)
	if err != nil {
		return errs.Serialization(err)
	}
	e.Payload = encoded
	e.Encrypted = true
	return nil
}

// EncryptAndSign encrypts plaintext for recipientPub, then signs the
// resulting ciphertext-bearing envelope with senderSecret. The signature
// covers the ciphertext, never the plaintext.
func (e *Envelope) EncryptAndSign(plaintext []byte, senderSecret ed25519.PrivateKey, recipientPub ed25519.PublicKey) error {
	if err := e.EncryptPayload(plaintext, recipientPub); err != nil {
		return err
	}
	return e.Sign(senderSecret)
}

// DecryptPayload verifies Encrypted is set, parses Payload as an
// EncryptedPayload, and opens it with recipientSecret. On success it
// clears Encrypted and replaces Payload with the plaintext, returning the
// plaintext as well.
func (e *Envelope) DecryptPayload(recipientSecret ed25519.PrivateKey) ([]byte, error) {
	if !e.Encrypted {
		return nil, errs.InvalidEnvelope("payload is not encrypted")
	}
	var sealed crypto.EncryptedPayload
	if err := msgpack.Unmarshal(e.Payload, &sealed); err != nil {
		return nil, errs.Deserialization(err)
	}
	plaintext, err := crypto.Decrypt(sealed, recipientSecret)
	if err != nil {
		return nil, err
	}
	e.Encrypted = false
	e.Payload = plaintext
	return plaintext, nil
}

// Validate checks the structural invariants from spec §3 that do not
// require cryptographic verification.
func (e *Envelope) Validate() error {
	if len(e.Signature) != ed25519.SignatureSize {
		return errs.InvalidEnvelope(fmt.Sprintf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(e.Signature)))
	}
	if e.TTL > types.MaxTTL {
		return errs.InvalidEnvelope(fmt.Sprintf("ttl %d exceeds max %d", e.TTL, types.MaxTTL))
	}
	return nil
}

// Builder constructs an Envelope step by step, mirroring
// build(from,to,type,payload).ttl(n).sign(secret) from spec §4.1.
type Builder struct {
	env Envelope
}

// NewBuilder starts building an envelope with the message id the caller
// passes in (the runtime generates ids deterministically; tests may pass a
// fixed id).
func NewBuilder(id string, from, to types.NodeId, msgType types.MessageType, payload []byte, nowMs int64) *Builder {
	return &Builder{env: Envelope{
		ID:        id,
		From:      from,
		To:        to,
		Via:       nil,
		MsgType:   msgType,
		Payload:   payload,
		Timestamp: nowMs,
		TTL:       types.DefaultTTL,
		Encrypted: false,
	}}
}

// TTL overrides the default TTL.
func (b *Builder) TTL(n uint32) *Builder {
	b.env.TTL = n
	return b
}

// Via sets the relay chain.
func (b *Builder) Via(via []types.NodeId) *Builder {
	b.env.Via = via
	return b
}

// Sign signs the envelope as built so far (plaintext payload) and returns
// it.
func (b *Builder) Sign(secret ed25519.PrivateKey) (Envelope, error) {
	if err := b.env.Sign(secret); err != nil {
		return Envelope{}, err
	}
	return b.env, nil
}

// EncryptAndSign encrypts the builder's current Payload for recipientPub
// and signs the result.
func (b *Builder) EncryptAndSign(senderSecret ed25519.PrivateKey, recipientPub ed25519.PublicKey) (Envelope, error) {
	plaintext := b.env.Payload
	if err := b.env.EncryptAndSign(plaintext, senderSecret, recipientPub); err != nil {
		return Envelope{}, err
	}
	return b.env, nil
}

// Build returns the envelope unsigned (used internally by tests and by
// callers that sign separately).
func (b *Builder) Build() Envelope {
	return b.env
}
