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

package crypto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tom-mesh/tom-protocol/errs"
)

// EncryptedPayload is the sealed form of a Chat payload: an ephemeral
// X25519 public key, a random XChaCha20-Poly1305 nonce, and the
// ciphertext+tag. No KDF stage sits between the ECDH shared secret and the
// AEAD key; spec §3 specifies the shared secret is used directly.
type EncryptedPayload struct {
	EphemeralPK [32]byte
	Nonce       [chacha20poly1305.NonceSizeX]byte
	Ciphertext  []byte
}

// Encrypt seals plaintext for recipientEdPub (an Ed25519 public key,
// converted internally to its X25519 form). A fresh ephemeral X25519 key
// pair is generated per call so two encryptions of the same plaintext to
// the same recipient never collide.
func Encrypt(plaintext []byte, recipientEdPub ed25519.PublicKey) (EncryptedPayload, error) {
	var out EncryptedPayload

	recipientXPubBytes, err := Ed25519PubToX25519(recipientEdPub)
	if err != nil {
		return out, errs.Crypto("convert recipient key: " + err.Error())
	}
	recipientXPub, err := ecdh.X25519().NewPublicKey(recipientXPubBytes)
	if err != nil {
		return out, errs.Crypto("invalid recipient x25519 key: " + err.Error())
	}

	ephPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return out, errs.Crypto("generate ephemeral key: " + err.Error())
	}

	shared, err := ephPriv.ECDH(recipientXPub)
	if err != nil {
		return out, errs.Crypto("ecdh: " + err.Error())
	}

	aead, err := chacha20poly1305.NewX(shared)
	if err != nil {
		return out, errs.Crypto("init aead: " + err.Error())
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return out, errs.Crypto("generate nonce: " + err.Error())
	}

	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)

	copy(out.EphemeralPK[:], ephPriv.PublicKey().Bytes())
	out.Nonce = nonce
	out.Ciphertext = ciphertext
	return out, nil
}

// Decrypt opens a payload sealed by Encrypt, using recipientEdPriv (the
// recipient's Ed25519 private key, converted internally to its X25519
// scalar).
func Decrypt(payload EncryptedPayload, recipientEdPriv ed25519.PrivateKey) ([]byte, error) {
	recipientXPrivBytes, err := Ed25519PrivToX25519(recipientEdPriv)
	if err != nil {
		return nil, errs.Crypto("convert recipient key: " + err.Error())
	}
	recipientXPriv, err := ecdh.X25519().NewPrivateKey(recipientXPrivBytes)
	if err != nil {
		return nil, errs.Crypto("invalid recipient x25519 key: " + err.Error())
	}

	ephPub, err := ecdh.X25519().NewPublicKey(payload.EphemeralPK[:])
	if err != nil {
		return nil, errs.Crypto("invalid ephemeral key: " + err.Error())
	}

	shared, err := recipientXPriv.ECDH(ephPub)
	if err != nil {
		return nil, errs.Crypto("ecdh: " + err.Error())
	}

	aead, err := chacha20poly1305.NewX(shared)
	if err != nil {
		return nil, errs.Crypto("init aead: " + err.Error())
	}

	plaintext, err := aead.Open(nil, payload.Nonce[:], payload.Ciphertext, nil)
	if err != nil {
		return nil, errs.Crypto("decryption failed")
	}
	return plaintext, nil
}
