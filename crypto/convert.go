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

// Package crypto implements the envelope encryption pipeline: converting
// Ed25519 identity keys into X25519 key-agreement keys, then sealing and
// opening payloads with X25519 ECDH + XChaCha20-Poly1305.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

// Ed25519PrivToX25519 turns an Ed25519 private key into the X25519 scalar
// used for ECDH, via the standard RFC 8032 §5.1.5 clamping. NodeIds are
// Ed25519 identity keys; encryption happens over the Montgomery form.
func Ed25519PrivToX25519(priv ed25519.PrivateKey) ([]byte, error) {
	if l := len(priv); l != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: bad ed25519 private key length: %d", l)
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	x := make([]byte, 32)
	copy(x, h[:32])
	return x, nil
}

// Ed25519PubToX25519 turns an Ed25519 public key into the X25519 public key
// via the standard Edwards-to-Montgomery birational map.
func Ed25519PubToX25519(pub ed25519.PublicKey) ([]byte, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("crypto: bad ed25519 public key length: %d", l)
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid ed25519 public key: %w", err)
	}
	return p.BytesMontgomery(), nil
}
