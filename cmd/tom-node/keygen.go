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

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tom-mesh/tom-protocol/types"
)

var keygenOutput string
var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new node identity key",
	Long: `Generate an Ed25519 signing key for this node's identity and write its
32-byte seed to the given file (mode 0600). The node's NodeId is derived
from the corresponding public key (spec §2.1) and printed on success.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "node.key", "Path to write the key seed to")
	keygenCmd.Flags().BoolVarP(&keygenForce, "force", "f", false, "Overwrite an existing key file")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if !keygenForce {
		if _, err := os.Stat(keygenOutput); err == nil {
			return fmt.Errorf("keygen: %s already exists (use --force to overwrite)", keygenOutput)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("keygen: generating key: %w", err)
	}

	if dir := filepath.Dir(keygenOutput); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("keygen: creating directory: %w", err)
		}
	}
	seed := priv.Seed()
	if err := os.WriteFile(keygenOutput, seed, 0o600); err != nil {
		return fmt.Errorf("keygen: writing %s: %w", keygenOutput, err)
	}

	self, err := types.NodeIdFromBytes(pub)
	if err != nil {
		return fmt.Errorf("keygen: deriving node id: %w", err)
	}

	fmt.Printf("wrote key: %s\nnode id:   %s\n", keygenOutput, self.String())
	return nil
}

// loadKey reads a 32-byte Ed25519 seed from path and expands it into a
// full private key.
func loadKey(path string) (ed25519.PrivateKey, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading key %s: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("loading key %s: expected %d-byte seed, got %d", path, ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
