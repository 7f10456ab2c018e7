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
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tom-node",
	Short: "ToM node - a peer in the ToM messaging overlay",
	Long: `tom-node runs one peer of the ToM (Tree of Messages) overlay: a
store-and-forward, liveness-aware mesh that relays end-to-end encrypted
messages between nodes without a central server.

This tool supports:
- Generating a node identity key (keygen)
- Validating and printing effective configuration (config)
- Running a node against a configuration directory (start)`,
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Note: subcommands are registered in their own files:
	// - start.go: startCmd
	// - keygen.go: keygenCmd
	// - config.go: configCmd
}
