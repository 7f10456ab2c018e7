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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tom-mesh/tom-protocol/config"
)

var configDir string
var configEnv string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Load, validate, and print the effective configuration",
	Long: `Loads the configuration the same way start would (environment
substitution, <env>.yaml / default.yaml / config.yaml fallback), runs
Validate against it, and prints the resolved document as JSON.

Exits non-zero if Validate reports any "error"-level issue.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configDir, "config-dir", "d", "config", "Directory holding <environment>.yaml/default.yaml/config.yaml")
	configCmd.Flags().StringVarP(&configEnv, "environment", "e", "", "Override the detected environment")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: configEnv})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	issues := config.Validate(cfg)
	hasError := false
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", issue.Level, issue.Field, issue.Message)
		if issue.Level == "error" {
			hasError = true
		}
	}

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling for display: %w", err)
	}
	fmt.Println(string(out))

	if hasError {
		return fmt.Errorf("config: validation failed")
	}
	return nil
}
