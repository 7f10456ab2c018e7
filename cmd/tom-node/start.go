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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tom-mesh/tom-protocol/config"
	"github.com/tom-mesh/tom-protocol/internal/logger"
	"github.com/tom-mesh/tom-protocol/internal/node"
)

var startConfigDir string
var startEnv string
var startKeyFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a node against a configuration directory",
	Long: `Loads configuration, loads or expects a node identity key, dials any
configured bootstrap peers, and serves the node's WebSocket mesh
endpoint, metrics, and health-check HTTP routes until interrupted.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVarP(&startConfigDir, "config-dir", "d", "config", "Directory holding <environment>.yaml/default.yaml/config.yaml")
	startCmd.Flags().StringVarP(&startEnv, "environment", "e", "", "Override the detected environment")
	startCmd.Flags().StringVarP(&startKeyFile, "key-file", "k", "", "Override the configured node.key_file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: startConfigDir, Environment: startEnv})
	if err != nil {
		return fmt.Errorf("start: loading config: %w", err)
	}
	if issues := config.Validate(cfg); len(issues) > 0 {
		for _, issue := range issues {
			if issue.Level == "error" {
				return fmt.Errorf("start: invalid config: %s: %s", issue.Field, issue.Message)
			}
		}
	}

	keyFile := startKeyFile
	if keyFile == "" && cfg.Node != nil {
		keyFile = cfg.Node.KeyFile
	}
	if keyFile == "" {
		return fmt.Errorf("start: no node.key_file configured; pass --key-file or run `tom-node keygen`")
	}
	secret, err := loadKey(keyFile)
	if err != nil {
		return err
	}

	log := logger.GetDefaultLogger()

	n, err := node.New(cfg, secret, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	log.Info("node identity loaded", logger.String("node_id", n.Self().String()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Node != nil {
		for _, addr := range cfg.Node.BootstrapPeers {
			peer, err := n.AddPeerAddr(ctx, addr)
			if err != nil {
				log.Warn("bootstrap dial failed", logger.String("addr", addr), logger.Error(err))
				continue
			}
			log.Info("bootstrap peer connected", logger.String("addr", addr), logger.String("node_id", peer.String()))
		}
		if len(cfg.Node.BootstrapPeers) > 0 {
			n.RequestBackupQuery()
		}
	}

	if err := n.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}
