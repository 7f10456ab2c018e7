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

// Package node wires a runtime.State to a live transport, metrics
// collector, and health checker, and drives its tick loop — the part of
// the stack that is allowed to touch a clock, a socket, or a goroutine.
// runtime.State itself never does; this package is where cmd/tom-node's
// process lifecycle actually lives.
package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tom-mesh/tom-protocol/config"
	"github.com/tom-mesh/tom-protocol/executor"
	"github.com/tom-mesh/tom-protocol/executor/wstransport"
	"github.com/tom-mesh/tom-protocol/group"
	"github.com/tom-mesh/tom-protocol/internal/health"
	"github.com/tom-mesh/tom-protocol/internal/logger"
	"github.com/tom-mesh/tom-protocol/internal/metrics"
	"github.com/tom-mesh/tom-protocol/roles"
	"github.com/tom-mesh/tom-protocol/runtime"
	"github.com/tom-mesh/tom-protocol/types"
)

// Node owns the live process wiring around one runtime.State: the
// WebSocket mesh transport, the three application-facing channels, a
// Prometheus collector, and an ops health checker.
type Node struct {
	cfg    *config.Config
	secret ed25519.PrivateKey
	log    logger.Logger

	state     *runtime.State
	transport *wstransport.Transport
	channels  *executor.Channels
	collector *metrics.Collector
	checker   *health.Checker

	tickInterval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	httpSrv *http.Server
}

// New builds a Node for secret's identity using cfg's tunables. nowMs
// seeds the runtime's subsystems.
func New(cfg *config.Config, secret ed25519.PrivateKey, nowMs int64) (*Node, error) {
	pub, ok := secret.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("node: secret key is not ed25519")
	}
	self, err := types.NodeIdFromBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("node: deriving self id: %w", err)
	}

	n := &Node{
		cfg:          cfg,
		secret:       secret,
		log:          logger.GetDefaultLogger(),
		state:        runtime.New(self, secret, cfg.RuntimeConfig(), nowMs),
		channels:     executor.NewChannels(),
		collector:    metrics.Global(),
		checker:      health.NewChecker(5 * time.Second),
		tickInterval: time.Duration(cfg.RuntimeConfig().HeartbeatIntervalMs) * time.Millisecond,
	}
	n.transport = wstransport.New(n.onFrame, n.selfAnnounceFrame)
	n.checker.Register("transport", health.TransportCheck(n.connectedPeerCount, 0))
	n.checker.Register("keystore", health.KeyStoreCheck(func() error {
		if len(secret) != ed25519.PrivateKeySize {
			return fmt.Errorf("node: signing key has wrong size")
		}
		return nil
	}))
	return n, nil
}

// Self returns this node's identity.
func (n *Node) Self() types.NodeId { return n.state.Self }

// Channels exposes the application-facing delivery channels (Messages,
// Statuses, Events) for a consumer to range over.
func (n *Node) Channels() *executor.Channels { return n.channels }

func (n *Node) nowMs() int64 { return time.Now().UnixMilli() }

func (n *Node) execute(effects []runtime.Effect) {
	executor.Execute(effects, n.transport, n.channels)
}

// onFrame is wstransport's ReceiveFunc: every inbound frame, dialed or
// accepted, is handed straight to the runtime core.
func (n *Node) onFrame(data []byte) {
	n.execute(n.state.IncomingEnvelope(data, n.nowMs()))
}

// selfAnnounceFrame builds this node's self-announce envelope on demand,
// for wstransport to reply with when an inbound connection greets us via
// ConnectAddr's address-only bootstrap handshake.
func (n *Node) selfAnnounceFrame() ([]byte, error) {
	env, err := n.state.BuildSelfAnnounce(n.nowMs())
	if err != nil {
		return nil, err
	}
	return env.ToBytes()
}

func (n *Node) connectedPeerCount() int {
	return len(n.transport.ConnectedPeers())
}

// Handler returns the HTTP handler to mount the WebSocket upgrade
// endpoint at.
func (n *Node) Handler() http.Handler { return n.transport.Handler() }

// MetricsHandler returns the Prometheus scrape handler for the process's
// global registry.
func (n *Node) MetricsHandler() http.Handler {
	return metrics.Handler(metrics.GlobalRegistry())
}

// HealthHandler runs every registered check and writes a JSON rollup.
func (n *Node) HealthHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := n.checker.Snapshot(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if snapshot.Status != health.StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	fmt.Fprintf(w, `{"status":%q}`, snapshot.Status)
}

// AddPeer marks peer as directly reachable without dialing (spec §6.5
// add_peer(id) — used once a NodeId is already known, e.g. from gossip).
func (n *Node) AddPeer(peer types.NodeId) {
	n.state.AddPeer(peer)
}

// AddPeerAddr dials addr without knowing the remote peer's NodeId ahead
// of time, bootstrapping identity via a self-announce handshake (spec
// §6.5 add_peer_addr(addr)).
func (n *Node) AddPeerAddr(ctx context.Context, addr string) (types.NodeId, error) {
	announce, err := n.state.BuildSelfAnnounce(n.nowMs())
	if err != nil {
		return types.NodeId{}, err
	}
	frame, err := announce.ToBytes()
	if err != nil {
		return types.NodeId{}, err
	}
	peer, err := n.transport.ConnectAddr(ctx, addr, frame)
	if err != nil {
		return types.NodeId{}, err
	}
	n.state.AddPeer(peer)
	return peer, nil
}

// SendMessage implements send_message(to, bytes) (spec §6.5): looks up
// recipientPub from whatever identity directory the caller maintains
// (the runtime core has no key directory of its own) and routes through
// runtime.State.SendMessage.
func (n *Node) SendMessage(recipient types.NodeId, recipientPub ed25519.PublicKey, plaintext []byte) error {
	effects, err := n.state.SendMessage(recipient, recipientPub, plaintext, n.nowMs())
	n.execute(effects)
	return err
}

// SendRaw implements send_raw(to, bytes) (spec §6.5).
func (n *Node) SendRaw(recipient types.NodeId, data []byte) error {
	effects, err := n.state.SendRaw(recipient, data, n.nowMs())
	n.execute(effects)
	return err
}

// CreateGroup implements create_group(members) (spec §6.5).
func (n *Node) CreateGroup(members []types.NodeId) (group.GroupID, error) {
	id, effects, err := n.state.CreateGroup(members, n.nowMs())
	n.execute(effects)
	if err != nil {
		return group.GroupID{}, err
	}
	n.collector.GroupElections.Inc()
	return id, nil
}

// JoinGroup implements join_group(id) (spec §6.5).
func (n *Node) JoinGroup(groupID group.GroupID, hub types.NodeId) error {
	effects, err := n.state.JoinGroup(groupID, hub, n.nowMs())
	n.execute(effects)
	return err
}

// SendGroupMessage implements send_group_message(group_id, bytes) (spec
// §6.5).
func (n *Node) SendGroupMessage(groupID group.GroupID, body []byte) error {
	effects, err := n.state.SendGroupMessage(groupID, body, n.nowMs())
	n.execute(effects)
	return err
}

// LeaveGroup implements leave_group(id) (spec §6.5).
func (n *Node) LeaveGroup(groupID group.GroupID) error {
	effects, err := n.state.LeaveGroup(groupID, n.nowMs())
	n.execute(effects)
	return err
}

// GetRoleMetrics implements get_role_metrics(id) (spec §6.5).
func (n *Node) GetRoleMetrics(peer types.NodeId) (roles.RoleMetrics, bool) {
	return n.state.GetRoleMetrics(peer, n.nowMs())
}

// GetAllRoleScores implements get_all_role_scores() (spec §6.5).
func (n *Node) GetAllRoleScores() []roles.RoleMetrics {
	return n.state.GetAllRoleScores(n.nowMs())
}

// RequestBackupQuery broadcasts a pull-side backup query to every known
// peer (spec §4.3 step 3), typically issued once on startup after
// AddPeerAddr/AddPeer has repopulated the peer set.
func (n *Node) RequestBackupQuery() {
	n.execute(n.state.RequestBackupQuery(n.nowMs()))
}

// pumpEvents drains Events, updating the metrics collector and logging
// anything noteworthy, until ctx is cancelled.
func (n *Node) pumpEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-n.channels.Events:
			n.recordEvent(evt)
		}
	}
}

func (n *Node) recordEvent(evt runtime.ProtocolEvent) {
	switch {
	case evt.Error != nil:
		n.log.Warn("protocol error", logger.String("error", *evt.Error))
	case evt.RolePromoted != nil:
		n.collector.RolePromotions.Inc()
	case evt.RoleDemoted != nil:
		n.collector.RoleDemotions.Inc()
	case evt.BackupStored != nil:
		n.collector.BackupStored.Inc()
		n.collector.BackupReplicas.Set(float64(n.state.Backup.Len()))
	case evt.BackupExpired != nil:
		n.collector.BackupReplicas.Set(float64(n.state.Backup.Len()))
	}
}

// pumpStatuses drains Statuses so the tracker's delivery-status events
// don't pile up unread; a real embedder would forward these to its own
// UI/API layer instead.
func (n *Node) pumpStatuses(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.channels.Statuses:
		}
	}
}

// pumpMessages drains Messages the same way, logging arrivals. A real
// embedder would forward these to its own delivery callback instead.
func (n *Node) pumpMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.channels.Messages:
			n.log.Debug("message delivered", logger.String("from", msg.From.String()), logger.Int("bytes", len(msg.Payload)))
		}
	}
}

// tickLoop calls runtime.State.Tick on HeartbeatIntervalMs boundaries
// until ctx is cancelled.
func (n *Node) tickLoop(ctx context.Context) {
	interval := n.tickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.execute(n.state.Tick(n.nowMs()))
		}
	}
}

// Run starts the HTTP listener (WebSocket upgrade endpoint, metrics, and
// health), the tick loop, and the channel-draining goroutines under a
// single errgroup so that any one of them failing tears down the rest,
// and blocks until ctx is cancelled or one of them returns an error.
func (n *Node) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/ws", n.Handler())
	mux.HandleFunc("/healthz", n.HealthHandler)
	if n.cfg.Metrics != nil && n.cfg.Metrics.Enabled {
		path := n.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, n.MetricsHandler())
	}

	addr := ""
	if n.cfg.Node != nil {
		addr = n.cfg.Node.ListenAddr
	}
	n.httpSrv = &http.Server{Addr: addr, Handler: mux}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { n.tickLoop(gctx); return nil })
	g.Go(func() error { n.pumpEvents(gctx); return nil })
	g.Go(func() error { n.pumpStatuses(gctx); return nil })
	g.Go(func() error { n.pumpMessages(gctx); return nil })
	g.Go(func() error {
		n.log.Info("tom-node listening", logger.String("addr", addr))
		if err := n.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return n.httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown implements shutdown() (spec §6.5): stops the tick loop and
// channel pumps, tears down the HTTP listener, and closes every
// transport connection.
func (n *Node) Shutdown() error {
	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return n.transport.Close()
}
