// SPDX-License-Identifier: LGPL-3.0-or-later

// Package wstransport is a reference executor.Transport over WebSocket
// connections, grounded on the teacher's pkg/agent/transport/websocket
// client/server pair: the same persistent-connection-plus-upgrader
// shape, adapted from request/response SecureMessage framing to
// fire-and-forget binary envelope frames addressed by NodeId.
package wstransport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

// ReceiveFunc is invoked for every binary frame received on any
// connection, outbound or inbound. It is expected to decode the frame as
// an envelope and hand it to runtime.State.IncomingEnvelope.
type ReceiveFunc func(data []byte)

// SelfAnnounceFunc builds this node's own signed self-announce frame, on
// demand, for replying to an inbound connection that greeted us with one
// (see acceptLoop).
type SelfAnnounceFunc func() ([]byte, error)

// Transport is a peer-to-peer WebSocket mesh: one persistent outbound
// connection per known peer (dialed via Connect), plus an inbound
// upgrader accepting connections from peers dialing us. It implements
// executor.Transport.
type Transport struct {
	onReceive    ReceiveFunc
	selfAnnounce SelfAnnounceFunc
	dialer       websocket.Dialer
	upgrader     websocket.Upgrader

	mu    sync.RWMutex
	conns map[types.NodeId]*websocket.Conn

	writeTimeout time.Duration
	readTimeout  time.Duration
}

// New creates a Transport that calls onReceive for every frame read off
// any connection (dialed or accepted). selfAnnounce may be nil if the
// node never needs to answer an address-only ConnectAddr greeting (e.g.
// every peer is always added with a known NodeId via Connect).
func New(onReceive ReceiveFunc, selfAnnounce SelfAnnounceFunc) *Transport {
	return &Transport{
		onReceive:    onReceive,
		selfAnnounce: selfAnnounce,
		dialer:       websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:        make(map[types.NodeId]*websocket.Conn),
		writeTimeout: 30 * time.Second,
		readTimeout:  60 * time.Second,
	}
}

// Connect dials peer at url and registers the connection under peer's
// NodeId, starting a read loop that feeds onReceive.
func (t *Transport) Connect(ctx context.Context, peer types.NodeId, url string) error {
	conn, resp, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("wstransport: dial %s failed (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return fmt.Errorf("wstransport: dial %s failed: %w", url, err)
	}
	t.register(peer, conn)
	go t.readLoop(peer, conn)
	return nil
}

// ConnectAddr dials url without knowing the remote peer's NodeId in
// advance (spec §6.5 add_peer_addr(addr)): it writes announceFrame (the
// caller's own signed self-announce) as the first outbound frame, then
// waits for the remote's matching announce to learn its identity before
// registering the connection and starting the normal read loop.
func (t *Transport) ConnectAddr(ctx context.Context, url string, announceFrame []byte) (types.NodeId, error) {
	conn, resp, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return types.NodeId{}, fmt.Errorf("wstransport: dial %s failed (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return types.NodeId{}, fmt.Errorf("wstransport: dial %s failed: %w", url, err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		conn.Close()
		return types.NodeId{}, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, announceFrame); err != nil {
		conn.Close()
		return types.NodeId{}, fmt.Errorf("wstransport: announce to %s failed: %w", url, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		conn.Close()
		return types.NodeId{}, err
	}
	kind, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return types.NodeId{}, fmt.Errorf("wstransport: no reply from %s: %w", url, err)
	}
	if kind != websocket.BinaryMessage {
		conn.Close()
		return types.NodeId{}, fmt.Errorf("wstransport: unexpected non-binary first reply from %s", url)
	}
	env, err := envelope.FromBytes(data)
	if err != nil {
		conn.Close()
		return types.NodeId{}, fmt.Errorf("wstransport: undecodable first reply from %s: %w", url, err)
	}

	peer := env.From
	t.register(peer, conn)
	t.onReceive(data)
	go t.readLoop(peer, conn)
	return peer, nil
}

// Handler returns an http.Handler that upgrades inbound connections.
// Because the peer's NodeId is not known until its first frame (the
// envelope's `from` field), inbound connections are registered lazily on
// first read in acceptLoop.
func (t *Transport) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("wstransport: upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		go t.acceptLoop(conn)
	})
}

// SendRaw implements executor.Transport.
func (t *Transport) SendRaw(target types.NodeId, data []byte) error {
	t.mu.RLock()
	conn, ok := t.conns[target]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wstransport: no connection to %s", target.String())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// ConnectedPeers implements executor.Transport.
func (t *Transport) ConnectedPeers() []types.NodeId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.NodeId, 0, len(t.conns))
	for peer := range t.conns {
		out = append(out, peer)
	}
	return out
}

// Close tears down every registered connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for peer, conn := range t.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(t.conns, peer)
	}
	return firstErr
}

func (t *Transport) register(peer types.NodeId, conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[peer] = conn
}

func (t *Transport) readLoop(peer types.NodeId, conn *websocket.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, peer)
		t.mu.Unlock()
	}()
	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		t.onReceive(data)
	}
}

// acceptLoop reads frames off an inbound connection. It peeks the first
// binary frame's envelope `from` field to learn the dialing peer's NodeId
// and registers the connection under it, so later SendRaw calls addressed
// to that peer reuse this same connection instead of requiring an
// outbound Connect.
func (t *Transport) acceptLoop(conn *websocket.Conn) {
	var peer types.NodeId
	registered := false
	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if registered {
				t.mu.Lock()
				delete(t.conns, peer)
				t.mu.Unlock()
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if !registered {
			if env, err := envelope.FromBytes(data); err == nil {
				peer = env.From
				t.register(peer, conn)
				registered = true
				if env.To.IsZero() && t.selfAnnounce != nil {
					if reply, err := t.selfAnnounce(); err == nil {
						_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
						_ = conn.WriteMessage(websocket.BinaryMessage, reply)
					}
				}
			}
		}
		t.onReceive(data)
	}
}
