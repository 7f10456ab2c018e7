// SPDX-License-Identifier: LGPL-3.0-or-later

package executor

import (
	"sync"

	"github.com/tom-mesh/tom-protocol/types"
)

// MockTransport is a MockTransport for tests, grounded on the teacher's
// pkg/agent/transport.MockTransport: a SendFunc hook plus a captured
// history of what was sent, safe for concurrent use.
type MockTransport struct {
	// SendFunc is called for every SendRaw, if set. A nil SendFunc means
	// every send succeeds.
	SendFunc func(target types.NodeId, data []byte) error

	// Peers is returned verbatim by ConnectedPeers.
	Peers []types.NodeId

	mu   sync.Mutex
	sent []SentMessage
}

// SentMessage records one captured SendRaw call for test assertions.
type SentMessage struct {
	Target types.NodeId
	Data   []byte
}

// SendRaw implements Transport.
func (m *MockTransport) SendRaw(target types.NodeId, data []byte) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{Target: target, Data: data})
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(target, data)
	}
	return nil
}

// ConnectedPeers implements Transport.
func (m *MockTransport) ConnectedPeers() []types.NodeId {
	return m.Peers
}

// Sent returns every message captured so far, in send order.
func (m *MockTransport) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset clears captured history, leaving Peers/SendFunc untouched.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}
