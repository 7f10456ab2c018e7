// SPDX-License-Identifier: LGPL-3.0-or-later

// Package executor is the single I/O component of the protocol (spec
// §4.6, §9): it consumes the Effect slices produced by the pure
// runtime.State handlers and performs the corresponding network sends,
// channel deliveries, and event emissions. Nothing outside this package
// touches a socket or a goroutine-facing channel on the protocol's
// behalf.
package executor

import "github.com/tom-mesh/tom-protocol/types"

// Transport is the network abstraction Execute sends envelopes through.
// Implementations (wstransport.Transport, a QUIC transport, a test
// double) are free to use whatever wire framing they like underneath;
// the executor only ever hands them already-serialized envelope bytes.
type Transport interface {
	// SendRaw delivers data to target. A non-nil error means the executor
	// should treat the send as failed (triggering SendWithBackupFallback's
	// OnFailure branch, if any).
	SendRaw(target types.NodeId, data []byte) error

	// ConnectedPeers lists peers currently reachable by a direct
	// connection. Execute does not call it; internal/node uses it for the
	// transport health check.
	ConnectedPeers() []types.NodeId
}
