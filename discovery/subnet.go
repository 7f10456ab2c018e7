package discovery

import "github.com/tom-mesh/tom-protocol/types"

// EphemeralSubnetManager clusters peers that have recently communicated
// with each other into short-lived subnets, used to bias relay and backup
// target selection toward peers already observed to be reachable from one
// another. It holds no goroutines; state changes only on RecordEdge/DissolveIdleEdges.
type EphemeralSubnetManager struct {
	edges       map[types.NodeId]map[types.NodeId]int64 // last-seen per undirected edge
	idleTimeout int64
}

// NewEphemeralSubnetManager creates a manager that dissolves an edge once
// idleTimeoutMs has elapsed with no communication.
func NewEphemeralSubnetManager(idleTimeoutMs int64) *EphemeralSubnetManager {
	return &EphemeralSubnetManager{
		edges:       make(map[types.NodeId]map[types.NodeId]int64),
		idleTimeout: idleTimeoutMs,
	}
}

// RecordEdge notes that a and b exchanged traffic at nowMs.
func (m *EphemeralSubnetManager) RecordEdge(a, b types.NodeId, nowMs int64) {
	if a == b {
		return
	}
	m.touch(a, b, nowMs)
	m.touch(b, a, nowMs)
}

func (m *EphemeralSubnetManager) touch(from, to types.NodeId, nowMs int64) {
	peers, ok := m.edges[from]
	if !ok {
		peers = make(map[types.NodeId]int64)
		m.edges[from] = peers
	}
	peers[to] = nowMs
}

// Neighbors returns the peers currently clustered with node (edges not yet
// idle-timed-out as of nowMs).
func (m *EphemeralSubnetManager) Neighbors(node types.NodeId, nowMs int64) []types.NodeId {
	peers, ok := m.edges[node]
	if !ok {
		return nil
	}
	out := make([]types.NodeId, 0, len(peers))
	for peer, lastSeen := range peers {
		if nowMs-lastSeen < m.idleTimeout {
			out = append(out, peer)
		}
	}
	return out
}

// DissolveIdleEdges removes edges idle for at least the timeout,
// returning SubnetEvents for any node whose neighbor set became empty as a
// result.
func (m *EphemeralSubnetManager) DissolveIdleEdges(nowMs int64) []SubnetEvent {
	var events []SubnetEvent
	for node, peers := range m.edges {
		hadAny := len(peers) > 0
		for peer, lastSeen := range peers {
			if nowMs-lastSeen >= m.idleTimeout {
				delete(peers, peer)
			}
		}
		if hadAny && len(peers) == 0 {
			events = append(events, SubnetEvent{
				Formed: false,
				Reason: DissolveIdle,
				Subnet: SubnetInfo{Members: []types.NodeId{node}, FormedAt: nowMs},
			})
		}
	}
	return events
}
