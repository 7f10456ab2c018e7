package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/types"
)

func nodeID(b byte) types.NodeId {
	var id types.NodeId
	id[0] = b
	return id
}

func TestHeartbeatTracker_LivenessDerivation(t *testing.T) {
	h := discovery.NewHeartbeatTracker(1000, 5000, 100)
	peer := nodeID(1)

	// Never heard from -> Offline.
	require.Equal(t, discovery.Offline, h.Liveness(peer, 10_000))

	h.RecordHeartbeat(peer, 10_000, 10_000)
	require.Equal(t, discovery.Fresh, h.Liveness(peer, 10_500))
	require.Equal(t, discovery.Stale, h.Liveness(peer, 12_000))
	require.Equal(t, discovery.Offline, h.Liveness(peer, 16_000))
}

func TestHeartbeatTracker_FutureDriftClamped(t *testing.T) {
	h := discovery.NewHeartbeatTracker(1000, 5000, 100)
	peer := nodeID(2)

	h.RecordHeartbeat(peer, 50_000, 10_000) // heardAt far in the future
	last, ok := h.LastHeard(peer)
	require.True(t, ok)
	require.Equal(t, int64(10_000), last)
}

func TestHeartbeatTracker_RecordsOnlyForwardProgress(t *testing.T) {
	h := discovery.NewHeartbeatTracker(1000, 5000, 100)
	peer := nodeID(3)

	h.RecordHeartbeat(peer, 5000, 5000)
	h.RecordHeartbeat(peer, 4000, 5000) // stale report, should not regress
	last, _ := h.LastHeard(peer)
	require.Equal(t, int64(5000), last)
}

func TestEphemeralSubnetManager_ClustersAndDissolves(t *testing.T) {
	m := discovery.NewEphemeralSubnetManager(1000)
	a, b := nodeID(1), nodeID(2)

	m.RecordEdge(a, b, 1000)
	require.ElementsMatch(t, []types.NodeId{b}, m.Neighbors(a, 1000))
	require.ElementsMatch(t, []types.NodeId{a}, m.Neighbors(b, 1000))

	events := m.DissolveIdleEdges(3000)
	require.NotEmpty(t, events)
	require.Empty(t, m.Neighbors(a, 3000))
}

func TestDiscovery_PublishAndLookupRoundtrip(t *testing.T) {
	d := discovery.NewMemoryDiscovery()
	id := nodeID(9)

	_, found, err := d.Lookup(id)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, d.Publish(discovery.NodeAddr{NodeID: id, Addresses: []string{"127.0.0.1:9000"}}))

	addr, found, err := d.Lookup(id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, id, addr.NodeID)
	require.Equal(t, []string{"127.0.0.1:9000"}, addr.Addresses)
}

func TestDhtKey_Is20BytesAndStable(t *testing.T) {
	id := nodeID(5)
	k1 := discovery.DhtKey(id)
	k2 := discovery.DhtKey(id)
	require.Equal(t, k1, k2)
	require.Len(t, k1, 20)
}
