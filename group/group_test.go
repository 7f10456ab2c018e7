package group_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/group"
	"github.com/tom-mesh/tom-protocol/types"
)

func genNodeID(t *testing.T) types.NodeId {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := types.NodeIdFromBytes(pub)
	require.NoError(t, err)
	return id
}

func TestManager_CreateAndMembership(t *testing.T) {
	owner := genNodeID(t)
	member1 := genNodeID(t)
	member2 := genNodeID(t)

	m := group.NewManager(owner)
	info := m.Create([]types.NodeId{member1, member2}, 1000)

	require.Equal(t, owner, info.Hub)
	require.Equal(t, uint64(0), info.HubEpoch)
	require.Len(t, info.Members, 3)
	require.Equal(t, group.RoleOwner, info.Members[owner])
	require.Equal(t, group.RoleMember, info.Members[member1])
}

func TestManager_LeaveRemovesMember(t *testing.T) {
	owner := genNodeID(t)
	member := genNodeID(t)
	m := group.NewManager(owner)
	info := m.Create([]types.NodeId{member}, 0)

	memberMgr := group.NewManager(member)
	memberMgr.Join(*info)
	require.NoError(t, memberMgr.Leave(info.ID, group.LeaveVoluntary))

	_, ok := memberMgr.Get(info.ID)
	require.False(t, ok)
}

// Among live Relay members, spec §4.4 picks the lowest NodeId outright —
// score is not a factor. This pins down the lower-scoring relay winning
// over the higher-scoring one whenever its NodeId sorts first, which is
// what distinguishes "lowest NodeId among relays" from "highest score
// among relays with a NodeId tie-break".
func TestElectHub_PicksLowestNodeIDAmongRelaysRegardlessOfScore(t *testing.T) {
	owner := genNodeID(t)
	relayA := genNodeID(t)
	relayB := genNodeID(t)
	peerOnly := genNodeID(t)

	lowest, highest := relayA, relayB
	if bytesLess(relayB, relayA) {
		lowest, highest = relayB, relayA
	}

	members := map[types.NodeId]group.MemberRole{
		owner:     group.RoleOwner,
		relayA:    group.RoleMember,
		relayB:    group.RoleMember,
		peerOnly:  group.RoleMember,
	}

	isLive := func(types.NodeId) bool { return true }
	isRelay := func(id types.NodeId) bool { return id == relayA || id == relayB }
	scoreOf := func(id types.NodeId) float64 {
		if id == highest {
			return 100
		}
		return 0 // the lowest-NodeId relay has the worse score
	}

	result, ok := group.ElectHub(members, 3, group.ElectionHubTimeout, isLive, isRelay, scoreOf)
	require.True(t, ok)
	require.Equal(t, lowest, result.NewHub)
	require.Equal(t, uint64(4), result.Epoch)
}

func TestElectHub_FallsBackToHighestScoreWhenNoRelay(t *testing.T) {
	a := genNodeID(t)
	b := genNodeID(t)
	members := map[types.NodeId]group.MemberRole{a: group.RoleOwner, b: group.RoleMember}

	isLive := func(types.NodeId) bool { return true }
	isRelay := func(types.NodeId) bool { return false }
	scoreOf := func(id types.NodeId) float64 {
		if id == a {
			return 1
		}
		return 1 // tie -> lowest NodeId wins
	}

	result, ok := group.ElectHub(members, 0, group.ElectionHubStepDown, isLive, isRelay, scoreOf)
	require.True(t, ok)

	var expected types.NodeId
	if bytesLess(a, b) {
		expected = a
	} else {
		expected = b
	}
	require.Equal(t, expected, result.NewHub)
}

func bytesLess(a, b types.NodeId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestManager_ApplyMigrationOnlyAcceptsNewerEpoch(t *testing.T) {
	owner := genNodeID(t)
	newHub := genNodeID(t)
	m := group.NewManager(owner)
	info := m.Create(nil, 0)
	info.HubEpoch = 5

	stale := group.ElectionResult{NewHub: newHub, Epoch: 5, Reason: group.ElectionHubTimeout}
	require.False(t, m.ApplyMigration(info.ID, stale))

	fresh := group.ElectionResult{NewHub: newHub, Epoch: 6, Reason: group.ElectionHubTimeout}
	require.True(t, m.ApplyMigration(info.ID, fresh))

	updated, _ := m.Get(info.ID)
	require.Equal(t, newHub, updated.Hub)
	require.Equal(t, uint64(6), updated.HubEpoch)
}

func TestFanOut_OneEnvelopePerOtherMember(t *testing.T) {
	owner := genNodeID(t)
	member1 := genNodeID(t)
	member2 := genNodeID(t)

	info := group.Info{
		ID: group.NewGroupID(),
		Members: map[types.NodeId]group.MemberRole{
			owner: group.RoleOwner, member1: group.RoleMember, member2: group.RoleMember,
		},
	}

	n := 0
	envs := group.FanOut(info, owner, owner, types.MessageTypeGroupMessage, []byte("hi"), 1000, func(types.NodeId) string {
		n++
		return "msg-" + string(rune('0'+n))
	})

	require.Len(t, envs, 2)
	for _, e := range envs {
		require.Equal(t, owner, e.From)
		require.NotEqual(t, owner, e.To)
	}
}
