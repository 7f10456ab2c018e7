package roles_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/roles"
	"github.com/tom-mesh/tom-protocol/types"
)

func genNodeID(t *testing.T) (types.NodeId, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := types.NodeIdFromBytes(pub)
	require.NoError(t, err)
	return id, priv
}

// sign_and_verify_role_announce
func TestRoleChangeAnnounce_SignAndVerify(t *testing.T) {
	id, priv := genNodeID(t)

	a := roles.RoleChangeAnnounce{NodeID: id, NewRole: roles.RoleRelay, Score: 15.0, Timestamp: 1000}
	a.Sign(priv)
	require.NoError(t, a.Verify())
}

// tampered_announce_fails_verification (property 8)
func TestRoleChangeAnnounce_TamperedFieldsFailVerification(t *testing.T) {
	id, priv := genNodeID(t)

	base := roles.RoleChangeAnnounce{NodeID: id, NewRole: roles.RoleRelay, Score: 15.0, Timestamp: 1000}
	base.Sign(priv)

	roleTampered := base
	roleTampered.NewRole = roles.RolePeer
	require.Error(t, roleTampered.Verify())

	scoreTampered := base
	scoreTampered.Score = 999.0
	require.Error(t, scoreTampered.Verify())

	tsTampered := base
	tsTampered.Timestamp = 2000
	require.Error(t, tsTampered.Verify())
}

// forged_announce_rejected / no promotion without signature (property 9):
// scenario B — attacker signs an announce claiming to be node A.
func TestRoleChangeAnnounce_ForgedSignerRejected(t *testing.T) {
	a, _ := genNodeID(t)
	_, attackerPriv := genNodeID(t)

	forged := roles.RoleChangeAnnounce{NodeID: a, NewRole: roles.RoleRelay, Score: 99.0, Timestamp: 1000}
	forged.Sign(attackerPriv) // signed with the wrong key

	require.Error(t, forged.Verify())

	mgr := roles.NewManager(a, 0)
	// HandleAnnounce must never be called without Verify() succeeding
	// first; simulate the runtime's guard by checking Verify before
	// applying, matching handlers_gossip.go's behavior.
	if forged.Verify() == nil {
		mgr.HandleAnnounce(forged, 1000)
	}
	require.Equal(t, roles.RolePeer, mgr.Role(a))
}

// role_change_full_propagation / gossip_event_dispatches_role_announce
// (scenario C): a legitimate announce updates the receiver's view.
func TestManager_HandleAnnounceAppliesLegitimateRoleChange(t *testing.T) {
	self, _ := genNodeID(t)
	peer, peerPriv := genNodeID(t)

	mgr := roles.NewManager(self, 0)
	require.Equal(t, roles.RolePeer, mgr.Role(peer))

	peerMgr := roles.NewManager(peer, 0)
	announce := peerMgr.BuildAnnounce(1000, peerPriv)
	require.NoError(t, announce.Verify())

	applied := mgr.HandleAnnounce(announce, 1000)
	require.True(t, applied)
	require.Equal(t, announce.NewRole, mgr.Role(peer))
	require.Equal(t, announce.Score, mgr.Score(peer))
}

// demotion_propagates: a later announce with a lower score/demoted role
// overrides the earlier one.
func TestManager_HandleAnnounceRespectsTimestampOrdering(t *testing.T) {
	self, _ := genNodeID(t)
	peer, peerPriv := genNodeID(t)
	mgr := roles.NewManager(self, 0)

	first := roles.RoleChangeAnnounce{NodeID: peer, NewRole: roles.RoleRelay, Score: 60, Timestamp: 1000}
	first.Sign(peerPriv)
	require.True(t, mgr.HandleAnnounce(first, 1000))

	stale := roles.RoleChangeAnnounce{NodeID: peer, NewRole: roles.RolePeer, Score: 1, Timestamp: 500}
	stale.Sign(peerPriv)
	applied := mgr.HandleAnnounce(stale, 1000)
	require.False(t, applied)
	require.Equal(t, roles.RoleRelay, mgr.Role(peer))

	demotion := roles.RoleChangeAnnounce{NodeID: peer, NewRole: roles.RolePeer, Score: 2, Timestamp: 2000}
	demotion.Sign(peerPriv)
	require.True(t, mgr.HandleAnnounce(demotion, 2000))
	require.Equal(t, roles.RolePeer, mgr.Role(peer))
}

func TestManager_EvaluatePromotesAndDemotes(t *testing.T) {
	self, _ := genNodeID(t)
	peer, _ := genNodeID(t)
	mgr := roles.NewManager(self, 0)

	for i := 0; i < 60; i++ {
		mgr.RecordRelaySuccess(peer, 1024, 0)
	}
	action := mgr.Evaluate(peer, 0)
	require.Equal(t, roles.ActionPromoted, action)
	require.Equal(t, roles.RoleRelay, mgr.Role(peer))

	// Large time jump with heavy decay and no further activity drives the
	// score below the demotion threshold.
	action = mgr.Evaluate(peer, 1000*3_600_000)
	require.Equal(t, roles.ActionDemoted, action)
	require.Equal(t, roles.RolePeer, mgr.Role(peer))
}

func TestManager_HighestScoringRelayTieBreaksOnNodeID(t *testing.T) {
	self, _ := genNodeID(t)
	mgr := roles.NewManager(self, 0)

	var a, b types.NodeId
	a[0], b[0] = 1, 2
	mgr.RecordRelaySuccess(a, 1, 0)
	mgr.RecordRelaySuccess(b, 1, 0)
	mgr.Evaluate(a, 0)
	mgr.Evaluate(b, 0)
	// Neither crossed the threshold; force both to Relay via announce to
	// test tie-break deterministically on equal scores.
	mgr.HandleAnnounce(roles.RoleChangeAnnounce{NodeID: a, NewRole: roles.RoleRelay, Score: 10, Timestamp: 1}, 0)
	mgr.HandleAnnounce(roles.RoleChangeAnnounce{NodeID: b, NewRole: roles.RoleRelay, Score: 10, Timestamp: 1}, 0)

	best, ok := mgr.HighestScoringRelay()
	require.True(t, ok)
	require.Equal(t, a, best) // lowest NodeId wins the tie
}
