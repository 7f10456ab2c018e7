package backup_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/backup"
	"github.com/tom-mesh/tom-protocol/envelope"
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

func buildEnv(t *testing.T, from, to types.NodeId, id string) envelope.Envelope {
	t.Helper()
	return envelope.NewBuilder(id, from, to, types.MessageTypeChat, []byte("offline-msg"), 1000).Build()
}

func TestStore_InsertAndRetrieveByRecipient(t *testing.T) {
	from := genNodeID(t)
	to := genNodeID(t)
	s := backup.NewStore()

	env := buildEnv(t, from, to, "m1")
	entry := backup.NewBackupEntry(env, 1000, 0)
	action := s.Insert(entry)
	require.Equal(t, backup.ActionReplicate, action)

	entries := s.GetByRecipient(to)
	require.Len(t, entries, 1)
	require.Equal(t, "m1", entries[0].Envelope.ID)
}

func TestStore_PurgeExpiredRemovesHardCeiling(t *testing.T) {
	from := genNodeID(t)
	to := genNodeID(t)
	s := backup.NewStore()

	env := buildEnv(t, from, to, "m1")
	entry := backup.NewBackupEntry(env, 0, backup.DefaultTTLMs)
	s.Insert(entry)

	removed := s.PurgeExpired(backup.DefaultTTLMs + 1)
	require.Equal(t, []string{"m1"}, removed)
	require.Equal(t, 0, s.Len())
}

func TestStore_DeletionFinalizesAtThreshold(t *testing.T) {
	from := genNodeID(t)
	to := genNodeID(t)
	s := backup.NewStore()

	env := buildEnv(t, from, to, "m1")
	entry := backup.NewBackupEntry(env, 0, 0)
	s.Insert(entry)
	s.MarkDelivered("m1")

	h1 := genNodeID(t)
	h2 := genNodeID(t)
	require.Equal(t, backup.ActionNone, s.AddDeletionAck("m1", h1))
	require.Equal(t, backup.ActionFinalizeDeletion, s.AddDeletionAck("m1", h2))
}

func TestStore_NeverStoresOwnBackupAsReplica(t *testing.T) {
	from := genNodeID(t)
	to := genNodeID(t)
	s := backup.NewStore()
	env := buildEnv(t, from, to, "m1")
	entry := backup.NewBackupEntry(env, 0, 0)
	s.Insert(entry)

	e, ok := s.AddReplica("m1", from)
	require.True(t, ok)
	require.Empty(t, e.Replicas)
}

// Scenario D — backup on offline recipient: A sends 3 envelopes to an
// offline B. Each triggers backup storage; TTL never exceeds 24h.
func TestCoordinator_ScenarioD_OfflineRecipientBackup(t *testing.T) {
	a := genNodeID(t)
	b := genNodeID(t)
	relay1 := genNodeID(t)
	relay2 := genNodeID(t)

	store := backup.NewStore()
	coord := backup.NewCoordinator(a, store, 5000, 20000)

	candidates := map[types.NodeId]backup.HostFactors{
		relay1: {UptimeHours: 10, BandwidthBudget: 0.8, DiskBudgetBytes: 1 << 20},
		relay2: {UptimeHours: 5, BandwidthBudget: 0.5, DiskBudgetBytes: 1 << 20},
	}

	for i := 0; i < 3; i++ {
		env := buildEnv(t, a, b, string(rune('a'+i)))
		chosen := coord.StoreAndSelectReplicas(env, 1000, 0, candidates)
		require.NotEmpty(t, chosen)
		require.LessOrEqual(t, len(chosen), backup.MaxReplicas)

		entry, ok := store.Get(env.ID)
		require.True(t, ok)
		require.LessOrEqual(t, entry.TTLMs, int64(backup.MaxTTLMs))
	}

	require.Equal(t, 3, coord.Len())
}

func TestCoordinator_QueryDebounceCollapsesWithinWindow(t *testing.T) {
	a := genNodeID(t)
	b := genNodeID(t)
	store := backup.NewStore()
	coord := backup.NewCoordinator(a, store, 5000, 20000)

	first := coord.MaybeQuery(b, 1000)
	require.NotNil(t, first)

	second := coord.MaybeQuery(b, 2000) // within debounce window
	require.Nil(t, second)

	third := coord.MaybeQuery(b, 7000) // past debounce window
	require.NotNil(t, third)
}

func TestCoordinator_DeliverAndConfirm(t *testing.T) {
	a := genNodeID(t)
	b := genNodeID(t)
	store := backup.NewStore()
	coord := backup.NewCoordinator(b, store, 5000, 20000)

	env := buildEnv(t, a, b, "m1")
	entry := backup.NewBackupEntry(env, 1000, 0)
	store.Insert(entry)

	buffered := coord.DeliverBuffered(b)
	require.Len(t, buffered, 1)

	coord.ConfirmDelivery("m1")
	e, _ := store.Get("m1")
	require.True(t, e.Delivered)

	finalized := coord.AckDeletion("m1", genNodeID(t))
	require.False(t, finalized)
	finalized = coord.AckDeletion("m1", genNodeID(t))
	require.True(t, finalized)
	require.Equal(t, 0, store.Len())
}
