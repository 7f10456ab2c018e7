package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/tracker"
	"github.com/tom-mesh/tom-protocol/types"
)

func TestTracker_LadderAdvancesMonotonically(t *testing.T) {
	tr := tracker.New()
	tr.Track("m1")

	s, ok := tr.Status("m1")
	require.True(t, ok)
	require.Equal(t, types.MessageStatusPending, s)

	change, advanced := tr.Advance("m1", types.MessageStatusSent)
	require.True(t, advanced)
	require.Equal(t, types.MessageStatusSent, change.Status)

	// Attempting to move backward is a no-op.
	_, advanced = tr.Advance("m1", types.MessageStatusPending)
	require.False(t, advanced)

	s, _ = tr.Status("m1")
	require.Equal(t, types.MessageStatusSent, s)

	change, advanced = tr.Advance("m1", types.MessageStatusDelivered)
	require.True(t, advanced)
	require.Equal(t, types.MessageStatusDelivered, change.Status)
}

func TestTracker_UntrackedMessageNotFound(t *testing.T) {
	tr := tracker.New()
	_, ok := tr.Status("nope")
	require.False(t, ok)
}

func TestTracker_ForgetRemovesEntry(t *testing.T) {
	tr := tracker.New()
	tr.Track("m1")
	require.Equal(t, 1, tr.Len())
	tr.Forget("m1")
	require.Equal(t, 0, tr.Len())
	_, ok := tr.Status("m1")
	require.False(t, ok)
}
