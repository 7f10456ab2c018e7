package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckerRunHealthy(t *testing.T) {
	h := NewChecker(0)
	h.Register("ok", func(ctx context.Context) error { return nil })

	result, err := h.Run(context.Background(), "ok")
	require.NoError(t, err)
	require.Equal(t, StatusHealthy, result.Status)
}

func TestCheckerRunUnhealthy(t *testing.T) {
	h := NewChecker(0)
	h.Register("broken", func(ctx context.Context) error { return errors.New("boom") })

	result, err := h.Run(context.Background(), "broken")
	require.NoError(t, err)
	require.Equal(t, StatusUnhealthy, result.Status)
	require.Contains(t, result.Message, "boom")
}

func TestOverallStatusUnhealthyWins(t *testing.T) {
	h := NewChecker(0)
	h.Register("ok", func(ctx context.Context) error { return nil })
	h.Register("broken", func(ctx context.Context) error { return errors.New("boom") })

	require.Equal(t, StatusUnhealthy, h.OverallStatus(context.Background()))
}

func TestOverallStatusHealthyWithNoChecks(t *testing.T) {
	h := NewChecker(0)
	require.Equal(t, StatusHealthy, h.OverallStatus(context.Background()))
}

func TestTransportCheckRejectsTooFewPeers(t *testing.T) {
	check := TransportCheck(func() int { return 1 }, 3)
	err := check(context.Background())
	require.Error(t, err)
}

func TestTransportCheckAcceptsEnoughPeers(t *testing.T) {
	check := TransportCheck(func() int { return 5 }, 3)
	require.NoError(t, check(context.Background()))
}
