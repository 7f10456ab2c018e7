package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeConfigAppliesOverrides(t *testing.T) {
	cfg := &Config{
		Discovery: &DiscoveryConfig{
			HeartbeatIntervalMs: 1000,
			GossipIntervalMs:    2000,
			StaleThresholdMs:    3000,
			OfflineThresholdMs:  4000,
			MaxFutureDriftMs:    500,
			MaxPeersPerGossip:   8,
		},
		Backup: &BackupConfig{
			QueryDebounceMs:          100,
			QueryTimeoutMs:           200,
			CleanupIntervalMs:        300,
			ViabilityCheckIntervalMs: 400,
		},
		Group: &GroupConfig{MaxMembers: 10},
		Node:  &NodeConfig{MaxMessageSize: 4096},
	}

	rc := cfg.RuntimeConfig()
	require.Equal(t, int64(1000), rc.HeartbeatIntervalMs)
	require.Equal(t, int64(2000), rc.GossipIntervalMs)
	require.Equal(t, 8, rc.MaxPeersPerGossip)
	require.Equal(t, int64(100), rc.QueryDebounceMs)
	require.Equal(t, 10, rc.MaxGroupMembers)
	require.Equal(t, 4096, rc.MaxMessageSize)
}

func TestRuntimeConfigDefaultsWhenSectionsAbsent(t *testing.T) {
	cfg := &Config{}
	rc := cfg.RuntimeConfig()
	require.Equal(t, int64(1<<20), int64(rc.MaxMessageSize))
	require.Equal(t, 256, rc.MaxGroupMembers)
}
