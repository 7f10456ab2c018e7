package discovery

import "github.com/tom-mesh/tom-protocol/types"

// HeartbeatTracker records the last time each peer was heard from and
// derives liveness on read. It never runs a background goroutine; the
// owning RuntimeState drives it via RecordHeartbeat and reads it via
// Liveness (injected now_ms, per spec §4.2/§5).
type HeartbeatTracker struct {
	lastHeardMs       map[types.NodeId]int64
	staleThresholdMs  int64
	offlineThresholdMs int64
	maxFutureDriftMs  int64
}

// NewHeartbeatTracker builds a tracker using the given thresholds.
func NewHeartbeatTracker(staleMs, offlineMs, maxFutureDriftMs int64) *HeartbeatTracker {
	return &HeartbeatTracker{
		lastHeardMs:        make(map[types.NodeId]int64),
		staleThresholdMs:   staleMs,
		offlineThresholdMs: offlineMs,
		maxFutureDriftMs:   maxFutureDriftMs,
	}
}

// RecordHeartbeat updates the last-heard time for peer at nowMs. Timestamps
// more than maxFutureDriftMs ahead of nowMs are clamped to nowMs to resist
// clock-skew gaming of liveness.
func (h *HeartbeatTracker) RecordHeartbeat(peer types.NodeId, heardAtMs, nowMs int64) {
	if heardAtMs > nowMs+h.maxFutureDriftMs {
		heardAtMs = nowMs
	}
	if existing, ok := h.lastHeardMs[peer]; !ok || heardAtMs > existing {
		h.lastHeardMs[peer] = heardAtMs
	}
}

// Liveness derives Fresh/Stale/Offline for peer at nowMs. A peer never
// heard from is Offline.
func (h *HeartbeatTracker) Liveness(peer types.NodeId, nowMs int64) LivenessState {
	last, ok := h.lastHeardMs[peer]
	if !ok {
		return Offline
	}
	age := nowMs - last
	switch {
	case age < h.staleThresholdMs:
		return Fresh
	case age < h.offlineThresholdMs:
		return Stale
	default:
		return Offline
	}
}

// LastHeard returns the last-heard timestamp for peer, if known.
func (h *HeartbeatTracker) LastHeard(peer types.NodeId) (int64, bool) {
	v, ok := h.lastHeardMs[peer]
	return v, ok
}

// KnownPeers returns every peer this tracker has ever heard from.
func (h *HeartbeatTracker) KnownPeers() []types.NodeId {
	out := make([]types.NodeId, 0, len(h.lastHeardMs))
	for p := range h.lastHeardMs {
		out = append(out, p)
	}
	return out
}

// Forget removes tracking state for peer (used when a peer is explicitly
// removed, e.g. group leave + no other shared context).
func (h *HeartbeatTracker) Forget(peer types.NodeId) {
	delete(h.lastHeardMs, peer)
}
