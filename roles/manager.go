package roles

import (
	"crypto/ed25519"
	"math"

	"github.com/tom-mesh/tom-protocol/types"
)

// Manager owns ContributionMetrics for every peer this node has observed,
// plus the last-seen RoleChangeAnnounce timestamp per peer (so stale
// announces are ignored, spec §4.5 last sentence).
type Manager struct {
	self    types.NodeId
	metrics map[types.NodeId]*ContributionMetrics
	lastAnnounceTs map[types.NodeId]int64
}

// NewManager creates a Manager for self, seeding its own entry.
func NewManager(self types.NodeId, nowMs int64) *Manager {
	m := &Manager{
		self:           self,
		metrics:        make(map[types.NodeId]*ContributionMetrics),
		lastAnnounceTs: make(map[types.NodeId]int64),
	}
	m.ensure(self, nowMs)
	return m
}

func (m *Manager) ensure(peer types.NodeId, nowMs int64) *ContributionMetrics {
	cm, ok := m.metrics[peer]
	if !ok {
		cm = &ContributionMetrics{
			Role:          RolePeer,
			FirstSeen:     nowMs,
			LastActivity:  nowMs,
			LastEvaluated: nowMs,
		}
		m.metrics[peer] = cm
	}
	return cm
}

// RecordRelaySuccess updates metrics for peer after it successfully
// relayed a message of byteSize bytes.
func (m *Manager) RecordRelaySuccess(peer types.NodeId, byteSize uint64, nowMs int64) {
	cm := m.ensure(peer, nowMs)
	cm.RelayCount++
	cm.BytesRelayed += byteSize
	cm.LastActivity = nowMs
}

// RecordRelayFailure updates metrics for peer after a failed relay
// attempt.
func (m *Manager) RecordRelayFailure(peer types.NodeId, nowMs int64) {
	cm := m.ensure(peer, nowMs)
	cm.RelayFailures++
	cm.LastActivity = nowMs
}

// RecordBytesReceived tracks inbound traffic attributed to peer.
func (m *Manager) RecordBytesReceived(peer types.NodeId, byteSize uint64, nowMs int64) {
	cm := m.ensure(peer, nowMs)
	cm.BytesReceived += byteSize
	cm.LastActivity = nowMs
}

// Evaluate recomputes peer's score (applying decay since last evaluation),
// then applies promotion/demotion hysteresis. Returns the action taken, if
// any. This is the body of the "RoleAction tick" from spec §4.5; the
// runtime calls it once per peer per tick() (spec §4.2).
func (m *Manager) Evaluate(peer types.NodeId, nowMs int64) RoleAction {
	cm := m.ensure(peer, nowMs)

	uptimeHours := float64(nowMs-cm.FirstSeen) / 3_600_000.0
	raw := computeScore(cm, uptimeHours)

	hoursSinceEval := float64(nowMs-cm.LastEvaluated) / 3_600_000.0
	cm.Score = decay(math.Max(raw, cm.Score), hoursSinceEval)
	cm.LastEvaluated = nowMs

	switch cm.Role {
	case RolePeer:
		if cm.Score >= PromotionThreshold {
			cm.Role = RoleRelay
			return ActionPromoted
		}
	case RoleRelay:
		if cm.Score <= DemotionThreshold {
			cm.Role = RolePeer
			return ActionDemoted
		}
	}
	return ActionNone
}

// Role returns the current local role of peer (RolePeer if never
// observed).
func (m *Manager) Role(peer types.NodeId) Role {
	cm, ok := m.metrics[peer]
	if !ok {
		return RolePeer
	}
	return cm.Role
}

// Score returns the current score of peer (0 if never observed).
func (m *Manager) Score(peer types.NodeId) float64 {
	cm, ok := m.metrics[peer]
	if !ok {
		return 0
	}
	return cm.Score
}

// RelayCandidates returns every known peer whose role is Relay, for use in
// relay selection (spec §4.2 outgoing routing decision: "prepend a relay
// chosen by highest role score among known Relays").
func (m *Manager) RelayCandidates() []types.NodeId {
	var out []types.NodeId
	for peer, cm := range m.metrics {
		if cm.Role == RoleRelay {
			out = append(out, peer)
		}
	}
	return out
}

// HighestScoringRelay returns the Relay peer with the highest score, and
// whether any Relay exists.
func (m *Manager) HighestScoringRelay() (types.NodeId, bool) {
	var best types.NodeId
	bestScore := math.Inf(-1)
	found := false
	for peer, cm := range m.metrics {
		if cm.Role != RoleRelay {
			continue
		}
		if !found || cm.Score > bestScore || (cm.Score == bestScore && lessNodeID(peer, best)) {
			best = peer
			bestScore = cm.Score
			found = true
		}
	}
	return best, found
}

func lessNodeID(a, b types.NodeId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Metrics returns the externally observable RoleMetrics snapshot for
// peer.
func (m *Manager) Metrics(peer types.NodeId, nowMs int64) (RoleMetrics, bool) {
	cm, ok := m.metrics[peer]
	if !ok {
		return RoleMetrics{}, false
	}
	total := cm.RelayCount + cm.RelayFailures
	successRate := 1.0
	if total > 0 {
		successRate = float64(cm.RelayCount) / float64(total)
	}
	bandwidthRatio := 0.0
	if cm.BytesReceived > 0 {
		bandwidthRatio = float64(cm.BytesRelayed) / float64(cm.BytesReceived)
	}
	return RoleMetrics{
		NodeID:         peer,
		Role:           cm.Role,
		Score:          cm.Score,
		RelayCount:     cm.RelayCount,
		RelayFailures:  cm.RelayFailures,
		SuccessRate:    successRate,
		BytesRelayed:   cm.BytesRelayed,
		BytesReceived:  cm.BytesReceived,
		BandwidthRatio: bandwidthRatio,
		UptimeHours:    float64(nowMs-cm.FirstSeen) / 3_600_000.0,
		FirstSeen:      cm.FirstSeen,
		LastActivity:   cm.LastActivity,
	}, true
}

// AllMetrics returns a snapshot for every known peer (backs
// get_all_role_scores, spec §6.5).
func (m *Manager) AllMetrics(nowMs int64) []RoleMetrics {
	out := make([]RoleMetrics, 0, len(m.metrics))
	for peer := range m.metrics {
		snap, _ := m.Metrics(peer, nowMs)
		out = append(out, snap)
	}
	return out
}

// HandleAnnounce applies a verified, freshness-checked RoleChangeAnnounce
// from a remote peer, updating that peer's locally observed role and
// score. Callers must call announce.Verify() first; HandleAnnounce itself
// only enforces the freshness rule ("announcements older than the last
// known for that peer are ignored", spec §4.5).
func (m *Manager) HandleAnnounce(a RoleChangeAnnounce, nowMs int64) bool {
	if last, ok := m.lastAnnounceTs[a.NodeID]; ok && a.Timestamp <= last {
		return false
	}
	m.lastAnnounceTs[a.NodeID] = a.Timestamp
	cm := m.ensure(a.NodeID, nowMs)
	cm.Role = a.NewRole
	cm.Score = a.Score
	cm.LastActivity = nowMs
	return true
}

// BuildAnnounce creates a fresh, signed RoleChangeAnnounce reflecting
// self's current role and score, to be broadcast after a local promotion
// or demotion.
func (m *Manager) BuildAnnounce(nowMs int64, secret ed25519.PrivateKey) RoleChangeAnnounce {
	cm := m.ensure(m.self, nowMs)
	a := RoleChangeAnnounce{
		NodeID:    m.self,
		NewRole:   cm.Role,
		Score:     cm.Score,
		Timestamp: nowMs,
	}
	a.Sign(secret)
	return a
}
