package group

import "github.com/tom-mesh/tom-protocol/types"

// ElectHub picks the next hub deterministically (spec §4.4): among live
// members with network role Relay (or, if none, among all live members by
// highest score), choose the lowest NodeId as a stable tie-break.
//
// isLive and isRelay/scoreOf are supplied by the caller (the runtime,
// which owns the Discovery and Roles subsystems) so this package stays
// decoupled from them.
func ElectHub(members map[types.NodeId]MemberRole, oldEpoch uint64, reason ElectionReason, isLive func(types.NodeId) bool, isRelay func(types.NodeId) bool, scoreOf func(types.NodeId) float64) (ElectionResult, bool) {
	var relayCandidates []types.NodeId
	var allCandidates []types.NodeId

	for id := range members {
		if !isLive(id) {
			continue
		}
		allCandidates = append(allCandidates, id)
		if isRelay(id) {
			relayCandidates = append(relayCandidates, id)
		}
	}

	// Among live Relay members, the lowest NodeId wins outright — score
	// never enters it. Only when no Relay is live do we fall back to the
	// highest score across all live members, with lowest NodeId as the
	// tie-break.
	if len(relayCandidates) > 0 {
		best := relayCandidates[0]
		for _, id := range relayCandidates[1:] {
			if lessNodeID(id, best) {
				best = id
			}
		}
		return ElectionResult{NewHub: best, Epoch: oldEpoch + 1, Reason: reason}, true
	}

	if len(allCandidates) == 0 {
		return ElectionResult{}, false
	}

	best := allCandidates[0]
	bestScore := scoreOf(best)
	for _, id := range allCandidates[1:] {
		s := scoreOf(id)
		if s > bestScore || (s == bestScore && lessNodeID(id, best)) {
			best = id
			bestScore = s
		}
	}

	return ElectionResult{NewHub: best, Epoch: oldEpoch + 1, Reason: reason}, true
}

func lessNodeID(a, b types.NodeId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
