package roles

import "math"

// computeScore applies the weighted scoring formula from spec §4.5:
//
//	score = w_r*relay_count + w_b*log(1+bytes_relayed) + w_u*uptime_hours - w_f*relay_failures
func computeScore(m *ContributionMetrics, uptimeHours float64) float64 {
	return WeightRelayCount*float64(m.RelayCount) +
		WeightBytesRelayed*math.Log1p(float64(m.BytesRelayed)) +
		WeightUptimeHours*uptimeHours -
		WeightRelayFailures*float64(m.RelayFailures)
}

// decay multiplies score by DecayFactorPerHour raised to the (possibly
// fractional) number of hours elapsed since the last evaluation.
func decay(score float64, hoursSinceEval float64) float64 {
	if hoursSinceEval <= 0 {
		return score
	}
	return score * math.Pow(DecayFactorPerHour, hoursSinceEval)
}
