// Package portfolio implements the Ticket Generator and Portfolio
// Optimizer of spec §4.6: archetype-constrained candidate enumeration,
// pairwise correlation, greedy bundle selection, and late-shock
// de-weighting.
//
// Grounded on jhw-go-outrights/pkg/outrights/simulator.go's
// enumerate-then-score pattern for outright markets, generalized from
// simulated outcomes to archetype-constrained 1x2 pick combinations.
package portfolio

import (
	"github.com/jhw/football-prob-engine/pkg/decision"
	"github.com/jhw/football-prob-engine/pkg/model"
)

// Candidate is one evaluated ticket before portfolio selection.
type Candidate struct {
	Picks     []model.TicketPick
	Snapshots []model.PredictionSnapshot
	UDS       float64
	Accepted  bool
}

// CandidateBudget bounds how many combinations Generate will evaluate
// before giving up, so runtime stays bounded on large slates.
const CandidateBudget = 5000

// Generate enumerates pick combinations over fixtures consistent with the
// archetype, evaluates each with the decision package, and returns every
// accepted candidate (capped at CandidateBudget evaluations).
func Generate(fixturePicks [][]model.TicketPick, snapshots []model.PredictionSnapshot, archetype model.Archetype, weights decision.Weights) []Candidate {
	var accepted []Candidate
	evaluated := 0

	var recurse func(idx int, chosen []model.TicketPick)
	recurse = func(idx int, chosen []model.TicketPick) {
		if evaluated >= CandidateBudget {
			return
		}
		if idx == len(fixturePicks) {
			evaluated++
			if !decision.ConformsToArchetype(archetype, chosen, snapshots) {
				return
			}
			uds, ok, _ := decision.Evaluate(chosen, snapshots, weights)
			if ok {
				picksCopy := make([]model.TicketPick, len(chosen))
				copy(picksCopy, chosen)
				accepted = append(accepted, Candidate{Picks: picksCopy, Snapshots: snapshots, UDS: uds, Accepted: true})
			}
			return
		}
		for _, p := range fixturePicks[idx] {
			if evaluated >= CandidateBudget {
				return
			}
			recurse(idx+1, append(chosen, p))
		}
	}
	recurse(0, make([]model.TicketPick, 0, len(fixturePicks)))
	return accepted
}

// Correlation is the fraction of fixtures where two tickets make the same
// pick (spec §4.6).
func Correlation(a, b Candidate) float64 {
	n := len(a.Picks)
	if n == 0 || len(b.Picks) != n {
		return 0
	}
	overlap := 0
	for i := range a.Picks {
		if a.Picks[i].FixtureIndex == b.Picks[i].FixtureIndex && a.Picks[i].Pick == b.Picks[i].Pick {
			overlap++
		}
	}
	return float64(overlap) / float64(n)
}

// MeanPairwiseCorrelation averages Correlation over every pair in a bundle.
func MeanPairwiseCorrelation(bundle []Candidate) float64 {
	if len(bundle) < 2 {
		return 0
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < len(bundle); i++ {
		for j := i + 1; j < len(bundle); j++ {
			sum += Correlation(bundle[i], bundle[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// LambdaCorrFactor is the multiplier on UDS_scale (itself taken as the
// maximum observed |UDS| across candidates) used to weight the diversity
// penalty, per spec §4.6's lambda_corr ~= UDS_scale * 0.5.
const LambdaCorrFactor = 0.5

// ShockedFixtures maps fixture indices whose odds have moved beyond the
// late-shock threshold since the snapshot was trained on.
type ShockedFixtures map[int]bool

// LateShockWeight is the de-weighting factor applied to a candidate's UDS
// contribution to Score when it touches a shocked fixture.
const LateShockWeight = 0.9

// Score computes spec §4.6's portfolio score for a bundle, applying
// late-shock de-weighting per ticket and the pairwise-correlation penalty.
func Score(bundle []Candidate, shocked ShockedFixtures, udsScale float64) float64 {
	sum := 0.0
	for _, c := range bundle {
		weight := 1.0
		if touchesShocked(c, shocked) {
			weight = LateShockWeight
		}
		sum += weight * c.UDS
	}
	penalty := udsScale * LambdaCorrFactor * MeanPairwiseCorrelation(bundle)
	return sum - penalty
}

func touchesShocked(c Candidate, shocked ShockedFixtures) bool {
	for _, p := range c.Picks {
		if shocked[p.FixtureIndex] {
			return true
		}
	}
	return false
}

// SelectBundle greedily builds the final bundle of at most K tickets from
// the accepted candidates, per spec §4.6: start from the highest-UDS
// candidate, then repeatedly add whichever remaining candidate maximizes
// the marginal Score contribution, stopping at K tickets or a non-positive
// marginal gain.
func SelectBundle(candidates []Candidate, k int, shocked ShockedFixtures) []Candidate {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	udsScale := 0.0
	for _, c := range candidates {
		if abs(c.UDS) > udsScale {
			udsScale = abs(c.UDS)
		}
	}

	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)

	bestIdx := 0
	for i, c := range remaining {
		if c.UDS > remaining[bestIdx].UDS {
			bestIdx = i
		}
	}
	bundle := []Candidate{remaining[bestIdx]}
	remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

	for len(bundle) < k && len(remaining) > 0 {
		baseScore := Score(bundle, shocked, udsScale)
		bestGain := 0.0
		bestJ := -1
		for j, c := range remaining {
			trial := append(append([]Candidate{}, bundle...), c)
			gain := Score(trial, shocked, udsScale) - baseScore
			if bestJ == -1 || gain > bestGain {
				bestGain = gain
				bestJ = j
			}
		}
		if bestJ == -1 || bestGain <= 0 {
			break
		}
		bundle = append(bundle, remaining[bestJ])
		remaining = append(remaining[:bestJ], remaining[bestJ+1:]...)
	}
	return bundle
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// DetectLateShocks compares current odds to the odds recorded at
// prediction time and flags fixtures whose price moved by at least
// relativeThreshold (e.g. 0.15 for a 15% move) on any outcome.
func DetectLateShocks(snapshotOdds, currentOdds map[int]model.Odds, relativeThreshold float64) ShockedFixtures {
	shocked := make(ShockedFixtures)
	for idx, before := range snapshotOdds {
		after, ok := currentOdds[idx]
		if !ok {
			continue
		}
		if movedBeyond(before.Home, after.Home, relativeThreshold) ||
			movedBeyond(before.Draw, after.Draw, relativeThreshold) ||
			movedBeyond(before.Away, after.Away, relativeThreshold) {
			shocked[idx] = true
		}
	}
	return shocked
}

func movedBeyond(before, after, threshold float64) bool {
	if before <= 0 {
		return false
	}
	rel := (after - before) / before
	if rel < 0 {
		rel = -rel
	}
	return rel >= threshold
}
