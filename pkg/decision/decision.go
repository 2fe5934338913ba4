// Package decision implements the Decision Intelligence Ticket Evaluator of
// spec §4.5: per-pick expected-value scoring, hard-contradiction and
// structural-penalty rules, the Unified Decision Score, gating, archetype
// selection, and monthly ev_threshold re-learning.
//
// Grounded on jhw-go-outrights/pkg/outrights/team_metrics.go's per-team
// scoring pattern (accumulate a metric per entity, then gate on a learned
// threshold), generalized from team outright value into per-pick ticket
// value.
package decision

import (
	"math"
	"sort"

	"github.com/jhw/football-prob-engine/pkg/model"
)

// Weights are the scalar knobs the learned-thresholds record carries
// alongside ev_threshold (spec §4.5, §6).
type Weights struct {
	EVThreshold          float64
	EntropyPenalty       float64
	ContradictionPenalty float64
	MaxContradictions    int
}

// DecisionVersion identifies the formula revision that produced a verdict.
// Bumped only when the UDS formula itself changes, never on threshold
// retuning (spec §4.5); see FormulaChangelog.
const DecisionVersion = "UDS_v1"

// FormulaChangelog records the history of formula revisions this package
// has implemented. Threshold learning does not read it: it keeps only
// stored tickets whose version equals DecisionVersion.
var FormulaChangelog = map[string]string{
	"UDS_v1": "raw_ev/ev_damped/pdv/UDS as specified; initial release",
}

const (
	drawOddsContradictionThreshold  = 3.4
	xgDiffContradictionThreshold    = 0.45
	awayOddsContradictionThreshold  = 3.2
	marketProbHomeHighThreshold     = 0.55
	marketProbHomeModerateThreshold = 0.50
)

// PickInput is everything the evaluator needs about one pick to score it;
// callers assemble it from a Fixture, its ProbabilityTriple, and the
// chosen ProbabilitySet's market view.
type PickInput struct {
	FixtureIndex int
	Pick         model.Outcome
	MarketOdds   model.Odds
	ModelProb    model.ProbabilityTriple // the blended set's triple for this fixture
	XGConfidence float64
	XGHome       float64
	XGAway       float64
}

// ScorePick computes raw_ev, ev_damped, pdv, structural penalties, and hard
// contradiction flags for one pick.
func ScorePick(in PickInput) model.TicketPick {
	modelProb := in.ModelProb.Prob(in.Pick)
	marketOdds := oddsFor(in.MarketOdds, in.Pick)
	// marketProb is the pick's margin-free inverse-odds probability (its
	// inverse price divided by the overround), used for comparisons against
	// fixed thresholds and the archetype's model-vs-market edge check.
	marketProb := impliedProb(marketOdds, in.MarketOdds)

	rawEV := modelProb*(marketOdds-1) - (1 - modelProb)
	evDamped := rawEV / (1 + marketOdds)

	penalty, reasons := structuralPenalty(in)
	pdv := evDamped*in.XGConfidence - penalty

	hard, hardReasons := hardContradictions(in, marketOdds)
	reasons = append(reasons, hardReasons...)

	return model.TicketPick{
		FixtureIndex:         in.FixtureIndex,
		Pick:                 in.Pick,
		MarketOdds:           marketOdds,
		ModelProb:            modelProb,
		MarketProb:           marketProb,
		PDV:                  pdv,
		SoftPenalty:          penalty,
		HardContradiction:    hard,
		ContradictionReasons: reasons,
	}
}

func oddsFor(o model.Odds, outcome model.Outcome) float64 {
	switch outcome {
	case model.OutcomeHome:
		return o.Home
	case model.OutcomeDraw:
		return o.Draw
	default:
		return o.Away
	}
}

func structuralPenalty(in PickInput) (float64, []string) {
	penalty := 0.0
	var reasons []string
	xgDiff := math.Abs(in.XGHome - in.XGAway)

	if in.Pick == model.OutcomeDraw {
		if in.MarketOdds.Draw > drawOddsContradictionThreshold {
			penalty += 0.15
			reasons = append(reasons, "draw odds above 3.4")
		}
		if xgDiff > xgDiffContradictionThreshold {
			penalty += 0.20
			reasons = append(reasons, "draw pick with large xg gap")
		}
	}
	if in.Pick == model.OutcomeAway && in.MarketOdds.Away > awayOddsContradictionThreshold {
		penalty += 0.10
		reasons = append(reasons, "away odds above 3.2")
	}
	return penalty, reasons
}

func hardContradictions(in PickInput, marketOdds float64) (bool, []string) {
	var reasons []string
	marketProbHome := impliedProb(in.MarketOdds.Home, in.MarketOdds)
	xgDiff := math.Abs(in.XGHome - in.XGAway)

	if in.Pick == model.OutcomeDraw && marketProbHome > marketProbHomeHighThreshold {
		reasons = append(reasons, "draw pick contradicts market home favorite")
	}
	if in.Pick == model.OutcomeDraw && xgDiff > xgDiffContradictionThreshold {
		reasons = append(reasons, "draw pick contradicts large xg gap")
	}
	if in.Pick == model.OutcomeAway && in.MarketOdds.Away > awayOddsContradictionThreshold && marketProbHome > marketProbHomeModerateThreshold {
		reasons = append(reasons, "away pick contradicts market home favorite at long odds")
	}
	return len(reasons) > 0, reasons
}

// impliedProb returns a single outcome's margin-free implied probability
// (its inverse price divided by the sum of all three inverse prices), or 0
// when the odds are invalid. Used for the fixed-threshold contradiction
// checks spec §4.5 specifies against market_prob_H.
func impliedProb(price float64, o model.Odds) float64 {
	if !o.Valid() {
		return 0
	}
	qh, qd, qa := 1/o.Home, 1/o.Draw, 1/o.Away
	total := qh + qd + qa
	return (1 / price) / total
}

// Evaluate applies §4.5's gating order to a fully-scored ticket and
// returns the verdict, mutating nothing: callers attach the result to
// their own Ticket value. snapshots must align with picks by fixture so
// mean_entropy(ticket) can be computed from each fixture's triple.
func Evaluate(picks []model.TicketPick, snapshots []model.PredictionSnapshot, w Weights) (uds float64, accepted bool, rejectReasons []string) {
	for _, p := range picks {
		if p.HardContradiction {
			rejectReasons = append(rejectReasons, "hard contradiction: "+firstOrEmpty(p.ContradictionReasons))
		}
	}
	if len(rejectReasons) > 0 {
		return 0, false, rejectReasons
	}

	entropyByFixture := make(map[int]float64, len(snapshots))
	for _, s := range snapshots {
		entropyByFixture[s.FixtureIndex] = s.Triple.Entropy
	}

	softCount := 0
	sumPDV := 0.0
	sumEntropy := 0.0
	for _, p := range picks {
		sumPDV += p.PDV
		sumEntropy += entropyByFixture[p.FixtureIndex]
		if p.SoftPenalty > 0 {
			softCount++
		}
	}
	meanEntropy := sumEntropy / float64(len(picks))
	uds = sumPDV - w.EntropyPenalty*meanEntropy - w.ContradictionPenalty*float64(softCount)

	if softCount > w.MaxContradictions {
		return uds, false, []string{"too many soft contradictions"}
	}
	if uds < w.EVThreshold {
		return uds, false, []string{"UDS below ev_threshold"}
	}
	return uds, true, nil
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}

// SlateProfile summarizes a slate for archetype selection, per spec §4.5.
type SlateProfile struct {
	AvgHomeProb   float64
	BalancedRate  float64 // share of fixtures with max(p) < 0.5
	AwayValueRate float64 // share where model beats market by >= 0.07 on A
}

// ProfileSlate computes a SlateProfile from the fixtures' model triples and
// their market-implied away probabilities.
func ProfileSlate(triples []model.ProbabilityTriple, marketProbsAway []float64) SlateProfile {
	if len(triples) == 0 {
		return SlateProfile{}
	}
	var homeSum float64
	var balanced, awayValue int
	for i, t := range triples {
		homeSum += t.PHome
		maxP := t.PHome
		if t.PDraw > maxP {
			maxP = t.PDraw
		}
		if t.PAway > maxP {
			maxP = t.PAway
		}
		if maxP < 0.5 {
			balanced++
		}
		if i < len(marketProbsAway) && t.PAway-marketProbsAway[i] >= 0.07 {
			awayValue++
		}
	}
	n := float64(len(triples))
	return SlateProfile{
		AvgHomeProb:   homeSum / n,
		BalancedRate:  float64(balanced) / n,
		AwayValueRate: float64(awayValue) / n,
	}
}

// SelectArchetype maps a slate profile to the archetype whose constraints
// the slate most easily satisfies, per spec §4.5.
func SelectArchetype(profile SlateProfile) model.Archetype {
	switch {
	case profile.AwayValueRate >= 0.25:
		return model.ArchetypeAwayEdge
	case profile.AvgHomeProb >= 0.55:
		return model.ArchetypeFavoriteLock
	case profile.BalancedRate >= 0.5:
		return model.ArchetypeDrawSelective
	default:
		return model.ArchetypeBalanced
	}
}

// ConformsToArchetype reports whether a candidate set of picks satisfies
// the archetype's constraints (spec §4.5), given the snapshots needed to
// check per-pick conditions (dc_applied for DRAW_SELECTIVE, model-vs-market
// edge for AWAY_EDGE).
func ConformsToArchetype(a model.Archetype, picks []model.TicketPick, snapshots []model.PredictionSnapshot) bool {
	draws, aways := 0, 0
	for _, p := range picks {
		switch p.Pick {
		case model.OutcomeDraw:
			draws++
		case model.OutcomeAway:
			aways++
		}
	}
	snapByFixture := make(map[int]model.PredictionSnapshot, len(snapshots))
	for _, s := range snapshots {
		snapByFixture[s.FixtureIndex] = s
	}

	switch a {
	case model.ArchetypeFavoriteLock:
		if draws > 1 || aways > 1 {
			return false
		}
		for _, p := range picks {
			if p.Pick == model.OutcomeDraw && p.MarketOdds > drawOddsContradictionThreshold {
				return false
			}
			if p.Pick == model.OutcomeAway && p.MarketOdds > awayOddsContradictionThreshold {
				return false
			}
		}
		return true
	case model.ArchetypeBalanced:
		return draws <= 2 && aways <= 2
	case model.ArchetypeDrawSelective:
		if draws < 2 || draws > 3 {
			return false
		}
		for _, p := range picks {
			if p.Pick == model.OutcomeDraw {
				snap, ok := snapByFixture[p.FixtureIndex]
				if !ok || !snap.Triple.DCApplied {
					return false
				}
			}
		}
		return true
	case model.ArchetypeAwayEdge:
		if aways < 2 || aways > 3 {
			return false
		}
		for _, p := range picks {
			if p.Pick == model.OutcomeAway && p.ModelProb <= p.MarketProb+0.07 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// LearnThreshold re-fits ev_threshold from resolved tickets sharing
// DecisionVersion, bucketing by UDS quantile and choosing the smallest
// threshold whose bucket hit rate exceeds targetHitRate with at least
// minBucketSize tickets. If no bucket qualifies, it returns the prior
// threshold and a ThresholdLearningInsufficientWarning.
func LearnThreshold(tickets []ResolvedTicket, targetHitRate float64, minBucketSize int, priorThreshold float64, nBuckets int) (float64, error) {
	var eligible []ResolvedTicket
	for _, t := range tickets {
		if t.DecisionVersion == DecisionVersion {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 || nBuckets <= 0 {
		return priorThreshold, &model.ThresholdLearningInsufficientWarning{TicketsConsidered: len(eligible), TargetHitRate: targetHitRate}
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].UDS < eligible[j].UDS })

	bucketSize := len(eligible) / nBuckets
	if bucketSize == 0 {
		bucketSize = len(eligible)
		nBuckets = 1
	}

	bestThreshold := priorThreshold
	found := false
	for b := 0; b < nBuckets; b++ {
		start := b * bucketSize
		end := start + bucketSize
		if b == nBuckets-1 {
			end = len(eligible)
		}
		bucket := eligible[start:end]
		if len(bucket) < minBucketSize {
			continue
		}
		hits := 0
		for _, t := range bucket {
			if t.Correct {
				hits++
			}
		}
		hitRate := float64(hits) / float64(len(bucket))
		if hitRate > targetHitRate {
			candidate := bucket[0].UDS
			if !found || candidate < bestThreshold {
				bestThreshold = candidate
				found = true
			}
		}
	}

	if !found {
		return priorThreshold, &model.ThresholdLearningInsufficientWarning{TicketsConsidered: len(eligible), TargetHitRate: targetHitRate}
	}
	return bestThreshold, nil
}

// ResolvedTicket is the minimal shape LearnThreshold needs: a ticket's UDS,
// the formula version that produced it, and whether it ultimately won.
type ResolvedTicket struct {
	UDS             float64
	DecisionVersion string
	Correct         bool
}
