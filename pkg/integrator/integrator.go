// Package integrator implements the Outcome Integrator (spec §4.2): it
// converts one fixture's fitted team strengths into a ProbabilityTriple by
// building a truncated Dixon-Coles score matrix and summing it.
//
// Grounded on jhw-go-outrights/pkg/outrights/matrix.go's ScoreMatrix.
package integrator

import (
	"math"

	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/poisson"
)

// ScoreBound is K in spec §4.2: the score matrix is (K+1)x(K+1).
const ScoreBound = 8

// DCRateThreshold is the combined-lambda gate below which the Dixon-Coles
// low-score correction is considered empirically justified.
const DCRateThreshold = 2.4

// Predict computes the ProbabilityTriple for one fixture given the fitted
// (alpha, beta) of the home and away teams and the model's (gamma, rho).
// When lineupStable is false (the orchestrator passes Fixture.LineupStable
// as is), or when the combined expected goal rate is at or above
// DCRateThreshold, the Dixon-Coles correction is not applied (rho is
// treated as 0) because its empirical justification is weak for
// high-scoring matches.
func Predict(alphaHome, betaHome, alphaAway, betaAway, gamma, rho float64, lineupStable bool) (model.ProbabilityTriple, error) {
	sm, dcApplied, lambdaHome, lambdaAway, err := Matrix(alphaHome, betaHome, alphaAway, betaAway, gamma, rho, lineupStable)
	if err != nil {
		return model.ProbabilityTriple{}, err
	}

	pHome, pDraw, pAway, err := sm.Outcomes()
	if err != nil {
		return model.ProbabilityTriple{}, err
	}

	sum := pHome + pDraw + pAway
	if sum < 1-1e-6 || sum > 1+1e-6 {
		return model.ProbabilityTriple{}, &SumInvariantError{Sum: sum}
	}

	return model.ProbabilityTriple{
		PHome:        pHome,
		PDraw:        pDraw,
		PAway:        pAway,
		Entropy:      poisson.Entropy(pHome, pDraw, pAway),
		XGHome:       lambdaHome,
		XGAway:       lambdaAway,
		XGConfidence: poisson.XGConfidence(lambdaHome, lambdaAway),
		DCApplied:    dcApplied,
	}, nil
}

// Matrix builds the truncated Dixon-Coles score matrix a fixture's
// ProbabilityTriple is summed from, applying the same lineup-stability and
// DCRateThreshold gating as Predict. Exposed separately so callers can
// derive auxiliary markets (Asian handicaps, totals) from the identical
// matrix Predict used, without re-deriving the rho-gating logic.
func Matrix(alphaHome, betaHome, alphaAway, betaAway, gamma, rho float64, lineupStable bool) (sm *poisson.ScoreMatrix, dcApplied bool, lambdaHome, lambdaAway float64, err error) {
	lambdaHome, lambdaAway = poisson.ExpectedRates(alphaHome, betaAway, alphaAway, betaHome, gamma)
	if lambdaHome <= 0 || lambdaAway <= 0 || math.IsNaN(lambdaHome) || math.IsNaN(lambdaAway) ||
		math.IsInf(lambdaHome, 0) || math.IsInf(lambdaAway, 0) {
		return nil, false, lambdaHome, lambdaAway, &InvalidRateError{LambdaHome: lambdaHome, LambdaAway: lambdaAway}
	}

	dcApplied = lineupStable && (lambdaHome+lambdaAway) < DCRateThreshold
	effectiveRho := rho
	if !dcApplied {
		effectiveRho = 0
	}

	return poisson.NewScoreMatrix(lambdaHome, lambdaAway, effectiveRho, ScoreBound), dcApplied, lambdaHome, lambdaAway, nil
}

// InvalidRateError is raised when a fixture produces a negative or
// non-finite expected goal rate.
type InvalidRateError struct {
	LambdaHome float64
	LambdaAway float64
}

func (e *InvalidRateError) Error() string {
	return "integrator: invalid expected goal rate"
}

// SumInvariantError is raised when the renormalized triple's sum falls
// outside 1 +/- 1e-6.
type SumInvariantError struct {
	Sum float64
}

func (e *SumInvariantError) Error() string {
	return "integrator: probability triple sum invariant violated"
}
