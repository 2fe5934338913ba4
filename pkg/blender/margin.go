// Package blender implements the seven-set generator of spec §4.3: margin
// removal from 1x2 odds into implied probabilities, and the named blend
// policies (A-G) that combine model and market probabilities.
//
// Grounded on jhw-go-outrights/pkg/outrights/kernel.go's
// extractMarketProbabilities and pkg/outrights/markets.go's payoff parsing
// pattern, generalized from outright markets into the 1x2 match-odds market
// spec.md specifies.
package blender

import "github.com/jhw/football-prob-engine/pkg/model"

// MarginFree converts a closing 1x2 odds triple into margin-free implied
// probabilities: q_X = 1/o_X, m_X = q_X / (q_H+q_D+q_A). Spec §8 round-trip
// law: m_H+m_D+m_A = 1 exactly (up to floating-point epsilon).
func MarginFree(o model.Odds) (home, draw, away float64, err error) {
	if !o.Valid() {
		return 0, 0, 0, &model.BlendError{Set: model.SetC.String(), Reason: "odds out of [1.01, 100] range"}
	}
	qHome := 1 / o.Home
	qDraw := 1 / o.Draw
	qAway := 1 / o.Away
	overround := qHome + qDraw + qAway
	if overround <= 0 {
		return 0, 0, 0, &model.BlendError{Set: model.SetC.String(), Reason: "non-positive overround"}
	}
	return qHome / overround, qDraw / overround, qAway / overround, nil
}

// ImpliedOdds recovers a decimal-odds triple from margin-free probabilities,
// the inverse direction of MarginFree (spec §8 round-trip law).
func ImpliedOdds(home, draw, away float64) (model.Odds, error) {
	if home <= 0 || draw <= 0 || away <= 0 {
		return model.Odds{}, &model.BlendError{Set: model.SetC.String(), Reason: "non-positive probability"}
	}
	return model.Odds{Home: 1 / home, Draw: 1 / draw, Away: 1 / away}, nil
}
