// Package poisson implements the Dixon-Coles bivariate Poisson scoring
// model shared by the Strength Estimator and Outcome Integrator: the
// log-space Poisson PMF, the four-cell low-score correction, and the
// truncated score-matrix summation described in spec §4.1-4.2.
//
// Grounded on jhw-go-outrights/pkg/outrights/matrix.go and
// jhw-outrights-mle/pkg/outrights-mle/mle.go; the four-cell correction here
// follows the MLE repo's formula (which matches spec §4.1 exactly) rather
// than the teacher's i*j*rho variant.
package poisson

import "math"

// LogPMF returns log(P(X = k)) for X ~ Poisson(lambda), computed in log
// space via math.Lgamma for numerical stability at large k or small lambda.
func LogPMF(lambda float64, k int) float64 {
	if k < 0 {
		return math.Inf(-1)
	}
	if lambda <= 0 {
		if k == 0 {
			return 0
		}
		return math.Inf(-1)
	}
	logFactK, _ := math.Lgamma(float64(k + 1))
	return float64(k)*math.Log(lambda) - lambda - logFactK
}

// PMF returns P(X = k) for X ~ Poisson(lambda).
func PMF(lambda float64, k int) float64 {
	return math.Exp(LogPMF(lambda, k))
}

// DixonColesTau applies the Dixon-Coles correction to the four low-score
// cells; every other cell is unadjusted (tau = 1).
//
//	tau(0,0) = 1 - lambda_h*lambda_a*rho
//	tau(0,1) = 1 + lambda_h*rho
//	tau(1,0) = 1 + lambda_a*rho
//	tau(1,1) = 1 - rho
func DixonColesTau(x, y int, lambdaHome, lambdaAway, rho float64) float64 {
	switch {
	case x == 0 && y == 0:
		return 1 - lambdaHome*lambdaAway*rho
	case x == 0 && y == 1:
		return 1 + lambdaHome*rho
	case x == 1 && y == 0:
		return 1 + lambdaAway*rho
	case x == 1 && y == 1:
		return 1 - rho
	default:
		return 1
	}
}

// ExpectedRates computes (lambda_h, lambda_a) for one fixture from fitted
// log-scale attack/defense strengths and home advantage, per spec §4.1:
//
//	lambda_h = exp(alpha_home - beta_away + gamma)
//	lambda_a = exp(alpha_away - beta_home)
func ExpectedRates(alphaHome, betaAway, alphaAway, betaHome, gamma float64) (lambdaHome, lambdaAway float64) {
	lambdaHome = math.Exp(alphaHome - betaAway + gamma)
	lambdaAway = math.Exp(alphaAway - betaHome)
	return
}

// Entropy returns the Shannon entropy, in bits, of a probability triple
// with the convention 0*log(0) = 0.
func Entropy(p, d, a float64) float64 {
	term := func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return -x * math.Log2(x)
	}
	return term(p) + term(d) + term(a)
}

// XGConfidence is 1 / (1 + |lambda_h - lambda_a|): high when teams are
// balanced, low when heavily asymmetric.
func XGConfidence(lambdaHome, lambdaAway float64) float64 {
	return 1 / (1 + math.Abs(lambdaHome-lambdaAway))
}
