package blender

import (
	"math"

	"github.com/jhw/football-prob-engine/pkg/model"
)

// entropyCeiling is log2(3), the maximum possible Shannon entropy of a
// three-outcome distribution, used to normalize Set B's entropy weight.
var entropyCeiling = math.Log2(3)

// Generate produces every requested probability set for one fixture given
// the model's pure triple (Set A), the fixture's odds (nil when
// unavailable), and the model's blend coefficients (which carry the
// league draw-boost default). It returns a BlendError when EntropyMin,
// EntropyMax or MarketDomModel lies outside [0,1]. Grounded on jhw-go-outrights/pkg/outrights/kernel.go's
// multi-market aggregation pattern, generalized into the seven named
// perspectives of spec §4.3.
func Generate(modelTriple model.ProbabilityTriple, odds *model.Odds, coeffs model.BlendCoefficients) (map[model.ProbabilitySet]model.ProbabilityTriple, error) {
	unitCoeffs := []struct {
		set model.ProbabilitySet
		v   float64
	}{{model.SetB, coeffs.EntropyMin}, {model.SetB, coeffs.EntropyMax}, {model.SetC, coeffs.MarketDomModel}}
	for _, c := range unitCoeffs {
		if !(c.v >= 0 && c.v <= 1) {
			return nil, &model.BlendError{Set: c.set.String(), Reason: "blend coefficient outside [0,1]"}
		}
	}

	a := modelTriple
	a.DCApplied = modelTriple.DCApplied

	// market is the margin-free market triple. When odds are missing or
	// invalid, market is set equal to the model triple: sets B, C and G then
	// equal set A, F returns A, and D and E are the draw-boosted and
	// sharpened forms of A, so the market-based sets fall back to the pure
	// model triple with no NaN propagation (spec §8 boundary behavior).
	market := a
	haveMarket := false
	if odds != nil && odds.Valid() {
		mh, md, ma, err := MarginFree(*odds)
		if err != nil {
			return nil, err
		}
		market = triple(mh, md, ma)
		haveMarket = true
	}

	out := make(map[model.ProbabilitySet]model.ProbabilityTriple, 7)
	out[model.SetA] = a

	b, err := setB(a, market, coeffs)
	if err != nil {
		return nil, err
	}
	out[model.SetB] = b

	c := setC(a, market, coeffs)
	out[model.SetC] = c

	d, err := setD(b, coeffs)
	if err != nil {
		return nil, err
	}
	out[model.SetD] = d

	e, err := setE(b, coeffs)
	if err != nil {
		return nil, err
	}
	out[model.SetE] = e

	f, err := setF(a, market, odds, haveMarket, coeffs)
	if err != nil {
		return nil, err
	}
	out[model.SetF] = f

	g := setG(a, b, c)
	out[model.SetG] = g

	return out, nil
}

// setB is the default balanced blend: an entropy-weighted average of the
// model triple and the market triple. Higher model entropy (less confident
// model) shifts weight toward the market. alpha is the model's weight,
// clipped to [EntropyMin, EntropyMax].
func setB(a, market model.ProbabilityTriple, coeffs model.BlendCoefficients) (model.ProbabilityTriple, error) {
	alpha := 1 - a.Entropy/entropyCeiling
	if alpha < coeffs.EntropyMin {
		alpha = coeffs.EntropyMin
	}
	if alpha > coeffs.EntropyMax {
		alpha = coeffs.EntropyMax
	}
	h := alpha*a.PHome + (1-alpha)*market.PHome
	d := alpha*a.PDraw + (1-alpha)*market.PDraw
	awy := alpha*a.PAway + (1-alpha)*market.PAway
	return normalized(model.SetB, h, d, awy, a)
}

// setC is market-dominant: a fixed, heavily market-weighted blend.
func setC(a, market model.ProbabilityTriple, coeffs model.BlendCoefficients) model.ProbabilityTriple {
	w := coeffs.MarketDomModel
	h := w*a.PHome + (1-w)*market.PHome
	d := w*a.PDraw + (1-w)*market.PDraw
	awy := w*a.PAway + (1-w)*market.PAway
	t, _ := normalized(model.SetC, h, d, awy, a)
	return t
}

// setD boosts the draw probability of Set B by the league's draw-boost
// factor and renormalizes, per spec §4.3.
func setD(b model.ProbabilityTriple, coeffs model.BlendCoefficients) (model.ProbabilityTriple, error) {
	boost := coeffs.DrawBoostLeagueDefault
	d := b.PDraw * (1 + boost)
	h := b.PHome
	awy := b.PAway
	return normalized(model.SetD, h, d, awy, b)
}

// setE sharpens Set B with a temperature below 1, amplifying the
// favorite/outsider gap.
func setE(b model.ProbabilityTriple, coeffs model.BlendCoefficients) (model.ProbabilityTriple, error) {
	t := coeffs.SharpenTemperature
	if t <= 0 {
		return model.ProbabilityTriple{}, &model.BlendError{Set: model.SetE.String(), Reason: "non-positive sharpen temperature"}
	}
	pow := 1 / t
	h := math.Pow(b.PHome, pow)
	d := math.Pow(b.PDraw, pow)
	awy := math.Pow(b.PAway, pow)
	return normalized(model.SetE, h, d, awy, b)
}

// setF is the optional Kelly-weighted set: it blends the model triple with
// a Kelly-criterion-implied distribution derived from the market odds, so
// it rewards outcomes where the model disagrees with the market in a way
// that would command a positive Kelly stake. When Kelly is disabled, or no
// market odds are available, it reduces to the model triple (Set A).
func setF(a model.ProbabilityTriple, market model.ProbabilityTriple, odds *model.Odds, haveMarket bool, coeffs model.BlendCoefficients) (model.ProbabilityTriple, error) {
	if !coeffs.KellyEnabled || !haveMarket || odds == nil {
		return a, nil
	}
	kh := kellyFraction(a.PHome, odds.Home)
	kd := kellyFraction(a.PDraw, odds.Draw)
	ka := kellyFraction(a.PAway, odds.Away)
	total := kh + kd + ka
	if total <= 0 {
		return a, nil
	}
	kellyTriple := triple(kh/total, kd/total, ka/total)
	h := 0.6*a.PHome + 0.4*kellyTriple.PHome
	d := 0.6*a.PDraw + 0.4*kellyTriple.PDraw
	awy := 0.6*a.PAway + 0.4*kellyTriple.PAway
	return normalized(model.SetF, h, d, awy, a)
}

// kellyFraction is the classical Kelly stake fraction f* = (b*p - (1-p)) / b
// for a single outcome against decimal odds o (b = o - 1), clipped to
// [0, 1] since negative-edge outcomes get no stake.
func kellyFraction(p, o float64) float64 {
	b := o - 1
	if b <= 0 {
		return 0
	}
	f := (b*p - (1 - p)) / b
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// setG is the ensemble of Set A, Set B, and Set C: an unweighted mean.
func setG(a, b, c model.ProbabilityTriple) model.ProbabilityTriple {
	h := (a.PHome + b.PHome + c.PHome) / 3
	d := (a.PDraw + b.PDraw + c.PDraw) / 3
	awy := (a.PAway + b.PAway + c.PAway) / 3
	t, _ := normalized(model.SetG, h, d, awy, a)
	return t
}

func triple(h, d, a float64) model.ProbabilityTriple {
	return model.ProbabilityTriple{PHome: h, PDraw: d, PAway: a}
}

// normalized renormalizes a raw (h, d, a) triple to sum to 1 and carries
// over the ancillary xG fields from the base triple, recomputing entropy
// for the blended distribution.
func normalized(set model.ProbabilitySet, h, d, a float64, base model.ProbabilityTriple) (model.ProbabilityTriple, error) {
	sum := h + d + a
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return model.ProbabilityTriple{}, &model.BlendError{Set: set.String(), Reason: "non-positive or non-finite blend sum"}
	}
	h /= sum
	d /= sum
	a /= sum
	return model.ProbabilityTriple{
		PHome:        h,
		PDraw:        d,
		PAway:        a,
		Entropy:      shannonEntropy(h, d, a),
		XGHome:       base.XGHome,
		XGAway:       base.XGAway,
		XGConfidence: base.XGConfidence,
		DCApplied:    base.DCApplied,
	}, nil
}

func shannonEntropy(h, d, a float64) float64 {
	term := func(p float64) float64 {
		if p <= 0 {
			return 0
		}
		return -p * math.Log2(p)
	}
	return term(h) + term(d) + term(a)
}
