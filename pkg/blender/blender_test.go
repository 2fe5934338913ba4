package blender

import (
	"math"
	"testing"

	"github.com/jhw/football-prob-engine/pkg/model"
)

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func defaultCoeffs() model.BlendCoefficients {
	return model.BlendCoefficients{
		Variant:                "entropy-weighted",
		EntropyMin:             0.3,
		EntropyMax:             0.8,
		MarketDomModel:         0.2,
		DrawBoostLeagueDefault: 0.15,
		SharpenTemperature:     1 / 1.5,
		KellyEnabled:           true,
	}
}

func sampleTriple() model.ProbabilityTriple {
	t := triple(0.478, 0.252, 0.270)
	t.Entropy = shannonEntropy(t.PHome, t.PDraw, t.PAway)
	t.XGHome, t.XGAway = 1.5, 1.2
	return t
}

func TestMarginFreeRoundTrip(t *testing.T) {
	odds := model.Odds{Home: 2.0, Draw: 3.4, Away: 4.0}
	h, d, a, err := MarginFree(odds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum := h + d + a; !approxEqual(sum, 1.0, 1e-9) {
		t.Errorf("sum = %.10f, want 1", sum)
	}
	back, err := ImpliedOdds(h, d, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Round trip recovers odds up to the overround scale factor removed by
	// MarginFree; the ratios between the three prices must be preserved.
	ratioOrig := odds.Home / odds.Draw
	ratioBack := back.Home / back.Draw
	if !approxEqual(ratioOrig, ratioBack, 1e-9) {
		t.Errorf("home/draw ratio not preserved: %.6f vs %.6f", ratioOrig, ratioBack)
	}
}

func TestMarginFreeInvalidOdds(t *testing.T) {
	_, _, _, err := MarginFree(model.Odds{Home: 0.5, Draw: 3, Away: 4})
	if err == nil {
		t.Fatalf("expected error for out-of-range odds")
	}
}

func TestGenerateAllSetsSumToOne(t *testing.T) {
	a := sampleTriple()
	odds := model.Odds{Home: 2.1, Draw: 3.3, Away: 3.6}
	sets, err := Generate(a, &odds, defaultCoeffs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range model.AllSets {
		tr, ok := sets[s]
		if !ok {
			t.Fatalf("missing set %s", s)
		}
		if sum := tr.Sum(); !approxEqual(sum, 1.0, 1e-6) {
			t.Errorf("set %s sum = %.8f, want 1", s, sum)
		}
		if tr.PHome < 0 || tr.PDraw < 0 || tr.PAway < 0 {
			t.Errorf("set %s has negative probability: %+v", s, tr)
		}
	}
}

func TestGenerateMissingOddsFallsBackToSetA(t *testing.T) {
	a := sampleTriple()
	sets, err := Generate(a, nil, defaultCoeffs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := sets[model.SetC]
	if !approxEqual(c.PHome, a.PHome, 1e-9) || !approxEqual(c.PDraw, a.PDraw, 1e-9) || !approxEqual(c.PAway, a.PAway, 1e-9) {
		t.Errorf("set C did not fall back to set A: %+v vs %+v", c, a)
	}
	f := sets[model.SetF]
	if !approxEqual(f.PHome, a.PHome, 1e-9) || !approxEqual(f.PDraw, a.PDraw, 1e-9) || !approxEqual(f.PAway, a.PAway, 1e-9) {
		t.Errorf("set F did not fall back to set A: %+v vs %+v", f, a)
	}
}

func TestSetDBoostsDraw(t *testing.T) {
	a := sampleTriple()
	odds := model.Odds{Home: 2.1, Draw: 3.3, Away: 3.6}
	sets, err := Generate(a, &odds, defaultCoeffs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, d := sets[model.SetB], sets[model.SetD]
	if d.PDraw <= b.PDraw {
		t.Errorf("set D draw probability %.4f should exceed set B's %.4f", d.PDraw, b.PDraw)
	}
}

func TestSetESharpensFavorite(t *testing.T) {
	a := sampleTriple()
	odds := model.Odds{Home: 2.1, Draw: 3.3, Away: 3.6}
	sets, err := Generate(a, &odds, defaultCoeffs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, e := sets[model.SetB], sets[model.SetE]
	favorite := b.PHome
	if b.PAway > favorite {
		favorite = b.PAway
	}
	sharpenedFavorite := e.PHome
	if e.PAway > sharpenedFavorite {
		sharpenedFavorite = e.PAway
	}
	if sharpenedFavorite <= favorite {
		t.Errorf("set E should sharpen the favorite above set B: %.4f vs %.4f", sharpenedFavorite, favorite)
	}
}

func TestKellyFractionClippedToUnitInterval(t *testing.T) {
	if f := kellyFraction(0.9, 1.2); f < 0 || f > 1 {
		t.Errorf("kellyFraction out of range: %.4f", f)
	}
	if f := kellyFraction(0.1, 1.5); f != 0 {
		t.Errorf("negative-edge kellyFraction should clip to 0, got %.4f", f)
	}
}

func TestNormalizedRejectsNonFiniteSum(t *testing.T) {
	_, err := normalized(model.SetB, math.NaN(), 0.2, 0.2, sampleTriple())
	if err == nil {
		t.Fatalf("expected error for NaN blend sum")
	}
}
