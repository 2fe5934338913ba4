package calibrator

import (
	"math/rand"
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

// syntheticSamples builds a deterministic population where the true
// observed rate equals the uniformly drawn predicted probability, so a
// fitted isotonic curve should stay close to the identity map.
func syntheticSamples(n int) []Sample {
	r := rand.New(rand.NewSource(1))
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		p := r.Float64()
		obs := 0.0
		if r.Float64() < p {
			obs = 1
		}
		samples[i] = Sample{Predicted: p, Observed: obs}
	}
	return samples
}

func TestFitBelowMinSamplesIsIdentity(t *testing.T) {
	samples := syntheticSamples(MinSamples - 1)
	curve := Fit(model.OutcomeHome, samples)
	if got := Apply(curve, 0.3); !approxEqual(got, 0.3, 1e-9) {
		t.Errorf("identity fallback: Apply(0.3) = %.4f, want 0.3", got)
	}
}

func TestFitProducesMonotoneCurve(t *testing.T) {
	samples := syntheticSamples(5000)
	curve := Fit(model.OutcomeHome, samples)
	for i := 1; i < len(curve.Anchors); i++ {
		if curve.Anchors[i].Y < curve.Anchors[i-1].Y {
			t.Fatalf("non-monotone anchor at %d: %+v", i, curve.Anchors)
		}
	}
}

func TestApplyTripleRenormalizes(t *testing.T) {
	curves := map[model.Outcome]model.CalibrationCurve{
		model.OutcomeHome: {Outcome: model.OutcomeHome, Anchors: []model.CalibrationAnchor{{X: 0, Y: 0}, {X: 1, Y: 0.9}}},
		model.OutcomeDraw: {Outcome: model.OutcomeDraw, Anchors: []model.CalibrationAnchor{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		model.OutcomeAway: {Outcome: model.OutcomeAway, Anchors: []model.CalibrationAnchor{{X: 0, Y: 0}, {X: 1, Y: 1}}},
	}
	triple := model.ProbabilityTriple{PHome: 0.5, PDraw: 0.25, PAway: 0.25}
	out, err := ApplyTriple(curves, triple)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum := out.Sum(); !approxEqual(sum, 1.0, 1e-9) {
		t.Errorf("sum = %.8f, want 1", sum)
	}
}

func TestApplyClampsAtArbitraryCurveEnds(t *testing.T) {
	curve := model.CalibrationCurve{Anchors: []model.CalibrationAnchor{{X: 0.2, Y: 0.3}, {X: 0.8, Y: 0.7}}}
	if got := Apply(curve, 0.0); !approxEqual(got, 0.3, 1e-9) {
		t.Errorf("below-range clamp: got %.4f, want 0.3", got)
	}
	if got := Apply(curve, 1.0); !approxEqual(got, 0.7, 1e-9) {
		t.Errorf("above-range clamp: got %.4f, want 0.7", got)
	}
}

// TestFitEnforcesZeroOneBoundary asserts spec's g_X(0)=0, g_X(1)=1 invariant:
// a fitted curve's extreme anchors are clipped to (0,0) and (1,1) regardless
// of where the PAV blocks' own extreme sample x values and means land.
func TestFitEnforcesZeroOneBoundary(t *testing.T) {
	samples := syntheticSamples(5000)
	curve := Fit(model.OutcomeHome, samples)
	if got := Apply(curve, 0.0); !approxEqual(got, 0.0, 1e-9) {
		t.Errorf("g_X(0) = %.4f, want 0", got)
	}
	if got := Apply(curve, 1.0); !approxEqual(got, 1.0, 1e-9) {
		t.Errorf("g_X(1) = %.4f, want 1", got)
	}
	if first := curve.Anchors[0]; first.X != 0 || first.Y != 0 {
		t.Errorf("first anchor = %+v, want {0 0}", first)
	}
	if last := curve.Anchors[len(curve.Anchors)-1]; last.X != 1 || last.Y != 1 {
		t.Errorf("last anchor = %+v, want {1 1}", last)
	}
}

func TestBrierScorePerfectPrediction(t *testing.T) {
	samples := []Sample{{Predicted: 1, Observed: 1}, {Predicted: 0, Observed: 0}}
	if got := BrierScore(samples); !approxEqual(got, 0, 1e-9) {
		t.Errorf("BrierScore = %.4f, want 0 for perfect predictions", got)
	}
}

func TestExpectedCalibrationErrorSmallForCalibratedConstant(t *testing.T) {
	samples := make([]Sample, 1000)
	r := rand.New(rand.NewSource(2))
	hits := 0
	for i := range samples {
		obs := 0.0
		if r.Float64() < 0.4 {
			obs = 1
			hits++
		}
		samples[i] = Sample{Predicted: 0.4, Observed: obs}
	}
	ece := ExpectedCalibrationError(samples, 10)
	if ece > 0.1 {
		t.Errorf("ECE = %.4f, want small for a well-calibrated constant predictor", ece)
	}
}
