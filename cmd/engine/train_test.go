package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jhw/football-prob-engine/pkg/calibrator"
	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/strength"
)

func writeTempMatches(t *testing.T, matches []model.HistoricalMatch) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matches.json")
	raw, err := json.Marshal(matches)
	if err != nil {
		t.Fatalf("marshal matches: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write matches: %v", err)
	}
	return path
}

func syntheticMatches(n int) []model.HistoricalMatch {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.HistoricalMatch, 0, n)
	teams := []int64{1, 2, 3, 4}
	for i := 0; i < n; i++ {
		home := teams[i%len(teams)]
		away := teams[(i+1)%len(teams)]
		if home == away {
			away = teams[(i+2)%len(teams)]
		}
		out = append(out, model.HistoricalMatch{
			League:     "EPL",
			Date:       base.AddDate(0, 0, i),
			HomeTeamID: home,
			AwayTeamID: away,
			HomeGoals:  1,
			AwayGoals:  1,
			Result:     model.OutcomeDraw,
		})
	}
	return out
}

func TestReadMatchesRoundTrip(t *testing.T) {
	matches := syntheticMatches(5)
	path := writeTempMatches(t, matches)

	got, err := readMatches(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(matches) {
		t.Fatalf("expected %d matches, got %d", len(matches), len(got))
	}
}

func TestFilterByLeagueAndDate(t *testing.T) {
	matches := syntheticMatches(10)
	filtered := filterByLeagueAndDate(matches, "EPL", "2025-01-03", "2025-01-05")
	if len(filtered) != 3 {
		t.Fatalf("expected 3 matches in range, got %d", len(filtered))
	}

	filtered = filterByLeagueAndDate(matches, "LaLiga", "", "")
	if len(filtered) != 0 {
		t.Fatalf("expected 0 matches for a different league, got %d", len(filtered))
	}
}

// syntheticLeague builds a round-robin league with decisive results, the
// shape strength.Fit converges cleanly on (mirrored from
// pkg/strength's own synthetic fixture generator).
func syntheticLeague(nTeams, nRounds int) []model.HistoricalMatch {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var matches []model.HistoricalMatch
	day := 0
	for r := 0; r < nRounds; r++ {
		for h := 0; h < nTeams; h++ {
			for a := 0; a < nTeams; a++ {
				if h == a {
					continue
				}
				hg, ag := 1, 1
				if h < a {
					hg = 2
				} else {
					ag = 2
				}
				matches = append(matches, model.HistoricalMatch{
					League:     "TEST",
					Date:       base.AddDate(0, 0, day),
					HomeTeamID: int64(h),
					AwayTeamID: int64(a),
					HomeGoals:  hg,
					AwayGoals:  ag,
					Result:     model.ResultFor(hg, ag),
				})
				day++
			}
		}
	}
	return matches
}

func TestSplitCalibrationHoldoutIsChronologicalTail(t *testing.T) {
	matches := syntheticLeague(8, 24)
	fit, holdout := splitCalibrationHoldout(matches)

	if len(fit)+len(holdout) != len(matches) {
		t.Fatalf("split dropped matches: %d + %d != %d", len(fit), len(holdout), len(matches))
	}
	if len(holdout) < calibrator.MinSamples {
		t.Fatalf("holdout too small to fit a real curve: %d < %d", len(holdout), calibrator.MinSamples)
	}
	for _, m := range fit {
		for _, h := range holdout {
			if m.Date.After(h.Date) {
				t.Fatalf("fit match %v is later than holdout match %v", m.Date, h.Date)
			}
		}
	}
}

func TestTrainedModelCarriesNonEmptyCalibrationCurves(t *testing.T) {
	matches := syntheticLeague(8, 24)
	fitMatches, holdout := splitCalibrationHoldout(matches)

	mv, err := strength.Fit("TEST", fitMatches, strength.DefaultHyperparameters(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected fit error: %v", err)
	}

	curves, quality := fitCalibration(mv, holdout)
	for _, o := range []model.Outcome{model.OutcomeHome, model.OutcomeDraw, model.OutcomeAway} {
		curve, ok := curves[o]
		if !ok {
			t.Fatalf("missing calibration curve for outcome %v", o)
		}
		if len(curve.Anchors) == 0 {
			t.Errorf("outcome %v curve has no anchors", o)
		}
	}
	if quality != "" {
		t.Errorf("expected a quality holdout to avoid the insufficient-samples flag, got %q", quality)
	}
}

func TestWriteModelVersionProducesValidJSON(t *testing.T) {
	mv := model.ModelVersion{ID: "v1", League: "EPL"}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := writeModelVersion(path, mv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var roundTripped model.ModelVersion
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.ID != "v1" {
		t.Errorf("expected id v1, got %s", roundTripped.ID)
	}
}
