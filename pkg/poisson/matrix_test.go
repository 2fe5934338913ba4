package poisson

import "testing"

// TestAsianHandicapsHalfLinesSumToOne checks that every half-point (no-draw)
// handicap line's home/away probabilities sum to 1, and that integer lines
// additionally carry a draw probability.
func TestAsianHandicapsHalfLinesSumToOne(t *testing.T) {
	sm := NewScoreMatrix(1.5, 1.2, -0.1, 8)
	lines := sm.AsianHandicaps()
	if len(lines) == 0 {
		t.Fatalf("expected at least one handicap line")
	}
	for _, l := range lines {
		if l.HalfLine {
			if sum := l.Home + l.Away; !approxEqual(sum, 1.0, 1e-6) {
				t.Errorf("handicap %.1f: home+away = %.6f, want 1", l.Handicap, sum)
			}
			if l.Draw != 0 {
				t.Errorf("handicap %.1f: expected no draw probability on a half-line, got %.6f", l.Handicap, l.Draw)
			}
		} else {
			if sum := l.Home + l.Draw + l.Away; !approxEqual(sum, 1.0, 1e-6) {
				t.Errorf("handicap %.1f: home+draw+away = %.6f, want 1", l.Handicap, sum)
			}
		}
	}
}

// TestAsianHandicapsZeroLineMatchesOutcomes checks that the 0 handicap
// line reproduces the matrix's own match-odds outcome probabilities.
func TestAsianHandicapsZeroLineMatchesOutcomes(t *testing.T) {
	sm := NewScoreMatrix(1.5, 1.2, -0.1, 8)
	pHome, pDraw, pAway, err := sm.Outcomes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range sm.AsianHandicaps() {
		if l.Handicap != 0 {
			continue
		}
		if !approxEqual(l.Home, pHome, 1e-9) || !approxEqual(l.Draw, pDraw, 1e-9) || !approxEqual(l.Away, pAway, 1e-9) {
			t.Errorf("handicap 0 = (%.6f,%.6f,%.6f), want match odds (%.6f,%.6f,%.6f)", l.Home, l.Draw, l.Away, pHome, pDraw, pAway)
		}
		return
	}
	t.Fatalf("expected a handicap 0 line")
}

func TestTotalGoalsLinesSumToOne(t *testing.T) {
	sm := NewScoreMatrix(1.5, 1.2, -0.1, 8)
	lines := sm.TotalGoals()
	if len(lines) == 0 {
		t.Fatalf("expected at least one total-goals line")
	}
	for _, l := range lines {
		if sum := l.Under + l.Over; !approxEqual(sum, 1.0, 1e-6) {
			t.Errorf("line %.1f: under+over = %.6f, want 1", l.Line, sum)
		}
	}
}

func TestTotalGoalsMonotoneOverProbability(t *testing.T) {
	sm := NewScoreMatrix(1.5, 1.2, -0.1, 8)
	lines := sm.TotalGoals()
	for i := 1; i < len(lines); i++ {
		if lines[i].Over > lines[i-1].Over {
			t.Fatalf("over probability increased from line %.1f to %.1f: %.6f -> %.6f", lines[i-1].Line, lines[i].Line, lines[i-1].Over, lines[i].Over)
		}
	}
}
