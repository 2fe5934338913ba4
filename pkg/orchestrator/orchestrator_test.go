package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/poisson"
	"github.com/jhw/football-prob-engine/pkg/ports"
	"github.com/jhw/football-prob-engine/pkg/ports/memory"
)

func testModelVersion() model.ModelVersion {
	return model.ModelVersion{
		ID:            "v1",
		League:        "EPL",
		HomeAdvantage: 0.3,
		Rho:           -0.1,
		Teams: map[int64]model.Team{
			1: {ID: 1, Attack: 0.4, Defense: -0.2},
			2: {ID: 2, Attack: -0.1, Defense: 0.1},
		},
		Blend: model.BlendCoefficients{
			EntropyMin:             0.3,
			EntropyMax:             0.8,
			MarketDomModel:         0.2,
			DrawBoostLeagueDefault: 0.15,
			SharpenTemperature:     1.0 / 1.5,
			KellyEnabled:           true,
		},
		Status: model.ModelActive,
	}
}

func newHarness(t *testing.T) (*Orchestrator, *memory.SnapshotRepository) {
	t.Helper()
	teams := memory.NewTeamResolver()
	teams.Register("EPL", "Home FC", 1)
	teams.Register("EPL", "Away FC", 2)

	models := memory.NewModelRepository()
	mv := testModelVersion()
	if err := models.Save(context.Background(), mv); err != nil {
		t.Fatalf("save model: %v", err)
	}
	if err := models.Activate(context.Background(), mv.ID); err != nil {
		t.Fatalf("activate model: %v", err)
	}

	thresholds := memory.NewThresholdsRepository(ports.ThresholdSnapshot{
		EVThreshold:          -1.0,
		EntropyPenalty:       0.05,
		ContradictionPenalty: 0.1,
		MaxContradictions:    2,
		DecisionVersion:      "UDS_v1",
	})

	snapshots := memory.NewSnapshotRepository()
	clock := memory.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	o := New(teams, models, thresholds, snapshots, clock, nil)
	return o, snapshots
}

func TestPredictSlateResolvesAndCaches(t *testing.T) {
	o, snapshots := newHarness(t)
	fixtures := []model.Fixture{
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}

	result, err := o.PredictSlate(context.Background(), fixtures, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fixtures) != 2 {
		t.Fatalf("expected 2 fixture results, got %d", len(result.Fixtures))
	}
	for _, fr := range result.Fixtures {
		if !fr.TeamResolutionOK {
			t.Errorf("expected team resolution to succeed")
		}
		if len(fr.Sets) != 7 {
			t.Errorf("expected 7 probability sets, got %d", len(fr.Sets))
		}
	}
	if len(snapshots.Snaps) != 2 {
		t.Errorf("expected 2 recorded snapshots, got %d", len(snapshots.Snaps))
	}
	if o.cache.entries == nil || len(o.cache.entries) != 1 {
		t.Errorf("expected one cached prediction for the repeated fixture, got %d", len(o.cache.entries))
	}
}

func TestPredictSlateUnknownTeamMarksUnresolved(t *testing.T) {
	o, _ := newHarness(t)
	fixtures := []model.Fixture{
		{HomeName: "Ghost United", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}

	result, err := o.PredictSlate(context.Background(), fixtures, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fixtures[0].TeamResolutionOK {
		t.Errorf("expected team resolution failure to be reported, not errored")
	}
}

func TestPredictSlateCancelledPastDeadline(t *testing.T) {
	o, _ := newHarness(t)
	fixtures := []model.Fixture{
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}

	_, err := o.PredictSlate(context.Background(), fixtures, Options{Deadline: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})
	if _, ok := err.(*model.CancelledError); !ok {
		t.Fatalf("expected *model.CancelledError, got %T (%v)", err, err)
	}
}

// steppingClock returns each time in sequence, repeating the last one, so a
// deadline can be made to expire between two fixtures rather than before the
// whole slate starts.
type steppingClock struct {
	times []time.Time
	calls int
}

func (c *steppingClock) Now() time.Time {
	t := c.times[c.calls]
	if c.calls < len(c.times)-1 {
		c.calls++
	}
	return t
}

func TestPredictSlateCancelledMidSlatePersistsNoSnapshots(t *testing.T) {
	o, snapshots := newHarness(t)
	clock := &steppingClock{times: []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC),
	}}
	o.Clock = clock

	fixtures := []model.Fixture{
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}
	deadline := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)

	_, err := o.PredictSlate(context.Background(), fixtures, Options{Deadline: deadline})
	if _, ok := err.(*model.CancelledError); !ok {
		t.Fatalf("expected *model.CancelledError, got %T (%v)", err, err)
	}
	if len(snapshots.Snaps) != 0 {
		t.Errorf("expected zero persisted snapshots on mid-slate cancellation, got %d", len(snapshots.Snaps))
	}
}

func TestPredictSlateIncludeAuxMarkets(t *testing.T) {
	o, _ := newHarness(t)
	fixtures := []model.Fixture{
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}

	result, err := o.PredictSlate(context.Background(), fixtures, Options{IncludeAuxMarkets: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aux := result.Fixtures[0].AuxMarkets
	if aux == nil {
		t.Fatalf("expected AuxMarkets to be populated")
	}
	if len(aux.AsianHandicaps) == 0 {
		t.Errorf("expected at least one Asian handicap line")
	}
	if len(aux.TotalGoals) == 0 {
		t.Errorf("expected at least one total-goals line")
	}
}

func TestPredictSlateOmitsAuxMarketsByDefault(t *testing.T) {
	o, _ := newHarness(t)
	fixtures := []model.Fixture{
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}

	result, err := o.PredictSlate(context.Background(), fixtures, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fixtures[0].AuxMarkets != nil {
		t.Errorf("expected AuxMarkets to stay nil when not requested")
	}
}

func TestStandingsRanksByPointsThenGoalDifference(t *testing.T) {
	results := []poisson.MatchResult{
		{HomeTeamID: 1, AwayTeamID: 2, HomeGoals: 3, AwayGoals: 0},
		{HomeTeamID: 2, AwayTeamID: 3, HomeGoals: 1, AwayGoals: 1},
		{HomeTeamID: 3, AwayTeamID: 1, HomeGoals: 0, AwayGoals: 2},
	}
	report := Standings([]int64{1, 2, 3}, results, 2)

	if len(report.Table) != 3 {
		t.Fatalf("expected 3 table rows, got %d", len(report.Table))
	}
	if report.Table[0].TeamID != 1 {
		t.Errorf("expected team 1 top of table, got %d", report.Table[0].TeamID)
	}
	if len(report.Remaining) == 0 {
		t.Errorf("expected remaining fixtures for a 2-round schedule after a single round")
	}
}

func TestEvaluateTicketsReportsEvaluatedCount(t *testing.T) {
	o, _ := newHarness(t)
	fixtures := []model.Fixture{
		{HomeName: "Home FC", AwayName: "Away FC", LeagueCode: "EPL", LineupStable: true},
	}
	slate, err := o.PredictSlate(context.Background(), fixtures, Options{})
	if err != nil {
		t.Fatalf("predict slate: %v", err)
	}

	pick := model.TicketPick{
		FixtureIndex: 0,
		Pick:         model.OutcomeHome,
		MarketOdds:   2.0,
		ModelProb:    slate.Fixtures[0].Snapshot.Triple.PHome,
		PDV:          0.5,
	}
	candidatePicks := [][]model.TicketPick{{pick}}

	bundleResult, err := o.EvaluateTickets(context.Background(), slate, candidatePicks, TicketOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundleResult.Evaluated != 1 {
		t.Errorf("expected 1 candidate evaluated, got %d", bundleResult.Evaluated)
	}
}
