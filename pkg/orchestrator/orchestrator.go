// Package orchestrator composes the pipeline spec §2 and §5 describe:
// Strength Estimator -> Integrator -> Blender -> Calibrator -> Decision,
// strictly ordered within one request, with a bounded per-ModelVersion
// prediction cache and a deadline checked between fixtures (never inside
// the inner score-matrix sum).
//
// Grounded on jhw-go-outrights/pkg/outrights/api.go's top-level
// Run/Compute entry points, which similarly thread a SeasonState and a set
// of markets through a fixed stage order.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jhw/football-prob-engine/pkg/blender"
	"github.com/jhw/football-prob-engine/pkg/calibrator"
	"github.com/jhw/football-prob-engine/pkg/decision"
	"github.com/jhw/football-prob-engine/pkg/integrator"
	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/poisson"
	"github.com/jhw/football-prob-engine/pkg/portfolio"
	"github.com/jhw/football-prob-engine/pkg/ports"
)

// Options controls one predict_slate request, per spec §6.
type Options struct {
	ModelVersion      string // explicit version id, or "active"
	Sets              []model.ProbabilitySet
	ApplyCalibration  bool
	IncludeAuxMarkets bool
	Deadline          time.Time
}

// FixtureResult is one fixture's outcome within a SlateResult.
type FixtureResult struct {
	Fixture          model.Fixture
	TeamResolutionOK bool
	Sets             map[model.ProbabilitySet]model.ProbabilityTriple
	Snapshot         model.PredictionSnapshot
	AuxMarkets       *AuxMarkets
}

// AuxMarkets holds the optional Asian-handicap and total-goals enrichment
// lines for one fixture (SPEC_FULL.md §4 supplemented features), derived
// from the identical score matrix the fixture's ProbabilityTriple was
// summed from. Populated only when Options.IncludeAuxMarkets is set.
type AuxMarkets struct {
	AsianHandicaps []poisson.HandicapLine
	TotalGoals     []poisson.TotalGoalsLine
}

// SlateResult is predict_slate's return value (spec §6).
type SlateResult struct {
	SlateID      string
	ModelVersion string
	Fixtures     []FixtureResult
}

// Orchestrator wires the pipeline stages to the host's ports.
type Orchestrator struct {
	Teams      ports.TeamResolver
	Models     ports.ModelRepository
	Thresholds ports.ThresholdsRepository
	Snapshots  ports.SnapshotRepository
	Clock      ports.Clock
	Logger     *log.Logger

	cache *predictionCache
}

// New builds an Orchestrator with a default-sized prediction cache.
func New(teams ports.TeamResolver, models ports.ModelRepository, thresholds ports.ThresholdsRepository, snapshots ports.SnapshotRepository, clock ports.Clock, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		Teams:      teams,
		Models:     models,
		Thresholds: thresholds,
		Snapshots:  snapshots,
		Clock:      clock,
		Logger:     logger,
		cache:      newPredictionCache(100_000),
	}
}

// PredictSlate runs Integrator -> Blender -> (optional) Calibrator over
// every fixture in order, checking the deadline between fixtures.
func (o *Orchestrator) PredictSlate(ctx context.Context, fixtures []model.Fixture, opts Options) (SlateResult, error) {
	mv, err := o.resolveModel(ctx, opts.ModelVersion, fixtures)
	if err != nil {
		return SlateResult{}, err
	}

	sets := opts.Sets
	if len(sets) == 0 {
		sets = model.AllSets
	}

	slateID := uuid.NewString()
	result := SlateResult{SlateID: slateID, ModelVersion: mv.ID, Fixtures: make([]FixtureResult, 0, len(fixtures))}
	pending := make([]model.PredictionSnapshot, 0, len(fixtures))

	for i, fx := range fixtures {
		if err := checkDeadline(opts.Deadline, o.Clock); err != nil {
			return SlateResult{}, &model.CancelledError{Fixture: fx.HomeName + " vs " + fx.AwayName}
		}

		fr, err := o.predictFixture(ctx, mv, fx, i, sets, opts.ApplyCalibration, opts.IncludeAuxMarkets)
		if err != nil {
			if _, ok := err.(*model.TeamNotFoundError); ok {
				fr = FixtureResult{Fixture: fx, TeamResolutionOK: false}
				result.Fixtures = append(result.Fixtures, fr)
				if o.Logger != nil {
					o.Logger.Warn("team not resolved", "home", fx.HomeName, "away", fx.AwayName, "league", fx.LeagueCode)
				}
				continue
			}
			return SlateResult{}, err
		}
		result.Fixtures = append(result.Fixtures, fr)
		pending = append(pending, fr.Snapshot)
	}

	// Snapshots are recorded only once the whole slate has succeeded, so a
	// deadline cancellation or a later fixture's error leaves no persisted
	// state behind (spec §2/§5: "A half-completed request produces no
	// persisted state").
	for _, snapshot := range pending {
		if err := o.Snapshots.Record(ctx, snapshot); err != nil {
			return SlateResult{}, err
		}
	}

	return result, nil
}

func (o *Orchestrator) resolveModel(ctx context.Context, versionID string, fixtures []model.Fixture) (model.ModelVersion, error) {
	if versionID == "" || versionID == "active" {
		if len(fixtures) == 0 {
			return model.ModelVersion{}, &model.ModelNotFoundError{VersionID: "active"}
		}
		return o.Models.Active(ctx, fixtures[0].LeagueCode)
	}
	return o.Models.Load(ctx, versionID)
}

func (o *Orchestrator) predictFixture(ctx context.Context, mv model.ModelVersion, fx model.Fixture, idx int, sets []model.ProbabilitySet, applyCalibration, includeAuxMarkets bool) (FixtureResult, error) {
	homeID, found, err := o.Teams.Resolve(ctx, fx.HomeName, fx.LeagueCode)
	if err != nil {
		return FixtureResult{}, err
	}
	if !found {
		return FixtureResult{}, &model.TeamNotFoundError{Name: fx.HomeName, League: fx.LeagueCode}
	}
	awayID, found, err := o.Teams.Resolve(ctx, fx.AwayName, fx.LeagueCode)
	if err != nil {
		return FixtureResult{}, err
	}
	if !found {
		return FixtureResult{}, &model.TeamNotFoundError{Name: fx.AwayName, League: fx.LeagueCode}
	}

	key := cacheKey{versionID: mv.ID, homeID: homeID, awayID: awayID, lineupStable: fx.LineupStable}
	triple, ok := o.cache.get(key)
	if !ok {
		home, away := mv.Teams[homeID], mv.Teams[awayID]
		triple, err = integrator.Predict(home.Attack, home.Defense, away.Attack, away.Defense, mv.HomeAdvantage, mv.Rho, fx.LineupStable)
		if err != nil {
			return FixtureResult{}, err
		}
		o.cache.put(key, triple)
	}

	blended, err := blender.Generate(triple, fx.Odds, mv.Blend)
	if err != nil {
		return FixtureResult{}, err
	}

	out := make(map[model.ProbabilitySet]model.ProbabilityTriple, len(sets))
	for _, s := range sets {
		t := blended[s]
		if applyCalibration && len(mv.Calibration) > 0 {
			calibrated, err := calibrator.ApplyTriple(mv.Calibration, t)
			if err != nil {
				return FixtureResult{}, err
			}
			t = calibrated
		}
		out[s] = t
	}

	snapshot := model.PredictionSnapshot{
		FixtureIndex:   idx,
		ModelVersionID: mv.ID,
		Triple:         triple,
		Shrunk:         mv.Teams[homeID].Shrunk || mv.Teams[awayID].Shrunk,
	}

	var aux *AuxMarkets
	if includeAuxMarkets {
		home, away := mv.Teams[homeID], mv.Teams[awayID]
		sm, _, _, _, err := integrator.Matrix(home.Attack, home.Defense, away.Attack, away.Defense, mv.HomeAdvantage, mv.Rho, fx.LineupStable)
		if err != nil {
			return FixtureResult{}, err
		}
		aux = &AuxMarkets{AsianHandicaps: sm.AsianHandicaps(), TotalGoals: sm.TotalGoals()}
	}

	return FixtureResult{Fixture: fx, TeamResolutionOK: true, Sets: out, Snapshot: snapshot, AuxMarkets: aux}, nil
}

func checkDeadline(deadline time.Time, clock ports.Clock) error {
	if deadline.IsZero() {
		return nil
	}
	now := time.Now()
	if clock != nil {
		now = clock.Now()
	}
	if now.After(deadline) {
		return fmt.Errorf("deadline exceeded")
	}
	return nil
}

// TicketOptions controls evaluate_tickets, per spec §6.
type TicketOptions struct {
	ArchetypeHint *model.Archetype
	BundleSize    int
}

// BundleResult is evaluate_tickets's return value.
type BundleResult struct {
	SlateID   string
	Archetype model.Archetype
	Bundle    []portfolio.Candidate
	Evaluated int
}

// EvaluateTickets scores candidate tickets and selects the final bundle,
// per spec §4.5/§4.6.
func (o *Orchestrator) EvaluateTickets(ctx context.Context, slate SlateResult, candidatePicks [][]model.TicketPick, opts TicketOptions) (BundleResult, error) {
	thresholds, err := o.Thresholds.Current(ctx)
	if err != nil {
		return BundleResult{}, err
	}
	weights := decision.Weights{
		EVThreshold:          thresholds.EVThreshold,
		EntropyPenalty:       thresholds.EntropyPenalty,
		ContradictionPenalty: thresholds.ContradictionPenalty,
		MaxContradictions:    thresholds.MaxContradictions,
	}

	snapshots := make([]model.PredictionSnapshot, 0, len(slate.Fixtures))
	triples := make([]model.ProbabilityTriple, 0, len(slate.Fixtures))
	marketAway := make([]float64, 0, len(slate.Fixtures))
	for _, fr := range slate.Fixtures {
		snapshots = append(snapshots, fr.Snapshot)
		triples = append(triples, fr.Snapshot.Triple)
		awayProb := 0.0
		if fr.Fixture.Odds != nil {
			if _, _, a, err := blender.MarginFree(*fr.Fixture.Odds); err == nil {
				awayProb = a
			}
		}
		marketAway = append(marketAway, awayProb)
	}

	archetype := decision.SelectArchetype(decision.ProfileSlate(triples, marketAway))
	if opts.ArchetypeHint != nil {
		archetype = *opts.ArchetypeHint
	}

	bundleSize := opts.BundleSize
	if bundleSize <= 0 {
		bundleSize = 5
	}

	var candidates []portfolio.Candidate
	for _, picks := range candidatePicks {
		if !decision.ConformsToArchetype(archetype, picks, snapshots) {
			continue
		}
		uds, ok, _ := decision.Evaluate(picks, snapshots, weights)
		if ok {
			candidates = append(candidates, portfolio.Candidate{Picks: picks, Snapshots: snapshots, UDS: uds, Accepted: true})
		}
	}

	bundle := portfolio.SelectBundle(candidates, bundleSize, portfolio.ShockedFixtures{})

	for _, c := range bundle {
		ticket := model.Ticket{
			ID:              uuid.NewString(),
			SlateID:         slate.SlateID,
			Picks:           c.Picks,
			Snapshots:       c.Snapshots,
			Archetype:       archetype,
			DecisionVersion: decision.DecisionVersion,
			UDS:             c.UDS,
			Accepted:        true,
			EVThresholdUsed: weights.EVThreshold,
			EvaluatedAt:     o.nowOrZero(),
		}
		if err := o.Snapshots.RecordTicket(ctx, ticket); err != nil {
			return BundleResult{}, err
		}
	}

	return BundleResult{SlateID: slate.SlateID, Archetype: archetype, Bundle: bundle, Evaluated: len(candidatePicks)}, nil
}

// StandingsReport bundles the league-table and remaining-fixtures
// enrichment (SPEC_FULL.md §4 supplemented features) computed directly
// from a completed match history, independent of any ModelVersion.
type StandingsReport struct {
	Table     []poisson.TableRow
	Remaining [][2]int64
}

// Standings computes a league table and the remaining (home,away) pairs
// needed to complete a round-robin schedule of roundsPerPair meetings per
// pair of teams, from a completed match history. It requires no fitted
// model and can be requested alongside, or independently of, PredictSlate.
func Standings(teamIDs []int64, results []poisson.MatchResult, roundsPerPair int) StandingsReport {
	return StandingsReport{
		Table:     poisson.LeagueTable(teamIDs, results),
		Remaining: poisson.RemainingFixtures(teamIDs, results, roundsPerPair),
	}
}

func (o *Orchestrator) nowOrZero() time.Time {
	if o.Clock == nil {
		return time.Time{}
	}
	return o.Clock.Now()
}

// cacheKey identifies one memoized prediction, per spec §5: keyed by
// (version_id, home_id, away_id, lineup_stable).
type cacheKey struct {
	versionID    string
	homeID       int64
	awayID       int64
	lineupStable bool
}

// predictionCache is a bounded, thread-safe memoization of Integrator
// output, sized per spec §5 (~100k entries). When full it evicts the
// oldest-inserted entry (FIFO, not LRU). Eviction is not semantically
// observable: a miss just recomputes.
type predictionCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]model.ProbabilityTriple
	order    []cacheKey
}

func newPredictionCache(capacity int) *predictionCache {
	return &predictionCache{capacity: capacity, entries: make(map[cacheKey]model.ProbabilityTriple)}
}

func (c *predictionCache) get(key cacheKey) (model.ProbabilityTriple, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries[key]
	return t, ok
}

func (c *predictionCache) put(key cacheKey, t model.ProbabilityTriple) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = t
}
