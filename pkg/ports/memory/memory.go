// Package memory provides in-memory reference adapters for pkg/ports, used
// by tests and local runs. None of this is a production persistence
// layer — durable storage is explicitly out of scope (spec §1) — but the
// core's ports must have at least one concrete implementation to exercise
// end to end.
//
// Grounded on jhw-go-outrights/pkg/outrights/state.go's in-process season
// state holder, generalized into separate locked maps per port.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/ports"
)

// TeamResolver is a map-backed ports.TeamResolver keyed by (league, name).
type TeamResolver struct {
	mu    sync.RWMutex
	teams map[string]int64
}

func NewTeamResolver() *TeamResolver {
	return &TeamResolver{teams: make(map[string]int64)}
}

func (r *TeamResolver) Register(league, name string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[league+"\x00"+name] = id
}

func (r *TeamResolver) Resolve(_ context.Context, name, league string) (int64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.teams[league+"\x00"+name]
	return id, ok, nil
}

// MatchRepository holds an in-memory slice of historical matches.
type MatchRepository struct {
	mu      sync.RWMutex
	matches []model.HistoricalMatch
}

func NewMatchRepository(matches []model.HistoricalMatch) *MatchRepository {
	return &MatchRepository{matches: matches}
}

func (r *MatchRepository) Historical(_ context.Context, filter ports.MatchFilter) ([]model.HistoricalMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.HistoricalMatch
	for _, m := range r.matches {
		if filter.League != "" && m.League != filter.League {
			continue
		}
		if !filter.From.IsZero() && m.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.Date.After(filter.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ModelRepository stores ModelVersions by id and tracks one active version
// per league, atomically archiving the prior on Activate.
type ModelRepository struct {
	mu       sync.RWMutex
	versions map[string]model.ModelVersion
	active   map[string]string // league -> version id
}

func NewModelRepository() *ModelRepository {
	return &ModelRepository{versions: make(map[string]model.ModelVersion), active: make(map[string]string)}
}

func (r *ModelRepository) Load(_ context.Context, versionID string) (model.ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mv, ok := r.versions[versionID]
	if !ok {
		return model.ModelVersion{}, &model.ModelNotFoundError{VersionID: versionID}
	}
	return mv, nil
}

func (r *ModelRepository) Save(_ context.Context, mv model.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[mv.ID] = mv
	return nil
}

func (r *ModelRepository) Activate(_ context.Context, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mv, ok := r.versions[versionID]
	if !ok {
		return &model.ModelNotFoundError{VersionID: versionID}
	}
	if prevID, ok := r.active[mv.League]; ok {
		if prev, ok := r.versions[prevID]; ok {
			prev.Status = model.ModelArchived
			r.versions[prevID] = prev
		}
	}
	mv.Status = model.ModelActive
	r.versions[mv.ID] = mv
	r.active[mv.League] = mv.ID
	return nil
}

func (r *ModelRepository) Active(_ context.Context, league string) (model.ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.active[league]
	if !ok {
		return model.ModelVersion{}, &model.ModelNotFoundError{VersionID: fmt.Sprintf("active:%s", league)}
	}
	return r.versions[id], nil
}

// ThresholdsRepository holds the single current ThresholdSnapshot.
type ThresholdsRepository struct {
	mu       sync.RWMutex
	current  ports.ThresholdSnapshot
	hasValue bool
}

func NewThresholdsRepository(initial ports.ThresholdSnapshot) *ThresholdsRepository {
	return &ThresholdsRepository{current: initial, hasValue: true}
}

func (r *ThresholdsRepository) Current(_ context.Context) (ports.ThresholdSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasValue {
		return ports.ThresholdSnapshot{}, fmt.Errorf("no thresholds snapshot recorded yet")
	}
	return r.current, nil
}

func (r *ThresholdsRepository) Save(_ context.Context, snapshot ports.ThresholdSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = snapshot
	r.hasValue = true
	return nil
}

// SnapshotRepository accumulates every recorded snapshot, ticket, and
// outcome, preserving insertion order for inspection in tests.
type SnapshotRepository struct {
	mu       sync.Mutex
	Snaps    []model.PredictionSnapshot
	Tickets  []model.Ticket
	Outcomes []model.TicketOutcome
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{}
}

func (r *SnapshotRepository) Record(_ context.Context, snapshot model.PredictionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Snaps = append(r.Snaps, snapshot)
	return nil
}

func (r *SnapshotRepository) RecordTicket(_ context.Context, ticket model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tickets = append(r.Tickets, ticket)
	return nil
}

func (r *SnapshotRepository) RecordOutcome(_ context.Context, outcome model.TicketOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, outcome)
	return nil
}

// Clock is a settable ports.Clock for deterministic tests.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
