// Package ports declares the outbound capability contracts the core
// requires from its host (spec §6): team resolution, match/model/threshold
// and snapshot persistence, and a clock. No production adapter ships here —
// persistence, transport, and data ingestion are explicitly out of scope
// (spec §1 Non-goals) — only pure interfaces plus in-memory reference
// adapters under pkg/ports/memory for tests and local runs.
//
// Grounded on jhw-go-outrights/pkg/outrights/api.go's SeasonState/Client
// port-style abstraction over season data, generalized into the six named
// ports spec §6 lists.
package ports

import (
	"context"
	"time"

	"github.com/jhw/football-prob-engine/pkg/model"
)

// TeamResolver resolves a team name within a league to its stable id.
type TeamResolver interface {
	Resolve(ctx context.Context, name, league string) (teamID int64, found bool, err error)
}

// MatchFilter narrows MatchRepository.Historical's result set.
type MatchFilter struct {
	League string
	From   time.Time
	To     time.Time
}

// MatchRepository is the historical-match source the Strength Estimator
// fits from.
type MatchRepository interface {
	Historical(ctx context.Context, filter MatchFilter) ([]model.HistoricalMatch, error)
}

// ModelRepository stores and activates ModelVersion records. Exactly one
// version per league is active at a time; Activate atomically archives the
// prior active version for that league.
type ModelRepository interface {
	Load(ctx context.Context, versionID string) (model.ModelVersion, error)
	Save(ctx context.Context, mv model.ModelVersion) error
	Activate(ctx context.Context, versionID string) error
	Active(ctx context.Context, league string) (model.ModelVersion, error)
}

// ThresholdSnapshot is the learned-thresholds record spec §4.5/§6 describes.
type ThresholdSnapshot struct {
	EVThreshold          float64
	MaxContradictions    int
	EntropyPenalty       float64
	ContradictionPenalty float64
	DecisionVersion      string
	LearnedAt            time.Time
}

// ThresholdsRepository stores the decision layer's learned scalar weights.
type ThresholdsRepository interface {
	Current(ctx context.Context) (ThresholdSnapshot, error)
	Save(ctx context.Context, snapshot ThresholdSnapshot) error
}

// SnapshotRepository records the immutable artifacts a prediction or
// ticket-evaluation request produces.
type SnapshotRepository interface {
	Record(ctx context.Context, snapshot model.PredictionSnapshot) error
	RecordTicket(ctx context.Context, ticket model.Ticket) error
	RecordOutcome(ctx context.Context, outcome model.TicketOutcome) error
}

// Clock is injected so deadline checks and evaluation timestamps are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
