// Package model holds the data shapes shared by every stage of the
// probability pipeline: teams, leagues, historical matches, fitted model
// versions, fixtures, probability triples/sets, and tickets. Nothing here
// performs computation; see pkg/poisson, pkg/strength, pkg/integrator,
// pkg/blender, pkg/calibrator, pkg/decision and pkg/portfolio for that.
package model

import "time"

// Outcome is a closed three-way enumeration, never a bare string in hot
// paths.
type Outcome int

const (
	OutcomeHome Outcome = iota
	OutcomeDraw
	OutcomeAway
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHome:
		return "H"
	case OutcomeDraw:
		return "D"
	case OutcomeAway:
		return "A"
	default:
		return "?"
	}
}

// ParseOutcome converts a one-letter outcome code into its enum value.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "H":
		return OutcomeHome, true
	case "D":
		return OutcomeDraw, true
	case "A":
		return OutcomeAway, true
	default:
		return 0, false
	}
}

// ProbabilitySet identifies one of the seven aligned perspectives (A-G)
// produced by the blender.
type ProbabilitySet int

const (
	SetA ProbabilitySet = iota // pure model
	SetB                       // balanced (default blend)
	SetC                       // market-dominant
	SetD                       // draw-boosted
	SetE                       // entropy-penalized (sharpened)
	SetF                       // Kelly-weighted (optional)
	SetG                       // ensemble of A, B, C
)

func (s ProbabilitySet) String() string {
	return [...]string{"A", "B", "C", "D", "E", "F", "G"}[s]
}

// AllSets is the canonical default set selection for predict_slate.
var AllSets = []ProbabilitySet{SetA, SetB, SetC, SetD, SetE, SetF, SetG}

// Archetype is one of the four enumerated ticket-construction patterns of
// spec §4.5.
type Archetype int

const (
	ArchetypeFavoriteLock Archetype = iota
	ArchetypeBalanced
	ArchetypeDrawSelective
	ArchetypeAwayEdge
)

func (a Archetype) String() string {
	switch a {
	case ArchetypeFavoriteLock:
		return "FAVORITE_LOCK"
	case ArchetypeBalanced:
		return "BALANCED"
	case ArchetypeDrawSelective:
		return "DRAW_SELECTIVE"
	case ArchetypeAwayEdge:
		return "AWAY_EDGE"
	default:
		return "?"
	}
}

// Team carries current strength parameters on the log scale. The league
// mean of Attack is normalized to zero after every fit (identifiability
// constraint); the mean of Defense is not shifted to zero separately and
// is only held near zero by the L2 penalty. |Attack|, |Defense| <= 3.0.
type Team struct {
	ID            int64
	LeagueCode    string
	Name          string
	Attack        float64
	Defense       float64
	HomeBias      float64
	LastFitAt     time.Time
	Shrunk        bool // true when this team had <10 appearances at fit time
	AppearanceCnt int
}

// League carries the global parameters shared across all of a league's
// fixtures.
type League struct {
	Code            string
	AvgDrawRate     float64
	HomeAdvantage   float64 // gamma, >= 0
	DrawBoost       float64 // used by Set D, ~0.15
	ReliabilityWt   float64 // decision-layer per-league reliability weight
}

// Odds is a closing (or pre-match) 1x2 price triple, each price in
// [1.01, 100].
type Odds struct {
	Home float64
	Draw float64
	Away float64
}

// Valid reports whether every price is within the admissible range.
func (o Odds) Valid() bool {
	inRange := func(p float64) bool { return p >= 1.01 && p <= 100 }
	return inRange(o.Home) && inRange(o.Draw) && inRange(o.Away)
}

// HistoricalMatch is an immutable completed-match record, optionally
// carrying closing 1x2 odds.
type HistoricalMatch struct {
	League     string
	Date       time.Time
	HomeTeamID int64
	AwayTeamID int64
	HomeGoals  int
	AwayGoals  int
	Result     Outcome
	Odds       *Odds // nil when odds were unavailable
}

// ResultFor derives the categorical outcome (HistoricalMatch.Result) from
// goals.
func ResultFor(homeGoals, awayGoals int) Outcome {
	switch {
	case homeGoals > awayGoals:
		return OutcomeHome
	case homeGoals < awayGoals:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}

// CalibrationAnchor is one (x, y) point of a fitted monotone isotonic map.
type CalibrationAnchor struct {
	X float64
	Y float64
}

// CalibrationCurve is the fitted g_X map for one outcome, stored as its
// anchor points so it can be persisted and replayed.
type CalibrationCurve struct {
	Outcome Outcome
	Anchors []CalibrationAnchor
}

// BlendCoefficients records the per-set blend parameters that produced a
// ModelVersion's Set B (and derived sets), so historical tickets can be
// replayed exactly.
type BlendCoefficients struct {
	Variant        string  // recorded label; Set B always uses the entropy-weighted blend, see DESIGN.md Open Questions
	FixedModelWt   float64 // recorded only; the blender does not read it
	EntropyMin     float64 // clip lower bound for entropy-weighted alpha
	EntropyMax     float64 // clip upper bound for entropy-weighted alpha
	MarketDomModel float64 // Set C model weight
	DrawBoostLeagueDefault float64
	SharpenTemperature     float64 // Set E, T = 1/1.5
	KellyEnabled           bool    // when false, Set F equals Set A
}

// ModelStatus is the lifecycle state of a ModelVersion.
type ModelStatus int

const (
	ModelActive ModelStatus = iota
	ModelArchived
	ModelFailed
)

// ModelVersion is the immutable bundle produced by one Strength Estimator
// training run. Created once, never mutated; superseded versions become
// archived.
type ModelVersion struct {
	ID               string
	League           string
	CreatedAt        time.Time
	TrainingFrom     time.Time
	TrainingTo       time.Time
	Teams            map[int64]Team // fitted (alpha, beta) per team, keyed by team id
	HomeAdvantage    float64        // gamma
	Rho              float64
	Xi               float64
	Calibration      map[Outcome]CalibrationCurve
	CalibrationQuality string // "" (ok) or a warning flag, see spec §4.4
	Blend            BlendCoefficients
	ValidationBrier  float64
	ValidationLogLoss float64
	ValidationDrawAccuracy float64
	LogLikelihood    float64
	Iterations       int
	Converged        bool
	Status           ModelStatus
}

// Fixture is a future match the orchestrator must resolve team ids for
// before it can be predicted.
type Fixture struct {
	HomeName     string
	AwayName     string
	LeagueCode   string
	MatchDate    time.Time
	Odds         *Odds
	LineupStable bool // affects DC gating, see spec §4.2; the zero value false (no DC correction) applies when unset
}

// ProbabilityTriple is the core probability output of the pipeline, with
// ancillary fields carried alongside it end to end.
type ProbabilityTriple struct {
	PHome         float64
	PDraw         float64
	PAway         float64
	Entropy       float64 // Shannon, log base 2
	XGHome        float64
	XGAway        float64
	XGConfidence  float64 // 1 / (1 + |xg_home - xg_away|)
	DCApplied     bool
}

// Prob returns the probability assigned to a specific outcome.
func (t ProbabilityTriple) Prob(o Outcome) float64 {
	switch o {
	case OutcomeHome:
		return t.PHome
	case OutcomeDraw:
		return t.PDraw
	case OutcomeAway:
		return t.PAway
	default:
		return 0
	}
}

// Sum returns p_H + p_D + p_A, expected to be within 1 +/- 1e-6.
func (t ProbabilityTriple) Sum() float64 {
	return t.PHome + t.PDraw + t.PAway
}

// TicketPick is one leg of a candidate ticket.
type TicketPick struct {
	FixtureIndex        int
	Pick                Outcome
	MarketOdds          float64
	ModelProb           float64
	MarketProb          float64
	PDV                 float64
	SoftPenalty         float64
	HardContradiction   bool
	ContradictionReasons []string
}

// PredictionSnapshot is the immutable record of model beliefs about one
// fixture at the moment a ticket decision was made.
type PredictionSnapshot struct {
	FixtureIndex  int
	ModelVersionID string
	Triple        ProbabilityTriple
	Shrunk        bool // propagated shrinkage flag, see spec §4.1
}

// Ticket is an ordered sequence of picks evaluated by the decision layer.
type Ticket struct {
	ID               string
	SlateID          string
	Picks            []TicketPick
	Snapshots        []PredictionSnapshot
	Archetype        Archetype
	DecisionVersion  string
	UDS              float64
	NumSoftContradictions int
	Accepted         bool
	RejectReasons    []string
	EVThresholdUsed  float64
	EvaluatedAt      time.Time
}

// TicketOutcome is written later by an external job once a ticket's
// fixtures have resolved.
type TicketOutcome struct {
	TicketID string
	Correct  int
	Total    int
}
