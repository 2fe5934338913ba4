package model

import "fmt"

// InsufficientDataError is raised when a fit request does not carry enough
// history to identify team strengths. Recoverable: the caller retries with a
// wider window. Never surfaced to end users.
type InsufficientDataError struct {
	League  string
	Team    string
	Matches int
	Need    int
}

func (e *InsufficientDataError) Error() string {
	if e.Team != "" {
		return fmt.Sprintf("insufficient data: team %q has %d appearances, need %d", e.Team, e.Matches, e.Need)
	}
	return fmt.Sprintf("insufficient data: league %q has %d matches, need %d", e.League, e.Matches, e.Need)
}

// FitDivergenceError is raised when the strength-estimator optimizer fails
// to converge, or produces parameters outside their valid range. Fatal to
// the current training run; the prior active ModelVersion stays active.
type FitDivergenceError struct {
	Iterations int
	Reason     string
}

func (e *FitDivergenceError) Error() string {
	return fmt.Sprintf("fit divergence after %d iterations: %s", e.Iterations, e.Reason)
}

// TeamNotFoundError is raised when a fixture names a team the TeamResolver
// port cannot resolve. Fatal to that fixture only; the core never guesses.
type TeamNotFoundError struct {
	Name   string
	League string
}

func (e *TeamNotFoundError) Error() string {
	return fmt.Sprintf("team not found: %q in league %q", e.Name, e.League)
}

// BlendError is raised when a blend coefficient falls outside [0,1] or a
// blended triple fails its sum invariant. Fatal to the current prediction;
// no snapshot is written.
type BlendError struct {
	Set    string
	Reason string
}

func (e *BlendError) Error() string {
	return fmt.Sprintf("blend error in set %s: %s", e.Set, e.Reason)
}

// CalibrationError is raised when calibrated probabilities cannot be
// renormalized because their sum is non-positive or non-finite.
type CalibrationError struct {
	Outcome string
	Reason  string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration error for outcome %s: %s", e.Outcome, e.Reason)
}

// CancelledError is raised when a deadline is exceeded between fixtures.
// Termination is partial-result-free.
type CancelledError struct {
	Fixture string
}

func (e *CancelledError) Error() string {
	if e.Fixture != "" {
		return fmt.Sprintf("cancelled before fixture %q", e.Fixture)
	}
	return "cancelled"
}

// ThresholdLearningInsufficientWarning is a warning-only condition: no
// UDS-quantile bucket met the target hit rate with enough tickets, so the
// prior ev_threshold is kept.
type ThresholdLearningInsufficientWarning struct {
	TicketsConsidered int
	TargetHitRate     float64
}

func (e *ThresholdLearningInsufficientWarning) Error() string {
	return fmt.Sprintf("threshold learning insufficient: %d tickets considered, target hit rate %.2f not met by any qualifying bucket",
		e.TicketsConsidered, e.TargetHitRate)
}

// ModelNotFoundError is raised when a requested model_version id does not
// resolve through the ModelRepository port.
type ModelNotFoundError struct {
	VersionID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model version not found: %q", e.VersionID)
}
