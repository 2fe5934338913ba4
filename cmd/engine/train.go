package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhw/football-prob-engine/internal/config"
	"github.com/jhw/football-prob-engine/internal/logging"
	"github.com/jhw/football-prob-engine/pkg/calibrator"
	"github.com/jhw/football-prob-engine/pkg/integrator"
	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/strength"
)

// calibrationHoldoutFraction is the tail slice (by date) of --matches set
// aside from the strength fit and used only to fit the per-outcome
// calibration curves, so g_X is fit out-of-sample per spec §4.4.
const calibrationHoldoutFraction = 0.15

// trainCmd fits a new ModelVersion for one league from a JSON history file
// and writes it to --out. Idempotent: identical matches, hyperparameters,
// and t0 always produce the same fitted weights, since Fit performs no
// randomized initialization.
func trainCmd() *cobra.Command {
	var (
		league      string
		matchesPath string
		outPath     string
		from, to    string
		xi          float64
		rhoPrior    float64
		homeAdv     float64
		configPath  string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a new Dixon-Coles model version for a league",
		Long:  "Reads historical matches from a JSON file, fits team strengths by time-decay-weighted MLE, and writes the resulting model version to disk.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(os.Stderr, debug)
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			matches, err := readMatches(matchesPath)
			if err != nil {
				return fmt.Errorf("read matches: %w", err)
			}
			matches = filterByLeagueAndDate(matches, league, from, to)
			log.Info("loaded matches", "league", league, "count", len(matches))

			fitMatches, holdout := splitCalibrationHoldout(matches)
			log.Info("split calibration holdout", "fit", len(fitMatches), "holdout", len(holdout))

			hp := strength.Hyperparameters{
				Xi:            cfg.Strength.Xi,
				RhoPrior:      cfg.Strength.RhoPrior,
				GammaPrior:    cfg.Strength.GammaPrior,
				MaxIterations: cfg.Strength.MaxIterations,
				L2Penalty:     cfg.Strength.L2Penalty,
			}
			if xi > 0 {
				hp.Xi = xi
			}
			if cmd.Flags().Changed("rho") {
				hp.RhoPrior = rhoPrior
			}
			if cmd.Flags().Changed("home-adv") {
				hp.GammaPrior = homeAdv
			}

			mv, err := strength.Fit(league, fitMatches, hp, time.Time{})
			if err != nil {
				return fmt.Errorf("fit: %w", err)
			}
			mv.ID = uuid.NewString()
			mv.Blend = model.BlendCoefficients{
				Variant:                cfg.Blend.Variant,
				EntropyMin:             cfg.Blend.EntropyMin,
				EntropyMax:             cfg.Blend.EntropyMax,
				MarketDomModel:         cfg.Blend.MarketDomModel,
				DrawBoostLeagueDefault: cfg.Blend.DrawBoostLeagueDefault,
				SharpenTemperature:     cfg.Blend.SharpenTemperature,
				KellyEnabled:           cfg.Blend.KellyEnabled,
			}

			mv.Calibration, mv.CalibrationQuality = fitCalibration(mv, holdout)

			if err := writeModelVersion(outPath, mv); err != nil {
				return fmt.Errorf("write model version: %w", err)
			}

			log.Info("fit complete", "model_version", mv.ID, "teams", len(mv.Teams), "iterations", mv.Iterations, "converged", mv.Converged, "calibration_quality", mv.CalibrationQuality)
			fmt.Println(mv.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league code to train (required)")
	cmd.Flags().StringVar(&matchesPath, "matches", "", "path to a JSON file of historical matches (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the fitted model version as JSON (required)")
	cmd.Flags().StringVar(&from, "from", "", "only use matches on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "only use matches on or before this date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&xi, "xi", 0, "override the time-decay rate")
	cmd.Flags().Float64Var(&rhoPrior, "rho", 0, "override the rho seed")
	cmd.Flags().Float64Var(&homeAdv, "home-adv", 0, "override the home-advantage (gamma) seed")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file (defaults to config.toml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("league")
	_ = cmd.MarkFlagRequired("matches")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func readMatches(path string) ([]model.HistoricalMatch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var matches []model.HistoricalMatch
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func filterByLeagueAndDate(matches []model.HistoricalMatch, league, from, to string) []model.HistoricalMatch {
	var fromT, toT time.Time
	if from != "" {
		fromT, _ = time.Parse("2006-01-02", from)
	}
	if to != "" {
		toT, _ = time.Parse("2006-01-02", to)
	}
	out := make([]model.HistoricalMatch, 0, len(matches))
	for _, m := range matches {
		if league != "" && m.League != league {
			continue
		}
		if !fromT.IsZero() && m.Date.Before(fromT) {
			continue
		}
		if !toT.IsZero() && m.Date.After(toT) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// splitCalibrationHoldout sorts matches chronologically and sets aside the
// most recent calibrationHoldoutFraction for fitCalibration, so curves are
// fit out-of-sample relative to the strength fit (spec §4.4).
func splitCalibrationHoldout(matches []model.HistoricalMatch) (fit, holdout []model.HistoricalMatch) {
	sorted := make([]model.HistoricalMatch, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	cutoff := int(float64(len(sorted)) * (1 - calibrationHoldoutFraction))
	return sorted[:cutoff], sorted[cutoff:]
}

// fitCalibration runs the fitted model's team ratings forward over the
// held-out matches to build per-outcome (predicted, observed) samples, then
// fits a calibrator.CalibrationCurve for each outcome. Matches referencing a
// team absent from the fit (e.g. promoted/relegated since the fit window)
// are skipped. Returns a quality flag for persistence on the model version
// when any curve falls back to identity for insufficient samples.
func fitCalibration(mv model.ModelVersion, holdout []model.HistoricalMatch) (map[model.Outcome]model.CalibrationCurve, string) {
	samples := map[model.Outcome][]calibrator.Sample{
		model.OutcomeHome: nil,
		model.OutcomeDraw: nil,
		model.OutcomeAway: nil,
	}

	for _, m := range holdout {
		home, ok := mv.Teams[m.HomeTeamID]
		if !ok {
			continue
		}
		away, ok := mv.Teams[m.AwayTeamID]
		if !ok {
			continue
		}
		triple, err := integrator.Predict(home.Attack, home.Defense, away.Attack, away.Defense, mv.HomeAdvantage, mv.Rho, true)
		if err != nil {
			continue
		}
		result := model.ResultFor(m.HomeGoals, m.AwayGoals)
		for _, o := range []model.Outcome{model.OutcomeHome, model.OutcomeDraw, model.OutcomeAway} {
			observed := 0.0
			if o == result {
				observed = 1.0
			}
			samples[o] = append(samples[o], calibrator.Sample{Predicted: triple.Prob(o), Observed: observed})
		}
	}

	curves := make(map[model.Outcome]model.CalibrationCurve, 3)
	quality := ""
	for _, o := range []model.Outcome{model.OutcomeHome, model.OutcomeDraw, model.OutcomeAway} {
		curves[o] = calibrator.Fit(o, samples[o])
		if len(samples[o]) < calibrator.MinSamples {
			quality = "insufficient_holdout_samples"
		}
	}
	return curves, quality
}

func writeModelVersion(path string, mv model.ModelVersion) error {
	raw, err := json.MarshalIndent(mv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
