package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhw/football-prob-engine/internal/config"
	"github.com/jhw/football-prob-engine/internal/logging"
	"github.com/jhw/football-prob-engine/pkg/decision"
	"github.com/jhw/football-prob-engine/pkg/ports"
)

// learnThresholdsCmd re-learns ev_threshold from a JSON file of resolved
// tickets and writes a new ThresholdSnapshot. Idempotent: the same ticket
// set and target hit rate always bucket identically, since LearnThreshold
// sorts deterministically before bucketing.
func learnThresholdsCmd() *cobra.Command {
	var (
		ticketsPath string
		outPath     string
		since       string
		configPath  string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "learn-thresholds",
		Short: "Re-learn the decision layer's ev_threshold from resolved tickets",
		Long:  "Reads resolved tickets from a JSON file, buckets them by UDS quantile, and picks the smallest threshold whose bucket clears the target hit rate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(os.Stderr, debug)
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var sinceT time.Time
			if since != "" {
				sinceT, err = time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
			}

			tickets, err := readResolvedTickets(ticketsPath, sinceT)
			if err != nil {
				return fmt.Errorf("read tickets: %w", err)
			}
			log.Info("loaded resolved tickets", "count", len(tickets))

			threshold, err := decision.LearnThreshold(
				tickets,
				cfg.Decision.TargetHitRate,
				cfg.Decision.MinBucketSize,
				cfg.Decision.EVThreshold,
				cfg.Decision.UDSQuantileBuckets,
			)
			if err != nil {
				log.Warn("threshold learning insufficient, keeping prior threshold", "error", err)
			}

			snapshot := ports.ThresholdSnapshot{
				EVThreshold:          threshold,
				MaxContradictions:    cfg.Decision.MaxContradictions,
				EntropyPenalty:       cfg.Decision.EntropyPenalty,
				ContradictionPenalty: cfg.Decision.ContradictionPenalty,
				DecisionVersion:      decision.DecisionVersion,
				LearnedAt:            time.Now(),
			}

			if err := writeThresholdSnapshot(outPath, snapshot); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}

			log.Info("threshold learning complete", "ev_threshold", threshold)
			fmt.Printf("%.6f\n", threshold)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticketsPath, "tickets", "", "path to a JSON file of resolved tickets (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the new threshold snapshot as JSON (required)")
	cmd.Flags().StringVar(&since, "since", "", "only consider tickets evaluated on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file (defaults to config.toml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("tickets")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// resolvedTicketRecord is the on-disk shape of one entry in --tickets: a
// decision.ResolvedTicket plus the evaluation timestamp --since filters on.
type resolvedTicketRecord struct {
	UDS             float64   `json:"uds"`
	DecisionVersion string    `json:"decision_version"`
	Correct         bool      `json:"correct"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

func readResolvedTickets(path string, since time.Time) ([]decision.ResolvedTicket, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []resolvedTicketRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	out := make([]decision.ResolvedTicket, 0, len(records))
	for _, r := range records {
		if !since.IsZero() && r.EvaluatedAt.Before(since) {
			continue
		}
		out = append(out, decision.ResolvedTicket{
			UDS:             r.UDS,
			DecisionVersion: r.DecisionVersion,
			Correct:         r.Correct,
		})
	}
	return out, nil
}

func writeThresholdSnapshot(path string, snapshot ports.ThresholdSnapshot) error {
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
