package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jhw/football-prob-engine/pkg/model"
	"github.com/jhw/football-prob-engine/pkg/orchestrator"
	"github.com/jhw/football-prob-engine/pkg/poisson"
)

// standingsCmd computes a league table and remaining fixtures directly from
// a JSON match history, without fitting a model. A supplemented feature
// (SPEC_FULL.md §4): the league table is derivable from the same history
// train consumes, so it's exposed as its own offline report rather than
// folded into the fitted ModelVersion.
func standingsCmd() *cobra.Command {
	var (
		league        string
		matchesPath   string
		outPath       string
		roundsPerPair int
	)

	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Compute a league table and remaining fixtures from a match history",
		Long:  "Reads historical matches from a JSON file and writes the resulting league table and remaining round-robin fixtures as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			matches, err := readMatches(matchesPath)
			if err != nil {
				return fmt.Errorf("read matches: %w", err)
			}
			matches = filterByLeagueAndDate(matches, league, "", "")

			teamIDs, results := toStandingsInput(matches)
			report := orchestrator.Standings(teamIDs, results, roundsPerPair)

			raw, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, raw, 0644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			fmt.Println(string(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league code to compute standings for (required)")
	cmd.Flags().StringVar(&matchesPath, "matches", "", "path to a JSON file of historical matches (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "optional path to also write the report as JSON")
	cmd.Flags().IntVar(&roundsPerPair, "rounds", 2, "number of meetings expected between each pair of teams")
	_ = cmd.MarkFlagRequired("league")
	_ = cmd.MarkFlagRequired("matches")
	return cmd
}

// toStandingsInput derives the sorted set of team ids referenced by
// matches and the poisson.MatchResult slice Standings needs.
func toStandingsInput(matches []model.HistoricalMatch) ([]int64, []poisson.MatchResult) {
	seen := make(map[int64]bool)
	results := make([]poisson.MatchResult, 0, len(matches))
	for _, m := range matches {
		seen[m.HomeTeamID] = true
		seen[m.AwayTeamID] = true
		results = append(results, poisson.MatchResult{
			HomeTeamID: m.HomeTeamID,
			AwayTeamID: m.AwayTeamID,
			HomeGoals:  m.HomeGoals,
			AwayGoals:  m.AwayGoals,
		})
	}
	teamIDs := make([]int64, 0, len(seen))
	for id := range seen {
		teamIDs = append(teamIDs, id)
	}
	sort.Slice(teamIDs, func(i, j int) bool { return teamIDs[i] < teamIDs[j] })
	return teamIDs, results
}
