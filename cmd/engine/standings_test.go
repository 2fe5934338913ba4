package main

import (
	"testing"
	"time"

	"github.com/jhw/football-prob-engine/pkg/model"
)

func TestToStandingsInputCollectsReferencedTeams(t *testing.T) {
	matches := []model.HistoricalMatch{
		{League: "EPL", Date: time.Now(), HomeTeamID: 3, AwayTeamID: 1, HomeGoals: 1, AwayGoals: 1},
		{League: "EPL", Date: time.Now(), HomeTeamID: 1, AwayTeamID: 2, HomeGoals: 2, AwayGoals: 0},
	}
	teamIDs, results := toStandingsInput(matches)

	if len(teamIDs) != 3 {
		t.Fatalf("expected 3 distinct teams, got %d", len(teamIDs))
	}
	for i := 1; i < len(teamIDs); i++ {
		if teamIDs[i] < teamIDs[i-1] {
			t.Fatalf("expected team ids sorted ascending, got %v", teamIDs)
		}
	}
	if len(results) != len(matches) {
		t.Fatalf("expected %d results, got %d", len(matches), len(results))
	}
}
