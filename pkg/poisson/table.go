package poisson

import "sort"

// TableRow is one team's bare competitive standing, assembled from
// HistoricalMatch records. This is a supplemented feature (SPEC_FULL.md §4):
// spec.md's core operations never require a league table, but the data to
// build one already exists in the match history, so the orchestrator can
// offer it alongside a SlateResult. Grounded on
// jhw-go-outrights/pkg/outrights/state.go's CalcLeagueTable.
type TableRow struct {
	TeamID         int64
	Points         int
	GoalDifference int
	Played         int
}

// MatchResult is the minimal shape table computations need: a completed
// match's team ids and goals.
type MatchResult struct {
	HomeTeamID int64
	AwayTeamID int64
	HomeGoals  int
	AwayGoals  int
}

// LeagueTable computes points, goal difference, and games played for every
// named team, and for every other team that appears in results, from a
// sequence of completed matches.
func LeagueTable(teamIDs []int64, results []MatchResult) []TableRow {
	rows := make(map[int64]*TableRow, len(teamIDs))
	for _, id := range teamIDs {
		rows[id] = &TableRow{TeamID: id}
	}
	for _, r := range results {
		home, ok := rows[r.HomeTeamID]
		if !ok {
			home = &TableRow{TeamID: r.HomeTeamID}
			rows[r.HomeTeamID] = home
		}
		away, ok := rows[r.AwayTeamID]
		if !ok {
			away = &TableRow{TeamID: r.AwayTeamID}
			rows[r.AwayTeamID] = away
		}
		switch {
		case r.HomeGoals > r.AwayGoals:
			home.Points += 3
		case r.HomeGoals < r.AwayGoals:
			away.Points += 3
		default:
			home.Points++
			away.Points++
		}
		home.GoalDifference += r.HomeGoals - r.AwayGoals
		away.GoalDifference += r.AwayGoals - r.HomeGoals
		home.Played++
		away.Played++
	}

	out := make([]TableRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].GoalDifference > out[j].GoalDifference
	})
	return out
}

// RemainingFixtures lists the (home,away) pairs not yet played the required
// number of rounds among the given teams.
func RemainingFixtures(teamIDs []int64, results []MatchResult, rounds int) [][2]int64 {
	played := make(map[[2]int64]int)
	for _, r := range results {
		played[[2]int64{r.HomeTeamID, r.AwayTeamID}]++
	}
	var remaining [][2]int64
	for _, home := range teamIDs {
		for _, away := range teamIDs {
			if home == away {
				continue
			}
			key := [2]int64{home, away}
			for n := played[key]; n < rounds; n++ {
				remaining = append(remaining, key)
			}
		}
	}
	return remaining
}
