package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/repository"
)

// MemoryStore is an in-memory Store over a fixed set of games. It applies the
// same completion and cutoff rules as the Postgres store and is used by engine
// tests and local experiments that do not want a database.
type MemoryStore struct {
	games       []*store.Game
	teamStats   map[int]map[int]*store.TeamGameStats     // game id -> team id
	playerStats map[int]map[int][]*store.PlayerGameStats // game id -> team id
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		teamStats:   make(map[int]map[int]*store.TeamGameStats),
		playerStats: make(map[int]map[int][]*store.PlayerGameStats),
	}
}

// AddGame records one game with both teams' totals and player rows. Game and
// team ids are stamped onto the stat rows so fixtures only fill the counting
// columns.
func (m *MemoryStore) AddGame(game *store.Game, home, away *store.TeamGameStats, homePlayers, awayPlayers []*store.PlayerGameStats) {
	home.GameID, home.TeamID, home.IsHome = game.GameID, game.HomeTeamID, true
	away.GameID, away.TeamID, away.IsHome = game.GameID, game.AwayTeamID, false

	m.games = append(m.games, game)
	m.teamStats[game.GameID] = map[int]*store.TeamGameStats{
		game.HomeTeamID: home,
		game.AwayTeamID: away,
	}

	rows := map[int][]*store.PlayerGameStats{}
	for _, p := range homePlayers {
		p.GameID, p.TeamID = game.GameID, game.HomeTeamID
		rows[game.HomeTeamID] = append(rows[game.HomeTeamID], p)
	}
	for _, p := range awayPlayers {
		p.GameID, p.TeamID = game.GameID, game.AwayTeamID
		rows[game.AwayTeamID] = append(rows[game.AwayTeamID], p)
	}
	m.playerStats[game.GameID] = rows
}

func (m *MemoryStore) GameByID(_ context.Context, gameID int) (*store.Game, error) {
	for _, g := range m.games {
		if g.GameID == gameID {
			return g, nil
		}
	}
	return nil, fmt.Errorf("game %d not found", gameID)
}

func (m *MemoryStore) GamesBySeason(_ context.Context, seasonID int, from, to time.Time) ([]*store.Game, error) {
	var games []*store.Game
	for _, g := range m.games {
		if g.SeasonID != seasonID || g.Status != "final" {
			continue
		}
		if g.GameDate.Before(from) || g.GameDate.After(to) {
			continue
		}
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].GameDate.Equal(games[j].GameDate) {
			return games[i].GameDate.Before(games[j].GameDate)
		}
		return games[i].GameID < games[j].GameID
	})
	return games, nil
}

func (m *MemoryStore) TeamGames(_ context.Context, teamID, seasonID int, before time.Time) ([]*repository.TeamGameLog, error) {
	var logs []*repository.TeamGameLog
	for _, g := range m.completed(seasonID, before) {
		if g.HomeTeamID != teamID && g.AwayTeamID != teamID {
			continue
		}
		opponentID := g.HomeTeamID
		if opponentID == teamID {
			opponentID = g.AwayTeamID
		}
		logs = append(logs, &repository.TeamGameLog{
			Game:     g,
			Team:     m.teamStats[g.GameID][teamID],
			Opponent: m.teamStats[g.GameID][opponentID],
		})
	}
	sort.Slice(logs, func(i, j int) bool {
		gi, gj := logs[i].Game, logs[j].Game
		if !gi.GameDate.Equal(gj.GameDate) {
			return gi.GameDate.After(gj.GameDate)
		}
		return gi.GameID > gj.GameID
	})
	return logs, nil
}

func (m *MemoryStore) GameBoxScore(_ context.Context, gameID, teamID int) ([]*store.PlayerGameStats, error) {
	return m.playerStats[gameID][teamID], nil
}

func (m *MemoryStore) PlayerGames(_ context.Context, playerID, teamID, seasonID int, before time.Time) ([]*repository.PlayerGameLog, error) {
	var logs []*repository.PlayerGameLog
	for _, g := range m.completed(seasonID, before) {
		for _, row := range m.playerStats[g.GameID][teamID] {
			if row.PlayerID == playerID {
				logs = append(logs, &repository.PlayerGameLog{
					Stats:    row,
					GameDate: g.GameDate,
					GameID:   g.GameID,
				})
			}
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].GameDate.Equal(logs[j].GameDate) {
			return logs[i].GameDate.After(logs[j].GameDate)
		}
		return logs[i].GameID > logs[j].GameID
	})
	return logs, nil
}

func (m *MemoryStore) TeamPlayers(_ context.Context, teamID, seasonID int, before time.Time) ([]int, error) {
	seen := map[int]struct{}{}
	for _, g := range m.completed(seasonID, before) {
		for _, row := range m.playerStats[g.GameID][teamID] {
			if row.Minutes() > 0 {
				seen[row.PlayerID] = struct{}{}
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *MemoryStore) SeasonAggregate(_ context.Context, playerID, teamID, seasonID int, cutoff time.Time) (*repository.PlayerSeasonTotals, error) {
	totals := &repository.PlayerSeasonTotals{PlayerID: playerID, TeamID: teamID, SeasonID: seasonID}
	for _, g := range m.completed(seasonID, cutoff) {
		for _, row := range m.playerStats[g.GameID][teamID] {
			if row.PlayerID == playerID {
				addPlayerRow(totals, row)
			}
		}
	}
	return totals, nil
}

func (m *MemoryStore) AllSeasonAggregates(_ context.Context, seasonID int, cutoff time.Time) ([]*repository.PlayerSeasonTotals, error) {
	type key struct{ player, team int }
	grouped := map[key]*repository.PlayerSeasonTotals{}
	for _, g := range m.completed(seasonID, cutoff) {
		for teamID, rows := range m.playerStats[g.GameID] {
			for _, row := range rows {
				k := key{row.PlayerID, teamID}
				totals, ok := grouped[k]
				if !ok {
					totals = &repository.PlayerSeasonTotals{PlayerID: row.PlayerID, TeamID: teamID, SeasonID: seasonID}
					grouped[k] = totals
				}
				addPlayerRow(totals, row)
			}
		}
	}

	all := make([]*repository.PlayerSeasonTotals, 0, len(grouped))
	for _, totals := range grouped {
		all = append(all, totals)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].PlayerID != all[j].PlayerID {
			return all[i].PlayerID < all[j].PlayerID
		}
		return all[i].TeamID < all[j].TeamID
	})
	return all, nil
}

func (m *MemoryStore) TeamSeasonTotals(_ context.Context, seasonID int, cutoff time.Time) ([]*repository.TeamSeasonTotals, error) {
	grouped := map[int]*repository.TeamSeasonTotals{}
	for _, g := range m.completed(seasonID, cutoff) {
		for teamID, ts := range m.teamStats[g.GameID] {
			totals, ok := grouped[teamID]
			if !ok {
				totals = &repository.TeamSeasonTotals{TeamID: teamID}
				grouped[teamID] = totals
			}
			addTeamRow(totals, ts)
		}
	}

	all := make([]*repository.TeamSeasonTotals, 0, len(grouped))
	for _, totals := range grouped {
		all = append(all, totals)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TeamID < all[j].TeamID })
	return all, nil
}

func (m *MemoryStore) LeagueTotals(_ context.Context, seasonID int, cutoff time.Time) (*repository.LeagueTotals, error) {
	totals := &repository.LeagueTotals{SeasonID: seasonID}
	for _, g := range m.completed(seasonID, cutoff) {
		for _, ts := range m.teamStats[g.GameID] {
			totals.TeamGames++
			totals.Points += ts.Points
			totals.FieldGoalsMade += ts.FieldGoalsMade
			totals.FieldGoalsAttempted += ts.FieldGoalsAttempted
			totals.FreeThrowsMade += ts.FreeThrowsMade
			totals.FreeThrowsAttempted += ts.FreeThrowsAttempted
			totals.OffensiveRebounds += ts.OffensiveRebounds
			totals.Rebounds += ts.Rebounds
			totals.Assists += ts.Assists
			totals.Turnovers += ts.Turnovers
			totals.PersonalFouls += ts.PersonalFouls
		}
	}
	return totals, nil
}

// completed returns this season's final games strictly before the date.
func (m *MemoryStore) completed(seasonID int, before time.Time) []*store.Game {
	var games []*store.Game
	for _, g := range m.games {
		if g.SeasonID == seasonID && g.Status == "final" && g.GameDate.Before(before) {
			games = append(games, g)
		}
	}
	return games
}

func addPlayerRow(totals *repository.PlayerSeasonTotals, row *store.PlayerGameStats) {
	totals.Minutes += row.Minutes()
	totals.Points += row.Points
	totals.FieldGoalsMade += row.FieldGoalsMade
	totals.FieldGoalsAttempted += row.FieldGoalsAttempted
	totals.ThreePointersMade += row.ThreePointersMade
	totals.ThreePointersAttempted += row.ThreePointersAttempted
	totals.FreeThrowsMade += row.FreeThrowsMade
	totals.FreeThrowsAttempted += row.FreeThrowsAttempted
	totals.Rebounds += row.Rebounds
	totals.OffensiveRebounds += row.OffensiveRebounds
	totals.Assists += row.Assists
	totals.Steals += row.Steals
	totals.Blocks += row.Blocks
	totals.Turnovers += row.Turnovers
	totals.PersonalFouls += row.PersonalFouls
	if row.Minutes() > 0 {
		totals.GamesPlayed++
	}
	if row.Starter {
		totals.GamesStarted++
	}
}

func addTeamRow(totals *repository.TeamSeasonTotals, ts *store.TeamGameStats) {
	totals.Games++
	totals.Points += ts.Points
	totals.FieldGoalsMade += ts.FieldGoalsMade
	totals.FieldGoalsAttempted += ts.FieldGoalsAttempted
	totals.ThreePointersMade += ts.ThreePointersMade
	totals.FreeThrowsMade += ts.FreeThrowsMade
	totals.FreeThrowsAttempted += ts.FreeThrowsAttempted
	totals.OffensiveRebounds += ts.OffensiveRebounds
	totals.Rebounds += ts.Rebounds
	totals.Assists += ts.Assists
	totals.Turnovers += ts.Turnovers
	totals.PersonalFouls += ts.PersonalFouls
}
