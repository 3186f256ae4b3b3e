package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/store"
)

// StatsRepository handles player and team box-score data access
type StatsRepository struct {
	db *store.Database
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *store.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

// TeamGameLog is one team's box score for one game joined with the game row
// and the opposing team's totals. Logs are the unit the window engine
// aggregates over.
type TeamGameLog struct {
	Game     *store.Game
	Team     *store.TeamGameStats
	Opponent *store.TeamGameStats
}

// Won reports whether the logged team won the game.
func (l *TeamGameLog) Won() bool {
	return l.Team.Points > l.Opponent.Points
}

// PlayerGameLog is one player's box-score row joined with its game date.
type PlayerGameLog struct {
	Stats    *store.PlayerGameStats
	GameDate time.Time
	GameID   int
}

// PlayerSeasonTotals is the sum of a player's box-score rows for one team
// within one season, strictly before a cutoff date. Derived on demand and
// immutable once built; replaced, never mutated, when the cutoff moves.
type PlayerSeasonTotals struct {
	PlayerID               int     `json:"player_id"`
	TeamID                 int     `json:"team_id"`
	SeasonID               int     `json:"season_id"`
	Minutes                float64 `json:"minutes"`
	Points                 int     `json:"points"`
	FieldGoalsMade         int     `json:"field_goals_made"`
	FieldGoalsAttempted    int     `json:"field_goals_attempted"`
	ThreePointersMade      int     `json:"three_pointers_made"`
	ThreePointersAttempted int     `json:"three_pointers_attempted"`
	FreeThrowsMade         int     `json:"free_throws_made"`
	FreeThrowsAttempted    int     `json:"free_throws_attempted"`
	Rebounds               int     `json:"rebounds"`
	OffensiveRebounds      int     `json:"offensive_rebounds"`
	Assists                int     `json:"assists"`
	Steals                 int     `json:"steals"`
	Blocks                 int     `json:"blocks"`
	Turnovers              int     `json:"turnovers"`
	PersonalFouls          int     `json:"personal_fouls"`
	GamesPlayed            int     `json:"games_played"`
	GamesStarted           int     `json:"games_started"`
}

// TeamSeasonTotals is the sum of a team's game totals within one season
// strictly before a cutoff date.
type TeamSeasonTotals struct {
	TeamID              int
	Games               int
	Points              int
	FieldGoalsMade      int
	FieldGoalsAttempted int
	ThreePointersMade   int
	FreeThrowsMade      int
	FreeThrowsAttempted int
	OffensiveRebounds   int
	Rebounds            int
	Assists             int
	Turnovers           int
	PersonalFouls       int
}

// Pace is the team's average possessions per game over the totals.
func (t *TeamSeasonTotals) Pace() float64 {
	if t.Games == 0 {
		return 0
	}
	poss := float64(t.FieldGoalsAttempted-t.OffensiveRebounds+t.Turnovers) +
		0.44*float64(t.FreeThrowsAttempted)
	return poss / float64(t.Games)
}

// AssistRate is the team's assists per made field goal.
func (t *TeamSeasonTotals) AssistRate() float64 {
	if t.FieldGoalsMade == 0 {
		return 0
	}
	return float64(t.Assists) / float64(t.FieldGoalsMade)
}

// LeagueTotals is the league-wide sum of team game totals within one season
// strictly before a cutoff date. TeamGames counts team-game rows, so a single
// game contributes two.
type LeagueTotals struct {
	SeasonID            int
	TeamGames           int
	Points              int
	FieldGoalsMade      int
	FieldGoalsAttempted int
	FreeThrowsMade      int
	FreeThrowsAttempted int
	OffensiveRebounds   int
	Rebounds            int
	Assists             int
	Turnovers           int
	PersonalFouls       int
}

// GetTeamGameLogs returns a team's completed games in a season strictly
// before a date, newest first, with the team's and opponent's totals joined.
func (r *StatsRepository) GetTeamGameLogs(ctx context.Context, teamID, seasonID int, before time.Time) ([]*TeamGameLog, error) {
	query := `
		SELECT g.game_id, g.sport, g.season_id, g.external_id, g.game_date,
			g.home_team_id, g.away_team_id, g.home_score, g.away_score, g.status,
			g.created_at, g.updated_at,
			ts.id, ts.game_id, ts.team_id, ts.is_home, ts.points,
			ts.field_goals_made, ts.field_goals_attempted,
			ts.three_pointers_made, ts.three_pointers_attempted,
			ts.free_throws_made, ts.free_throws_attempted,
			ts.offensive_rebounds, ts.defensive_rebounds, ts.rebounds,
			ts.assists, ts.steals, ts.blocks, ts.turnovers, ts.personal_fouls,
			ts.created_at, ts.updated_at,
			os.id, os.game_id, os.team_id, os.is_home, os.points,
			os.field_goals_made, os.field_goals_attempted,
			os.three_pointers_made, os.three_pointers_attempted,
			os.free_throws_made, os.free_throws_attempted,
			os.offensive_rebounds, os.defensive_rebounds, os.rebounds,
			os.assists, os.steals, os.blocks, os.turnovers, os.personal_fouls,
			os.created_at, os.updated_at
		FROM games g
		JOIN team_game_stats ts ON ts.game_id = g.game_id AND ts.team_id = $1
		JOIN team_game_stats os ON os.game_id = g.game_id AND os.team_id != $1
		WHERE g.season_id = $2 AND g.status = 'final' AND g.game_date < $3
		ORDER BY g.game_date DESC, g.game_id DESC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, teamID, seasonID, before)
	if err != nil {
		return nil, fmt.Errorf("querying team game logs: %w", err)
	}
	defer rows.Close()

	var logs []*TeamGameLog
	for rows.Next() {
		log := &TeamGameLog{
			Game:     &store.Game{},
			Team:     &store.TeamGameStats{},
			Opponent: &store.TeamGameStats{},
		}
		g, ts, os := log.Game, log.Team, log.Opponent
		err := rows.Scan(
			&g.GameID, &g.Sport, &g.SeasonID, &g.ExternalID, &g.GameDate,
			&g.HomeTeamID, &g.AwayTeamID, &g.HomeScore, &g.AwayScore, &g.Status,
			&g.CreatedAt, &g.UpdatedAt,
			&ts.ID, &ts.GameID, &ts.TeamID, &ts.IsHome, &ts.Points,
			&ts.FieldGoalsMade, &ts.FieldGoalsAttempted,
			&ts.ThreePointersMade, &ts.ThreePointersAttempted,
			&ts.FreeThrowsMade, &ts.FreeThrowsAttempted,
			&ts.OffensiveRebounds, &ts.DefensiveRebounds, &ts.Rebounds,
			&ts.Assists, &ts.Steals, &ts.Blocks, &ts.Turnovers, &ts.PersonalFouls,
			&ts.CreatedAt, &ts.UpdatedAt,
			&os.ID, &os.GameID, &os.TeamID, &os.IsHome, &os.Points,
			&os.FieldGoalsMade, &os.FieldGoalsAttempted,
			&os.ThreePointersMade, &os.ThreePointersAttempted,
			&os.FreeThrowsMade, &os.FreeThrowsAttempted,
			&os.OffensiveRebounds, &os.DefensiveRebounds, &os.Rebounds,
			&os.Assists, &os.Steals, &os.Blocks, &os.Turnovers, &os.PersonalFouls,
			&os.CreatedAt, &os.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team game log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team game logs: %w", err)
	}

	return logs, nil
}

// GetGameBoxScore returns all player rows for one team in one game,
// starters first.
func (r *StatsRepository) GetGameBoxScore(ctx context.Context, gameID, teamID int) ([]*store.PlayerGameStats, error) {
	query := `
		SELECT id, game_id, player_id, team_id, points, rebounds, offensive_rebounds,
			defensive_rebounds, assists, steals, blocks, turnovers,
			field_goals_made, field_goals_attempted, three_pointers_made, three_pointers_attempted,
			free_throws_made, free_throws_attempted, personal_fouls, minutes_played, starter,
			created_at, updated_at
		FROM player_game_stats
		WHERE game_id = $1 AND team_id = $2
		ORDER BY starter DESC, minutes_played DESC NULLS LAST, player_id ASC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, gameID, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying box score: %w", err)
	}
	defer rows.Close()

	return r.scanPlayerStats(rows)
}

// GetPlayerGameLogs returns a player's box-score rows for one team and season
// strictly before a date, newest first.
func (r *StatsRepository) GetPlayerGameLogs(ctx context.Context, playerID, teamID, seasonID int, before time.Time) ([]*PlayerGameLog, error) {
	query := `
		SELECT ps.id, ps.game_id, ps.player_id, ps.team_id, ps.points, ps.rebounds,
			ps.offensive_rebounds, ps.defensive_rebounds, ps.assists, ps.steals, ps.blocks,
			ps.turnovers, ps.field_goals_made, ps.field_goals_attempted,
			ps.three_pointers_made, ps.three_pointers_attempted,
			ps.free_throws_made, ps.free_throws_attempted, ps.personal_fouls,
			ps.minutes_played, ps.starter, ps.created_at, ps.updated_at,
			g.game_date
		FROM player_game_stats ps
		JOIN games g ON g.game_id = ps.game_id
		WHERE ps.player_id = $1 AND ps.team_id = $2 AND g.season_id = $3
			AND g.status = 'final' AND g.game_date < $4
		ORDER BY g.game_date DESC, g.game_id DESC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, playerID, teamID, seasonID, before)
	if err != nil {
		return nil, fmt.Errorf("querying player game logs: %w", err)
	}
	defer rows.Close()

	var logs []*PlayerGameLog
	for rows.Next() {
		stats := &store.PlayerGameStats{}
		log := &PlayerGameLog{Stats: stats}
		err := rows.Scan(
			&stats.ID, &stats.GameID, &stats.PlayerID, &stats.TeamID, &stats.Points, &stats.Rebounds,
			&stats.OffensiveRebounds, &stats.DefensiveRebounds, &stats.Assists, &stats.Steals,
			&stats.Blocks, &stats.Turnovers, &stats.FieldGoalsMade, &stats.FieldGoalsAttempted,
			&stats.ThreePointersMade, &stats.ThreePointersAttempted,
			&stats.FreeThrowsMade, &stats.FreeThrowsAttempted, &stats.PersonalFouls,
			&stats.MinutesPlayed, &stats.Starter, &stats.CreatedAt, &stats.UpdatedAt,
			&log.GameDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player game log: %w", err)
		}
		log.GameID = stats.GameID
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating player game logs: %w", err)
	}

	return logs, nil
}

// GetTeamPlayerIDs returns the distinct ids of players who appeared (minutes
// recorded) for a team in a season strictly before a date.
func (r *StatsRepository) GetTeamPlayerIDs(ctx context.Context, teamID, seasonID int, before time.Time) ([]int, error) {
	query := `
		SELECT DISTINCT ps.player_id
		FROM player_game_stats ps
		JOIN games g ON g.game_id = ps.game_id
		WHERE ps.team_id = $1 AND g.season_id = $2 AND g.status = 'final'
			AND g.game_date < $3 AND ps.minutes_played > 0
		ORDER BY ps.player_id ASC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, teamID, seasonID, before)
	if err != nil {
		return nil, fmt.Errorf("querying team players: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning player id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating player ids: %w", err)
	}

	return ids, nil
}

// SumPlayerSeason aggregates one player's rows for one team and season
// strictly before the cutoff.
func (r *StatsRepository) SumPlayerSeason(ctx context.Context, playerID, teamID, seasonID int, cutoff time.Time) (*PlayerSeasonTotals, error) {
	query := `
		SELECT COALESCE(SUM(ps.minutes_played), 0),
			COALESCE(SUM(ps.points), 0),
			COALESCE(SUM(ps.field_goals_made), 0), COALESCE(SUM(ps.field_goals_attempted), 0),
			COALESCE(SUM(ps.three_pointers_made), 0), COALESCE(SUM(ps.three_pointers_attempted), 0),
			COALESCE(SUM(ps.free_throws_made), 0), COALESCE(SUM(ps.free_throws_attempted), 0),
			COALESCE(SUM(ps.rebounds), 0), COALESCE(SUM(ps.offensive_rebounds), 0),
			COALESCE(SUM(ps.assists), 0), COALESCE(SUM(ps.steals), 0), COALESCE(SUM(ps.blocks), 0),
			COALESCE(SUM(ps.turnovers), 0), COALESCE(SUM(ps.personal_fouls), 0),
			COUNT(*) FILTER (WHERE ps.minutes_played > 0),
			COUNT(*) FILTER (WHERE ps.starter)
		FROM player_game_stats ps
		JOIN games g ON g.game_id = ps.game_id
		WHERE ps.player_id = $1 AND ps.team_id = $2 AND g.season_id = $3
			AND g.status = 'final' AND g.game_date < $4
	`

	totals := &PlayerSeasonTotals{PlayerID: playerID, TeamID: teamID, SeasonID: seasonID}
	err := r.db.DB().QueryRowContext(ctx, query, playerID, teamID, seasonID, cutoff).Scan(
		&totals.Minutes, &totals.Points,
		&totals.FieldGoalsMade, &totals.FieldGoalsAttempted,
		&totals.ThreePointersMade, &totals.ThreePointersAttempted,
		&totals.FreeThrowsMade, &totals.FreeThrowsAttempted,
		&totals.Rebounds, &totals.OffensiveRebounds,
		&totals.Assists, &totals.Steals, &totals.Blocks,
		&totals.Turnovers, &totals.PersonalFouls,
		&totals.GamesPlayed, &totals.GamesStarted,
	)
	if err != nil {
		return nil, fmt.Errorf("summing player season: %w", err)
	}

	return totals, nil
}

// SumAllPlayerSeasons aggregates every player's rows per (player, team) for
// one season strictly before the cutoff. Used to derive the league-average
// adjusted rating.
func (r *StatsRepository) SumAllPlayerSeasons(ctx context.Context, seasonID int, cutoff time.Time) ([]*PlayerSeasonTotals, error) {
	query := `
		SELECT ps.player_id, ps.team_id,
			COALESCE(SUM(ps.minutes_played), 0),
			COALESCE(SUM(ps.points), 0),
			COALESCE(SUM(ps.field_goals_made), 0), COALESCE(SUM(ps.field_goals_attempted), 0),
			COALESCE(SUM(ps.three_pointers_made), 0), COALESCE(SUM(ps.three_pointers_attempted), 0),
			COALESCE(SUM(ps.free_throws_made), 0), COALESCE(SUM(ps.free_throws_attempted), 0),
			COALESCE(SUM(ps.rebounds), 0), COALESCE(SUM(ps.offensive_rebounds), 0),
			COALESCE(SUM(ps.assists), 0), COALESCE(SUM(ps.steals), 0), COALESCE(SUM(ps.blocks), 0),
			COALESCE(SUM(ps.turnovers), 0), COALESCE(SUM(ps.personal_fouls), 0),
			COUNT(*) FILTER (WHERE ps.minutes_played > 0),
			COUNT(*) FILTER (WHERE ps.starter)
		FROM player_game_stats ps
		JOIN games g ON g.game_id = ps.game_id
		WHERE g.season_id = $1 AND g.status = 'final' AND g.game_date < $2
		GROUP BY ps.player_id, ps.team_id
		ORDER BY ps.player_id ASC, ps.team_id ASC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, seasonID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying player season sums: %w", err)
	}
	defer rows.Close()

	var all []*PlayerSeasonTotals
	for rows.Next() {
		totals := &PlayerSeasonTotals{SeasonID: seasonID}
		err := rows.Scan(
			&totals.PlayerID, &totals.TeamID,
			&totals.Minutes, &totals.Points,
			&totals.FieldGoalsMade, &totals.FieldGoalsAttempted,
			&totals.ThreePointersMade, &totals.ThreePointersAttempted,
			&totals.FreeThrowsMade, &totals.FreeThrowsAttempted,
			&totals.Rebounds, &totals.OffensiveRebounds,
			&totals.Assists, &totals.Steals, &totals.Blocks,
			&totals.Turnovers, &totals.PersonalFouls,
			&totals.GamesPlayed, &totals.GamesStarted,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player season sums: %w", err)
		}
		all = append(all, totals)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating player season sums: %w", err)
	}

	return all, nil
}

// SumTeamSeasons aggregates every team's game totals for one season strictly
// before the cutoff.
func (r *StatsRepository) SumTeamSeasons(ctx context.Context, seasonID int, cutoff time.Time) ([]*TeamSeasonTotals, error) {
	query := `
		SELECT ts.team_id, COUNT(*),
			COALESCE(SUM(ts.points), 0),
			COALESCE(SUM(ts.field_goals_made), 0), COALESCE(SUM(ts.field_goals_attempted), 0),
			COALESCE(SUM(ts.three_pointers_made), 0),
			COALESCE(SUM(ts.free_throws_made), 0), COALESCE(SUM(ts.free_throws_attempted), 0),
			COALESCE(SUM(ts.offensive_rebounds), 0), COALESCE(SUM(ts.rebounds), 0),
			COALESCE(SUM(ts.assists), 0), COALESCE(SUM(ts.turnovers), 0),
			COALESCE(SUM(ts.personal_fouls), 0)
		FROM team_game_stats ts
		JOIN games g ON g.game_id = ts.game_id
		WHERE g.season_id = $1 AND g.status = 'final' AND g.game_date < $2
		GROUP BY ts.team_id
		ORDER BY ts.team_id ASC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, seasonID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying team season sums: %w", err)
	}
	defer rows.Close()

	var all []*TeamSeasonTotals
	for rows.Next() {
		totals := &TeamSeasonTotals{}
		err := rows.Scan(
			&totals.TeamID, &totals.Games, &totals.Points,
			&totals.FieldGoalsMade, &totals.FieldGoalsAttempted,
			&totals.ThreePointersMade,
			&totals.FreeThrowsMade, &totals.FreeThrowsAttempted,
			&totals.OffensiveRebounds, &totals.Rebounds,
			&totals.Assists, &totals.Turnovers, &totals.PersonalFouls,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team season sums: %w", err)
		}
		all = append(all, totals)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team season sums: %w", err)
	}

	return all, nil
}

// SumLeague aggregates all team game totals league-wide for one season
// strictly before the cutoff.
func (r *StatsRepository) SumLeague(ctx context.Context, seasonID int, cutoff time.Time) (*LeagueTotals, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(ts.points), 0),
			COALESCE(SUM(ts.field_goals_made), 0), COALESCE(SUM(ts.field_goals_attempted), 0),
			COALESCE(SUM(ts.free_throws_made), 0), COALESCE(SUM(ts.free_throws_attempted), 0),
			COALESCE(SUM(ts.offensive_rebounds), 0), COALESCE(SUM(ts.rebounds), 0),
			COALESCE(SUM(ts.assists), 0), COALESCE(SUM(ts.turnovers), 0),
			COALESCE(SUM(ts.personal_fouls), 0)
		FROM team_game_stats ts
		JOIN games g ON g.game_id = ts.game_id
		WHERE g.season_id = $1 AND g.status = 'final' AND g.game_date < $2
	`

	totals := &LeagueTotals{SeasonID: seasonID}
	err := r.db.DB().QueryRowContext(ctx, query, seasonID, cutoff).Scan(
		&totals.TeamGames, &totals.Points,
		&totals.FieldGoalsMade, &totals.FieldGoalsAttempted,
		&totals.FreeThrowsMade, &totals.FreeThrowsAttempted,
		&totals.OffensiveRebounds, &totals.Rebounds,
		&totals.Assists, &totals.Turnovers, &totals.PersonalFouls,
	)
	if err != nil {
		return nil, fmt.Errorf("summing league totals: %w", err)
	}

	return totals, nil
}

func (r *StatsRepository) scanPlayerStats(rows *sql.Rows) ([]*store.PlayerGameStats, error) {
	var stats []*store.PlayerGameStats

	for rows.Next() {
		s := &store.PlayerGameStats{}
		err := rows.Scan(
			&s.ID, &s.GameID, &s.PlayerID, &s.TeamID, &s.Points, &s.Rebounds,
			&s.OffensiveRebounds, &s.DefensiveRebounds, &s.Assists, &s.Steals,
			&s.Blocks, &s.Turnovers, &s.FieldGoalsMade, &s.FieldGoalsAttempted,
			&s.ThreePointersMade, &s.ThreePointersAttempted,
			&s.FreeThrowsMade, &s.FreeThrowsAttempted, &s.PersonalFouls,
			&s.MinutesPlayed, &s.Starter, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player stats row: %w", err)
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating player stats rows: %w", err)
	}

	return stats, nil
}
