package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/store"
)

// GameRepository handles game data access
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// GetByID returns a single game by its internal ID
func (r *GameRepository) GetByID(ctx context.Context, gameID int) (*store.Game, error) {
	query := `
		SELECT game_id, sport, season_id, external_id, game_date, home_team_id, away_team_id,
			home_score, away_score, status, created_at, updated_at
		FROM games
		WHERE game_id = $1
	`

	game := &store.Game{}
	err := r.db.DB().QueryRowContext(ctx, query, gameID).Scan(
		&game.GameID, &game.Sport, &game.SeasonID, &game.ExternalID, &game.GameDate,
		&game.HomeTeamID, &game.AwayTeamID, &game.HomeScore, &game.AwayScore,
		&game.Status, &game.CreatedAt, &game.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("game %d not found", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}

	return game, nil
}

// GetCompletedBySeason returns all final games in a season between two dates,
// ordered chronologically. Used by the bulk extraction runner to enumerate
// the training set.
func (r *GameRepository) GetCompletedBySeason(ctx context.Context, seasonID int, from, to time.Time) ([]*store.Game, error) {
	query := `
		SELECT game_id, sport, season_id, external_id, game_date, home_team_id, away_team_id,
			home_score, away_score, status, created_at, updated_at
		FROM games
		WHERE season_id = $1 AND status = 'final' AND game_date >= $2 AND game_date <= $3
		ORDER BY game_date ASC, game_id ASC
	`

	rows, err := r.db.DB().QueryContext(ctx, query, seasonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying season games: %w", err)
	}
	defer rows.Close()

	return r.scanGames(rows)
}

// GetSeasonByYear resolves a season row from its display year (e.g. "2024-25")
func (r *GameRepository) GetSeasonByYear(ctx context.Context, seasonYear string) (*store.Season, error) {
	query := `
		SELECT season_id, sport, season_year, start_date, end_date, is_active, created_at, updated_at
		FROM seasons
		WHERE season_year = $1 AND sport = 'basketball_nba'
		LIMIT 1
	`

	season := &store.Season{}
	err := r.db.DB().QueryRowContext(ctx, query, seasonYear).Scan(
		&season.SeasonID, &season.Sport, &season.SeasonYear, &season.StartDate,
		&season.EndDate, &season.IsActive, &season.CreatedAt, &season.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("season '%s' not found", seasonYear)
	}
	if err != nil {
		return nil, fmt.Errorf("querying season: %w", err)
	}

	return season, nil
}

func (r *GameRepository) scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game

	for rows.Next() {
		game := &store.Game{}
		err := rows.Scan(
			&game.GameID, &game.Sport, &game.SeasonID, &game.ExternalID, &game.GameDate,
			&game.HomeTeamID, &game.AwayTeamID, &game.HomeScore, &game.AwayScore,
			&game.Status, &game.CreatedAt, &game.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game row: %w", err)
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating game rows: %w", err)
	}

	return games, nil
}
