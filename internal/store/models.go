package store

import (
	"database/sql"
	"time"
)

// Season represents an NBA season
type Season struct {
	SeasonID   int       `json:"season_id" db:"season_id"`
	Sport      string    `json:"sport" db:"sport"`
	SeasonYear string    `json:"season_year" db:"season_year"`
	StartDate  time.Time `json:"start_date" db:"start_date"`
	EndDate    time.Time `json:"end_date" db:"end_date"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Team represents an NBA franchise
type Team struct {
	TeamID       int            `json:"team_id" db:"team_id"`
	Sport        string         `json:"sport" db:"sport"`
	ExternalID   string         `json:"external_id" db:"external_id"`
	Abbreviation string         `json:"abbreviation" db:"abbreviation"`
	FullName     string         `json:"full_name" db:"full_name"`
	Conference   sql.NullString `json:"conference,omitempty" db:"conference"`
	Division     sql.NullString `json:"division,omitempty" db:"division"`
	IsActive     bool           `json:"is_active" db:"is_active"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Player represents a player
type Player struct {
	PlayerID   int            `json:"player_id" db:"player_id"`
	Sport      string         `json:"sport" db:"sport"`
	ExternalID sql.NullString `json:"external_id,omitempty" db:"external_id"`
	FullName   string         `json:"full_name" db:"full_name"`
	Position   sql.NullString `json:"position,omitempty" db:"position"`
	Status     sql.NullString `json:"status,omitempty" db:"status"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Game represents a single NBA game. Rows are written once by ingestion and
// never mutated afterwards; everything downstream treats them as facts.
type Game struct {
	GameID     int           `json:"game_id" db:"game_id"`
	Sport      string        `json:"sport" db:"sport"`
	SeasonID   int           `json:"season_id" db:"season_id"`
	ExternalID string        `json:"external_id" db:"external_id"`
	GameDate   time.Time     `json:"game_date" db:"game_date"`
	HomeTeamID int           `json:"home_team_id" db:"home_team_id"`
	AwayTeamID int           `json:"away_team_id" db:"away_team_id"`
	HomeScore  sql.NullInt32 `json:"home_score,omitempty" db:"home_score"`
	AwayScore  sql.NullInt32 `json:"away_score,omitempty" db:"away_score"`
	Status     string        `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// PlayerGameStats represents one player's box-score row for one game
type PlayerGameStats struct {
	ID                     int             `json:"id" db:"id"`
	GameID                 int             `json:"game_id" db:"game_id"`
	PlayerID               int             `json:"player_id" db:"player_id"`
	TeamID                 int             `json:"team_id" db:"team_id"`
	Points                 int             `json:"points" db:"points"`
	Rebounds               int             `json:"rebounds" db:"rebounds"`
	OffensiveRebounds      int             `json:"offensive_rebounds" db:"offensive_rebounds"`
	DefensiveRebounds      int             `json:"defensive_rebounds" db:"defensive_rebounds"`
	Assists                int             `json:"assists" db:"assists"`
	Steals                 int             `json:"steals" db:"steals"`
	Blocks                 int             `json:"blocks" db:"blocks"`
	Turnovers              int             `json:"turnovers" db:"turnovers"`
	FieldGoalsMade         int             `json:"field_goals_made" db:"field_goals_made"`
	FieldGoalsAttempted    int             `json:"field_goals_attempted" db:"field_goals_attempted"`
	ThreePointersMade      int             `json:"three_pointers_made" db:"three_pointers_made"`
	ThreePointersAttempted int             `json:"three_pointers_attempted" db:"three_pointers_attempted"`
	FreeThrowsMade         int             `json:"free_throws_made" db:"free_throws_made"`
	FreeThrowsAttempted    int             `json:"free_throws_attempted" db:"free_throws_attempted"`
	PersonalFouls          int             `json:"personal_fouls" db:"personal_fouls"`
	MinutesPlayed          sql.NullFloat64 `json:"minutes_played,omitempty" db:"minutes_played"`
	Starter                bool            `json:"starter" db:"starter"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// Minutes returns minutes played, treating a NULL column as zero.
func (p *PlayerGameStats) Minutes() float64 {
	if p.MinutesPlayed.Valid {
		return p.MinutesPlayed.Float64
	}
	return 0
}

// TeamGameStats represents one team's box-score totals for one game
type TeamGameStats struct {
	ID                     int       `json:"id" db:"id"`
	GameID                 int       `json:"game_id" db:"game_id"`
	TeamID                 int       `json:"team_id" db:"team_id"`
	IsHome                 bool      `json:"is_home" db:"is_home"`
	Points                 int       `json:"points" db:"points"`
	FieldGoalsMade         int       `json:"field_goals_made" db:"field_goals_made"`
	FieldGoalsAttempted    int       `json:"field_goals_attempted" db:"field_goals_attempted"`
	ThreePointersMade      int       `json:"three_pointers_made" db:"three_pointers_made"`
	ThreePointersAttempted int       `json:"three_pointers_attempted" db:"three_pointers_attempted"`
	FreeThrowsMade         int       `json:"free_throws_made" db:"free_throws_made"`
	FreeThrowsAttempted    int       `json:"free_throws_attempted" db:"free_throws_attempted"`
	OffensiveRebounds      int       `json:"offensive_rebounds" db:"offensive_rebounds"`
	DefensiveRebounds      int       `json:"defensive_rebounds" db:"defensive_rebounds"`
	Rebounds               int       `json:"rebounds" db:"rebounds"`
	Assists                int       `json:"assists" db:"assists"`
	Steals                 int       `json:"steals" db:"steals"`
	Blocks                 int       `json:"blocks" db:"blocks"`
	Turnovers              int       `json:"turnovers" db:"turnovers"`
	PersonalFouls          int       `json:"personal_fouls" db:"personal_fouls"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// Possessions estimates the number of possessions the team used in the game.
func (t *TeamGameStats) Possessions() float64 {
	return float64(t.FieldGoalsAttempted-t.OffensiveRebounds+t.Turnovers) +
		0.44*float64(t.FreeThrowsAttempted)
}
