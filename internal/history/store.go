// Package history exposes the read-only game-history collaborator the
// feature engines compute from. Every accessor is scoped strictly before a
// caller-supplied date so nothing downstream can look ahead of the game it
// is building features for.
package history

import (
	"context"
	"time"

	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/repository"
)

// Store is the game-history contract consumed by the window and rating
// engines. Implementations must be deterministic: the same arguments always
// return the same rows, and no row dated on or after the `before`/`cutoff`
// argument is ever included.
type Store interface {
	// GameByID returns a single game row.
	GameByID(ctx context.Context, gameID int) (*store.Game, error)

	// GamesBySeason returns completed games in a season between two dates,
	// oldest first.
	GamesBySeason(ctx context.Context, seasonID int, from, to time.Time) ([]*store.Game, error)

	// TeamGames returns a team's completed games strictly before a date,
	// newest first, with both teams' totals joined.
	TeamGames(ctx context.Context, teamID, seasonID int, before time.Time) ([]*repository.TeamGameLog, error)

	// GameBoxScore returns one team's player rows for one game.
	GameBoxScore(ctx context.Context, gameID, teamID int) ([]*store.PlayerGameStats, error)

	// PlayerGames returns a player's rows for one team and season strictly
	// before a date, newest first.
	PlayerGames(ctx context.Context, playerID, teamID, seasonID int, before time.Time) ([]*repository.PlayerGameLog, error)

	// TeamPlayers returns ids of players who have appeared for a team in a
	// season strictly before a date.
	TeamPlayers(ctx context.Context, teamID, seasonID int, before time.Time) ([]int, error)

	// SeasonAggregate returns a player's summed box-score rows strictly
	// before the cutoff. Safe to memoize per (player, team, season, cutoff).
	SeasonAggregate(ctx context.Context, playerID, teamID, seasonID int, cutoff time.Time) (*repository.PlayerSeasonTotals, error)

	// AllSeasonAggregates returns season sums for every (player, team) pair
	// in a season strictly before the cutoff.
	AllSeasonAggregates(ctx context.Context, seasonID int, cutoff time.Time) ([]*repository.PlayerSeasonTotals, error)

	// TeamSeasonTotals returns per-team season sums strictly before the cutoff.
	TeamSeasonTotals(ctx context.Context, seasonID int, cutoff time.Time) ([]*repository.TeamSeasonTotals, error)

	// LeagueTotals returns league-wide season sums strictly before the cutoff.
	LeagueTotals(ctx context.Context, seasonID int, cutoff time.Time) (*repository.LeagueTotals, error)
}
