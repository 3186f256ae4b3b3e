package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/cache"
	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/repository"
)

// Season aggregates are immutable once computed (history is append-only and
// the cutoff is fixed in the key), so a long TTL is safe.
const aggregateTTL = 24 * time.Hour

// PostgresStore is the production Store backed by the Atlas database, with a
// two-level read-through cache (in-process, then Redis) for player season
// aggregates.
type PostgresStore struct {
	games *repository.GameRepository
	stats *repository.StatsRepository
	redis *cache.RedisCache
	log   *zap.Logger

	aggregates sync.Map // aggregate key -> *repository.PlayerSeasonTotals
}

// NewPostgresStore creates a Store over the given database. The Redis cache
// is optional; pass nil to cache in process only.
func NewPostgresStore(db *store.Database, redis *cache.RedisCache, log *zap.Logger) *PostgresStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresStore{
		games: repository.NewGameRepository(db),
		stats: repository.NewStatsRepository(db),
		redis: redis,
		log:   log,
	}
}

// GameByID returns a single game row.
func (s *PostgresStore) GameByID(ctx context.Context, gameID int) (*store.Game, error) {
	return s.games.GetByID(ctx, gameID)
}

// GamesBySeason returns completed games in a season between two dates.
func (s *PostgresStore) GamesBySeason(ctx context.Context, seasonID int, from, to time.Time) ([]*store.Game, error) {
	return s.games.GetCompletedBySeason(ctx, seasonID, from, to)
}

// TeamGames returns a team's completed games strictly before a date.
func (s *PostgresStore) TeamGames(ctx context.Context, teamID, seasonID int, before time.Time) ([]*repository.TeamGameLog, error) {
	return s.stats.GetTeamGameLogs(ctx, teamID, seasonID, before)
}

// GameBoxScore returns one team's player rows for one game.
func (s *PostgresStore) GameBoxScore(ctx context.Context, gameID, teamID int) ([]*store.PlayerGameStats, error) {
	return s.stats.GetGameBoxScore(ctx, gameID, teamID)
}

// PlayerGames returns a player's rows strictly before a date.
func (s *PostgresStore) PlayerGames(ctx context.Context, playerID, teamID, seasonID int, before time.Time) ([]*repository.PlayerGameLog, error) {
	return s.stats.GetPlayerGameLogs(ctx, playerID, teamID, seasonID, before)
}

// TeamPlayers returns ids of players who have appeared for a team.
func (s *PostgresStore) TeamPlayers(ctx context.Context, teamID, seasonID int, before time.Time) ([]int, error) {
	return s.stats.GetTeamPlayerIDs(ctx, teamID, seasonID, before)
}

// SeasonAggregate returns a player's season sums before the cutoff, reading
// through the in-process map and Redis before touching Postgres.
func (s *PostgresStore) SeasonAggregate(ctx context.Context, playerID, teamID, seasonID int, cutoff time.Time) (*repository.PlayerSeasonTotals, error) {
	key := aggregateKey(playerID, teamID, seasonID, cutoff)

	if cached, ok := s.aggregates.Load(key); ok {
		return cached.(*repository.PlayerSeasonTotals), nil
	}

	if s.redis != nil {
		totals := &repository.PlayerSeasonTotals{}
		hit, err := s.redis.GetJSON(ctx, key, totals)
		if err != nil {
			s.log.Warn("aggregate cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			s.aggregates.Store(key, totals)
			return totals, nil
		}
	}

	totals, err := s.stats.SumPlayerSeason(ctx, playerID, teamID, seasonID, cutoff)
	if err != nil {
		return nil, err
	}

	s.aggregates.Store(key, totals)
	if s.redis != nil {
		if err := s.redis.SetJSON(ctx, key, totals, aggregateTTL); err != nil {
			s.log.Warn("aggregate cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return totals, nil
}

// AllSeasonAggregates returns season sums for every (player, team) pair.
func (s *PostgresStore) AllSeasonAggregates(ctx context.Context, seasonID int, cutoff time.Time) ([]*repository.PlayerSeasonTotals, error) {
	return s.stats.SumAllPlayerSeasons(ctx, seasonID, cutoff)
}

// TeamSeasonTotals returns per-team season sums before the cutoff.
func (s *PostgresStore) TeamSeasonTotals(ctx context.Context, seasonID int, cutoff time.Time) ([]*repository.TeamSeasonTotals, error) {
	return s.stats.SumTeamSeasons(ctx, seasonID, cutoff)
}

// LeagueTotals returns league-wide season sums before the cutoff.
func (s *PostgresStore) LeagueTotals(ctx context.Context, seasonID int, cutoff time.Time) (*repository.LeagueTotals, error) {
	return s.stats.SumLeague(ctx, seasonID, cutoff)
}

// SeasonByYear resolves a season row from its display year.
func (s *PostgresStore) SeasonByYear(ctx context.Context, seasonYear string) (*store.Season, error) {
	return s.games.GetSeasonByYear(ctx, seasonYear)
}

func aggregateKey(playerID, teamID, seasonID int, cutoff time.Time) string {
	return fmt.Sprintf("augur:agg:%d:%d:%d:%s", playerID, teamID, seasonID, cutoff.UTC().Format("2006-01-02"))
}
