// Package roster exposes live player availability. The feature core only
// reads injury flags; the flags are written out of band by the roster feed.
package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/augur/internal/cache"
)

// Injury flags are refreshed by the feed well inside this TTL; an expired
// key reads as healthy, which only ever widens a fallback selection.
const injuryTTL = 6 * time.Hour

// RedisStore reads and writes injury flags in Redis.
type RedisStore struct {
	cache *cache.RedisCache
}

// NewRedisStore creates a roster store over the shared Redis cache.
func NewRedisStore(c *cache.RedisCache) *RedisStore {
	return &RedisStore{cache: c}
}

// GetInjuryStatus reports whether a player is currently flagged injured.
// Missing keys read as healthy.
func (s *RedisStore) GetInjuryStatus(ctx context.Context, playerID int) (bool, error) {
	val, err := s.cache.Client().Get(ctx, injuryKey(playerID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading injury flag: %w", err)
	}
	return val == "1", nil
}

// SetInjuryStatus records a player's injury flag.
func (s *RedisStore) SetInjuryStatus(ctx context.Context, playerID int, injured bool) error {
	val := "0"
	if injured {
		val = "1"
	}
	if err := s.cache.Client().Set(ctx, injuryKey(playerID), val, injuryTTL).Err(); err != nil {
		return fmt.Errorf("writing injury flag: %w", err)
	}
	return nil
}

func injuryKey(playerID int) string {
	return fmt.Sprintf("augur:injury:%d", playerID)
}
