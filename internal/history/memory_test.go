package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/store"
)

const seasonID = 3

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func playedMinutes(m float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m, Valid: true}
}

// Player 71 on team 7 appears in two completed games and one scheduled game.
// Player 72 plays once with zero minutes recorded.
func aggregateFixture() *MemoryStore {
	m := NewMemoryStore()

	m.AddGame(
		&store.Game{GameID: 301, SeasonID: seasonID, GameDate: date(2), HomeTeamID: 7, AwayTeamID: 8, Status: "final"},
		&store.TeamGameStats{Points: 100},
		&store.TeamGameStats{Points: 95},
		[]*store.PlayerGameStats{
			{PlayerID: 71, MinutesPlayed: playedMinutes(20), Points: 10, Rebounds: 5, Assists: 3, FieldGoalsMade: 4, FieldGoalsAttempted: 9, Starter: true},
			{PlayerID: 72, MinutesPlayed: sql.NullFloat64{}, Points: 0},
		},
		[]*store.PlayerGameStats{
			{PlayerID: 81, MinutesPlayed: playedMinutes(33), Points: 18, Rebounds: 6},
		},
	)
	m.AddGame(
		&store.Game{GameID: 302, SeasonID: seasonID, GameDate: date(5), HomeTeamID: 8, AwayTeamID: 7, Status: "final"},
		&store.TeamGameStats{Points: 90},
		&store.TeamGameStats{Points: 102},
		[]*store.PlayerGameStats{
			{PlayerID: 81, MinutesPlayed: playedMinutes(30), Points: 12, Rebounds: 4},
		},
		[]*store.PlayerGameStats{
			{PlayerID: 71, MinutesPlayed: playedMinutes(30), Points: 20, Rebounds: 8, Assists: 5, FieldGoalsMade: 8, FieldGoalsAttempted: 15, Starter: true},
		},
	)
	// Scheduled game on the cutoff day itself; must never count.
	m.AddGame(
		&store.Game{GameID: 303, SeasonID: seasonID, GameDate: date(10), HomeTeamID: 7, AwayTeamID: 8, Status: "scheduled"},
		&store.TeamGameStats{},
		&store.TeamGameStats{},
		[]*store.PlayerGameStats{
			{PlayerID: 71, MinutesPlayed: playedMinutes(40), Points: 50, Rebounds: 20},
		},
		nil,
	)
	return m
}

func TestSeasonAggregateSumsGames(t *testing.T) {
	m := aggregateFixture()

	agg, err := m.SeasonAggregate(context.Background(), 71, 7, seasonID, date(10))
	require.NoError(t, err)

	assert.Equal(t, 71, agg.PlayerID)
	assert.Equal(t, 7, agg.TeamID)
	assert.InDelta(t, 50.0, agg.Minutes, 1e-12)
	assert.Equal(t, 30, agg.Points)
	assert.Equal(t, 13, agg.Rebounds)
	assert.Equal(t, 8, agg.Assists)
	assert.Equal(t, 12, agg.FieldGoalsMade)
	assert.Equal(t, 24, agg.FieldGoalsAttempted)
	assert.Equal(t, 2, agg.GamesPlayed)
	assert.Equal(t, 2, agg.GamesStarted)
}

func TestSeasonAggregateRespectsCutoff(t *testing.T) {
	m := aggregateFixture()
	ctx := context.Background()

	// Strictly-before: the day-5 game is excluded at a day-5 cutoff.
	agg, err := m.SeasonAggregate(ctx, 71, 7, seasonID, date(5))
	require.NoError(t, err)
	assert.Equal(t, 10, agg.Points)
	assert.Equal(t, 1, agg.GamesPlayed)

	// Before any game: the zero-games aggregate, not an error.
	agg, err = m.SeasonAggregate(ctx, 71, 7, seasonID, date(1))
	require.NoError(t, err)
	assert.Zero(t, agg.Minutes)
	assert.Zero(t, agg.Points)
	assert.Zero(t, agg.GamesPlayed)
}

func TestSeasonAggregateNullMinutes(t *testing.T) {
	m := aggregateFixture()

	agg, err := m.SeasonAggregate(context.Background(), 72, 7, seasonID, date(10))
	require.NoError(t, err)
	assert.Zero(t, agg.Minutes)
	// Appeared on the box score but never played.
	assert.Zero(t, agg.GamesPlayed)
}

func TestAllSeasonAggregatesMatchPerPlayer(t *testing.T) {
	m := aggregateFixture()
	ctx := context.Background()

	all, err := m.AllSeasonAggregates(ctx, seasonID, date(10))
	require.NoError(t, err)
	require.Len(t, all, 3)

	for _, got := range all {
		want, err := m.SeasonAggregate(ctx, got.PlayerID, got.TeamID, seasonID, date(10))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Sorted by player then team.
	assert.Equal(t, 71, all[0].PlayerID)
	assert.Equal(t, 72, all[1].PlayerID)
	assert.Equal(t, 81, all[2].PlayerID)
	assert.InDelta(t, 63.0, all[2].Minutes, 1e-12)
	assert.Equal(t, 30, all[2].Points)
}
