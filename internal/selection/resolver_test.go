package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/history"
	"github.com/fortuna/augur/internal/store"
)

const seasonID = 1

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func boxRow(id int, mins float64, starter bool) *store.PlayerGameStats {
	row := &store.PlayerGameStats{PlayerID: id, Starter: starter}
	row.MinutesPlayed.Valid = true
	row.MinutesPlayed.Float64 = mins
	return row
}

// rosterFixture gives team 5 two games: players 51 and 52 start both, 53
// comes off the bench, and 54 is rostered but never plays.
func rosterFixture() *history.MemoryStore {
	m := history.NewMemoryStore()
	for i, day := range []int{2, 5} {
		m.AddGame(&store.Game{
			GameID:     401 + i,
			SeasonID:   seasonID,
			GameDate:   date(day),
			HomeTeamID: 5,
			AwayTeamID: 6,
			Status:     "final",
		},
			&store.TeamGameStats{Points: 100},
			&store.TeamGameStats{Points: 95},
			[]*store.PlayerGameStats{
				boxRow(51, 34, true),
				boxRow(52, 28, true),
				boxRow(53, 15, false),
				boxRow(54, 0, false),
			},
			[]*store.PlayerGameStats{
				boxRow(61, 30, true),
			})
	}
	return m
}

type fakeRoster struct {
	injured map[int]bool
}

func (f *fakeRoster) GetInjuryStatus(_ context.Context, playerID int) (bool, error) {
	return f.injured[playerID], nil
}

func historicalContext(gameID int) GameContext {
	return GameContext{GameID: gameID, SeasonID: seasonID, HomeTeamID: 5, AwayTeamID: 6, Date: date(5)}
}

func hypotheticalContext(day int) GameContext {
	return GameContext{SeasonID: seasonID, HomeTeamID: 5, AwayTeamID: 6, Date: date(day)}
}

func TestResolveHistoricalUsesBoxScore(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	set, err := r.Resolve(context.Background(), 5, historicalContext(402), nil)
	require.NoError(t, err)

	// 54 was on the bench with no minutes and is not part of the selection.
	assert.Equal(t, map[int]struct{}{51: {}, 52: {}, 53: {}}, set.Playing)
	assert.Equal(t, map[int]struct{}{51: {}, 52: {}}, set.Starters)
}

func TestResolveHistoricalEmptyBoxScore(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	// Game 999 has no box score at all.
	set, err := r.Resolve(context.Background(), 5, historicalContext(999), nil)
	assert.ErrorIs(t, err, ErrUnresolvedPlayerSet)
	assert.True(t, set.Empty())
}

func TestResolveHypotheticalWithOverride(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	override := Override{
		51: StatusStarting,
		52: StatusInjured,
		53: StatusPlaying,
	}
	set, err := r.Resolve(context.Background(), 5, hypotheticalContext(10), override)
	require.NoError(t, err)

	assert.Equal(t, map[int]struct{}{51: {}, 53: {}}, set.Playing)
	assert.Equal(t, map[int]struct{}{51: {}}, set.Starters)
}

func TestResolveOverrideCannotAddPlayers(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	// 999 never appeared for team 5; the override cannot conjure him into the
	// selection, while 54 appeared only with zero minutes and is equally out.
	override := Override{51: StatusPlaying, 54: StatusPlaying, 999: StatusStarting}
	set, err := r.Resolve(context.Background(), 5, hypotheticalContext(10), override)
	require.NoError(t, err)

	assert.Equal(t, map[int]struct{}{51: {}}, set.Playing)
	assert.Empty(t, set.Starters)
}

func TestResolveOverrideNamespaceMismatch(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	// Every override id misses the play-history: this smells like ids from a
	// different provider and must surface, not silently select everyone.
	override := Override{100051: StatusPlaying, 100052: StatusPlaying}
	set, err := r.Resolve(context.Background(), 5, hypotheticalContext(10), override)
	assert.ErrorIs(t, err, ErrUnresolvedPlayerSet)
	assert.True(t, set.Empty())
}

func TestResolveHypotheticalFallback(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, &fakeRoster{injured: map[int]bool{52: true}}, nil)

	set, err := r.Resolve(context.Background(), 5, hypotheticalContext(10), nil)
	require.NoError(t, err)

	// Season play-history minus the injured player; no starter information
	// exists on this path.
	assert.Equal(t, map[int]struct{}{51: {}, 53: {}}, set.Playing)
	assert.Empty(t, set.Starters)
}

func TestResolveHypotheticalFallbackWithoutRoster(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	set, err := r.Resolve(context.Background(), 5, hypotheticalContext(10), nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]struct{}{51: {}, 52: {}, 53: {}}, set.Playing)
}

func TestResolveHypotheticalNoHistory(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)

	// Before the first game there is no play-history to select from.
	set, err := r.Resolve(context.Background(), 5, hypotheticalContext(1), nil)
	assert.ErrorIs(t, err, ErrUnresolvedPlayerSet)
	assert.True(t, set.Empty())
}

func TestResolveTrainingPredictionParity(t *testing.T) {
	m := rosterFixture()
	r := NewResolver(m, nil, nil)
	ctx := context.Background()

	// Training resolves the played game from its box score.
	trained, err := r.Resolve(ctx, 5, historicalContext(402), nil)
	require.NoError(t, err)

	// Prediction, told exactly who will play, must select the same set.
	override := Override{51: StatusStarting, 52: StatusStarting, 53: StatusPlaying}
	predicted, err := r.Resolve(ctx, 5, hypotheticalContext(5), override)
	require.NoError(t, err)

	assert.Equal(t, trained.Playing, predicted.Playing)
	assert.Equal(t, trained.Starters, predicted.Starters)
}
