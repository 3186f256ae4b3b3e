package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/feature"
	"github.com/fortuna/augur/internal/history"
	"github.com/fortuna/augur/internal/per"
	"github.com/fortuna/augur/internal/selection"
	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/window"
)

const seasonID = 1

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func playerRow(id int, mins float64, pts, fgm, fga, reb, ast int, starter bool) *store.PlayerGameStats {
	row := &store.PlayerGameStats{
		PlayerID:            id,
		Points:              pts,
		FieldGoalsMade:      fgm,
		FieldGoalsAttempted: fga,
		FreeThrowsMade:      pts - 2*fgm,
		FreeThrowsAttempted: pts - 2*fgm + 2,
		Rebounds:            reb,
		OffensiveRebounds:   reb / 3,
		DefensiveRebounds:   reb - reb/3,
		Assists:             ast,
		Steals:              1,
		Blocks:              1,
		Turnovers:           2,
		PersonalFouls:       2,
		Starter:             starter,
	}
	row.MinutesPlayed.Valid = true
	row.MinutesPlayed.Float64 = mins
	return row
}

func teamTotals(points int) *store.TeamGameStats {
	return &store.TeamGameStats{
		Points:              points,
		FieldGoalsMade:      points * 2 / 5,
		FieldGoalsAttempted: points * 4 / 5,
		FreeThrowsMade:      points / 10,
		FreeThrowsAttempted: points / 8,
		OffensiveRebounds:   10,
		DefensiveRebounds:   32,
		Rebounds:            42,
		Assists:             points / 4,
		Turnovers:           13,
		PersonalFouls:       18,
	}
}

// assemblyFixture plays teams 1 and 2 four times; team 1 wins every game
// 100-95. Team 1 carries a star (11), a second starter (12), and a bench
// player (13).
func assemblyFixture() *history.MemoryStore {
	m := history.NewMemoryStore()
	for i := 0; i < 4; i++ {
		team1 := []*store.PlayerGameStats{
			playerRow(11, 36, 30, 12, 20, 10, 5, true),
			playerRow(12, 30, 15, 6, 12, 5, 3, true),
			playerRow(13, 12, 8, 3, 6, 4, 2, false),
		}
		team2 := []*store.PlayerGameStats{
			playerRow(21, 36, 25, 10, 18, 8, 4, true),
			playerRow(22, 30, 10, 4, 10, 4, 2, false),
		}
		m.AddGame(&store.Game{
			GameID:     200 + i,
			SeasonID:   seasonID,
			GameDate:   date(2 + 2*i),
			HomeTeamID: 1,
			AwayTeamID: 2,
			Status:     "final",
		}, teamTotals(100), teamTotals(95), team1, team2)
	}
	return m
}

func newService(m *history.MemoryStore) *FeatureService {
	perCfg := per.DefaultConfig()
	perCfg.MinMinutes = 1
	return NewFeatureService(
		window.NewAggregator(m, window.DefaultConfig(), nil),
		per.NewEngine(m, perCfg, nil),
		selection.NewResolver(m, nil, nil),
		nil,
	)
}

func historicalGame() selection.GameContext {
	// The last fixture game: three prior games exist for both teams.
	return selection.GameContext{GameID: 203, SeasonID: seasonID, HomeTeamID: 1, AwayTeamID: 2, Date: date(8)}
}

func hypotheticalGame() selection.GameContext {
	return selection.GameContext{SeasonID: seasonID, HomeTeamID: 1, AwayTeamID: 2, Date: date(10)}
}

func TestAssembleKeysByName(t *testing.T) {
	svc := newService(assemblyFixture())

	names := []string{
		"points|season|avg|home",
		"points|season|avg|away",
		"wins|games_2|avg|diff",
	}
	vector, err := svc.Assemble(context.Background(), names, historicalGame(), AssembleOptions{})
	require.NoError(t, err)
	require.Empty(t, vector.Errors)

	require.Len(t, vector.Features, 3)
	assert.InDelta(t, 100, vector.Features["points|season|avg|home"], 1e-9)
	assert.InDelta(t, 95, vector.Features["points|season|avg|away"], 1e-9)
	assert.InDelta(t, 1, vector.Features["wins|games_2|avg|diff"], 1e-9)
}

func TestAssembleDiffIsHomeMinusAway(t *testing.T) {
	svc := newService(assemblyFixture())

	names := []string{
		"margin|season|avg|home",
		"margin|season|avg|away",
		"margin|season|avg|diff",
		"per_weighted|season|raw|home",
		"per_weighted|season|raw|away",
		"per_weighted|season|raw|diff",
	}
	vector, err := svc.Assemble(context.Background(), names, historicalGame(), AssembleOptions{})
	require.NoError(t, err)
	require.Empty(t, vector.Errors)

	assert.InDelta(t,
		vector.Features["margin|season|avg|home"]-vector.Features["margin|season|avg|away"],
		vector.Features["margin|season|avg|diff"], 1e-9)
	assert.InDelta(t,
		vector.Features["per_weighted|season|raw|home"]-vector.Features["per_weighted|season|raw|away"],
		vector.Features["per_weighted|season|raw|diff"], 1e-9)
}

func TestAssembleStrictRejectsBadName(t *testing.T) {
	svc := newService(assemblyFixture())

	_, err := svc.Assemble(context.Background(),
		[]string{"points|season|avg|home", "nonsense"},
		historicalGame(), AssembleOptions{Strict: true})
	require.Error(t, err)

	var invalid *feature.InvalidFeatureNameError
	assert.True(t, errors.As(err, &invalid))
}

func TestAssembleNonStrictRecordsBadName(t *testing.T) {
	svc := newService(assemblyFixture())

	vector, err := svc.Assemble(context.Background(),
		[]string{"points|season|avg|home", "nonsense"},
		historicalGame(), AssembleOptions{})
	require.NoError(t, err)

	require.Len(t, vector.Errors, 1)
	assert.Equal(t, "nonsense", vector.Errors[0].Name)
	assert.Contains(t, vector.Features, "points|season|avg|home")
	assert.NotContains(t, vector.Features, "nonsense")
}

func TestAssembleRatingFamilies(t *testing.T) {
	svc := newService(assemblyFixture())

	names := []string{
		"per_avg|season|raw|home",
		"per_weighted|season|raw|home",
		"per_starters|season|raw|home",
		"per_recency|season|raw|home",
		"per_slot_1|season|raw|home",
		"per_slot_2|season|raw|home",
	}
	vector, err := svc.Assemble(context.Background(), names, historicalGame(), AssembleOptions{})
	require.NoError(t, err)
	require.Empty(t, vector.Errors)

	for _, name := range names {
		assert.Greater(t, vector.Features[name], 0.0, name)
	}
	// Slot 1 is the best selected player and bounds slot 2 from above.
	assert.GreaterOrEqual(t,
		vector.Features["per_slot_1|season|raw|home"],
		vector.Features["per_slot_2|season|raw|home"])
}

func TestAssembleSlotBeyondRosterIsZero(t *testing.T) {
	svc := newService(assemblyFixture())

	vector, err := svc.Assemble(context.Background(),
		[]string{"per_slot_4|season|raw|home", "per_slot_40|season|raw|home"},
		historicalGame(), AssembleOptions{})
	require.NoError(t, err)
	require.Empty(t, vector.Errors)

	// Team 1 selects three players: the fourth slot pads with zero, and a
	// slot past the configured count is zero rather than an error.
	assert.Zero(t, vector.Features["per_slot_4|season|raw|home"])
	assert.Zero(t, vector.Features["per_slot_40|season|raw|home"])
}

func TestAssembleOverrideSensitivity(t *testing.T) {
	svc := newService(assemblyFixture())
	ctx := context.Background()
	name := "per_weighted|season|raw|home"

	full, err := svc.Assemble(ctx, []string{name}, hypotheticalGame(), AssembleOptions{
		Overrides: map[int]selection.Override{
			1: {11: selection.StatusStarting, 12: selection.StatusStarting, 13: selection.StatusPlaying},
		},
	})
	require.NoError(t, err)

	withoutStar, err := svc.Assemble(ctx, []string{name}, hypotheticalGame(), AssembleOptions{
		Overrides: map[int]selection.Override{
			1: {11: selection.StatusInjured, 12: selection.StatusStarting, 13: selection.StatusPlaying},
		},
	})
	require.NoError(t, err)

	assert.Greater(t, full.Features[name], withoutStar.Features[name])
}

func TestAssembleUnresolvedSelectionDegradesToZero(t *testing.T) {
	svc := newService(assemblyFixture())

	// An override entirely outside the play-history cannot resolve; the
	// rating features degrade to zero instead of failing the vector.
	vector, err := svc.Assemble(context.Background(),
		[]string{"per_avg|season|raw|home", "points|season|avg|home"},
		hypotheticalGame(), AssembleOptions{
			Overrides: map[int]selection.Override{1: {900001: selection.StatusPlaying}},
		})
	require.NoError(t, err)
	require.Empty(t, vector.Errors)

	assert.Zero(t, vector.Features["per_avg|season|raw|home"])
	assert.InDelta(t, 100, vector.Features["points|season|avg|home"], 1e-9)
}

func TestAssembleTrainingPredictionConsistency(t *testing.T) {
	svc := newService(assemblyFixture())
	ctx := context.Background()
	names := []string{"per_weighted|season|raw|home", "per_starters|season|raw|home"}

	// Training path: the historical game resolved from its box score.
	trained, err := svc.Assemble(ctx, names, historicalGame(), AssembleOptions{})
	require.NoError(t, err)

	// Prediction path: a hypothetical game on the same date with the played
	// lineup asserted explicitly must produce identical rating features.
	hypo := historicalGame()
	hypo.GameID = 0
	predicted, err := svc.Assemble(ctx, names, hypo, AssembleOptions{
		Overrides: map[int]selection.Override{
			1: {11: selection.StatusStarting, 12: selection.StatusStarting, 13: selection.StatusPlaying},
			2: {21: selection.StatusStarting, 22: selection.StatusPlaying},
		},
	})
	require.NoError(t, err)

	for _, name := range names {
		assert.InDelta(t, trained.Features[name], predicted.Features[name], 1e-9, name)
	}
}

func TestAssembleValuesAreFinite(t *testing.T) {
	m := history.NewMemoryStore()
	svc := newService(m)

	// No history at all: every feature degrades to the zero sentinel.
	vector, err := svc.Assemble(context.Background(),
		[]string{"fg_pct|season|raw|home", "per_avg|season|raw|diff", "points|games_5|avg|diff"},
		hypotheticalGame(), AssembleOptions{})
	require.NoError(t, err)

	for name, value := range vector.Features {
		assert.Zero(t, value, name)
	}
}
