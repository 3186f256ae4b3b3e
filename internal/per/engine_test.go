package per

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/history"
	"github.com/fortuna/augur/internal/selection"
	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/repository"
)

const seasonID = 1

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func playerRow(id int, pts, fgm, fga, reb, ast int, starter bool) *store.PlayerGameStats {
	return &store.PlayerGameStats{
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
}

func withMinutes(row *store.PlayerGameStats, mins float64) *store.PlayerGameStats {
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

// ratingFixture plays teams 1 and 2 against each other four times. Team 1
// carries three players: a heavy-minutes star (11), a second starter (12),
// and a bench player (13).
func ratingFixture() *history.MemoryStore {
	m := history.NewMemoryStore()
	for i := 0; i < 4; i++ {
		team1 := []*store.PlayerGameStats{
			withMinutes(playerRow(11, 30, 12, 20, 10, 5, true), 36),
			withMinutes(playerRow(12, 15, 6, 12, 5, 3, true), 30),
			withMinutes(playerRow(13, 5, 2, 6, 2, 1, false), 12),
		}
		team2 := []*store.PlayerGameStats{
			withMinutes(playerRow(21, 25, 10, 18, 8, 4, true), 36),
			withMinutes(playerRow(22, 10, 4, 10, 4, 2, false), 30),
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

func filterOf(playing []int, starters []int) selection.PlayerFilterSet {
	set := selection.PlayerFilterSet{
		Playing:  map[int]struct{}{},
		Starters: map[int]struct{}{},
	}
	for _, id := range playing {
		set.Playing[id] = struct{}{}
	}
	for _, id := range starters {
		set.Starters[id] = struct{}{}
	}
	return set
}

// expectedPER recomputes one player's rating through the exported stage
// functions, independently of the team reduction under test.
func expectedPER(t *testing.T, m *history.MemoryStore, e *Engine, playerID, teamID int, cutoff time.Time) float64 {
	t.Helper()
	ctx := context.Background()

	lc, err := e.League(ctx, seasonID, cutoff)
	require.NoError(t, err)

	teams, err := m.TeamSeasonTotals(ctx, seasonID, cutoff)
	require.NoError(t, err)
	pace, assistRate := lc.Pace, lc.AssistRate
	for _, tm := range teams {
		if tm.TeamID == teamID {
			pace, assistRate = tm.Pace(), tm.AssistRate()
		}
	}

	agg, err := m.SeasonAggregate(ctx, playerID, teamID, seasonID, cutoff)
	require.NoError(t, err)

	uper := ComputeUPER(agg, lc, assistRate)
	return ComputePER(ComputeAPER(uper, pace, lc.Pace), lc.AvgAPER)
}

func TestComputeUPERZeroMinutes(t *testing.T) {
	lc := &LeagueContext{VOP: 1, DRBPct: 0.7, Pace: 95}
	assert.Zero(t, ComputeUPER(&repository.PlayerSeasonTotals{}, lc, 0.6))
}

func TestComputeUPERRewardsScoring(t *testing.T) {
	lc := &LeagueContext{
		AssistRate:      0.6,
		FieldGoalRate:   2.3,
		FreeThrowRate:   0.8,
		FoulAttemptRate: 1.0,
		VOP:             1.1,
		DRBPct:          0.72,
		Pace:            96,
	}

	base := &repository.PlayerSeasonTotals{
		Minutes: 600, Points: 250,
		FieldGoalsMade: 100, FieldGoalsAttempted: 220,
		Rebounds: 120, OffensiveRebounds: 40,
		Assists: 60, Steals: 20, Blocks: 10,
		Turnovers: 40, PersonalFouls: 50,
	}
	better := *base
	better.FieldGoalsMade += 20

	assert.Greater(t, ComputeUPER(&better, lc, 0.6), ComputeUPER(base, lc, 0.6))
}

func TestComputeAPERPaceAdjustment(t *testing.T) {
	assert.InDelta(t, 10.0, ComputeAPER(10, 96, 96), 1e-12)
	// A fast team's per-minute production is deflated.
	assert.Less(t, ComputeAPER(10, 104, 96), 10.0)
	assert.Greater(t, ComputeAPER(10, 90, 96), 10.0)
	// Missing team pace leaves the rating unadjusted.
	assert.InDelta(t, 10.0, ComputeAPER(10, 0, 96), 1e-12)
}

func TestComputePERNormalization(t *testing.T) {
	assert.InDelta(t, 15.0, ComputePER(12, 12), 1e-12)
	assert.InDelta(t, 30.0, ComputePER(24, 12), 1e-12)
	// An unavailable league average degrades to the unscaled value.
	assert.InDelta(t, 24.0, ComputePER(24, 0), 1e-12)
}

func TestLeagueContextDerivation(t *testing.T) {
	m := ratingFixture()
	e := NewEngine(m, DefaultConfig(), nil)
	ctx := context.Background()

	lc, err := e.League(ctx, seasonID, date(10))
	require.NoError(t, err)

	lg, err := m.LeagueTotals(ctx, seasonID, date(10))
	require.NoError(t, err)

	assert.InDelta(t, float64(lg.Assists)/float64(lg.FieldGoalsMade), lc.AssistRate, 1e-9)
	assert.InDelta(t, float64(lg.Rebounds-lg.OffensiveRebounds)/float64(lg.Rebounds), lc.DRBPct, 1e-9)

	possessions := float64(lg.FieldGoalsAttempted-lg.OffensiveRebounds+lg.Turnovers) +
		0.44*float64(lg.FreeThrowsAttempted)
	assert.InDelta(t, float64(lg.Points)/possessions, lc.VOP, 1e-9)
	assert.InDelta(t, possessions/float64(lg.TeamGames), lc.Pace, 1e-9)
}

func TestLeagueContextMissing(t *testing.T) {
	m := history.NewMemoryStore()
	e := NewEngine(m, DefaultConfig(), nil)

	_, err := e.League(context.Background(), seasonID, date(10))
	assert.ErrorIs(t, err, ErrMissingLeagueContext)
}

func TestLeagueAveragePinnedToFifteen(t *testing.T) {
	m := ratingFixture()
	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	e := NewEngine(m, cfg, nil)
	ctx := context.Background()

	lc, err := e.League(ctx, seasonID, date(10))
	require.NoError(t, err)
	require.NotZero(t, lc.AvgAPER)

	// The minutes-weighted mean rating over all qualifying players is the
	// league average by construction.
	players, err := m.AllSeasonAggregates(ctx, seasonID, date(10))
	require.NoError(t, err)

	var weighted, totalMinutes float64
	for _, p := range players {
		per := expectedPER(t, m, e, p.PlayerID, p.TeamID, date(10))
		weighted += per * p.Minutes
		totalMinutes += p.Minutes
	}
	assert.InDelta(t, 15.0, weighted/totalMinutes, 0.05)
}

func TestTeamRatingReductions(t *testing.T) {
	m := ratingFixture()
	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	e := NewEngine(m, cfg, nil)
	ctx := context.Background()

	filter := filterOf([]int{11, 12, 13}, []int{11, 12})
	rating, err := e.TeamRating(ctx, 1, seasonID, date(10), filter)
	require.NoError(t, err)

	per11 := expectedPER(t, m, e, 11, 1, date(10))
	per12 := expectedPER(t, m, e, 12, 1, date(10))
	per13 := expectedPER(t, m, e, 13, 1, date(10))

	assert.InDelta(t, (per11+per12+per13)/3, rating.Avg, 1e-9)

	min11, min12, min13 := 4*36.0, 4*30.0, 4*12.0
	weighted := (per11*min11 + per12*min12 + per13*min13) / (min11 + min12 + min13)
	assert.InDelta(t, weighted, rating.Weighted, 1e-9)

	assert.InDelta(t, (per11+per12)/2, rating.StartersAvg, 1e-9)

	require.Len(t, rating.Slots, cfg.Slots)
	assert.InDelta(t, per11, rating.Slots[0], 1e-9)
	assert.GreaterOrEqual(t, rating.Slots[0], rating.Slots[1])
	assert.GreaterOrEqual(t, rating.Slots[1], rating.Slots[2])
	// Only three players were selected, so the trailing slots stay zero.
	assert.Zero(t, rating.Slots[3])
	assert.Zero(t, rating.Slots[4])
}

func TestTeamRatingTopKByMinutes(t *testing.T) {
	m := ratingFixture()
	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	cfg.TopK = 2
	e := NewEngine(m, cfg, nil)

	filter := filterOf([]int{11, 12, 13}, nil)
	rating, err := e.TeamRating(context.Background(), 1, seasonID, date(10), filter)
	require.NoError(t, err)

	// The bench player has the fewest minutes and falls outside the top two.
	per11 := expectedPER(t, m, e, 11, 1, date(10))
	per12 := expectedPER(t, m, e, 12, 1, date(10))
	assert.InDelta(t, (per11+per12)/2, rating.Avg, 1e-9)
}

func TestTeamRatingSlotsRankBeyondMinutesPool(t *testing.T) {
	m := ratingFixture()
	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	cfg.TopK = 2
	e := NewEngine(m, cfg, nil)

	rating, err := e.TeamRating(context.Background(), 1, seasonID, date(10), filterOf([]int{11, 12, 13}, nil))
	require.NoError(t, err)

	// The bench player falls outside the two-man minutes pool yet still
	// holds a slot: slots rank every rated player.
	pers := []float64{
		expectedPER(t, m, e, 11, 1, date(10)),
		expectedPER(t, m, e, 12, 1, date(10)),
		expectedPER(t, m, e, 13, 1, date(10)),
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(pers)))
	for i, want := range pers {
		assert.InDelta(t, want, rating.Slots[i], 1e-9)
	}
	assert.Zero(t, rating.Slots[3])
}

func TestTeamRatingStartersFallback(t *testing.T) {
	m := ratingFixture()
	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	e := NewEngine(m, cfg, nil)

	rating, err := e.TeamRating(context.Background(), 1, seasonID, date(10), filterOf([]int{11, 12, 13}, nil))
	require.NoError(t, err)
	assert.InDelta(t, rating.Avg, rating.StartersAvg, 1e-12)
}

func TestTeamRatingEmptyFilter(t *testing.T) {
	m := ratingFixture()
	e := NewEngine(m, DefaultConfig(), nil)

	rating, err := e.TeamRating(context.Background(), 1, seasonID, date(10), selection.PlayerFilterSet{})
	require.NoError(t, err)
	assert.Zero(t, rating.Avg)
	assert.Zero(t, rating.Weighted)
	assert.Zero(t, rating.StartersAvg)
}

func TestTeamRatingExcludesZeroMinutePlayers(t *testing.T) {
	m := ratingFixture()
	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	e := NewEngine(m, cfg, nil)
	ctx := context.Background()

	with, err := e.TeamRating(ctx, 1, seasonID, date(10), filterOf([]int{11, 12, 13}, nil))
	require.NoError(t, err)
	// Player 99 has no recorded minutes; the rating is undefined and the
	// player drops out instead of dragging the mean toward zero.
	withGhost, err := e.TeamRating(ctx, 1, seasonID, date(10), filterOf([]int{11, 12, 13, 99}, nil))
	require.NoError(t, err)

	assert.InDelta(t, with.Avg, withGhost.Avg, 1e-12)
}

func TestTeamRatingMissingLeagueContextDegrades(t *testing.T) {
	m := history.NewMemoryStore()
	e := NewEngine(m, DefaultConfig(), nil)

	rating, err := e.TeamRating(context.Background(), 1, seasonID, date(10), filterOf([]int{11}, nil))
	require.NoError(t, err)
	assert.Zero(t, rating.Avg)
}

func TestTeamRecencyRatingFavorsRecentForm(t *testing.T) {
	m := history.NewMemoryStore()
	good := func(id int) *store.PlayerGameStats {
		return withMinutes(playerRow(id, 30, 12, 20, 10, 5, true), 30)
	}
	bad := func(id int) *store.PlayerGameStats {
		return withMinutes(playerRow(id, 2, 1, 12, 2, 0, true), 30)
	}

	// Player 31 trends up, player 32 trends down; aggregates are identical.
	m.AddGame(&store.Game{GameID: 301, SeasonID: seasonID, GameDate: date(1), HomeTeamID: 3, AwayTeamID: 4, Status: "final"},
		teamTotals(100), teamTotals(95),
		[]*store.PlayerGameStats{bad(31), good(32)}, nil)
	m.AddGame(&store.Game{GameID: 302, SeasonID: seasonID, GameDate: date(20), HomeTeamID: 3, AwayTeamID: 4, Status: "final"},
		teamTotals(100), teamTotals(95),
		[]*store.PlayerGameStats{good(31), bad(32)}, nil)

	cfg := DefaultConfig()
	cfg.MinMinutes = 1
	cfg.RecencyDecayDays = 5
	e := NewEngine(m, cfg, nil)
	ctx := context.Background()

	up, err := e.TeamRecencyRating(ctx, 3, seasonID, date(21), filterOf([]int{31}, nil))
	require.NoError(t, err)
	down, err := e.TeamRecencyRating(ctx, 3, seasonID, date(21), filterOf([]int{32}, nil))
	require.NoError(t, err)

	assert.Greater(t, up, down)
}

func TestTeamRecencyRatingEmptyFilter(t *testing.T) {
	m := ratingFixture()
	e := NewEngine(m, DefaultConfig(), nil)

	got, err := e.TeamRecencyRating(context.Background(), 1, seasonID, date(10), selection.PlayerFilterSet{})
	require.NoError(t, err)
	assert.Zero(t, got)
}
