package per

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/history"
	"github.com/fortuna/augur/internal/selection"
	"github.com/fortuna/augur/internal/store/repository"
)

// leagueAverage is the value the league-wide rating is pinned to each season.
const leagueAverage = 15.0

// Config carries the engine's tunables. Passed explicitly at construction;
// there is no ambient global configuration.
type Config struct {
	// TopK bounds the players (by season minutes) a team reduction uses.
	TopK int
	// Slots is how many ranked per_slot_N features are populated.
	Slots int
	// RecencyDecayDays is k in the recency weight minutes*exp(-days/k).
	RecencyDecayDays float64
	// MinMinutes qualifies a player for the league-average computation.
	MinMinutes float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TopK:             8,
		Slots:            5,
		RecencyDecayDays: 15,
		MinMinutes:       250,
	}
}

// Engine computes player and team efficiency ratings from season aggregates.
// Safe for concurrent use; the league-context cache is append-only.
type Engine struct {
	hist history.Store
	cfg  Config
	log  *zap.Logger

	leagues sync.Map // "season:cutoff" -> *LeagueContext
}

// NewEngine creates a rating engine over the given history store.
func NewEngine(hist history.Store, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{hist: hist, cfg: cfg, log: log}
}

// teamContext is the per-team pace and assist rate a rating is computed
// against: season-to-date values for aggregate ratings, single-game values
// for the recency variant.
type teamContext struct {
	pace       float64
	assistRate float64
}

// ComputeUPER evaluates the unadjusted stage of the rating: a per-minute
// weighted sum of the player's positive box-score contributions minus the
// possession cost of turnovers, misses, and fouls. Stage order matters: pace
// and league rescaling are applied afterwards, never folded in here.
func ComputeUPER(t *repository.PlayerSeasonTotals, lc *LeagueContext, teamAssistRate float64) float64 {
	if t.Minutes <= 0 {
		return 0
	}

	factor := lc.Factor()
	vop := lc.VOP
	drbp := lc.DRBPct

	fg := float64(t.FieldGoalsMade)
	fga := float64(t.FieldGoalsAttempted)
	fg3 := float64(t.ThreePointersMade)
	ft := float64(t.FreeThrowsMade)
	fta := float64(t.FreeThrowsAttempted)
	trb := float64(t.Rebounds)
	orb := float64(t.OffensiveRebounds)
	ast := float64(t.Assists)
	stl := float64(t.Steals)
	blk := float64(t.Blocks)
	tov := float64(t.Turnovers)
	pf := float64(t.PersonalFouls)

	contribution := fg3 +
		(2.0/3.0)*ast +
		(2-factor*teamAssistRate)*fg +
		0.5*ft*(1+(1-teamAssistRate)+(2.0/3.0)*teamAssistRate) -
		vop*tov -
		vop*drbp*(fga-fg) -
		vop*0.44*(0.44+0.56*drbp)*(fta-ft) +
		vop*(1-drbp)*(trb-orb) +
		vop*drbp*orb +
		vop*stl +
		vop*drbp*blk -
		pf*lc.FoulWeight()

	return contribution / t.Minutes
}

// ComputeAPER adjusts uPER for game tempo so high-pace teams do not
// mechanically inflate per-minute counting rates.
func ComputeAPER(uPER, teamPace, leaguePace float64) float64 {
	if teamPace == 0 {
		return uPER
	}
	return uPER * (leaguePace / teamPace)
}

// ComputePER rescales aPER so the league-wide average is exactly 15.0. When
// the league average is unavailable the aPER is returned unscaled.
func ComputePER(aPER, leagueAvgAPER float64) float64 {
	if leagueAvgAPER == 0 {
		return aPER
	}
	return aPER * (leagueAverage / leagueAvgAPER)
}

// PlayerRating is one player's computed rating with the minutes backing it.
type PlayerRating struct {
	PlayerID int
	PER      float64
	Minutes  float64
	Starter  bool
}

// TeamRating is the set of team-level reductions over one filter set. Slots
// holds the 1st..Kth highest-rated players, zero-padded.
type TeamRating struct {
	Avg         float64
	Weighted    float64
	StartersAvg float64
	Slots       []float64
}

// TeamRating reduces player ratings for one team under every aggregate
// policy at once. An empty filter set yields the zero rating with a logged
// anomaly; it never aborts the caller's feature vector.
func (e *Engine) TeamRating(ctx context.Context, teamID, seasonID int, cutoff time.Time, filter selection.PlayerFilterSet) (*TeamRating, error) {
	rating := &TeamRating{Slots: make([]float64, e.cfg.Slots)}

	if filter.Empty() {
		e.log.Warn("team rating requested for empty player set",
			zap.Int("team_id", teamID),
			zap.Int("season_id", seasonID),
		)
		return rating, nil
	}

	lc, err := e.leagueContext(ctx, seasonID, cutoff)
	if errors.Is(err, ErrMissingLeagueContext) {
		e.log.Warn("league context unavailable; team rating degrades to zero",
			zap.Int("season_id", seasonID),
			zap.Time("cutoff", cutoff),
			zap.Error(err),
		)
		return rating, nil
	}
	if err != nil {
		return nil, err
	}

	tc, err := e.teamSeasonContext(ctx, teamID, seasonID, cutoff, lc)
	if err != nil {
		return nil, err
	}

	players, err := e.ratePlayers(ctx, teamID, seasonID, cutoff, filter, lc, tc)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		e.log.Warn("no rated players after excluding zero-minute entries",
			zap.Int("team_id", teamID),
			zap.Int("season_id", seasonID),
			zap.Int("requested", len(filter.Playing)),
		)
		return rating, nil
	}

	// Top K by season minutes; ties broken by id so repeated calls are
	// bit-identical.
	sort.Slice(players, func(i, j int) bool {
		if players[i].Minutes != players[j].Minutes {
			return players[i].Minutes > players[j].Minutes
		}
		return players[i].PlayerID < players[j].PlayerID
	})
	top := players
	if len(top) > e.cfg.TopK {
		top = top[:e.cfg.TopK]
	}

	var sum, weightedSum, minutes float64
	for _, p := range top {
		sum += p.PER
		weightedSum += p.PER * p.Minutes
		minutes += p.Minutes
	}
	rating.Avg = sum / float64(len(top))
	if minutes > 0 {
		rating.Weighted = weightedSum / minutes
	}

	var starterSum float64
	starterCount := 0
	for _, p := range players {
		if p.Starter {
			starterSum += p.PER
			starterCount++
		}
	}
	if starterCount > 0 {
		rating.StartersAvg = starterSum / float64(starterCount)
	} else {
		// No starter subset in the filter: fall back to the top-K mean.
		rating.StartersAvg = rating.Avg
	}

	// Slots rank by rating across every rated player, independent of the
	// minutes pool behind Avg and Weighted.
	ranked := make([]float64, len(players))
	for i, p := range players {
		ranked[i] = p.PER
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
	copy(rating.Slots, ranked)

	return rating, nil
}

// ratePlayers computes the season-aggregate rating for every selected player
// with recorded minutes, in ascending id order for determinism.
func (e *Engine) ratePlayers(ctx context.Context, teamID, seasonID int, cutoff time.Time, filter selection.PlayerFilterSet, lc *LeagueContext, tc teamContext) ([]PlayerRating, error) {
	ids := sortedIDs(filter.Playing)

	players := make([]PlayerRating, 0, len(ids))
	for _, id := range ids {
		agg, err := e.hist.SeasonAggregate(ctx, id, teamID, seasonID, cutoff)
		if err != nil {
			return nil, fmt.Errorf("aggregating player %d: %w", id, err)
		}
		if agg.Minutes <= 0 {
			// Undefined rating, not zero: excluded before reduction.
			continue
		}

		uper := ComputeUPER(agg, lc, tc.assistRate)
		aper := ComputeAPER(uper, tc.pace, lc.Pace)
		_, starter := filter.Starters[id]
		players = append(players, PlayerRating{
			PlayerID: id,
			PER:      ComputePER(aper, lc.AvgAPER),
			Minutes:  agg.Minutes,
			Starter:  starter,
		})
	}

	return players, nil
}

// teamSeasonContext resolves the team's season-to-date pace and assist rate,
// falling back to league values when the team has no prior games.
func (e *Engine) teamSeasonContext(ctx context.Context, teamID, seasonID int, cutoff time.Time, lc *LeagueContext) (teamContext, error) {
	teams, err := e.hist.TeamSeasonTotals(ctx, seasonID, cutoff)
	if err != nil {
		return teamContext{}, fmt.Errorf("fetching team season totals: %w", err)
	}
	for _, t := range teams {
		if t.TeamID == teamID {
			tc := teamContext{pace: t.Pace(), assistRate: t.AssistRate()}
			if tc.pace == 0 {
				tc.pace = lc.Pace
			}
			return tc, nil
		}
	}
	return teamContext{pace: lc.Pace, assistRate: lc.AssistRate}, nil
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TeamRecencyRating recomputes the rating per game (each game scored against
// its own team context, not season aggregates) and combines games with
// weight minutes*exp(-days/k), then reduces players by their total weight.
func (e *Engine) TeamRecencyRating(ctx context.Context, teamID, seasonID int, cutoff time.Time, filter selection.PlayerFilterSet) (float64, error) {
	if filter.Empty() {
		e.log.Warn("recency rating requested for empty player set",
			zap.Int("team_id", teamID),
			zap.Int("season_id", seasonID),
		)
		return 0, nil
	}

	lc, err := e.leagueContext(ctx, seasonID, cutoff)
	if errors.Is(err, ErrMissingLeagueContext) {
		e.log.Warn("league context unavailable; recency rating degrades to zero",
			zap.Int("season_id", seasonID),
			zap.Error(err),
		)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	teamLogs, err := e.hist.TeamGames(ctx, teamID, seasonID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fetching team games: %w", err)
	}
	gameCtx := make(map[int]teamContext, len(teamLogs))
	for _, l := range teamLogs {
		tc := teamContext{pace: l.Team.Possessions()}
		if l.Team.FieldGoalsMade > 0 {
			tc.assistRate = float64(l.Team.Assists) / float64(l.Team.FieldGoalsMade)
		}
		gameCtx[l.Game.GameID] = tc
	}

	var teamSum, teamWeight float64
	for _, id := range sortedIDs(filter.Playing) {
		games, err := e.hist.PlayerGames(ctx, id, teamID, seasonID, cutoff)
		if err != nil {
			return 0, fmt.Errorf("fetching games for player %d: %w", id, err)
		}

		var sum, weight float64
		for _, g := range games {
			minutes := g.Stats.Minutes()
			if minutes <= 0 {
				continue
			}
			tc, ok := gameCtx[g.GameID]
			if !ok || tc.pace == 0 {
				continue
			}

			uper := ComputeUPER(singleGameTotals(g), lc, tc.assistRate)
			aper := ComputeAPER(uper, tc.pace, lc.Pace)
			per := ComputePER(aper, lc.AvgAPER)

			days := cutoff.Sub(g.GameDate).Hours() / 24
			w := minutes * math.Exp(-days/e.cfg.RecencyDecayDays)
			sum += per * w
			weight += w
		}

		if weight > 0 {
			// Player recency rating is sum/weight; weighting players by
			// their total weight collapses to summing the numerators.
			teamSum += sum
			teamWeight += weight
		}
	}

	if teamWeight == 0 {
		return 0, nil
	}
	return teamSum / teamWeight, nil
}

// singleGameTotals views one box-score row as a one-game aggregate so the
// same uPER formula serves both paths.
func singleGameTotals(g *repository.PlayerGameLog) *repository.PlayerSeasonTotals {
	s := g.Stats
	return &repository.PlayerSeasonTotals{
		PlayerID:               s.PlayerID,
		TeamID:                 s.TeamID,
		Minutes:                s.Minutes(),
		Points:                 s.Points,
		FieldGoalsMade:         s.FieldGoalsMade,
		FieldGoalsAttempted:    s.FieldGoalsAttempted,
		ThreePointersMade:      s.ThreePointersMade,
		ThreePointersAttempted: s.ThreePointersAttempted,
		FreeThrowsMade:         s.FreeThrowsMade,
		FreeThrowsAttempted:    s.FreeThrowsAttempted,
		Rebounds:               s.Rebounds,
		OffensiveRebounds:      s.OffensiveRebounds,
		Assists:                s.Assists,
		Steals:                 s.Steals,
		Blocks:                 s.Blocks,
		Turnovers:              s.Turnovers,
		PersonalFouls:          s.PersonalFouls,
		GamesPlayed:            1,
	}
}
