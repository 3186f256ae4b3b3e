// Package per implements Hollinger's Player Efficiency Rating: a per-minute
// box-score rating computed in three stages (uPER, pace-adjusted aPER, then
// rescaled so the league average is 15.0), plus the team-level reductions the
// feature engine exposes.
package per

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrMissingLeagueContext is returned when a season has no qualifying team
// totals before the cutoff, so the league constants cannot be derived.
var ErrMissingLeagueContext = errors.New("league context unavailable")

// LeagueContext carries the per-season league-average constants the uPER
// formula needs. It is derived once per (season, cutoff) and read-only
// during a computation.
type LeagueContext struct {
	SeasonID int `json:"season_id"`

	// AssistRate is league assists per made field goal.
	AssistRate float64 `json:"assist_rate"`
	// FieldGoalRate is league made field goals per made free throw.
	FieldGoalRate float64 `json:"field_goal_rate"`
	// FreeThrowRate is league made free throws per personal foul.
	FreeThrowRate float64 `json:"free_throw_rate"`
	// FoulAttemptRate is league free-throw attempts per personal foul.
	FoulAttemptRate float64 `json:"foul_attempt_rate"`
	// VOP is the value of a possession: league points per possession.
	VOP float64 `json:"vop"`
	// DRBPct is the league defensive-rebound share of all rebounds.
	DRBPct float64 `json:"drb_pct"`
	// Pace is league possessions per team-game.
	Pace float64 `json:"pace"`
	// AvgAPER is the minutes-weighted league-average aPER across qualifying
	// players. Zero when insufficient data; callers then fall back to the
	// unscaled aPER.
	AvgAPER float64 `json:"avg_aper"`
}

// Factor is Hollinger's assist-weighting constant for the season.
func (lc *LeagueContext) Factor() float64 {
	if lc.FieldGoalRate == 0 {
		return 2.0 / 3.0
	}
	return 2.0/3.0 - (0.5*lc.AssistRate)/(2.0*lc.FieldGoalRate)
}

// FoulWeight converts a personal foul into its expected point cost.
func (lc *LeagueContext) FoulWeight() float64 {
	return lc.FreeThrowRate - 0.44*lc.FoulAttemptRate*lc.VOP
}

// buildLeagueContext derives the season constants from all team totals
// strictly before the cutoff, then the league-average aPER from every
// qualifying player's season aggregate.
func (e *Engine) buildLeagueContext(ctx context.Context, seasonID int, cutoff time.Time) (*LeagueContext, error) {
	lg, err := e.hist.LeagueTotals(ctx, seasonID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("fetching league totals: %w", err)
	}
	if lg.TeamGames == 0 || lg.FieldGoalsMade == 0 || lg.Rebounds == 0 {
		return nil, fmt.Errorf("season %d before %s: %w", seasonID, cutoff.Format("2006-01-02"), ErrMissingLeagueContext)
	}

	possessions := float64(lg.FieldGoalsAttempted-lg.OffensiveRebounds+lg.Turnovers) +
		0.44*float64(lg.FreeThrowsAttempted)

	lc := &LeagueContext{
		SeasonID:   seasonID,
		AssistRate: float64(lg.Assists) / float64(lg.FieldGoalsMade),
		DRBPct:     float64(lg.Rebounds-lg.OffensiveRebounds) / float64(lg.Rebounds),
	}
	if lg.FreeThrowsMade > 0 {
		lc.FieldGoalRate = float64(lg.FieldGoalsMade) / float64(lg.FreeThrowsMade)
	}
	if lg.PersonalFouls > 0 {
		lc.FreeThrowRate = float64(lg.FreeThrowsMade) / float64(lg.PersonalFouls)
		lc.FoulAttemptRate = float64(lg.FreeThrowsAttempted) / float64(lg.PersonalFouls)
	}
	if possessions > 0 {
		lc.VOP = float64(lg.Points) / possessions
	}
	lc.Pace = possessions / float64(lg.TeamGames)

	if err := e.fillLeagueAverageAPER(ctx, lc, seasonID, cutoff); err != nil {
		return nil, err
	}

	return lc, nil
}

// fillLeagueAverageAPER computes the minutes-weighted mean aPER over every
// player with enough minutes before the cutoff. Left at zero when no player
// qualifies; stage three then degrades to unscaled aPER.
func (e *Engine) fillLeagueAverageAPER(ctx context.Context, lc *LeagueContext, seasonID int, cutoff time.Time) error {
	players, err := e.hist.AllSeasonAggregates(ctx, seasonID, cutoff)
	if err != nil {
		return fmt.Errorf("fetching player season aggregates: %w", err)
	}
	teams, err := e.hist.TeamSeasonTotals(ctx, seasonID, cutoff)
	if err != nil {
		return fmt.Errorf("fetching team season totals: %w", err)
	}

	teamRates := make(map[int]teamContext, len(teams))
	for _, t := range teams {
		teamRates[t.TeamID] = teamContext{pace: t.Pace(), assistRate: t.AssistRate()}
	}

	var weightedSum, totalMinutes float64
	for _, p := range players {
		if p.Minutes < e.cfg.MinMinutes {
			continue
		}
		tc, ok := teamRates[p.TeamID]
		if !ok || tc.pace == 0 {
			continue
		}
		uper := ComputeUPER(p, lc, tc.assistRate)
		aper := ComputeAPER(uper, tc.pace, lc.Pace)
		weightedSum += aper * p.Minutes
		totalMinutes += p.Minutes
	}

	if totalMinutes == 0 {
		e.log.Warn("no qualifying players for league-average rating; ratings degrade to unscaled aPER",
			zap.Int("season_id", seasonID),
			zap.Time("cutoff", cutoff),
		)
		return nil
	}

	lc.AvgAPER = weightedSum / totalMinutes
	return nil
}

// League returns the league constants for a season as of a cutoff date.
func (e *Engine) League(ctx context.Context, seasonID int, cutoff time.Time) (*LeagueContext, error) {
	return e.leagueContext(ctx, seasonID, cutoff)
}

// leagueContext returns the cached league context for a (season, cutoff-day)
// key, deriving it on first use. Entries are immutable once computed.
func (e *Engine) leagueContext(ctx context.Context, seasonID int, cutoff time.Time) (*LeagueContext, error) {
	key := fmt.Sprintf("%d:%s", seasonID, cutoff.UTC().Format("2006-01-02"))
	if cached, ok := e.leagues.Load(key); ok {
		return cached.(*LeagueContext), nil
	}

	lc, err := e.buildLeagueContext(ctx, seasonID, cutoff)
	if err != nil {
		return nil, err
	}

	e.leagues.Store(key, lc)
	return lc, nil
}
