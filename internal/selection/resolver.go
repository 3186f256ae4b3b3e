// Package selection derives the authoritative player set a team-level rating
// is computed over. Training (historical games) and prediction (hypothetical
// games) must agree on this derivation: the resolver is the single seam both
// paths go through, so the players aggregated at training time are
// reproducible, under the same rule, at prediction time.
package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/history"
)

// Status is a caller-asserted availability state for one player.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusStarting Status = "starting"
	StatusInjured  Status = "injured"
)

// Override is an explicit availability assertion for a hypothetical game,
// keyed by player id. For future games it takes precedence over any cached
// roster status. It can only subtract availability: a player absent from the
// team's season play-history is never added by an override.
type Override map[int]Status

// PlayerFilterSet scopes which players participate in a team-level rating
// reduction for one game context. Starters is always a subset of Playing.
type PlayerFilterSet struct {
	Playing  map[int]struct{}
	Starters map[int]struct{}
}

func newFilterSet() PlayerFilterSet {
	return PlayerFilterSet{
		Playing:  make(map[int]struct{}),
		Starters: make(map[int]struct{}),
	}
}

// Empty reports whether no players are selected.
func (s PlayerFilterSet) Empty() bool {
	return len(s.Playing) == 0
}

// GameContext identifies the game a filter set is being resolved for. A zero
// GameID marks a hypothetical (future) game with no box score yet.
type GameContext struct {
	GameID     int
	SeasonID   int
	HomeTeamID int
	AwayTeamID int
	Date       time.Time
}

// Historical reports whether the game has a concrete box score.
func (g GameContext) Historical() bool {
	return g.GameID != 0
}

// TeamIsHome reports whether teamID is the home side of the context.
func (g GameContext) TeamIsHome(teamID int) bool {
	return g.HomeTeamID == teamID
}

// RosterStore supplies live injury status. Consumed only by the
// hypothetical-game fallback; it can remove players from a selection, never
// add one.
type RosterStore interface {
	GetInjuryStatus(ctx context.Context, playerID int) (bool, error)
}

// ErrUnresolvedPlayerSet is returned when resolution produces zero players
// against a non-empty request. It usually indicates an id-namespace mismatch
// between the caller's override and the stats store, which must surface as a
// detectable anomaly rather than degrade to "use everyone".
var ErrUnresolvedPlayerSet = errors.New("player selection resolved to an empty set")

// Resolver produces PlayerFilterSets from game contexts.
type Resolver struct {
	hist   history.Store
	roster RosterStore
	log    *zap.Logger
}

// NewResolver creates a resolver. roster may be nil when no live injury feed
// is wired in.
func NewResolver(hist history.Store, roster RosterStore, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{hist: hist, roster: roster, log: log}
}

// Resolve returns the player set for one team in one game context.
//
// Historical games use the actual box score: exactly the players with
// recorded minutes, starters from the per-game starter flag. Hypothetical
// games require an explicit override; when none is given the resolver falls
// back to the team's season play-history minus injured players, which is NOT
// training-equivalent and is logged loudly as such.
func (r *Resolver) Resolve(ctx context.Context, teamID int, game GameContext, override Override) (PlayerFilterSet, error) {
	if game.Historical() {
		return r.resolveHistorical(ctx, teamID, game)
	}
	return r.resolveHypothetical(ctx, teamID, game, override)
}

func (r *Resolver) resolveHistorical(ctx context.Context, teamID int, game GameContext) (PlayerFilterSet, error) {
	box, err := r.hist.GameBoxScore(ctx, game.GameID, teamID)
	if err != nil {
		return PlayerFilterSet{}, fmt.Errorf("fetching box score: %w", err)
	}

	set := newFilterSet()
	for _, row := range box {
		if row.Minutes() <= 0 {
			continue
		}
		set.Playing[row.PlayerID] = struct{}{}
		if row.Starter {
			set.Starters[row.PlayerID] = struct{}{}
		}
	}

	if set.Empty() {
		r.log.Warn("historical game has no played minutes recorded",
			zap.Int("game_id", game.GameID),
			zap.Int("team_id", teamID),
		)
		return set, fmt.Errorf("game %d team %d: %w", game.GameID, teamID, ErrUnresolvedPlayerSet)
	}

	return set, nil
}

func (r *Resolver) resolveHypothetical(ctx context.Context, teamID int, game GameContext, override Override) (PlayerFilterSet, error) {
	appeared, err := r.hist.TeamPlayers(ctx, teamID, game.SeasonID, game.Date)
	if err != nil {
		return PlayerFilterSet{}, fmt.Errorf("fetching team play-history: %w", err)
	}

	appearedSet := make(map[int]struct{}, len(appeared))
	for _, id := range appeared {
		appearedSet[id] = struct{}{}
	}

	if len(override) > 0 {
		return r.applyOverride(teamID, game, override, appearedSet)
	}

	// Fallback: the full season play-history minus anyone the roster store
	// marks injured. This changes the distribution the features were trained
	// on (training uses who actually played), so it must never happen
	// silently.
	r.log.Warn("no availability override for hypothetical game: falling back to season play-history; selection is NOT training-equivalent",
		zap.Int("team_id", teamID),
		zap.Int("season_id", game.SeasonID),
		zap.Time("game_date", game.Date),
		zap.Int("candidate_players", len(appeared)),
	)

	set := newFilterSet()
	for _, id := range appeared {
		if r.roster != nil {
			injured, err := r.roster.GetInjuryStatus(ctx, id)
			if err != nil {
				return PlayerFilterSet{}, fmt.Errorf("fetching injury status for player %d: %w", id, err)
			}
			if injured {
				continue
			}
		}
		set.Playing[id] = struct{}{}
	}

	if set.Empty() {
		r.log.Warn("hypothetical fallback selected zero players",
			zap.Int("team_id", teamID),
			zap.Int("season_id", game.SeasonID),
		)
		return set, fmt.Errorf("team %d on %s: %w", teamID, game.Date.Format("2006-01-02"), ErrUnresolvedPlayerSet)
	}

	return set, nil
}

// applyOverride intersects the caller's availability assertions with the
// team's play-history. Override ids outside the play-history are dropped,
// and dropping every id is an anomaly: the ids probably come from a
// different namespace than the stats store keys on.
func (r *Resolver) applyOverride(teamID int, game GameContext, override Override, appeared map[int]struct{}) (PlayerFilterSet, error) {
	set := newFilterSet()
	unknown := 0

	for id, status := range override {
		if status == StatusInjured {
			continue
		}
		if _, ok := appeared[id]; !ok {
			unknown++
			continue
		}
		set.Playing[id] = struct{}{}
		if status == StatusStarting {
			set.Starters[id] = struct{}{}
		}
	}

	if unknown > 0 {
		r.log.Warn("override names players outside the team's play-history",
			zap.Int("team_id", teamID),
			zap.Int("season_id", game.SeasonID),
			zap.Int("unmatched", unknown),
			zap.Int("matched", len(set.Playing)),
		)
	}

	if set.Empty() && len(appeared) > 0 {
		return set, fmt.Errorf("override matched no players for team %d (possible id-namespace mismatch): %w", teamID, ErrUnresolvedPlayerSet)
	}
	if set.Empty() {
		return set, fmt.Errorf("team %d has no play-history before %s: %w", teamID, game.Date.Format("2006-01-02"), ErrUnresolvedPlayerSet)
	}

	return set, nil
}
