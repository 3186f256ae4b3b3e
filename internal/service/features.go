// Package service orchestrates the parsing, selection, and aggregation
// layers into feature vectors for training and prediction.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/feature"
	"github.com/fortuna/augur/internal/per"
	"github.com/fortuna/augur/internal/selection"
	"github.com/fortuna/augur/internal/window"
)

// AssembleOptions controls one assembly call.
type AssembleOptions struct {
	// Strict makes an unparseable feature name fatal for the whole request
	// instead of recorded per-feature.
	Strict bool
	// Overrides carries explicit availability per team id, required for
	// hypothetical games.
	Overrides map[int]selection.Override
}

// FeatureError is one feature's failure in a non-strict assembly.
type FeatureError struct {
	Name  string `json:"feature"`
	Error string `json:"error"`
}

// Vector is a name-keyed feature mapping. Values are always finite; features
// that failed are listed in Errors and absent from Features. Keying by the
// exact requested name removes any positional mapping between model inputs
// and their meanings.
type Vector struct {
	Features map[string]float64 `json:"features"`
	Errors   []FeatureError     `json:"errors,omitempty"`
}

// FeatureService assembles feature vectors for one game context.
type FeatureService struct {
	windows  *window.Aggregator
	ratings  *per.Engine
	resolver *selection.Resolver
	log      *zap.Logger
}

// NewFeatureService creates the assembler over its three engines.
func NewFeatureService(windows *window.Aggregator, ratings *per.Engine, resolver *selection.Resolver, log *zap.Logger) *FeatureService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeatureService{
		windows:  windows,
		ratings:  ratings,
		resolver: resolver,
		log:      log,
	}
}

// assembly carries the per-call memoization: filter sets and team ratings
// are resolved once per team no matter how many features reference them, so
// every feature in one vector sees the same player selection.
type assembly struct {
	game    selection.GameContext
	opts    AssembleOptions
	filters map[int]selection.PlayerFilterSet
	ratings map[int]*per.TeamRating
	recency map[int]float64
}

// Assemble computes the requested features for one game. In non-strict mode
// it always returns a vector; individual failures are recorded per feature.
func (s *FeatureService) Assemble(ctx context.Context, names []string, game selection.GameContext, opts AssembleOptions) (*Vector, error) {
	vector := &Vector{Features: make(map[string]float64, len(names))}
	run := &assembly{
		game:    game,
		opts:    opts,
		filters: make(map[int]selection.PlayerFilterSet),
		ratings: make(map[int]*per.TeamRating),
		recency: make(map[int]float64),
	}

	for _, name := range names {
		spec, err := feature.Parse(name)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			vector.Errors = append(vector.Errors, FeatureError{Name: name, Error: err.Error()})
			continue
		}

		value, err := s.compute(ctx, run, spec)
		if err != nil {
			vector.Errors = append(vector.Errors, FeatureError{Name: name, Error: err.Error()})
			continue
		}

		vector.Features[name] = sanitize(value)
	}

	return vector, nil
}

func (s *FeatureService) compute(ctx context.Context, run *assembly, spec feature.Spec) (float64, error) {
	switch spec.Perspective {
	case feature.PerspectiveHome:
		return s.teamValue(ctx, run, spec, run.game.HomeTeamID)
	case feature.PerspectiveAway:
		return s.teamValue(ctx, run, spec, run.game.AwayTeamID)
	default:
		home, err := s.teamValue(ctx, run, spec, run.game.HomeTeamID)
		if err != nil {
			return 0, err
		}
		away, err := s.teamValue(ctx, run, spec, run.game.AwayTeamID)
		if err != nil {
			return 0, err
		}
		return home - away, nil
	}
}

func (s *FeatureService) teamValue(ctx context.Context, run *assembly, spec feature.Spec, teamID int) (float64, error) {
	if spec.IsPER() {
		return s.ratingValue(ctx, run, spec, teamID)
	}
	return s.windows.Aggregate(ctx, teamID, run.game.SeasonID, spec, run.game.Date, run.game.TeamIsHome(teamID))
}

func (s *FeatureService) ratingValue(ctx context.Context, run *assembly, spec feature.Spec, teamID int) (float64, error) {
	filter, err := s.filterSet(ctx, run, teamID)
	if err != nil {
		return 0, err
	}

	if spec.Statistic == "per_recency" {
		value, ok := run.recency[teamID]
		if !ok {
			value, err = s.ratings.TeamRecencyRating(ctx, teamID, run.game.SeasonID, run.game.Date, filter)
			if err != nil {
				return 0, err
			}
			run.recency[teamID] = value
		}
		return value, nil
	}

	rating, ok := run.ratings[teamID]
	if !ok {
		rating, err = s.ratings.TeamRating(ctx, teamID, run.game.SeasonID, run.game.Date, filter)
		if err != nil {
			return 0, err
		}
		run.ratings[teamID] = rating
	}

	switch spec.Statistic {
	case "per_avg":
		return rating.Avg, nil
	case "per_weighted":
		return rating.Weighted, nil
	case "per_starters":
		return rating.StartersAvg, nil
	}
	if spec.PERSlot > 0 {
		if spec.PERSlot > len(rating.Slots) {
			return 0, nil
		}
		return rating.Slots[spec.PERSlot-1], nil
	}
	return 0, fmt.Errorf("unhandled rating statistic %q", spec.Statistic)
}

// filterSet resolves (once per team per call) the player set every rating
// feature in this vector is computed over. An unresolved set is recovered to
// the empty set here; the rating engine reduces it to zero with a logged
// anomaly rather than failing the feature.
func (s *FeatureService) filterSet(ctx context.Context, run *assembly, teamID int) (selection.PlayerFilterSet, error) {
	if filter, ok := run.filters[teamID]; ok {
		return filter, nil
	}

	filter, err := s.resolver.Resolve(ctx, teamID, run.game, run.opts.Overrides[teamID])
	if errors.Is(err, selection.ErrUnresolvedPlayerSet) {
		s.log.Warn("player selection unresolved; rating features degrade to zero",
			zap.Int("team_id", teamID),
			zap.Int("game_id", run.game.GameID),
			zap.Error(err),
		)
		err = nil
	}
	if err != nil {
		return selection.PlayerFilterSet{}, err
	}

	run.filters[teamID] = filter
	return filter, nil
}

// sanitize maps non-finite results to the zero sentinel so nothing
// NaN-or-Inf-valued ever reaches the wire.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
