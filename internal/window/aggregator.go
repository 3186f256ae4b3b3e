// Package window resolves time-scoped team statistics: a window of games
// strictly before a date, reduced either per-game-then-averaged or
// summed-then-derived.
package window

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/feature"
	"github.com/fortuna/augur/internal/history"
	"github.com/fortuna/augur/internal/store/repository"
)

// Config carries the aggregator's tunables. It is passed in explicitly; the
// engine keeps no ambient global state.
type Config struct {
	// DefaultRestDays is reported when a team has no prior game in the
	// window, modelling start-of-season uncertainty.
	DefaultRestDays float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{DefaultRestDays: 7}
}

// Aggregator computes a scalar statistic for one team over one window. It is
// stateless between calls and safe for concurrent use.
type Aggregator struct {
	hist history.Store
	cfg  Config
	log  *zap.Logger
}

// NewAggregator creates a window aggregator over the given history store.
func NewAggregator(hist history.Store, cfg Config, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{hist: hist, cfg: cfg, log: log}
}

// Aggregate evaluates spec's statistic for teamID over spec's window, using
// only games strictly before asOf. teamIsHome is the venue of the queried
// perspective; with spec.SideSplit it restricts the window to games the team
// played at that venue.
func (a *Aggregator) Aggregate(ctx context.Context, teamID, seasonID int, spec feature.Spec, asOf time.Time, teamIsHome bool) (float64, error) {
	logs, err := a.hist.TeamGames(ctx, teamID, seasonID, asOf)
	if err != nil {
		return 0, fmt.Errorf("fetching team games: %w", err)
	}

	if spec.SideSplit {
		filtered := logs[:0:0]
		for _, l := range logs {
			if l.Team.IsHome == teamIsHome {
				filtered = append(filtered, l)
			}
		}
		logs = filtered
	}

	return a.evaluateWindow(spec, spec.Window, logs, teamID, asOf), nil
}

// evaluateWindow resolves one window (recursing for blends) against the
// pre-fetched, newest-first logs.
func (a *Aggregator) evaluateWindow(spec feature.Spec, w feature.Window, logs []*repository.TeamGameLog, teamID int, asOf time.Time) float64 {
	if w.Kind == feature.WindowBlend {
		var value float64
		for _, term := range w.Terms {
			value += term.Weight * a.evaluateWindow(spec, term.Window, logs, teamID, asOf)
		}
		return value
	}

	scoped := scopeLogs(w, logs, asOf)

	if spec.Base() == "rest_days" {
		if len(scoped) == 0 {
			return a.cfg.DefaultRestDays
		}
		return asOf.Sub(scoped[0].Game.GameDate).Hours() / 24
	}

	if len(scoped) == 0 {
		// Empty window is informational, not an error: it recovers to the
		// zero sentinel so batch runs never abort on a thin schedule.
		a.log.Debug("empty window",
			zap.String("feature", spec.Name),
			zap.Int("team_id", teamID),
			zap.Time("as_of", asOf),
		)
		return 0
	}

	value := a.reduce(spec, scoped)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

func (a *Aggregator) reduce(spec feature.Spec, logs []*repository.TeamGameLog) float64 {
	fn := statFuncs[spec.Base()]

	eval := func(l line) float64 {
		if spec.Net {
			return fn(l) - fn(l.flip())
		}
		return fn(l)
	}

	if spec.Reduction == feature.ReduceAvg {
		var sum float64
		for _, l := range logs {
			sum += eval(gameLine(l))
		}
		return sum / float64(len(logs))
	}

	return eval(totalLine(logs))
}

// scopeLogs trims the newest-first logs to the requested window.
func scopeLogs(w feature.Window, logs []*repository.TeamGameLog, asOf time.Time) []*repository.TeamGameLog {
	switch w.Kind {
	case feature.WindowGames:
		if len(logs) > w.N {
			return logs[:w.N]
		}
		return logs
	case feature.WindowDays:
		return sinceDate(logs, asOf.AddDate(0, 0, -w.N))
	case feature.WindowMonths:
		return sinceDate(logs, asOf.AddDate(0, -w.N, 0))
	}
	// WindowSeason: the store already scopes to the season.
	return logs
}

func sinceDate(logs []*repository.TeamGameLog, from time.Time) []*repository.TeamGameLog {
	for i, l := range logs {
		if l.Game.GameDate.Before(from) {
			return logs[:i]
		}
	}
	return logs
}
