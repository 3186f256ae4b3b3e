// Package extract sweeps historical games and assembles one feature row per
// game for model training. Games are independent of each other, so the sweep
// fans out over a bounded worker pool; per-game failures are recorded on the
// row and never abort the batch.
package extract

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/history"
	"github.com/fortuna/augur/internal/selection"
	"github.com/fortuna/augur/internal/service"
	"github.com/fortuna/augur/internal/store"
)

const defaultWorkers = 4

// Runner executes extraction specs against the feature service.
type Runner struct {
	hist     history.Store
	features *service.FeatureService
	log      *zap.Logger
}

// NewRunner constructs a runner.
func NewRunner(hist history.Store, features *service.FeatureService, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{hist: hist, features: features, log: log}
}

// Run executes the job spec and returns one row per completed game, in
// chronological order regardless of worker scheduling. Progress is reported
// via the Reporter if provided.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) ([]*Row, error) {
	// A zero bound means the range is open on that end.
	if spec.End.IsZero() {
		spec.End = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	games, err := r.hist.GamesBySeason(ctx, spec.SeasonID, spec.Start, spec.End)
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return nil, fmt.Errorf("listing season games: %w", err)
	}

	if reporter != nil {
		reporter.OnJobStart(spec, len(games))
	}
	if len(games) == 0 {
		if reporter != nil {
			reporter.OnProgress("No games in range", 0, 0)
			reporter.OnJobComplete(0)
		}
		return nil, nil
	}

	workers := spec.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(games) {
		workers = len(games)
	}

	// Rows are written by index so output order matches game order even
	// though workers complete out of order.
	rows := make([]*Row, len(games))
	indexes := make(chan int)
	var done int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				if ctx.Err() != nil {
					return
				}

				game := games[idx]
				rows[idx] = r.extractGame(ctx, spec, game)

				current := int(atomic.AddInt64(&done, 1))
				if reporter != nil {
					reporter.OnGameComplete(game.GameID, current, len(games))
				}
			}
		}()
	}

	for idx := range games {
		if ctx.Err() != nil {
			break
		}
		indexes <- idx
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return nil, err
	}

	if reporter != nil {
		reporter.OnJobComplete(len(rows))
	}
	return rows, nil
}

// extractGame assembles one game's features in training mode: the game is
// historical, so player selection comes from the actual box score.
func (r *Runner) extractGame(ctx context.Context, spec JobSpec, game *store.Game) *Row {
	gameCtx := selection.GameContext{
		GameID:     game.GameID,
		SeasonID:   game.SeasonID,
		HomeTeamID: game.HomeTeamID,
		AwayTeamID: game.AwayTeamID,
		Date:       game.GameDate,
	}

	row := &Row{
		GameID:     game.GameID,
		GameDate:   game.GameDate,
		HomeTeamID: game.HomeTeamID,
		AwayTeamID: game.AwayTeamID,
	}
	if game.HomeScore.Valid && game.AwayScore.Valid {
		row.Margin = int(game.HomeScore.Int32) - int(game.AwayScore.Int32)
		if row.Margin > 0 {
			row.HomeWin = 1
		}
	}

	vector, err := r.features.Assemble(ctx, spec.Features, gameCtx, service.AssembleOptions{})
	if err != nil {
		// Non-strict assembly only fails on infrastructure errors; keep the
		// labeled row so the batch stays complete, and record the failure.
		r.log.Warn("feature assembly failed for game",
			zap.Int("game_id", game.GameID),
			zap.Error(err),
		)
		row.Errors = []service.FeatureError{{Name: "*", Error: err.Error()}}
		return row
	}

	row.Features = vector.Features
	row.Errors = vector.Errors
	return row
}
