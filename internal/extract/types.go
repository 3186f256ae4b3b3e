package extract

import (
	"time"

	"github.com/fortuna/augur/internal/service"
)

// JobStatus represents the lifecycle state for an extraction job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobSpec describes one training-set extraction: which season and date range
// to sweep and which features to compute per game.
type JobSpec struct {
	SeasonID int       `json:"season_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Features []string  `json:"features"`
	Workers  int       `json:"workers,omitempty"`
}

// Row is one historical game's assembled features plus its outcome labels.
type Row struct {
	GameID     int                    `json:"game_id"`
	GameDate   time.Time              `json:"game_date"`
	HomeTeamID int                    `json:"home_team_id"`
	AwayTeamID int                    `json:"away_team_id"`
	HomeWin    int                    `json:"home_win"`
	Margin     int                    `json:"margin"`
	Features   map[string]float64     `json:"features"`
	Errors     []service.FeatureError `json:"errors,omitempty"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec, totalGames int)
	OnGameComplete(gameID int, current, total int)
	OnProgress(message string, current, total int)
	OnJobComplete(rows int)
	OnJobError(err error)
}

// Job tracks one extraction's progress for status reporting.
type Job struct {
	JobID           string    `json:"job_id"`
	Spec            JobSpec   `json:"spec"`
	Status          JobStatus `json:"status"`
	StatusMessage   string    `json:"status_message,omitempty"`
	ProgressCurrent int       `json:"progress_current"`
	ProgressTotal   int       `json:"progress_total"`
	LastError       string    `json:"last_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	return &cpy
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
