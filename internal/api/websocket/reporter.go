package websocket

import (
	"encoding/json"
	"time"

	"github.com/fortuna/augur/internal/extract"
)

// ProgressReporter forwards extraction lifecycle events to the hub as JSON
// messages.
type ProgressReporter struct {
	hub *Hub
}

// NewProgressReporter creates a reporter broadcasting to the given hub.
func NewProgressReporter(hub *Hub) *ProgressReporter {
	return &ProgressReporter{hub: hub}
}

type progressEvent struct {
	Event     string    `json:"event"`
	GameID    int       `json:"game_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Rows      int       `json:"rows,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *ProgressReporter) emit(ev progressEvent) {
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	r.hub.Broadcast(data)
}

// OnJobStart implements extract.Reporter.
func (r *ProgressReporter) OnJobStart(spec extract.JobSpec, totalGames int) {
	r.emit(progressEvent{Event: "job_start", Total: totalGames})
}

// OnGameComplete implements extract.Reporter.
func (r *ProgressReporter) OnGameComplete(gameID int, current, total int) {
	r.emit(progressEvent{Event: "game_complete", GameID: gameID, Current: current, Total: total})
}

// OnProgress implements extract.Reporter.
func (r *ProgressReporter) OnProgress(message string, current, total int) {
	r.emit(progressEvent{Event: "progress", Message: message, Current: current, Total: total})
}

// OnJobComplete implements extract.Reporter.
func (r *ProgressReporter) OnJobComplete(rows int) {
	r.emit(progressEvent{Event: "job_complete", Rows: rows})
}

// OnJobError implements extract.Reporter.
func (r *ProgressReporter) OnJobError(err error) {
	r.emit(progressEvent{Event: "job_error", Error: err.Error()})
}
