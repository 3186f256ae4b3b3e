package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service coordinates job execution and status reporting. One job runs at a
// time; completed jobs are kept in a short in-memory history for the API.
type Service struct {
	runner *Runner
	log    *zap.Logger

	historyLimit int

	mu        sync.Mutex
	activeJob *Job
	history   []*Job
	rows      map[string][]*Row

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService constructs a Service.
func NewService(runner *Runner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:       runner,
		log:          log,
		historyLimit: 10,
		rows:         make(map[string][]*Row),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Shutdown cancels any running job and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue starts a new extraction job unless one is already running. The
// reporter, if provided, additionally receives the runner's callbacks (used
// to stream progress over the websocket hub).
func (s *Service) Enqueue(spec JobSpec, reporter Reporter) (*Job, error) {
	if len(spec.Features) == 0 {
		return nil, fmt.Errorf("extraction requires at least one feature name")
	}
	if spec.SeasonID == 0 {
		return nil, fmt.Errorf("extraction requires a season id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeJob != nil && (s.activeJob.Status == JobStatusQueued || s.activeJob.Status == JobStatusRunning) {
		return nil, fmt.Errorf("job %s is already %s", s.activeJob.JobID, s.activeJob.Status)
	}

	job := &Job{
		JobID:     fmt.Sprintf("extract-%d", time.Now().UnixNano()),
		Spec:      spec,
		Status:    JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.activeJob = job

	s.wg.Add(1)
	go s.run(job, reporter)

	return job.Copy(), nil
}

// Status returns the active job and recent history.
func (s *Service) Status() StatusSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := StatusSummary{ActiveJob: s.activeJob.Copy()}
	for _, j := range s.history {
		summary.History = append(summary.History, j.Copy())
	}
	return summary
}

// Rows returns the output of a completed job.
func (s *Service) Rows(jobID string) ([]*Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.rows[jobID]
	return rows, ok
}

func (s *Service) run(job *Job, reporter Reporter) {
	defer s.wg.Done()

	s.update(job, func(j *Job) {
		j.Status = JobStatusRunning
		j.StartedAt = time.Now().UTC()
	})

	tracker := &jobTracker{service: s, job: job, next: reporter}
	rows, err := s.runner.Run(s.ctx, job.Spec, tracker)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.ctx.Err() != nil:
		job.Status = JobStatusCancelled
		job.StatusMessage = "Cancelled during shutdown"
	case err != nil:
		job.Status = JobStatusFailed
		job.LastError = err.Error()
		s.log.Error("extraction job failed", zap.String("job_id", job.JobID), zap.Error(err))
	default:
		job.Status = JobStatusCompleted
		job.StatusMessage = fmt.Sprintf("Extracted %d rows", len(rows))
		s.rows[job.JobID] = rows
	}
	job.CompletedAt = time.Now().UTC()

	s.history = append([]*Job{job}, s.history...)
	if len(s.history) > s.historyLimit {
		s.history = s.history[:s.historyLimit]
	}
	if len(s.rows) > s.historyLimit {
		for id := range s.rows {
			if id != job.JobID {
				delete(s.rows, id)
				break
			}
		}
	}
	s.activeJob = nil
}

func (s *Service) update(job *Job, apply func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(job)
}

// jobTracker mirrors runner callbacks into job progress, then forwards them.
type jobTracker struct {
	service *Service
	job     *Job
	next    Reporter
}

func (t *jobTracker) OnJobStart(spec JobSpec, totalGames int) {
	t.service.update(t.job, func(j *Job) {
		j.ProgressTotal = totalGames
		j.StatusMessage = fmt.Sprintf("Processing %d games", totalGames)
	})
	if t.next != nil {
		t.next.OnJobStart(spec, totalGames)
	}
}

func (t *jobTracker) OnGameComplete(gameID int, current, total int) {
	t.service.update(t.job, func(j *Job) {
		j.ProgressCurrent = current
	})
	if t.next != nil {
		t.next.OnGameComplete(gameID, current, total)
	}
}

func (t *jobTracker) OnProgress(message string, current, total int) {
	t.service.update(t.job, func(j *Job) {
		j.StatusMessage = message
	})
	if t.next != nil {
		t.next.OnProgress(message, current, total)
	}
}

func (t *jobTracker) OnJobComplete(rows int) {
	if t.next != nil {
		t.next.OnJobComplete(rows)
	}
}

func (t *jobTracker) OnJobError(err error) {
	t.service.update(t.job, func(j *Job) {
		j.LastError = err.Error()
	})
	if t.next != nil {
		t.next.OnJobError(err)
	}
}
