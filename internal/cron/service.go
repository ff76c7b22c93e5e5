package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/parrot/internal/retry"
)

const (
	runLogSize     = 200
	maxOutputBytes = 16 * 1024
)

// Service manages jobs with persistence, scheduling, and execution.
type Service struct {
	storePath string
	store     Store
	onJob     JobHandler
	retryCfg  retry.Config
	tick      time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	runLog  []RunLogEntry
}

// Option configures a Service.
type Option func(*Service)

func WithRetry(cfg retry.Config) Option     { return func(s *Service) { s.retryCfg = cfg } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithTick(d time.Duration) Option       { return func(s *Service) { s.tick = d } }

// NewService creates a service backed by the JSON file at storePath.
// onJob may be nil for callers that only edit jobs.
func NewService(storePath string, onJob JobHandler, opts ...Option) *Service {
	s := &Service{
		storePath: storePath,
		store:     Store{Version: 1},
		onJob:     onJob,
		retryCfg:  retry.DefaultConfig(),
		tick:      time.Second,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads the job file. A missing file leaves the store empty.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUnsafe()
}

// Start loads persisted jobs and begins the scheduling loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := s.loadUnsafe(); err != nil {
		s.logger.Warn("cron: failed to load store, starting fresh", "error", err)
		s.store = Store{Version: 1}
	}

	now := s.nowMS()
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if job.Enabled && job.State.NextRunAtMS == nil {
			job.State.NextRunAtMS = computeNextRun(&job.Schedule, now)
		}
	}
	s.saveUnsafe()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.runLoop(loopCtx, s.done)

	s.logger.Info("cron service started", "jobs", len(s.store.Jobs))
	return nil
}

// Stop halts the scheduling loop and waits for an in-flight job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("cron service stopped")
}

// AddJob validates and registers a new job.
func (s *Service) AddJob(name string, schedule Schedule, payload Payload) (*Job, error) {
	if err := validateSchedule(&schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	if err := validatePayload(&payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMS()
	if name == "" {
		name = payload.Kind + " " + payload.Account
	}
	job := Job{
		ID:             generateID(),
		Name:           name,
		Enabled:        true,
		Schedule:       schedule,
		Payload:        payload,
		CreatedAtMS:    now,
		UpdatedAtMS:    now,
		DeleteAfterRun: schedule.Kind == KindAt,
	}
	job.State.NextRunAtMS = computeNextRun(&job.Schedule, now)

	s.store.Jobs = append(s.store.Jobs, job)
	if err := s.saveUnsafe(); err != nil {
		return nil, err
	}

	s.logger.Info("cron job added", "id", job.ID, "name", name, "kind", schedule.Kind)
	return &job, nil
}

// RemoveJob deletes a job by ID.
func (s *Service) RemoveJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexUnsafe(jobID)
	if i < 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	s.store.Jobs = append(s.store.Jobs[:i], s.store.Jobs[i+1:]...)
	s.logger.Info("cron job removed", "id", jobID)
	return s.saveUnsafe()
}

// EnableJob toggles a job's enabled state.
func (s *Service) EnableJob(jobID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexUnsafe(jobID)
	if i < 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	job := &s.store.Jobs[i]
	job.Enabled = enabled
	job.UpdatedAtMS = s.nowMS()
	if enabled {
		job.State.NextRunAtMS = computeNextRun(&job.Schedule, job.UpdatedAtMS)
	} else {
		job.State.NextRunAtMS = nil
	}
	s.logger.Info("cron job toggled", "id", jobID, "enabled", enabled)
	return s.saveUnsafe()
}

// ListJobs returns all jobs, optionally including disabled ones.
func (s *Service) ListJobs(includeDisabled bool) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Job
	for _, job := range s.store.Jobs {
		if includeDisabled || job.Enabled {
			result = append(result, job)
		}
	}
	return result
}

// GetJob returns a copy of a job by ID.
func (s *Service) GetJob(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexUnsafe(jobID)
	if i < 0 {
		return Job{}, false
	}
	return s.store.Jobs[i], true
}

// RunJob triggers a job now. Without force it only runs a job that is due.
// It reports whether the job ran, its summary, and the handler error.
func (s *Service) RunJob(ctx context.Context, jobID string, force bool) (bool, string, error) {
	s.mu.Lock()
	i := s.indexUnsafe(jobID)
	if i < 0 {
		s.mu.Unlock()
		return false, "", fmt.Errorf("job %s not found", jobID)
	}
	job := s.store.Jobs[i]
	handler := s.onJob
	s.mu.Unlock()

	if handler == nil {
		return false, "", fmt.Errorf("no job handler configured")
	}
	if !force && (job.State.NextRunAtMS == nil || *job.State.NextRunAtMS > s.nowMS()) {
		return false, "not-due", nil
	}

	s.logger.Info("cron manual run", "id", job.ID, "name", job.Name, "force", force)
	result, err := s.execute(ctx, &job)
	return true, result, err
}

// GetRunLog returns recent run log entries for a job (or all jobs if jobID
// is empty), newest first.
func (s *Service) GetRunLog(jobID string, limit int) []RunLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	var result []RunLogEntry
	for i := len(s.runLog) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.runLog[i]
		if jobID == "" || entry.JobID == jobID {
			result = append(result, entry)
		}
	}
	return result
}

// StatusInfo summarises the service.
type StatusInfo struct {
	Running      bool   `json:"running"`
	Jobs         int    `json:"jobs"`
	NextWakeAtMS *int64 `json:"nextWakeAtMs,omitempty"`
}

// Status returns the service status.
func (s *Service) Status() StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatusInfo{
		Running:      s.running,
		Jobs:         len(s.store.Jobs),
		NextWakeAtMS: s.nextWakeUnsafe(),
	}
}

// --- scheduling loop ---

func (s *Service) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkJobs(ctx)
		}
	}
}

func (s *Service) checkJobs(ctx context.Context) {
	s.mu.Lock()

	now := s.nowMS()
	var due []Job
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if job.Enabled && job.State.NextRunAtMS != nil && *job.State.NextRunAtMS <= now {
			// cleared so the next tick does not fire it again
			job.State.NextRunAtMS = nil
			due = append(due, *job)
		}
	}
	if len(due) > 0 {
		s.saveUnsafe()
	}
	handler := s.onJob
	s.mu.Unlock()

	if handler == nil {
		return
	}
	for i := range due {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("cron executing job", "id", due[i].ID, "name", due[i].Name)
		s.execute(ctx, &due[i])
	}
}

// execute runs the handler with retry, then records state and the run log.
func (s *Service) execute(ctx context.Context, job *Job) (string, error) {
	result, attempts, err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) (string, error) {
		return s.onJob(ctx, job)
	})
	if attempts > 1 {
		s.logger.Info("cron job retried", "id", job.ID, "attempts", attempts, "success", err == nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMS()
	if i := s.indexUnsafe(job.ID); i >= 0 {
		st := &s.store.Jobs[i].State
		st.LastRunAtMS = &now
		if err != nil {
			st.LastStatus = "error"
			st.LastError = err.Error()
			s.logger.Error("cron job failed", "id", job.ID, "error", err)
		} else {
			st.LastStatus = "ok"
			st.LastError = ""
			s.logger.Info("cron job completed", "id", job.ID, "result", result)
		}

		if s.store.Jobs[i].DeleteAfterRun {
			s.store.Jobs = append(s.store.Jobs[:i], s.store.Jobs[i+1:]...)
		} else {
			next := computeNextRun(&s.store.Jobs[i].Schedule, now)
			st.NextRunAtMS = next
			if next == nil {
				s.store.Jobs[i].Enabled = false
			}
		}
		s.saveUnsafe()
	}

	entry := RunLogEntry{Ts: now, JobID: job.ID, Attempts: attempts}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	} else {
		entry.Status = "ok"
		entry.Summary = truncateOutput(result)
	}
	s.runLog = append(s.runLog, entry)
	if len(s.runLog) > runLogSize {
		s.runLog = s.runLog[len(s.runLog)-runLogSize:]
	}
	return result, err
}

func (s *Service) indexUnsafe(jobID string) int {
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID == jobID {
			return i
		}
	}
	return -1
}

func (s *Service) nextWakeUnsafe() *int64 {
	var earliest *int64
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMS != nil {
			if earliest == nil || *job.State.NextRunAtMS < *earliest {
				earliest = job.State.NextRunAtMS
			}
		}
	}
	return earliest
}

func (s *Service) nowMS() int64 { return s.now().UnixMilli() }

// --- schedule computation ---

func computeNextRun(schedule *Schedule, now int64) *int64 {
	switch schedule.Kind {
	case KindAt:
		if schedule.AtMS != nil && *schedule.AtMS > now {
			return schedule.AtMS
		}
		return nil

	case KindEvery:
		if schedule.EveryMS == nil || *schedule.EveryMS <= 0 {
			return nil
		}
		next := now + *schedule.EveryMS
		return &next

	case KindCron:
		if schedule.Expr == "" {
			return nil
		}
		nextTime, err := gronx.NextTickAfter(schedule.Expr, time.UnixMilli(now), false)
		if err != nil {
			slog.Error("cron: failed to compute next run", "expr", schedule.Expr, "error", err)
			return nil
		}
		nextMS := nextTime.UnixMilli()
		return &nextMS

	default:
		return nil
	}
}

func validateSchedule(schedule *Schedule) error {
	switch schedule.Kind {
	case KindAt:
		if schedule.AtMS == nil {
			return fmt.Errorf("at schedule requires atMs")
		}
	case KindEvery:
		if schedule.EveryMS == nil || *schedule.EveryMS <= 0 {
			return fmt.Errorf("every schedule requires positive everyMs")
		}
	case KindCron:
		if schedule.Expr == "" {
			return fmt.Errorf("cron schedule requires expr")
		}
		if !gronx.New().IsValid(schedule.Expr) {
			return fmt.Errorf("invalid cron expression: %s", schedule.Expr)
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
	return nil
}

func validatePayload(p *Payload) error {
	switch p.Kind {
	case PayloadCompose:
	case PayloadCollect:
		if p.Publish || p.Webhook != "" {
			return fmt.Errorf("publish and webhook apply to compose jobs only")
		}
	default:
		return fmt.Errorf("unknown payload kind: %q", p.Kind)
	}
	if p.Account == "" {
		return fmt.Errorf("account is required")
	}
	return nil
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "...[truncated]"
}

// --- persistence ---

func (s *Service) loadUnsafe() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var st Store
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse %s: %w", s.storePath, err)
	}
	s.store = st
	return nil
}

func (s *Service) saveUnsafe() error {
	dir := filepath.Dir(s.storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.storePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.logger.Error("cron: save failed", "path", s.storePath, "error", err)
		return err
	}
	if err := os.Rename(tmp, s.storePath); err != nil {
		s.logger.Error("cron: save failed", "path", s.storePath, "error", err)
		return err
	}
	return nil
}
