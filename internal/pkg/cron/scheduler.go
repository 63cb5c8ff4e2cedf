package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
)

var (
	ErrJobRunning = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
)

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// JobFunc runs one job invocation. firedAt is the scheduled instant for a
// timer fire and the current time for a manual trigger.
type JobFunc func(ctx context.Context, firedAt time.Time) (any, error)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Run describes one finished job invocation.
type Run struct {
	Job        string    `json:"job"`
	Trigger    string    `json:"trigger"`
	FiredAt    time.Time `json:"firedAt"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunSink receives every finished run.
type RunSink interface {
	RecordRun(ctx context.Context, run Run) error
}

// Job represents a daily job
type Job struct {
	Name string
	At   shift.TimeOfDay
	Fn   JobFunc

	// running serializes timer fires and manual triggers of this job.
	running sync.Mutex
}

type SchedulerOption func(*Scheduler)

func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

func WithSinks(sinks ...RunSink) SchedulerOption {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sinks...) }
}

// Scheduler fires each job once a day at its local wall-clock time.
type Scheduler struct {
	jobs     map[string]*Job
	location *time.Location
	clock    Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	sinks    []RunSink

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler computing fire times in loc.
func NewScheduler(loc *time.Location, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		jobs:     make(map[string]*Job),
		location: loc,
		clock:    realClock{},
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddDailyJob registers fn to run every day at local time at. Jobs added
// after Start are armed immediately.
func (s *Scheduler) AddDailyJob(name string, at shift.TimeOfDay, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{Name: name, At: at, Fn: fn}
	s.jobs[name] = job
	s.logger.Info("Cron job registered", "name", name, "at", at.String(), "location", s.location.String())

	if s.started {
		s.wg.Add(1)
		go s.loop(job)
	}
}

// Start arms every registered job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}

	s.logger.Info("Cron scheduler started", "job_count", len(s.jobs))
}

// Stop disarms all timers and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Cron scheduler stopped")
}

// Jobs lists registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns the next scheduled fire of name after now.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	job, err := s.job(name)
	if err != nil {
		return time.Time{}, err
	}
	return shift.NextOccurrence(s.clock.Now(), job.At, s.location), nil
}

// Trigger runs name now and returns its result. It fails with ErrJobRunning
// instead of queueing behind a run already in flight.
func (s *Scheduler) Trigger(ctx context.Context, name string) (any, error) {
	job, err := s.job(name)
	if err != nil {
		return nil, err
	}
	if !job.running.TryLock() {
		return nil, ErrJobRunning
	}
	defer job.running.Unlock()

	// Stop waits for manual runs too.
	s.wg.Add(1)
	defer s.wg.Done()

	// A started run completes even if the requester goes away.
	return s.execute(context.WithoutCancel(ctx), job, TriggerManual, s.clock.Now())
}

func (s *Scheduler) job(name string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job, nil
}

// loop sleeps until the next local occurrence, runs the job, and re-arms.
func (s *Scheduler) loop(job *Job) {
	defer s.wg.Done()

	for {
		now := s.clock.Now()
		next := shift.NextOccurrence(now, job.At, s.location)
		s.logger.Debug("Cron job armed", "name", job.Name, "next_run", next)

		select {
		case <-s.ctx.Done():
			s.logger.Info("Cron job stopping", "name", job.Name)
			return
		case <-s.clock.After(next.Sub(now)):
		}

		job.running.Lock()
		_, _ = s.execute(context.WithoutCancel(s.ctx), job, TriggerSchedule, next)
		job.running.Unlock()
	}
}

// execute runs the job, logs the outcome and hands the run to every sink.
func (s *Scheduler) execute(ctx context.Context, job *Job, trigger string, firedAt time.Time) (any, error) {
	start := s.clock.Now()
	s.logger.Info("Cron job starting", "name", job.Name, "trigger", trigger, "fired_at", firedAt)

	result, err := job.Fn(ctx, firedAt)

	run := Run{
		Job:        job.Name,
		Trigger:    trigger,
		FiredAt:    firedAt,
		StartedAt:  start,
		FinishedAt: s.clock.Now(),
		Result:     result,
	}
	duration := run.FinishedAt.Sub(start)
	s.metrics.RecordJob(job.Name, duration, err)

	if err != nil {
		run.Error = err.Error()
		s.logger.Error("Cron job failed", "name", job.Name, "error", err, "duration", duration)
	} else {
		s.logger.Info("Cron job completed", "name", job.Name, "duration", duration, "result", result)
	}

	for _, sink := range s.sinks {
		if sinkErr := sink.RecordRun(ctx, run); sinkErr != nil {
			s.logger.Warn("Cron run not recorded", "name", job.Name, "error", sinkErr)
		}
	}

	return result, err
}
