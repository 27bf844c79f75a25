// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
	// Timeout bounds a single run. Zero means one minute.
	Timeout time.Duration
}

// Scheduler fires jobs on cron schedules. A job whose previous run is still
// going is skipped rather than stacked.
type Scheduler struct {
	mu   sync.Mutex
	ctx  context.Context
	jobs []Job
	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether schedule is an expression the scheduler accepts.
func Validate(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	return nil
}

// New creates a Scheduler for the given jobs. Jobs run with ctx.
func New(ctx context.Context, jobs ...Job) *Scheduler {
	return &Scheduler{
		ctx:  ctx,
		jobs: jobs,
		cron: newCron(),
	}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
}

// Start registers every job with a schedule and starts the cron ticker.
// Jobs with an invalid schedule are logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Schedule == "" || job.Run == nil {
			continue
		}
		job := job
		_, err := s.cron.AddFunc(job.Schedule, func() { s.fire(job) })
		if err != nil {
			slog.Error("invalid cron schedule", "job", job.Name, "schedule", job.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled job", "job", job.Name, "schedule", job.Schedule)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) fire(job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.Error("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	slog.Debug("scheduled job done", "job", job.Name, "duration", time.Since(start))
}

// Reload stops the existing cron, swaps in jobs and starts again.
func (s *Scheduler) Reload(jobs ...Job) error {
	s.mu.Lock()
	<-s.cron.Stop().Done()
	s.cron = newCron()
	s.jobs = jobs
	s.mu.Unlock()
	return s.Start()
}

// Stop stops the cron ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	<-c.Stop().Done()
}
