package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"github.com/mlwx/fetchpub/internal/config"
)

// Scheduler wraps gocron for the periodic fetch-and-publish trigger.
type Scheduler struct {
	scheduler gocron.Scheduler
	task      func(context.Context)
	job       gocron.Job
}

// NewScheduler creates a scheduler that invokes task on every tick.
func NewScheduler(task func(context.Context)) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, task: task}, nil
}

// Schedule registers the job from the schedule config (interval or cron).
// Singleton mode ensures gocron never overlaps two ticks of the same job.
func (s *Scheduler) Schedule(cfg config.ScheduleConfig) error {
	def, err := jobDefinition(cfg)
	if err != nil {
		return err
	}

	job, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(s.task),
		gocron.WithName("fetch-and-publish"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled job: %w", err)
	}
	s.job = job
	return nil
}

// Reschedule replaces the registered job with a new cadence.
func (s *Scheduler) Reschedule(cfg config.ScheduleConfig) error {
	def, err := jobDefinition(cfg)
	if err != nil {
		return err
	}
	if s.job == nil {
		return s.Schedule(cfg)
	}

	job, err := s.scheduler.Update(
		s.job.ID(),
		def,
		gocron.NewTask(s.task),
		gocron.WithName("fetch-and-publish"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled job: %w", err)
	}
	s.job = job
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func jobDefinition(cfg config.ScheduleConfig) (gocron.JobDefinition, error) {
	if cfg.Cron != "" {
		return gocron.CronJob(cfg.Cron, false), nil
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}
	return gocron.DurationJob(interval), nil
}
