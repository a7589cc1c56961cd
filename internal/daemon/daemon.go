// Package daemon runs the fetch-and-publish job on a schedule, with an admin
// HTTP surface and live configuration reload.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/journal"
	"github.com/mlwx/fetchpub/internal/logfields"
	"github.com/mlwx/fetchpub/internal/pipeline"
)

// ErrRunInFlight is returned when a trigger arrives while a run is executing.
// Triggered runs are rejected rather than queued; the next schedule tick is
// the implicit retry.
var ErrRunInFlight = errors.New("a run is already in flight")

// Daemon ties together the scheduler, the pipeline, the admin HTTP server and
// the config watcher.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string

	pipe     *pipeline.Pipeline
	journal  journal.Store
	registry *prometheus.Registry

	scheduler  *Scheduler
	httpServer *AdminServer
	watcher    *ConfigWatcher

	inFlight   atomic.Bool
	lastResult atomic.Pointer[pipeline.Result]
	startTime  time.Time
}

// New creates a daemon. The registry may be nil when metrics are not exposed.
func New(cfg *config.Config, configPath string, pipe *pipeline.Pipeline, store journal.Store, registry *prometheus.Registry) (*Daemon, error) {
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		pipe:       pipe,
		journal:    store,
		registry:   registry,
	}

	scheduler, err := NewScheduler(d.runScheduled)
	if err != nil {
		return nil, err
	}
	d.scheduler = scheduler

	if cfg.Admin.Enabled {
		d.httpServer = NewAdminServer(cfg.Admin.Addr, d)
	}

	return d, nil
}

// NewWithConfigFile additionally watches the config file for changes.
func NewWithConfigFile(cfg *config.Config, configPath string, pipe *pipeline.Pipeline, store journal.Store, registry *prometheus.Registry) (*Daemon, error) {
	d, err := New(cfg, configPath, pipe, store, registry)
	if err != nil {
		return nil, err
	}
	watcher, err := NewConfigWatcher(configPath, d)
	if err != nil {
		return nil, err
	}
	d.watcher = watcher
	return d, nil
}

// Start runs the daemon until the context is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.startTime = time.Now()

	if err := d.scheduler.Schedule(d.GetConfig().Schedule); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	d.scheduler.Start(ctx)

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if d.httpServer != nil {
		g.Go(func() error { return d.httpServer.Serve(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	slog.Info("Daemon started", slog.String("schedule", d.describeSchedule()))
	return g.Wait()
}

// Stop shuts the daemon down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	var errs []error
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TriggerRun executes one run unless one is already in flight.
func (d *Daemon) TriggerRun(ctx context.Context, trigger pipeline.Trigger) (*pipeline.Result, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRunInFlight
	}
	defer d.inFlight.Store(false)

	res := d.pipe.Run(ctx, trigger)
	d.lastResult.Store(res)
	return res, nil
}

// TriggerRunAsync admits a run synchronously and executes it detached, so the
// caller knows at return time whether the run was accepted or rejected.
func (d *Daemon) TriggerRunAsync(trigger pipeline.Trigger) error {
	if !d.inFlight.CompareAndSwap(false, true) {
		return ErrRunInFlight
	}
	go func() {
		defer d.inFlight.Store(false)
		res := d.pipe.Run(context.Background(), trigger)
		d.lastResult.Store(res)
	}()
	return nil
}

// runScheduled is the gocron task body.
func (d *Daemon) runScheduled(ctx context.Context) {
	if _, err := d.TriggerRun(ctx, pipeline.TriggerSchedule); err != nil {
		slog.Warn("Scheduled run skipped", logfields.Error(err))
	}
}

// GetConfig returns the current configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig applies a changed configuration. Only the schedule and logging
// settings are reloadable; repository and fetch changes need a restart.
func (d *Daemon) ReloadConfig(_ context.Context, newCfg *config.Config) error {
	current := d.GetConfig()

	if newCfg.Repo != current.Repo {
		slog.Warn("Repository configuration changed - restart required for it to take effect")
	}
	if newCfg.Admin != current.Admin {
		slog.Warn("Admin HTTP configuration changed - restart required for it to take effect")
	}

	if newCfg.Schedule != current.Schedule {
		if err := d.scheduler.Reschedule(newCfg.Schedule); err != nil {
			return fmt.Errorf("reschedule: %w", err)
		}
		slog.Info("Schedule updated", slog.String("every", newCfg.Schedule.Every), slog.String("cron", newCfg.Schedule.Cron))
	}

	d.mu.Lock()
	d.cfg = newCfg
	d.mu.Unlock()
	return nil
}

// LastResult returns the most recent run result, or nil before the first run.
func (d *Daemon) LastResult() *pipeline.Result {
	return d.lastResult.Load()
}

// InFlight reports whether a run is currently executing.
func (d *Daemon) InFlight() bool {
	return d.inFlight.Load()
}

// Uptime is the time since Start.
func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}

func (d *Daemon) describeSchedule() string {
	s := d.GetConfig().Schedule
	if s.Cron != "" {
		return "cron " + s.Cron
	}
	return "every " + s.Every
}
