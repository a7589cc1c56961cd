package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/fetcher"
	"github.com/mlwx/fetchpub/internal/gitops"
	"github.com/mlwx/fetchpub/internal/journal"
	"github.com/mlwx/fetchpub/internal/locking"
	"github.com/mlwx/fetchpub/internal/metrics"
	"github.com/mlwx/fetchpub/internal/notify"
	"github.com/mlwx/fetchpub/internal/pipeline"
)

// buildPipeline wires the pipeline and its collaborators from config. The
// returned cleanup closes the notifier; the journal store is returned
// separately because the daemon also queries it.
func buildPipeline(cfg *config.Config, registry *prometheus.Registry) (*pipeline.Pipeline, journal.Store, func(), error) {
	client, err := gitops.Open(cfg.Repo)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open repository: %w", err)
	}

	runner := fetcher.NewRunner(cfg.Fetch, client.Path())

	var store journal.Store = journal.NoopStore{}
	if cfg.Journal.Path != "" {
		sqlStore, err := journal.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open run journal: %w", err)
		}
		store = sqlStore
	}

	var notifier notify.Publisher = notify.NoopPublisher{}
	if cfg.Notify.Enabled {
		natsPub, err := notify.NewNATSPublisher(cfg.Notify)
		if err != nil {
			// Notifications are best effort even at startup.
			slog.Warn("Notifications disabled", "error", err)
		} else {
			notifier = natsPub
		}
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if registry != nil {
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	opts := []pipeline.Option{
		pipeline.WithJournal(store),
		pipeline.WithNotifier(notifier),
		pipeline.WithRecorder(recorder),
	}
	if cfg.Lock.File != "" {
		opts = append(opts, pipeline.WithLock(locking.New(cfg.Lock.File)))
	}

	pipe := pipeline.New(client, runner, cfg.Fetch.OutputDir, opts...)
	cleanup := func() { notifier.Close() }
	return pipe, store, cleanup, nil
}
