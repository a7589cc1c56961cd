package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/daemon"
	"github.com/mlwx/fetchpub/internal/journal"
	"github.com/mlwx/fetchpub/internal/pipeline"
	"github.com/mlwx/fetchpub/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"fetchpub.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct{} `cmd:"" help:"Execute one fetch-and-publish run immediately"`

	Daemon struct{} `cmd:"" help:"Run on a schedule with admin HTTP surface"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"20"`
	} `cmd:"" help:"Print recent runs from the run journal"`

	Version struct{} `cmd:"" help:"Print the version"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "run":
		cfg := mustLoadConfig()
		setupLogging(cfg)
		if err := runOnce(cfg); err != nil {
			slog.Error("Run failed", "error", err)
			os.Exit(1)
		}
	case "daemon":
		cfg := mustLoadConfig()
		setupLogging(cfg)
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", CLI.Config)
	case "history":
		cfg := mustLoadConfig()
		setupLogging(cfg)
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version.Version)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	logCfg := cfg.Logging
	if CLI.Verbose {
		logCfg.Level = "debug"
	}
	slog.SetDefault(slog.New(logCfg.NewHandler(os.Stderr)))
}

// runOnce executes a single manually triggered run.
func runOnce(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipe, store, cleanup, err := buildPipeline(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = store.Close() }()

	res := pipe.Run(ctx, pipeline.TriggerManual)
	if res.Outcome == pipeline.OutcomeAborted {
		return res.Err
	}
	return nil
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	pipe, store, cleanup, err := buildPipeline(cfg, registry)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = store.Close() }()

	d, err := daemon.NewWithConfigFile(cfg, CLI.Config, pipe, store, registry)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.Journal.Path == "" {
		return fmt.Errorf("journal is disabled (journal.path not set)")
	}
	store, err := journal.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-8s  %-9s", run.StartedAt.Format(time.RFC3339), run.Trigger, run.Outcome)
		if run.CommitHash != "" {
			line += "  " + run.CommitHash[:8]
		}
		if run.Error != "" {
			line += "  " + run.Error
		}
		fmt.Println(line)
	}
	return nil
}
