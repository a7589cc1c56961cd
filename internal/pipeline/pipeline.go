// Package pipeline orchestrates one fetch-and-publish run: checkout mainline,
// provision dependencies, execute the fetch program, then merge, commit and
// push the data branch. Runs never retry internally; recovery is the next
// scheduled trigger.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mlwx/fetchpub/internal/journal"
	"github.com/mlwx/fetchpub/internal/locking"
	"github.com/mlwx/fetchpub/internal/logfields"
	"github.com/mlwx/fetchpub/internal/metrics"
	"github.com/mlwx/fetchpub/internal/notify"
)

// Pipeline runs the fetch-and-publish job. All collaborators are injected;
// journal, notifier and recorder are observational and never fail a run.
type Pipeline struct {
	repo      Repository
	fetcher   Fetcher
	outputDir string

	lock     *locking.RunLock // nil disables cross-process locking
	journal  journal.Store
	notifier notify.Publisher
	recorder metrics.Recorder
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithLock enables the cross-process run lock.
func WithLock(l *locking.RunLock) Option { return func(p *Pipeline) { p.lock = l } }

// WithJournal records finished runs.
func WithJournal(s journal.Store) Option { return func(p *Pipeline) { p.journal = s } }

// WithNotifier publishes run events.
func WithNotifier(n notify.Publisher) Option { return func(p *Pipeline) { p.notifier = n } }

// WithRecorder wires the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// New creates a pipeline over the given repository and fetcher.
func New(repo Repository, fetcher Fetcher, outputDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		repo:      repo,
		fetcher:   fetcher,
		outputDir: outputDir,
		journal:   journal.NoopStore{},
		notifier:  notify.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one complete run. The returned Result always carries a terminal
// outcome; Result.Err is non-nil exactly when the outcome is OutcomeAborted.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger) *Result {
	res := &Result{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}

	slog.Info("Run started", logfields.RunID(res.RunID), logfields.Trigger(string(trigger)))

	if p.lock != nil {
		if err := p.lock.Acquire(); err != nil {
			p.abort(res, StateIdle, err)
			return p.finish(res)
		}
		defer func() {
			if err := p.lock.Release(); err != nil {
				slog.Warn("Failed to release run lock", logfields.Error(err))
			}
		}()
	}

	if err := p.step(ctx, res, StateCheckout, p.repo.SyncMainline); err != nil {
		return p.finish(res)
	}
	if err := p.step(ctx, res, StateProvisioning, p.fetcher.InstallDeps); err != nil {
		return p.finish(res)
	}
	if err := p.step(ctx, res, StateFetching, p.fetcher.Fetch); err != nil {
		return p.finish(res)
	}
	if err := p.step(ctx, res, StatePublishing, func(ctx context.Context) error {
		return p.publish(ctx, res)
	}); err != nil {
		return p.finish(res)
	}

	if res.Outcome == "" {
		res.Outcome = OutcomeSuccess
	}
	return p.finish(res)
}

// publish switches to the data branch, folds mainline in, stages exactly the
// output directory and pushes. A byte-identical snapshot ends the run as
// OutcomeNoChange without creating a commit.
//
// The fetch ran while mainline was checked out, leaving the output untracked
// in the worktree. The data branch tracks those paths, so checking it out
// would rewrite them to the previous snapshot. The output is stashed outside
// the worktree across the switch and merge, then restored on top.
func (p *Pipeline) publish(ctx context.Context, res *Result) error {
	stash, err := p.repo.StashOutput(p.outputDir)
	if err != nil {
		return err
	}
	restored := false
	defer func() {
		// Keep the latest fetch output in the worktree even when the run
		// aborts mid-publish.
		if restored {
			return
		}
		if rerr := p.repo.RestoreOutput(stash, p.outputDir); rerr != nil {
			slog.Warn("Failed to restore fetch output", logfields.RunID(res.RunID), logfields.Error(rerr))
		}
	}()

	if err := p.repo.SwitchDataBranch(ctx); err != nil {
		return err
	}
	if err := p.repo.MergeMainline(ctx); err != nil {
		return err
	}
	if err := p.repo.RestoreOutput(stash, p.outputDir); err != nil {
		return err
	}
	restored = true

	changed, err := p.repo.StageOutput(p.outputDir)
	if err != nil {
		return err
	}

	if changed {
		hash, err := p.repo.CommitSnapshot()
		if err != nil {
			return err
		}
		res.CommitHash = hash
	} else {
		slog.Info("Fetch output unchanged, no snapshot commit", logfields.RunID(res.RunID))
		res.Outcome = OutcomeNoChange
	}

	// Push regardless: the merge may have advanced the branch even when the
	// snapshot itself is unchanged. An up-to-date remote is a no-op.
	return p.repo.PushDataBranch(ctx)
}

func (p *Pipeline) step(ctx context.Context, res *Result, state State, fn func(context.Context) error) error {
	start := time.Now()
	slog.Debug("Step started", logfields.RunID(res.RunID), logfields.Step(string(state)))

	err := fn(ctx)
	p.recorder.ObserveStepDuration(string(state), time.Since(start))
	if err != nil {
		p.abort(res, state, err)
		return err
	}
	return nil
}

func (p *Pipeline) abort(res *Result, state State, err error) {
	res.Outcome = OutcomeAborted
	res.FailedStep = state
	res.Err = err
	p.recorder.IncStepFailure(string(state))
	slog.Error("Run aborted",
		logfields.RunID(res.RunID),
		logfields.Step(string(state)),
		logfields.Error(err))
}

func (p *Pipeline) finish(res *Result) *Result {
	res.FinishedAt = time.Now()

	p.recorder.ObserveRunDuration(res.Duration())
	p.recorder.IncRunOutcome(metrics.OutcomeLabel(res.Outcome))
	if res.Outcome == OutcomeSuccess {
		p.recorder.IncCommitsPushed()
		p.recorder.SetLastSuccess(res.FinishedAt)
	}

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}

	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.journal.Record(recordCtx, journal.Run{
		ID:         res.RunID,
		Trigger:    string(res.Trigger),
		Outcome:    string(res.Outcome),
		Error:      errMsg,
		CommitHash: res.CommitHash,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}); err != nil {
		slog.Warn("Failed to journal run", logfields.RunID(res.RunID), logfields.Error(err))
	}

	p.notifier.PublishRun(notify.RunEvent{
		RunID:      res.RunID,
		Trigger:    string(res.Trigger),
		Outcome:    string(res.Outcome),
		Error:      errMsg,
		CommitHash: res.CommitHash,
		DurationMS: res.Duration().Milliseconds(),
	})

	slog.Info("Run finished",
		logfields.RunID(res.RunID),
		logfields.Outcome(string(res.Outcome)),
		logfields.DurationMS(float64(res.Duration().Milliseconds())))
	return res
}
