package pipeline

import (
	"context"
	"time"
)

// State is a phase of the fetch-and-publish run.
type State string

const (
	StateIdle         State = "idle"
	StateCheckout     State = "checkout"
	StateProvisioning State = "provisioning"
	StateFetching     State = "fetching"
	StatePublishing   State = "publishing"
	StateDone         State = "done"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNoChange Outcome = "no_change"
	OutcomeAborted  Outcome = "aborted"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Repository is the version-control surface the pipeline drives.
type Repository interface {
	SyncMainline(ctx context.Context) error
	StashOutput(outputDir string) (string, error)
	SwitchDataBranch(ctx context.Context) error
	MergeMainline(ctx context.Context) error
	RestoreOutput(stashPath, outputDir string) error
	StageOutput(outputDir string) (bool, error)
	CommitSnapshot() (string, error)
	PushDataBranch(ctx context.Context) error
}

// Fetcher is the process boundary to the external fetch program.
type Fetcher interface {
	InstallDeps(ctx context.Context) error
	Fetch(ctx context.Context) error
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Trigger    Trigger
	Outcome    Outcome
	FailedStep State
	CommitHash string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall-clock run duration.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
