// Package journal persists one row per fetch-and-publish run. The journal is
// observational: the pipeline writes it but never reads it to make decisions.
package journal

import (
	"context"
	"time"
)

// Run is a single recorded run.
type Run struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	CommitHash string    `json:"commit,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall-clock run duration.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store records and queries runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	LastSuccess(ctx context.Context) (*Run, error)
	Close() error
}

// NoopStore discards runs (journal disabled).
type NoopStore struct{}

func (NoopStore) Record(context.Context, Run) error          { return nil }
func (NoopStore) Recent(context.Context, int) ([]Run, error) { return nil, nil }
func (NoopStore) LastSuccess(context.Context) (*Run, error)  { return nil, nil }
func (NoopStore) Close() error                               { return nil }
