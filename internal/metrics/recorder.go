package metrics

import "time"

// OutcomeLabel enumerates terminal run outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeNoChange OutcomeLabel = "no_change"
	OutcomeAborted  OutcomeLabel = "aborted"
)

// Recorder defines observability hooks for run and step metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil
// receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	ObserveStepDuration(step string, d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
	IncStepFailure(step string)
	IncCommitsPushed()
	SetLastSuccess(t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration)          {}
func (NoopRecorder) ObserveStepDuration(string, time.Duration) {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                {}
func (NoopRecorder) IncStepFailure(string)                     {}
func (NoopRecorder) IncCommitsPushed()                         {}
func (NoopRecorder) SetLastSuccess(time.Time)                  {}
