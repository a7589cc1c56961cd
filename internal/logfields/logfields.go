package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyTrigger    = "trigger"
	KeyStep       = "step"
	KeyState      = "state"
	KeyOutcome    = "outcome"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Commit(hash string) slog.Attr    { return slog.String(KeyCommit, hash) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
