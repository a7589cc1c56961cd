package daemon

import (
	"context"
	"time"

	"github.com/mlwx/fetchpub/internal/pipeline"
	"github.com/mlwx/fetchpub/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	InFlight  bool          `json:"run_in_flight"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall status.
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	var checks []HealthCheck
	overall := HealthStatusHealthy

	lastRun := d.checkLastRun()
	checks = append(checks, lastRun)
	if lastRun.Status != HealthStatusHealthy {
		overall = HealthStatusDegraded
	}

	journalCheck := d.checkJournal()
	checks = append(checks, journalCheck)
	if journalCheck.Status == HealthStatusUnhealthy {
		overall = HealthStatusUnhealthy
	} else if journalCheck.Status != HealthStatusHealthy && overall == HealthStatusHealthy {
		overall = HealthStatusDegraded
	}

	return &HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    d.Uptime().String(),
		Version:   version.Version,
		InFlight:  d.InFlight(),
		Checks:    checks,
	}
}

// checkLastRun reports on the most recent run outcome. A daemon that has not
// run yet is healthy; a last run that aborted degrades the status until the
// next trigger recovers it.
func (d *Daemon) checkLastRun() HealthCheck {
	check := HealthCheck{Name: "last_run"}

	res := d.LastResult()
	if res == nil {
		check.Status = HealthStatusHealthy
		check.Message = "No run has executed yet"
		return check
	}

	switch res.Outcome {
	case pipeline.OutcomeSuccess:
		check.Status = HealthStatusHealthy
		check.Message = "Last run pushed commit " + shortHash(res.CommitHash)
	case pipeline.OutcomeNoChange:
		check.Status = HealthStatusHealthy
		check.Message = "Last run produced no changes"
	default:
		check.Status = HealthStatusDegraded
		check.Message = "Last run aborted during " + string(res.FailedStep)
	}
	return check
}

// checkJournal verifies the run journal is reachable.
func (d *Daemon) checkJournal() HealthCheck {
	check := HealthCheck{Name: "journal"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := d.journal.Recent(ctx, 1); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = "Journal query failed: " + err.Error()
		return check
	}
	check.Status = HealthStatusHealthy
	check.Message = "Journal operational"
	return check
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
