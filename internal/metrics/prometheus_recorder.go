package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	runDuration   prom.Histogram
	stepDuration  *prom.HistogramVec
	runOutcomes   *prom.CounterVec
	stepFailures  *prom.CounterVec
	commitsPushed prom.Counter
	lastSuccess   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fetchpub",
			Name:      "run_duration_seconds",
			Help:      "Total fetch-and-publish run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "fetchpub",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual run steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fetchpub",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by terminal state",
		}, []string{"outcome"})
		pr.stepFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fetchpub",
			Name:      "step_failures_total",
			Help:      "Step failure counts by step name",
		}, []string{"step"})
		pr.commitsPushed = prom.NewCounter(prom.CounterOpts{
			Namespace: "fetchpub",
			Name:      "commits_pushed_total",
			Help:      "Snapshot commits pushed to the data branch",
		})
		pr.lastSuccess = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fetchpub",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		})
		reg.MustRegister(pr.runDuration, pr.stepDuration, pr.runOutcomes, pr.stepFailures, pr.commitsPushed, pr.lastSuccess)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncStepFailure(step string) {
	if p == nil || p.stepFailures == nil {
		return
	}
	p.stepFailures.WithLabelValues(step).Inc()
}

func (p *PrometheusRecorder) IncCommitsPushed() {
	if p == nil || p.commitsPushed == nil {
		return
	}
	p.commitsPushed.Inc()
}

func (p *PrometheusRecorder) SetLastSuccess(t time.Time) {
	if p == nil || p.lastSuccess == nil {
		return
	}
	p.lastSuccess.Set(float64(t.Unix()))
}
