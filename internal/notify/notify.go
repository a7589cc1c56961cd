// Package notify publishes run-completed events to NATS. Publishing is best
// effort: a broken broker never fails a run.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mlwx/fetchpub/internal/config"
)

// RunEvent is the payload published after each run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	CommitHash string    `json:"commit,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends run events.
type Publisher interface {
	PublishRun(event RunEvent)
	Close()
}

// NoopPublisher discards events (notifications disabled).
type NoopPublisher struct{}

func (NoopPublisher) PublishRun(RunEvent) {}
func (NoopPublisher) Close()              {}

// NATSPublisher publishes run events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.NotifyConfig) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("fetchpub"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", cfg.NATSURL, err)
	}

	slog.Info("NATS publisher initialized", "url", cfg.NATSURL, "subject", cfg.Subject)
	return &NATSPublisher{conn: conn, subject: cfg.Subject}, nil
}

// PublishRun publishes the event, logging failures instead of returning them.
func (p *NATSPublisher) PublishRun(event RunEvent) {
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal run event", "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("Failed to publish run event", "error", err, "subject", p.subject)
		return
	}
	slog.Debug("Published run event", "run_id", event.RunID, "outcome", event.Outcome)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
