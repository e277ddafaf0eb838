// Package notify carries structured sync events to wherever operators want
// them. The orchestrator only emits events; a Sink decides where they go,
// which keeps the engine itself free of alerting side effects.
package notify

import (
	"context"
	"time"

	"github.com/caselink/contactsync/internal/logging"
)

// Event kinds emitted by the sync engine.
const (
	KindRunStarted   = "run_started"
	KindRunCompleted = "run_completed"
	KindRunFailed    = "run_failed"
	KindClientError  = "client_error"
	KindImportDone   = "import_completed"
)

// Event is one structured notification about sync activity.
type Event struct {
	RunID     string         `json:"runId"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Implementations must tolerate concurrent Publish
// calls and must not block the sync run on slow delivery targets.
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogSink writes events to the structured application log. It is the default
// sink when no external target is configured.
type LogSink struct{}

var logger = logging.ForService("notify")

// NewLogSink creates a sink backed by the application log.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, event Event) error {
	logger.Info("sync event",
		"run_id", event.RunID,
		"kind", event.Kind,
		"message", event.Message,
		"fields", event.Fields)
	return nil
}

// Close is a no-op for the log sink.
func (s *LogSink) Close() error { return nil }

// Multi fans one event out to several sinks, logging but not propagating
// individual delivery failures.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. Nil entries are dropped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Publish delivers the event to every sink.
func (m *Multi) Publish(ctx context.Context, event Event) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, event); err != nil {
			logger.Warn("event delivery failed", "kind", event.Kind, "error", err)
		}
	}
	return nil
}

// Close closes every sink, returning the first error encountered.
func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
