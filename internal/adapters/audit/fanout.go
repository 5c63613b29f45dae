package audit

import (
	"context"
	"errors"
	"log/slog"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/ports"
)

// NamedSink is a sink that reports a label for metrics and logs.
type NamedSink interface {
	ports.EventSink
	Name() string
}

// Fanout delivers every event to each sink in order. A failing sink does not
// stop delivery to the others; the joined error is returned.
type Fanout struct {
	sinks []NamedSink
}

func NewFanout(sinks ...NamedSink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(sink NamedSink) {
	f.sinks = append(f.sinks, sink)
}

func (f *Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, event); err != nil {
			metrics.EventsPublished.WithLabelValues(s.Name(), "error").Inc()
			slog.Error("Failed to publish event", "sink", s.Name(), "kind", event.Kind, "audit_id", event.AuditID, "error", err)
			errs = append(errs, err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(s.Name(), "ok").Inc()
	}
	return errors.Join(errs...)
}

// LogSink writes events to the structured log. Used when no journal directory is configured.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Publish(ctx context.Context, event domain.Event) error {
	slog.Info("Event", "kind", event.Kind, "aggregate_id", event.AggregateID, "audit_id", event.AuditID, "trace_id", event.TraceID)
	return nil
}
