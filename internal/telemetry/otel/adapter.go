package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"ciam-core/backend/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("ciam.telemetry")}
}

// NewEventEmitterWithLogger returns an emitter over the given log sink. Test hook.
func NewEventEmitterWithLogger(logger logSink) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

// logSink is the minimal surface of otellog.Logger the emitter needs.
type logSink interface {
	Emit(ctx context.Context, rec otellog.Record)
}

type otelEmitter struct {
	logger logSink
}

// Emit converts the security event to an OTel log record and emits it. Best-effort; errors are logged.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.At.IsZero() {
		rec.SetTimestamp(event.At)
	}
	rec.SetBody(otellog.StringValue(event.Type))
	if event.SubjectID != "" {
		rec.AddAttributes(otellog.String("subject_id", event.SubjectID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.ContextID != "" {
		rec.AddAttributes(otellog.String("context_id", event.ContextID))
	}
	if event.ClientIP != "" {
		rec.AddAttributes(otellog.String("client_ip", event.ClientIP))
	}
	if event.Type != "" {
		rec.AddAttributes(otellog.String("event_type", event.Type))
	}
	for k, v := range event.Fields {
		rec.AddAttributes(otellog.String(k, v))
	}
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	e.logger.Emit(ctx, rec)
	return nil
}
