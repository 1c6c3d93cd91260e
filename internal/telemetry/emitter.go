package telemetry

import (
	"context"
	"time"
)

// Event is one security or operational event flowing through the telemetry
// pipeline (Kafka producer in the API server, Loki sink in the worker).
type Event struct {
	Type      string            `json:"type"`
	SubjectID string            `json:"subject_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	ContextID string            `json:"context_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	At        time.Time         `json:"at"`
}

// EventEmitter emits telemetry events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
