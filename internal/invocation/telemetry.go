package invocation

import (
	"context"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
)

// Outcome labels how a node call ended.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Record is one telemetry entry for a node call.
type Record struct {
	ExecutionID string
	RunID       string
	NodeID      string
	NodeKind    string
	Started     time.Time
	Duration    time.Duration
	Outcome     Outcome
	Err         error
	Attributes  map[string]any
}

// Telemetry receives records. Implementations must be safe for concurrent use.
type Telemetry interface {
	Record(ctx context.Context, rec Record)
}

// TelemetryFunc adapts a function to Telemetry.
type TelemetryFunc func(ctx context.Context, rec Record)

// Record calls f.
func (f TelemetryFunc) Record(ctx context.Context, rec Record) { f(ctx, rec) }

// LogTelemetry writes records to the context logger at debug level.
type LogTelemetry struct{}

// Record implements Telemetry.
func (LogTelemetry) Record(ctx context.Context, rec Record) {
	args := []any{
		"execution_id", rec.ExecutionID,
		"node_kind", rec.NodeKind,
		"duration", rec.Duration,
		"outcome", rec.Outcome,
	}
	if rec.Err != nil {
		args = append(args, "error", rec.Err)
	}
	for k, v := range rec.Attributes {
		args = append(args, k, v)
	}
	ctxlog.FromContext(ctx).Debug("Node telemetry.", args...)
}

// Fanout sends each record to every sink.
type Fanout []Telemetry

// Record implements Telemetry.
func (f Fanout) Record(ctx context.Context, rec Record) {
	for _, t := range f {
		t.Record(ctx, rec)
	}
}
