// Package nodestore defines the storage of per-run node execution state.
//
// The compiled graph is immutable and shared by every run of an executor.
// What changes during a run (status, output value, error) lives in a Store
// created fresh for that run and discarded with it, so a finished run can
// still be inspected while the executor starts the next one.
//
// Nodes follow this lifecycle:
//
//	Pending → Running → Completed (with output) OR Failed (with error)
//	Pending → Skipped   (an upstream node failed)
//	Pending → Cancelled (the run was cancelled before dispatch)
//	Running → Cancelled (the node observed cancellation)
package nodestore

import (
	"context"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Status is the execution state of one node within one run.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
	StatusCancelled
)

var statusNames = [...]string{"pending", "running", "completed", "failed", "skipped", "cancelled"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s >= StatusCompleted
}

// Store is the interface for the mutable execution state of one run.
//
// Implementations MUST be safe for concurrent use: workers report results
// while observers and callers query the run.
type Store interface {
	// SetStatus records a lifecycle transition.
	SetStatus(ctx context.Context, id string, status Status) error
	// GetStatus returns StatusPending if no status has been set yet.
	GetStatus(ctx context.Context, id string) (Status, error)
	// SetOutput records the value a node produced.
	SetOutput(ctx context.Context, id string, output value.Value) error
	// GetOutput returns nil if the node has not completed.
	GetOutput(ctx context.Context, id string) (value.Value, error)
	// SetError records why a node failed or was skipped.
	SetError(ctx context.Context, id string, nodeErr error) error
	// GetError returns nil if the node did not fail.
	GetError(ctx context.Context, id string) (error, error)
}
