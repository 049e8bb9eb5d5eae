package executor

import (
	"errors"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

var (
	// ErrAlreadyRunning is returned when a run is started or a graph compiled
	// while another run is active.
	ErrAlreadyRunning = errors.New("executor is already running")
	// ErrNotCompiled is returned by ExecuteAsync before a successful Compile.
	ErrNotCompiled = errors.New("no compiled graph")
)

// Status is the executor (and run) state machine.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusFinished
	StatusCancelled
	StatusFailed
)

var statusNames = [...]string{"idle", "running", "finished", "cancelled", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool { return s >= StatusFinished }

// Result is the value produced by a result node.
type Result struct {
	RunID  string
	NodeID string
	Value  value.Value
	At     time.Time
}

// Partial is an intermediate value emitted by a node while it runs.
type Partial struct {
	RunID  string
	NodeID string
	Value  value.Value
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID  string
	Status Status
	// Err joins root-cause node errors and, for cancelled runs, the context
	// error. Skipped nodes are not root causes.
	Err error
	// Results lists reported results in completion order.
	Results []Result
}
