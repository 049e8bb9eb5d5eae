// Package invocation carries the per-call state a node needs: cancellation,
// the execution ID used to correlate telemetry, and the hooks for telemetry
// records and partial results.
package invocation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Context is created for exactly one node call and discarded afterwards.
type Context struct {
	ctx         context.Context
	executionID string
	runID       string
	nodeID      string
	telemetry   Telemetry
	partial     func(value.Value)
}

// Option customizes a Context.
type Option func(*Context)

// WithExecutionID overrides the generated execution ID.
func WithExecutionID(id string) Option {
	return func(c *Context) { c.executionID = id }
}

// WithTelemetry sets the telemetry sink. The default logs through slog.
func WithTelemetry(t Telemetry) Option {
	return func(c *Context) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithPartialSink receives values passed to EmitPartial.
func WithPartialSink(fn func(value.Value)) Option {
	return func(c *Context) { c.partial = fn }
}

// New creates a context for one invocation of nodeID within runID.
func New(ctx context.Context, runID, nodeID string, opts ...Option) *Context {
	c := &Context{
		runID:       runID,
		nodeID:      nodeID,
		executionID: uuid.NewString(),
		telemetry:   LogTelemetry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, _ = ctxlog.With(ctx, "run_id", runID, "node_id", nodeID, "execution_id", c.executionID)
	return c
}

// Background returns a context with no run, useful for calling a node directly.
func Background(nodeID string) *Context {
	return New(context.Background(), "", nodeID)
}

// Context returns the underlying context.Context for passing to backends.
func (c *Context) Context() context.Context { return c.ctx }

// ExecutionID is unique per node call.
func (c *Context) ExecutionID() string { return c.executionID }

// RunID identifies the graph run this call belongs to.
func (c *Context) RunID() string { return c.runID }

// NodeID is the node being invoked.
func (c *Context) NodeID() string { return c.nodeID }

// IsCancelled reports whether the shared cancellation flag is set.
func (c *Context) IsCancelled() bool { return c.ctx.Err() != nil }

// Done mirrors context.Context.Done.
func (c *Context) Done() <-chan struct{} { return c.ctx.Done() }

// Err mirrors context.Context.Err.
func (c *Context) Err() error { return c.ctx.Err() }

// Logger returns a logger tagged with the run, node and execution IDs.
func (c *Context) Logger() *slog.Logger { return ctxlog.FromContext(c.ctx) }

// Record stamps rec with this invocation's IDs and hands it to the sink.
func (c *Context) Record(rec Record) {
	rec.ExecutionID = c.executionID
	rec.RunID = c.runID
	rec.NodeID = c.nodeID
	c.telemetry.Record(c.ctx, rec)
}

// EmitPartial forwards an intermediate value (e.g. a streamed LLM delta).
// It is dropped when no partial sink is attached.
func (c *Context) EmitPartial(v value.Value) {
	if c.partial != nil && v != nil {
		c.partial(v)
	}
}

// WithContext returns a shallow copy bound to ctx, keeping the IDs. Nodes use
// it to apply per-call timeouts.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.ctx = ctx
	return &cp
}
