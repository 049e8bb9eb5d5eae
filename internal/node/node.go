package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// processor is the kind-specific part of a node. items are the flattened,
// already type-checked inputs.
type processor interface {
	process(ic *invocation.Context, items []value.Value) (value.Value, error)
}

// binding pairs an execution config with the processor built for it.
type binding struct {
	exec ExecutionConfig
	proc processor
}

// sharedState survives execution config swaps.
type sharedState struct {
	mu        sync.Mutex
	completed map[string]bool
	rng       *rand.Rand
}

// Node is a single vertex of a dialogue graph.
type Node struct {
	id       string
	kind     Kind
	sig      Signature
	creation CreationConfig
	resolver registry.Resolver
	state    *sharedState
	bound    atomic.Pointer[binding]
	handle   *resource.Handle
	logger   *slog.Logger
}

// Option customizes Create.
type Option func(*options)

type options struct {
	resources *resource.Registry
	logger    *slog.Logger
	seed      *uint64
}

// WithResources registers the node's handle in r instead of a private registry.
func WithResources(r *resource.Registry) Option {
	return func(o *options) { o.resources = r }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSeed makes random choices reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = &seed }
}

// Create validates cfg, resolves the components it needs and returns a
// ready node. exec may be nil. On failure the error is a *ConfigError and no
// node is returned.
func Create(id string, cfg CreationConfig, exec *ExecutionConfig, resolver registry.Resolver, opts ...Option) (*Node, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.resources == nil {
		o.resources = resource.NewRegistry(o.logger)
	}

	if id == "" {
		return nil, &ConfigError{Field: "id", Reason: "node id is required"}
	}
	if cfg == nil {
		return nil, &ConfigError{NodeID: id, Reason: "creation config is required"}
	}

	seed := rand.Uint64()
	if o.seed != nil {
		seed = *o.seed
	}
	n := &Node{
		id:       id,
		kind:     cfg.Kind(),
		sig:      signatures[cfg.Kind()],
		creation: cfg,
		resolver: resolver,
		state: &sharedState{
			completed: make(map[string]bool),
			rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		},
		logger: o.logger.With("node_id", id, "node_kind", cfg.Kind()),
	}

	b, err := n.bind(exec)
	if err != nil {
		return nil, err
	}
	n.bound.Store(b)
	n.handle = o.resources.Register("node:"+id, n, func(any) {
		n.logger.Debug("Node released.")
	})
	n.logger.Debug("Node created.")
	return n, nil
}

func (n *Node) bind(exec *ExecutionConfig) (*binding, error) {
	env := &buildEnv{id: n.id, resolver: n.resolver, state: n.state}
	if exec != nil {
		env.exec = exec.clone()
	}
	proc, err := n.creation.build(env)
	if err != nil {
		var ce *ConfigError
		if !errors.As(err, &ce) {
			ce = &ConfigError{Err: err}
		}
		ce.NodeID, ce.Kind = n.id, n.kind
		return nil, ce
	}
	return &binding{exec: env.exec, proc: proc}, nil
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// Kind returns the node's kind.
func (n *Node) Kind() Kind { return n.kind }

// Signature returns what the node accepts and produces.
func (n *Node) Signature() Signature { return n.sig }

// CreationConfig returns the config the node was created with.
func (n *Node) CreationConfig() CreationConfig { return n.creation }

// ExecutionConfig returns a copy of the current execution config.
func (n *Node) ExecutionConfig() ExecutionConfig { return n.bound.Load().exec.clone() }

// ReportToClient reports whether results of this node reach observers.
func (n *Node) ReportToClient() bool { return n.bound.Load().exec.Reports() }

// SetExecutionConfig swaps the execution config. Component overrides are
// re-resolved; on error the previous config stays in effect. It must not be
// called while a run is executing the node.
func (n *Node) SetExecutionConfig(exec *ExecutionConfig) error {
	n.handle.MustValue()
	b, err := n.bind(exec)
	if err != nil {
		return err
	}
	n.bound.Store(b)
	return nil
}

// Handle exposes the node's resource handle.
func (n *Node) Handle() *resource.Handle { return n.handle }

// Close releases the node. Calling it again is a no-op.
func (n *Node) Close() { n.handle.Release() }

// Closed reports whether Close has been called.
func (n *Node) Closed() bool { return n.handle.Released() }

// Process runs the node once. It panics if the node was closed.
func (n *Node) Process(ic *invocation.Context, in value.Value) (value.Value, error) {
	n.handle.MustValue()
	b := n.bound.Load()

	start := time.Now()
	out, err := n.process(ic, b, in)

	rec := invocation.Record{
		NodeKind: string(n.kind),
		Started:  start,
		Duration: time.Since(start),
		Outcome:  invocation.OutcomeOK,
		Err:      err,
	}
	switch {
	case errors.Is(err, ErrCancelled):
		rec.Outcome = invocation.OutcomeCancelled
	case err != nil:
		rec.Outcome = invocation.OutcomeFailed
	default:
		rec.Attributes = map[string]any{"output_kind": out.Kind().String()}
	}
	ic.Record(rec)
	return out, err
}

func (n *Node) process(ic *invocation.Context, b *binding, in value.Value) (value.Value, error) {
	if ic.IsCancelled() {
		return nil, fmt.Errorf("node '%s': %w", n.id, ErrCancelled)
	}

	items := value.Flatten(in)
	for _, item := range items {
		if item == nil || !n.sig.Accepts.Contains(item.Kind()) {
			kind := value.KindInvalid
			if item != nil {
				kind = item.Kind()
			}
			return nil, fmt.Errorf("node '%s': %w", n.id, invalidInput(n.sig.Accepts, kind))
		}
	}

	call := ic
	if b.exec.Timeout > 0 {
		ctx, cancel := context.WithTimeout(ic.Context(), b.exec.Timeout)
		defer cancel()
		call = ic.WithContext(ctx)
	}

	out, err := b.proc.process(call, items)
	if ic.IsCancelled() {
		value.Discard(out)
		return nil, fmt.Errorf("node '%s': %w", n.id, ErrCancelled)
	}
	if err != nil {
		value.Discard(out)
		if call != ic && call.IsCancelled() && !errors.Is(err, ErrUpstreamFailure) {
			err = upstream("timeout", err)
		}
		return nil, fmt.Errorf("node '%s': %w", n.id, err)
	}
	if out == nil || !n.sig.Produces.Contains(out.Kind()) {
		value.Discard(out)
		return nil, fmt.Errorf("node '%s': produced unexpected output %v", n.id, out)
	}
	return out, nil
}

// upstream wraps a backend error.
func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamFailure, op, err)
}

// texts collects the string content of Text and TextChunks items.
func texts(items []value.Value) []string {
	var out []string
	for _, item := range items {
		switch v := item.(type) {
		case value.Text:
			out = append(out, v.String())
		case value.TextChunks:
			out = append(out, v.Chunks()...)
		}
	}
	return out
}
