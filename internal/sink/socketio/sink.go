// Package socketio forwards executor events and node telemetry to a
// socket.io server.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/executor"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted to the server.
const (
	EventCompiled  = "graph_compiled"
	EventResult    = "graph_result"
	EventPartial   = "graph_partial"
	EventFinished  = "graph_finished"
	EventTelemetry = "node_telemetry"
)

const defaultConnectTimeout = 15 * time.Second

// Config selects the server.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Emitter sends one event.
type Emitter interface {
	Emit(event string, payload map[string]any)
	Close()
}

// Sink implements executor.Observer, executor.PartialObserver and
// invocation.Telemetry.
type Sink struct {
	em Emitter
}

var (
	_ executor.Observer        = (*Sink)(nil)
	_ executor.PartialObserver = (*Sink)(nil)
	_ invocation.Telemetry     = (*Sink)(nil)
)

// New wraps em.
func New(em Emitter) *Sink { return &Sink{em: em} }

// Dial connects to cfg.URL over websocket and waits for the connect event.
func Dial(ctx context.Context, cfg Config) (*Sink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", cfg.URL)
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := socket.DefaultOptions()
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket(cfg.Namespace, opts)
	io.Once(types.EventName("connect"), func(...any) {
		notifyConnect(connected, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		notifyConnect(connected, err)
	})

	logger.Debug("Connecting event sink.")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		logger.Info("Event sink connected.", "sid", io.Id())
		return New(&socketEmitter{io: io}), nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

// notifyConnect records the first connection attempt's result. Later
// connect or connect_error events, e.g. from reconnects, are dropped so the
// client's event goroutine never blocks.
func notifyConnect(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// OnGraphCompiled implements executor.Observer.
func (s *Sink) OnGraphCompiled(g *graph.Graph) {
	nodes := make([]map[string]any, 0, g.Len())
	for _, n := range g.Nodes() {
		nodes = append(nodes, map[string]any{"id": n.ID(), "kind": string(n.Kind())})
	}
	edges := make([]map[string]any, 0)
	for _, e := range g.Edges() {
		edges = append(edges, map[string]any{"from": e.From, "to": e.To, "slot": e.Slot})
	}
	s.em.Emit(EventCompiled, map[string]any{
		"nodes":   nodes,
		"edges":   edges,
		"entries": g.Entries(),
		"results": g.Results(),
	})
}

// OnGraphResult implements executor.Observer.
func (s *Sink) OnGraphResult(r executor.Result) {
	s.em.Emit(EventResult, map[string]any{
		"run_id":  r.RunID,
		"node_id": r.NodeID,
		"at":      r.At.UTC().Format(time.RFC3339Nano),
		"value":   value.Export(r.Value),
	})
}

// OnPartialResult implements executor.PartialObserver.
func (s *Sink) OnPartialResult(p executor.Partial) {
	s.em.Emit(EventPartial, map[string]any{
		"run_id":  p.RunID,
		"node_id": p.NodeID,
		"value":   value.Export(p.Value),
	})
}

// OnGraphFinished implements executor.Observer.
func (s *Sink) OnGraphFinished(o executor.Outcome) {
	payload := map[string]any{
		"run_id":  o.RunID,
		"status":  o.Status.String(),
		"results": len(o.Results),
	}
	if o.Err != nil {
		payload["error"] = o.Err.Error()
	}
	s.em.Emit(EventFinished, payload)
}

// Record implements invocation.Telemetry.
func (s *Sink) Record(_ context.Context, rec invocation.Record) {
	payload := map[string]any{
		"execution_id": rec.ExecutionID,
		"run_id":       rec.RunID,
		"node_id":      rec.NodeID,
		"kind":         rec.NodeKind,
		"duration_ms":  rec.Duration.Milliseconds(),
		"outcome":      string(rec.Outcome),
	}
	if rec.Err != nil {
		payload["error"] = rec.Err.Error()
	}
	if len(rec.Attributes) > 0 {
		payload["attributes"] = rec.Attributes
	}
	s.em.Emit(EventTelemetry, payload)
}

// Close disconnects the underlying socket.
func (s *Sink) Close() error {
	s.em.Close()
	return nil
}

type socketEmitter struct {
	io *socket.Socket
}

func (e *socketEmitter) Emit(event string, payload map[string]any) {
	e.io.Emit(event, payload)
}

func (e *socketEmitter) Close() {
	e.io.Disconnect()
}
