package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/inmemorystore"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Executor owns a compiled graph and runs it, one run at a time.
type Executor struct {
	cfg config

	mu        sync.Mutex
	graph     *graph.Graph
	current   *Run
	last      *Run
	observers []Observer
	subs      map[int]chan Event
	nextSub   int
}

// New creates an idle executor.
func New(opts ...Option) *Executor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{cfg: cfg, subs: make(map[int]chan Event)}
}

// AddObserver registers o for every subsequent event.
func (e *Executor) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Subscribe returns a channel of events and a function that ends the
// subscription. Events are dropped, with a warning, when the buffer is full.
func (e *Executor) Subscribe(buffer int) (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Event, buffer)
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			// Close may already have ended the subscription.
			if _, ok := e.subs[id]; !ok {
				return
			}
			delete(e.subs, id)
			close(ch)
		})
	}
}

// Compile compiles def, binds the result and fires OnGraphCompiled. The
// previously bound graph stays in place if compilation fails.
func (e *Executor) Compile(ctx context.Context, def graph.Definition) (*graph.Graph, error) {
	e.mu.Lock()
	running := e.current != nil
	e.mu.Unlock()
	if running {
		return nil, ErrAlreadyRunning
	}

	g, err := graph.Compile(ctx, def)
	if err != nil {
		ctxlog.FromContext(ctx).Error("Graph compilation failed.", "error", err)
		return nil, err
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.graph = g
	e.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Graph compiled and bound.", "nodes", g.Len())
	e.emit(Event{Type: EventCompiled, Graph: g}, func(o Observer) { o.OnGraphCompiled(g) })
	return g, nil
}

// Graph returns the bound graph, or nil.
func (e *Executor) Graph() *graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// Status reports Running while a run is active, otherwise the terminal
// status of the last run, or Idle if nothing ran yet.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.current != nil:
		return StatusRunning
	case e.last != nil:
		return e.last.Status()
	}
	return StatusIdle
}

// ExecuteAsync starts a run with input delivered to every entry node. It
// returns immediately; use Run.Wait or Run.Done to observe completion.
func (e *Executor) ExecuteAsync(ctx context.Context, input value.Value) (*Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graph == nil {
		return nil, ErrNotCompiled
	}
	if e.current != nil {
		return nil, ErrAlreadyRunning
	}

	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run_id", runID)
	runCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, e.cfg.timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	r := &Run{
		id:     runID,
		exec:   e,
		g:      e.graph,
		cfg:    e.cfg,
		ctx:    runCtx,
		cancel: cancel,
		store:  inmemorystore.New(),
		done:   make(chan struct{}),
		status: StatusRunning,
		logger: logger,
	}
	e.current = r
	logger.Debug("Run starting.", "nodes", r.g.Len(), "workers", e.cfg.workers)
	go r.coordinate(input)
	return r, nil
}

// Execute runs synchronously and returns the outcome.
func (e *Executor) Execute(ctx context.Context, input value.Value) (Outcome, error) {
	r, err := e.ExecuteAsync(ctx, input)
	if err != nil {
		return Outcome{}, err
	}
	<-r.Done()
	return r.Outcome(), nil
}

// Close ends all subscriptions. Running runs are cancelled.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.current != nil {
		e.current.Cancel()
	}
	subs := e.subs
	e.subs = make(map[int]chan Event)
	e.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

func (e *Executor) finishRun(r *Run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == r {
		e.current = nil
	}
	e.last = r
}

// emit delivers ev to subscribers and call to every observer, without
// holding the executor lock during callbacks.
func (e *Executor) emit(ev Event, call func(Observer)) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.cfg.logger.Warn("Dropping executor event for slow subscriber.", "event", ev.Type)
		}
	}
	e.mu.Unlock()

	for _, o := range observers {
		call(o)
	}
}

func (e *Executor) emitPartial(p Partial) {
	e.emit(Event{Type: EventPartial, Partial: &p}, func(o Observer) {
		if po, ok := o.(PartialObserver); ok {
			po.OnPartialResult(p)
		}
	})
}
