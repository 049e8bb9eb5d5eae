package executor

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/inmemorystore"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/nodestore"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Run is one execution of a compiled graph.
type Run struct {
	id     string
	exec   *Executor
	g      *graph.Graph
	cfg    config
	ctx    context.Context
	cancel context.CancelFunc
	store  *inmemorystore.Store
	logger *slog.Logger
	done   chan struct{}

	mu       sync.Mutex
	status   Status
	outcome  Outcome
	dispatch []string
	results  []Result
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Done is closed once the run reaches a terminal status and
// OnGraphFinished has been delivered.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel requests cancellation. Nodes not yet dispatched never start and
// running nodes observe it through their invocation context.
func (r *Run) Cancel() { r.cancel() }

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Status returns the current run status.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Outcome is only meaningful after Done is closed.
func (r *Run) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.outcome
	o.Results = slices.Clone(o.Results)
	return o
}

// DispatchOrder lists node IDs in the order they were handed to workers.
func (r *Run) DispatchOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.dispatch)
}

// Results lists reported results so far, in completion order.
func (r *Run) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

// NodeStatus returns the lifecycle status of one node in this run.
func (r *Run) NodeStatus(id string) nodestore.Status {
	s, _ := r.store.GetStatus(context.Background(), id)
	return s
}

// NodeError returns why a node failed or was skipped.
func (r *Run) NodeError(id string) error {
	err, _ := r.store.GetError(context.Background(), id)
	return err
}

// Output returns the value a completed node produced, or nil.
func (r *Run) Output(id string) value.Value {
	v, _ := r.store.GetOutput(context.Background(), id)
	return v
}

type job struct {
	id    string
	input value.Value
	refs  []*resource.Ref
}

type report struct {
	id  string
	out value.Value
	err error
}

// delivery is one outbound edge resolved to the consumer's input slot.
type delivery struct {
	to  string
	idx int
}

type pending struct {
	remaining int
	slots     []value.Value
	refs      []*resource.Ref
}

// readyQueue orders runnable nodes by topological position, which makes
// dispatch deterministic for a given graph.
type readyQueue struct {
	g     *graph.Graph
	items []*job
}

func (q *readyQueue) Len() int { return len(q.items) }
func (q *readyQueue) Less(i, j int) bool {
	return q.g.TopoIndex(q.items[i].id) < q.g.TopoIndex(q.items[j].id)
}
func (q *readyQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *readyQueue) Push(x any)   { q.items = append(q.items, x.(*job)) }
func (q *readyQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// coordinate owns all scheduling state. Workers only run nodes and report
// back, so no state below needs locking.
func (r *Run) coordinate(input value.Value) {
	g := r.g
	ctx := r.ctx

	waiting := make(map[string]*pending, g.Len())
	deliveries := make(map[string][]delivery, g.Len())
	for _, n := range g.Nodes() {
		in := g.Inbound(n.ID())
		waiting[n.ID()] = &pending{remaining: len(in), slots: make([]value.Value, len(in))}
		for i, e := range in {
			deliveries[e.From] = append(deliveries[e.From], delivery{to: n.ID(), idx: i})
		}
	}

	ready := &readyQueue{g: g}
	for _, id := range g.Entries() {
		j := &job{id: id, input: input}
		if h := value.HandleOf(input); h != nil {
			if ref, err := h.Acquire(); err == nil {
				j.refs = append(j.refs, ref)
			}
		}
		delete(waiting, id)
		heap.Push(ready, j)
	}

	jobs := make(chan *job)
	reports := make(chan report, g.Len())
	var wg sync.WaitGroup
	workers := min(r.cfg.workers, g.Len())
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				reports <- r.work(j)
			}
		}()
	}

	var rootCauses []error
	var cancelled bool
	inflight := 0
	done := ctx.Done()

	cancelPending := func() {
		for ready.Len() > 0 {
			j := heap.Pop(ready).(*job)
			r.markCancelled(j.id)
			releaseAll(j.refs)
		}
		for id, p := range waiting {
			r.markCancelled(id)
			releaseAll(p.refs)
			delete(waiting, id)
		}
	}

	var skip func(from string, cause error)
	skip = func(from string, cause error) {
		for _, d := range deliveries[from] {
			p, ok := waiting[d.to]
			if !ok {
				continue
			}
			delete(waiting, d.to)
			releaseAll(p.refs)
			r.logger.Warn("Skipping dependent node due to upstream failure.", "node_id", d.to, "failed_dependency", from)
			_ = r.store.SetStatus(ctx, d.to, nodestore.StatusSkipped)
			_ = r.store.SetError(ctx, d.to, fmt.Errorf("skipped due to upstream failure of '%s': %w", from, cause))
			skip(d.to, cause)
		}
	}

	for {
		if ctx.Err() != nil && (ready.Len() > 0 || len(waiting) > 0) {
			cancelled = true
			cancelPending()
		}
		if inflight == 0 && ready.Len() == 0 {
			break
		}

		var send chan *job
		var next *job
		if ready.Len() > 0 && inflight < workers {
			send = jobs
			next = ready.items[0]
		}

		select {
		case send <- next:
			heap.Pop(ready)
			inflight++
			_ = r.store.SetStatus(ctx, next.id, nodestore.StatusRunning)
			r.mu.Lock()
			r.dispatch = append(r.dispatch, next.id)
			r.mu.Unlock()

		case rep := <-reports:
			inflight--
			switch {
			case rep.err == nil:
				r.complete(rep, deliveries, waiting, ready)
			case errors.Is(rep.err, node.ErrCancelled):
				cancelled = true
				r.markCancelled(rep.id)
				r.cancel()
			default:
				r.logger.Error("Node execution failed.", "node_id", rep.id, "error", rep.err)
				_ = r.store.SetStatus(ctx, rep.id, nodestore.StatusFailed)
				_ = r.store.SetError(ctx, rep.id, rep.err)
				rootCauses = append(rootCauses, fmt.Errorf("execution failed for %s: %w", rep.id, rep.err))
				skip(rep.id, rep.err)
			}

		case <-done:
			done = nil
		}
	}

	close(jobs)
	wg.Wait()
	r.finish(rootCauses, cancelled)
}

// complete stores a node's output, reports it if the node is a result, and
// hands it to every waiting consumer.
func (r *Run) complete(rep report, deliveries map[string][]delivery, waiting map[string]*pending, ready *readyQueue) {
	ctx := r.ctx
	_ = r.store.SetOutput(ctx, rep.id, rep.out)
	_ = r.store.SetStatus(ctx, rep.id, nodestore.StatusCompleted)
	h := value.HandleOf(rep.out)

	if r.g.IsResult(rep.id) {
		if n, ok := r.g.Node(rep.id); ok && n.ReportToClient() {
			res := Result{RunID: r.id, NodeID: rep.id, Value: rep.out, At: time.Now()}
			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
			var ref *resource.Ref
			if h != nil {
				ref, _ = h.Acquire()
			}
			r.exec.emit(Event{Type: EventResult, Result: &res}, func(o Observer) { o.OnGraphResult(res) })
			if ref != nil {
				ref.Release()
			}
		}
	}

	for _, d := range deliveries[rep.id] {
		p, ok := waiting[d.to]
		if !ok {
			continue
		}
		p.slots[d.idx] = rep.out
		if h != nil {
			if ref, err := h.Acquire(); err == nil {
				p.refs = append(p.refs, ref)
			}
		}
		p.remaining--
		if p.remaining > 0 {
			continue
		}
		delete(waiting, d.to)
		var in value.Value
		if len(p.slots) == 1 {
			in = p.slots[0]
		} else {
			in = value.NewTuple(p.slots...)
		}
		heap.Push(ready, &job{id: d.to, input: in, refs: p.refs})
	}

	if h != nil {
		h.Release()
	}
}

func (r *Run) markCancelled(id string) {
	_ = r.store.SetStatus(r.ctx, id, nodestore.StatusCancelled)
}

// work runs one node, retrying upstream failures with backoff.
func (r *Run) work(j *job) report {
	defer releaseAll(j.refs)

	n, _ := r.g.Node(j.id)
	ic := invocation.New(r.ctx, r.id, j.id,
		invocation.WithTelemetry(r.cfg.telemetry),
		invocation.WithPartialSink(func(v value.Value) {
			r.exec.emitPartial(Partial{RunID: r.id, NodeID: j.id, Value: v})
		}),
	)

	var out value.Value
	var err error
	for attempt := 1; ; attempt++ {
		out, err = n.Process(ic, j.input)
		if err != nil && out != nil {
			value.Discard(out)
			out = nil
		}
		if err == nil || !errors.Is(err, node.ErrUpstreamFailure) || attempt >= r.cfg.retries {
			break
		}
		ic.Logger().Warn("Retrying node after upstream failure.", "attempt", attempt, "error", err)
		if !sleepCtx(r.ctx, r.cfg.retryBackoff) {
			err = fmt.Errorf("node '%s': %w", j.id, node.ErrCancelled)
			break
		}
	}
	return report{id: j.id, out: out, err: err}
}

func (r *Run) finish(rootCauses []error, cancelled bool) {
	status := StatusFinished
	var err error
	switch {
	case cancelled || r.ctx.Err() != nil:
		status = StatusCancelled
		cause := r.ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		err = errors.Join(append(rootCauses, cause)...)
	case len(rootCauses) > 0:
		status = StatusFailed
		err = errors.Join(rootCauses...)
	}

	r.mu.Lock()
	out := Outcome{RunID: r.id, Status: status, Err: err, Results: slices.Clone(r.results)}
	r.mu.Unlock()

	r.mu.Lock()
	r.status = status
	r.outcome = out
	r.mu.Unlock()
	r.exec.finishRun(r)

	// The executor is already terminal here, so observers may start the
	// next run.
	r.logger.Info("Run finished.", "status", status, "results", len(out.Results), "error", err)
	r.exec.emit(Event{Type: EventFinished, Outcome: &out}, func(o Observer) { o.OnGraphFinished(out) })
	r.cancel()
	close(r.done)
}

func releaseAll(refs []*resource.Ref) {
	for _, ref := range refs {
		ref.Release()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
