package executor

import (
	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
)

// Observer receives graph lifecycle events. Compiled and Result events are
// delivered from the coordinator goroutine, so a slow observer slows the run.
type Observer interface {
	OnGraphCompiled(g *graph.Graph)
	OnGraphResult(r Result)
	OnGraphFinished(o Outcome)
}

// PartialObserver is implemented by observers that also want streamed
// partial values. OnPartialResult is called from worker goroutines and must
// be safe for concurrent use.
type PartialObserver interface {
	OnPartialResult(p Partial)
}

// ObserverFuncs adapts plain functions. Nil fields are ignored.
type ObserverFuncs struct {
	Compiled func(g *graph.Graph)
	Result   func(r Result)
	Finished func(o Outcome)
	Partial  func(p Partial)
}

func (f ObserverFuncs) OnGraphCompiled(g *graph.Graph) {
	if f.Compiled != nil {
		f.Compiled(g)
	}
}

func (f ObserverFuncs) OnGraphResult(r Result) {
	if f.Result != nil {
		f.Result(r)
	}
}

func (f ObserverFuncs) OnGraphFinished(o Outcome) {
	if f.Finished != nil {
		f.Finished(o)
	}
}

func (f ObserverFuncs) OnPartialResult(p Partial) {
	if f.Partial != nil {
		f.Partial(p)
	}
}

// EventType tags channel events.
type EventType int

const (
	EventCompiled EventType = iota
	EventResult
	EventPartial
	EventFinished
)

func (t EventType) String() string {
	switch t {
	case EventCompiled:
		return "compiled"
	case EventResult:
		return "result"
	case EventPartial:
		return "partial"
	case EventFinished:
		return "finished"
	}
	return "unknown"
}

// Event is what Subscribe delivers. Exactly one of the payload fields is
// set, matching Type.
type Event struct {
	Type    EventType
	Graph   *graph.Graph
	Result  *Result
	Partial *Partial
	Outcome *Outcome
}
