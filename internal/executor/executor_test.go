package executor

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/nodestore"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/testutil"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNode(t *testing.T, id string, cfg node.CreationConfig, exec *node.ExecutionConfig, reg registry.Resolver) *node.Node {
	t.Helper()
	n, err := node.Create(id, cfg, exec, reg)
	require.NoError(t, err)
	return n
}

func compile(t *testing.T, e *Executor, nodes []*node.Node, edges ...graph.Edge) *graph.Graph {
	t.Helper()
	g, err := e.Compile(context.Background(), graph.Definition{Nodes: nodes, Edges: edges})
	require.NoError(t, err)
	return g
}

func waitRun(t *testing.T, r *Run) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := r.Wait(ctx)
	require.NoError(t, err, "run did not finish in time")
	return o
}

// handleTTS backs every synthesized buffer with a resource handle and counts
// release callbacks.
type handleTTS struct {
	res      *resource.Registry
	released atomic.Int32
	handles  []*resource.Handle
	mu       sync.Mutex
}

func (h *handleTTS) Synthesize(_ context.Context, text, _ string) (value.Audio, error) {
	handle := h.res.Register("audio", []byte(text), func(any) { h.released.Add(1) })
	h.mu.Lock()
	h.handles = append(h.handles, handle)
	h.mu.Unlock()
	return value.NewAudio([]byte(text), 16000, "pcm").WithHandle(handle), nil
}

func TestExecuteSTTToIntent(t *testing.T) {
	reg := testutil.Components(map[string]any{
		"stt": &testutil.FakeSTT{Text: "hello there"},
		"emb": &testutil.FakeEmbedder{Vectors: map[string][]float32{
			"hi":          {1, 0},
			"hello there": {0.92, float32(math.Sqrt(1 - 0.92*0.92))},
		}},
	})
	stt := mustNode(t, "stt", &node.STTConfig{Component: "stt"}, nil, reg)
	intent := mustNode(t, "intent", &node.IntentConfig{
		Component: "emb",
		Intents:   []node.IntentDef{{Name: "greeting", Phrases: []string{"hi"}}},
	}, nil, reg)

	e := New()
	compile(t, e, []*node.Node{stt, intent}, graph.Edge{From: "stt", To: "intent"})

	outcome, err := e.Execute(context.Background(), value.NewAudio([]byte{1, 2, 3}, 16000, "pcm"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, StatusFinished, outcome.Status)
	assert.Equal(t, StatusFinished, e.Status())

	require.Len(t, outcome.Results, 1)
	res := outcome.Results[0]
	assert.Equal(t, "intent", res.NodeID)
	top, ok := res.Value.(value.IntentMatches).Top()
	require.True(t, ok)
	assert.Equal(t, "greeting", top.Name)
	assert.InDelta(t, 0.92, top.Score, 1e-4)
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	stt := &testutil.FakeSTT{Text: "x"}
	reg := testutil.Components(map[string]any{"stt": stt})
	e := New()
	compile(t, e, []*node.Node{mustNode(t, "stt", &node.STTConfig{Component: "stt"}, nil, reg)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := e.ExecuteAsync(ctx, value.NewAudio(nil, 16000, "pcm"))
	require.NoError(t, err)
	outcome := waitRun(t, r)

	assert.Equal(t, StatusCancelled, outcome.Status)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Empty(t, r.DispatchOrder())
	assert.Equal(t, int32(0), stt.Calls.Load())
	assert.Equal(t, nodestore.StatusCancelled, r.NodeStatus("stt"))
}

func TestExecuteCancelDuringRun(t *testing.T) {
	llm := testutil.NewBlockingLLM("late")
	reg := testutil.Components(map[string]any{"llm": llm})
	chat := mustNode(t, "chat", &node.LLMChatConfig{Component: "llm"}, nil, reg)
	agg := mustNode(t, "agg", &node.TextAggregatorConfig{}, nil, nil)

	e := New()
	compile(t, e, []*node.Node{chat, agg}, graph.Edge{From: "chat", To: "agg"})

	r, err := e.ExecuteAsync(context.Background(), value.NewText("hi"))
	require.NoError(t, err)
	<-llm.Started
	assert.Equal(t, StatusRunning, e.Status())
	r.Cancel()

	outcome := waitRun(t, r)
	assert.Equal(t, StatusCancelled, outcome.Status)
	assert.Equal(t, []string{"chat"}, r.DispatchOrder())
	assert.Equal(t, nodestore.StatusCancelled, r.NodeStatus("chat"))
	assert.Equal(t, nodestore.StatusCancelled, r.NodeStatus("agg"))
	assert.Empty(t, outcome.Results)
}

func TestExecuteFailureSkipsOnlyDependents(t *testing.T) {
	reg := testutil.Components(map[string]any{
		"bad":  &testutil.FakeTTS{Err: errors.New("boom")},
		"good": &testutil.FakeLLM{Reply: "fine"},
	})
	tts := mustNode(t, "tts", &node.TTSConfig{Component: "bad", Voice: "Alex"}, nil, reg)
	stt := mustNode(t, "stt", &node.STTConfig{Component: "missing-ok"}, nil, testutil.Components(map[string]any{"missing-ok": &testutil.FakeSTT{}}))
	chat := mustNode(t, "chat", &node.LLMChatConfig{Component: "good"}, nil, reg)
	agg := mustNode(t, "agg", &node.TextAggregatorConfig{}, nil, nil)

	e := New(WithWorkers(2))
	compile(t, e, []*node.Node{tts, stt, chat, agg},
		graph.Edge{From: "tts", To: "stt"},
		graph.Edge{From: "chat", To: "agg"},
	)

	outcome, err := e.Execute(context.Background(), value.NewText("hello"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	require.Error(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, node.ErrUpstreamFailure)
	assert.Contains(t, outcome.Err.Error(), "execution failed for tts")
	assert.NotContains(t, outcome.Err.Error(), "execution failed for stt")

	r := e.last
	assert.Equal(t, nodestore.StatusFailed, r.NodeStatus("tts"))
	assert.Equal(t, nodestore.StatusSkipped, r.NodeStatus("stt"))
	assert.ErrorContains(t, r.NodeError("stt"), "skipped due to upstream failure of 'tts'")
	assert.Equal(t, nodestore.StatusCompleted, r.NodeStatus("chat"))
	assert.Equal(t, nodestore.StatusCompleted, r.NodeStatus("agg"))

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "agg", outcome.Results[0].NodeID)
	assert.Equal(t, value.NewText("fine"), outcome.Results[0].Value)
}

func TestCompileRejectsCycle(t *testing.T) {
	a := mustNode(t, "a", &node.TextAggregatorConfig{}, nil, nil)
	b := mustNode(t, "b", &node.TextAggregatorConfig{}, nil, nil)
	e := New()
	_, err := e.Compile(context.Background(), graph.Definition{
		Nodes: []*node.Node{a, b},
		Edges: []graph.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
	})
	require.ErrorIs(t, err, graph.ErrCycleDetected)
	assert.Nil(t, e.Graph())

	_, err = e.ExecuteAsync(context.Background(), value.NewText("x"))
	assert.ErrorIs(t, err, ErrNotCompiled)
}

func TestCreateTTSWithoutVoiceFails(t *testing.T) {
	reg := testutil.Components(map[string]any{"tts": &testutil.FakeTTS{}})
	_, err := node.Create("tts", &node.TTSConfig{Component: "tts"}, nil, reg)
	require.ErrorIs(t, err, node.ErrConfig)

	var cfgErr *node.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "voice", cfgErr.Field)
}

func TestDispatchOrderIsDeterministic(t *testing.T) {
	build := func() *Executor {
		reg := testutil.Components(map[string]any{"llm": &testutil.FakeLLM{Reply: "ok"}})
		nodes := []*node.Node{
			mustNode(t, "b", &node.LLMChatConfig{Component: "llm"}, nil, reg),
			mustNode(t, "a", &node.LLMChatConfig{Component: "llm"}, nil, reg),
			mustNode(t, "join", &node.TextAggregatorConfig{}, nil, nil),
			mustNode(t, "c", &node.TextChunkingConfig{}, nil, nil),
		}
		e := New(WithWorkers(1))
		compile(t, e, nodes,
			graph.Edge{From: "a", To: "join", Slot: 1},
			graph.Edge{From: "b", To: "join", Slot: 0},
			graph.Edge{From: "join", To: "c"},
		)
		return e
	}

	var orders [][]string
	for range 5 {
		e := build()
		r, err := e.ExecuteAsync(context.Background(), value.NewText("go"))
		require.NoError(t, err)
		o := waitRun(t, r)
		require.NoError(t, o.Err)
		orders = append(orders, r.DispatchOrder())
	}
	assert.Equal(t, []string{"b", "a", "join", "c"}, orders[0])
	for _, o := range orders[1:] {
		assert.Equal(t, orders[0], o)
	}
}

func TestJoinInputFollowsSlotOrder(t *testing.T) {
	reg := testutil.Components(map[string]any{
		"first":  &testutil.FakeLLM{Reply: "first"},
		"second": &testutil.FakeLLM{Reply: "second"},
	})
	nodes := []*node.Node{
		mustNode(t, "x", &node.LLMChatConfig{Component: "second"}, nil, reg),
		mustNode(t, "y", &node.LLMChatConfig{Component: "first"}, nil, reg),
		mustNode(t, "join", &node.TextAggregatorConfig{}, nil, nil),
	}
	e := New()
	compile(t, e, nodes,
		graph.Edge{From: "x", To: "join", Slot: 1},
		graph.Edge{From: "y", To: "join", Slot: 0},
	)

	outcome, err := e.Execute(context.Background(), value.NewText("go"))
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, value.NewText("first second"), outcome.Results[0].Value)
}

func TestHandlesReleasedExactlyOnce(t *testing.T) {
	res := resource.NewRegistry(nil)
	tts := &handleTTS{res: res}
	sttBackend := &testutil.FakeSTT{Text: "heard"}
	reg := testutil.Components(map[string]any{"tts": tts, "stt": sttBackend})

	nodes := []*node.Node{
		mustNode(t, "tts", &node.TTSConfig{Component: "tts", Voice: "Alex"}, nil, reg),
		mustNode(t, "stt1", &node.STTConfig{Component: "stt"}, nil, reg),
		mustNode(t, "stt2", &node.STTConfig{Component: "stt"}, nil, reg),
	}
	e := New(WithWorkers(2))
	compile(t, e, nodes,
		graph.Edge{From: "tts", To: "stt1"},
		graph.Edge{From: "tts", To: "stt2"},
	)

	outcome, err := e.Execute(context.Background(), value.NewText("speak"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Len(t, outcome.Results, 2)
	assert.Equal(t, int32(2), sttBackend.Calls.Load())

	assert.Equal(t, int32(1), tts.released.Load())
	require.Len(t, tts.handles, 1)
	assert.True(t, tts.handles[0].Released())
	assert.Equal(t, 0, res.Len())
}

func TestHandleReleasedForReportedResult(t *testing.T) {
	res := resource.NewRegistry(nil)
	tts := &handleTTS{res: res}
	reg := testutil.Components(map[string]any{"tts": tts})
	e := New()
	compile(t, e, []*node.Node{mustNode(t, "tts", &node.TTSConfig{Component: "tts", Voice: "Alex"}, nil, reg)})

	var sawLive atomic.Bool
	e.AddObserver(ObserverFuncs{Result: func(r Result) {
		sawLive.Store(!value.HandleOf(r.Value).Released())
	}})

	outcome, err := e.Execute(context.Background(), value.NewText("bye"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.True(t, sawLive.Load(), "handle must be live during OnGraphResult")
	assert.Equal(t, int32(1), tts.released.Load())
}

func TestChunkingToTTSReportsOnlyTTS(t *testing.T) {
	tts := &testutil.FakeTTS{}
	reg := testutil.Components(map[string]any{"tts": tts})
	chunk := mustNode(t, "chunk", &node.TextChunkingConfig{}, &node.ExecutionConfig{ReportToClient: node.Bool(false)}, nil)
	speak := mustNode(t, "tts", &node.TTSConfig{Component: "tts", Voice: "Alex"}, nil, reg)
	silent := mustNode(t, "silent", &node.TextChunkingConfig{}, &node.ExecutionConfig{ReportToClient: node.Bool(false)}, nil)

	e := New()
	compile(t, e, []*node.Node{chunk, speak, silent},
		graph.Edge{From: "chunk", To: "tts"},
	)

	var reported []string
	var mu sync.Mutex
	e.AddObserver(ObserverFuncs{Result: func(r Result) {
		mu.Lock()
		reported = append(reported, r.NodeID)
		mu.Unlock()
	}})

	outcome, err := e.Execute(context.Background(), value.NewText("One. Two!"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, int32(1), tts.Calls.Load())
	assert.Equal(t, []string{"tts"}, reported)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "One. Two!", string(outcome.Results[0].Value.(value.Audio).Data()))

	r := e.last
	assert.Equal(t, nodestore.StatusCompleted, r.NodeStatus("silent"), "unreported results still run")
	assert.NotNil(t, r.Output("silent"))
}

func TestExecuteWhileRunning(t *testing.T) {
	llm := testutil.NewBlockingLLM("done")
	reg := testutil.Components(map[string]any{"llm": llm})
	e := New()
	compile(t, e, []*node.Node{mustNode(t, "chat", &node.LLMChatConfig{Component: "llm"}, nil, reg)})

	r, err := e.ExecuteAsync(context.Background(), value.NewText("hi"))
	require.NoError(t, err)
	<-llm.Started

	_, err = e.ExecuteAsync(context.Background(), value.NewText("again"))
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = e.Compile(context.Background(), graph.Definition{Nodes: e.Graph().Nodes()})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(llm.Release)
	outcome := waitRun(t, r)
	assert.Equal(t, StatusFinished, outcome.Status)

	r2, err := e.ExecuteAsync(context.Background(), value.NewText("again"))
	require.NoError(t, err)
	assert.NotEqual(t, r.ID(), r2.ID())
	waitRun(t, r2)
}

// flakySTT fails with a transport error until it has been called failures
// times.
type flakySTT struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakySTT) Transcribe(context.Context, value.Audio) (string, error) {
	if f.calls.Add(1) <= f.failures {
		return "", errors.New("connection reset")
	}
	return "recovered", nil
}

func TestRetryUpstreamFailures(t *testing.T) {
	flaky := &flakySTT{failures: 2}
	reg := testutil.Components(map[string]any{"stt": flaky})
	e := New(WithRetry(3, time.Millisecond))
	compile(t, e, []*node.Node{mustNode(t, "stt", &node.STTConfig{Component: "stt"}, nil, reg)})

	outcome, err := e.Execute(context.Background(), value.NewAudio([]byte{1}, 16000, "pcm"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, value.NewText("recovered"), outcome.Results[0].Value)
}

func TestRetryDoesNotRepeatInvalidInput(t *testing.T) {
	tts := &testutil.FakeTTS{}
	reg := testutil.Components(map[string]any{"tts": tts})
	e := New(WithRetry(3, 0))
	compile(t, e, []*node.Node{mustNode(t, "tts", &node.TTSConfig{Component: "tts", Voice: "Alex"}, nil, reg)})

	outcome, err := e.Execute(context.Background(), value.NewText(""))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, node.ErrInvalidInput)
	assert.Equal(t, int32(0), tts.Calls.Load())
}

func TestRunTimeoutCancels(t *testing.T) {
	llm := testutil.NewBlockingLLM("never")
	reg := testutil.Components(map[string]any{"llm": llm})
	e := New(WithTimeout(20 * time.Millisecond))
	compile(t, e, []*node.Node{mustNode(t, "chat", &node.LLMChatConfig{Component: "llm"}, nil, reg)})

	outcome, err := e.Execute(context.Background(), value.NewText("hi"))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, outcome.Status)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
}

func TestNodeTimeoutIsUpstreamFailure(t *testing.T) {
	llm := testutil.NewBlockingLLM("never")
	reg := testutil.Components(map[string]any{"llm": llm})
	chat := mustNode(t, "chat", &node.LLMChatConfig{Component: "llm"}, &node.ExecutionConfig{Timeout: 10 * time.Millisecond}, reg)
	e := New()
	compile(t, e, []*node.Node{chat})

	outcome, err := e.Execute(context.Background(), value.NewText("hi"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, node.ErrUpstreamFailure)
}

func TestParallelBranchesOverlap(t *testing.T) {
	completions := make(chan string, 2)
	llm := testutil.NewSleepingLLM(completions, 50*time.Millisecond)
	reg := testutil.Components(map[string]any{"llm": llm})
	nodes := []*node.Node{
		mustNode(t, "left", &node.LLMCompletionConfig{Component: "llm", Prompt: "left {input}"}, nil, reg),
		mustNode(t, "right", &node.LLMCompletionConfig{Component: "llm", Prompt: "right {input}"}, nil, reg),
	}
	e := New(WithWorkers(2))
	compile(t, e, nodes)

	outcome, err := e.Execute(context.Background(), value.NewText("x"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)

	left, ok := llm.Record("left x")
	require.True(t, ok)
	right, ok := llm.Record("right x")
	require.True(t, ok)
	assert.True(t, left.Overlaps(right), "independent branches should run concurrently")
}

func TestSubscribeAndObserverEvents(t *testing.T) {
	llm := &testutil.FakeLLM{Deltas: []string{"Hel", "lo"}}
	reg := testutil.Components(map[string]any{"llm": llm})
	chat := mustNode(t, "chat", &node.LLMChatConfig{Component: "llm"}, &node.ExecutionConfig{Streaming: true}, reg)

	e := New()
	events, unsubscribe := e.Subscribe(16)
	defer unsubscribe()

	var mu sync.Mutex
	var partials []string
	var finished []Outcome
	e.AddObserver(ObserverFuncs{
		Partial: func(p Partial) {
			mu.Lock()
			partials = append(partials, p.Value.(value.Text).String())
			mu.Unlock()
		},
		Finished: func(o Outcome) {
			mu.Lock()
			finished = append(finished, o)
			mu.Unlock()
		},
	})

	compile(t, e, []*node.Node{chat})
	outcome, err := e.Execute(context.Background(), value.NewText("hi"))
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, value.NewText("Hello"), outcome.Results[0].Value)

	mu.Lock()
	assert.Equal(t, []string{"Hel", "lo"}, partials)
	require.Len(t, finished, 1)
	assert.Equal(t, StatusFinished, finished[0].Status)
	mu.Unlock()

	var types []EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []EventType{EventCompiled, EventPartial, EventPartial, EventResult, EventFinished}, types)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	e := New()
	events, unsubscribe := e.Subscribe(1)
	unsubscribe()
	unsubscribe()
	_, ok := <-events
	assert.False(t, ok)
}

func TestUnsubscribeAfterClose(t *testing.T) {
	e := New()
	events, unsubscribe := e.Subscribe(1)
	e.Close()
	assert.NotPanics(t, unsubscribe)
	_, ok := <-events
	assert.False(t, ok)
}

func TestRunFromFinishedObserver(t *testing.T) {
	stt := &testutil.FakeSTT{Text: "x"}
	reg := testutil.Components(map[string]any{"stt": stt})
	e := New()
	compile(t, e, []*node.Node{mustNode(t, "stt", &node.STTConfig{Component: "stt"}, nil, reg)})

	var once sync.Once
	statuses := make(chan Status, 1)
	next := make(chan *Run, 1)
	e.AddObserver(ObserverFuncs{Finished: func(Outcome) {
		once.Do(func() {
			statuses <- e.Status()
			r, err := e.ExecuteAsync(context.Background(), value.NewAudio(nil, 16000, "pcm"))
			assert.NoError(t, err)
			next <- r
		})
	}})

	first, err := e.ExecuteAsync(context.Background(), value.NewAudio(nil, 16000, "pcm"))
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, waitRun(t, first).Status)
	assert.Equal(t, StatusFinished, <-statuses)

	second := <-next
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, StatusFinished, waitRun(t, second).Status)
	assert.Equal(t, int32(2), stt.Calls.Load())
}

// lateTTS produces a handle-backed buffer after the run was cancelled, or
// together with an error.
type lateTTS struct {
	handleTTS
	cancel context.CancelFunc
	err    error
}

func (l *lateTTS) Synthesize(ctx context.Context, text, voice string) (value.Audio, error) {
	audio, _ := l.handleTTS.Synthesize(ctx, text, voice)
	if l.cancel != nil {
		l.cancel()
	}
	return audio, l.err
}

func TestDiscardedOutputReleasesHandle(t *testing.T) {
	testCases := []struct {
		name       string
		cancel     bool
		err        error
		wantStatus Status
	}{
		{name: "cancelled after produce", cancel: true, wantStatus: StatusCancelled},
		{name: "produced with error", err: errors.New("stream broke"), wantStatus: StatusFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := resource.NewRegistry(nil)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			tts := &lateTTS{handleTTS: handleTTS{res: res}, err: tc.err}
			if tc.cancel {
				tts.cancel = cancel
			}
			reg := testutil.Components(map[string]any{"tts": tts})
			e := New()
			compile(t, e, []*node.Node{mustNode(t, "tts", &node.TTSConfig{Component: "tts", Voice: "Alex"}, nil, reg)})

			r, err := e.ExecuteAsync(ctx, value.NewText("hello"))
			require.NoError(t, err)
			outcome := waitRun(t, r)

			assert.Equal(t, tc.wantStatus, outcome.Status)
			assert.Empty(t, outcome.Results)
			assert.Equal(t, int32(1), tts.released.Load())
			assert.Equal(t, 0, res.Len())
		})
	}
}
