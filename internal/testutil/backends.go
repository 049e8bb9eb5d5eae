package testutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// FakeSTT returns Text, or Err when set.
type FakeSTT struct {
	Text  string
	Err   error
	Calls atomic.Int32
}

func (f *FakeSTT) Transcribe(ctx context.Context, _ value.Audio) (string, error) {
	f.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Text, f.Err
}

// FakeTTS renders the text bytes as 16kHz "pcm" audio.
type FakeTTS struct {
	Err   error
	Calls atomic.Int32

	mu     sync.Mutex
	Voices []string
}

func (f *FakeTTS) Synthesize(_ context.Context, text, voice string) (value.Audio, error) {
	f.Calls.Add(1)
	f.mu.Lock()
	f.Voices = append(f.Voices, voice)
	f.mu.Unlock()
	if f.Err != nil {
		return value.Audio{}, f.Err
	}
	return value.NewAudio([]byte(text), 16000, "pcm"), nil
}

// FakeLLM answers every request with Reply. When Deltas is set, Stream
// reports them one by one and returns their concatenation.
type FakeLLM struct {
	Reply     string
	ToolCalls []value.ToolCall
	Deltas    []string
	Err       error

	mu       sync.Mutex
	Requests []registry.ChatRequest
}

func (f *FakeLLM) record(req registry.ChatRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
}

// LastRequest returns the most recent request.
func (f *FakeLLM) LastRequest() registry.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return registry.ChatRequest{}
	}
	return f.Requests[len(f.Requests)-1]
}

func (f *FakeLLM) Generate(ctx context.Context, req registry.ChatRequest) (registry.ChatResponse, error) {
	f.record(req)
	if f.Err != nil {
		return registry.ChatResponse{}, f.Err
	}
	return registry.ChatResponse{Text: f.Reply, ToolCalls: f.ToolCalls}, ctx.Err()
}

func (f *FakeLLM) Stream(ctx context.Context, req registry.ChatRequest, onDelta func(string)) (registry.ChatResponse, error) {
	f.record(req)
	if f.Err != nil {
		return registry.ChatResponse{}, f.Err
	}
	for _, d := range f.Deltas {
		onDelta(d)
	}
	return registry.ChatResponse{Text: strings.Join(f.Deltas, "")}, ctx.Err()
}

// BlockingLLM blocks until ctx is done or Release is closed. Started is
// signalled once per call.
type BlockingLLM struct {
	Started chan struct{}
	Release chan struct{}
	Reply   string
}

// NewBlockingLLM returns a BlockingLLM with buffered signalling channels.
func NewBlockingLLM(reply string) *BlockingLLM {
	return &BlockingLLM{Started: make(chan struct{}, 16), Release: make(chan struct{}), Reply: reply}
}

func (b *BlockingLLM) Generate(ctx context.Context, _ registry.ChatRequest) (registry.ChatResponse, error) {
	b.Started <- struct{}{}
	select {
	case <-ctx.Done():
		return registry.ChatResponse{}, ctx.Err()
	case <-b.Release:
		return registry.ChatResponse{Text: b.Reply}, nil
	}
}

// FakeEmbedder looks vectors up by exact text; unknown texts get Default.
type FakeEmbedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error
}

func (f *FakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.Vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.Default
		}
	}
	return out, nil
}

// FakeKnowledge returns Passages regardless of the query.
type FakeKnowledge struct {
	Passages []value.Passage
	Err      error
}

func (f *FakeKnowledge) Retrieve(_ context.Context, _ string, limit int) ([]value.Passage, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := append([]value.Passage(nil), f.Passages...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FakeMCP returns Tools.
type FakeMCP struct {
	Tools []value.Tool
	Err   error
}

func (f *FakeMCP) ListTools(context.Context) ([]value.Tool, error) {
	return append([]value.Tool(nil), f.Tools...), f.Err
}

// FakeMemory keeps records per key in memory and searches by substring.
type FakeMemory struct {
	mu      sync.Mutex
	records map[string][]value.MemoryRecord
	Err     error
}

func (f *FakeMemory) Append(_ context.Context, key string, rec value.MemoryRecord) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = make(map[string][]value.MemoryRecord)
	}
	f.records[key] = append(f.records[key], rec)
	return nil
}

func (f *FakeMemory) Recent(_ context.Context, key string, limit int) ([]value.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := f.records[key]
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return append([]value.MemoryRecord(nil), recs...), f.Err
}

func (f *FakeMemory) Search(_ context.Context, key, query string, limit int) ([]value.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []value.MemoryRecord
	for _, r := range f.records[key] {
		if strings.Contains(strings.ToLower(r.Text), strings.ToLower(query)) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, f.Err
}

// Components returns a registry pre-populated with the given backends.
func Components(backends map[string]any) *registry.Registry {
	r := registry.New()
	for id, b := range backends {
		r.Register(id, b)
	}
	return r
}
