package local

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTT(t *testing.T) {
	stt := NewSTT(STTConfig{Transcript: "fallback"})

	text, err := stt.Transcribe(context.Background(), value.NewAudio([]byte(" hello \n"), 0, "TEXT"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = stt.Transcribe(context.Background(), value.NewAudio([]byte{1, 2}, 16000, "pcm_s16le"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", text)
}

func TestTTS_LengthFollowsText(t *testing.T) {
	tts := NewTTS(TTSConfig{SampleRate: 8000, CharMillis: 5})
	a, err := tts.Synthesize(context.Background(), "hey", "Ada")
	require.NoError(t, err)
	assert.Equal(t, 3*5*8000/1000*2, a.Len())
	assert.Equal(t, 8000, a.SampleRate())

	b, err := tts.Synthesize(context.Background(), "hey", "Ada")
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())

	c, err := tts.Synthesize(context.Background(), "hey", "Bob")
	require.NoError(t, err)
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestTTS_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTTS(TTSConfig{}).Synthesize(ctx, "hi", "v")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLLM(t *testing.T) {
	llm := NewLLM(LLMConfig{Template: "[{system}] You said: {input}"})
	req := registry.ChatRequest{
		System: "calm",
		Messages: []registry.ChatMessage{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "ok"},
			{Role: "user", Content: "second"},
		},
	}

	t.Run("generate", func(t *testing.T) {
		resp, err := llm.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "[calm] You said: second", resp.Text)
	})

	t.Run("stream", func(t *testing.T) {
		var deltas []string
		resp, err := llm.Stream(context.Background(), req, func(d string) { deltas = append(deltas, d) })
		require.NoError(t, err)
		assert.Equal(t, []string{"[calm] ", "You ", "said: ", "second"}, deltas)
		assert.Equal(t, "[calm] You said: second", resp.Text)
	})

	t.Run("max tokens", func(t *testing.T) {
		r := req
		r.MaxTokens = 2
		resp, err := llm.Generate(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, "[calm] You", resp.Text)
	})

	t.Run("tool call", func(t *testing.T) {
		r := req
		r.Messages = []registry.ChatMessage{{Role: "user", Content: "What is the Weather like?"}}
		r.Tools = []value.Tool{{Name: "weather"}, {Name: "calendar"}}
		resp, err := llm.Generate(context.Background(), r)
		require.NoError(t, err)
		assert.Empty(t, resp.Text)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "weather", resp.ToolCalls[0].Name)
		assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	})
}

func cosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestEmbedder(t *testing.T) {
	e := NewEmbedder(EmbedderConfig{Dimensions: 64})
	vecs, err := e.Embed(context.Background(), []string{"Book a flight", "book a FLIGHT!", "", "zebra"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for _, v := range vecs {
		assert.Len(t, v, 64)
	}
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-5)
	assert.Equal(t, make([]float32, 64), vecs[2])
	assert.Less(t, cosine(vecs[0], vecs[3]), float32(0.9))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }
	ctx := context.Background()
	for _, s := range []string{"I like tea", "Rainy day", "More TEA please"} {
		require.NoError(t, m.Append(ctx, "alice", value.MemoryRecord{Text: s}))
	}
	require.NoError(t, m.Append(ctx, "bob", value.MemoryRecord{Text: "tea"}))

	recent, err := m.Recent(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, []value.MemoryRecord{{Text: "Rainy day", At: at}, {Text: "More TEA please", At: at}}, recent)

	found, err := m.Search(ctx, "alice", "tea", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "I like tea", found[0].Text)

	found, err = m.Search(ctx, "alice", "tea", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := m.Recent(ctx, "carol", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestKnowledge(t *testing.T) {
	k, err := NewKnowledge(KnowledgeConfig{Documents: []Document{
		{Source: "castle", Text: "The castle has a dragon in the tower."},
		{Source: "tavern", HTML: "<h1>Tavern</h1><p>The <b>dragon</b> drinks ale here.</p>"},
		{Source: "farm", Text: "Cows and sheep."},
	}})
	require.NoError(t, err)

	got, err := k.Retrieve(context.Background(), "Where is the dragon tower?", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "castle", got[0].Source)
	assert.Equal(t, "tavern", got[1].Source)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Contains(t, got[1].Text, "# Tavern")
	assert.Contains(t, got[1].Text, "**dragon**")

	got, err = k.Retrieve(context.Background(), "dragon", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "castle", got[0].Source)
}

func TestKnowledge_TextAndHTML(t *testing.T) {
	_, err := NewKnowledge(KnowledgeConfig{Documents: []Document{{Source: "x", Text: "a", HTML: "<p>a</p>"}}})
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestModule_BuildsFromHCL(t *testing.T) {
	src := `
template = "echo {input}"
document "faq" {
  text = "Opening hours are nine to five."
}
`
	f, diags := hclparse.NewParser().ParseHCL([]byte(src), "local.hcl")
	require.False(t, diags.HasErrors(), diags.Error())

	r := registry.New()
	Module{}.Register(r)
	for _, p := range []string{STTProvider, TTSProvider, LLMProvider, EmbedderProvider, MemoryProvider, KnowledgeProvider} {
		assert.True(t, r.HasProvider(p), p)
	}

	llm, err := r.Build(context.Background(), LLMProvider, "llm", f.Body, &hcl.EvalContext{})
	require.NoError(t, err)
	resp, err := llm.(registry.LLM).Generate(context.Background(), registry.ChatRequest{
		Messages: []registry.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo hi", resp.Text)

	kb, err := r.Build(context.Background(), KnowledgeProvider, "kb", f.Body, &hcl.EvalContext{})
	require.NoError(t, err)
	passages, err := kb.(registry.Knowledge).Retrieve(context.Background(), "opening hours", 3)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "faq", passages[0].Source)

	mem, err := r.Build(context.Background(), MemoryProvider, "mem", f.Body, nil)
	require.NoError(t, err)
	assert.Implements(t, (*registry.MemoryStore)(nil), mem)
}
