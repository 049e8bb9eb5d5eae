package value

import (
	"testing"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesAreImmutable(t *testing.T) {
	t.Run("audio copies its buffer", func(t *testing.T) {
		buf := []byte("hello")
		a := NewAudio(buf, 16000, "pcm_s16le")
		buf[0] = 'j'
		assert.Equal(t, []byte("hello"), a.Data())

		out := a.Data()
		out[0] = 'x'
		assert.Equal(t, []byte("hello"), a.Data())
	})

	t.Run("chunks copy their slice", func(t *testing.T) {
		src := []string{"a", "b"}
		c := NewTextChunks(src...)
		src[0] = "z"
		assert.Equal(t, []string{"a", "b"}, c.Chunks())
	})

	t.Run("tool call arguments are cloned", func(t *testing.T) {
		args := map[string]any{"city": "Paris"}
		calls := NewToolCalls(ToolCall{ID: "1", Name: "weather", Arguments: args})
		args["city"] = "Rome"
		assert.Equal(t, "Paris", calls.Calls()[0].Arguments["city"])
	})
}

func TestIntentMatchesSortedByScore(t *testing.T) {
	m := NewIntentMatches(
		IntentMatch{Name: "Farewell", Score: 0.2},
		IntentMatch{Name: "Greeting", Score: 0.92},
		IntentMatch{Name: "Question", Score: 0.5},
	)
	top, ok := m.Top()
	require.True(t, ok)
	assert.Equal(t, "Greeting", top.Name)
	assert.Equal(t, []string{"Greeting", "Question", "Farewell"}, []string{
		m.Matches()[0].Name, m.Matches()[1].Name, m.Matches()[2].Name,
	})

	_, ok = NewIntentMatches().Top()
	assert.False(t, ok)
}

func TestKindSet(t *testing.T) {
	set := KindSet{KindText, KindTextChunks}
	assert.True(t, set.Contains(KindText))
	assert.False(t, set.Contains(KindAudio))
	assert.True(t, KindSet{}.Contains(KindAudio), "empty set accepts anything")
	assert.Equal(t, "text|text_chunks", set.String())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("intent_matches")
	require.NoError(t, err)
	assert.Equal(t, KindIntentMatches, k)

	_, err = ParseKind("video")
	assert.Error(t, err)
}

func TestHandleOfAndFlatten(t *testing.T) {
	reg := resource.NewRegistry(nil)
	h := reg.Register("pcm", nil, nil)

	a := NewAudio([]byte{1, 2}, 8000, "pcm").WithHandle(h)
	assert.Same(t, h, HandleOf(a))
	assert.Nil(t, HandleOf(NewText("hi")))

	tuple := NewTuple(NewText("a"), a)
	assert.Len(t, Flatten(tuple), 2)
	assert.Len(t, Flatten(NewText("a")), 1)
	assert.Nil(t, Flatten(nil))
}

func TestExport(t *testing.T) {
	out := Export(NewIntentMatches(IntentMatch{Name: "Greeting", Score: 0.92}))
	assert.Equal(t, "intent_matches", out["kind"])
	matches := out["matches"].([]map[string]any)
	require.Len(t, matches, 1)
	assert.Equal(t, "Greeting", matches[0]["name"])
	assert.Equal(t, 0.92, matches[0]["score"])

	assert.Equal(t, "hi", Export(NewText("hi"))["text"])
	assert.Nil(t, Export(nil))
}
