package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTT struct{}

func (fakeSTT) Transcribe(context.Context, value.Audio) (string, error) { return "hi", nil }

type fakeLLM struct{}

func (fakeLLM) Generate(context.Context, ChatRequest) (ChatResponse, error) {
	return ChatResponse{Text: "ok"}, nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	r.Register("stt-1", fakeSTT{})
	r.Register("llm-1", fakeLLM{})

	stt, err := Resolve[STT](r, "stt-1", CapSTT)
	require.NoError(t, err)
	text, err := stt.Transcribe(context.Background(), value.Audio{})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	_, err = Resolve[STT](r, "missing", CapSTT)
	assert.ErrorIs(t, err, ErrComponentNotFound)

	_, err = Resolve[TTS](r, "llm-1", CapTTS)
	assert.ErrorIs(t, err, ErrCapabilityMismatch)

	_, err = Resolve[LLM](nil, "llm-1", CapLLM)
	assert.ErrorIs(t, err, ErrComponentNotFound)

	assert.Equal(t, []string{"stt-1", "llm-1"}, r.IDs())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	r.Register("a", fakeSTT{})
	assert.Panics(t, func() { r.Register("a", fakeLLM{}) })
	assert.Panics(t, func() { r.Register("b", nil) })

	r.RegisterProvider("p", func(context.Context, string, hcl.Body, *hcl.EvalContext) (any, error) { return fakeSTT{}, nil })
	assert.Panics(t, func() {
		r.RegisterProvider("p", func(context.Context, string, hcl.Body, *hcl.EvalContext) (any, error) { return nil, nil })
	})
}

func TestBuild(t *testing.T) {
	r := New()
	r.RegisterProvider("fake_stt", func(_ context.Context, id string, _ hcl.Body, _ *hcl.EvalContext) (any, error) {
		return fakeSTT{}, nil
	})
	r.RegisterProvider("broken", func(context.Context, string, hcl.Body, *hcl.EvalContext) (any, error) {
		return nil, errors.New("no credentials")
	})
	ctx := context.Background()

	t.Run("builds and registers", func(t *testing.T) {
		b, err := r.Build(ctx, "fake_stt", "stt", hcl.EmptyBody(), nil)
		require.NoError(t, err)
		assert.Equal(t, []Capability{CapSTT}, Capabilities(b))
		_, ok := r.Lookup("stt")
		assert.True(t, ok)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := r.Build(ctx, "fake_stt", "stt", hcl.EmptyBody(), nil)
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := r.Build(ctx, "nope", "x", hcl.EmptyBody(), nil)
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("factory error", func(t *testing.T) {
		_, err := r.Build(ctx, "broken", "y", hcl.EmptyBody(), nil)
		assert.ErrorContains(t, err, "no credentials")
		assert.True(t, r.HasProvider("broken"))
	})
}

type closer struct {
	fakeSTT
	name   string
	closed *[]string
	err    error
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func TestCloseReverseOrder(t *testing.T) {
	var closed []string
	r := New()
	r.Register("a", &closer{name: "a", closed: &closed})
	r.Register("plain", fakeLLM{})
	r.Register("b", &closer{name: "b", closed: &closed, err: errors.New("stuck")})

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing component 'b': stuck")
	assert.Equal(t, []string{"b", "a"}, closed)
	assert.Empty(t, r.IDs())

	_, ok := r.Lookup("a")
	assert.False(t, ok)
}

func TestBuildDuplicateSkipsFactory(t *testing.T) {
	var closed []string
	calls := 0
	r := New()
	r.RegisterProvider("pool", func(_ context.Context, id string, _ hcl.Body, _ *hcl.EvalContext) (any, error) {
		calls++
		return &closer{name: id, closed: &closed}, nil
	})
	r.RegisterProvider("empty", func(context.Context, string, hcl.Body, *hcl.EvalContext) (any, error) {
		return nil, nil
	})
	ctx := context.Background()

	_, err := r.Build(ctx, "pool", "db", hcl.EmptyBody(), nil)
	require.NoError(t, err)
	_, err = r.Build(ctx, "pool", "db", hcl.EmptyBody(), nil)
	assert.ErrorContains(t, err, "already registered")
	assert.Equal(t, 1, calls)
	assert.Empty(t, closed)

	_, err = r.Build(ctx, "empty", "nothing", hcl.EmptyBody(), nil)
	assert.ErrorContains(t, err, "no backend")
}

func TestTrackResources(t *testing.T) {
	t.Run("registry close releases handles", func(t *testing.T) {
		var closed []string
		res := resource.NewRegistry(nil)
		r := New()
		r.TrackResources(res)
		r.Register("a", &closer{name: "a", closed: &closed})
		r.Register("plain", fakeLLM{})
		r.Register("b", &closer{name: "b", closed: &closed, err: errors.New("stuck")})
		assert.Equal(t, 2, res.Len())

		err := r.Close()
		assert.ErrorContains(t, err, "closing component 'b': stuck")
		assert.Equal(t, []string{"b", "a"}, closed)
		assert.Equal(t, 0, res.Len())

		res.Close()
		assert.Len(t, closed, 2)
	})

	t.Run("resource close wins", func(t *testing.T) {
		var closed []string
		res := resource.NewRegistry(nil)
		r := New()
		r.TrackResources(res)
		r.Register("a", &closer{name: "a", closed: &closed, err: errors.New("late")})

		res.Close()
		assert.Equal(t, []string{"a"}, closed)

		err := r.Close()
		assert.ErrorContains(t, err, "closing component 'a': late")
		assert.Equal(t, []string{"a"}, closed)
	})
}
