package local

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// Provider names.
const (
	STTProvider       = "local_stt"
	TTSProvider       = "local_tts"
	LLMProvider       = "local_llm"
	EmbedderProvider  = "local_embedder"
	MemoryProvider    = "local_memory"
	KnowledgeProvider = "local_knowledge"
)

// Module registers every local provider.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	register(r, STTProvider, func(cfg STTConfig) (any, error) { return NewSTT(cfg), nil })
	register(r, TTSProvider, func(cfg TTSConfig) (any, error) { return NewTTS(cfg), nil })
	register(r, LLMProvider, func(cfg LLMConfig) (any, error) { return NewLLM(cfg), nil })
	register(r, EmbedderProvider, func(cfg EmbedderConfig) (any, error) { return NewEmbedder(cfg), nil })
	register(r, MemoryProvider, func(struct {
		Remain hcl.Body `hcl:",remain"`
	}) (any, error) {
		return NewMemory(), nil
	})
	register(r, KnowledgeProvider, func(cfg KnowledgeConfig) (any, error) { return NewKnowledge(cfg) })
}

func register[C any](r *registry.Registry, provider string, build func(C) (any, error)) {
	r.RegisterProvider(provider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg C
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Creating local backend.", "provider", provider, "id", id)
		return build(cfg)
	})
}
