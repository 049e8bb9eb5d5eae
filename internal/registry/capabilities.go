package registry

import (
	"context"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Capability names a backend interface a node may require.
type Capability string

const (
	CapLLM          Capability = "llm"
	CapStreamingLLM Capability = "streaming_llm"
	CapSTT          Capability = "stt"
	CapTTS          Capability = "tts"
	CapTextEmbedder Capability = "text_embedder"
	CapKnowledge    Capability = "knowledge"
	CapMCP          Capability = "mcp"
	CapMemoryStore  Capability = "memory_store"
)

// ChatMessage is one turn of a chat prompt.
type ChatMessage struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// ChatRequest is what LLM nodes send to a backend.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Tools       []value.Tool
	Temperature *float64
	MaxTokens   int
}

// ChatResponse holds either text or tool calls.
type ChatResponse struct {
	Text      string
	ToolCalls []value.ToolCall
}

// LLM generates a single response.
type LLM interface {
	Generate(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// StreamingLLM additionally reports text deltas as they arrive. The returned
// response carries the full text.
type StreamingLLM interface {
	LLM
	Stream(ctx context.Context, req ChatRequest, onDelta func(string)) (ChatResponse, error)
}

// STT transcribes audio.
type STT interface {
	Transcribe(ctx context.Context, audio value.Audio) (string, error)
}

// TTS synthesizes speech with the given voice.
type TTS interface {
	Synthesize(ctx context.Context, text, voice string) (value.Audio, error)
}

// TextEmbedder returns one vector per input text.
type TextEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Knowledge retrieves passages relevant to a query.
type Knowledge interface {
	Retrieve(ctx context.Context, query string, limit int) ([]value.Passage, error)
}

// MCP lists the tools exposed by a Model Context Protocol server.
type MCP interface {
	ListTools(ctx context.Context) ([]value.Tool, error)
}

// MemoryStore persists conversation memory per key (typically a character
// or session ID).
type MemoryStore interface {
	Append(ctx context.Context, key string, rec value.MemoryRecord) error
	Recent(ctx context.Context, key string, limit int) ([]value.MemoryRecord, error)
	Search(ctx context.Context, key, query string, limit int) ([]value.MemoryRecord, error)
}

// satisfies reports whether backend implements c.
func satisfies(backend any, c Capability) bool {
	var ok bool
	switch c {
	case CapLLM:
		_, ok = backend.(LLM)
	case CapStreamingLLM:
		_, ok = backend.(StreamingLLM)
	case CapSTT:
		_, ok = backend.(STT)
	case CapTTS:
		_, ok = backend.(TTS)
	case CapTextEmbedder:
		_, ok = backend.(TextEmbedder)
	case CapKnowledge:
		_, ok = backend.(Knowledge)
	case CapMCP:
		_, ok = backend.(MCP)
	case CapMemoryStore:
		_, ok = backend.(MemoryStore)
	}
	return ok
}

// Capabilities lists every capability backend implements.
func Capabilities(backend any) []Capability {
	var out []Capability
	for _, c := range []Capability{CapLLM, CapStreamingLLM, CapSTT, CapTTS, CapTextEmbedder, CapKnowledge, CapMCP, CapMemoryStore} {
		if satisfies(backend, c) {
			out = append(out, c)
		}
	}
	return out
}
