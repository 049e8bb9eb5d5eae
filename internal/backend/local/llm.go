package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// LLMConfig configures LLM. Template may reference {input}, the last user
// message, and {system}.
type LLMConfig struct {
	Template string   `hcl:"template,optional"`
	Remain   hcl.Body `hcl:",remain"`
}

// LLM answers by filling a template. When the last user message names an
// offered tool, it requests that tool instead.
type LLM struct{ template string }

var _ registry.StreamingLLM = (*LLM)(nil)

func NewLLM(cfg LLMConfig) *LLM {
	if cfg.Template == "" {
		cfg.Template = "{input}"
	}
	return &LLM{template: cfg.Template}
}

// Generate implements registry.LLM.
func (l *LLM) Generate(ctx context.Context, req registry.ChatRequest) (registry.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return registry.ChatResponse{}, err
	}
	input := lastUserMessage(req.Messages)
	lower := strings.ToLower(input)
	var calls []value.ToolCall
	for _, t := range req.Tools {
		if t.Name != "" && strings.Contains(lower, strings.ToLower(t.Name)) {
			calls = append(calls, value.ToolCall{
				ID:        fmt.Sprintf("call_%d", len(calls)+1),
				Name:      t.Name,
				Arguments: map[string]any{},
			})
		}
	}
	if len(calls) > 0 {
		return registry.ChatResponse{ToolCalls: calls}, nil
	}
	text := strings.NewReplacer("{input}", input, "{system}", req.System).Replace(l.template)
	if req.MaxTokens > 0 {
		if words := strings.Fields(text); len(words) > req.MaxTokens {
			text = strings.Join(words[:req.MaxTokens], " ")
		}
	}
	return registry.ChatResponse{Text: text}, nil
}

// Stream implements registry.StreamingLLM, emitting one delta per word.
func (l *LLM) Stream(ctx context.Context, req registry.ChatRequest, onDelta func(string)) (registry.ChatResponse, error) {
	resp, err := l.Generate(ctx, req)
	if err != nil || resp.Text == "" {
		return resp, err
	}
	words := strings.Fields(resp.Text)
	for i, w := range words {
		if err := ctx.Err(); err != nil {
			return registry.ChatResponse{}, err
		}
		if i < len(words)-1 {
			w += " "
		}
		onDelta(w)
	}
	return resp, nil
}

func lastUserMessage(msgs []registry.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
