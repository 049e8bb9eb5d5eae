package node

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// LLMChatConfig configures a chat node.
type LLMChatConfig struct {
	Component    string   `hcl:"component,optional"`
	Model        string   `hcl:"model,optional"`
	SystemPrompt string   `hcl:"system_prompt,optional"`
	Temperature  *float64 `hcl:"temperature,optional"`
	MaxTokens    int      `hcl:"max_tokens,optional"`
	Remain       hcl.Body `hcl:",remain"`
}

func (*LLMChatConfig) Kind() Kind { return KindLLMChat }

func (c *LLMChatConfig) build(env *buildEnv) (processor, error) {
	if err := validateSampling(c.Temperature, c.MaxTokens); err != nil {
		return nil, err
	}
	llm, err := resolve[registry.LLM](env, "component", "llm", c.Component, registry.CapLLM)
	if err != nil {
		return nil, err
	}
	p := &chatProcessor{
		llm: llm,
		base: registry.ChatRequest{
			Model:       c.Model,
			System:      c.SystemPrompt,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		},
	}
	if env.exec.Streaming {
		p.stream, _ = llm.(registry.StreamingLLM)
	}
	return p, nil
}

type chatProcessor struct {
	llm    registry.LLM
	stream registry.StreamingLLM
	base   registry.ChatRequest
}

func (p *chatProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	req := p.base
	var extra []string
	for _, item := range items {
		switch v := item.(type) {
		case value.Text:
			req.Messages = append(req.Messages, registry.ChatMessage{Role: "user", Content: v.String()})
		case value.Memory:
			for _, r := range v.Records() {
				extra = append(extra, "- "+r.Text)
			}
		case value.Knowledge:
			for _, ps := range v.Passages() {
				extra = append(extra, "- "+ps.Text)
			}
		case value.ToolList:
			req.Tools = append(req.Tools, v.Tools()...)
		}
	}
	if len(req.Messages) == 0 {
		return nil, missingInput(value.KindText)
	}
	if len(extra) > 0 {
		req.System = strings.TrimSpace(req.System + "\n\nContext:\n" + strings.Join(extra, "\n"))
	}

	var (
		resp registry.ChatResponse
		err  error
	)
	if p.stream != nil {
		resp, err = p.stream.Stream(ic.Context(), req, func(delta string) {
			ic.EmitPartial(value.NewText(delta))
		})
	} else {
		resp, err = p.llm.Generate(ic.Context(), req)
	}
	if err != nil {
		return nil, upstream("generate", err)
	}
	if len(resp.ToolCalls) > 0 {
		return value.NewToolCalls(resp.ToolCalls...), nil
	}
	return value.NewText(resp.Text), nil
}

// LLMCompletionConfig configures a single-prompt completion node. Prompt, if
// set, must contain "{input}" which is replaced with the incoming text.
type LLMCompletionConfig struct {
	Component   string   `hcl:"component,optional"`
	Model       string   `hcl:"model,optional"`
	Prompt      string   `hcl:"prompt,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
	MaxTokens   int      `hcl:"max_tokens,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

func (*LLMCompletionConfig) Kind() Kind { return KindLLMCompletion }

func (c *LLMCompletionConfig) build(env *buildEnv) (processor, error) {
	if err := validateSampling(c.Temperature, c.MaxTokens); err != nil {
		return nil, err
	}
	if c.Prompt != "" && !strings.Contains(c.Prompt, "{input}") {
		return nil, configErr("prompt", "prompt must contain {input}")
	}
	llm, err := resolve[registry.LLM](env, "component", "llm", c.Component, registry.CapLLM)
	if err != nil {
		return nil, err
	}
	return &completionProcessor{
		llm:    llm,
		prompt: c.Prompt,
		base: registry.ChatRequest{
			Model:       c.Model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		},
	}, nil
}

type completionProcessor struct {
	llm    registry.LLM
	prompt string
	base   registry.ChatRequest
}

func (p *completionProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	in := strings.Join(texts(items), "\n")
	if in == "" {
		return nil, missingInput(value.KindText)
	}
	prompt := in
	if p.prompt != "" {
		prompt = strings.ReplaceAll(p.prompt, "{input}", in)
	}
	req := p.base
	req.Messages = []registry.ChatMessage{{Role: "user", Content: prompt}}
	resp, err := p.llm.Generate(ic.Context(), req)
	if err != nil {
		return nil, upstream("complete", err)
	}
	return value.NewText(resp.Text), nil
}

func validateSampling(temperature *float64, maxTokens int) error {
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return configErr("temperature", fmt.Sprintf("must be within [0, 2], got %g", *temperature))
	}
	if maxTokens < 0 {
		return configErr("max_tokens", "must not be negative")
	}
	return nil
}
