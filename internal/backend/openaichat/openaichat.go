// Package openaichat adapts the OpenAI Chat Completions API (including
// streaming and tool calling) to registry.LLM and registry.StreamingLLM.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/toolargs"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider is the component provider name.
const Provider = "openai_llm"

// Config is the component block body.
type Config struct {
	Model       string   `hcl:"model,optional"`
	APIKey      string   `hcl:"api_key,optional"`
	BaseURL     string   `hcl:"base_url,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
	MaxTokens   int      `hcl:"max_tokens,optional"`
	MaxRetries  *int     `hcl:"max_retries,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

// Client wraps the OpenAI Chat Completions API.
type Client struct {
	client openai.Client
	cfg    Config
}

var (
	_ registry.LLM          = (*Client)(nil)
	_ registry.StreamingLLM = (*Client)(nil)
)

// New creates a client. An empty APIKey falls back to OPENAI_API_KEY.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*cfg.MaxRetries))
	}
	return &Client{client: openai.NewClient(opts...), cfg: cfg}
}

// Module registers the openai_llm provider.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterProvider(Provider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg Config
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Creating OpenAI chat client.", "id", id, "model", cfg.Model)
		return New(cfg), nil
	})
}

// Generate implements registry.LLM.
func (c *Client) Generate(ctx context.Context, req registry.ChatRequest) (registry.ChatResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return registry.ChatResponse{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return registry.ChatResponse{}, errors.New("openai returned no choices")
	}
	msg := resp.Choices[0].Message
	out := registry.ChatResponse{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args, err := toolargs.Parse(tc.Function.Arguments)
		if err != nil {
			return registry.ChatResponse{}, fmt.Errorf("tool call '%s': %w", tc.Function.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, value.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

// aggCall accumulates streamed tool call fragments.
type aggCall struct{ id, name, args string }

// Stream implements registry.StreamingLLM. onDelta receives each text
// fragment as it arrives; the returned response holds the full text.
func (c *Client) Stream(ctx context.Context, req registry.ChatRequest, onDelta func(string)) (registry.ChatResponse, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	var text strings.Builder
	calls := map[int64]*aggCall{}
	for stream.Next() {
		for _, ch := range stream.Current().Choices {
			if d := ch.Delta.Content; d != "" {
				text.WriteString(d)
				onDelta(d)
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := calls[tc.Index]
				if !ok {
					ac = &aggCall{}
					calls[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
		}
	}
	if err := stream.Err(); err != nil {
		return registry.ChatResponse{}, fmt.Errorf("openai streaming error: %w", err)
	}

	out := registry.ChatResponse{Text: text.String()}
	indexes := make([]int64, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })
	for _, i := range indexes {
		ac := calls[i]
		args, err := toolargs.Parse(ac.args)
		if err != nil {
			return registry.ChatResponse{}, fmt.Errorf("tool call '%s': %w", ac.name, err)
		}
		out.ToolCalls = append(out.ToolCalls, value.ToolCall{ID: ac.id, Name: ac.name, Arguments: args})
	}
	return out, nil
}

// params maps a ChatRequest onto the SDK request. Request values win over
// component defaults.
func (c *Client) params(req registry.ChatRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	params := openai.ChatCompletionNewParams{Messages: messages, Model: model}

	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = req.Temperature
	}
	if temperature != nil {
		params.Temperature = openai.Float(*temperature)
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	for _, t := range req.Tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  schema,
			},
		})
	}
	return params
}
