// Package anthropic adapts the Anthropic Messages API to registry.LLM.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/toolargs"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Provider is the component provider name.
const Provider = "anthropic_llm"

// DefaultMaxTokens is used when neither the component nor the request sets
// a limit; the API requires one.
const DefaultMaxTokens = 1024

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

// Client wraps the Messages API.
type Client struct {
	client anthropic.Client
	cfg    Config
}

var _ registry.LLM = (*Client)(nil)

// New creates a client. An empty APIKey falls back to ANTHROPIC_API_KEY.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaude3_5Sonnet20241022)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
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
	return &Client{client: anthropic.NewClient(opts...), cfg: cfg}
}

// Module registers the anthropic_llm provider.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterProvider(Provider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg Config
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Creating Anthropic client.", "id", id, "model", cfg.Model)
		return New(cfg), nil
	})
}

// Generate implements registry.LLM.
func (c *Client) Generate(ctx context.Context, req registry.ChatRequest) (registry.ChatResponse, error) {
	resp, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return registry.ChatResponse{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var out registry.ChatResponse
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args, err := toolargs.Parse(string(tu.Input))
			if err != nil {
				return registry.ChatResponse{}, fmt.Errorf("tool call '%s': %w", tu.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, value.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}
	out.Text = text.String()
	return out, nil
}

func (c *Client) params(req registry.ChatRequest) anthropic.MessageNewParams {
	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}

	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = req.Temperature
	}
	if temperature != nil {
		params.Temperature = anthropic.Float(*temperature)
	}

	if req.System != "" {
		params.System = append(params.System, anthropic.TextBlockParam{Text: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, buildTool(t))
	}
	return params
}

// buildTool copies properties and required fields from the tool's JSON
// schema; the API always treats the input as an object.
func buildTool(t value.Tool) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if props, ok := t.InputSchema["properties"]; ok {
		schema.Properties = props
	}
	switch req := t.InputSchema["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
	if t.Description != "" && tool.OfTool != nil {
		tool.OfTool.Description = anthropic.String(t.Description)
	}
	return tool
}
