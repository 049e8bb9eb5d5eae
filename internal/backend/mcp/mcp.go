// Package mcp lists tools from Model Context Protocol servers reached over
// stdio or SSE.
package mcp

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// StdioProvider spawns the server as a subprocess.
	StdioProvider = "mcp_stdio"
	// SSEProvider connects to a server over HTTP server-sent events.
	SSEProvider = "mcp_sse"
)

const (
	clientName    = "living-memories"
	clientVersion = "1.0.0"
)

// StdioConfig is the mcp_stdio component body.
type StdioConfig struct {
	Command string            `hcl:"command"`
	Args    []string          `hcl:"args,optional"`
	Env     map[string]string `hcl:"env,optional"`
	Remain  hcl.Body          `hcl:",remain"`
}

// SSEConfig is the mcp_sse component body.
type SSEConfig struct {
	URL    string   `hcl:"url"`
	Remain hcl.Body `hcl:",remain"`
}

// Session is the subset of the mcp-go client used here.
type Session interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

// Client implements registry.MCP over an initialized session.
type Client struct {
	session Session
	server  string
}

var _ registry.MCP = (*Client)(nil)

// NewStdio starts the server process and performs the MCP handshake.
func NewStdio(ctx context.Context, cfg StdioConfig) (*Client, error) {
	env := make([]string, 0, len(cfg.Env))
	for _, k := range sortedKeys(cfg.Env) {
		env = append(env, k+"="+cfg.Env[k])
	}
	c, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("starting MCP server '%s': %w", cfg.Command, err)
	}
	return Connect(ctx, c)
}

// NewSSE opens the event stream and performs the MCP handshake.
func NewSSE(ctx context.Context, cfg SSEConfig) (*Client, error) {
	c, err := client.NewSSEMCPClient(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("creating MCP SSE client for %s: %w", cfg.URL, err)
	}
	// The SSE stream outlives the build context.
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connecting to MCP server %s: %w", cfg.URL, err)
	}
	return Connect(ctx, c)
}

// Connect initializes s. On failure s is closed.
func Connect(ctx context.Context, s Session) (*Client, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	res, err := s.Initialize(ctx, req)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initializing MCP session: %w", err)
	}
	c := &Client{session: s}
	if res != nil {
		c.server = res.ServerInfo.Name
	}
	ctxlog.FromContext(ctx).Debug("MCP session initialized.", "server", c.server)
	return c, nil
}

// ListTools implements registry.MCP.
func (c *Client) ListTools(ctx context.Context) ([]value.Tool, error) {
	res, err := c.session.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	tools := make([]value.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, toTool(t))
	}
	return tools, nil
}

// Close ends the session and, for stdio servers, the subprocess.
func (c *Client) Close() error {
	return c.session.Close()
}

func toTool(t mcp.Tool) value.Tool {
	props := make(map[string]any, len(t.InputSchema.Properties))
	maps.Copy(props, t.InputSchema.Properties)
	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.InputSchema.Required) > 0 {
		params["required"] = append([]string(nil), t.InputSchema.Required...)
	}
	return value.Tool{Name: t.Name, Description: t.Description, InputSchema: params}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Module registers the mcp_stdio and mcp_sse providers.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterProvider(StdioProvider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg StdioConfig
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Starting MCP stdio server.", "id", id, "command", cfg.Command)
		return NewStdio(ctx, cfg)
	})
	r.RegisterProvider(SSEProvider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg SSEConfig
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Connecting to MCP SSE server.", "id", id, "url", cfg.URL)
		return NewSSE(ctx, cfg)
	})
}
