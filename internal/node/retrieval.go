package node

import (
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// DefaultRetrieveLimit bounds memory and knowledge lookups when no limit is set.
const DefaultRetrieveLimit = 5

// MemoryUpdateConfig appends each incoming text to a memory store and
// returns the most recent records.
type MemoryUpdateConfig struct {
	Component string   `hcl:"component,optional"`
	Key       string   `hcl:"key,optional"`
	Limit     int      `hcl:"limit,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*MemoryUpdateConfig) Kind() Kind { return KindMemoryUpdate }

func (c *MemoryUpdateConfig) build(env *buildEnv) (processor, error) {
	limit, err := retrieveLimit(c.Limit)
	if err != nil {
		return nil, err
	}
	store, err := resolve[registry.MemoryStore](env, "component", "memory", c.Component, registry.CapMemoryStore)
	if err != nil {
		return nil, err
	}
	return &memoryUpdateProcessor{store: store, key: memoryKey(c.Key, env.id), limit: limit}, nil
}

type memoryUpdateProcessor struct {
	store registry.MemoryStore
	key   string
	limit int
}

func (p *memoryUpdateProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	all := texts(items)
	if len(all) == 0 {
		return nil, missingInput(value.KindText)
	}
	now := time.Now().UTC()
	for _, t := range all {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if err := p.store.Append(ic.Context(), p.key, value.MemoryRecord{Text: t, At: now}); err != nil {
			return nil, upstream("append memory", err)
		}
	}
	recs, err := p.store.Recent(ic.Context(), p.key, p.limit)
	if err != nil {
		return nil, upstream("read memory", err)
	}
	return value.NewMemory(recs...), nil
}

// MemoryRetrieveConfig searches a memory store with the incoming text.
type MemoryRetrieveConfig struct {
	Component string   `hcl:"component,optional"`
	Key       string   `hcl:"key,optional"`
	Limit     int      `hcl:"limit,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*MemoryRetrieveConfig) Kind() Kind { return KindMemoryRetrieve }

func (c *MemoryRetrieveConfig) build(env *buildEnv) (processor, error) {
	limit, err := retrieveLimit(c.Limit)
	if err != nil {
		return nil, err
	}
	store, err := resolve[registry.MemoryStore](env, "component", "memory", c.Component, registry.CapMemoryStore)
	if err != nil {
		return nil, err
	}
	return &memoryRetrieveProcessor{store: store, key: memoryKey(c.Key, env.id), limit: limit}, nil
}

type memoryRetrieveProcessor struct {
	store registry.MemoryStore
	key   string
	limit int
}

func (p *memoryRetrieveProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	query := strings.TrimSpace(strings.Join(texts(items), " "))
	if query == "" {
		return nil, missingInput(value.KindText)
	}
	recs, err := p.store.Search(ic.Context(), p.key, query, p.limit)
	if err != nil {
		return nil, upstream("search memory", err)
	}
	return value.NewMemory(recs...), nil
}

// KnowledgeRetrieveConfig looks up passages relevant to the incoming text.
type KnowledgeRetrieveConfig struct {
	Component string   `hcl:"component,optional"`
	Limit     int      `hcl:"limit,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*KnowledgeRetrieveConfig) Kind() Kind { return KindKnowledgeRetrieve }

func (c *KnowledgeRetrieveConfig) build(env *buildEnv) (processor, error) {
	limit, err := retrieveLimit(c.Limit)
	if err != nil {
		return nil, err
	}
	kb, err := resolve[registry.Knowledge](env, "component", "knowledge", c.Component, registry.CapKnowledge)
	if err != nil {
		return nil, err
	}
	return &knowledgeProcessor{kb: kb, limit: limit}, nil
}

type knowledgeProcessor struct {
	kb    registry.Knowledge
	limit int
}

func (p *knowledgeProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	query := strings.TrimSpace(strings.Join(texts(items), " "))
	if query == "" {
		return nil, missingInput(value.KindText)
	}
	passages, err := p.kb.Retrieve(ic.Context(), query, p.limit)
	if err != nil {
		return nil, upstream("retrieve knowledge", err)
	}
	slices.SortStableFunc(passages, func(a, b value.Passage) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return value.NewKnowledge(passages...), nil
}

// MCPListToolsConfig lists tools from an MCP server. Include, if set, keeps
// only the named tools.
type MCPListToolsConfig struct {
	Component string   `hcl:"component,optional"`
	Include   []string `hcl:"include,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*MCPListToolsConfig) Kind() Kind { return KindMCPListTools }

func (c *MCPListToolsConfig) build(env *buildEnv) (processor, error) {
	client, err := resolve[registry.MCP](env, "component", "mcp", c.Component, registry.CapMCP)
	if err != nil {
		return nil, err
	}
	return &mcpProcessor{client: client, include: slices.Clone(c.Include)}, nil
}

type mcpProcessor struct {
	client  registry.MCP
	include []string
}

func (p *mcpProcessor) process(ic *invocation.Context, _ []value.Value) (value.Value, error) {
	tools, err := p.client.ListTools(ic.Context())
	if err != nil {
		return nil, upstream("list tools", err)
	}
	if len(p.include) > 0 {
		tools = slices.DeleteFunc(tools, func(t value.Tool) bool {
			return !slices.Contains(p.include, t.Name)
		})
	}
	return value.NewToolList(tools...), nil
}

func retrieveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, configErr("limit", "must not be negative")
	case limit == 0:
		return DefaultRetrieveLimit, nil
	}
	return limit, nil
}

func memoryKey(key, nodeID string) string {
	if key != "" {
		return key
	}
	return nodeID
}
