package node

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// CreationConfig is the closed set of per-kind configurations. Each kind has
// exactly one implementation in this package.
type CreationConfig interface {
	Kind() Kind
	build(env *buildEnv) (processor, error)
}

// ExecutionConfig holds the knobs that may be swapped between runs.
type ExecutionConfig struct {
	// Streaming asks LLM nodes to emit partial results.
	Streaming bool
	// ReportToClient controls whether a result node's value is surfaced to
	// observers. Nil means true.
	ReportToClient *bool
	// Components overrides component bindings by role, e.g. {"llm": "gpt"}.
	Components map[string]string
	// CannedText overrides the phrases of random_canned_text nodes.
	CannedText []string
	// Timeout bounds one Process call. Zero means no limit.
	Timeout time.Duration
}

// Reports resolves the ReportToClient default.
func (c ExecutionConfig) Reports() bool {
	return c.ReportToClient == nil || *c.ReportToClient
}

func (c ExecutionConfig) clone() ExecutionConfig {
	cp := c
	if c.ReportToClient != nil {
		v := *c.ReportToClient
		cp.ReportToClient = &v
	}
	cp.Components = maps.Clone(c.Components)
	cp.CannedText = slices.Clone(c.CannedText)
	return cp
}

// Bool is a helper for ExecutionConfig.ReportToClient literals.
func Bool(v bool) *bool { return &v }

// NewConfig returns an empty creation config for kind, ready to be decoded into.
func NewConfig(kind Kind) (CreationConfig, error) {
	switch kind {
	case KindSTT:
		return &STTConfig{}, nil
	case KindTTS:
		return &TTSConfig{}, nil
	case KindLLMChat:
		return &LLMChatConfig{}, nil
	case KindLLMCompletion:
		return &LLMCompletionConfig{}, nil
	case KindIntent:
		return &IntentConfig{}, nil
	case KindKeywordMatcher:
		return &KeywordMatcherConfig{}, nil
	case KindMemoryUpdate:
		return &MemoryUpdateConfig{}, nil
	case KindMemoryRetrieve:
		return &MemoryRetrieveConfig{}, nil
	case KindSafetyChecker:
		return &SafetyCheckerConfig{}, nil
	case KindTextAggregator:
		return &TextAggregatorConfig{}, nil
	case KindTextChunking:
		return &TextChunkingConfig{}, nil
	case KindGoalAdvancement:
		return &GoalAdvancementConfig{}, nil
	case KindRandomCannedText:
		return &RandomCannedTextConfig{}, nil
	case KindMCPListTools:
		return &MCPListToolsConfig{}, nil
	case KindKnowledgeRetrieve:
		return &KnowledgeRetrieveConfig{}, nil
	}
	return nil, fmt.Errorf("unknown node kind '%s'", kind)
}

// buildEnv is what a creation config sees while building its processor.
type buildEnv struct {
	id       string
	exec     ExecutionConfig
	resolver registry.Resolver
	state    *sharedState
}

// componentID applies the execution-config override for role.
func (e *buildEnv) componentID(role, configured string) string {
	if id, ok := e.exec.Components[role]; ok && id != "" {
		return id
	}
	return configured
}

// resolve binds a required component for role.
func resolve[T any](e *buildEnv, field, role, configured string, c registry.Capability) (T, error) {
	var zero T
	id := e.componentID(role, configured)
	if id == "" {
		return zero, configErr(field, "component is required")
	}
	b, err := registry.Resolve[T](e.resolver, id, c)
	if err != nil {
		return zero, &ConfigError{Field: field, Err: err}
	}
	return b, nil
}

// resolveOptional binds role only if configured.
func resolveOptional[T any](e *buildEnv, field, role, configured string, c registry.Capability) (T, bool, error) {
	var zero T
	if e.componentID(role, configured) == "" {
		return zero, false, nil
	}
	b, err := resolve[T](e, field, role, configured, c)
	if err != nil {
		return zero, false, err
	}
	return b, true, nil
}
