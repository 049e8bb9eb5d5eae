package node

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// SafetyTopic is a category of disallowed content. Keywords match whole
// words; Phrases are compared by embedding similarity when an embedder is
// configured.
type SafetyTopic struct {
	Name      string   `hcl:"name,label"`
	Keywords  []string `hcl:"keywords,optional"`
	Phrases   []string `hcl:"phrases,optional"`
	Threshold float64  `hcl:"threshold,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

// SafetyCheckerConfig configures a safety classifier.
type SafetyCheckerConfig struct {
	Component string        `hcl:"component,optional"`
	Topics    []SafetyTopic `hcl:"topic,block"`
	Remain    hcl.Body      `hcl:",remain"`
}

func (*SafetyCheckerConfig) Kind() Kind { return KindSafetyChecker }

func (c *SafetyCheckerConfig) build(env *buildEnv) (processor, error) {
	if len(c.Topics) == 0 {
		return nil, configErr("topic", "at least one topic is required")
	}
	embedder, hasEmbedder, err := resolveOptional[registry.TextEmbedder](env, "component", "embedder", c.Component, registry.CapTextEmbedder)
	if err != nil {
		return nil, err
	}
	p := &safetyProcessor{embedder: embedder}
	for _, t := range c.Topics {
		if t.Name == "" {
			return nil, configErr("topic", "topic name is required")
		}
		if len(t.Keywords) == 0 && len(t.Phrases) == 0 {
			return nil, configErr("topic", fmt.Sprintf("topic '%s' needs keywords or phrases", t.Name))
		}
		if len(t.Phrases) > 0 && !hasEmbedder {
			return nil, configErr("component", fmt.Sprintf("topic '%s' uses phrases but no embedder is configured", t.Name))
		}
		if t.Threshold < 0 || t.Threshold > 1 {
			return nil, configErr("threshold", fmt.Sprintf("topic '%s': must be within [0, 1]", t.Name))
		}
		st := safetyTopic{name: t.Name, phrases: append([]string(nil), t.Phrases...), threshold: t.Threshold}
		if st.threshold == 0 {
			st.threshold = DefaultIntentThreshold
		}
		for _, kw := range t.Keywords {
			if toks := tokenize(kw, false); len(toks) > 0 {
				st.keywords = append(st.keywords, toks)
			}
		}
		p.topics = append(p.topics, st)
	}
	return p, nil
}

type safetyTopic struct {
	name      string
	keywords  [][]string
	phrases   []string
	threshold float64
}

type safetyProcessor struct {
	embedder registry.TextEmbedder
	topics   []safetyTopic
}

func (p *safetyProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	text := strings.TrimSpace(strings.Join(texts(items), " "))
	if text == "" {
		return nil, missingInput(value.KindText)
	}
	words := tokenize(text, false)

	var query []float32
	var flagged []string
	for _, t := range p.topics {
		hit := false
		for _, kw := range t.keywords {
			if containsSeq(words, kw) {
				hit = true
				break
			}
		}
		if !hit && len(t.phrases) > 0 {
			if query == nil {
				qv, err := p.embedder.Embed(ic.Context(), []string{text})
				if err != nil || len(qv) != 1 {
					return nil, upstream("embed", embedErr(err, len(qv)))
				}
				query = qv[0]
			}
			pv, err := p.embedder.Embed(ic.Context(), t.phrases)
			if err != nil || len(pv) != len(t.phrases) {
				return nil, upstream("embed", embedErr(err, len(pv)))
			}
			for _, v := range pv {
				if Cosine(query, v) >= t.threshold {
					hit = true
					break
				}
			}
		}
		if hit {
			flagged = append(flagged, t.name)
		}
	}

	if len(flagged) == 0 {
		return value.NewSafety(true, ""), nil
	}
	return value.NewSafety(false, "flagged topics: "+strings.Join(flagged, ", "), flagged...), nil
}

func embedErr(err error, got int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected vector count %d", got)
}
