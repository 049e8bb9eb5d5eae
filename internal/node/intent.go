package node

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// DefaultIntentThreshold is used when IntentConfig.Threshold is unset.
const DefaultIntentThreshold = 0.7

// IntentDef is one named intent with example phrases.
type IntentDef struct {
	Name    string   `hcl:"name,label"`
	Phrases []string `hcl:"phrases"`
	Remain  hcl.Body `hcl:",remain"`
}

// IntentConfig configures embedding-based intent detection.
type IntentConfig struct {
	Component string      `hcl:"component,optional"`
	Intents   []IntentDef `hcl:"intent,block"`
	Threshold *float64    `hcl:"threshold,optional"`
	TopN      int         `hcl:"top_n,optional"`
	Remain    hcl.Body    `hcl:",remain"`
}

func (*IntentConfig) Kind() Kind { return KindIntent }

func (c *IntentConfig) build(env *buildEnv) (processor, error) {
	if len(c.Intents) == 0 {
		return nil, configErr("intent", "at least one intent is required")
	}
	seen := make(map[string]bool)
	p := &intentProcessor{threshold: DefaultIntentThreshold, topN: c.TopN}
	for _, in := range c.Intents {
		if in.Name == "" || seen[in.Name] {
			return nil, configErr("intent", fmt.Sprintf("intent names must be unique and non-empty, got '%s'", in.Name))
		}
		seen[in.Name] = true
		if len(in.Phrases) == 0 {
			return nil, configErr("intent", fmt.Sprintf("intent '%s' has no phrases", in.Name))
		}
		for _, ph := range in.Phrases {
			p.phrases = append(p.phrases, ph)
			p.owners = append(p.owners, in.Name)
		}
		p.names = append(p.names, in.Name)
	}
	if c.Threshold != nil {
		if *c.Threshold < 0 || *c.Threshold > 1 {
			return nil, configErr("threshold", fmt.Sprintf("must be within [0, 1], got %g", *c.Threshold))
		}
		p.threshold = *c.Threshold
	}
	if c.TopN < 0 {
		return nil, configErr("top_n", "must not be negative")
	}
	embedder, err := resolve[registry.TextEmbedder](env, "component", "embedder", c.Component, registry.CapTextEmbedder)
	if err != nil {
		return nil, err
	}
	p.embedder = embedder
	return p, nil
}

type intentProcessor struct {
	embedder  registry.TextEmbedder
	names     []string
	phrases   []string
	owners    []string
	threshold float64
	topN      int

	mu      sync.Mutex
	vectors [][]float32
}

func (p *intentProcessor) phraseVectors(ic *invocation.Context) ([][]float32, error) {
	p.mu.Lock()
	cached := p.vectors
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	vecs, err := p.embedder.Embed(ic.Context(), p.phrases)
	if err != nil {
		return nil, upstream("embed phrases", err)
	}
	if len(vecs) != len(p.phrases) {
		return nil, upstream("embed phrases", fmt.Errorf("got %d vectors for %d phrases", len(vecs), len(p.phrases)))
	}
	p.mu.Lock()
	p.vectors = vecs
	p.mu.Unlock()
	return vecs, nil
}

func (p *intentProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	query := strings.TrimSpace(strings.Join(texts(items), " "))
	if query == "" {
		return nil, missingInput(value.KindText)
	}
	phraseVecs, err := p.phraseVectors(ic)
	if err != nil {
		return nil, err
	}
	qv, err := p.embedder.Embed(ic.Context(), []string{query})
	if err != nil {
		return nil, upstream("embed query", err)
	}
	if len(qv) != 1 {
		return nil, upstream("embed query", fmt.Errorf("got %d vectors for 1 query", len(qv)))
	}

	best := make(map[string]float64)
	for i, pv := range phraseVecs {
		score := Cosine(qv[0], pv)
		if cur, ok := best[p.owners[i]]; !ok || score > cur {
			best[p.owners[i]] = score
		}
	}

	var matches []value.IntentMatch
	for _, name := range p.names {
		if s := best[name]; s >= p.threshold {
			matches = append(matches, value.IntentMatch{Name: name, Score: s})
		}
	}
	out := value.NewIntentMatches(matches...)
	if p.topN > 0 && out.Len() > p.topN {
		out = value.NewIntentMatches(out.Matches()[:p.topN]...)
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
