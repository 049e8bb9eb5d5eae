package local

import (
	"context"
	"fmt"
	"sort"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Document is one knowledge source. Exactly one of Text or HTML is set; HTML
// is converted to Markdown.
type Document struct {
	Source string `hcl:"source,label"`
	Text   string `hcl:"text,optional"`
	HTML   string `hcl:"html,optional"`
}

// KnowledgeConfig configures Knowledge.
type KnowledgeConfig struct {
	Documents []Document `hcl:"document,block"`
	Remain    hcl.Body   `hcl:",remain"`
}

type passage struct {
	source string
	text   string
	words  map[string]struct{}
}

// Knowledge scores documents by the fraction of query words they contain.
type Knowledge struct{ docs []passage }

var _ registry.Knowledge = (*Knowledge)(nil)

func NewKnowledge(cfg KnowledgeConfig) (*Knowledge, error) {
	k := &Knowledge{}
	for _, d := range cfg.Documents {
		if err := k.Add(d); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// Add indexes d.
func (k *Knowledge) Add(d Document) error {
	text := d.Text
	switch {
	case d.Text != "" && d.HTML != "":
		return fmt.Errorf("document '%s': text and html are mutually exclusive", d.Source)
	case d.HTML != "":
		md, err := htmltomarkdown.ConvertString(d.HTML)
		if err != nil {
			return fmt.Errorf("document '%s': converting html: %w", d.Source, err)
		}
		text = md
	}
	words := make(map[string]struct{})
	for _, w := range tokenize(text) {
		words[w] = struct{}{}
	}
	k.docs = append(k.docs, passage{source: d.Source, text: text, words: words})
	return nil
}

// Retrieve implements registry.Knowledge. Documents with no matching word
// are omitted; ties keep declaration order.
func (k *Knowledge) Retrieve(ctx context.Context, query string, limit int) ([]value.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := uniq(tokenize(query))
	if len(q) == 0 || limit <= 0 {
		return nil, nil
	}
	var out []value.Passage
	for _, d := range k.docs {
		hits := 0
		for _, w := range q {
			if _, ok := d.words[w]; ok {
				hits++
			}
		}
		if hits > 0 {
			out = append(out, value.Passage{Source: d.source, Text: d.text, Score: float64(hits) / float64(len(q))})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func uniq(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := words[:0:0]
	for _, w := range words {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}
