package node

import (
	"strings"
	"unicode"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// TextAggregatorConfig joins incoming text pieces into one Text.
type TextAggregatorConfig struct {
	Separator *string  `hcl:"separator,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*TextAggregatorConfig) Kind() Kind { return KindTextAggregator }

func (c *TextAggregatorConfig) build(*buildEnv) (processor, error) {
	sep := " "
	if c.Separator != nil {
		sep = *c.Separator
	}
	return &aggregateProcessor{sep: sep}, nil
}

type aggregateProcessor struct{ sep string }

func (p *aggregateProcessor) process(_ *invocation.Context, items []value.Value) (value.Value, error) {
	if len(items) == 0 {
		return nil, missingInput(value.KindText)
	}
	var parts []string
	for _, s := range texts(items) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return value.NewText(strings.Join(parts, p.sep)), nil
}

// TextChunkingConfig splits text at sentence boundaries. Sentences are packed
// into chunks of at most MaxChars characters; a single longer sentence is
// kept whole. Zero MaxChars yields one chunk per sentence.
type TextChunkingConfig struct {
	MaxChars int      `hcl:"max_chars,optional"`
	Remain   hcl.Body `hcl:",remain"`
}

func (*TextChunkingConfig) Kind() Kind { return KindTextChunking }

func (c *TextChunkingConfig) build(*buildEnv) (processor, error) {
	if c.MaxChars < 0 {
		return nil, configErr("max_chars", "must not be negative")
	}
	return &chunkProcessor{maxChars: c.MaxChars}, nil
}

type chunkProcessor struct{ maxChars int }

func (p *chunkProcessor) process(_ *invocation.Context, items []value.Value) (value.Value, error) {
	all := texts(items)
	if len(all) == 0 {
		return nil, missingInput(value.KindText)
	}
	return value.NewTextChunks(ChunkText(strings.Join(all, " "), p.maxChars)...), nil
}

// ChunkText splits text into sentences and packs them into chunks.
func ChunkText(text string, maxChars int) []string {
	sentences := splitSentences(text)
	if maxChars <= 0 {
		return sentences
	}
	var chunks []string
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+1+len(s) > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
