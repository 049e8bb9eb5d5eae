package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// EmbedderConfig configures Embedder.
type EmbedderConfig struct {
	Dimensions int      `hcl:"dimensions,optional"`
	Remain     hcl.Body `hcl:",remain"`
}

// Embedder hashes lower-cased words into a fixed number of buckets and
// L2-normalizes the counts. Texts sharing words get positive cosine
// similarity.
type Embedder struct{ dims int }

var _ registry.TextEmbedder = (*Embedder)(nil)

func NewEmbedder(cfg EmbedderConfig) *Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 256
	}
	return &Embedder{dims: cfg.Dimensions}
}

// Embed implements registry.TextEmbedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	for _, w := range tokenize(text) {
		v[fnv32(w)%uint32(e.dims)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
