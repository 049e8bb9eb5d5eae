package node

import (
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// RandomCannedTextConfig picks one of Phrases at random. ExecutionConfig.CannedText,
// when set, replaces the list.
type RandomCannedTextConfig struct {
	Phrases []string `hcl:"phrases,optional"`
	Remain  hcl.Body `hcl:",remain"`
}

func (*RandomCannedTextConfig) Kind() Kind { return KindRandomCannedText }

func (c *RandomCannedTextConfig) build(env *buildEnv) (processor, error) {
	phrases := c.Phrases
	if len(env.exec.CannedText) > 0 {
		phrases = env.exec.CannedText
	}
	if len(phrases) == 0 {
		return nil, configErr("phrases", "at least one phrase is required")
	}
	return &cannedProcessor{phrases: slices.Clone(phrases), state: env.state}, nil
}

type cannedProcessor struct {
	phrases []string
	state   *sharedState
}

func (p *cannedProcessor) process(*invocation.Context, []value.Value) (value.Value, error) {
	p.state.mu.Lock()
	i := p.state.rng.IntN(len(p.phrases))
	p.state.mu.Unlock()
	return value.NewText(p.phrases[i]), nil
}
