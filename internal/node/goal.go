package node

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// GoalDef is one conversation goal and its triggers. A goal fires when any
// listed intent or keyword group matched, or the text contains a phrase.
type GoalDef struct {
	Name       string   `hcl:"name,label"`
	Intents    []string `hcl:"intents,optional"`
	Keywords   []string `hcl:"keyword_groups,optional"`
	Phrases    []string `hcl:"phrases,optional"`
	Repeatable bool     `hcl:"repeatable,optional"`
	Remain     hcl.Body `hcl:",remain"`
}

// GoalAdvancementConfig tracks progress through an ordered list of goals.
type GoalAdvancementConfig struct {
	Goals  []GoalDef `hcl:"goal,block"`
	Remain hcl.Body  `hcl:",remain"`
}

func (*GoalAdvancementConfig) Kind() Kind { return KindGoalAdvancement }

func (c *GoalAdvancementConfig) build(env *buildEnv) (processor, error) {
	if len(c.Goals) == 0 {
		return nil, configErr("goal", "at least one goal is required")
	}
	seen := make(map[string]bool)
	goals := make([]GoalDef, 0, len(c.Goals))
	for _, g := range c.Goals {
		if g.Name == "" || seen[g.Name] {
			return nil, configErr("goal", fmt.Sprintf("goal names must be unique and non-empty, got '%s'", g.Name))
		}
		if len(g.Intents)+len(g.Keywords)+len(g.Phrases) == 0 {
			return nil, configErr("goal", fmt.Sprintf("goal '%s' has no triggers", g.Name))
		}
		seen[g.Name] = true
		goals = append(goals, GoalDef{
			Name:       g.Name,
			Intents:    slices.Clone(g.Intents),
			Keywords:   slices.Clone(g.Keywords),
			Phrases:    slices.Clone(g.Phrases),
			Repeatable: g.Repeatable,
		})
	}
	return &goalProcessor{goals: goals, state: env.state}, nil
}

type goalProcessor struct {
	goals []GoalDef
	state *sharedState
}

func (p *goalProcessor) process(_ *invocation.Context, items []value.Value) (value.Value, error) {
	if len(items) == 0 {
		return nil, missingInput(value.KindText)
	}
	var intents, groups []string
	var text []string
	for _, item := range items {
		switch v := item.(type) {
		case value.IntentMatches:
			for _, m := range v.Matches() {
				intents = append(intents, m.Name)
			}
		case value.KeywordMatches:
			groups = append(groups, v.Groups()...)
		case value.Text:
			text = append(text, strings.ToLower(v.String()))
		}
	}
	joined := strings.Join(text, " ")

	p.state.mu.Lock()
	defer p.state.mu.Unlock()

	fired := ""
	for _, g := range p.goals {
		if p.state.completed[g.Name] && !g.Repeatable {
			continue
		}
		if triggered(g, intents, groups, joined) {
			fired = g.Name
			p.state.completed[g.Name] = true
			break
		}
	}

	var completed []string
	next := ""
	for _, g := range p.goals {
		if p.state.completed[g.Name] {
			completed = append(completed, g.Name)
		} else if next == "" {
			next = g.Name
		}
	}
	return value.NewGoalAdvancement(fired, fired != "", next, completed), nil
}

func triggered(g GoalDef, intents, groups []string, text string) bool {
	for _, i := range g.Intents {
		if slices.Contains(intents, i) {
			return true
		}
	}
	for _, k := range g.Keywords {
		if slices.Contains(groups, k) {
			return true
		}
	}
	for _, ph := range g.Phrases {
		if ph != "" && strings.Contains(text, strings.ToLower(ph)) {
			return true
		}
	}
	return false
}
