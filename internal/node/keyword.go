package node

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// KeywordGroup is a named set of keywords or short phrases.
type KeywordGroup struct {
	Name     string   `hcl:"name,label"`
	Keywords []string `hcl:"keywords"`
	Remain   hcl.Body `hcl:",remain"`
}

// KeywordMatcherConfig configures whole-word keyword detection.
type KeywordMatcherConfig struct {
	Groups        []KeywordGroup `hcl:"group,block"`
	CaseSensitive bool           `hcl:"case_sensitive,optional"`
	Remain        hcl.Body       `hcl:",remain"`
}

func (*KeywordMatcherConfig) Kind() Kind { return KindKeywordMatcher }

func (c *KeywordMatcherConfig) build(*buildEnv) (processor, error) {
	if len(c.Groups) == 0 {
		return nil, configErr("group", "at least one keyword group is required")
	}
	p := &keywordProcessor{caseSensitive: c.CaseSensitive}
	for _, g := range c.Groups {
		if g.Name == "" {
			return nil, configErr("group", "group name is required")
		}
		kg := keywordGroup{name: g.Name}
		for _, kw := range g.Keywords {
			toks := tokenize(kw, c.CaseSensitive)
			if len(toks) == 0 {
				continue
			}
			kg.keywords = append(kg.keywords, kw)
			kg.tokens = append(kg.tokens, toks)
		}
		if len(kg.tokens) == 0 {
			return nil, configErr("group", fmt.Sprintf("group '%s' has no keywords", g.Name))
		}
		p.groups = append(p.groups, kg)
	}
	return p, nil
}

type keywordGroup struct {
	name     string
	keywords []string
	tokens   [][]string
}

type keywordProcessor struct {
	groups        []keywordGroup
	caseSensitive bool
}

func (p *keywordProcessor) process(_ *invocation.Context, items []value.Value) (value.Value, error) {
	all := texts(items)
	if len(all) == 0 {
		return nil, missingInput(value.KindText)
	}
	words := tokenize(strings.Join(all, " "), p.caseSensitive)

	var matches []value.KeywordMatch
	for _, g := range p.groups {
		for i, kw := range g.tokens {
			if containsSeq(words, kw) {
				matches = append(matches, value.KeywordMatch{Group: g.name, Keyword: g.keywords[i]})
			}
		}
	}
	return value.NewKeywordMatches(matches...), nil
}

// tokenize splits s into words, dropping punctuation.
func tokenize(s string, caseSensitive bool) []string {
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func containsSeq(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(words); i++ {
		for j := range seq {
			if words[i+j] != seq[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
