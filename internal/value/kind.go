package value

import "fmt"

// Kind enumerates the payload variants.
type Kind int

const (
	KindInvalid Kind = iota
	KindText
	KindTextChunks
	KindAudio
	KindEmbedding
	KindIntentMatches
	KindKeywordMatches
	KindToolCalls
	KindToolList
	KindGoalAdvancement
	KindSafety
	KindMemory
	KindKnowledge
	KindRaw
	KindTuple
)

var kindNames = map[Kind]string{
	KindText:            "text",
	KindTextChunks:      "text_chunks",
	KindAudio:           "audio",
	KindEmbedding:       "embedding",
	KindIntentMatches:   "intent_matches",
	KindKeywordMatches:  "keyword_matches",
	KindToolCalls:       "tool_calls",
	KindToolList:        "tool_list",
	KindGoalAdvancement: "goal_advancement",
	KindSafety:          "safety",
	KindMemory:          "memory",
	KindKnowledge:       "knowledge",
	KindRaw:             "raw",
	KindTuple:           "tuple",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown value kind %q", s)
}

// KindSet is a small set of kinds used to declare what a node accepts.
type KindSet []Kind

// Contains reports whether k is in the set. An empty set accepts anything.
func (s KindSet) Contains(k Kind) bool {
	if len(s) == 0 {
		return true
	}
	for _, want := range s {
		if want == k {
			return true
		}
	}
	return false
}

func (s KindSet) String() string {
	if len(s) == 0 {
		return "any"
	}
	out := ""
	for i, k := range s {
		if i > 0 {
			out += "|"
		}
		out += k.String()
	}
	return out
}
