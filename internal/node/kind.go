package node

import (
	"fmt"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Kind names a built-in node type. It matches the HCL block label.
type Kind string

const (
	KindSTT               Kind = "stt"
	KindTTS               Kind = "tts"
	KindLLMChat           Kind = "llm_chat"
	KindLLMCompletion     Kind = "llm_completion"
	KindIntent            Kind = "intent"
	KindKeywordMatcher    Kind = "keyword_matcher"
	KindMemoryUpdate      Kind = "memory_update"
	KindMemoryRetrieve    Kind = "memory_retrieve"
	KindSafetyChecker     Kind = "safety_checker"
	KindTextAggregator    Kind = "text_aggregator"
	KindTextChunking      Kind = "text_chunking"
	KindGoalAdvancement   Kind = "goal_advancement"
	KindRandomCannedText  Kind = "random_canned_text"
	KindMCPListTools      Kind = "mcp_list_tools"
	KindKnowledgeRetrieve Kind = "knowledge_retrieve"
)

// Signature is the static typing of a kind: what it accepts and what it
// may produce. An empty Accepts set accepts anything.
type Signature struct {
	Accepts  value.KindSet
	Produces value.KindSet
}

var signatures = map[Kind]Signature{
	KindSTT:               {value.KindSet{value.KindAudio}, value.KindSet{value.KindText}},
	KindTTS:               {value.KindSet{value.KindText, value.KindTextChunks}, value.KindSet{value.KindAudio}},
	KindLLMChat:           {value.KindSet{value.KindText, value.KindMemory, value.KindKnowledge, value.KindToolList}, value.KindSet{value.KindText, value.KindToolCalls}},
	KindLLMCompletion:     {value.KindSet{value.KindText}, value.KindSet{value.KindText}},
	KindIntent:            {value.KindSet{value.KindText}, value.KindSet{value.KindIntentMatches}},
	KindKeywordMatcher:    {value.KindSet{value.KindText}, value.KindSet{value.KindKeywordMatches}},
	KindMemoryUpdate:      {value.KindSet{value.KindText}, value.KindSet{value.KindMemory}},
	KindMemoryRetrieve:    {value.KindSet{value.KindText}, value.KindSet{value.KindMemory}},
	KindSafetyChecker:     {value.KindSet{value.KindText}, value.KindSet{value.KindSafety}},
	KindTextAggregator:    {value.KindSet{value.KindText, value.KindTextChunks}, value.KindSet{value.KindText}},
	KindTextChunking:      {value.KindSet{value.KindText}, value.KindSet{value.KindTextChunks}},
	KindGoalAdvancement:   {value.KindSet{value.KindIntentMatches, value.KindKeywordMatches, value.KindText}, value.KindSet{value.KindGoalAdvancement}},
	KindRandomCannedText:  {nil, value.KindSet{value.KindText}},
	KindMCPListTools:      {nil, value.KindSet{value.KindToolList}},
	KindKnowledgeRetrieve: {value.KindSet{value.KindText}, value.KindSet{value.KindKnowledge}},
}

// SignatureOf returns the typing of k.
func SignatureOf(k Kind) (Signature, bool) {
	s, ok := signatures[k]
	return s, ok
}

// Kinds lists every built-in kind.
func Kinds() []Kind {
	return []Kind{
		KindSTT, KindTTS, KindLLMChat, KindLLMCompletion, KindIntent,
		KindKeywordMatcher, KindMemoryUpdate, KindMemoryRetrieve,
		KindSafetyChecker, KindTextAggregator, KindTextChunking,
		KindGoalAdvancement, KindRandomCannedText, KindMCPListTools,
		KindKnowledgeRetrieve,
	}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := signatures[k]; !ok {
		return "", fmt.Errorf("unknown node kind '%s'", s)
	}
	return k, nil
}
