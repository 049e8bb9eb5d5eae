package value

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
)

// Value is any payload carried on an edge.
type Value interface {
	Kind() Kind
	isValue()
}

// Handled is implemented by values that may be backed by an external resource.
type Handled interface {
	Handle() *resource.Handle
}

// HandleOf returns the resource handle behind v, if any.
func HandleOf(v Value) *resource.Handle {
	if h, ok := v.(Handled); ok {
		return h.Handle()
	}
	return nil
}

// Discard releases the owning reference of the handle behind v. It is for
// values that were produced but will never be delivered.
func Discard(v Value) {
	if h := HandleOf(v); h != nil {
		h.Release()
	}
}

// Text is a UTF-8 string.
type Text struct{ text string }

func NewText(s string) Text       { return Text{text: s} }
func (Text) Kind() Kind           { return KindText }
func (Text) isValue()             {}
func (t Text) String() string     { return t.text }

// TextChunks is an ordered sequence of text fragments, e.g. sentences ready
// for incremental synthesis.
type TextChunks struct{ chunks []string }

func NewTextChunks(chunks ...string) TextChunks { return TextChunks{chunks: slices.Clone(chunks)} }
func (TextChunks) Kind() Kind                   { return KindTextChunks }
func (TextChunks) isValue()                     {}
func (c TextChunks) Chunks() []string           { return slices.Clone(c.chunks) }
func (c TextChunks) Len() int                   { return len(c.chunks) }
func (c TextChunks) Join(sep string) string     { return strings.Join(c.chunks, sep) }

// Audio is a PCM or encoded audio buffer.
type Audio struct {
	data       []byte
	sampleRate int
	format     string
	handle     *resource.Handle
}

// NewAudio copies data. format is free-form ("pcm_s16le", "wav", "mp3").
func NewAudio(data []byte, sampleRate int, format string) Audio {
	return Audio{data: slices.Clone(data), sampleRate: sampleRate, format: format}
}

// WithHandle returns a copy of a backed by h.
func (a Audio) WithHandle(h *resource.Handle) Audio {
	a.handle = h
	return a
}

func (Audio) Kind() Kind                 { return KindAudio }
func (Audio) isValue()                   {}
func (a Audio) Data() []byte             { return slices.Clone(a.data) }
func (a Audio) Len() int                 { return len(a.data) }
func (a Audio) SampleRate() int          { return a.sampleRate }
func (a Audio) Format() string           { return a.format }
func (a Audio) Handle() *resource.Handle { return a.handle }

// Embedding is a dense vector.
type Embedding struct{ vector []float32 }

func NewEmbedding(v []float32) Embedding { return Embedding{vector: slices.Clone(v)} }
func (Embedding) Kind() Kind             { return KindEmbedding }
func (Embedding) isValue()               {}
func (e Embedding) Vector() []float32    { return slices.Clone(e.vector) }

// IntentMatch is one scored intent.
type IntentMatch struct {
	Name  string
	Score float64
}

// IntentMatches is ordered by descending score.
type IntentMatches struct{ matches []IntentMatch }

func NewIntentMatches(m ...IntentMatch) IntentMatches {
	sorted := slices.Clone(m)
	slices.SortStableFunc(sorted, func(a, b IntentMatch) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return IntentMatches{matches: sorted}
}
func (IntentMatches) Kind() Kind                 { return KindIntentMatches }
func (IntentMatches) isValue()                   {}
func (m IntentMatches) Matches() []IntentMatch   { return slices.Clone(m.matches) }
func (m IntentMatches) Len() int                 { return len(m.matches) }

// Top returns the highest scoring match.
func (m IntentMatches) Top() (IntentMatch, bool) {
	if len(m.matches) == 0 {
		return IntentMatch{}, false
	}
	return m.matches[0], true
}

// KeywordMatch records which keyword of which group fired.
type KeywordMatch struct {
	Group   string
	Keyword string
}

// KeywordMatches preserves detection order.
type KeywordMatches struct{ matches []KeywordMatch }

func NewKeywordMatches(m ...KeywordMatch) KeywordMatches {
	return KeywordMatches{matches: slices.Clone(m)}
}
func (KeywordMatches) Kind() Kind                  { return KindKeywordMatches }
func (KeywordMatches) isValue()                    {}
func (m KeywordMatches) Matches() []KeywordMatch   { return slices.Clone(m.matches) }
func (m KeywordMatches) Len() int                  { return len(m.matches) }

// Groups returns the distinct matched group names in detection order.
func (m KeywordMatches) Groups() []string {
	var groups []string
	for _, km := range m.matches {
		if !slices.Contains(groups, km.Group) {
			groups = append(groups, km.Group)
		}
	}
	return groups
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolCalls preserves model order.
type ToolCalls struct{ calls []ToolCall }

func NewToolCalls(calls ...ToolCall) ToolCalls {
	cp := make([]ToolCall, len(calls))
	for i, c := range calls {
		c.Arguments = maps.Clone(c.Arguments)
		cp[i] = c
	}
	return ToolCalls{calls: cp}
}
func (ToolCalls) Kind() Kind { return KindToolCalls }
func (ToolCalls) isValue()   {}
func (c ToolCalls) Len() int { return len(c.calls) }
func (c ToolCalls) Calls() []ToolCall {
	return NewToolCalls(c.calls...).calls
}

// Tool describes a callable tool exposed by an MCP server.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolList is the result of tool enumeration.
type ToolList struct{ tools []Tool }

func NewToolList(tools ...Tool) ToolList {
	cp := make([]Tool, len(tools))
	for i, t := range tools {
		t.InputSchema = maps.Clone(t.InputSchema)
		cp[i] = t
	}
	return ToolList{tools: cp}
}
func (ToolList) Kind() Kind    { return KindToolList }
func (ToolList) isValue()      {}
func (l ToolList) Len() int    { return len(l.tools) }
func (l ToolList) Tools() []Tool {
	return NewToolList(l.tools...).tools
}

// Names returns the tool names in listing order.
func (l ToolList) Names() []string {
	names := make([]string, len(l.tools))
	for i, t := range l.tools {
		names[i] = t.Name
	}
	return names
}

// GoalAdvancement reports which goal, if any, the latest turn completed.
type GoalAdvancement struct {
	goal      string
	advanced  bool
	next      string
	completed []string
}

func NewGoalAdvancement(goal string, advanced bool, next string, completed []string) GoalAdvancement {
	return GoalAdvancement{goal: goal, advanced: advanced, next: next, completed: slices.Clone(completed)}
}
func (GoalAdvancement) Kind() Kind               { return KindGoalAdvancement }
func (GoalAdvancement) isValue()                 {}
func (g GoalAdvancement) Goal() string           { return g.goal }
func (g GoalAdvancement) Advanced() bool         { return g.advanced }
func (g GoalAdvancement) Next() string           { return g.next }
func (g GoalAdvancement) Completed() []string    { return slices.Clone(g.completed) }

// Safety is a pass/fail verdict with an explanation.
type Safety struct {
	safe        bool
	explanation string
	topics      []string
}

func NewSafety(safe bool, explanation string, topics ...string) Safety {
	return Safety{safe: safe, explanation: explanation, topics: slices.Clone(topics)}
}
func (Safety) Kind() Kind              { return KindSafety }
func (Safety) isValue()                {}
func (s Safety) Safe() bool            { return s.safe }
func (s Safety) Explanation() string   { return s.explanation }
func (s Safety) Topics() []string      { return slices.Clone(s.topics) }

// MemoryRecord is one remembered utterance.
type MemoryRecord struct {
	Text string
	At   time.Time
}

// Memory is a snapshot of stored records, oldest first.
type Memory struct{ records []MemoryRecord }

func NewMemory(records ...MemoryRecord) Memory { return Memory{records: slices.Clone(records)} }
func (Memory) Kind() Kind                      { return KindMemory }
func (Memory) isValue()                        {}
func (m Memory) Records() []MemoryRecord       { return slices.Clone(m.records) }
func (m Memory) Len() int                      { return len(m.records) }

// Passage is a retrieved knowledge snippet.
type Passage struct {
	Source string
	Text   string
	Score  float64
}

// Knowledge is ordered by descending relevance.
type Knowledge struct{ passages []Passage }

func NewKnowledge(p ...Passage) Knowledge  { return Knowledge{passages: slices.Clone(p)} }
func (Knowledge) Kind() Kind               { return KindKnowledge }
func (Knowledge) isValue()                 {}
func (k Knowledge) Passages() []Passage    { return slices.Clone(k.passages) }
func (k Knowledge) Len() int               { return len(k.passages) }

// Raw is an opaque binary payload.
type Raw struct {
	contentType string
	data        []byte
	handle      *resource.Handle
}

func NewRaw(contentType string, data []byte) Raw {
	return Raw{contentType: contentType, data: slices.Clone(data)}
}

// WithHandle returns a copy of r backed by h.
func (r Raw) WithHandle(h *resource.Handle) Raw {
	r.handle = h
	return r
}

func (Raw) Kind() Kind                 { return KindRaw }
func (Raw) isValue()                   {}
func (r Raw) ContentType() string      { return r.contentType }
func (r Raw) Data() []byte             { return slices.Clone(r.data) }
func (r Raw) Handle() *resource.Handle { return r.handle }

// Tuple pairs the values delivered on a node's inbound edges, in slot order.
type Tuple struct{ items []Value }

func NewTuple(items ...Value) Tuple { return Tuple{items: slices.Clone(items)} }
func (Tuple) Kind() Kind            { return KindTuple }
func (Tuple) isValue()              {}
func (t Tuple) Items() []Value      { return slices.Clone(t.items) }
func (t Tuple) Len() int            { return len(t.items) }

// Flatten returns the tuple items, or v itself as a one element slice.
func Flatten(v Value) []Value {
	if t, ok := v.(Tuple); ok {
		return t.Items()
	}
	if v == nil {
		return nil
	}
	return []Value{v}
}
