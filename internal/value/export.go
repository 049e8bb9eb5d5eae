package value

import "encoding/base64"

// Export renders v as a JSON-friendly map for sinks and logs.
func Export(v Value) map[string]any {
	if v == nil {
		return nil
	}
	out := map[string]any{"kind": v.Kind().String()}
	switch x := v.(type) {
	case Text:
		out["text"] = x.String()
	case TextChunks:
		out["chunks"] = x.Chunks()
	case Audio:
		out["format"] = x.Format()
		out["sample_rate"] = x.SampleRate()
		out["bytes"] = x.Len()
		out["data"] = base64.StdEncoding.EncodeToString(x.data)
	case Embedding:
		out["dimensions"] = len(x.vector)
	case IntentMatches:
		matches := make([]map[string]any, 0, x.Len())
		for _, m := range x.matches {
			matches = append(matches, map[string]any{"name": m.Name, "score": m.Score})
		}
		out["matches"] = matches
	case KeywordMatches:
		matches := make([]map[string]any, 0, x.Len())
		for _, m := range x.matches {
			matches = append(matches, map[string]any{"group": m.Group, "keyword": m.Keyword})
		}
		out["matches"] = matches
	case ToolCalls:
		calls := make([]map[string]any, 0, x.Len())
		for _, c := range x.calls {
			calls = append(calls, map[string]any{"id": c.ID, "name": c.Name, "arguments": c.Arguments})
		}
		out["calls"] = calls
	case ToolList:
		out["tools"] = x.Names()
	case GoalAdvancement:
		out["goal"] = x.goal
		out["advanced"] = x.advanced
		out["next"] = x.next
		out["completed"] = x.Completed()
	case Safety:
		out["safe"] = x.safe
		out["explanation"] = x.explanation
		out["topics"] = x.Topics()
	case Memory:
		texts := make([]string, 0, x.Len())
		for _, r := range x.records {
			texts = append(texts, r.Text)
		}
		out["records"] = texts
	case Knowledge:
		passages := make([]map[string]any, 0, x.Len())
		for _, p := range x.passages {
			passages = append(passages, map[string]any{"source": p.Source, "text": p.Text, "score": p.Score})
		}
		out["passages"] = passages
	case Raw:
		out["content_type"] = x.contentType
		out["bytes"] = len(x.data)
	case Tuple:
		items := make([]map[string]any, 0, x.Len())
		for _, item := range x.items {
			items = append(items, Export(item))
		}
		out["items"] = items
	}
	return out
}
