// Package toolargs decodes the JSON arguments that language models attach to
// tool calls. Models regularly emit almost-JSON, so a failed decode is
// retried on a repaired copy.
package toolargs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Parse decodes raw into an object. Empty input yields an empty map.
func Parse(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	err := json.Unmarshal([]byte(raw), &args)
	if err == nil {
		return args, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return nil, fmt.Errorf("tool arguments are not valid JSON and could not be repaired: %w (repair: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("tool arguments are not a JSON object after repair: %w", err)
	}
	return args, nil
}
