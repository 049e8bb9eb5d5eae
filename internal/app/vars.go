package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadVars reads the YAML variables file, if any, and overlays the
// command-line vars on top of it. Scalar values are stringified so the
// graph loader converts them to each variable's declared type.
func loadVars(path string, overrides map[string]string) (map[string]string, error) {
	vars := map[string]string{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read vars file: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse vars file %s: %w", path, err)
		}
		for name, v := range raw {
			switch v.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("vars file %s: variable %q must be a scalar", path, name)
			case nil:
				vars[name] = ""
			default:
				vars[name] = fmt.Sprint(v)
			}
		}
	}
	for name, v := range overrides {
		vars[name] = v
	}
	return vars, nil
}
