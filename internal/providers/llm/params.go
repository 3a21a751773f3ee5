package llm

import (
	"encoding/json"

	"github.com/sandevgo/vexd/internal/core"
)

// mergeGenParams folds the non-nil generation parameters into the request
// payload. GenParams carries omitempty tags on every field, so a JSON
// round-trip yields exactly the set fields.
func mergeGenParams(payload map[string]any, gen *core.GenParams) map[string]any {
	if gen == nil {
		return payload
	}

	data, err := json.Marshal(gen)
	if err != nil {
		return payload
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return payload
	}

	for k, v := range fields {
		payload[k] = v
	}
	return payload
}
