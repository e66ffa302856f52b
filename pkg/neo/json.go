package neo

import (
	"encoding/json"
	"fmt"
)

// extraFields returns the members of a JSON object that are not in known.
// Returns nil when there are none.
func extraFields(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeFields encodes extra and fields as one JSON object. fields win on
// key collision.
func mergeFields(extra map[string]json.RawMessage, fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(fields))
	for key, raw := range extra {
		out[key] = raw
	}
	for key, value := range fields {
		out[key] = value
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal object: %w", err)
	}
	return data, nil
}
