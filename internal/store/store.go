package store

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a query matches no rows.
var ErrNotFound = errors.New("not found")

// decodeJSONMap unmarshals a jsonb column into a map. A corrupt payload
// degrades to an empty map with a logged warning instead of failing the
// whole read.
func decodeJSONMap(raw []byte, context string) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		zap.L().Warn("corrupt json payload, using empty default",
			zap.String("context", context),
			zap.Error(err))
		return map[string]any{}
	}
	if m == nil {
		return map[string]any{}
	}
	return m
}

// encodeJSONMap marshals a map for a jsonb column; nil maps become {}.
func encodeJSONMap(m map[string]any) []byte {
	if m == nil {
		m = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
