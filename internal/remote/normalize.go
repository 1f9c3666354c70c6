package remote

import (
	"encoding/json"

	"github.com/consentry/consentry/internal/registry"
)

// normalizeList is the single point where the registry's list response
// shapes are interpreted. The service has shipped both a wrapped object
// ({"<key>": [...]}) and a bare array; anything else yields an empty
// list so callers never see a partially decoded payload.
func normalizeList[T any](data []byte, key string) []T {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if raw, ok := wrapped[key]; ok {
			var items []T
			if err := json.Unmarshal(raw, &items); err == nil && items != nil {
				return items
			}
		}
		return []T{}
	}

	var bare []T
	if err := json.Unmarshal(data, &bare); err == nil && bare != nil {
		return bare
	}

	return []T{}
}

func normalizeConsentList(data []byte) []registry.ConsentRecord {
	return normalizeList[registry.ConsentRecord](data, "consents")
}
