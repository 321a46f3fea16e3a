// Package layering deep-merges nested key/value snapshots ordered from the
// strongest layer to the weakest.
package layering

// Merge composes layers ordered from strongest (index 0) to weakest. Nested
// map[string]any values are merged key by key so a stronger layer only
// overrides the leaves it sets; any other value from a stronger layer
// replaces the weaker one outright. The result shares nothing with the
// inputs except leaf values.
func Merge(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		merged = mergeMap(layers[i], merged)
	}
	return merged
}

func mergeMap(strong, weak map[string]any) map[string]any {
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = value
	}
	for key, value := range strong {
		existing, ok := result[key]
		if !ok {
			result[key] = Clone(value)
			continue
		}
		result[key] = mergeValue(value, existing)
	}
	return result
}

func mergeValue(strong, weak any) any {
	strongMap, ok := strong.(map[string]any)
	if !ok {
		return Clone(strong)
	}
	weakMap, ok := weak.(map[string]any)
	if !ok {
		return Clone(strong)
	}
	if strongMap == nil {
		return Clone(weakMap)
	}
	return mergeMap(strongMap, weakMap)
}

// Clone copies nested maps and slices of any so callers can mutate the
// result without touching the source layer.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		if typed == nil {
			return typed
		}
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	default:
		return value
	}
}
