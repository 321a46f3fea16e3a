package chainmap

import (
	"maps"

	"github.com/goliatone/go-chainmap/layering"
)

// Merged flattens c like ToMap, except that nested map[string]any values are
// merged across layers instead of shadowed: an inner layer overrides only the
// nested keys it sets. The result is a deep copy.
func Merged(c *Chain[string, any]) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	snapshots := make([]map[string]any, len(c.layers))
	for i, layer := range c.layers {
		snapshots[i] = maps.Collect(layer.All())
	}
	return layering.Merge(snapshots...)
}
