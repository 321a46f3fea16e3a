package chainmap

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

const (
	// Recommended priorities for the usual lookup order. Higher numbers win.
	ScopePriorityDefaults    = 100
	ScopePriorityConfig      = 200
	ScopePriorityEnvironment = 300
	ScopePriorityFlags       = 400
)

var (
	// ErrScopeNameRequired indicates a layer without a scope name.
	ErrScopeNameRequired = errors.New("chainmap: scope name must be provided")
	// ErrDuplicateScopeName indicates two layers share a scope name.
	ErrDuplicateScopeName = errors.New("chainmap: scope names must be unique")
	// ErrPriorityOrder indicates two layers share a priority.
	ErrPriorityOrder = errors.New("chainmap: scope priorities must be strictly ordered")
)

// Layer pairs a scope with the mapping it names. The mapping is shared, not
// copied.
type Layer[K comparable, V any] struct {
	Scope   Scope
	Mapping Mapping[K, V]
}

// NewLayer pairs scope with mapping.
func NewLayer[K comparable, V any](scope Scope, mapping Mapping[K, V]) Layer[K, V] {
	return Layer[K, V]{Scope: scope.clone(), Mapping: mapping}
}

// MapLayer pairs scope with a plain map, sharing it.
func MapLayer[K comparable, V any](scope Scope, m map[K]V) Layer[K, V] {
	if m == nil {
		m = map[K]V{}
	}
	return NewLayer[K, V](scope, Map[K, V](m))
}

// NewStack validates the scoped layers and returns a chain ordered from the
// highest priority (layer 0) to the lowest (root). Nil mappings are replaced
// by empty maps so every named scope keeps its position.
func NewStack[K comparable, V any](layers []Layer[K, V], opts ...Option) (*Chain[K, V], error) {
	ordered := make([]Layer[K, V], len(layers))
	seen := make(map[string]struct{}, len(layers))
	for i, layer := range layers {
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seen[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seen[layer.Scope.Name] = struct{}{}
		if layer.Mapping == nil {
			layer.Mapping = Map[K, V]{}
		}
		layer.Scope = layer.Scope.clone()
		ordered[i] = layer
	}

	slices.SortStableFunc(ordered, func(a, b Layer[K, V]) int {
		return cmp.Compare(b.Scope.Priority, a.Scope.Priority)
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Scope.Priority == ordered[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %s and %s share %d", ErrPriorityOrder,
				ordered[i-1].Scope.Name, ordered[i].Scope.Name, ordered[i].Scope.Priority)
		}
	}

	mappings := make([]Mapping[K, V], len(ordered))
	scopes := make([]Scope, len(ordered))
	for i, layer := range ordered {
		mappings[i] = layer.Mapping
		scopes[i] = layer.Scope
	}
	cfg := applyOptions(opts)
	return newChain(mappings, scopes, policyFor[K, V](cfg.mode), cfg), nil
}

// Scope returns the scope attached to layer index, or a zero Scope when the
// index is out of range.
func (c *Chain[K, V]) Scope(index int) Scope {
	if index < 0 || index >= len(c.scopes) {
		return Scope{}
	}
	return c.scopes[index].clone()
}

// LayerNamed returns the mapping whose scope is name.
func (c *Chain[K, V]) LayerNamed(name string) (Mapping[K, V], bool) {
	if name == "" {
		return nil, false
	}
	for i, scope := range c.scopes {
		if scope.Name == name {
			return c.layers[i], true
		}
	}
	return nil, false
}
