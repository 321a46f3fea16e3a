package chainmap

import (
	"fmt"
	"iter"
	"maps"
	"strings"
)

// Chain is a read/write view over an ordered list of mappings. Layer 0 is the
// innermost scope and is consulted first; the last layer is the root.
//
// A Chain never copies the mappings it is built from. It performs no locking:
// callers sharing layers across goroutines must synchronize access.
type Chain[K comparable, V any] struct {
	layers []Mapping[K, V]
	scopes []Scope
	policy WritePolicy[K, V]
	cfg    config
	id     string
}

// New builds a chain over layers, index 0 first. Nil layers are skipped and an
// empty Map is substituted when nothing remains.
func New[K comparable, V any](layers []Mapping[K, V], opts ...Option) *Chain[K, V] {
	cfg := applyOptions(opts)
	return newChain(layers, nil, policyFor[K, V](cfg.mode), cfg)
}

// NewDeep builds a chain whose writes and deletes reach the first layer that
// already holds the key.
func NewDeep[K comparable, V any](layers []Mapping[K, V], opts ...Option) *Chain[K, V] {
	return New(layers, append(opts, WithDeepWrites())...)
}

// Of builds a front-writing chain over plain maps, sharing each one.
func Of[K comparable, V any](layers ...map[K]V) *Chain[K, V] {
	mappings := make([]Mapping[K, V], 0, len(layers))
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		mappings = append(mappings, Map[K, V](layer))
	}
	return New(mappings)
}

func newChain[K comparable, V any](layers []Mapping[K, V], scopes []Scope, policy WritePolicy[K, V], cfg config) *Chain[K, V] {
	kept := make([]Mapping[K, V], 0, len(layers))
	keptScopes := make([]Scope, 0, len(layers))
	for i, layer := range layers {
		if layer == nil {
			continue
		}
		kept = append(kept, layer)
		if i < len(scopes) {
			keptScopes = append(keptScopes, scopes[i])
		} else {
			keptScopes = append(keptScopes, Scope{})
		}
	}
	if len(kept) == 0 {
		kept = append(kept, Map[K, V]{})
		keptScopes = append(keptScopes, Scope{})
	}
	c := &Chain[K, V]{
		layers: kept,
		scopes: keptScopes,
		policy: policy,
		cfg:    cfg,
	}
	c.id = cfg.chainID()
	return c
}

// Get returns the value from the first layer holding key. A miss returns an
// error matching ErrKeyNotFound and is logged like a Delete miss. Lookup,
// GetOr and Contains never log.
func (c *Chain[K, V]) Get(key K) (V, error) {
	if value, ok := c.Lookup(key); ok {
		return value, nil
	}
	var zero V
	err := keyNotFound("get", key)
	c.logMiss("get", key, err)
	return zero, err
}

// Lookup is the comma-ok form of Get.
func (c *Chain[K, V]) Lookup(key K) (V, bool) {
	for _, layer := range c.layers {
		if value, ok := layer.Lookup(key); ok {
			return value, true
		}
	}
	var zero V
	return zero, false
}

// GetOr returns fallback when key is absent from every layer.
func (c *Chain[K, V]) GetOr(key K, fallback V) V {
	if value, ok := c.Lookup(key); ok {
		return value
	}
	return fallback
}

// Contains reports whether any layer holds key.
func (c *Chain[K, V]) Contains(key K) bool {
	return firstLayerWith(c.layers, key) >= 0
}

// Set stores value in the layer chosen by the write policy.
func (c *Chain[K, V]) Set(key K, value V) {
	target := c.policy.SetTarget(c.layers, key)
	old, existed := c.layers[target].Lookup(key)
	c.layers[target].Store(key, value)
	c.recordSet(key, target, old, existed, value)
}

// Delete removes key from the layer chosen by the write policy. Under the
// default policy only layer 0 is considered, even if deeper layers hold key.
func (c *Chain[K, V]) Delete(key K) error {
	_, err := c.Pop(key)
	return err
}

// Pop removes key like Delete and returns the value it held.
func (c *Chain[K, V]) Pop(key K) (V, error) {
	var zero V
	target, ok := c.policy.DeleteTarget(c.layers, key)
	if !ok {
		err := keyNotFound("delete", key)
		c.logMiss("delete", key, err)
		return zero, err
	}
	old, _ := c.layers[target].Lookup(key)
	if !c.layers[target].Remove(key) {
		err := keyNotFound("delete", key)
		c.logMiss("delete", key, err)
		return zero, err
	}
	c.recordDelete(key, target, old)
	return old, nil
}

// Clear empties layer 0. Deeper layers are left untouched.
func (c *Chain[K, V]) Clear() {
	front := c.layers[0]
	keys := make([]K, 0, front.Len())
	for key := range front.All() {
		keys = append(keys, key)
	}
	for _, key := range keys {
		front.Remove(key)
	}
	c.recordClear(len(keys))
}

// Update sets every pair in order.
func (c *Chain[K, V]) Update(pairs iter.Seq2[K, V]) {
	for key, value := range pairs {
		c.Set(key, value)
	}
}

// Keys yields each distinct key once, in first-occurrence order scanning from
// layer 0. The sequence is lazy and can be ranged over repeatedly.
func (c *Chain[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range c.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Values yields the effective value of each key in Keys order.
func (c *Chain[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, value := range c.All() {
			if !yield(value) {
				return
			}
		}
	}
}

// All yields each distinct key with its effective value.
func (c *Chain[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		seen := make(map[K]struct{})
		for _, layer := range c.layers {
			for key, value := range layer.All() {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(key, value) {
					return
				}
			}
		}
	}
}

// Len counts distinct keys across all layers.
func (c *Chain[K, V]) Len() int {
	if len(c.layers) == 1 {
		return c.layers[0].Len()
	}
	n := 0
	for range c.Keys() {
		n++
	}
	return n
}

// ToMap flattens the chain into a new map holding the effective values.
func (c *Chain[K, V]) ToMap() map[K]V {
	out := make(map[K]V)
	for i := len(c.layers) - 1; i >= 0; i-- {
		for key, value := range c.layers[i].All() {
			out[key] = value
		}
	}
	return out
}

// NewChild returns a chain with a new front layer prepended. When extra is
// omitted a fresh empty Map is used. All existing layers are shared.
func (c *Chain[K, V]) NewChild(extra ...Mapping[K, V]) *Chain[K, V] {
	var front Mapping[K, V]
	if len(extra) > 0 && extra[0] != nil {
		front = extra[0]
	} else {
		front = Map[K, V]{}
	}
	layers := make([]Mapping[K, V], 0, len(c.layers)+1)
	layers = append(layers, front)
	layers = append(layers, c.layers...)
	scopes := make([]Scope, 0, len(c.scopes)+1)
	scopes = append(scopes, Scope{})
	scopes = append(scopes, c.scopes...)
	child := newChain(layers, scopes, c.policy, c.cfg.derive())
	c.recordChild(child)
	return child
}

// Parents returns a view over every layer except layer 0. On a single-layer
// chain the view holds one fresh empty Map.
func (c *Chain[K, V]) Parents() *Chain[K, V] {
	return newChain(c.layers[1:], c.scopes[1:], c.policy, c.cfg.derive())
}

// Copy returns a chain whose front layer is a shallow copy of this chain's
// front layer. Deeper layers stay shared.
func (c *Chain[K, V]) Copy() *Chain[K, V] {
	front := Map[K, V](maps.Collect(c.layers[0].All()))
	layers := append([]Mapping[K, V]{front}, c.layers[1:]...)
	return newChain(layers, c.scopes, c.policy, c.cfg.derive())
}

// WithPolicy returns a view over the same layers that routes writes through
// policy.
func (c *Chain[K, V]) WithPolicy(policy WritePolicy[K, V]) *Chain[K, V] {
	if policy == nil {
		policy = FrontWrites[K, V]{}
	}
	view := *c
	view.policy = policy
	return &view
}

// Layers returns the layer list, index 0 first. The slice is a copy; the
// mappings are not.
func (c *Chain[K, V]) Layers() []Mapping[K, V] {
	return append([]Mapping[K, V](nil), c.layers...)
}

// Scopes returns the scope attached to each layer, aligned with Layers.
func (c *Chain[K, V]) Scopes() []Scope {
	out := make([]Scope, len(c.scopes))
	for i := range c.scopes {
		out[i] = c.scopes[i].clone()
	}
	return out
}

// Current returns layer 0.
func (c *Chain[K, V]) Current() Mapping[K, V] {
	return c.layers[0]
}

// Root returns the last layer.
func (c *Chain[K, V]) Root() Mapping[K, V] {
	return c.layers[len(c.layers)-1]
}

// Depth returns the number of layers.
func (c *Chain[K, V]) Depth() int {
	return len(c.layers)
}

// ID identifies the chain in activity events. It is empty unless activity
// emission is enabled or WithChainID was supplied.
func (c *Chain[K, V]) ID() string {
	return c.id
}

func (c *Chain[K, V]) String() string {
	var b strings.Builder
	b.WriteString("Chain[")
	for i, layer := range c.layers {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("{")
		n := 0
		for key, value := range layer.All() {
			if n > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%v: %v", key, value)
			n++
		}
		b.WriteString("}")
	}
	b.WriteString("]")
	return b.String()
}
