package chainmap

// WritePolicy decides which layer a mutation lands in. Policies only pick a
// target; the Chain performs the write, so a policy can never leave a
// partial mutation behind.
type WritePolicy[K comparable, V any] interface {
	// SetTarget returns the index of the layer that receives key.
	SetTarget(layers []Mapping[K, V], key K) int
	// DeleteTarget returns the index of the layer key is removed from, or
	// false when the policy finds nothing to remove.
	DeleteTarget(layers []Mapping[K, V], key K) (int, bool)
}

// FrontWrites confines every mutation to layer 0. Deeper layers are only
// ever shadowed.
type FrontWrites[K comparable, V any] struct{}

func (FrontWrites[K, V]) SetTarget([]Mapping[K, V], K) int {
	return 0
}

func (FrontWrites[K, V]) DeleteTarget(layers []Mapping[K, V], key K) (int, bool) {
	if _, ok := layers[0].Lookup(key); ok {
		return 0, true
	}
	return 0, false
}

// DeepWrites updates and removes the first existing occurrence of a key.
// New keys still land in layer 0.
type DeepWrites[K comparable, V any] struct{}

func (DeepWrites[K, V]) SetTarget(layers []Mapping[K, V], key K) int {
	if i := firstLayerWith(layers, key); i >= 0 {
		return i
	}
	return 0
}

func (DeepWrites[K, V]) DeleteTarget(layers []Mapping[K, V], key K) (int, bool) {
	i := firstLayerWith(layers, key)
	return i, i >= 0
}

// WriteMode selects a built-in policy through an Option.
type WriteMode int

const (
	WriteModeFront WriteMode = iota
	WriteModeDeep
)

func (m WriteMode) String() string {
	switch m {
	case WriteModeDeep:
		return "deep"
	default:
		return "front"
	}
}

func policyFor[K comparable, V any](mode WriteMode) WritePolicy[K, V] {
	if mode == WriteModeDeep {
		return DeepWrites[K, V]{}
	}
	return FrontWrites[K, V]{}
}

func firstLayerWith[K comparable, V any](layers []Mapping[K, V], key K) int {
	for i, layer := range layers {
		if _, ok := layer.Lookup(key); ok {
			return i
		}
	}
	return -1
}
