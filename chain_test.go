package chainmap

import (
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"testing"
)

func TestChainScenariosFromFixture(t *testing.T) {
	fx := loadChainFixture(t, "chain_scenarios.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			layers := make([]Mapping[string, float64], len(tc.Layers))
			for i, layer := range tc.Layers {
				if layer == nil {
					layer = map[string]float64{}
				}
				layers[i] = Map[string, float64](layer)
			}
			var opts []Option
			if tc.Policy == "deep" {
				opts = append(opts, WithDeepWrites())
			}
			chain := New(layers, opts...)

			for _, op := range tc.Ops {
				var err error
				switch op.Op {
				case "set":
					chain.Set(op.Key, op.Value)
				case "delete":
					err = chain.Delete(op.Key)
				default:
					t.Fatalf("unknown op %q", op.Op)
				}
				if op.ExpectErr != "" {
					if err == nil || !strings.Contains(err.Error(), op.ExpectErr) {
						t.Fatalf("%s %q: expected error containing %q, got %v", op.Op, op.Key, op.ExpectErr, err)
					}
					if !errors.Is(err, ErrKeyNotFound) {
						t.Fatalf("%s %q: expected ErrKeyNotFound, got %v", op.Op, op.Key, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("%s %q: unexpected error: %v", op.Op, op.Key, err)
				}
			}

			for key, want := range tc.ExpectGet {
				got, err := chain.Get(key)
				if err != nil {
					t.Fatalf("get %q: %v", key, err)
				}
				if got != want {
					t.Fatalf("get %q: want %v got %v", key, want, got)
				}
			}
			for _, key := range tc.ExpectMissing {
				if _, err := chain.Get(key); !errors.Is(err, ErrKeyNotFound) {
					t.Fatalf("get %q: expected ErrKeyNotFound, got %v", key, err)
				}
				if chain.Contains(key) {
					t.Fatalf("contains %q: expected false", key)
				}
			}
			for i, want := range tc.ExpectLayers {
				if want == nil {
					want = map[string]float64{}
				}
				got := map[string]float64(tc.Layers[i])
				if got == nil {
					got = map[string]float64{}
				}
				if !reflect.DeepEqual(want, got) {
					t.Fatalf("layer %d: want %v got %v", i, want, got)
				}
			}
			if got := chain.Len(); got != tc.ExpectLen {
				t.Fatalf("len: want %d got %d", tc.ExpectLen, got)
			}
		})
	}
}

func TestChainSpecExample(t *testing.T) {
	front := map[string]int{"a": 1}
	back := map[string]int{"a": 2, "b": 3}
	chain := Of(front, back)

	if got, _ := chain.Get("b"); got != 3 {
		t.Fatalf("expected b=3, got %d", got)
	}
	if got, _ := chain.Get("a"); got != 1 {
		t.Fatalf("expected a=1, got %d", got)
	}
	if chain.Len() != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", chain.Len())
	}

	chain.Set("a", 9)
	if back["a"] != 2 {
		t.Fatalf("front write must not touch deeper layer, got %d", back["a"])
	}
	if got, _ := chain.Get("a"); got != 9 {
		t.Fatalf("expected a=9 after set, got %d", got)
	}

	deepFront := map[string]int{"a": 1}
	deepBack := map[string]int{"a": 2, "b": 3}
	deep := NewDeep([]Mapping[string, int]{Map[string, int](deepFront), Map[string, int](deepBack)})
	deep.Set("b", 9)
	if deepBack["b"] != 9 {
		t.Fatalf("deep write should land in layer 1, got %d", deepBack["b"])
	}
	if _, ok := deepFront["b"]; ok {
		t.Fatalf("deep write must not touch layer 0")
	}
}

func TestChainEmptyConstructionSubstitutesLayer(t *testing.T) {
	chain := New[string, int](nil)
	if chain.Depth() != 1 {
		t.Fatalf("expected one substituted layer, got %d", chain.Depth())
	}
	if chain.Len() != 0 {
		t.Fatalf("expected empty chain, got %d keys", chain.Len())
	}
	chain.Set("k", 1)
	if got, err := chain.Get("k"); err != nil || got != 1 {
		t.Fatalf("expected k=1, got %d (%v)", got, err)
	}

	skipped := New([]Mapping[string, int]{nil, nil})
	if skipped.Depth() != 1 {
		t.Fatalf("nil layers should be skipped, got depth %d", skipped.Depth())
	}
}

func TestChainGetMissReturnsKeyError(t *testing.T) {
	chain := Of(map[string]int{"a": 1})
	_, err := chain.Get("missing")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	var keyErr *KeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("expected *KeyError, got %T", err)
	}
	if keyErr.Key != "missing" || keyErr.Op != "get" {
		t.Fatalf("unexpected key error payload: %+v", keyErr)
	}
	if got := chain.GetOr("missing", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if _, ok := chain.Lookup("missing"); ok {
		t.Fatalf("expected Lookup miss")
	}
}

func TestChainKeysFirstOccurrenceOrder(t *testing.T) {
	first := NewOrderedMap[string, int]()
	first.Store("c", 1)
	first.Store("a", 1)
	second := NewOrderedMap[string, int]()
	second.Store("a", 2)
	second.Store("b", 2)
	second.Store("c", 2)
	third := NewOrderedMap[string, int]()
	third.Store("d", 3)
	third.Store("b", 3)

	chain := New([]Mapping[string, int]{first, second, third})

	keys := slices.Collect(chain.Keys())
	if want := []string{"c", "a", "b", "d"}; !slices.Equal(want, keys) {
		t.Fatalf("unexpected key order: want %v got %v", want, keys)
	}
	// restartable
	if again := slices.Collect(chain.Keys()); !slices.Equal(keys, again) {
		t.Fatalf("second enumeration differs: %v vs %v", keys, again)
	}

	items := maps.Collect(chain.All())
	if want := map[string]int{"a": 1, "b": 2, "c": 1, "d": 3}; !maps.Equal(want, items) {
		t.Fatalf("unexpected items: want %v got %v", want, items)
	}
	values := slices.Collect(chain.Values())
	if want := []int{1, 1, 2, 3}; !slices.Equal(want, values) {
		t.Fatalf("unexpected values: want %v got %v", want, values)
	}
}

func TestChainKeysStopEarly(t *testing.T) {
	chain := Of(map[string]int{"a": 1, "b": 2}, map[string]int{"c": 3})
	n := 0
	for range chain.Keys() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected early exit after one key, got %d", n)
	}
}

func TestChainLenCountsDistinctKeys(t *testing.T) {
	chain := Of(
		map[string]int{"a": 1, "b": 1},
		map[string]int{"b": 2, "c": 2},
		map[string]int{"a": 3, "c": 3, "d": 3},
	)
	if got := chain.Len(); got != 4 {
		t.Fatalf("expected 4 distinct keys (not 7), got %d", got)
	}
}

func TestChainToMapMatchesGet(t *testing.T) {
	chain := Of(
		map[string]string{"music": "bach"},
		map[string]string{"art": "van gogh", "opera": "carmen"},
		map[string]string{"music": "mozart", "art": "rembrandt"},
	)
	flat := chain.ToMap()
	if len(flat) != chain.Len() {
		t.Fatalf("flattened size %d differs from Len %d", len(flat), chain.Len())
	}
	for key, value := range flat {
		got, err := chain.Get(key)
		if err != nil || got != value {
			t.Fatalf("ToMap[%q]=%q but Get returned %q (%v)", key, value, got, err)
		}
	}
	if flat["art"] != "van gogh" || flat["music"] != "bach" {
		t.Fatalf("unexpected precedence: %v", flat)
	}
}

func TestChainAliasesUnderlyingMaps(t *testing.T) {
	shared := map[string]int{"a": 1}
	chain := Of(map[string]int{}, shared)

	shared["b"] = 2
	if got, err := chain.Get("b"); err != nil || got != 2 {
		t.Fatalf("external mutation should be visible, got %d (%v)", got, err)
	}
}

func TestNewChildIsolation(t *testing.T) {
	root := Of(map[string]int{"x": 0})
	d := root.NewChild()
	e := root.NewChild()

	d.Set("x", 1)
	if got, _ := d.Get("x"); got != 1 {
		t.Fatalf("expected d[x]=1, got %d", got)
	}
	if got, _ := e.Get("x"); got != 0 {
		t.Fatalf("sibling must not see d's layer, got %d", got)
	}
	if got, _ := root.Get("x"); got != 0 {
		t.Fatalf("parent must not see child's layer, got %d", got)
	}
	if d.Depth() != 2 || root.Depth() != 1 {
		t.Fatalf("unexpected depths d=%d root=%d", d.Depth(), root.Depth())
	}

	// deeper layers stay shared
	root.Set("y", 5)
	if got, _ := d.Get("y"); got != 5 {
		t.Fatalf("child should see parent writes to shared layers, got %d", got)
	}
}

func TestNewChildWithExtraMapping(t *testing.T) {
	root := Of(map[string]int{"a": 1})
	extra := map[string]int{"a": 10}
	child := root.NewChild(Map[string, int](extra))
	if got, _ := child.Get("a"); got != 10 {
		t.Fatalf("extra mapping should be layer 0, got %d", got)
	}
	child.Set("b", 2)
	if extra["b"] != 2 {
		t.Fatalf("writes should land in the supplied mapping")
	}
}

func TestNewChildInheritsPolicy(t *testing.T) {
	rootLayer := map[string]int{"a": 1}
	root := NewDeep([]Mapping[string, int]{Map[string, int](rootLayer)})
	child := root.NewChild()
	child.Set("a", 2)
	if rootLayer["a"] != 2 {
		t.Fatalf("deep policy should carry over to children, root a=%d", rootLayer["a"])
	}
}

func TestParents(t *testing.T) {
	front := map[string]int{"a": 1}
	back := map[string]int{"a": 2}
	chain := Of(front, back)

	parents := chain.Parents()
	if parents.Depth() != 1 {
		t.Fatalf("expected one parent layer, got %d", parents.Depth())
	}
	if got, _ := parents.Get("a"); got != 2 {
		t.Fatalf("expected parent view a=2, got %d", got)
	}

	root := parents.Parents()
	if root.Depth() != 1 || root.Len() != 0 {
		t.Fatalf("parents of a single-layer chain should be one empty layer, got depth=%d len=%d", root.Depth(), root.Len())
	}
	root.Set("z", 1)
	if _, ok := back["z"]; ok {
		t.Fatalf("substituted root layer must be private")
	}
}

func TestLayerAccessors(t *testing.T) {
	front := map[string]int{"a": 1}
	back := map[string]int{"b": 2}
	chain := Of(front, back)

	layers := chain.Layers()
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	layers[0] = nil
	if chain.Current() == nil {
		t.Fatalf("Layers must return a copy of the slice")
	}
	if _, ok := chain.Current().Lookup("a"); !ok {
		t.Fatalf("Current should be the front layer")
	}
	if _, ok := chain.Root().Lookup("b"); !ok {
		t.Fatalf("Root should be the last layer")
	}
}

func TestPopClearUpdateCopy(t *testing.T) {
	front := map[string]int{"a": 1, "b": 2}
	back := map[string]int{"a": 10, "c": 30}
	chain := Of(front, back)

	value, err := chain.Pop("a")
	if err != nil || value != 1 {
		t.Fatalf("expected pop a=1, got %d (%v)", value, err)
	}
	if got, _ := chain.Get("a"); got != 10 {
		t.Fatalf("expected shadowed a=10 after pop, got %d", got)
	}

	chain.Update(maps.All(map[string]int{"d": 4, "e": 5}))
	if front["d"] != 4 || front["e"] != 5 {
		t.Fatalf("update should write to front layer, got %v", front)
	}

	copied := chain.Copy()
	copied.Set("b", 99)
	if front["b"] != 2 {
		t.Fatalf("copy must not share its front layer, got %d", front["b"])
	}
	copied.Parents().Set("c", 31)
	if back["c"] != 31 {
		t.Fatalf("copy must share deeper layers")
	}

	chain.Clear()
	if len(front) != 0 {
		t.Fatalf("clear should empty the front layer, got %v", front)
	}
	if len(back) != 2 {
		t.Fatalf("clear must not touch deeper layers, got %v", back)
	}
}

func TestChainString(t *testing.T) {
	chain := Of(map[string]int{"a": 1}, map[string]int{})
	if got, want := chain.String(), "Chain[{a: 1}, {}]"; got != want {
		t.Fatalf("unexpected string: want %q got %q", want, got)
	}
}

func TestWithPolicyInjectsCustomPolicy(t *testing.T) {
	front := map[string]int{}
	back := map[string]int{"a": 1}
	chain := Of(front, back)

	rootOnly := chain.WithPolicy(rootWrites[string, int]{})
	rootOnly.Set("z", 26)
	if back["z"] != 26 {
		t.Fatalf("custom policy should route writes to the root, got %v", back)
	}
	if err := rootOnly.Delete("a"); err != nil {
		t.Fatalf("delete via custom policy: %v", err)
	}
	if _, ok := back["a"]; ok {
		t.Fatalf("expected a removed from root")
	}

	chain.Set("y", 1)
	if front["y"] != 1 {
		t.Fatalf("original view should keep the front policy")
	}
}

type rootWrites[K comparable, V any] struct{}

func (rootWrites[K, V]) SetTarget(layers []Mapping[K, V], _ K) int {
	return len(layers) - 1
}

func (rootWrites[K, V]) DeleteTarget(layers []Mapping[K, V], key K) (int, bool) {
	last := len(layers) - 1
	_, ok := layers[last].Lookup(key)
	return last, ok
}

type chainFixture struct {
	Description string             `json:"description"`
	Cases       []chainFixtureCase `json:"cases"`
}

type chainFixtureCase struct {
	Name          string               `json:"name"`
	Policy        string               `json:"policy"`
	Layers        []map[string]float64 `json:"layers"`
	Ops           []chainFixtureOp     `json:"ops"`
	ExpectGet     map[string]float64   `json:"expect_get"`
	ExpectMissing []string             `json:"expect_missing"`
	ExpectLayers  []map[string]float64 `json:"expect_layers"`
	ExpectLen     int                  `json:"expect_len"`
}

type chainFixtureOp struct {
	Op        string  `json:"op"`
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	ExpectErr string  `json:"expect_err"`
}

func loadChainFixture(t *testing.T, name string) chainFixture {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read chain fixture %q: %v", name, err)
	}
	var fx chainFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal chain fixture %q: %v", name, err)
	}
	return fx
}
