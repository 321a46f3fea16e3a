package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	chainmap "github.com/goliatone/go-chainmap"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrScopeNotInChain = errors.New("state: scope not present in chain")

const (
	// MetadataSnapshotID is the Scope.Metadata key holding the snapshot id of
	// a resolved layer.
	MetadataSnapshotID = "snapshot_id"
	// MetadataETag is the Scope.Metadata key holding the etag of a resolved
	// layer.
	MetadataETag = "etag"
	// MetadataScopeID is the Scope.Metadata key that qualifies a scope, such
	// as a user or tenant id.
	MetadataScopeID = "id"

	// DefaultsScopeName is reserved for the layer ResolveWithDefaults appends.
	DefaultsScopeName = "defaults"
)

// Ref identifies one persisted snapshot for one domain.
type Ref struct {
	Domain string
	Scope  chainmap.Scope
}

// Identifier returns the deterministic storage key for r: "<scope>/<domain>"
// or, when the scope carries an id, "<scope>/<id>/<domain>".
func (r Ref) Identifier() (string, error) {
	if r.Domain == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	if r.Scope.Name == "" {
		return "", fmt.Errorf("state: scope name is required")
	}
	raw, ok := r.Scope.Metadata[MetadataScopeID]
	if !ok {
		return fmt.Sprintf("%s/%s", r.Scope.Name, r.Domain), nil
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("state: metadata key %q for scope %q must be a non-empty string", MetadataScopeID, r.Scope.Name)
	}
	return fmt.Sprintf("%s/%s/%s", r.Scope.Name, id, r.Domain), nil
}

// Meta is storage-owned metadata used for provenance and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one layer snapshot for a single Ref.
//
// Save must be a compare-and-set: when meta.ETag is non-empty and differs
// from the stored etag, it must store nothing and return an error wrapping
// ErrETagMismatch. An empty meta.ETag is an unconditional write. The
// resolver's own etag checks only fail fast; Save is what makes Commit and
// Mutate safe against concurrent writers.
type Store[K comparable, V any] interface {
	Load(ctx context.Context, ref Ref) (snapshot map[K]V, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot map[K]V, meta Meta) (Meta, error)
}

// Resolver assembles chains from stored snapshots.
type Resolver[K comparable, V any] struct {
	Store Store[K, V]
	// Options are applied to every chain the resolver builds.
	Options []chainmap.Option
}

// Mutator edits a single-layer chain over one snapshot.
type Mutator[K comparable, V any] func(*chainmap.Chain[K, V]) error

// Resolve loads a snapshot for each scope and returns them as a chain ordered
// by priority. Scopes with no stored snapshot get an empty layer so writes to
// that scope still have a home.
func (r Resolver[K, V]) Resolve(ctx context.Context, domain string, scopes ...chainmap.Scope) (*chainmap.Chain[K, V], error) {
	if err := r.validate(domain); err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: at least one scope is required")
	}
	layers, err := r.load(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	chain, err := chainmap.NewStack(layers, r.Options...)
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	return chain, nil
}

// ResolveWithDefaults behaves like Resolve and appends defaults as the root
// layer, below every requested scope.
func (r Resolver[K, V]) ResolveWithDefaults(ctx context.Context, domain string, defaults map[K]V, scopes ...chainmap.Scope) (*chainmap.Chain[K, V], error) {
	if err := r.validate(domain); err != nil {
		return nil, err
	}
	used := make(map[int]struct{}, len(scopes))
	lowest := 0
	for i, scope := range scopes {
		if scope.Name == DefaultsScopeName {
			return nil, fmt.Errorf("state: scope name %q is reserved", DefaultsScopeName)
		}
		used[scope.Priority] = struct{}{}
		if i == 0 || scope.Priority < lowest {
			lowest = scope.Priority
		}
	}
	priority := lowest
	if len(scopes) > 0 {
		priority = lowest - 1
	}
	for {
		if _, taken := used[priority]; !taken {
			break
		}
		priority--
	}

	layers, err := r.load(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	if defaults == nil {
		defaults = map[K]V{}
	}
	defaultsScope := chainmap.NewScope(DefaultsScopeName, priority, chainmap.WithScopeLabel("Defaults"))
	layers = append(layers, chainmap.MapLayer(defaultsScope, defaults))

	chain, err := chainmap.NewStack(layers, r.Options...)
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	return chain, nil
}

// Commit saves the layer of chain whose scope is name. The layer's etag, if
// any, guards against concurrent writers.
func (r Resolver[K, V]) Commit(ctx context.Context, domain string, chain *chainmap.Chain[K, V], name string) (Meta, error) {
	if err := r.validate(domain); err != nil {
		return Meta{}, err
	}
	if chain == nil {
		return Meta{}, fmt.Errorf("state: chain is required")
	}
	layer, ok := chain.LayerNamed(name)
	if !ok {
		return Meta{}, fmt.Errorf("%w: %q", ErrScopeNotInChain, name)
	}
	var scope chainmap.Scope
	for _, candidate := range chain.Scopes() {
		if candidate.Name == name {
			scope = candidate
			break
		}
	}
	ref := Ref{Domain: domain, Scope: scope}
	expected, _ := scope.Metadata[MetadataETag].(string)

	_, current, found, err := r.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q for scope %q: %w", domain, name, err)
	}
	if found && expected != "" && current.ETag != "" && current.ETag != expected {
		return current, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, current.ETag)
	}

	snapshot := maps.Collect(layer.All())
	saved, err := r.Store.Save(ctx, ref, snapshot, current)
	if err != nil {
		return current, fmt.Errorf("state: save %q for scope %q: %w", domain, name, err)
	}
	return saved, nil
}

// Mutate loads one snapshot, applies fn to a single-layer chain over it and
// saves the result. A non-empty meta.ETag must match the stored etag.
func (r Resolver[K, V]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[K, V]) (*chainmap.Chain[K, V], Meta, error) {
	if err := r.validate(ref.Domain); err != nil {
		return nil, Meta{}, err
	}
	if ref.Scope.Name == "" {
		return nil, Meta{}, fmt.Errorf("state: scope name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loaded, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok {
		snapshot = map[K]V{}
		loaded = Meta{}
	}
	if meta.ETag != "" && loaded.ETag != "" && meta.ETag != loaded.ETag {
		return nil, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}

	working := maps.Clone(snapshot)
	if working == nil {
		working = map[K]V{}
	}
	layer := chainmap.MapLayer(ref.Scope, working)
	chain, err := chainmap.NewStack([]chainmap.Layer[K, V]{layer}, r.Options...)
	if err != nil {
		return nil, loaded, fmt.Errorf("state: stack: %w", err)
	}
	if err := fn(chain); err != nil {
		return nil, loaded, err
	}

	saved, err := r.Store.Save(ctx, ref, working, mergeMeta(loaded, meta))
	if err != nil {
		return nil, loaded, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	return chain, saved, nil
}

func (r Resolver[K, V]) validate(domain string) error {
	if r.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return fmt.Errorf("state: domain is required")
	}
	return nil
}

func (r Resolver[K, V]) load(ctx context.Context, domain string, scopes []chainmap.Scope) ([]chainmap.Layer[K, V], error) {
	layers := make([]chainmap.Layer[K, V], 0, len(scopes)+1)
	for _, scope := range scopes {
		snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok || snapshot == nil {
			snapshot = map[K]V{}
		}
		layers = append(layers, chainmap.MapLayer(withMeta(scope, meta), snapshot))
	}
	return layers, nil
}

func withMeta(scope chainmap.Scope, meta Meta) chainmap.Scope {
	if meta.SnapshotID == "" && meta.ETag == "" {
		return scope
	}
	metadata := make(map[string]any, len(scope.Metadata)+2)
	for key, value := range scope.Metadata {
		metadata[key] = value
	}
	if meta.SnapshotID != "" {
		metadata[MetadataSnapshotID] = meta.SnapshotID
	}
	if meta.ETag != "" {
		metadata[MetadataETag] = meta.ETag
	}
	scope.Metadata = metadata
	return scope
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
