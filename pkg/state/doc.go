// Package state loads and saves per-scope layer snapshots and assembles them
// into a chainmap.Chain.
//
// Store implementations only load or save one snapshot for one Ref. Resolver
// loads a snapshot per requested scope, orders them through
// chainmap.NewStack, and writes a single layer back through Commit or Mutate.
//
// Data flow:
//
//	Store -> Resolver.Resolve -> chainmap.NewStack(...) -> *chainmap.Chain[K, V]
//	*chainmap.Chain[K, V] -> Resolver.Commit -> Store
//
// Meta.SnapshotID is copied into the layer's Scope.Metadata under
// MetadataSnapshotID, which makes it visible through Chain.Trace and activity
// events.
package state
