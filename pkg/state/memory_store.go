package state

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier. Every Save
// issues a new etag and, when the caller supplied none, a new snapshot id.
// Snapshots are copied on the way in and out. Save compares and swaps the
// etag under one lock.
type MemoryStore[K comparable, V any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[K, V]
	now     func() time.Time
}

type memoryRecord[K comparable, V any] struct {
	snapshot map[K]V
	meta     Meta
}

func NewMemoryStore[K comparable, V any]() *MemoryStore[K, V] {
	return &MemoryStore[K, V]{
		records: map[string]memoryRecord[K, V]{},
		now:     time.Now,
	}
}

func (s *MemoryStore[K, V]) Load(_ context.Context, ref Ref) (map[K]V, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return maps.Clone(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[K, V]) Save(_ context.Context, ref Ref, snapshot map[K]V, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	stored := cloneMeta(meta)
	if stored.SnapshotID == "" {
		stored.SnapshotID = uuid.NewString()
	}
	stored.ETag = uuid.NewString()
	stored.UpdatedAt = s.now()

	copied := maps.Clone(snapshot)
	if copied == nil {
		copied = map[K]V{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.records[key]; ok && meta.ETag != "" && current.meta.ETag != meta.ETag {
		return cloneMeta(current.meta), fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.meta.ETag)
	}
	s.records[key] = memoryRecord[K, V]{snapshot: copied, meta: stored}
	return cloneMeta(stored), nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra != nil {
		out.Extra = maps.Clone(meta.Extra)
	}
	return out
}
