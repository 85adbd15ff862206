package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultRegistryCapacity bounds the number of live session orchestrators.
const DefaultRegistryCapacity = 1000

// BuildFunc reconstructs an Assistant for a cold session id, replaying its
// persisted interactions into a fresh memory. Cost is proportional to the
// history length, which is exactly what the registry amortizes.
type BuildFunc func(ctx context.Context, sessionID uuid.UUID) (*Assistant, error)

// Registry is a bounded LRU of session orchestrators. Eviction simply
// discards state: persistence already happened incrementally, so an evicted
// session is rebuilt from the database on next access.
type Registry struct {
	cache  *lru.Cache[string, *Assistant]
	flight singleflight.Group
	build  BuildFunc
}

func NewRegistry(capacity int, build BuildFunc) (*Registry, error) {
	if capacity <= 0 {
		capacity = DefaultRegistryCapacity
	}
	cache, err := lru.New[string, *Assistant](capacity)
	if err != nil {
		return nil, fmt.Errorf("create registry cache: %w", err)
	}
	return &Registry{cache: cache, build: build}, nil
}

// GetOrCreate returns the cached orchestrator for the session, rebuilding
// it on a cold id. Concurrent first access for the same id performs exactly
// one reconstruction (single-flight).
func (r *Registry) GetOrCreate(ctx context.Context, sessionID uuid.UUID) (*Assistant, error) {
	key := sessionID.String()
	if assistant, ok := r.cache.Get(key); ok {
		return assistant, nil
	}

	v, err, _ := r.flight.Do(key, func() (interface{}, error) {
		// A racing caller may have populated the cache while we waited.
		if assistant, ok := r.cache.Get(key); ok {
			return assistant, nil
		}
		assistant, err := r.build(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, assistant)
		return assistant, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Assistant), nil
}

// Peek returns the cached orchestrator without building, for operations
// like Stop that must not trigger an expensive replay.
func (r *Registry) Peek(sessionID uuid.UUID) (*Assistant, bool) {
	return r.cache.Peek(sessionID.String())
}

// Evict removes and discards the session's in-memory state.
func (r *Registry) Evict(sessionID uuid.UUID) {
	r.cache.Remove(sessionID.String())
}

func (r *Registry) Len() int {
	return r.cache.Len()
}
