package memory

import (
	"time"

	"ai-learnpath-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionStateRepository struct {
	cache *cache.Cache
}

func NewSessionStateRepository() *SessionStateRepository {
	// Default expiration of 1 hour, expired entries purged every 10 minutes.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionStateRepository{
		cache: c,
	}
}

func (r *SessionStateRepository) Save(state *store.SessionState) {
	state.UpdatedAt = time.Now()
	r.cache.Set(state.ID, state, cache.DefaultExpiration)
}

func (r *SessionStateRepository) Get(sessionID string) (*store.SessionState, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.SessionState), true
	}
	return nil, false
}

func (r *SessionStateRepository) SetGenerating(sessionID string, generating bool) {
	state, ok := r.Get(sessionID)
	if !ok {
		state = &store.SessionState{ID: sessionID}
	}
	state.Generating = generating
	r.Save(state)
}

func (r *SessionStateRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
