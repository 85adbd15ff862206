package chat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-learnpath-be/internal/pkg/logger"
)

func countingBuild(t *testing.T, builds *atomic.Int64) BuildFunc {
	t.Helper()
	return func(ctx context.Context, sessionID uuid.UUID) (*Assistant, error) {
		builds.Add(1)
		provider := newFakeProvider("answer")
		memory := newTestMemory(t, stubEmbedder{})
		gen := NewGenerator(provider, memory, GeneratorConfig{})
		return NewAssistant(sessionID, memory, gen, newFakeHistory(), provider, logger.Nop(), AssistantConfig{}), nil
	}
}

func TestRegistryReturnsSameAssistant(t *testing.T) {
	var builds atomic.Int64
	reg, err := NewRegistry(10, countingBuild(t, &builds))
	require.NoError(t, err)

	sessionID := uuid.New()
	first, err := reg.GetOrCreate(context.Background(), sessionID)
	require.NoError(t, err)
	second, err := reg.GetOrCreate(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Same(t, first, second, "repeated access must share session state")
	assert.Equal(t, int64(1), builds.Load())
}

func TestRegistryConcurrentFirstAccessBuildsOnce(t *testing.T) {
	var builds atomic.Int64
	reg, err := NewRegistry(10, countingBuild(t, &builds))
	require.NoError(t, err)

	sessionID := uuid.New()
	const callers = 16

	results := make([]*Assistant, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := reg.GetOrCreate(context.Background(), sessionID)
			assert.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), builds.Load(), "racing cold reads must reconstruct once")
	for _, a := range results[1:] {
		assert.Same(t, results[0], a)
	}
}

func TestRegistryEvictForcesRebuild(t *testing.T) {
	var builds atomic.Int64
	reg, err := NewRegistry(10, countingBuild(t, &builds))
	require.NoError(t, err)

	sessionID := uuid.New()
	first, err := reg.GetOrCreate(context.Background(), sessionID)
	require.NoError(t, err)

	reg.Evict(sessionID)
	_, ok := reg.Peek(sessionID)
	assert.False(t, ok)

	second, err := reg.GetOrCreate(context.Background(), sessionID)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "an evicted session is rebuilt from scratch")
	assert.Equal(t, int64(2), builds.Load())
}

func TestRegistryBuildErrorIsNotCached(t *testing.T) {
	var builds atomic.Int64
	var fail atomic.Bool
	fail.Store(true)
	inner := countingBuild(t, &builds)
	reg, err := NewRegistry(10, func(ctx context.Context, sessionID uuid.UUID) (*Assistant, error) {
		if fail.Load() {
			return nil, fmt.Errorf("history load failed")
		}
		return inner(ctx, sessionID)
	})
	require.NoError(t, err)

	sessionID := uuid.New()
	_, err = reg.GetOrCreate(context.Background(), sessionID)
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())

	fail.Store(false)
	a, err := reg.GetOrCreate(context.Background(), sessionID)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryBoundsLiveSessions(t *testing.T) {
	var builds atomic.Int64
	reg, err := NewRegistry(3, countingBuild(t, &builds))
	require.NoError(t, err)

	oldest := uuid.New()
	_, err = reg.GetOrCreate(context.Background(), oldest)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = reg.GetOrCreate(context.Background(), uuid.New())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, reg.Len(), "capacity caps live session count")
	_, ok := reg.Peek(oldest)
	assert.False(t, ok, "the least recently used session is evicted first")
}
