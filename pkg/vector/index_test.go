package vector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-learnpath-be/pkg/embedding"
)

// fakeEmbedder embeds texts deterministically: known phrases get fixed
// directions so similarity ordering is predictable in tests.
type fakeEmbedder struct {
	calls   atomic.Int64
	failing bool
	vectors map[string][]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}}
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.Response, error) {
	f.calls.Add(1)
	if f.failing {
		return nil, fmt.Errorf("embedder unavailable")
	}
	if vec, ok := f.vectors[text]; ok {
		return &embedding.Response{Embedding: embedding.ResponseEmbedding{Values: vec}}, nil
	}
	// Hash-free default: spread unknown texts over a byte-sum direction
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return &embedding.Response{
		Embedding: embedding.ResponseEmbedding{Values: embedding.NormalizeVector([]float32{sum, 1, 0})},
	}, nil
}

func (f *fakeEmbedder) set(text string, vec []float32) {
	f.vectors[text] = embedding.NormalizeVector(vec)
}

func TestIndexAddAndSearchOrdering(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder()
	emb.set("hash tables", []float32{1, 0, 0})
	emb.set("collision resolution", []float32{0.9, 0.1, 0})
	emb.set("french cooking", []float32{0, 0, 1})
	emb.set("query: hashing", []float32{1, 0.05, 0})

	ix := NewIndex(emb)
	require.NoError(t, ix.Add(ctx, "hash tables", "french cooking", "collision resolution"))

	results, err := ix.Search(ctx, "query: hashing", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "hash tables", results[0])
	assert.Equal(t, "collision resolution", results[1])
}

func TestIndexRejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder()
	ix := NewIndex(emb)

	tests := []struct {
		name  string
		texts []string
	}{
		{name: "empty string", texts: []string{""}},
		{name: "whitespace only", texts: []string{"   "}},
		{name: "empty among valid", texts: []string{"valid", "\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ix.Add(ctx, tt.texts...)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0, ix.Len(), "failed add must not mutate the index")
		})
	}
}

func TestIndexSearchValidation(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex(newFakeEmbedder())

	_, err := ix.Search(ctx, "", 3)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ix.Search(ctx, "ok", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIndexSurfacesEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder()
	emb.failing = true
	ix := NewIndex(emb)

	err := ix.Add(ctx, "some text")
	assert.ErrorIs(t, err, ErrRetrieval)

	emb.failing = false
	require.NoError(t, ix.Add(ctx, "some text"))
	emb.failing = true

	_, err = ix.Search(ctx, "query", 1)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestIndexClearReplacesEverything(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder()
	ix := NewIndex(emb)

	require.NoError(t, ix.Add(ctx, "old one", "old two"))
	require.NoError(t, ix.Clear(ctx, "new seed"))

	assert.Equal(t, 1, ix.Len())
	results, err := ix.Search(ctx, "anything at all", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"new seed"}, results)
}

func TestIndexClearKeepsOldRecordsOnSeedFailure(t *testing.T) {
	ctx := context.Background()
	emb := newFakeEmbedder()
	ix := NewIndex(emb)
	require.NoError(t, ix.Add(ctx, "survivor"))

	emb.failing = true
	err := ix.Clear(ctx, "seed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetrieval))
	assert.Equal(t, 1, ix.Len(), "failed clear must leave the old records in place")
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
