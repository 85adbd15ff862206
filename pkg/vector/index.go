package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"ai-learnpath-be/pkg/embedding"
)

// record pairs a stored text with the vector computed at insertion time.
type record struct {
	text   string
	vector []float32
}

// Index is an in-memory similarity index over short text fragments.
// Texts are embedded on Add and retrieved nearest-first by cosine
// similarity. The index is append-only between Clear calls; Clear replaces
// the whole record set atomically.
type Index struct {
	mu       sync.RWMutex
	embedder embedding.Provider
	records  []record
}

func NewIndex(embedder embedding.Provider) *Index {
	return &Index{embedder: embedder}
}

// Add embeds each text and appends it to the index.
// Fails on the first empty text without mutating the index.
func (ix *Index) Add(ctx context.Context, texts ...string) error {
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return ErrInvalidInput
		}
	}

	added := make([]record, 0, len(texts))
	for _, text := range texts {
		resp, err := ix.embedder.Generate(ctx, text, embedding.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("%w: embed %q: %v", ErrRetrieval, truncate(text, 32), err)
		}
		added = append(added, record{text: text, vector: resp.Embedding.Values})
	}

	ix.mu.Lock()
	ix.records = append(ix.records, added...)
	ix.mu.Unlock()
	return nil
}

// Search returns up to k stored texts, most similar first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}

	resp, err := ix.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrieval, err)
	}
	queryVec := resp.Embedding.Values

	ix.mu.RLock()
	type scored struct {
		text  string
		score float32
	}
	candidates := make([]scored, len(ix.records))
	for i, rec := range ix.records {
		candidates[i] = scored{text: rec.text, score: CosineSimilarity(queryVec, rec.vector)}
	}
	ix.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]string, k)
	for i := 0; i < k; i++ {
		results[i] = candidates[i].text
	}
	return results, nil
}

// Clear discards all stored vectors and re-seeds the index in one swap.
// A failed seed embedding leaves the old records untouched.
func (ix *Index) Clear(ctx context.Context, seeds ...string) error {
	fresh := make([]record, 0, len(seeds))
	for _, seed := range seeds {
		if strings.TrimSpace(seed) == "" {
			continue
		}
		resp, err := ix.embedder.Generate(ctx, seed, embedding.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("%w: embed seed: %v", ErrRetrieval, err)
		}
		fresh = append(fresh, record{text: seed, vector: resp.Embedding.Values})
	}

	ix.mu.Lock()
	ix.records = fresh
	ix.mu.Unlock()
	return nil
}

// Len reports the number of stored records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
