package contract

import (
	"context"

	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredInteractionEmbedding wraps InteractionEmbedding with its similarity score
type ScoredInteractionEmbedding struct {
	Embedding  *entity.InteractionEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type InteractionEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.InteractionEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.InteractionEmbedding) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.InteractionEmbedding, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.InteractionEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar orders by cosine distance within one session's rows.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*entity.InteractionEmbedding, error)
	// SearchSimilarWithScore additionally filters by a similarity threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID, threshold float64) ([]*ScoredInteractionEmbedding, error)
}
