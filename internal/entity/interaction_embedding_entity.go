package entity

import (
	"time"

	"github.com/google/uuid"
)

// InteractionEmbedding is one embedded chunk of a persisted chat exchange,
// used for durable cross-restart semantic retrieval.
type InteractionEmbedding struct {
	Id             uuid.UUID
	Document       string
	EmbeddingValue []float32
	ChatSessionId  uuid.UUID
	ChunkIndex     int
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
