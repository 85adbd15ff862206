package mapper

import (
	"time"

	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type InteractionEmbeddingMapper struct{}

func NewInteractionEmbeddingMapper() *InteractionEmbeddingMapper {
	return &InteractionEmbeddingMapper{}
}

func (m *InteractionEmbeddingMapper) ToEntity(e *model.InteractionEmbedding) *entity.InteractionEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.InteractionEmbedding{
		Id:             e.Id,
		Document:       e.Document,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		ChatSessionId:  e.ChatSessionId,
		ChunkIndex:     e.ChunkIndex,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *InteractionEmbeddingMapper) ToModel(e *entity.InteractionEmbedding) *model.InteractionEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	} else if e.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.InteractionEmbedding{
		Id:             e.Id,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		ChatSessionId:  e.ChatSessionId,
		ChunkIndex:     e.ChunkIndex,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *InteractionEmbeddingMapper) ToEntities(models []*model.InteractionEmbedding) []*entity.InteractionEmbedding {
	entities := make([]*entity.InteractionEmbedding, len(models))
	for i, e := range models {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
