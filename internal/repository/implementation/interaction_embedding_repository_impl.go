package implementation

import (
	"context"
	"errors"

	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/mapper"
	"ai-learnpath-be/internal/model"
	"ai-learnpath-be/internal/repository/contract"
	"ai-learnpath-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type InteractionEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.InteractionEmbeddingMapper
}

func NewInteractionEmbeddingRepository(db *gorm.DB) contract.InteractionEmbeddingRepository {
	return &InteractionEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewInteractionEmbeddingMapper(),
	}
}

func (r *InteractionEmbeddingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *InteractionEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.InteractionEmbedding) error {
	m := r.mapper.ToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *InteractionEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.InteractionEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.InteractionEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *InteractionEmbeddingRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.InteractionEmbedding{}, id).Error
}

func (r *InteractionEmbeddingRepositoryImpl) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", sessionId).Delete(&model.InteractionEmbedding{}).Error
}

func (r *InteractionEmbeddingRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.InteractionEmbedding, error) {
	var m model.InteractionEmbedding
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *InteractionEmbeddingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.InteractionEmbedding, error) {
	var models []*model.InteractionEmbedding
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *InteractionEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.InteractionEmbedding{}).Count(&count).Error
	return count, err
}

func (r *InteractionEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*entity.InteractionEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}
	var models []*model.InteractionEmbedding

	// pgvector cosine distance: embedding_value <=> vector
	err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionId).
		Where("deleted_at IS NULL").
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Find(&models).Error

	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

// SearchSimilarWithScore returns embeddings with similarity scores, filtered by threshold
func (r *InteractionEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID, threshold float64) ([]*contract.ScoredInteractionEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query_vector) recovers the similarity.
	type result struct {
		model.InteractionEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("interaction_embeddings").
		Select("interaction_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("chat_session_id = ?", sessionId).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredInteractionEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredInteractionEmbedding{
			Embedding:  r.mapper.ToEntity(&res.InteractionEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
