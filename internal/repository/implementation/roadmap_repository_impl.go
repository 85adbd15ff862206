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
	"gorm.io/gorm"
)

type RoadmapRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LearningMapper
}

func NewRoadmapRepository(db *gorm.DB) contract.RoadmapRepository {
	return &RoadmapRepositoryImpl{
		db:     db,
		mapper: mapper.NewLearningMapper(),
	}
}

func (r *RoadmapRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RoadmapRepositoryImpl) Create(ctx context.Context, roadmap *entity.Roadmap) error {
	m := r.mapper.RoadmapToModel(roadmap)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*roadmap = *r.mapper.RoadmapToEntity(m)
	return nil
}

func (r *RoadmapRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Roadmap{}, id).Error
}

func (r *RoadmapRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Roadmap, error) {
	var m model.Roadmap
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RoadmapToEntity(&m), nil
}

func (r *RoadmapRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Roadmap, error) {
	var models []*model.Roadmap
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Roadmap, len(models))
	for i, m := range models {
		entities[i] = r.mapper.RoadmapToEntity(m)
	}
	return entities, nil
}

func (r *RoadmapRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Roadmap{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
