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

type ThreadContentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LearningMapper
}

func NewThreadContentRepository(db *gorm.DB) contract.ThreadContentRepository {
	return &ThreadContentRepositoryImpl{
		db:     db,
		mapper: mapper.NewLearningMapper(),
	}
}

func (r *ThreadContentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ThreadContentRepositoryImpl) Create(ctx context.Context, content *entity.ThreadContent) error {
	m := r.mapper.ThreadContentToModel(content)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*content = *r.mapper.ThreadContentToEntity(m)
	return nil
}

func (r *ThreadContentRepositoryImpl) CreateBulk(ctx context.Context, contents []*entity.ThreadContent) error {
	if len(contents) == 0 {
		return nil
	}
	models := make([]*model.ThreadContent, len(contents))
	for i, c := range contents {
		models[i] = r.mapper.ThreadContentToModel(c)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*contents[i] = *r.mapper.ThreadContentToEntity(m)
	}
	return nil
}

func (r *ThreadContentRepositoryImpl) DeleteByThreadId(ctx context.Context, threadId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("thread_id = ?", threadId).Delete(&model.ThreadContent{}).Error
}

func (r *ThreadContentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ThreadContent, error) {
	var m model.ThreadContent
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ThreadContentToEntity(&m), nil
}

func (r *ThreadContentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ThreadContent, error) {
	var models []*model.ThreadContent
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ThreadContent, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ThreadContentToEntity(m)
	}
	return entities, nil
}

func (r *ThreadContentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ThreadContent{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
