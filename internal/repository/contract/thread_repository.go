package contract

import (
	"context"

	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ThreadRepository interface {
	Create(ctx context.Context, thread *entity.Thread) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type ThreadContentRepository interface {
	Create(ctx context.Context, content *entity.ThreadContent) error
	CreateBulk(ctx context.Context, contents []*entity.ThreadContent) error
	DeleteByThreadId(ctx context.Context, threadId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ThreadContent, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ThreadContent, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
