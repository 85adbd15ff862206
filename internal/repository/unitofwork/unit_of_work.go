package unitofwork

import (
	"context"

	"ai-learnpath-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	InteractionEmbeddingRepository() contract.InteractionEmbeddingRepository

	RoadmapRepository() contract.RoadmapRepository
	ThreadRepository() contract.ThreadRepository
	ThreadContentRepository() contract.ThreadContentRepository
}
