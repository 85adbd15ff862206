package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-learnpath-be/internal/constant"
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/specification"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/pkg/chat"
	"ai-learnpath-be/pkg/events"
	"ai-learnpath-be/pkg/lesson"
	"ai-learnpath-be/pkg/llm"
	pkgnats "ai-learnpath-be/pkg/nats"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// threadGeneratorCacheSize bounds the live per-thread generators; evicted
// ones are rebuilt from the persisted concepts on next access.
const threadGeneratorCacheSize = 100

type IThreadService interface {
	Create(ctx context.Context, userId uuid.UUID, request *dto.CreateThreadRequest) (*dto.ThreadResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ThreadResponse, error)
	GetContents(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) ([]*dto.ThreadContentResponse, error)
	GenerateContents(ctx context.Context, userId uuid.UUID, request *dto.GenerateThreadContentRequest) (*dto.GenerateThreadContentResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) error
}

// threadRuntime is the in-memory state for one thread: its generator plus a
// lock so only one batch runs per thread at a time.
type threadRuntime struct {
	mu        sync.Mutex
	generator *lesson.ContentGenerator
}

type threadService struct {
	uowFactory     unitofwork.RepositoryFactory
	llmProvider    llm.Provider
	eventPublisher *pkgnats.Publisher
	log            logger.ILogger

	buildMu  sync.Mutex
	runtimes *lru.Cache[string, *threadRuntime]
}

func NewThreadService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.Provider,
	eventPublisher *pkgnats.Publisher,
	log logger.ILogger,
) (IThreadService, error) {
	runtimes, err := lru.New[string, *threadRuntime](threadGeneratorCacheSize)
	if err != nil {
		return nil, err
	}
	return &threadService{
		uowFactory:     uowFactory,
		llmProvider:    llmProvider,
		eventPublisher: eventPublisher,
		log:            log,
		runtimes:       runtimes,
	}, nil
}

func (ts *threadService) Create(ctx context.Context, userId uuid.UUID, request *dto.CreateThreadRequest) (*dto.ThreadResponse, error) {
	if strings.TrimSpace(request.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}

	thread := entity.Thread{
		Id:        uuid.New(),
		UserId:    userId,
		Topic:     request.Topic,
		CreatedAt: time.Now(),
	}

	uow := ts.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ThreadRepository().Create(ctx, &thread); err != nil {
		return nil, err
	}

	return &dto.ThreadResponse{
		Id:        thread.Id,
		Topic:     thread.Topic,
		CreatedAt: thread.CreatedAt,
	}, nil
}

func (ts *threadService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ThreadResponse, error) {
	uow := ts.uowFactory.NewUnitOfWork(ctx)

	threads, err := uow.ThreadRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.ThreadResponse, 0, len(threads))
	for _, t := range threads {
		response = append(response, &dto.ThreadResponse{
			Id:        t.Id,
			Topic:     t.Topic,
			CreatedAt: t.CreatedAt,
		})
	}
	return response, nil
}

func (ts *threadService) GetContents(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) ([]*dto.ThreadContentResponse, error) {
	uow := ts.uowFactory.NewUnitOfWork(ctx)

	if _, err := ts.ownedThread(ctx, uow, userId, threadId); err != nil {
		return nil, err
	}

	contents, err := uow.ThreadContentRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: threadId},
		specification.OrderBy{Field: "content_index", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.ThreadContentResponse, 0, len(contents))
	for _, c := range contents {
		response = append(response, threadContentToResponse(c))
	}
	return response, nil
}

// GenerateContents produces the next batch of lessons for a thread. Only one
// generation may run per thread; a second call is rejected rather than
// queued.
func (ts *threadService) GenerateContents(ctx context.Context, userId uuid.UUID, request *dto.GenerateThreadContentRequest) (*dto.GenerateThreadContentResponse, error) {
	uow := ts.uowFactory.NewUnitOfWork(ctx)

	thread, err := ts.ownedThread(ctx, uow, userId, request.ThreadId)
	if err != nil {
		return nil, err
	}

	existing, err := uow.ThreadContentRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: request.ThreadId},
		specification.OrderBy{Field: "content_index", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	runtime := ts.runtime(thread, existing, request.Model)
	if !runtime.mu.TryLock() {
		return nil, chat.ErrGenerationInFlight
	}
	defer runtime.mu.Unlock()

	startIndex := len(existing)
	generated, err := runtime.generator.GenerateBatch(ctx, startIndex, nil)
	if err != nil {
		return nil, fmt.Errorf("generate thread contents: %w", err)
	}

	now := time.Now()
	entities := make([]*entity.ThreadContent, len(generated))
	for i, g := range generated {
		entities[i] = &entity.ThreadContent{
			Id:           uuid.New(),
			ThreadId:     thread.Id,
			Concept:      g.Concept,
			Body:         g.Body,
			ContentIndex: g.Index,
			CreatedAt:    now,
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	if err := uow.ThreadContentRepository().CreateBulk(ctx, entities); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	response := &dto.GenerateThreadContentResponse{}
	for _, e := range entities {
		response.Contents = append(response.Contents, *threadContentToResponse(e))
		ts.publishEvent(ctx, events.NewThreadContentGenerated(thread.Id, e.Concept, e.ContentIndex))
	}

	ts.log.Info(constant.ModuleThreadService, "generated thread contents", map[string]interface{}{
		"thread_id": thread.Id.String(),
		"count":     len(entities),
		"depth":     string(lesson.DepthForIndex(startIndex)),
	})

	return response, nil
}

func (ts *threadService) Delete(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) error {
	uow := ts.uowFactory.NewUnitOfWork(ctx)

	if _, err := ts.ownedThread(ctx, uow, userId, threadId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ThreadContentRepository().DeleteByThreadId(ctx, threadId); err != nil {
		return err
	}
	if err := uow.ThreadRepository().Delete(ctx, threadId); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	ts.runtimes.Remove(threadId.String())
	return nil
}

// runtime returns the thread's cached generator, rebuilding it with the
// already covered concepts on a cold thread id.
func (ts *threadService) runtime(thread *entity.Thread, existing []*entity.ThreadContent, model string) *threadRuntime {
	key := thread.Id.String()
	if rt, ok := ts.runtimes.Get(key); ok {
		return rt
	}

	ts.buildMu.Lock()
	defer ts.buildMu.Unlock()
	if rt, ok := ts.runtimes.Get(key); ok {
		return rt
	}

	previous := make([]string, 0, len(existing))
	for _, c := range existing {
		previous = append(previous, c.Concept)
	}

	rt := &threadRuntime{
		generator: lesson.NewContentGenerator(ts.llmProvider, thread.Topic, previous, lesson.GeneratorConfig{
			Model: model,
		}),
	}
	ts.runtimes.Add(key, rt)
	return rt
}

func (ts *threadService) ownedThread(ctx context.Context, uow unitofwork.UnitOfWork, userId, threadId uuid.UUID) (*entity.Thread, error) {
	thread, err := uow.ThreadRepository().FindOne(ctx,
		specification.ByID{ID: threadId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("thread not found or access denied")
	}
	return thread, nil
}

func (ts *threadService) publishEvent(ctx context.Context, event events.Event) {
	if ts.eventPublisher == nil {
		return
	}
	if err := ts.eventPublisher.Publish(ctx, event); err != nil {
		ts.log.Warn(constant.ModuleThreadService, "failed to publish event", map[string]interface{}{
			"event_type": event.EventType(),
			"error":      err.Error(),
		})
	}
}

func threadContentToResponse(c *entity.ThreadContent) *dto.ThreadContentResponse {
	return &dto.ThreadContentResponse{
		Id:           c.Id,
		ThreadId:     c.ThreadId,
		Concept:      c.Concept,
		Body:         c.Body,
		ContentIndex: c.ContentIndex,
		DepthLevel:   string(lesson.DepthForIndex(c.ContentIndex)),
		CreatedAt:    c.CreatedAt,
	}
}
