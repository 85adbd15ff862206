package service

import (
	"context"
	"testing"
	"time"

	"ai-learnpath-be/internal/config"
	"ai-learnpath-be/internal/constant"
	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/contract"
	"ai-learnpath-be/internal/repository/memory"
	"ai-learnpath-be/internal/repository/specification"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/pkg/embedding"
	"ai-learnpath-be/pkg/vector"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbeddingProvider embeds deterministically and records the task type
// of the last call.
type stubEmbeddingProvider struct {
	lastTaskType string
	calls        int
}

func (s *stubEmbeddingProvider) Generate(ctx context.Context, text string, taskType string) (*embedding.Response, error) {
	s.lastTaskType = taskType
	s.calls++
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return &embedding.Response{
		Embedding: embedding.ResponseEmbedding{Values: embedding.NormalizeVector([]float32{sum, 1})},
	}, nil
}

// The fake repositories embed their contract interface and override only
// what the tests reach; an unexpected call panics on the nil embed.
type fakeSessionRepo struct {
	contract.ChatSessionRepository
	session *entity.ChatSession
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	return r.session, nil
}

type fakeMessageRepo struct {
	contract.ChatMessageRepository
	messages []*entity.ChatMessage
}

func (r *fakeMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	roleFilter := ""
	for _, spec := range specs {
		if f, ok := spec.(specification.FilterBy); ok && f.Field == "role" {
			roleFilter = f.Value.(string)
		}
	}

	var out []*entity.ChatMessage
	for _, msg := range r.messages {
		if roleFilter != "" && msg.Role != roleFilter {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

type fakeEmbeddingRepo struct {
	contract.InteractionEmbeddingRepository
	scored []*contract.ScoredInteractionEmbedding

	lastVector    []float32
	lastLimit     int
	lastSession   uuid.UUID
	lastThreshold float64
}

func (r *fakeEmbeddingRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, limit int, sessionId uuid.UUID, threshold float64) ([]*contract.ScoredInteractionEmbedding, error) {
	r.lastVector = emb
	r.lastLimit = limit
	r.lastSession = sessionId
	r.lastThreshold = threshold
	return r.scored, nil
}

type fakeUow struct {
	sessions   *fakeSessionRepo
	messages   *fakeMessageRepo
	embeddings *fakeEmbeddingRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error { return nil }
func (u *fakeUow) Rollback() error { return nil }

func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository { return u.sessions }
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository { return u.messages }

func (u *fakeUow) InteractionEmbeddingRepository() contract.InteractionEmbeddingRepository {
	return u.embeddings
}

func (u *fakeUow) RoadmapRepository() contract.RoadmapRepository { return nil }
func (u *fakeUow) ThreadRepository() contract.ThreadRepository { return nil }
func (u *fakeUow) ThreadContentRepository() contract.ThreadContentRepository { return nil }

type fakeUowFactory struct {
	uow *fakeUow
}

func (f *fakeUowFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

func newTestChatService(t *testing.T, uow *fakeUow, emb *stubEmbeddingProvider) *chatService {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	svc, err := NewChatService(
		&fakeUowFactory{uow: uow},
		&stubLLM{reply: "an answer"},
		emb,
		memory.NewSessionStateRepository(),
		pubSub,
		"embed.interaction",
		nil,
		logger.Nop(),
		config.AIConfig{SessionCacheSize: 10, QueryCacheTTLSec: 60},
	)
	require.NoError(t, err)
	return svc.(*chatService)
}

func ownedTestSession(userId uuid.UUID) *entity.ChatSession {
	return &entity.ChatSession{
		Id:           uuid.New(),
		UserId:       userId,
		Topic:        "Hash Tables",
		TopicLabeled: true,
		CreatedAt:    time.Now(),
	}
}

func TestSearchInteractionsQueriesEmbeddingStore(t *testing.T) {
	userId := uuid.New()
	sess := ownedTestSession(userId)
	now := time.Now()

	uow := &fakeUow{
		sessions: &fakeSessionRepo{session: sess},
		messages: &fakeMessageRepo{},
		embeddings: &fakeEmbeddingRepo{scored: []*contract.ScoredInteractionEmbedding{
			{
				Embedding: &entity.InteractionEmbedding{
					Id:            uuid.New(),
					Document:      "Human: what is a hash table\nAI: a key-value structure",
					ChatSessionId: sess.Id,
					ChunkIndex:    0,
					CreatedAt:     now,
				},
				Similarity: 0.91,
			},
		}},
	}
	emb := &stubEmbeddingProvider{}
	svc := newTestChatService(t, uow, emb)

	res, err := svc.SearchInteractions(context.Background(), userId, sess.Id, "hash tables", 0)
	require.NoError(t, err)

	require.Len(t, res, 1)
	assert.Contains(t, res[0].Document, "hash table")
	assert.InDelta(t, 0.91, res[0].Similarity, 1e-9)

	assert.Equal(t, embedding.TaskRetrievalQuery, emb.lastTaskType,
		"search queries embed with the query task, not the document task")
	assert.Equal(t, sess.Id, uow.embeddings.lastSession)
	assert.Equal(t, defaultSearchLimit, uow.embeddings.lastLimit, "zero limit takes the default")
	assert.InDelta(t, searchSimilarityThreshold, uow.embeddings.lastThreshold, 1e-9)
	assert.NotEmpty(t, uow.embeddings.lastVector)
}

func TestSearchInteractionsRejectsBlankQuery(t *testing.T) {
	userId := uuid.New()
	sess := ownedTestSession(userId)
	uow := &fakeUow{
		sessions:   &fakeSessionRepo{session: sess},
		messages:   &fakeMessageRepo{},
		embeddings: &fakeEmbeddingRepo{},
	}
	emb := &stubEmbeddingProvider{}
	svc := newTestChatService(t, uow, emb)

	_, err := svc.SearchInteractions(context.Background(), userId, sess.Id, "   ", 5)
	assert.ErrorIs(t, err, vector.ErrInvalidInput)
	assert.Equal(t, 0, emb.calls, "a blank query never reaches the embedder")
}

func TestBuildAssistantReplaysPersistedHistory(t *testing.T) {
	userId := uuid.New()
	sess := ownedTestSession(userId)
	base := time.Now().Add(-time.Hour)

	msg := func(role, text string, offset time.Duration) *entity.ChatMessage {
		return &entity.ChatMessage{
			Id:            uuid.New(),
			Chat:          text,
			Role:          role,
			ChatSessionId: sess.Id,
			CreatedAt:     base.Add(offset),
		}
	}

	uow := &fakeUow{
		sessions: &fakeSessionRepo{session: sess},
		messages: &fakeMessageRepo{messages: []*entity.ChatMessage{
			msg(constant.ChatMessageRoleSystem, "lesson body about hashing", 0),
			msg(constant.ChatMessageRoleUser, "what is a hash table", time.Minute),
			msg(constant.ChatMessageRoleAssistant, "a key-value structure", 2*time.Minute),
			// An orphan question with no stored answer is not an exchange.
			msg(constant.ChatMessageRoleUser, "unanswered question", 3*time.Minute),
		}},
		embeddings: &fakeEmbeddingRepo{},
	}
	svc := newTestChatService(t, uow, &stubEmbeddingProvider{})

	assistant, err := svc.buildAssistant(context.Background(), sess.Id)
	require.NoError(t, err)

	results, err := assistant.Memory().QueryHistory(context.Background(), "hash table")
	require.NoError(t, err)

	joined := ""
	for _, r := range results {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "what is a hash table")
	assert.Contains(t, joined, "a key-value structure")
	assert.Contains(t, joined, "lesson body about hashing")
	assert.NotContains(t, joined, "unanswered question")
}
