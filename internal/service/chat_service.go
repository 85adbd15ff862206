package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-learnpath-be/internal/config"
	"ai-learnpath-be/internal/constant"
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/memory"
	"ai-learnpath-be/internal/repository/specification"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/pkg/chat"
	"ai-learnpath-be/pkg/embedding"
	"ai-learnpath-be/pkg/events"
	"ai-learnpath-be/pkg/llm"
	pkgnats "ai-learnpath-be/pkg/nats"
	"ai-learnpath-be/pkg/store"
	"ai-learnpath-be/pkg/vector"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	defaultSearchLimit = 5

	// Rows scoring below this cosine similarity are noise, not matches.
	searchSimilarityThreshold = 0.3
)

// IChatService defines the conversational learning service interface
type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	SearchInteractions(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, query string, limit int) ([]*dto.SearchInteractionsResponse, error)
	Ask(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (<-chan *dto.StreamChunkResponse, error)
	StopGeneration(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
	DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error
}

type chatService struct {
	uowFactory        unitofwork.RepositoryFactory
	llmProvider       llm.Provider
	embeddingProvider embedding.Provider
	sessionStates     *memory.SessionStateRepository
	registry          *chat.Registry
	pubSub            *gochannel.GoChannel
	embedTopicName    string
	eventPublisher    *pkgnats.Publisher
	log               logger.ILogger
	aiCfg             config.AIConfig
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.Provider,
	embeddingProvider embedding.Provider,
	sessionStates *memory.SessionStateRepository,
	pubSub *gochannel.GoChannel,
	embedTopicName string,
	eventPublisher *pkgnats.Publisher,
	log logger.ILogger,
	aiCfg config.AIConfig,
) (IChatService, error) {
	cs := &chatService{
		uowFactory:        uowFactory,
		llmProvider:       llmProvider,
		embeddingProvider: embeddingProvider,
		sessionStates:     sessionStates,
		pubSub:            pubSub,
		embedTopicName:    embedTopicName,
		eventPublisher:    eventPublisher,
		log:               log,
		aiCfg:             aiCfg,
	}

	registry, err := chat.NewRegistry(aiCfg.SessionCacheSize, cs.buildAssistant)
	if err != nil {
		return nil, err
	}
	cs.registry = registry
	return cs, nil
}

// CreateSession creates a new chat session. When a lesson content id is
// given, its body is persisted as a system message so rebuilt sessions keep
// the seed.
func (cs *chatService) CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	topic := request.Topic
	labeled := topic != ""
	if topic == "" {
		topic = "Unnamed session"
	}

	chatSession := entity.ChatSession{
		Id:           uuid.New(),
		UserId:       userId,
		Topic:        topic,
		TopicLabeled: labeled,
		CreatedAt:    now,
	}

	var seedMessage *entity.ChatMessage
	if request.LessonContentId != nil {
		content, err := uow.ThreadContentRepository().FindOne(ctx, specification.ByID{ID: *request.LessonContentId})
		if err != nil {
			return nil, err
		}
		if content == nil {
			return nil, fmt.Errorf("lesson content not found")
		}
		seedMessage = &entity.ChatMessage{
			Id:            uuid.New(),
			Chat:          content.Body,
			Role:          constant.ChatMessageRoleSystem,
			ChatSessionId: chatSession.Id,
			CreatedAt:     now,
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().Create(ctx, &chatSession); err != nil {
		return nil, err
	}
	if seedMessage != nil {
		if err := uow.ChatMessageRepository().Create(ctx, seedMessage); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	cs.sessionStates.Save(&store.SessionState{
		ID:    chatSession.Id.String(),
		Topic: chatSession.Topic,
	})

	cs.publishEvent(ctx, events.NewSessionCreated(chatSession.Id, userId, chatSession.Topic))

	return &dto.CreateSessionResponse{Id: chatSession.Id}, nil
}

// GetAllSessions retrieves all chat sessions for a user
func (cs *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:        s.Id,
			Topic:     s.Topic,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	return response, nil
}

// GetChatHistory retrieves the visible chat history for a session
func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	chatMessages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetChatHistoryResponse, 0, len(chatMessages))
	for _, msg := range chatMessages {
		if msg.Role == constant.ChatMessageRoleSystem {
			continue // seed messages are internal
		}
		response = append(response, &dto.GetChatHistoryResponse{
			Id:        msg.Id,
			Role:      msg.Role,
			Chat:      msg.Chat,
			CreatedAt: msg.CreatedAt,
		})
	}

	return response, nil
}

// SearchInteractions performs semantic search over the session's durably
// embedded exchanges. Unlike the in-memory index this survives restarts.
func (cs *chatService) SearchInteractions(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, query string, limit int) ([]*dto.SearchInteractionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, vector.ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	embedded, err := cs.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed search query: %v", vector.ErrRetrieval, err)
	}

	scored, err := uow.InteractionEmbeddingRepository().SearchSimilarWithScore(
		ctx, embedded.Embedding.Values, limit, sessionId, searchSimilarityThreshold)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.SearchInteractionsResponse, 0, len(scored))
	for _, s := range scored {
		response = append(response, &dto.SearchInteractionsResponse{
			Id:         s.Embedding.Id,
			Document:   s.Embedding.Document,
			Similarity: s.Similarity,
			ChunkIndex: s.Embedding.ChunkIndex,
			CreatedAt:  s.Embedding.CreatedAt,
		})
	}
	return response, nil
}

// Ask streams an answer for the question. The returned channel carries chunk
// frames followed by exactly one "done" or "error" frame.
func (cs *chatService) Ask(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (<-chan *dto.StreamChunkResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedSession(ctx, uow, userId, request.ChatSessionId); err != nil {
		return nil, err
	}

	assistant, err := cs.registry.GetOrCreate(ctx, request.ChatSessionId)
	if err != nil {
		return nil, err
	}

	chunks, err := assistant.Answer(ctx, chat.GenerateOptions{
		Question: request.Question,
		Model:    request.Model,
	})
	if err != nil {
		return nil, err
	}

	cs.sessionStates.SetGenerating(request.ChatSessionId.String(), true)

	out := make(chan *dto.StreamChunkResponse)
	go cs.forwardAnswer(request, chunks, out)
	return out, nil
}

func (cs *chatService) forwardAnswer(request *dto.AskRequest, chunks <-chan chat.AnswerChunk, out chan<- *dto.StreamChunkResponse) {
	defer close(out)
	defer cs.sessionStates.SetGenerating(request.ChatSessionId.String(), false)

	var answer string
	for c := range chunks {
		frame := &dto.StreamChunkResponse{
			ChatSessionId: c.SessionID,
			MessageId:     c.MessageID,
			Metadata: dto.ChunkMetadata{
				Timestamp:         c.Event.Meta.Timestamp,
				Model:             c.Event.Meta.Model,
				LatencySeconds:    c.Event.Meta.LatencySeconds,
				ResponseCharCount: c.Event.Meta.ResponseChars,
				PromptCharCount:   c.Event.Meta.PromptChars,
			},
		}

		switch c.Event.Kind {
		case chat.EventChunk:
			frame.Type = "chunk"
			frame.Message = c.Event.Text
			answer += c.Event.Text
		case chat.EventDone:
			frame.Type = "done"
			cs.afterAnswer(request, c, answer)
		case chat.EventError:
			frame.Type = "error"
			frame.Error = c.Event.Err.Error()
		}

		out <- frame
	}
}

// afterAnswer runs the post-completion side effects: async embedding of the
// exchange and the completion event.
func (cs *chatService) afterAnswer(request *dto.AskRequest, c chat.AnswerChunk, answer string) {
	ctx := context.Background()

	if answer != "" {
		payload, err := json.Marshal(dto.PublishEmbedInteractionMessage{
			ChatSessionId: request.ChatSessionId,
			Question:      request.Question,
			Answer:        answer,
		})
		if err == nil {
			msg := message.NewMessage(watermill.NewUUID(), payload)
			if err := cs.pubSub.Publish(cs.embedTopicName, msg); err != nil {
				cs.log.Warn(constant.ModuleChatService, "failed to publish embed message", map[string]interface{}{
					"session_id": request.ChatSessionId.String(),
					"error":      err.Error(),
				})
			}
		}
	}

	cs.publishEvent(ctx, events.NewAnswerCompleted(request.ChatSessionId, c.MessageID, len(answer)))
}

// StopGeneration raises the cancellation flag on the session's in-flight
// answer. A session with no live orchestrator has nothing to stop.
func (cs *chatService) StopGeneration(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return err
	}

	assistant, ok := cs.registry.Peek(sessionId)
	if !ok {
		return nil
	}
	assistant.Stop()
	return nil
}

// DeleteSession removes the session, its messages and its embeddings.
func (cs *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedSession(ctx, uow, userId, request.ChatSessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, request.ChatSessionId); err != nil {
		return err
	}
	if err := uow.InteractionEmbeddingRepository().DeleteByChatSessionId(ctx, request.ChatSessionId); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, request.ChatSessionId); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	cs.registry.Evict(request.ChatSessionId)
	cs.sessionStates.Delete(request.ChatSessionId.String())
	cs.publishEvent(ctx, events.NewSessionDeleted(request.ChatSessionId, userId))
	return nil
}

func (cs *chatService) ownedSession(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session not found or access denied")
	}
	return sess, nil
}

func (cs *chatService) publishEvent(ctx context.Context, event events.Event) {
	if cs.eventPublisher == nil {
		return
	}
	if err := cs.eventPublisher.Publish(ctx, event); err != nil {
		cs.log.Warn(constant.ModuleChatService, "failed to publish event", map[string]interface{}{
			"event_type": event.EventType(),
			"error":      err.Error(),
		})
	}
}

// buildAssistant reconstructs a session orchestrator, replaying persisted
// messages into a fresh memory index.
func (cs *chatService) buildAssistant(ctx context.Context, sessionID uuid.UUID) (*chat.Assistant, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	index := vector.NewIndex(cs.embeddingProvider)
	mem, err := vector.NewMemory(ctx, index, vector.MemoryConfig{
		CacheTTL: time.Duration(cs.aiCfg.QueryCacheTTLSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	// System seeds (lesson bodies) are not part of the question/answer
	// history, so they replay separately.
	seeds, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionID},
		specification.FilterBy{Field: "role", Value: constant.ChatMessageRoleSystem},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}
	for _, msg := range seeds {
		if err := mem.AddMessage(ctx, msg.Chat, msg.Role); err != nil {
			return nil, fmt.Errorf("replay seed: %w", err)
		}
	}

	history := &historyStore{uowFactory: cs.uowFactory}

	interactions, err := history.LoadInteractions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, it := range interactions {
		if err := mem.AddInteraction(ctx, it.Question, it.Answer); err != nil {
			return nil, fmt.Errorf("replay interaction: %w", err)
		}
	}

	generator := chat.NewGenerator(cs.llmProvider, mem, chat.GeneratorConfig{})

	return chat.NewAssistant(sessionID, mem, generator, history, cs.llmProvider, cs.log, chat.AssistantConfig{
		LabelModel: cs.aiCfg.LabelModel,
		Labeled:    sess.TopicLabeled,
	}), nil
}

// historyStore adapts the unit of work to the narrow persistence interface
// the orchestrator needs.
type historyStore struct {
	uowFactory unitofwork.RepositoryFactory
}

var _ chat.History = (*historyStore)(nil)

func (h *historyStore) AppendInteraction(ctx context.Context, sessionID uuid.UUID, question, answer string) error {
	uow := h.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	userMessage := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          question,
		Role:          constant.ChatMessageRoleUser,
		ChatSessionId: sessionID,
		CreatedAt:     now,
	}
	assistantMessage := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          answer,
		Role:          constant.ChatMessageRoleAssistant,
		ChatSessionId: sessionID,
		CreatedAt:     now.Add(1 * time.Millisecond),
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, &userMessage); err != nil {
		return err
	}
	if err := uow.ChatMessageRepository().Create(ctx, &assistantMessage); err != nil {
		return err
	}

	return uow.Commit()
}

func (h *historyStore) LoadInteractions(ctx context.Context, sessionID uuid.UUID) ([]chat.Interaction, error) {
	uow := h.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionID},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	var (
		interactions []chat.Interaction
		pending      string
	)
	for _, msg := range messages {
		switch msg.Role {
		case constant.ChatMessageRoleUser:
			pending = msg.Chat
		case constant.ChatMessageRoleAssistant:
			if pending == "" {
				continue
			}
			interactions = append(interactions, chat.Interaction{
				Question:  pending,
				Answer:    msg.Chat,
				CreatedAt: msg.CreatedAt,
			})
			pending = ""
		}
	}
	return interactions, nil
}

func (h *historyStore) SetTopic(ctx context.Context, sessionID uuid.UUID, topic string) error {
	uow := h.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}

	sess.Topic = topic
	sess.TopicLabeled = true
	return uow.ChatSessionRepository().Update(ctx, sess)
}
