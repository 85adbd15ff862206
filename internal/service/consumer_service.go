package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-learnpath-be/internal/constant"
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/pkg/embedding"
	"ai-learnpath-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Chunking parameters for interaction text. 1500 chars is roughly 375
// tokens, safely inside embedding context limits.
const (
	embedChunkSize    = 1500
	embedChunkOverlap = 200
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.Provider
	log               logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.Provider,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		log:               log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage embeds one persisted exchange and stores the chunks for
// durable semantic retrieval.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedInteractionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error(constant.ModuleConsumerService, "failed to unmarshal message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid payloads never become valid, don't retry
		return
	}

	document := fmt.Sprintf("Human: %s\nAI: %s", payload.Question, payload.Answer)
	chunks := utils.SplitText(document, embedChunkSize, embedChunkOverlap)

	cs.log.Debug(constant.ModuleConsumerService, "embedding interaction", map[string]interface{}{
		"session_id": payload.ChatSessionId.String(),
		"chunks":     len(chunks),
	})

	var newEmbeddings []*entity.InteractionEmbedding
	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(ctx, chunk, embedding.TaskRetrievalDocument)
		if err != nil {
			cs.log.Error(constant.ModuleConsumerService, "failed to generate embedding", map[string]interface{}{
				"session_id": payload.ChatSessionId.String(),
				"chunk":      i,
				"error":      err.Error(),
			})
			msg.Nack() // retriable
			return
		}

		newEmbeddings = append(newEmbeddings, &entity.InteractionEmbedding{
			Id:             uuid.New(),
			Document:       chunk,
			EmbeddingValue: res.Embedding.Values,
			ChatSessionId:  payload.ChatSessionId,
			ChunkIndex:     i,
			CreatedAt:      time.Now(),
		})
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		cs.log.Error(constant.ModuleConsumerService, "failed to begin transaction", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Nack()
		return
	}
	defer uow.Rollback()

	if err := uow.InteractionEmbeddingRepository().CreateBulk(ctx, newEmbeddings); err != nil {
		cs.log.Error(constant.ModuleConsumerService, "failed to store embeddings", map[string]interface{}{
			"session_id": payload.ChatSessionId.String(),
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	if err := uow.Commit(); err != nil {
		cs.log.Error(constant.ModuleConsumerService, "failed to commit transaction", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Nack()
		return
	}

	cs.log.Info(constant.ModuleConsumerService, "interaction embedded", map[string]interface{}{
		"session_id": payload.ChatSessionId.String(),
		"chunks":     len(newEmbeddings),
	})
	msg.Ack()
}
