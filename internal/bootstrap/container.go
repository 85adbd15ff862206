package bootstrap

import (
	"log"

	"ai-learnpath-be/internal/config"
	"ai-learnpath-be/internal/controller"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/memory"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/internal/service"
	"ai-learnpath-be/pkg/embedding"
	"ai-learnpath-be/pkg/llm/factory"

	pkgNats "ai-learnpath-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	TopicController   controller.ITopicController
	RoadmapController controller.IRoadmapController
	ThreadController  controller.IThreadController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// In-Memory Session State
	sessionStates := memory.NewSessionStateRepository()

	// NATS (optional, services degrade to no events when absent)
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 4. Services
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedTopicName,
		uowFactory,
		embeddingProvider,
		sysLogger,
	)

	chatService, err := service.NewChatService(
		uowFactory,
		llmProvider,
		embeddingProvider,
		sessionStates,
		pubSub,
		cfg.App.EmbedTopicName,
		natsPub,
		sysLogger,
		cfg.Ai,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Chat Service: %v", err)
	}

	topicService := service.NewTopicService(llmProvider, sysLogger)
	roadmapService := service.NewRoadmapService(uowFactory, llmProvider, sysLogger)

	threadService, err := service.NewThreadService(uowFactory, llmProvider, natsPub, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Thread Service: %v", err)
	}

	// 5. Controllers
	return &Container{
		ChatController:    controller.NewChatController(chatService),
		TopicController:   controller.NewTopicController(topicService),
		RoadmapController: controller.NewRoadmapController(roadmapService),
		ThreadController:  controller.NewThreadController(threadService),

		ConsumerService: consumerService,
	}
}
