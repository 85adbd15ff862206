package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"ai-learnpath-be/internal/config"
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/memory"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/internal/service"
	"ai-learnpath-be/pkg/database"
	"ai-learnpath-be/pkg/embedding"
	"ai-learnpath-be/pkg/llm/factory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Interactive console client against a local database. Useful for poking at
// retrieval and streaming behavior without running the HTTP server.
func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	uowFactory := unitofwork.NewRepositoryFactory(db)

	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	consumer := service.NewConsumerService(pubSub, cfg.App.EmbedTopicName, uowFactory, embeddingProvider, logger.Nop())
	if err := consumer.Consume(context.Background()); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}

	chatService, err := service.NewChatService(
		uowFactory,
		llmProvider,
		embeddingProvider,
		memory.NewSessionStateRepository(),
		pubSub,
		cfg.App.EmbedTopicName,
		nil,
		logger.Nop(),
		cfg.Ai,
	)
	if err != nil {
		log.Fatalf("Failed to initialize chat service: %v", err)
	}

	userId := uuid.New()
	ctx := context.Background()

	header := color.New(color.FgCyan, color.Bold)
	header.Println("=== LearnPath Chat Console ===")
	fmt.Printf("User: %s\n", userId)

	session, err := chatService.CreateSession(ctx, userId, &dto.CreateSessionRequest{})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	fmt.Printf("Session: %s\n\n", session.Id)

	answerColor := color.New(color.FgGreen)
	errColor := color.New(color.FgRed)
	metaColor := color.New(color.FgYellow)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" {
			break
		}

		chunks, err := chatService.Ask(ctx, userId, &dto.AskRequest{
			ChatSessionId: session.Id,
			Question:      question,
		})
		if err != nil {
			errColor.Printf("error: %v\n", err)
			continue
		}

		for frame := range chunks {
			switch frame.Type {
			case "chunk":
				answerColor.Print(frame.Message)
			case "done":
				fmt.Println()
				metaColor.Printf("[%s, %.2fs, %d chars]\n",
					frame.Metadata.Model,
					frame.Metadata.LatencySeconds,
					frame.Metadata.ResponseCharCount,
				)
			case "error":
				fmt.Println()
				errColor.Printf("error: %s\n", frame.Error)
			}
		}
	}
}
