package service

import (
	"context"
	"fmt"
	"strings"

	"ai-learnpath-be/internal/constant"
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/pkg/llm"
)

type ITopicService interface {
	Suggest(ctx context.Context, request *dto.SuggestTopicsRequest) (*dto.SuggestTopicsResponse, error)
}

type topicService struct {
	llmProvider llm.Provider
	log         logger.ILogger
}

func NewTopicService(llmProvider llm.Provider, log logger.ILogger) ITopicService {
	return &topicService{
		llmProvider: llmProvider,
		log:         log,
	}
}

// Suggest asks the model for related subtopics, one per line.
func (ts *topicService) Suggest(ctx context.Context, request *dto.SuggestTopicsRequest) (*dto.SuggestTopicsResponse, error) {
	if strings.TrimSpace(request.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}

	explored := "none"
	if len(request.Explored) > 0 {
		explored = strings.Join(request.Explored, ", ")
	}

	prompt := fmt.Sprintf(constant.TopicSuggestionPromptV1, request.Topic, explored)
	reply, err := ts.llmProvider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("suggest topics: %w", err)
	}

	topics := parseTopicLines(reply)
	ts.log.Debug(constant.ModuleTopicService, "suggested topics", map[string]interface{}{
		"topic": request.Topic,
		"count": len(topics),
	})

	return &dto.SuggestTopicsResponse{Topics: topics}, nil
}

// parseTopicLines strips list markers and blank lines from model output.
func parseTopicLines(reply string) []string {
	var topics []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		// drop leading "1." style enumeration
		if i := strings.Index(line, ". "); i > 0 && i <= 3 {
			if _, ok := atoiPrefix(line[:i]); ok {
				line = strings.TrimSpace(line[i+2:])
			}
		}
		if line == "" {
			continue
		}
		topics = append(topics, line)
	}
	return topics
}

func atoiPrefix(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
