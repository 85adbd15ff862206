package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-learnpath-be/internal/constant"
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/entity"
	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/internal/repository/specification"
	"ai-learnpath-be/internal/repository/unitofwork"
	"ai-learnpath-be/pkg/llm"

	"github.com/google/uuid"
)

type IRoadmapService interface {
	Create(ctx context.Context, userId uuid.UUID, request *dto.CreateRoadmapRequest) (*dto.RoadmapResponse, error)
	List(ctx context.Context, userId uuid.UUID, limit, offset int) (*dto.ListRoadmapsResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.RoadmapResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type roadmapService struct {
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.Provider
	log         logger.ILogger
}

func NewRoadmapService(uowFactory unitofwork.RepositoryFactory, llmProvider llm.Provider, log logger.ILogger) IRoadmapService {
	return &roadmapService{
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		log:         log,
	}
}

// Create generates a learning roadmap with the model and persists the
// validated JSON plan.
func (rs *roadmapService) Create(ctx context.Context, userId uuid.UUID, request *dto.CreateRoadmapRequest) (*dto.RoadmapResponse, error) {
	if strings.TrimSpace(request.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}

	prompt := fmt.Sprintf(constant.RoadmapGenerationPromptV1, request.Topic)
	opts := []llm.Option{}
	if request.Model != "" {
		opts = append(opts, llm.WithModel(request.Model))
	}

	reply, err := rs.llmProvider.Generate(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate roadmap: %w", err)
	}

	plan, err := decodeRoadmapJSON(reply)
	if err != nil {
		rs.log.Warn(constant.ModuleRoadmapService, "model returned invalid roadmap", map[string]interface{}{
			"topic": request.Topic,
			"error": err.Error(),
		})
		return nil, err
	}

	roadmap := entity.Roadmap{
		Id:        uuid.New(),
		UserId:    userId,
		Topic:     request.Topic,
		Plan:      plan,
		CreatedAt: time.Now(),
	}

	uow := rs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.RoadmapRepository().Create(ctx, &roadmap); err != nil {
		return nil, err
	}

	return roadmapToResponse(&roadmap), nil
}

func (rs *roadmapService) List(ctx context.Context, userId uuid.UUID, limit, offset int) (*dto.ListRoadmapsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	uow := rs.uowFactory.NewUnitOfWork(ctx)

	total, err := uow.RoadmapRepository().Count(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}

	roadmaps, err := uow.RoadmapRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	response := &dto.ListRoadmapsResponse{Total: total}
	for _, r := range roadmaps {
		response.Roadmaps = append(response.Roadmaps, *roadmapToResponse(r))
	}
	return response, nil
}

func (rs *roadmapService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.RoadmapResponse, error) {
	uow := rs.uowFactory.NewUnitOfWork(ctx)

	roadmap, err := uow.RoadmapRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if roadmap == nil {
		return nil, fmt.Errorf("roadmap not found or access denied")
	}
	return roadmapToResponse(roadmap), nil
}

func (rs *roadmapService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := rs.uowFactory.NewUnitOfWork(ctx)

	roadmap, err := uow.RoadmapRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if roadmap == nil {
		return fmt.Errorf("roadmap not found or access denied")
	}
	return uow.RoadmapRepository().Delete(ctx, id)
}

func roadmapToResponse(r *entity.Roadmap) *dto.RoadmapResponse {
	return &dto.RoadmapResponse{
		Id:        r.Id,
		Topic:     r.Topic,
		Plan:      json.RawMessage(r.Plan),
		CreatedAt: r.CreatedAt,
	}
}

// decodeRoadmapJSON extracts and validates the JSON object from a model
// reply that may be wrapped in prose or code fences.
func decodeRoadmapJSON(reply string) ([]byte, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}
	raw := reply[start : end+1]

	var plan struct {
		Title      string `json:"title"`
		Categories []struct {
			Title       string          `json:"title"`
			Description string          `json:"description"`
			Topics      json.RawMessage `json:"topics"`
		} `json:"categories"`
	}
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("decode roadmap: %w", err)
	}
	if plan.Title == "" || len(plan.Categories) == 0 {
		return nil, fmt.Errorf("roadmap missing title or categories")
	}
	for _, c := range plan.Categories {
		if c.Title == "" || c.Description == "" {
			return nil, fmt.Errorf("roadmap category missing title or description")
		}
	}
	return []byte(raw), nil
}
