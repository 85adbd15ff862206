package controller

import (
	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/pkg/serverutils"
	"ai-learnpath-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITopicController interface {
	RegisterRoutes(r fiber.Router)
	Suggest(ctx *fiber.Ctx) error
}

type topicController struct {
	service service.ITopicService
}

func NewTopicController(service service.ITopicService) ITopicController {
	return &topicController{service: service}
}

func (c *topicController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/topic/v1")
	h.Use(serverutils.UserContextMiddleware)
	h.Post("/suggest", c.Suggest)
}

func (c *topicController) Suggest(ctx *fiber.Ctx) error {
	var req dto.SuggestTopicsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Suggest(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success suggest topics", res))
}
