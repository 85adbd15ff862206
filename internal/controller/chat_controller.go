package controller

import (
	"context"
	"sync"

	"ai-learnpath-be/internal/dto"
	"ai-learnpath-be/internal/pkg/serverutils"
	"ai-learnpath-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	GetAllSessions(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	SearchInteractions(ctx *fiber.Ctx) error
	StopGeneration(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.UserContextMiddleware)
	h.Post("/session", c.CreateSession)
	h.Get("/sessions", c.GetAllSessions)
	h.Get("/session/:id/history", c.GetChatHistory)
	h.Get("/session/:id/search", c.SearchInteractions)
	h.Post("/session/:id/stop", c.StopGeneration)
	h.Delete("/session/:id", c.DeleteSession)

	h.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	h.Get("/ws/:id", websocket.New(c.stream))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.service.CreateSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create chat session", res))
}

func (c *chatController) GetAllSessions(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.service.GetAllSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all chat sessions", res))
}

func (c *chatController) GetChatHistory(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	res, err := c.service.GetChatHistory(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) SearchInteractions(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	res, err := c.service.SearchInteractions(ctx.Context(), userId, sessionId,
		ctx.Query("q"), ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search interactions", res))
}

func (c *chatController) StopGeneration(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	if err := c.service.StopGeneration(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success stop generation", nil))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId, _ := uuid.Parse(ctx.Params("id"))

	err := c.service.DeleteSession(ctx.Context(), userId, &dto.DeleteSessionRequest{
		ChatSessionId: sessionId,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete chat session", nil))
}

// streamCommand is one client message on the chat websocket. Type "ask"
// starts a generation, "stop" cancels the one in flight.
type streamCommand struct {
	Type     string `json:"type"`
	Question string `json:"question,omitempty"`
	Model    string `json:"model,omitempty"`
}

// stream serves the bidirectional chat socket. Answer frames are written
// from a forwarding goroutine so the read loop stays free for stop commands.
func (c *chatController) stream(conn *websocket.Conn) {
	defer conn.Close()

	userIdStr, ok := conn.Locals("user_id").(string)
	if !ok {
		return
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return
	}
	sessionId, err := uuid.Parse(conn.Params("id"))
	if err != nil {
		return
	}

	var writeMu sync.Mutex
	writeFrame := func(frame *dto.StreamChunkResponse) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(frame)
	}

	for {
		var cmd streamCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Type {
		case "stop":
			_ = c.service.StopGeneration(context.Background(), userId, sessionId)

		default:
			chunks, err := c.service.Ask(context.Background(), userId, &dto.AskRequest{
				ChatSessionId: sessionId,
				Question:      cmd.Question,
				Model:         cmd.Model,
			})
			if err != nil {
				_ = writeFrame(&dto.StreamChunkResponse{
					ChatSessionId: sessionId,
					Type:          "error",
					Error:         err.Error(),
				})
				continue
			}

			go func() {
				for frame := range chunks {
					if err := writeFrame(frame); err != nil {
						// drain so the generation side never blocks
						for range chunks {
						}
						return
					}
				}
			}()
		}
	}
}
