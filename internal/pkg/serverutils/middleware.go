package serverutils

import (
	"errors"

	"ai-learnpath-be/pkg/chat"
	"ai-learnpath-be/pkg/vector"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// UserContextMiddleware resolves the calling user from the X-User-ID header
// and stores it in locals. Authentication itself is handled upstream by the
// API gateway.
func UserContextMiddleware(ctx *fiber.Ctx) error {
	userIdStr := ctx.Get("X-User-ID")
	if userIdStr == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Missing user id"))
	}
	if _, err := uuid.Parse(userIdStr); err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Invalid user id"))
	}
	ctx.Locals("user_id", userIdStr)
	return ctx.Next()
}

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, chat.ErrGenerationInFlight):
			status = fiber.StatusConflict
		case errors.Is(err, vector.ErrInvalidInput):
			status = fiber.StatusBadRequest
		case errors.Is(err, vector.ErrRetrieval):
			status = fiber.StatusBadGateway
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		return ctx.Status(status).JSON(ErrorResponse(err.Error()))
	}
}
