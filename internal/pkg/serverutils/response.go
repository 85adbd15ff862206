package serverutils

import "github.com/gofiber/fiber/v2"

func SuccessResponse[T any](message string, data T) fiber.Map {
	return fiber.Map{
		"message": message,
		"data":    data,
	}
}

func ErrorResponse(message string) fiber.Map {
	return fiber.Map{
		"message": message,
	}
}
