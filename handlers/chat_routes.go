// handlers/chat_routes.go
package handlers

import (
	"log"

	"strun-backend/middleware"
	"strun-backend/services"
	"strun-backend/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupChatRoutes(app *fiber.App, aiClient *services.AIClient) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/chat", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Messages []services.ChatMessage `json:"messages" validate:"required,min=1,max=30,dive"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := utils.ValidateStruct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Validation failed",
				"cause": err.Error(),
			})
		}

		reply, err := aiClient.ChatCompletion(c.Context(), req.Messages)
		if err != nil {
			log.Printf("❌ AI chat relay failed for user %s: %v", userID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Coach is unavailable right now"})
		}

		return c.JSON(fiber.Map{
			"role":    "assistant",
			"content": reply,
		})
	})
}
