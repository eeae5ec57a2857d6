// handlers/claim_routes.go
package handlers

import (
	"strun-backend/middleware"
	"strun-backend/services"
	"strun-backend/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupClaimRoutes(app *fiber.App, claimService *services.ClaimService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/tasks/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req services.ClaimRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := utils.ValidateStruct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Validation failed",
				"cause": err.Error(),
			})
		}

		result, claimErr := claimService.Claim(c.Context(), userID, req)
		if claimErr != nil {
			body := fiber.Map{"error": claimErr.Code, "message": claimErr.Message}
			for k, v := range claimErr.Details {
				body[k] = v
			}
			return c.Status(claimErr.Status).JSON(body)
		}

		return c.JSON(fiber.Map{
			"status":     "success",
			"xp_awarded": result.XPAwarded,
			"proof_ipfs": result.ProofIPFS,
			"distance":   result.DistanceM,
			"claim_id":   result.ClaimID,
		})
	})

	secured.Get("/claims", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		claims, err := claimService.Progression.GetRecentClaims(userID, 30)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch claims",
				"cause": err.Error(),
			})
		}
		return c.JSON(claims)
	})
}
