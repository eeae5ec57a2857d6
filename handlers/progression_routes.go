// handlers/progression_routes.go
package handlers

import (
	"strconv"
	"time"

	"strun-backend/middleware"
	"strun-backend/models"
	"strun-backend/services"
	"strun-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupProgressionRoutes(app *fiber.App, progressionService *services.ProgressionService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var prog *models.UserProgress
		var dbProg models.UserProgress

		if err := progressionService.DB.Where("external_user_id = ?", userID).First(&dbProg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				var createErr error
				prog, createErr = progressionService.EnsureProgressRecord(userID)
				if createErr != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "failed to create progress record",
						"cause": createErr.Error(),
					})
				}
			} else {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "DB error fetching progress",
					"cause": err.Error(),
				})
			}
		} else {
			prog = &dbProg
		}

		// Total XP earned from claims in the last 7 days, for the streak card
		var weeklyXP int64
		progressionService.DB.Model(&models.ClaimRecord{}).
			Select("COALESCE(SUM(xp_awarded), 0)").
			Where("user_id = ? AND claimed_at >= ?", userID, time.Now().AddDate(0, 0, -7)).
			Scan(&weeklyXP)

		return c.JSON(fiber.Map{
			"id":                 prog.ID,
			"xp":                 prog.TotalXP,
			"level":              prog.Level,
			"rank":               prog.Rank,
			"rank_name":          services.RankName(prog.Rank),
			"total_claims":       prog.TotalClaims,
			"total_tasks_joined": prog.TotalTasksJoined,
			"total_mints":        prog.TotalMints,
			"weekly_xp":          weeklyXP,
			"last_level_up_at":   prog.LastLevelUpAt,
			"last_rank_up_at":    prog.LastRankUpAt,
		})
	})

	secured.Get("/user/progress/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		history, err := progressionService.GetUserHistory(userID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get history",
				"cause": err.Error(),
			})
		}
		return c.JSON(history)
	})

	secured.Get("/user/progress/recent", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		days, _ := strconv.Atoi(c.Query("days", "7"))
		claims, err := progressionService.GetRecentClaims(userID, days)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get recent claims",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"claims": claims})
	})

	// Admin endpoints
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required,uuid"`
			XP     int64  `json:"xp" validate:"required,min=1"`
			Reason string `json:"reason" validate:"max=255"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := utils.ValidateStruct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Validation failed",
				"cause": err.Error(),
			})
		}

		if _, err := progressionService.AwardXP(req.UserID, req.XP, req.Reason); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "XP award failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"user_id": req.UserID,
			"xp":      req.XP,
		})
	})
}
