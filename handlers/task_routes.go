// handlers/task_routes.go
package handlers

import (
	"strun-backend/middleware"
	"strun-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTaskRoutes(app *fiber.App, taskService *services.TaskService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/tasks", taskService.GetActiveTasks)
	app.Get("/tasks/:id", taskService.GetTaskByID)

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/tasks/:id/join", taskService.JoinTask)
	secured.Get("/tasks/joined", taskService.GetUserParticipations)

	// Admin routes
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/tasks", taskService.CreateTask)
	admin.Patch("/tasks/:id/status", taskService.UpdateTaskStatus)
	admin.Post("/tasks/:id/qr-token", taskService.IssueClaimToken)
	admin.Post("/locations", taskService.CreatePartnerLocation)
}
