// services/task_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"strun-backend/models"
	"strun-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskService struct {
	DB          *gorm.DB
	Progression *ProgressionService
}

func NewTaskService(db *gorm.DB, progression *ProgressionService) *TaskService {
	return &TaskService{DB: db, Progression: progression}
}

// --- User Handlers ---

// GetActiveTasks lists claimable tasks, optionally filtered by status.
func (s *TaskService) GetActiveTasks(c *fiber.Ctx) error {
	statusStr := strings.ToLower(c.Query("status"))

	query := s.DB.Preload("PartnerLocation")
	switch statusStr {
	case "any":
		// No filter
	case string(models.TaskStatusDraft), string(models.TaskStatusExpired), string(models.TaskStatusArchived):
		query = query.Where("status = ?", statusStr)
	default:
		// Default to active, not-yet-expired tasks
		query = query.Where("status = ?", models.TaskStatusActive).
			Where("(expires_at IS NULL OR expires_at >= ?)", time.Now())
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		log.Printf("DB Error fetching tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tasks"})
	}

	return c.JSON(tasks)
}

// GetTaskByID returns one task with its location summary.
func (s *TaskService) GetTaskByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var task models.Task
	if err := s.DB.Preload("PartnerLocation").First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(task)
}

// JoinTask creates the participation row for the authenticated user
// (idempotent: joining twice returns the existing row).
func (s *TaskService) JoinTask(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	taskID := c.Params("id")

	if _, err := uuid.Parse(taskID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var task models.Task
	if err := s.DB.First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if task.Status != models.TaskStatusActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task is not open for joining"})
	}
	if task.ExpiresAt != nil && task.ExpiresAt.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task has expired"})
	}

	var existing models.TaskParticipation
	err := s.DB.Where("user_id = ? AND task_id = ?", userID, taskID).First(&existing).Error
	if err == nil {
		return c.JSON(fiber.Map{"message": "Already joined", "participation": existing})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	participation := models.TaskParticipation{
		UserID: userID,
		TaskID: taskID,
		Status: models.ParticipationJoined,
	}

	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&participation).Error; err != nil {
			return err
		}
		return s.Progression.RecordJoinTx(tx, userID)
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// Concurrent double-join; treat as already joined.
			return c.JSON(fiber.Map{"message": "Already joined"})
		}
		log.Printf("DB Error joining task %s for user %s: %v", taskID, userID, txErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to join task"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Joined task",
		"participation": participation,
	})
}

// GetUserParticipations lists the authenticated user's joined tasks.
func (s *TaskService) GetUserParticipations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var participations []models.TaskParticipation
	if err := s.DB.Where("user_id = ?", userID).
		Preload("Task").
		Order("joined_at DESC").
		Find(&participations).Error; err != nil {
		log.Printf("DB Error fetching participations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch joined tasks"})
	}

	return c.JSON(participations)
}

// --- Admin Handlers ---

// CreateTask creates a task (Admin only). Multipart form; optional artwork
// file is uploaded to R2.
func (s *TaskService) CreateTask(c *fiber.Ctx) error {
	var req struct {
		Title             string  `form:"title" validate:"required,max=255"`
		Description       string  `form:"description"`
		RewardXP          int64   `form:"reward_xp" validate:"required,min=1"`
		RewardToken       string  `form:"reward_token" validate:"omitempty,oneof=SOL USDC"`
		RewardAmount      float64 `form:"reward_amount"`
		PartnerLocationID string  `form:"partner_location_id" validate:"omitempty,uuid"`
		Status            string  `form:"status" validate:"omitempty,oneof=draft active"`
		ExpiresAt         string  `form:"expires_at"` // RFC3339
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "cause": err.Error()})
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expires_at must be RFC3339"})
		}
		expiresAt = &t
	}

	var locationID *string
	if req.PartnerLocationID != "" {
		var loc models.PartnerLocation
		if err := s.DB.First(&loc, "id = ?", req.PartnerLocationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Partner location not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		locationID = &req.PartnerLocationID
	}

	task := models.Task{
		ID:                uuid.NewString(),
		Title:             req.Title,
		Slug:              utils.Slugify(req.Title),
		Description:       req.Description,
		RewardXP:          req.RewardXP,
		RewardToken:       req.RewardToken,
		RewardAmount:      req.RewardAmount,
		PartnerLocationID: locationID,
		Status:            models.TaskStatusDraft,
		ExpiresAt:         expiresAt,
	}
	if req.Status != "" {
		task.Status = models.TaskStatus(req.Status)
	}

	// Optional artwork upload
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		key := fmt.Sprintf("tasks/%s-%s", task.ID, fileHeader.Filename)
		url, err := utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			log.Printf("R2 upload failed for task artwork: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload task artwork"})
		}
		task.ImageURL = url
	}

	if err := s.DB.Create(&task).Error; err != nil {
		log.Printf("DB Error creating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create task"})
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTaskStatus allows admin to change the status (e.g., draft -> active)
func (s *TaskService) UpdateTaskStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var req struct {
		Status models.TaskStatus `json:"status" validate:"required,oneof=draft active expired archived"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "cause": err.Error()})
	}

	var task models.Task
	if err := s.DB.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	task.Status = req.Status
	if err := s.DB.Save(&task).Error; err != nil {
		log.Printf("DB Error updating task status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update task status"})
	}

	return c.JSON(fiber.Map{"message": "Task status updated", "task": task})
}

// IssueClaimToken mints a fresh HMAC-signed claim token for a task's
// partner location (Admin only; feeds rotating QR displays).
func (s *TaskService) IssueClaimToken(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var task models.Task
	if err := s.DB.Preload("PartnerLocation").First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if task.PartnerLocation == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task has no partner location"})
	}

	issuedAt := time.Now()
	token := EncodeClaimToken(task.PartnerLocation.QRSecret, task.ID, issuedAt)

	return c.JSON(fiber.Map{
		"token":      token,
		"issued_at":  issuedAt.Unix(),
		"expires_in": int64(TokenFreshnessWindow / time.Second),
	})
}

// CreatePartnerLocation provisions a partner venue and its signing secret
// (Admin only).
func (s *TaskService) CreatePartnerLocation(c *fiber.Ctx) error {
	var req struct {
		Name     string  `json:"name" validate:"required,max=255"`
		Lat      float64 `json:"lat" validate:"min=-90,max=90"`
		Lon      float64 `json:"lon" validate:"min=-180,max=180"`
		RadiusM  float64 `json:"radius_m" validate:"required,min=1"`
		QRSecret string  `json:"qr_secret" validate:"required,min=16"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "cause": err.Error()})
	}

	loc := models.PartnerLocation{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Lat:      req.Lat,
		Lon:      req.Lon,
		RadiusM:  req.RadiusM,
		QRSecret: req.QRSecret,
	}
	if err := s.DB.Create(&loc).Error; err != nil {
		log.Printf("DB Error creating partner location: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create partner location"})
	}

	return c.Status(fiber.StatusCreated).JSON(loc)
}
