// services/claim_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"strun-backend/models"
	"strun-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	// TokenFreshnessWindow bounds how long a leaked/replayed token stays
	// usable: |now − issuedAt| must not exceed it, in either direction.
	TokenFreshnessWindow = 120 * time.Second

	// GeofenceToleranceM is added to every location's configured radius to
	// absorb GPS drift. Fixed for all locations; partners tune radius_m.
	GeofenceToleranceM = 30.0
)

// ClaimError is a claim rejection the UI can render: a stable machine
// code, an HTTP status, and optional detail fields (e.g. distance vs
// required for out_of_range).
type ClaimError struct {
	Code    string
	Status  int
	Message string
	Details fiber.Map
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim rejected (%s): %s", e.Code, e.Message)
}

func claimErr(code string, status int, message string) *ClaimError {
	return &ClaimError{Code: code, Status: status, Message: message}
}

type ClaimRequest struct {
	Token      string                 `json:"token" validate:"required"`
	Lat        float64                `json:"lat" validate:"min=-90,max=90"`
	Lon        float64                `json:"lon" validate:"min=-180,max=180"`
	DeviceMeta map[string]interface{} `json:"device_meta"`
}

type ClaimResult struct {
	XPAwarded int64  `json:"xp_awarded"`
	ProofIPFS string `json:"proof_ipfs"`
	DistanceM int64  `json:"distance"`
	ClaimID   string `json:"claim_id"`
}

type ClaimService struct {
	DB          *gorm.DB
	Pinner      ProofPinner
	Progression *ProgressionService
}

func NewClaimService(db *gorm.DB, pinner ProofPinner, progression *ProgressionService) *ClaimService {
	return &ClaimService{DB: db, Pinner: pinner, Progression: progression}
}

// Claim verifies a scanned token against the task's partner location and,
// if every gate passes, pins the proof and grants the reward. Checks run
// in a fixed order and short-circuit on the first failure:
// token structure → freshness → task lookup → signature → geofence →
// duplicate guard → proof pin → record + XP (one transaction).
func (s *ClaimService) Claim(ctx context.Context, userID string, req ClaimRequest) (*ClaimResult, *ClaimError) {
	taskID, issuedAt, sig, err := DecodeClaimToken(req.Token)
	if err != nil {
		return nil, claimErr("invalid_token", fiber.StatusBadRequest, "claim token is malformed")
	}

	now := time.Now()
	age := now.Unix() - issuedAt
	if age < 0 {
		age = -age
	}
	if age > int64(TokenFreshnessWindow/time.Second) {
		return nil, claimErr("token_expired", fiber.StatusBadRequest, "claim token is no longer fresh")
	}

	var task models.Task
	if err := s.DB.Preload("PartnerLocation").First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, claimErr("task_not_found", fiber.StatusNotFound, "task does not exist")
		}
		log.Printf("DB error looking up task %s: %v", taskID, err)
		return nil, claimErr("internal_error", fiber.StatusInternalServerError, "failed to look up task")
	}

	if task.PartnerLocation == nil {
		return nil, claimErr("task_not_claimable", fiber.StatusBadRequest, "task has no partner location")
	}
	loc := task.PartnerLocation

	if !VerifyClaimSignature(loc.QRSecret, taskID, issuedAt, sig) {
		// Possible forgery attempt; log distinctly from routine rejections.
		log.Printf("⚠️ invalid claim signature: task=%s user=%s", taskID, userID)
		return nil, claimErr("invalid_signature", fiber.StatusBadRequest, "claim token signature is invalid")
	}

	distance := utils.DistanceMeters(req.Lat, req.Lon, loc.Lat, loc.Lon)
	allowed := loc.RadiusM + GeofenceToleranceM
	if distance > allowed {
		e := claimErr("out_of_range", fiber.StatusBadRequest, "you are too far from the task location")
		e.Details = fiber.Map{
			"distance": int64(math.Round(distance)),
			"required": int64(math.Round(allowed)),
		}
		return nil, e
	}

	// Rolling-window pre-check. The unique index on
	// (user_id, task_id, window_start) backstops the race between this
	// read and the insert below.
	var existing models.ClaimRecord
	err = s.DB.Where("user_id = ? AND task_id = ? AND claimed_at >= ?",
		userID, taskID, now.Add(-models.ClaimWindow)).First(&existing).Error
	if err == nil {
		return nil, claimErr("already_claimed", fiber.StatusBadRequest, "task already claimed in the last 24 hours")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("DB error checking existing claims for user %s task %s: %v", userID, taskID, err)
		return nil, claimErr("internal_error", fiber.StatusInternalServerError, "failed to check claim history")
	}

	deviceMeta := ""
	if len(req.DeviceMeta) > 0 {
		if raw, err := json.Marshal(req.DeviceMeta); err == nil {
			deviceMeta = string(raw)
		}
	}

	// Durable proof first: a claim without a pinned artifact must not earn
	// anything, so the pin happens before any write and its failure aborts.
	proof := map[string]interface{}{
		"type":        "strun.task-claim",
		"user_id":     userID,
		"task_id":     taskID,
		"issued_at":   issuedAt,
		"claimed_at":  now.UTC().Format(time.RFC3339),
		"lat":         req.Lat,
		"lon":         req.Lon,
		"distance_m":  distance,
		"device_meta": req.DeviceMeta,
	}
	proofURI, err := s.Pinner.PinJSON(ctx, fmt.Sprintf("claim-%s-%s", taskID, userID), proof)
	if err != nil {
		log.Printf("❌ proof pinning failed: task=%s user=%s: %v", taskID, userID, err)
		return nil, claimErr("proof_persistence_failed", fiber.StatusInternalServerError, "failed to persist claim proof")
	}

	record := models.ClaimRecord{
		UserID:      userID,
		TaskID:      taskID,
		WindowStart: now.UTC().Truncate(models.ClaimWindow),
		ClaimedAt:   now,
		Lat:         req.Lat,
		Lon:         req.Lon,
		DistanceM:   distance,
		DeviceMeta:  deviceMeta,
		ProofURI:    proofURI,
		XPAwarded:   task.RewardXP,
	}

	// Record insert and XP grant succeed or fail together.
	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		prog, err := s.Progression.AwardXPTx(tx, userID, task.RewardXP, fmt.Sprintf("task_claim_%s", taskID))
		if err != nil {
			return err
		}
		prog.TotalClaims++
		if err := tx.Save(prog).Error; err != nil {
			return err
		}

		// Best-effort participation flip; a claim without a prior join is
		// still valid.
		tx.Model(&models.TaskParticipation{}).
			Where("user_id = ? AND task_id = ?", userID, taskID).
			Update("status", models.ParticipationClaimed)

		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// Lost the insert race to a concurrent claim.
			return nil, claimErr("already_claimed", fiber.StatusBadRequest, "task already claimed in the last 24 hours")
		}
		log.Printf("❌ claim persistence failed: task=%s user=%s: %v", taskID, userID, txErr)
		return nil, claimErr("internal_error", fiber.StatusInternalServerError, "failed to record claim")
	}

	log.Printf("✅ claim verified: task=%s user=%s distance=%.1fm xp=%d proof=%s",
		taskID, userID, distance, task.RewardXP, proofURI)

	return &ClaimResult{
		XPAwarded: task.RewardXP,
		ProofIPFS: proofURI,
		DistanceM: int64(math.Round(distance)),
		ClaimID:   record.ID,
	}, nil
}
