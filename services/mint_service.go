// services/mint_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"strun-backend/models"
	"strun-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MintService struct {
	DB          *gorm.DB
	Pinner      ProofPinner
	Progression *ProgressionService
}

func NewMintService(db *gorm.DB, pinner ProofPinner, progression *ProgressionService) *MintService {
	return &MintService{DB: db, Pinner: pinner, Progression: progression}
}

// MintClaimNFT pins NFT metadata for one of the user's verified claims and
// records a pending mint. The on-chain transaction is the external
// relayer's job; it reports the signature back via UpdateMintStatus.
func (s *MintService) MintClaimNFT(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		ClaimID     string `json:"claim_id" validate:"required,uuid"`
		Name        string `json:"name" validate:"required,max=64"`
		Symbol      string `json:"symbol" validate:"required,max=10"`
		Description string `json:"description" validate:"max=512"`
		ImageURI    string `json:"image_uri" validate:"omitempty,url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "cause": err.Error()})
	}

	var claim models.ClaimRecord
	if err := s.DB.Where("id = ? AND user_id = ?", req.ClaimID, userID).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Claim not found or not owned by user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	// One NFT per claim.
	var existing models.MintRecord
	if err := s.DB.Where("claim_record_id = ?", claim.ID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Claim already minted", "mint": existing})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	metadata := map[string]interface{}{
		"name":        req.Name,
		"symbol":      req.Symbol,
		"description": req.Description,
		"image":       req.ImageURI,
		"attributes": []map[string]interface{}{
			{"trait_type": "task_id", "value": claim.TaskID},
			{"trait_type": "claimed_at", "value": claim.ClaimedAt.UTC().Format("2006-01-02T15:04:05Z07:00")},
			{"trait_type": "distance_m", "value": claim.DistanceM},
			{"trait_type": "proof", "value": claim.ProofURI},
		},
	}

	metadataURI, err := s.Pinner.PinJSON(c.Context(), fmt.Sprintf("mint-%s", claim.ID), metadata)
	if err != nil {
		log.Printf("❌ metadata pinning failed for claim %s: %v", claim.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to pin NFT metadata"})
	}

	mint := models.MintRecord{
		UserID:        userID,
		ClaimRecordID: &claim.ID,
		Name:          req.Name,
		Symbol:        req.Symbol,
		MetadataURI:   metadataURI,
		ImageURI:      req.ImageURI,
		Status:        models.MintStatusPending,
	}

	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mint).Error; err != nil {
			return err
		}
		return s.Progression.RecordMintTx(tx, userID)
	})
	if txErr != nil {
		log.Printf("DB Error recording mint for claim %s: %v", claim.ID, txErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record mint"})
	}

	return c.Status(fiber.StatusCreated).JSON(mint)
}

// GetUserMints lists the authenticated user's mints.
func (s *MintService) GetUserMints(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var mints []models.MintRecord
	if err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&mints).Error; err != nil {
		log.Printf("DB Error fetching mints: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch mints"})
	}

	return c.JSON(mints)
}

// UpdateMintStatus is the relayer callback reporting the on-chain result
// (Admin/service only).
func (s *MintService) UpdateMintStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mint ID"})
	}

	var req struct {
		Status      models.MintStatus `json:"status" validate:"required,oneof=submitted failed"`
		TxSignature string            `json:"tx_signature" validate:"required_if=Status submitted,max=128"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "cause": err.Error()})
	}

	var mint models.MintRecord
	if err := s.DB.First(&mint, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mint not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	mint.Status = req.Status
	if req.TxSignature != "" {
		mint.TxSignature = &req.TxSignature
	}
	if err := s.DB.Save(&mint).Error; err != nil {
		log.Printf("DB Error updating mint status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update mint"})
	}

	return c.JSON(fiber.Map{"message": "Mint updated", "mint": mint})
}
