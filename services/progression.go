package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"strun-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BaseXPPerLevel * n^1.2)
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// RankThresholds: levels required before rank-up
var RankThresholds = map[int]int{ // rank → min level
	1: 1,   // Rookie (start)
	2: 10,  // Bronze
	3: 25,  // Silver
	4: 50,  // Gold
	5: 100, // Platinum
}

func determineRank(level int) int {
	for rank := 5; rank >= 1; rank-- {
		if level >= RankThresholds[rank] {
			return rank
		}
	}
	return 1
}

func RankName(rank int) string {
	switch rank {
	case 1:
		return "Rookie"
	case 2:
		return "Bronze"
	case 3:
		return "Silver"
	case 4:
		return "Gold"
	case 5:
		return "Platinum"
	default:
		if rank > 5 {
			return "Legend"
		}
		return "Rookie"
	}
}

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(externalUserID string) (*models.UserProgress, error) {
	return s.ensureProgressRecordTx(s.DB, externalUserID)
}

func (s *ProgressionService) ensureProgressRecordTx(tx *gorm.DB, externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := tx.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if err == gorm.ErrRecordNotFound {
		prog = models.UserProgress{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			TotalXP:        0,
			Level:          1,
			Rank:           1,
		}
		if err := tx.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// AwardXP updates XP, level, rank in its own transaction — returns updated progress
func (s *ProgressionService) AwardXP(externalUserID string, xp int64, reason string) (*models.UserProgress, error) {
	var updated *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = s.AwardXPTx(tx, externalUserID, xp, reason)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AwardXPTx is the transactional core of AwardXP. Callers that must keep
// the XP grant atomic with their own writes (the claim flow) pass their tx
// so a failure rolls everything back together.
func (s *ProgressionService) AwardXPTx(tx *gorm.DB, externalUserID string, xp int64, reason string) (*models.UserProgress, error) {
	prog, err := s.ensureProgressRecordTx(tx, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("progress record not found for %s: %w", externalUserID, err)
	}

	oldRank := prog.Rank

	prog.TotalXP += xp

	// Level-up logic: accumulate until enough for next level
	for prog.TotalXP >= int64(BaseXPPerLevel)*int64(prog.Level)+xpForNextLevel(prog.Level) {
		prog.Level++
		now := time.Now()
		prog.LastLevelUpAt = &now
	}

	// Rank-up logic
	newRank := determineRank(prog.Level)
	if newRank > oldRank {
		now := time.Now()
		prog.Rank = newRank
		prog.LastRankUpAt = &now
	}

	if err := tx.Save(prog).Error; err != nil {
		return nil, err
	}

	log.Printf("🏃 XP Awarded: %s → XP=%d, Lvl=%d, Rank=%d (reason: %s)",
		externalUserID, prog.TotalXP, prog.Level, prog.Rank, reason)

	return prog, nil
}

// RecordJoinTx bumps the joined-tasks counter inside the caller's tx.
func (s *ProgressionService) RecordJoinTx(tx *gorm.DB, externalUserID string) error {
	prog, err := s.ensureProgressRecordTx(tx, externalUserID)
	if err != nil {
		return err
	}
	prog.TotalTasksJoined++
	return tx.Save(prog).Error
}

// RecordMintTx bumps the mint counter inside the caller's tx.
func (s *ProgressionService) RecordMintTx(tx *gorm.DB, externalUserID string) error {
	prog, err := s.ensureProgressRecordTx(tx, externalUserID)
	if err != nil {
		return err
	}
	prog.TotalMints++
	return tx.Save(prog).Error
}

// GetRecentClaims returns claims in last N days
func (s *ProgressionService) GetRecentClaims(externalUserID string, days int) ([]models.ClaimRecord, error) {
	var claims []models.ClaimRecord
	since := time.Now().AddDate(0, 0, -days)
	err := s.DB.Where("user_id = ? AND claimed_at >= ?", externalUserID, since).
		Order("claimed_at DESC").
		Find(&claims).Error
	return claims, err
}

// GetUserHistory returns paginated history (claims + joins + mints)
func (s *ProgressionService) GetUserHistory(externalUserID string, page, size int) (map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	var totalClaims, totalJoins, totalMints int64

	s.DB.Model(&models.ClaimRecord{}).Where("user_id = ?", externalUserID).Count(&totalClaims)
	s.DB.Model(&models.TaskParticipation{}).Where("user_id = ?", externalUserID).Count(&totalJoins)
	s.DB.Model(&models.MintRecord{}).Where("user_id = ?", externalUserID).Count(&totalMints)

	var claims []models.ClaimRecord
	s.DB.Where("user_id = ?", externalUserID).
		Order("claimed_at DESC").
		Limit(size).Offset(offset).
		Find(&claims)

	var joins []models.TaskParticipation
	s.DB.Where("user_id = ?", externalUserID).
		Preload("Task").
		Order("joined_at DESC").
		Limit(size).Offset(offset).
		Find(&joins)

	var mints []models.MintRecord
	s.DB.Where("user_id = ?", externalUserID).
		Order("created_at DESC").
		Limit(size).Offset(offset).
		Find(&mints)

	totalItems := totalClaims + totalJoins + totalMints
	totalPages := int((totalItems + int64(size) - 1) / int64(size))

	return map[string]interface{}{
		"claims":       claims,
		"joined_tasks": joins,
		"mints":        mints,
		"page":         page,
		"size":         size,
		"total_items":  totalItems,
		"total_pages":  totalPages,
		"total_claims": totalClaims,
		"total_joins":  totalJoins,
		"total_mints":  totalMints,
	}, nil
}
