package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress tracks gamified progression for each runner (denormalized for performance)
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to identity provider

	// Core progression
	TotalXP int64 `json:"total_xp" gorm:"default:0"`
	Level   int   `json:"level" gorm:"default:1"`
	Rank    int   `json:"rank" gorm:"default:1"` // e.g., Rookie(1)→Bronze(2)→Silver(3)→Gold(4)→Platinum(5)

	// Activity counters
	TotalClaims      int64 `json:"total_claims" gorm:"default:0"`
	TotalTasksJoined int64 `json:"total_tasks_joined" gorm:"default:0"`
	TotalMints       int64 `json:"total_mints" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
