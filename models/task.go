package models

import "time"

// TaskStatus is the publishing lifecycle of a task.
type TaskStatus string

const (
	TaskStatusDraft    TaskStatus = "draft"
	TaskStatusActive   TaskStatus = "active"
	TaskStatusExpired  TaskStatus = "expired"
	TaskStatusArchived TaskStatus = "archived"
)

// Task is a location-based challenge users run to complete. Tasks are
// provisioned by the admin API (or the AI generation pipeline upstream);
// the claim flow only reads them.
type Task struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	ImageURL    string     `gorm:"type:text" json:"image_url"`
	RewardXP    int64      `gorm:"not null" json:"reward_xp"`
	RewardToken string     `gorm:"size:16" json:"reward_token,omitempty"` // display denom, e.g. "SOL", "USDC"
	RewardAmount float64   `json:"reward_amount,omitempty"`
	Status      TaskStatus `gorm:"not null;default:'draft';index" json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	PartnerLocationID *string          `gorm:"type:uuid;index" json:"partner_location_id,omitempty"`
	PartnerLocation   *PartnerLocation `gorm:"foreignKey:PartnerLocationID" json:"partner_location,omitempty"`

	Timestamps
}
