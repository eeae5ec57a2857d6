package models

import "time"

// ClaimRecord = user completed a location task and the proof was pinned.
// Rows are append-only; the composite unique index is the storage-level
// guard against double rewards for the same (user, task) claim window —
// two concurrent claims race to the insert and the loser gets a
// duplicate-key error instead of a second payout.
type ClaimRecord struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_claims_user_task_window" json:"user_id"`
	TaskID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_claims_user_task_window" json:"task_id"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_claims_user_task_window" json:"window_start"`

	ClaimedAt  time.Time `gorm:"not null" json:"claimed_at"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	DistanceM  float64   `json:"distance_m"`
	DeviceMeta string    `gorm:"type:text" json:"device_meta,omitempty"` // opaque JSON passthrough from the client
	ProofURI   string    `gorm:"type:text;not null" json:"proof_uri"`
	XPAwarded  int64     `gorm:"not null" json:"xp_awarded"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// ClaimWindow is how long a (user, task) pair stays locked after a claim.
const ClaimWindow = 24 * time.Hour
