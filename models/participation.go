package models

import "time"

type ParticipationStatus string

const (
	ParticipationJoined    ParticipationStatus = "joined"
	ParticipationClaimed   ParticipationStatus = "claimed"
	ParticipationAbandoned ParticipationStatus = "abandoned"
)

// TaskParticipation records that a user joined a task. One row per
// (user, task); joining again is a no-op.
type TaskParticipation struct {
	ID       string              `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string              `gorm:"type:uuid;not null;uniqueIndex:idx_participation_user_task" json:"user_id"`
	TaskID   string              `gorm:"type:uuid;not null;uniqueIndex:idx_participation_user_task" json:"task_id"`
	Status   ParticipationStatus `gorm:"not null;default:'joined'" json:"status"`
	JoinedAt time.Time           `gorm:"autoCreateTime" json:"joined_at"`

	Task *Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
}
