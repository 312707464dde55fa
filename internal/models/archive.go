package models

import (
	"time"

	"github.com/google/uuid"
)

// Room archive statuses.
const (
	ArchiveStatusPending   = "pending"
	ArchiveStatusCompleted = "completed"
	ArchiveStatusFailed    = "failed"
)

// RoomArchive records a JSON snapshot of a closed room uploaded to S3.
type RoomArchive struct {
	ID            uuid.UUID  `json:"id"`
	RoomID        string     `json:"room_id"`
	Title         string     `json:"title"`
	OwnerID       string     `json:"owner_id"`
	S3Key         string     `json:"s3_key,omitempty"`
	S3URL         string     `json:"s3_url,omitempty"`
	SizeBytes     int64      `json:"size_bytes"`
	QuestionCount int        `json:"question_count"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
