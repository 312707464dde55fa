package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/askroom/backend/pkg/queue"
)

// Scheduler creates the pending archive row and enqueues the job the
// worker picks up.
type Scheduler struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewScheduler creates an archive scheduler.
func NewScheduler(repo *Repository, q *queue.Queue, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{repo: repo, queue: q, logger: logger}
}

// Schedule records a pending archive for the room and enqueues it.
func (s *Scheduler) Schedule(ctx context.Context, roomID, title, ownerID string) error {
	a, err := s.repo.Create(ctx, roomID, title, ownerID)
	if err != nil {
		return fmt.Errorf("create archive row: %w", err)
	}
	if err := s.queue.EnqueueRoomArchive(ctx, queue.RoomArchivePayload{ArchiveID: a.ID, RoomID: roomID}); err != nil {
		return fmt.Errorf("enqueue archive job: %w", err)
	}
	s.logger.Info("room archive scheduled", zap.String("room_id", roomID), zap.String("archive_id", a.ID.String()))
	return nil
}
