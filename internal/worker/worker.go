// Package worker runs background jobs: uploading JSON snapshots of
// closed rooms to S3.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askroom/backend/internal/archive"
	"github.com/askroom/backend/internal/models"
	"github.com/askroom/backend/internal/rooms"
	"github.com/askroom/backend/internal/store"
	"github.com/askroom/backend/pkg/queue"
	"github.com/askroom/backend/pkg/storage"
)

// ArchiveProcessor processes room archive jobs: read the room tree,
// marshal the snapshot, upload to S3, complete the DB row.
type ArchiveProcessor struct {
	repo   *archive.Repository
	store  store.Store
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewArchiveProcessor creates a room archive processor.
func NewArchiveProcessor(repo *archive.Repository, st store.Store, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{repo: repo, store: st, s3: s3, queue: q, logger: logger}
}

// Process executes one room archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRoomArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RoomArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	a, err := p.repo.GetByID(ctx, payload.ArchiveID)
	if err != nil || a == nil {
		return fmt.Errorf("archive not found: %s", payload.ArchiveID)
	}
	if a.Status == models.ArchiveStatusCompleted {
		p.logger.Info("archive already completed", zap.String("archive_id", a.ID.String()))
		return nil
	}

	snapshot, err := p.store.ReadOnce(ctx, rooms.RoomPath(payload.RoomID))
	if err != nil {
		return fmt.Errorf("read room %s: %w", payload.RoomID, err)
	}
	if !snapshot.Exists() {
		_ = p.repo.MarkFailed(ctx, a.ID, "room no longer exists")
		return nil
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := storage.ArchiveKey(payload.RoomID, payload.ArchiveID.String())
	s3URL, err := p.s3.Upload(ctx, p.s3.ArchivesBucket(), key, "application/json", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	questionCount := snapshot.Child("questions").Len()
	if err := p.repo.MarkCompleted(ctx, a.ID, key, s3URL, int64(len(body)), questionCount); err != nil {
		p.logger.Error("complete archive failed", zap.Error(err), zap.String("archive_id", a.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("room archive completed",
		zap.String("archive_id", a.ID.String()),
		zap.String("room_id", payload.RoomID),
		zap.Int("question_count", questionCount),
		zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
