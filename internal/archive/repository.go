// Package archive persists JSON snapshots of closed rooms to S3 and
// tracks them in Postgres. Closing a room schedules an archive job; the
// worker uploads the snapshot and completes the row.
package archive

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askroom/backend/internal/models"
)

// Repository handles room archive persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an archive repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending archive row.
func (r *Repository) Create(ctx context.Context, roomID, title, ownerID string) (*models.RoomArchive, error) {
	const q = `INSERT INTO room_archives (room_id, title, owner_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	a := &models.RoomArchive{RoomID: roomID, Title: title, OwnerID: ownerID, Status: models.ArchiveStatusPending}
	err := r.pool.QueryRow(ctx, q, roomID, title, ownerID, a.Status).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID returns an archive by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.RoomArchive, error) {
	const q = `SELECT id, room_id, title, owner_id, s3_key, s3_url, size_bytes, question_count, status, error, created_at, completed_at
		FROM room_archives WHERE id = $1`
	var a models.RoomArchive
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.RoomID, &a.Title, &a.OwnerID, &a.S3Key, &a.S3URL,
		&a.SizeBytes, &a.QuestionCount, &a.Status, &a.Error, &a.CreatedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByRoom returns archives for a room, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomID string) ([]models.RoomArchive, error) {
	const q = `SELECT id, room_id, title, owner_id, s3_key, s3_url, size_bytes, question_count, status, error, created_at, completed_at
		FROM room_archives WHERE room_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RoomArchive
	for rows.Next() {
		var a models.RoomArchive
		if err := rows.Scan(&a.ID, &a.RoomID, &a.Title, &a.OwnerID, &a.S3Key, &a.S3URL,
			&a.SizeBytes, &a.QuestionCount, &a.Status, &a.Error, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// MarkCompleted records the upload result.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, s3Key, s3URL string, sizeBytes int64, questionCount int) error {
	const q = `UPDATE room_archives
		SET status = $2, s3_key = $3, s3_url = $4, size_bytes = $5, question_count = $6, completed_at = now()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.ArchiveStatusCompleted, s3Key, s3URL, sizeBytes, questionCount)
	return err
}

// Delete removes an archive row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM room_archives WHERE id = $1`, id)
	return err
}

// MarkFailed records a terminal failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `UPDATE room_archives SET status = $2, error = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.ArchiveStatusFailed, errMsg)
	return err
}
