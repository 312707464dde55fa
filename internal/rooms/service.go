// Package rooms implements the room operations: each one maps a user
// intent to a single store call, with local input validation and
// session checks before any write is issued. No operation updates
// local state optimistically; changes flow back through the store
// subscription.
package rooms

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askroom/backend/internal/models"
	"github.com/askroom/backend/internal/projection"
	"github.com/askroom/backend/internal/session"
	"github.com/askroom/backend/internal/store"
)

var (
	// ErrEmptyTitle is returned when a room title is blank; no write is issued.
	ErrEmptyTitle = errors.New("room title must not be empty")
	// ErrEmptyContent is returned when question content is blank; no write is issued.
	ErrEmptyContent = errors.New("question content must not be empty")
	// ErrSignedOut is returned when an operation requires a signed-in viewer.
	ErrSignedOut = errors.New("signed-in user required")
	// ErrNotLikeOwner is returned when a user tries to remove a like that
	// belongs to someone else.
	ErrNotLikeOwner = errors.New("like belongs to another user")
	// ErrRoomNotFound is returned when the room does not exist in the store.
	ErrRoomNotFound = errors.New("room not found")
)

// NewID returns an opaque short token: the 8-hex-character truncation
// of a random UUID. Collisions are accepted as negligible.
func NewID() string {
	return uuid.NewString()[:8]
}

// Service issues the room operations against the tree store.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService creates a rooms service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// CreateRoom writes a new room owned by the session's user and returns
// its id.
func (s *Service) CreateRoom(ctx context.Context, sess *session.Session, title string) (string, error) {
	if !sess.SignedIn() {
		return "", ErrSignedOut
	}
	if strings.TrimSpace(title) == "" {
		return "", ErrEmptyTitle
	}
	id := NewID()
	room := models.Room{Title: title, AuthorID: sess.UserID}
	if err := s.store.Write(ctx, RoomPath(id), room); err != nil {
		return "", err
	}
	s.logger.Info("room created", zap.String("room_id", id), zap.String("author_id", sess.UserID))
	return id, nil
}

// Room returns a one-shot projected view of the room for the viewer.
func (s *Service) Room(ctx context.Context, roomID, viewerID string) (projection.RoomView, error) {
	snapshot, err := s.store.ReadOnce(ctx, RoomPath(roomID))
	if err != nil {
		return projection.RoomView{}, err
	}
	if !snapshot.Exists() {
		return projection.RoomView{}, ErrRoomNotFound
	}
	return projection.Project(snapshot, viewerID), nil
}

// Owner returns the room's author id.
func (s *Service) Owner(ctx context.Context, roomID string) (string, error) {
	snapshot, err := s.store.ReadOnce(ctx, RoomPath(roomID))
	if err != nil {
		return "", err
	}
	if !snapshot.Exists() {
		return "", ErrRoomNotFound
	}
	return snapshot.Child("authorId").Str(), nil
}

// SendQuestion writes a new question with the author denormalized from
// the session and returns the question id.
func (s *Service) SendQuestion(ctx context.Context, sess *session.Session, roomID, content string) (string, error) {
	if !sess.SignedIn() {
		return "", ErrSignedOut
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	id := NewID()
	q := models.Question{
		Content: content,
		Author:  models.Author{Name: sess.Name, Avatar: sess.Avatar},
	}
	if err := s.store.Write(ctx, QuestionPath(roomID, id), q); err != nil {
		return "", err
	}
	return id, nil
}

// LikeQuestion writes a like by the session's user. When the viewer
// already has a like on the question, its id is returned and no write
// is issued, keeping at most one like per (question, user).
func (s *Service) LikeQuestion(ctx context.Context, sess *session.Session, roomID, questionID string) (string, error) {
	if !sess.SignedIn() {
		return "", ErrSignedOut
	}
	likes, err := s.store.ReadOnce(ctx, LikesPath(roomID, questionID))
	if err != nil {
		return "", err
	}
	for _, likeID := range likes.Keys() {
		if likes.Child(likeID).Child("authorId").Str() == sess.UserID {
			return likeID, nil
		}
	}
	id := NewID()
	if err := s.store.Write(ctx, LikePath(roomID, questionID, id), models.Like{AuthorID: sess.UserID}); err != nil {
		return "", err
	}
	return id, nil
}

// UnlikeQuestion removes the session user's own like record. Removing a
// like that belongs to another user is rejected; removing a like that is
// already gone is a no-op.
func (s *Service) UnlikeQuestion(ctx context.Context, sess *session.Session, roomID, questionID, likeID string) error {
	if !sess.SignedIn() {
		return ErrSignedOut
	}
	like, err := s.store.ReadOnce(ctx, LikePath(roomID, questionID, likeID))
	if err != nil {
		return err
	}
	if !like.Exists() {
		return nil
	}
	if like.Child("authorId").Str() != sess.UserID {
		return ErrNotLikeOwner
	}
	return s.store.Remove(ctx, LikePath(roomID, questionID, likeID))
}

// MarkAnswered sets the question's isAnswered flag. Idempotent; no
// transition back to false is exposed.
func (s *Service) MarkAnswered(ctx context.Context, roomID, questionID string) error {
	return s.store.Patch(ctx, QuestionPath(roomID, questionID), map[string]interface{}{"isAnswered": true})
}

// HighlightQuestion sets the question's isHighlighted flag.
func (s *Service) HighlightQuestion(ctx context.Context, roomID, questionID string) error {
	return s.store.Patch(ctx, QuestionPath(roomID, questionID), map[string]interface{}{"isHighlighted": true})
}

// DeleteQuestion removes the question subtree, likes included.
func (s *Service) DeleteQuestion(ctx context.Context, roomID, questionID string) error {
	return s.store.Remove(ctx, QuestionPath(roomID, questionID))
}

// CloseRoom merges closedAt into the room record and returns the
// timestamp written.
func (s *Service) CloseRoom(ctx context.Context, roomID string) (string, error) {
	closedAt := time.Now().UTC().Format(time.RFC3339)
	if err := s.store.Patch(ctx, RoomPath(roomID), map[string]interface{}{"closedAt": closedAt}); err != nil {
		return "", err
	}
	s.logger.Info("room closed", zap.String("room_id", roomID))
	return closedAt, nil
}
