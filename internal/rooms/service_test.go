package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/askroom/backend/internal/session"
	"github.com/askroom/backend/internal/store"
)

// countingStore records how many mutating calls reach the store.
type countingStore struct {
	store.Store
	writes  int
	patches int
	removes int
}

func (c *countingStore) Write(ctx context.Context, path string, value interface{}) error {
	c.writes++
	return c.Store.Write(ctx, path, value)
}

func (c *countingStore) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	c.patches++
	return c.Store.Patch(ctx, path, fields)
}

func (c *countingStore) Remove(ctx context.Context, path string) error {
	c.removes++
	return c.Store.Remove(ctx, path)
}

func newTestService() (*Service, *countingStore) {
	cs := &countingStore{Store: store.NewMemory()}
	return NewService(cs, nil), cs
}

func sessionFor(userID string) *session.Session {
	return &session.Session{UserID: userID, Name: "Ana", Avatar: "https://example.com/a.png"}
}

func TestCreateRoom(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	id, err := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(id) != 8 {
		t.Errorf("room id = %q, want 8-char token", id)
	}

	view, err := svc.Room(ctx, id, "")
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	if view.Title != "Go AMA" || view.AuthorID != "u1" {
		t.Errorf("view = %+v", view)
	}
}

func TestCreateRoomRejectsBlankTitle(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n"} {
		if _, err := svc.CreateRoom(ctx, sessionFor("u1"), title); !errors.Is(err, ErrEmptyTitle) {
			t.Errorf("CreateRoom(%q) err = %v, want ErrEmptyTitle", title, err)
		}
	}
	if cs.writes != 0 {
		t.Errorf("writes = %d, validation must abort before any store call", cs.writes)
	}
}

func TestCreateRoomRequiresSession(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()

	if _, err := svc.CreateRoom(context.Background(), nil, "Go AMA"); !errors.Is(err, ErrSignedOut) {
		t.Errorf("err = %v, want ErrSignedOut", err)
	}
	if cs.writes != 0 {
		t.Errorf("writes = %d, want 0", cs.writes)
	}
}

func TestSendQuestionDenormalizesAuthor(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	qid, err := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why generics?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	view, err := svc.Room(ctx, roomID, "")
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	if len(view.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(view.Questions))
	}
	q := view.Questions[0]
	if q.ID != qid || q.Content != "Why generics?" {
		t.Errorf("question = %+v", q)
	}
	if q.Author.Name != "Ana" || q.Author.Avatar != "https://example.com/a.png" {
		t.Errorf("author = %+v, want denormalized session profile", q.Author)
	}
	if cs.writes != 2 {
		t.Errorf("writes = %d, want 2 (room + question)", cs.writes)
	}
}

func TestSendQuestionRejectsBlankAndSignedOut(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	if _, err := svc.SendQuestion(ctx, sessionFor("u2"), "r1", "   "); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("blank content err = %v, want ErrEmptyContent", err)
	}
	if _, err := svc.SendQuestion(ctx, nil, "r1", "Why?"); !errors.Is(err, ErrSignedOut) {
		t.Errorf("signed-out err = %v, want ErrSignedOut", err)
	}
	if cs.writes != 0 {
		t.Errorf("writes = %d, want 0", cs.writes)
	}
}

func TestLikeQuestionIsIdempotentPerViewer(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")

	first, err := svc.LikeQuestion(ctx, sessionFor("u3"), roomID, qid)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	second, err := svc.LikeQuestion(ctx, sessionFor("u3"), roomID, qid)
	if err != nil {
		t.Fatalf("second like: %v", err)
	}
	if first != second {
		t.Errorf("second like id = %q, want existing %q", second, first)
	}
	if cs.writes != 3 {
		t.Errorf("writes = %d, want 3 (room + question + one like)", cs.writes)
	}

	view, _ := svc.Room(ctx, roomID, "u3")
	if view.Questions[0].LikeCount != 1 {
		t.Errorf("likeCount = %d, want 1", view.Questions[0].LikeCount)
	}
	if view.Questions[0].LikeID != first {
		t.Errorf("likeId = %q, want %q", view.Questions[0].LikeID, first)
	}
}

func TestUnlikeQuestion(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")
	likeID, _ := svc.LikeQuestion(ctx, sessionFor("u3"), roomID, qid)

	if err := svc.UnlikeQuestion(ctx, sessionFor("u3"), roomID, qid, likeID); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	view, _ := svc.Room(ctx, roomID, "u3")
	if view.Questions[0].LikeCount != 0 || view.Questions[0].LikeID != "" {
		t.Errorf("question after unlike = %+v", view.Questions[0])
	}
}

func TestUnlikeQuestionRejectsOtherUsersLike(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")
	likeID, _ := svc.LikeQuestion(ctx, sessionFor("u3"), roomID, qid)
	removesBefore := cs.removes

	if err := svc.UnlikeQuestion(ctx, sessionFor("u4"), roomID, qid, likeID); !errors.Is(err, ErrNotLikeOwner) {
		t.Errorf("err = %v, want ErrNotLikeOwner", err)
	}
	if cs.removes != removesBefore {
		t.Errorf("removes = %d, a foreign like must not reach the store", cs.removes-removesBefore)
	}
	view, _ := svc.Room(ctx, roomID, "u3")
	if view.Questions[0].LikeCount != 1 || view.Questions[0].LikeID != likeID {
		t.Errorf("like should survive: %+v", view.Questions[0])
	}
}

func TestUnlikeQuestionMissingLikeIsNoOp(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")

	if err := svc.UnlikeQuestion(ctx, sessionFor("u3"), roomID, qid, "gone1234"); err != nil {
		t.Fatalf("unlike missing: %v", err)
	}
	if cs.removes != 0 {
		t.Errorf("removes = %d, want 0", cs.removes)
	}
}

func TestLikeOperationsRequireSession(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")
	likeID, _ := svc.LikeQuestion(ctx, sessionFor("u3"), roomID, qid)
	writesBefore, removesBefore := cs.writes, cs.removes

	if _, err := svc.LikeQuestion(ctx, nil, roomID, qid); !errors.Is(err, ErrSignedOut) {
		t.Errorf("like err = %v, want ErrSignedOut", err)
	}
	if err := svc.UnlikeQuestion(ctx, nil, roomID, qid, likeID); !errors.Is(err, ErrSignedOut) {
		t.Errorf("unlike err = %v, want ErrSignedOut", err)
	}
	if cs.writes != writesBefore || cs.removes != removesBefore {
		t.Errorf("store calls after signed-out attempts: writes %d removes %d", cs.writes-writesBefore, cs.removes-removesBefore)
	}
}

func TestMarkAnsweredIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, cs := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")

	if err := svc.MarkAnswered(ctx, roomID, qid); err != nil {
		t.Fatalf("answer: %v", err)
	}
	once, _ := cs.ReadOnce(ctx, QuestionPath(roomID, qid))
	firstJSON, _ := json.Marshal(once)

	if err := svc.MarkAnswered(ctx, roomID, qid); err != nil {
		t.Fatalf("second answer: %v", err)
	}
	again, _ := cs.ReadOnce(ctx, QuestionPath(roomID, qid))
	secondJSON, _ := json.Marshal(again)

	if string(firstJSON) != string(secondJSON) {
		t.Errorf("mark answered not idempotent:\n once: %s\ntwice: %s", firstJSON, secondJSON)
	}
	if !again.Child("isAnswered").Bool() {
		t.Errorf("isAnswered should be true")
	}
}

func TestHighlightQuestion(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")

	if err := svc.HighlightQuestion(ctx, roomID, qid); err != nil {
		t.Fatalf("highlight: %v", err)
	}
	view, _ := svc.Room(ctx, roomID, "")
	if !view.Questions[0].IsHighlighted {
		t.Errorf("isHighlighted should be true")
	}
}

func TestDeleteQuestion(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	qid, _ := svc.SendQuestion(ctx, sessionFor("u2"), roomID, "Why?")
	_, _ = svc.LikeQuestion(ctx, sessionFor("u3"), roomID, qid)

	if err := svc.DeleteQuestion(ctx, roomID, qid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	view, _ := svc.Room(ctx, roomID, "")
	if len(view.Questions) != 0 {
		t.Errorf("questions after delete = %v", view.Questions)
	}
}

func TestCloseRoom(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	closedAt, err := svc.CloseRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closedAt == "" {
		t.Fatalf("closedAt empty")
	}

	view, err := svc.Room(ctx, roomID, "")
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	if view.ClosedAt != closedAt {
		t.Errorf("view.ClosedAt = %q, want %q", view.ClosedAt, closedAt)
	}
	if view.Title != "Go AMA" {
		t.Errorf("close must not disturb siblings, title = %q", view.Title)
	}
}

func TestRoomNotFound(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()

	if _, err := svc.Room(context.Background(), "missing1", ""); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
	if _, err := svc.Owner(context.Background(), "missing1"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("owner err = %v, want ErrRoomNotFound", err)
	}
}

func TestOwner(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	roomID, _ := svc.CreateRoom(ctx, sessionFor("u1"), "Go AMA")
	owner, err := svc.Owner(ctx, roomID)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != "u1" {
		t.Errorf("owner = %q, want u1", owner)
	}
}
