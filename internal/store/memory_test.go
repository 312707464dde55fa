package store

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

func TestWriteAndReadOnce(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Write(ctx, "rooms/r1", map[string]interface{}{"title": "Demo", "authorId": "u1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := m.ReadOnce(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := snap.Child("title").Str(); got != "Demo" {
		t.Errorf("title = %q, want %q", got, "Demo")
	}
	if got := snap.Child("authorId").Str(); got != "u1" {
		t.Errorf("authorId = %q, want %q", got, "u1")
	}
}

func TestReadOnceMissingPath(t *testing.T) {
	t.Parallel()
	m := NewMemory()

	snap, err := m.ReadOnce(context.Background(), "rooms/nope")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Exists() {
		t.Errorf("snapshot for missing path should not exist")
	}
}

func TestWriteReplacesSubtree(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Write(ctx, "rooms/r1", map[string]interface{}{"title": "Demo"}); err != nil {
		t.Fatalf("write room: %v", err)
	}
	if err := m.Write(ctx, "rooms/r1/questions/q1", map[string]interface{}{"content": "why?"}); err != nil {
		t.Fatalf("write question: %v", err)
	}
	// Full replace drops the question row.
	if err := m.Write(ctx, "rooms/r1", map[string]interface{}{"title": "Demo 2"}); err != nil {
		t.Fatalf("rewrite room: %v", err)
	}

	snap, err := m.ReadOnce(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := snap.Child("title").Str(); got != "Demo 2" {
		t.Errorf("title = %q, want %q", got, "Demo 2")
	}
	if snap.Child("questions") != nil {
		t.Errorf("questions should be gone after full replace")
	}
}

func TestPatchMergesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Write(ctx, "rooms/r1/questions/q1", map[string]interface{}{"content": "why?", "isAnswered": false}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.Patch(ctx, "rooms/r1/questions/q1", map[string]interface{}{"isAnswered": true}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	once, err := m.ReadOnce(ctx, "rooms/r1/questions/q1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !once.Child("isAnswered").Bool() {
		t.Errorf("isAnswered should be true after patch")
	}
	if got := once.Child("content").Str(); got != "why?" {
		t.Errorf("content disturbed by patch: %q", got)
	}

	first, err := json.Marshal(once)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := m.Patch(ctx, "rooms/r1/questions/q1", map[string]interface{}{"isAnswered": true}); err != nil {
		t.Fatalf("second patch: %v", err)
	}
	again, err := m.ReadOnce(ctx, "rooms/r1/questions/q1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	second, err := json.Marshal(again)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("patch not idempotent:\n once: %s\ntwice: %s", first, second)
	}
}

func TestRemoveDeletesDescendants(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Write(ctx, "rooms/r1/questions/q1", map[string]interface{}{"content": "why?"}); err != nil {
		t.Fatalf("write question: %v", err)
	}
	if err := m.Write(ctx, "rooms/r1/questions/q1/likes/l1", map[string]interface{}{"authorId": "u2"}); err != nil {
		t.Fatalf("write like: %v", err)
	}
	if err := m.Remove(ctx, "rooms/r1/questions/q1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	snap, err := m.ReadOnce(ctx, "rooms/r1/questions/q1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Exists() {
		t.Errorf("question subtree should be gone, got %v", snap)
	}
}

func TestEnumerationOrderIsInsertionOrder(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	for _, id := range []string{"q9", "q1", "q5"} {
		if err := m.Write(ctx, "rooms/r1/questions/"+id, map[string]interface{}{"content": id}); err != nil {
			t.Fatalf("write %s: %v", id, err)
		}
	}

	snap, err := m.ReadOnce(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := snap.Child("questions").Keys()
	want := []string{"q9", "q1", "q5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("question order = %v, want %v", got, want)
	}
}

func TestSubscribeDeliversCurrentThenUpdates(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Write(ctx, "rooms/r1", map[string]interface{}{"title": "Demo"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	sub, err := m.Subscribe(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	initial := <-sub.Events()
	if got := initial.Child("title").Str(); got != "Demo" {
		t.Errorf("initial title = %q, want %q", got, "Demo")
	}

	if err := m.Write(ctx, "rooms/r1/questions/q1", map[string]interface{}{"content": "why?"}); err != nil {
		t.Fatalf("write question: %v", err)
	}
	next := <-sub.Events()
	if next.Child("questions").Len() != 1 {
		t.Errorf("descendant change not delivered: %v", next)
	}
}

func TestRemovedQuestionAbsentFromNextSnapshot(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	if err := m.Write(ctx, "rooms/r1", map[string]interface{}{"title": "Demo"}); err != nil {
		t.Fatalf("write room: %v", err)
	}
	if err := m.Write(ctx, "rooms/r1/questions/q1", map[string]interface{}{"content": "why?"}); err != nil {
		t.Fatalf("write question: %v", err)
	}

	sub, err := m.Subscribe(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	<-sub.Events()

	if err := m.Remove(ctx, "rooms/r1/questions/q1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	snap := <-sub.Events()
	for _, id := range snap.Child("questions").Keys() {
		if id == "q1" {
			t.Errorf("q1 still listed after remove")
		}
	}
}

func TestOverlappingSubscriptionsAreIndependent(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	roomSub, err := m.Subscribe(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("subscribe room: %v", err)
	}
	questionSub, err := m.Subscribe(ctx, "rooms/r1/questions/q1")
	if err != nil {
		t.Fatalf("subscribe question: %v", err)
	}
	<-roomSub.Events()
	<-questionSub.Events()

	questionSub.Close()

	if err := m.Write(ctx, "rooms/r1/questions/q1", map[string]interface{}{"content": "why?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap := <-roomSub.Events()
	if snap.Child("questions").Len() != 1 {
		t.Errorf("room subscription should keep receiving after sibling closed")
	}
	if _, open := <-questionSub.Events(); open {
		t.Errorf("closed subscription should deliver nothing")
	}
	roomSub.Close()
}

func TestSubscriptionCoalescesBursts(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	sub, err := m.Subscribe(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	// A burst of writes while the consumer lags: only the latest
	// snapshot must remain.
	for i := 0; i < 5; i++ {
		if err := m.Patch(ctx, "rooms/r1", map[string]interface{}{"title": string(rune('a' + i))}); err != nil {
			t.Fatalf("patch: %v", err)
		}
	}
	snap := <-sub.Events()
	if got := snap.Child("title").Str(); got != "e" {
		t.Errorf("coalesced snapshot title = %q, want %q", got, "e")
	}
}

func TestValidatePath(t *testing.T) {
	t.Parallel()
	for _, path := range []string{"", "/rooms", "rooms/", "rooms//r1"} {
		if err := ValidatePath(path); err == nil {
			t.Errorf("ValidatePath(%q) should fail", path)
		}
	}
	if err := ValidatePath("rooms/r1/questions/q1"); err != nil {
		t.Errorf("ValidatePath valid path: %v", err)
	}
}
