// Package store implements the realtime tree store the room pages rely
// on: records keyed by slash-delimited paths, replace/merge/delete
// writes, and channel-based subscriptions that push a fresh subtree
// snapshot on every change.
package store

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("invalid store path")
)

// Store is the tree store contract. Write replaces the subtree at path,
// Patch merges fields into the record at path, Remove deletes the
// subtree, ReadOnce returns a one-shot snapshot (nil when absent), and
// Subscribe returns a channel-based subscription that delivers the
// current snapshot immediately and again after every change to the
// subtree, descendants included.
type Store interface {
	ReadOnce(ctx context.Context, path string) (*Tree, error)
	Write(ctx context.Context, path string, value interface{}) error
	Patch(ctx context.Context, path string, fields map[string]interface{}) error
	Remove(ctx context.Context, path string) error
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Subscription delivers subtree snapshots on a channel. Snapshots
// coalesce: if the consumer lags, intermediate snapshots are dropped
// and only the latest is kept (last write wins).
type Subscription struct {
	path string

	mu     sync.Mutex
	ch     chan *Tree
	closed bool
	stop   func()
}

func newSubscription(path string, stop func()) *Subscription {
	return &Subscription{
		path: path,
		ch:   make(chan *Tree, 1),
		stop: stop,
	}
}

// Events returns the snapshot channel. It is closed by Close.
func (s *Subscription) Events() <-chan *Tree {
	return s.ch
}

// Path returns the subscribed path.
func (s *Subscription) Path() string {
	return s.path
}

// Close stops delivery, releases the subscription's resources and
// closes the events channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
	s.mu.Lock()
	close(s.ch)
	s.mu.Unlock()
}

// deliver pushes a snapshot, replacing any undelivered one.
func (s *Subscription) deliver(t *Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- t:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// ValidatePath checks a slash-delimited path: non-empty, no leading or
// trailing slash, no empty segments.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return ErrInvalidPath
		}
	}
	return nil
}

// pathsOverlap reports whether two paths address overlapping subtrees
// (equal, or one an ancestor of the other).
func pathsOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
