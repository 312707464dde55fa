package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const readTimeout = 5 * time.Second

// Postgres is the durable Store backend: one row per written path with
// a JSONB record value. Children enumerate in lexicographic path order.
// Change fanout goes through the Notifier so subscribers on every
// instance see every mutation.
type Postgres struct {
	pool     *pgxpool.Pool
	notifier Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextSub uint64
}

// NewPostgres creates the Postgres-backed store and, when a notifier is
// given, starts listening for change events. ctx bounds the listener's
// lifetime.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, notifier Notifier, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Postgres{
		pool:     pool,
		notifier: notifier,
		logger:   logger,
		subs:     make(map[uint64]*Subscription),
	}
	if notifier != nil {
		if err := notifier.Listen(ctx, p.fanout); err != nil {
			return nil, fmt.Errorf("listen for changes: %w", err)
		}
	}
	return p, nil
}

// ReadOnce returns a snapshot of the subtree at path, nil when absent.
func (p *Postgres) ReadOnce(ctx context.Context, path string) (*Tree, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	const query = `SELECT path, value FROM tree_nodes
		WHERE path = $1 OR path LIKE $2 ESCAPE '\'
		ORDER BY path`
	rows, err := p.pool.Query(ctx, query, path, escapeLike(path)+"/%")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer rows.Close()

	t := newTree()
	prefix := path + "/"
	for rows.Next() {
		var rowPath string
		var raw []byte
		if err := rows.Scan(&rowPath, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rowPath, err)
		}
		if rowPath == path {
			t.merge(value)
			continue
		}
		t.at(strings.Split(rowPath[len(prefix):], "/")).merge(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t.prune(), nil
}

// Write replaces the subtree at path with value.
func (p *Postgres) Write(ctx context.Context, path string, value interface{}) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const del = `DELETE FROM tree_nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\'`
	if _, err := tx.Exec(ctx, del, path, escapeLike(path)+"/%"); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	const ins = `INSERT INTO tree_nodes (path, value) VALUES ($1, $2)`
	if _, err := tx.Exec(ctx, ins, path, raw); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.announce(ctx, path)
	return nil
}

// Patch merges fields into the record at path without disturbing siblings.
func (p *Postgres) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	const query = `INSERT INTO tree_nodes (path, value) VALUES ($1, $2)
		ON CONFLICT (path) DO UPDATE
		SET value = tree_nodes.value || EXCLUDED.value, updated_at = now()`
	if _, err := p.pool.Exec(ctx, query, path, raw); err != nil {
		return fmt.Errorf("patch %s: %w", path, err)
	}
	p.announce(ctx, path)
	return nil
}

// Remove deletes the subtree at path and all descendants.
func (p *Postgres) Remove(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	const query = `DELETE FROM tree_nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\'`
	if _, err := p.pool.Exec(ctx, query, path, escapeLike(path)+"/%"); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	p.announce(ctx, path)
	return nil
}

// Subscribe registers a subscription on path. The current snapshot is
// delivered immediately.
func (p *Postgres) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	snapshot, err := p.ReadOnce(ctx, path)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	sub := newSubscription(path, func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	})
	p.subs[id] = sub
	p.mu.Unlock()
	sub.deliver(snapshot)
	return sub, nil
}

// announce routes a committed change to subscribers, through the
// notifier when present (this instance receives its own events) or
// locally otherwise.
func (p *Postgres) announce(ctx context.Context, path string) {
	if p.notifier == nil {
		p.fanout(path)
		return
	}
	if err := p.notifier.Publish(ctx, path); err != nil {
		p.logger.Warn("publish change failed, delivering locally", zap.String("path", path), zap.Error(err))
		p.fanout(path)
	}
}

func (p *Postgres) fanout(changed string) {
	p.mu.Lock()
	var stale []*Subscription
	for _, sub := range p.subs {
		if pathsOverlap(sub.path, changed) {
			stale = append(stale, sub)
		}
	}
	p.mu.Unlock()

	for _, sub := range stale {
		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		snapshot, err := p.ReadOnce(ctx, sub.path)
		cancel()
		if err != nil {
			p.logger.Warn("re-read after change failed", zap.String("path", sub.path), zap.Error(err))
			continue
		}
		sub.deliver(snapshot)
	}
}

// escapeLike escapes LIKE metacharacters in a path used as a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
