package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	changesChannel = "store:changes"
	publishTimeout = 5 * time.Second
)

// Notifier fans a changed path out to every instance's subscribers.
// The Postgres backend publishes after each committed mutation and
// reacts to every received path, its own included, so single- and
// multi-instance deployments behave the same.
type Notifier interface {
	Publish(ctx context.Context, path string) error
	Listen(ctx context.Context, handler func(path string)) error
}

type changeEvent struct {
	Path string `json:"path"`
	At   int64  `json:"at"`
}

// RedisNotifier implements Notifier over a Redis pub/sub channel.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a Redis-backed change notifier.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// Publish announces a changed path.
func (r *RedisNotifier) Publish(ctx context.Context, path string) error {
	body, err := json.Marshal(changeEvent{Path: path, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(pubCtx, changesChannel, body).Err()
}

// Listen subscribes to the changes channel and calls handler for each
// received path until ctx is done.
func (r *RedisNotifier) Listen(ctx context.Context, handler func(path string)) error {
	pubsub := r.client.Subscribe(ctx, changesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev changeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("invalid change event", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				handler(ev.Path)
			}
		}
	}()
	return nil
}
