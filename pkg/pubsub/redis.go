package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/polygonid/launchpad-identity/internal/log"
)

// RedisClient struct
type RedisClient struct {
	conn *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedis returns a redis pubsub client
func NewRedis(rdb *redis.Client) *RedisClient {
	return &RedisClient{conn: rdb}
}

// Publish publishes a new topic payload
func (rdb *RedisClient) Publish(ctx context.Context, topic string, event Event) error {
	msg, err := event.Marshal()
	if err != nil {
		return err
	}
	p, err := json.Marshal(envelope{ID: uuid.New(), Time: time.Now(), Msg: msg})
	if err != nil {
		log.Error(ctx, "error marshalling payload", "err", err)
		return err
	}
	return rdb.conn.Publish(ctx, topic, p).Err()
}

// Subscribe adds a topic to the subscriber
func (rdb *RedisClient) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	pubsub := rdb.conn.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error(ctx, "subscribing to topic", "topic", topic, "err", err)
		_ = pubsub.Close()
		return
	}
	rdb.mu.Lock()
	rdb.subs = append(rdb.subs, pubsub)
	rdb.mu.Unlock()

	ch := pubsub.Channel()
	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if event.Channel != topic {
					log.Error(ctx, "msg channel != topic")
					continue
				}

				var payload envelope
				if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
					log.Error(ctx, "unmarshal msg payload", "err", err)
					continue
				}
				dispatch(ctx, topic, callback, payload.Msg)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close closes every subscription. The redis connection is owned by the caller.
func (rdb *RedisClient) Close() error {
	rdb.mu.Lock()
	defer rdb.mu.Unlock()
	for _, s := range rdb.subs {
		_ = s.Close()
	}
	rdb.subs = nil
	return nil
}
