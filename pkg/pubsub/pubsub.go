package pubsub

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/redis"
)

// Event defines the payload
type Event interface {
	Marshal() (msg Message, err error)
	Unmarshal(msg Message) error
}

// Message is the payload received in a pubsub subscriber. The input for callback functions
type Message []byte

// Publisher sends topics to the pubsub
type Publisher interface {
	Publish(ctx context.Context, topic string, payload Event) error
}

// EventHandler is the type that functions that handle an MyEvent must comply.
type EventHandler func(context.Context, Message) error

// Subscriber subscribes to the pubsub topics.
// Subscribe returns once the subscription is registered; callbacks run until ctx is done or the client is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, callback EventHandler)
}

// Client is formed by the publisher and subscriber
type Client interface {
	Publisher
	Subscriber
	Close() error
}

// envelope wraps every message sent through a broker
type envelope struct {
	ID   uuid.UUID `json:"id"`
	Time time.Time `json:"time"`
	Msg  Message   `json:"msg"`
}

// NewPubSub - creates a new pubsub client based on the configuration.
// The memory provider gets an in process client, so publisher and subscribers must share the binary.
func NewPubSub(ctx context.Context, cfg config.Cache) (Client, error) {
	switch cfg.Provider {
	case config.CacheProviderMemory:
		return NewLocal(), nil
	case config.CacheProviderRedis:
		rdb, err := redis.Open(ctx, cfg.URL)
		if err != nil {
			log.Error(ctx, "cannot connect to redis", "err", err, "host", cfg.URL)
			return nil, err
		}
		return NewRedis(rdb), nil
	case config.CacheProviderValkey:
		client, err := redis.OpenValkey(ctx, cfg.URL)
		if err != nil {
			log.Error(ctx, "cannot connect to valkey", "err", err, "host", cfg.URL)
			return nil, err
		}
		return NewValKeyClient(client), nil
	default:
		return nil, fmt.Errorf("unknown pubsub provider %q", cfg.Provider)
	}
}

// dispatch runs the callback, turning a panic into a logged error
func dispatch(ctx context.Context, topic string, callback EventHandler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "pubsub callback panic", "topic", topic, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := callback(ctx, msg); err != nil {
		log.Error(ctx, "executing callback function", "topic", topic, "err", err)
	}
}
