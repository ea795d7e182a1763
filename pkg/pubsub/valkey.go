package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/polygonid/launchpad-identity/internal/log"
)

type valkeyClient struct {
	client valkey.Client
}

// NewValKeyClient returns a new pubsub client based on Valkey
func NewValKeyClient(client valkey.Client) Client {
	return &valkeyClient{
		client: client,
	}
}

// Publish publishes a new topic payload
func (vk *valkeyClient) Publish(ctx context.Context, topic string, event Event) error {
	msg, err := event.Marshal()
	if err != nil {
		return err
	}
	p, err := json.Marshal(envelope{ID: uuid.New(), Time: time.Now(), Msg: msg})
	if err != nil {
		log.Error(ctx, "error marshalling payload", "err", err)
		return err
	}
	return vk.client.Do(ctx, vk.client.B().Publish().Channel(topic).Message(string(p)).Build()).Error()
}

// Subscribe adds a topic to the subscriber. Messages are received in a background goroutine.
func (vk *valkeyClient) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	go func() {
		err := vk.client.Receive(ctx, vk.client.B().Subscribe().Channel(topic).Build(), func(msg valkey.PubSubMessage) {
			var payload envelope
			if err := json.Unmarshal([]byte(msg.Message), &payload); err != nil {
				log.Error(ctx, "error unmarshalling payload", "err", err)
				return
			}
			dispatch(ctx, topic, callback, payload.Msg)
		})
		if err != nil && ctx.Err() == nil {
			log.Error(ctx, "error subscribing to topic", "topic", topic, "err", err)
		}
	}()
}

// Close closes the pubsub client
func (vk *valkeyClient) Close() error {
	vk.client.Close()
	return nil
}
