package pubsub

import (
	"context"
	"sync"
)

// Published is a message recorded by the mock
type Published struct {
	Topic string
	Msg   Message
}

// Mock is a mock pubsub client. It records published events and never delivers them.
type Mock struct {
	mu        sync.Mutex
	published []Published
}

// NewMock returns a new mock pubsub client
func NewMock() *Mock {
	return &Mock{}
}

// Publish mock
func (m *Mock) Publish(_ context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, Published{Topic: topic, Msg: msg})
	return nil
}

// Subscribe mock
func (m *Mock) Subscribe(_ context.Context, _ string, _ EventHandler) {}

// Close mock
func (m *Mock) Close() error { return nil }

// Published returns the recorded messages
func (m *Mock) Published() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.published...)
}
