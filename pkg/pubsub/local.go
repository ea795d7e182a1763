package pubsub

import (
	"context"
	"sync"
)

type subscription struct {
	ctx      context.Context
	callback EventHandler
}

// Local is an in process pubsub. Every subscriber gets its own copy of the message.
type Local struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	wg     sync.WaitGroup
	closed bool
}

// NewLocal returns an in process pubsub client
func NewLocal() *Local {
	return &Local{subs: make(map[string][]subscription)}
}

// Publish delivers the event asynchronously to the live subscribers of topic
func (l *Local) Publish(ctx context.Context, topic string, event Event) error {
	msg, err := event.Marshal()
	if err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil
	}
	for _, s := range l.subs[topic] {
		if s.ctx.Err() != nil {
			continue
		}
		l.wg.Add(1)
		go func(s subscription) {
			defer l.wg.Done()
			dispatch(s.ctx, topic, s.callback, append(Message(nil), msg...))
		}(s)
	}
	return nil
}

// Subscribe registers the callback until ctx is done
func (l *Local) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[topic] = append(l.subs[topic], subscription{ctx: ctx, callback: callback})
}

// Close drops the subscribers and waits for the running callbacks
func (l *Local) Close() error {
	l.mu.Lock()
	l.closed = true
	l.subs = make(map[string][]subscription)
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}
