package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/event"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

// ClaimSettler simulates the external claim issuer: every requested claim is marked as verified
// after a fixed delay
type ClaimSettler struct {
	requests  ports.ClaimRequestRepository
	publisher pubsub.Publisher
	delay     time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewClaimSettler returns a settler. publisher may be nil, no claimSettled event is sent then.
func NewClaimSettler(ctx context.Context, requests ports.ClaimRequestRepository, publisher pubsub.Publisher, delay time.Duration) *ClaimSettler {
	ctx, cancel := context.WithCancel(ctx)
	return &ClaimSettler{
		requests:  requests,
		publisher: publisher,
		delay:     delay,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes the settler to claimRequested events
func (s *ClaimSettler) Start(subscriber pubsub.Subscriber) {
	subscriber.Subscribe(s.ctx, event.ClaimRequestedEvent, s.OnClaimRequested)
	log.Info(s.ctx, "claim settler started", "delay", s.delay)
}

// OnClaimRequested schedules the settlement of the request in the event and returns at once
func (s *ClaimSettler) OnClaimRequested(_ context.Context, msg pubsub.Message) error {
	var ev event.ClaimRequested
	if err := ev.Unmarshal(msg); err != nil {
		return errors.New("onClaimRequested unexpected data type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}
		if err := s.Settle(s.ctx, ev); err != nil {
			log.Error(s.ctx, "onClaimRequested: settlement failed", "id", ev.RequestID, "err", err)
		}
	}()
	return nil
}

// Settle marks the request as verified when it is still the pending request of the event
func (s *ClaimSettler) Settle(ctx context.Context, ev event.ClaimRequested) error {
	identity := common.HexToAddress(ev.Identity)
	topic := domain.ClaimTopic(ev.Topic)

	req, err := s.requests.Get(ctx, identity, topic)
	if errors.Is(err, domain.ErrClaimRequestNotFound) {
		log.Warn(ctx, "settle: claim request gone", "id", ev.RequestID, "identity", identity)
		return nil
	}
	if err != nil {
		return err
	}
	if req.ID != ev.RequestID || !req.IsPending() {
		log.Debug(ctx, "settle: request is not pending anymore", "id", ev.RequestID, "stored", req.ID, "status", req.Status)
		return nil
	}

	req.Settle(s.now())
	if err := s.requests.Save(ctx, req); err != nil {
		return err
	}
	log.Info(ctx, "settle: claim verified", "id", req.ID, "identity", identity, "topic", topic)

	if s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx, event.ClaimSettledEvent, &event.ClaimSettled{
		RequestID: req.ID,
		Identity:  req.Identity.Hex(),
		Topic:     uint64(req.Topic),
		SettledAt: *req.SettledAt,
	})
}

// Close stops pending settlements and waits for the running ones
func (s *ClaimSettler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
