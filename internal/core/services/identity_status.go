package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/event"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/poller"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollCeiling  = 30 * time.Second
)

// IdentityStatusConfig holds the status controller settings
type IdentityStatusConfig struct {
	AutoProvision bool
	PollInterval  time.Duration
	PollCeiling   time.Duration
}

// LoopObserver is notified with the outcome of every finished claim poll loop
type LoopObserver func(outcome poller.Outcome)

// StatusOption configures the identity status controller
type StatusOption func(*identityStatus)

// WithLoopObserver sets the observer of poll loop outcomes
func WithLoopObserver(observer LoopObserver) StatusOption {
	return func(c *identityStatus) {
		c.observe = observer
	}
}

type identityStatus struct {
	resolver ports.IdentityResolverService
	verifier ports.ClaimVerifierService
	cfg      IdentityStatusConfig
	observe  LoopObserver
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	sessions   map[common.Address]*domain.IdentityStatus
	loops      map[string]*poller.Task
	checking   map[string]bool
	requesting map[string]bool
}

// NewIdentityStatus returns the status controller. Background work runs on a context derived from ctx
// until Close is called.
func NewIdentityStatus(ctx context.Context, resolver ports.IdentityResolverService, verifier ports.ClaimVerifierService, cfg IdentityStatusConfig, opts ...StatusOption) *identityStatus {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollCeiling <= 0 {
		cfg.PollCeiling = defaultPollCeiling
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &identityStatus{
		resolver:   resolver,
		verifier:   verifier,
		cfg:        cfg,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[common.Address]*domain.IdentityStatus),
		loops:      make(map[string]*poller.Task),
		checking:   make(map[string]bool),
		requesting: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current snapshot. The first call for a wallet starts its initialization
// in the background and reports the loading phase.
func (c *identityStatus) Status(_ context.Context, wallet common.Address) domain.IdentityStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[wallet]; ok {
		return *s
	}
	s := domain.NewLoadingStatus(wallet, c.now())
	c.sessions[wallet] = &s
	c.goLocked(func() { c.initialize(wallet) })
	return s
}

// Snapshot returns the current status without opening a session. ok is false for unseen wallets.
func (c *identityStatus) Snapshot(_ context.Context, wallet common.Address) (domain.IdentityStatus, bool) {
	return c.snapshot(wallet)
}

// RequestKyc registers a KYC request and polls until it is verified or the ceiling is hit.
// A loop already running for the identity makes this a no-op.
func (c *identityStatus) RequestKyc(ctx context.Context, wallet common.Address) (domain.IdentityStatus, error) {
	s, ok := c.snapshot(wallet)
	if !ok || !s.Ready() {
		return s, domain.ErrIdentityNotInitialized
	}
	if s.HasClaim {
		return s, nil
	}
	identity := *s.IdentityAddress
	key := loopKey(identity, domain.ClaimTopicKYC)

	c.mu.Lock()
	if c.loops[key] != nil || c.requesting[key] {
		c.mu.Unlock()
		return s, nil
	}
	c.requesting[key] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.requesting, key)
		c.mu.Unlock()
	}()

	req, err := c.verifier.RequestVerification(ctx, wallet, identity, domain.ClaimTopicKYC)
	if err != nil {
		return c.update(wallet, func(st *domain.IdentityStatus) {
			st.Error = err.Error()
		}), err
	}
	status := c.update(wallet, func(st *domain.IdentityStatus) {
		st.Error = ""
		st.KycStatus = req.Status
		st.RequestPending = req.IsPending()
		if req.Status == domain.ClaimRequestVerified {
			st.HasClaim = true
		}
	})
	if req.IsPending() {
		c.startLoop(wallet, identity, domain.ClaimTopicKYC)
		status, _ = c.snapshot(wallet)
	}
	return status, nil
}

// InitializeIdentity provisions the identity of a wallet that has none.
// On failure the wallet stays uninitialized and the error is recorded in the status.
func (c *identityStatus) InitializeIdentity(ctx context.Context, wallet common.Address) (domain.IdentityStatus, error) {
	c.mu.Lock()
	s, ok := c.sessions[wallet]
	if !ok {
		st := domain.NewLoadingStatus(wallet, c.now())
		s = &st
		c.sessions[wallet] = s
	}
	current := *s
	c.mu.Unlock()
	if current.Ready() {
		return current, nil
	}

	identity, err := c.resolver.ProvisionIdentity(ctx, wallet)
	if err != nil {
		log.Error(ctx, "initializeIdentity: provisioning failed", "wallet", wallet, "err", err)
		return c.update(wallet, func(st *domain.IdentityStatus) {
			if st.Ready() {
				return
			}
			st.Phase = domain.PhaseUninitialized
			st.Error = err.Error()
		}), err
	}
	c.setIdentity(wallet, identity.Address)
	c.resume(ctx, wallet, identity.Address, domain.ClaimTopicKYC)
	status, _ := c.snapshot(wallet)
	return status, nil
}

// RefreshStatus checks the KYC claim now. A check in flight for the identity makes it a no-op.
// An uninitialized wallet is resolved again without provisioning.
func (c *identityStatus) RefreshStatus(ctx context.Context, wallet common.Address) (domain.IdentityStatus, error) {
	s, ok := c.snapshot(wallet)
	if !ok {
		return c.Status(ctx, wallet), nil
	}
	switch {
	case s.Phase == domain.PhaseLoading:
		return s, nil
	case !s.Ready():
		address, err := c.resolver.ResolveIdentity(ctx, wallet)
		if err != nil {
			return c.update(wallet, func(st *domain.IdentityStatus) { st.Error = err.Error() }), err
		}
		if address == nil {
			return c.update(wallet, func(st *domain.IdentityStatus) { st.Error = "" }), nil
		}
		c.setIdentity(wallet, *address)
		s, _ = c.snapshot(wallet)
	}

	if _, err := c.check(ctx, wallet, *s.IdentityAddress, domain.ClaimTopicKYC); err != nil {
		status, _ := c.snapshot(wallet)
		return status, err
	}
	status, _ := c.snapshot(wallet)
	return status, nil
}

// OnClaimSettled checks the claim of every wallet bound to the settled identity
func (c *identityStatus) OnClaimSettled(_ context.Context, msg pubsub.Message) error {
	var ev event.ClaimSettled
	if err := ev.Unmarshal(msg); err != nil {
		return errors.New("onClaimSettled unexpected data type")
	}
	identity := common.HexToAddress(ev.Identity)
	topic := domain.ClaimTopic(ev.Topic)

	c.mu.Lock()
	defer c.mu.Unlock()
	for wallet, s := range c.sessions {
		if s.IdentityAddress == nil || *s.IdentityAddress != identity {
			continue
		}
		wallet := wallet
		c.goLocked(func() { _, _ = c.check(c.ctx, wallet, identity, topic) })
	}
	return nil
}

// Close cancels every poll loop and background initialization and waits for them
func (c *identityStatus) Close() {
	c.mu.Lock()
	c.closed = true
	for _, task := range c.loops {
		task.Stop()
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// initialize resolves (and optionally provisions) the identity, then reads the KYC claim
func (c *identityStatus) initialize(wallet common.Address) {
	ctx := log.With(c.ctx, "wallet", wallet)
	address, err := c.resolver.ResolveIdentity(ctx, wallet)
	if err != nil {
		c.setUninitialized(wallet, err)
		return
	}
	if address == nil {
		if !c.cfg.AutoProvision {
			c.setUninitialized(wallet, nil)
			return
		}
		identity, err := c.resolver.ProvisionIdentity(ctx, wallet)
		if err != nil {
			log.Error(ctx, "initialize: provisioning failed", "err", err)
			c.setUninitialized(wallet, err)
			return
		}
		address = &identity.Address
	}
	c.setIdentity(wallet, *address)
	c.resume(ctx, wallet, *address, domain.ClaimTopicKYC)
}

// resume checks the claim and restarts polling when a stored request is still pending
func (c *identityStatus) resume(ctx context.Context, wallet, identity common.Address, topic domain.ClaimTopic) {
	res, err := c.check(ctx, wallet, identity, topic)
	if err == nil && res.pending {
		log.Info(ctx, "resume: pending claim request found", "identity", identity, "topic", topic)
		c.startLoop(wallet, identity, topic)
	}
}

// claimCheck is the result of a claim check
type claimCheck struct {
	verified bool
	pending  bool
	skipped  bool
}

// check reads the claim and stores the result in the wallet status. The check is skipped when
// another one for the same identity and topic is running.
func (c *identityStatus) check(ctx context.Context, wallet, identity common.Address, topic domain.ClaimTopic) (claimCheck, error) {
	key := loopKey(identity, topic)
	c.mu.Lock()
	if c.checking[key] {
		c.mu.Unlock()
		return claimCheck{skipped: true}, nil
	}
	c.checking[key] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.checking, key)
		c.mu.Unlock()
	}()

	verified, err := c.verifier.IsVerified(ctx, identity, topic)
	if err != nil {
		log.Warn(ctx, "check: claim verification failed", "identity", identity, "topic", topic, "err", err)
		c.update(wallet, func(st *domain.IdentityStatus) {
			if st.Phase == domain.PhaseLoading {
				st.Phase = domain.PhaseReady
			}
			st.Error = err.Error()
		})
		return claimCheck{}, err
	}

	req, err := c.verifier.RequestState(ctx, identity, topic)
	if err != nil {
		log.Warn(ctx, "check: cannot read claim request", "identity", identity, "err", err)
		req = domain.NotRequestedClaim(identity, topic)
	}

	c.update(wallet, func(st *domain.IdentityStatus) {
		st.Phase = domain.PhaseReady
		st.Error = ""
		st.HasClaim = verified
		if verified {
			st.KycStatus = domain.ClaimRequestVerified
			st.RequestPending = false
		} else {
			st.KycStatus = req.Status
		}
	})

	if verified {
		c.mu.Lock()
		task := c.loops[key]
		c.mu.Unlock()
		if task != nil {
			task.Resolve()
		}
	}
	return claimCheck{verified: verified, pending: !verified && req.IsPending()}, nil
}

// startLoop polls the claim until verification or the ceiling. At most one loop runs per identity and topic.
func (c *identityStatus) startLoop(wallet, identity common.Address, topic domain.ClaimTopic) {
	key := loopKey(identity, topic)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.loops[key] != nil {
		return
	}

	ctx := log.With(c.ctx, "wallet", wallet, "identity", identity, "topic", topic)
	task := poller.New(key, c.cfg.PollInterval, c.cfg.PollCeiling, func(ctx context.Context) (bool, error) {
		res, err := c.check(ctx, wallet, identity, topic)
		return res.verified, err
	})
	if err := task.Start(ctx); err != nil {
		log.Error(ctx, "startLoop: cannot start poll loop", "err", err)
		return
	}
	c.loops[key] = task
	c.update0(wallet, func(st *domain.IdentityStatus) { st.RequestPending = true })
	log.Info(ctx, "startLoop: polling claim", "interval", c.cfg.PollInterval, "ceiling", c.cfg.PollCeiling)

	c.goLocked(func() {
		outcome := task.Wait()
		c.mu.Lock()
		if c.loops[key] == task {
			delete(c.loops, key)
		}
		c.update0(wallet, func(st *domain.IdentityStatus) { st.RequestPending = false })
		c.mu.Unlock()
		if c.observe != nil {
			c.observe(outcome)
		}
		log.Info(ctx, "startLoop: poll loop finished", "outcome", outcome, "ticks", task.Ticks())
	})
}

func (c *identityStatus) setIdentity(wallet, identity common.Address) {
	c.update(wallet, func(st *domain.IdentityStatus) {
		st.IdentityAddress = &identity
		st.Error = ""
		if st.Phase == domain.PhaseUninitialized {
			st.Phase = domain.PhaseLoading
		}
	})
}

func (c *identityStatus) setUninitialized(wallet common.Address, err error) {
	c.update(wallet, func(st *domain.IdentityStatus) {
		if st.Ready() {
			return
		}
		st.Phase = domain.PhaseUninitialized
		st.Error = ""
		if err != nil {
			st.Error = err.Error()
		}
	})
}

// update applies fn to the wallet status and returns the new snapshot
func (c *identityStatus) update(wallet common.Address, fn func(*domain.IdentityStatus)) domain.IdentityStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update0(wallet, fn)
}

// update0 is update with c.mu held
func (c *identityStatus) update0(wallet common.Address, fn func(*domain.IdentityStatus)) domain.IdentityStatus {
	s, ok := c.sessions[wallet]
	if !ok {
		st := domain.NewLoadingStatus(wallet, c.now())
		s = &st
		c.sessions[wallet] = s
	}
	fn(s)
	s.UpdatedAt = c.now()
	return *s
}

func (c *identityStatus) snapshot(wallet common.Address) (domain.IdentityStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[wallet]
	if !ok {
		return domain.IdentityStatus{Wallet: wallet, Phase: domain.PhaseUninitialized, KycStatus: domain.ClaimRequestNotRequested}, false
	}
	return *s, true
}

// goLocked runs fn in a tracked goroutine. c.mu must be held.
func (c *identityStatus) goLocked(fn func()) {
	if c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func loopKey(identity common.Address, topic domain.ClaimTopic) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(identity.Hex()), uint64(topic))
}
