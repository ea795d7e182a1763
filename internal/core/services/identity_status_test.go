package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/event"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/poller"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

const (
	testPollInterval = 20 * time.Millisecond
	waitFor          = 2 * time.Second
	tick             = 5 * time.Millisecond
)

// loops records the outcome of finished poll loops
type loops struct {
	mu   sync.Mutex
	list []poller.Outcome
}

func (l *loops) add(outcome poller.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append(l.list, outcome)
}

func (l *loops) get() []poller.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]poller.Outcome(nil), l.list...)
}

type statusFixture struct {
	factory    *fakeFactory
	identities *fakeIdentities
	requests   ports.ClaimRequestRepository
	pubsub     *pubsub.Local
	resolver   *identityResolver
	verifier   ports.ClaimVerifierService
	status     *identityStatus
	loops      *loops
}

func newStatusFixture(t *testing.T, cfg IdentityStatusConfig) *statusFixture {
	t.Helper()
	f := &statusFixture{
		factory:    newFakeFactory(),
		identities: newFakeIdentities(),
		requests:   newMemoryRequests(),
		pubsub:     pubsub.NewLocal(),
		loops:      &loops{},
	}
	f.resolver = newTestResolver(t, f.factory, &fakeTx{factory: f.factory, delay: 10 * time.Millisecond}, operatorKeys(), nil)
	f.verifier = NewClaimVerifier(f.identities, nil, f.requests, f.pubsub, false)
	if cfg.PollInterval == 0 {
		cfg.PollInterval = testPollInterval
	}
	f.status = NewIdentityStatus(context.Background(), f.resolver, f.verifier, cfg, WithLoopObserver(f.loops.add))
	f.pubsub.Subscribe(context.Background(), event.ClaimSettledEvent, f.status.OnClaimSettled)
	t.Cleanup(func() {
		f.status.Close()
		_ = f.pubsub.Close()
	})
	return f
}

func (f *statusFixture) waitReady(t *testing.T) domain.IdentityStatus {
	t.Helper()
	var s domain.IdentityStatus
	require.Eventually(t, func() bool {
		s = f.status.Status(context.Background(), wallet)
		return s.Phase != domain.PhaseLoading
	}, waitFor, tick)
	return s
}

func TestStatusProvisionsOnFirstLoad(t *testing.T) {
	f := newStatusFixture(t, IdentityStatusConfig{AutoProvision: true})

	first := f.status.Status(context.Background(), wallet)
	assert.Equal(t, domain.PhaseLoading, first.Phase)
	assert.Equal(t, domain.ClaimRequestNotRequested, first.KycStatus)

	s := f.waitReady(t)
	assert.Equal(t, domain.PhaseReady, s.Phase)
	require.NotNil(t, s.IdentityAddress)
	assert.Equal(t, identityAddr, *s.IdentityAddress)
	assert.False(t, s.HasClaim)
	assert.False(t, s.RequestPending)
	assert.Equal(t, domain.ClaimRequestNotRequested, s.KycStatus)
	assert.Empty(t, s.Error)
	assert.Equal(t, []string{fmt.Sprintf("ABC12345_%d", fixedNow.UnixMilli())}, f.factory.createdSalts())
}

func TestSnapshotOpensNoSession(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{AutoProvision: true})

	s, ok := f.status.Snapshot(ctx, wallet)
	assert.False(t, ok)
	assert.Equal(t, domain.PhaseUninitialized, s.Phase)
	assert.Never(t, func() bool { return f.factory.createCalls() > 0 }, 50*time.Millisecond, tick)

	f.waitReady(t)
	s, ok = f.status.Snapshot(ctx, wallet)
	assert.True(t, ok)
	assert.Equal(t, domain.PhaseReady, s.Phase)
	assert.Equal(t, 1, f.factory.createCalls())
}

func TestStatusWithoutAutoProvision(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{})

	s := f.waitReady(t)
	assert.Equal(t, domain.PhaseUninitialized, s.Phase)
	assert.Empty(t, s.Error)
	assert.Zero(t, f.factory.createCalls())

	_, err := f.status.RequestKyc(ctx, wallet)
	assert.ErrorIs(t, err, domain.ErrIdentityNotInitialized)

	s, err = f.status.InitializeIdentity(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReady, s.Phase)
	require.NotNil(t, s.IdentityAddress)
	assert.Equal(t, identityAddr, *s.IdentityAddress)
	assert.Equal(t, 1, f.factory.createCalls())

	again, err := f.status.InitializeIdentity(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, s.IdentityAddress, again.IdentityAddress)
	assert.Equal(t, 1, f.factory.createCalls())
}

func TestInitializeIdentityFailure(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{})
	f.factory.owner = common.HexToAddress("0x1111111111111111111111111111111111111111")

	s, err := f.status.InitializeIdentity(ctx, wallet)
	require.Error(t, err)
	assert.True(t, domain.IsProvisioningReason(err, domain.ProvisioningNotOwner))
	assert.Equal(t, domain.PhaseUninitialized, s.Phase)
	assert.Nil(t, s.IdentityAddress)
	assert.Contains(t, s.Error, "not_owner")
}

func TestStatusResolutionFailure(t *testing.T) {
	f := newStatusFixture(t, IdentityStatusConfig{AutoProvision: true})
	f.factory.getErr = errors.New("connection refused")

	s := f.waitReady(t)
	assert.Equal(t, domain.PhaseUninitialized, s.Phase)
	assert.Contains(t, s.Error, "connection refused")
	assert.Zero(t, f.factory.createCalls())
}

func TestRefreshStatusResolvesWithoutProvisioning(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{})
	s := f.waitReady(t)
	require.Equal(t, domain.PhaseUninitialized, s.Phase)

	s, err := f.status.RefreshStatus(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseUninitialized, s.Phase)

	// created somewhere else
	f.factory.setIdentity(wallet, identityAddr)
	s, err = f.status.RefreshStatus(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReady, s.Phase)
	require.NotNil(t, s.IdentityAddress)
	assert.Equal(t, identityAddr, *s.IdentityAddress)
	assert.Zero(t, f.factory.createCalls())
}

func TestRefreshStatusFindsClaim(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{})
	f.factory.setIdentity(wallet, identityAddr)
	s := f.waitReady(t)
	require.Equal(t, domain.PhaseReady, s.Phase)
	assert.False(t, s.HasClaim)

	f.identities.addClaim(identityAddr, kycClaim(1, issuerAddr.Bytes()))
	s, err := f.status.RefreshStatus(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, s.HasClaim)
	assert.Equal(t, domain.ClaimRequestVerified, s.KycStatus)

	f.identities.mu.Lock()
	f.identities.err = errors.New("rpc down")
	f.identities.mu.Unlock()
	s, err = f.status.RefreshStatus(ctx, wallet)
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.PhaseReady, s.Phase)
	assert.Contains(t, s.Error, "rpc down")
}

func TestRequestKycSettles(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{PollCeiling: waitFor})
	f.factory.setIdentity(wallet, identityAddr)
	settler := NewClaimSettler(ctx, f.requests, f.pubsub, 50*time.Millisecond)
	defer settler.Close()
	settler.Start(f.pubsub)

	s := f.waitReady(t)
	require.Equal(t, domain.ClaimRequestNotRequested, s.KycStatus)

	s, err := f.status.RequestKyc(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimRequestPending, s.KycStatus)
	assert.True(t, s.RequestPending)
	assert.False(t, s.HasClaim)

	require.Eventually(t, func() bool {
		s = f.status.Status(ctx, wallet)
		return s.HasClaim && !s.RequestPending
	}, waitFor, tick)
	assert.Equal(t, domain.ClaimRequestVerified, s.KycStatus)

	require.Eventually(t, func() bool {
		return len(f.loops.get()) == 1
	}, waitFor, tick)
	assert.Equal(t, []poller.Outcome{poller.OutcomeResolved}, f.loops.get())

	// verified claims make new requests a no-op
	s, err = f.status.RequestKyc(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, s.HasClaim)
	assert.False(t, s.RequestPending)
}

func TestRequestKycSingleLoop(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{PollCeiling: 200 * time.Millisecond})
	f.factory.setIdentity(wallet, identityAddr)
	s := f.waitReady(t)
	require.Equal(t, domain.PhaseReady, s.Phase)

	var published atomic.Int32
	f.pubsub.Subscribe(ctx, event.ClaimRequestedEvent, func(context.Context, pubsub.Message) error {
		published.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.status.RequestKyc(ctx, wallet)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	f.status.mu.Lock()
	assert.Len(t, f.status.loops, 1)
	f.status.mu.Unlock()
	require.Eventually(t, func() bool { return published.Load() == 1 }, waitFor, tick)

	// no settler: the loop gives up at the ceiling
	require.Eventually(t, func() bool {
		return len(f.loops.get()) == 1
	}, waitFor, tick)
	assert.Equal(t, []poller.Outcome{poller.OutcomeTimedOut}, f.loops.get())

	s = f.status.Status(ctx, wallet)
	assert.False(t, s.RequestPending)
	assert.False(t, s.HasClaim)
	assert.Equal(t, domain.ClaimRequestPending, s.KycStatus)
	assert.Empty(t, s.Error)

	reads := f.identities.readCount()
	time.Sleep(3 * testPollInterval)
	assert.Equal(t, reads, f.identities.readCount())
	assert.Equal(t, int32(1), published.Load())
}

func TestStatusResumesPendingRequest(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{PollCeiling: waitFor})
	f.factory.setIdentity(wallet, identityAddr)
	req := domain.NewClaimRequest(wallet, identityAddr, domain.ClaimTopicKYC, fixedNow)
	require.NoError(t, f.requests.Save(ctx, req))

	s := f.waitReady(t)
	assert.Equal(t, domain.ClaimRequestPending, s.KycStatus)
	require.Eventually(t, func() bool {
		return f.status.Status(ctx, wallet).RequestPending
	}, waitFor, tick)

	settler := NewClaimSettler(ctx, f.requests, f.pubsub, 0)
	defer settler.Close()
	require.NoError(t, settler.Settle(ctx, requestedEvent(req)))

	require.Eventually(t, func() bool {
		s = f.status.Status(ctx, wallet)
		return s.HasClaim && !s.RequestPending
	}, waitFor, tick)
}

func TestStatusClose(t *testing.T) {
	ctx := context.Background()
	f := newStatusFixture(t, IdentityStatusConfig{PollCeiling: time.Hour})
	f.factory.setIdentity(wallet, identityAddr)
	f.waitReady(t)

	_, err := f.status.RequestKyc(ctx, wallet)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		f.status.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("close did not stop the poll loop")
	}
	assert.Equal(t, []poller.Outcome{poller.OutcomeCancelled}, f.loops.get())

	// new wallets are not initialized after close
	other := common.HexToAddress("0x0000000000000000000000000000000000000c01")
	s := f.status.Status(ctx, other)
	assert.Equal(t, domain.PhaseLoading, s.Phase)
}
