package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

func TestResolveIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("no identity", func(t *testing.T) {
		factory := newFakeFactory()
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)
		address, err := r.ResolveIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.Nil(t, address)

		has, err := r.HasIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("identity found", func(t *testing.T) {
		factory := newFakeFactory()
		factory.setIdentity(wallet, identityAddr)
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)
		address, err := r.ResolveIdentity(ctx, wallet)
		require.NoError(t, err)
		require.NotNil(t, address)
		assert.Equal(t, identityAddr, *address)

		has, err := r.HasIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("read failure is not absence", func(t *testing.T) {
		factory := newFakeFactory()
		factory.getErr = &eth.DecodeFailure{Method: "getIdentity", Typed: errors.New("bad output"), Raw: errors.New("short data")}
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)
		address, err := r.ResolveIdentity(ctx, wallet)
		assert.Nil(t, address)
		var rerr *domain.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, wallet, rerr.Wallet)

		_, err = r.HasIdentity(ctx, wallet)
		assert.ErrorAs(t, err, &rerr)
	})

	t.Run("factory not configured", func(t *testing.T) {
		r := NewIdentityResolver(nil, nil, nil, 0)
		_, err := r.ResolveIdentity(ctx, wallet)
		var cerr *domain.ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS", cerr.Field)

		_, err = r.ProvisionIdentity(ctx, wallet)
		assert.ErrorAs(t, err, &cerr)
	})
}

func TestProvisionIdentity(t *testing.T) {
	ctx := context.Background()
	expectedSalt := fmt.Sprintf("ABC12345_%d", fixedNow.UnixMilli())

	t.Run("creates the identity", func(t *testing.T) {
		factory := newFakeFactory()
		observed := &outcomes{}
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), observed)

		identity, err := r.ProvisionIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, identityAddr, identity.Address)
		assert.Equal(t, wallet, identity.Owner)
		assert.Equal(t, expectedSalt, identity.Salt)
		assert.True(t, identity.Provisioned())
		assert.Equal(t, []string{expectedSalt}, factory.createdSalts())
		assert.Equal(t, []string{"created"}, observed.get())
	})

	t.Run("existing identity sends nothing", func(t *testing.T) {
		factory := newFakeFactory()
		factory.setIdentity(wallet, identityAddr)
		observed := &outcomes{}
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), observed)

		identity, err := r.ProvisionIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, identityAddr, identity.Address)
		assert.False(t, identity.Provisioned())
		assert.Zero(t, factory.createCalls())
		assert.Equal(t, []string{"existing"}, observed.get())
	})

	t.Run("resolution failure stops provisioning", func(t *testing.T) {
		factory := newFakeFactory()
		factory.getErr = errors.New("connection refused")
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)

		_, err := r.ProvisionIdentity(ctx, wallet)
		var rerr *domain.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Zero(t, factory.createCalls())
	})

	t.Run("gas estimation failure is not fatal", func(t *testing.T) {
		factory := newFakeFactory()
		factory.estimateErr = errors.New("execution reverted")
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)

		identity, err := r.ProvisionIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, identityAddr, identity.Address)
	})

	t.Run("owner read failure is not fatal", func(t *testing.T) {
		factory := newFakeFactory()
		factory.ownerErr = errors.New("timeout")
		r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)

		_, err := r.ProvisionIdentity(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, 1, factory.createCalls())
	})

	type failureConfig struct {
		name    string
		setup   func(f *fakeFactory, tx *fakeTx) fakeKeys
		reason  domain.ProvisioningFailure
		creates int
	}
	for _, tc := range []failureConfig{
		{
			name: "no operator key",
			setup: func(_ *fakeFactory, _ *fakeTx) fakeKeys {
				return fakeKeys{err: errors.New("key not found")}
			},
			reason: domain.ProvisioningNoCredential,
		},
		{
			name: "key provider without signer",
			setup: func(_ *fakeFactory, _ *fakeTx) fakeKeys {
				return fakeKeys{}
			},
			reason: domain.ProvisioningNoCredential,
		},
		{
			name: "operator key of the wallet itself",
			setup: func(_ *fakeFactory, _ *fakeTx) fakeKeys {
				return fakeKeys{signer: fakeSigner{address: wallet}}
			},
			reason: domain.ProvisioningNoCredential,
		},
		{
			name: "operator is not the owner",
			setup: func(f *fakeFactory, _ *fakeTx) fakeKeys {
				f.owner = common.HexToAddress("0x1111111111111111111111111111111111111111")
				return operatorKeys()
			},
			reason: domain.ProvisioningNotOwner,
		},
		{
			name: "both salts taken",
			setup: func(f *fakeFactory, _ *fakeTx) fakeKeys {
				f.taken[expectedSalt] = true
				f.taken[expectedSalt+"_7"] = true
				return operatorKeys()
			},
			reason: domain.ProvisioningSaltCollision,
		},
		{
			name: "submission failed",
			setup: func(f *fakeFactory, _ *fakeTx) fakeKeys {
				f.createErr = errors.New("nonce too low")
				return operatorKeys()
			},
			reason:  domain.ProvisioningSubmissionFailed,
			creates: 1,
		},
		{
			name: "reverted",
			setup: func(_ *fakeFactory, tx *fakeTx) fakeKeys {
				tx.err = fmt.Errorf("tx 0x01: %w", eth.ErrReceiptStatusFailed)
				return operatorKeys()
			},
			reason:  domain.ProvisioningReverted,
			creates: 1,
		},
		{
			name: "confirmation failed",
			setup: func(_ *fakeFactory, tx *fakeTx) fakeKeys {
				tx.err = errors.New("receipt timeout")
				return operatorKeys()
			},
			reason:  domain.ProvisioningConfirmationFailed,
			creates: 1,
		},
		{
			name: "confirmed but not resolved",
			setup: func(f *fakeFactory, _ *fakeTx) fakeKeys {
				f.deploy = common.Address{}
				return operatorKeys()
			},
			reason:  domain.ProvisioningNotResolved,
			creates: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			factory := newFakeFactory()
			tx := &fakeTx{factory: factory}
			keys := tc.setup(factory, tx)
			observed := &outcomes{}
			r := newTestResolver(t, factory, tx, keys, observed)

			identity, err := r.ProvisionIdentity(ctx, wallet)
			assert.Nil(t, identity)
			require.Error(t, err)
			assert.True(t, domain.IsProvisioningReason(err, tc.reason), err.Error())
			assert.Equal(t, tc.creates, factory.createCalls())
			assert.Equal(t, []string{string(tc.reason)}, observed.get())
		})
	}
}

func TestProvisionIdentitySaltRetry(t *testing.T) {
	factory := newFakeFactory()
	first := fmt.Sprintf("ABC12345_%d", fixedNow.UnixMilli())
	factory.taken[first] = true
	r := newTestResolver(t, factory, &fakeTx{factory: factory}, operatorKeys(), nil)

	identity, err := r.ProvisionIdentity(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, first+"_7", identity.Salt)
	assert.Equal(t, []string{first, first + "_7"}, factory.checked)
	assert.Equal(t, []string{first + "_7"}, factory.createdSalts())
}

func TestProvisionIdentityRecovers(t *testing.T) {
	for _, txErr := range []error{
		eth.ErrReceiptStatusFailed,
		errors.New("receipt timeout"),
	} {
		t.Run(txErr.Error(), func(t *testing.T) {
			factory := newFakeFactory()
			tx := &fakeTx{factory: factory, err: txErr, confirmOnError: true}
			observed := &outcomes{}
			r := newTestResolver(t, factory, tx, operatorKeys(), observed)

			identity, err := r.ProvisionIdentity(context.Background(), wallet)
			require.NoError(t, err)
			assert.Equal(t, identityAddr, identity.Address)
			assert.Equal(t, []string{"recovered"}, observed.get())
		})
	}
}

func TestProvisionIdentityConcurrent(t *testing.T) {
	factory := newFakeFactory()
	tx := &fakeTx{factory: factory, delay: 50 * time.Millisecond}
	r := newTestResolver(t, factory, tx, operatorKeys(), nil)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]common.Address, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity, err := r.ProvisionIdentity(context.Background(), wallet)
			errs[i] = err
			if identity != nil {
				results[i] = identity.Address
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, identityAddr, results[i])
	}
	assert.Equal(t, 1, factory.createCalls())
}

func TestProvisionIdentitySurvivesCallerCancel(t *testing.T) {
	factory := newFakeFactory()
	tx := &fakeTx{factory: factory, delay: 200 * time.Millisecond}
	r := newTestResolver(t, factory, tx, operatorKeys(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	identity, err := r.ProvisionIdentity(ctx, wallet)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, identity)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	require.Eventually(t, func() bool {
		address, err := r.ResolveIdentity(context.Background(), wallet)
		return err == nil && address != nil
	}, 2*time.Second, 5*time.Millisecond)

	identity, err = r.ProvisionIdentity(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, identityAddr, identity.Address)
	assert.Equal(t, 1, factory.createCalls())
}

func TestNewSalt(t *testing.T) {
	lower := common.HexToAddress("0xabc1234500000000000000000000000000000001")
	assert.Equal(t, "ABC12345_1700000000000", NewSalt(lower, fixedNow))
	assert.Equal(t, "ABC12345_1700000000000", NewSalt(wallet, fixedNow))
}
