package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/repositories"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
	"github.com/polygonid/launchpad-identity/pkg/cache"
)

var (
	wallet       = common.HexToAddress("0xABC1234500000000000000000000000000000001")
	operator     = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	identityAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	issuerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	fixedNow     = time.UnixMilli(1700000000000)
)

type fakeSigner struct {
	address common.Address
}

func (s fakeSigner) Address() common.Address { return s.address }

func (s fakeSigner) SignDigest(_ context.Context, _ []byte) ([]byte, error) {
	return make([]byte, 65), nil
}

type fakeKeys struct {
	signer eth.Signer
	err    error
}

func (k fakeKeys) Signer(_ context.Context) (eth.Signer, error) {
	return k.signer, k.err
}

// fakeFactory is an in memory IdFactory. The identity created by CreateIdentity shows up
// once fakeTx confirms the transaction.
type fakeFactory struct {
	mu          sync.Mutex
	identities  map[common.Address]common.Address
	taken       map[string]bool
	owner       common.Address
	ownerErr    error
	getErr      error
	estimateErr error
	createErr   error
	// deploy is the address recorded by CreateIdentity, zero means the identity never appears
	deploy  common.Address
	checked []string
	created []string
	pending map[common.Hash]common.Address
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		identities: map[common.Address]common.Address{},
		taken:      map[string]bool{},
		owner:      operator,
		deploy:     identityAddr,
		pending:    map[common.Hash]common.Address{},
	}
}

func (f *fakeFactory) Address() common.Address {
	return common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
}

func (f *fakeFactory) GetIdentity(_ context.Context, w common.Address) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return common.Address{}, f.getErr
	}
	return f.identities[w], nil
}

func (f *fakeFactory) setIdentity(w, identity common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[w] = identity
}

func (f *fakeFactory) IsSaltTaken(_ context.Context, salt string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, salt)
	return f.taken[salt], nil
}

func (f *fakeFactory) Owner(_ context.Context) (common.Address, error) {
	return f.owner, f.ownerErr
}

func (f *fakeFactory) EstimateCreateIdentity(_ context.Context, _, _ common.Address, _ string) (uint64, error) {
	return 250_000, f.estimateErr
}

func (f *fakeFactory) CreateIdentity(_ context.Context, _ eth.Signer, w common.Address, salt string, _ uint64) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, salt)
	if f.createErr != nil {
		return common.Hash{}, f.createErr
	}
	hash := common.BytesToHash([]byte(salt))
	f.pending[hash] = w
	return hash, nil
}

// confirm records the identity of the transaction
func (f *fakeFactory) confirm(hash common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.pending[hash]; ok && f.deploy != (common.Address{}) {
		f.identities[w] = f.deploy
	}
	delete(f.pending, hash)
}

func (f *fakeFactory) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) createdSalts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

// fakeTx confirms factory transactions after delay. err is returned instead when set,
// confirmOnError still records the identity in that case.
type fakeTx struct {
	factory        *fakeFactory
	delay          time.Duration
	err            error
	confirmOnError bool
}

func (tx *fakeTx) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(tx.delay):
	}
	if tx.err != nil {
		if tx.confirmOnError {
			tx.factory.confirm(hash)
		}
		return nil, tx.err
	}
	tx.factory.confirm(hash)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
}

// fakeIdentities is an in memory set of identity contracts
type fakeIdentities struct {
	mu     sync.Mutex
	ids    map[common.Address][][32]byte
	claims map[[32]byte]*domain.Claim
	err    error
	reads  int
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{
		ids:    map[common.Address][][32]byte{},
		claims: map[[32]byte]*domain.Claim{},
	}
}

func (f *fakeIdentities) addClaim(identity common.Address, claim *domain.Claim) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[identity] = append(f.ids[identity], claim.ID)
	f.claims[claim.ID] = claim
}

func (f *fakeIdentities) GetClaimIdsByTopic(_ context.Context, identity common.Address, _ domain.ClaimTopic) ([][32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.ids[identity], nil
}

func (f *fakeIdentities) GetClaim(_ context.Context, _ common.Address, id [32]byte) (*domain.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[id]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return claim, nil
}

func (f *fakeIdentities) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeIssuer struct {
	address common.Address
	valid   bool
	err     error
}

func (i fakeIssuer) Address() common.Address { return i.address }

func (i fakeIssuer) IsClaimValid(_ context.Context, _ common.Address, _ domain.ClaimTopic, _, _ []byte) (bool, error) {
	return i.valid, i.err
}

// outcomes records observer notifications
type outcomes struct {
	mu   sync.Mutex
	list []string
}

func (o *outcomes) add(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, outcome)
}

func (o *outcomes) get() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.list...)
}

func newTestResolver(t *testing.T, factory *fakeFactory, tx ports.TransactionService, keys ports.KeyProvider, observed *outcomes) *identityResolver {
	t.Helper()
	var opts []ResolverOption
	if observed != nil {
		opts = append(opts, WithProvisioningObserver(observed.add))
	}
	r, ok := NewIdentityResolver(factory, tx, keys, 0, opts...).(*identityResolver)
	require.True(t, ok)
	r.now = func() time.Time { return fixedNow }
	r.intn = func(int) int { return 7 }
	return r
}

func newMemoryRequests() ports.ClaimRequestRepository {
	return repositories.NewClaimRequestCached(cache.NewMemoryCache(), 0)
}

func operatorKeys() fakeKeys {
	return fakeKeys{signer: fakeSigner{address: operator}}
}
