package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

const (
	defaultGasLimit = 1_000_000
	saltEntropy     = 1000
)

// ProvisioningObserver is notified of every provisioning attempt outcome:
// "existing", "created", "recovered" or a domain.ProvisioningFailure
type ProvisioningObserver func(outcome string)

// ResolverOption configures the identity resolver
type ResolverOption func(*identityResolver)

// WithProvisioningObserver sets the observer of provisioning outcomes
func WithProvisioningObserver(observer ProvisioningObserver) ResolverOption {
	return func(r *identityResolver) {
		r.observe = observer
	}
}

type identityResolver struct {
	factory   ports.IdentityFactoryGateway
	txService ports.TransactionService
	keys      ports.KeyProvider
	gasLimit  uint64
	observe   ProvisioningObserver

	group singleflight.Group
	now   func() time.Time
	intn  func(n int) int
}

// NewIdentityResolver returns the identity resolver. factory and keys may be nil when they are not
// configured, every call needing them fails with a domain.ConfigurationError.
func NewIdentityResolver(factory ports.IdentityFactoryGateway, txService ports.TransactionService, keys ports.KeyProvider, gasLimit uint64, opts ...ResolverOption) ports.IdentityResolverService {
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	r := &identityResolver{
		factory:   factory,
		txService: txService,
		keys:      keys,
		gasLimit:  gasLimit,
		now:       time.Now,
		intn:      rand.Intn, // nolint:gosec
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasIdentity tells if wallet owns an identity. A read failure is returned as a domain.ResolutionError.
func (r *identityResolver) HasIdentity(ctx context.Context, wallet common.Address) (bool, error) {
	address, err := r.ResolveIdentity(ctx, wallet)
	if err != nil {
		return false, err
	}
	return address != nil, nil
}

// ResolveIdentity returns the identity of wallet, or nil when the factory confirms it has none
func (r *identityResolver) ResolveIdentity(ctx context.Context, wallet common.Address) (*common.Address, error) {
	if r.factory == nil {
		return nil, &domain.ConfigurationError{Field: "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS"}
	}
	address, err := r.factory.GetIdentity(ctx, wallet)
	if err != nil {
		log.Warn(ctx, "resolveIdentity: cannot read identity", "wallet", wallet, "err", err)
		return nil, &domain.ResolutionError{Wallet: wallet, Err: err}
	}
	if address == (common.Address{}) {
		return nil, nil
	}
	return &address, nil
}

// ProvisionIdentity returns the identity of wallet, creating it when missing.
// Concurrent calls for the same wallet share a single provisioning.
func (r *identityResolver) ProvisionIdentity(ctx context.Context, wallet common.Address) (*domain.Identity, error) {
	if r.factory == nil {
		return nil, &domain.ConfigurationError{Field: "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS"}
	}
	if r.keys == nil {
		return nil, &domain.ConfigurationError{Field: "LAUNCHPAD_KEY_STORE_PROVIDER", Reason: "no operator key provider"}
	}

	// The shared call outlives its callers, the transaction may already be on its way.
	// A cancelled caller returns at once and leaves it running.
	sharedCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strings.ToLower(wallet.Hex()), func() (interface{}, error) {
		return r.provision(sharedCtx, wallet)
	})
	select {
	case <-ctx.Done():
		log.Info(ctx, "provisionIdentity: caller gone, provisioning continues", "wallet", wallet)
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Debug(ctx, "provisionIdentity: joined running provisioning", "wallet", wallet)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		identity := *res.Val.(*domain.Identity)
		return &identity, nil
	}
}

func (r *identityResolver) provision(ctx context.Context, wallet common.Address) (*domain.Identity, error) {
	existing, err := r.ResolveIdentity(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.notify("existing")
		return domain.NewIdentity(wallet, *existing), nil
	}

	signer, err := r.keys.Signer(ctx)
	if err != nil || signer == nil {
		if err == nil {
			err = errors.New("key provider returned no signer")
		}
		log.Error(ctx, "provisionIdentity: operator key not available", "err", err)
		return nil, r.fail(domain.ProvisioningNoCredential, err)
	}
	operator := signer.Address()
	if operator == wallet {
		log.Error(ctx, "provisionIdentity: operator key belongs to the wallet", "wallet", wallet)
		return nil, r.fail(domain.ProvisioningNoCredential, fmt.Errorf("operator %s is the wallet owner", operator.Hex()))
	}

	owner, err := r.factory.Owner(ctx)
	switch {
	case err != nil:
		log.Warn(ctx, "provisionIdentity: cannot read factory owner, sending anyway", "err", err)
	case owner != operator:
		log.Error(ctx, "provisionIdentity: operator is not the factory owner", "operator", operator, "owner", owner)
		return nil, r.fail(domain.ProvisioningNotOwner, fmt.Errorf("operator %s is not the factory owner %s", operator.Hex(), owner.Hex()))
	}

	salt, err := r.salt(ctx, wallet)
	if err != nil {
		return nil, r.fail(domain.ProvisioningSaltCollision, err)
	}

	if estimated, err := r.factory.EstimateCreateIdentity(ctx, operator, wallet, salt); err != nil {
		log.Warn(ctx, "provisionIdentity: gas estimation failed", "wallet", wallet, "err", err)
	} else {
		log.Info(ctx, "provisionIdentity: gas estimated", "wallet", wallet, "estimated", estimated, "limit", r.gasLimit)
		if estimated > r.gasLimit {
			log.Warn(ctx, "provisionIdentity: estimation above gas limit", "estimated", estimated, "limit", r.gasLimit)
		}
	}

	txHash, err := r.factory.CreateIdentity(ctx, signer, wallet, salt, r.gasLimit)
	if err != nil {
		log.Error(ctx, "provisionIdentity: createIdentity not sent", "wallet", wallet, "err", err)
		return r.recoverIdentity(ctx, wallet, nil, salt, domain.ProvisioningSubmissionFailed, err)
	}
	log.Info(ctx, "provisionIdentity: createIdentity sent", "wallet", wallet, "salt", salt, "tx", txHash.Hex())

	if _, err := r.txService.WaitForTransactionReceipt(ctx, txHash); err != nil {
		reason := domain.ProvisioningConfirmationFailed
		if errors.Is(err, eth.ErrReceiptStatusFailed) {
			reason = domain.ProvisioningReverted
		}
		return r.recoverIdentity(ctx, wallet, &txHash, salt, reason, err)
	}

	address, err := r.ResolveIdentity(ctx, wallet)
	if err != nil {
		return nil, r.fail(domain.ProvisioningNotResolved, err)
	}
	if address == nil {
		return nil, r.fail(domain.ProvisioningNotResolved, errors.New("factory has no identity after a confirmed createIdentity"))
	}
	r.notify("created")
	log.Info(ctx, "provisionIdentity: identity created", "wallet", wallet, "identity", address)
	return &domain.Identity{Address: *address, Owner: wallet, TxHash: &txHash, Salt: salt}, nil
}

// recoverIdentity looks for an identity created despite the failure before giving up
func (r *identityResolver) recoverIdentity(ctx context.Context, wallet common.Address, txHash *common.Hash, salt string, reason domain.ProvisioningFailure, cause error) (*domain.Identity, error) {
	address, err := r.ResolveIdentity(ctx, wallet)
	if err != nil {
		log.Warn(ctx, "provisionIdentity: re-resolution failed", "wallet", wallet, "err", err)
	}
	if address != nil {
		r.notify("recovered")
		log.Info(ctx, "provisionIdentity: identity found after failure", "wallet", wallet, "identity", address, "reason", reason)
		return &domain.Identity{Address: *address, Owner: wallet, TxHash: txHash, Salt: salt}, nil
	}
	return nil, r.fail(reason, cause)
}

// salt returns an unused salt. A taken salt is regenerated once with extra entropy.
func (r *identityResolver) salt(ctx context.Context, wallet common.Address) (string, error) {
	salt := NewSalt(wallet, r.now())
	if !r.saltTaken(ctx, salt) {
		return salt, nil
	}
	retry := fmt.Sprintf("%s_%d", salt, r.intn(saltEntropy))
	log.Info(ctx, "provisionIdentity: salt taken, retrying", "salt", salt, "retry", retry)
	if !r.saltTaken(ctx, retry) {
		return retry, nil
	}
	return "", fmt.Errorf("salts %s and %s are taken", salt, retry)
}

func (r *identityResolver) saltTaken(ctx context.Context, salt string) bool {
	taken, err := r.factory.IsSaltTaken(ctx, salt)
	if err != nil {
		log.Warn(ctx, "provisionIdentity: isSaltTaken failed, assuming free", "salt", salt, "err", err)
		return false
	}
	return taken
}

func (r *identityResolver) fail(reason domain.ProvisioningFailure, err error) error {
	r.notify(string(reason))
	return domain.NewProvisioningError(reason, err)
}

func (r *identityResolver) notify(outcome string) {
	if r.observe != nil {
		r.observe(outcome)
	}
}

// NewSalt returns the provisioning salt of wallet: the first 8 hex digits of the address,
// upper cased, and the unix time in milliseconds. For example ABC12345_1700000000000.
func NewSalt(wallet common.Address, now time.Time) string {
	return fmt.Sprintf("%s_%d", strings.ToUpper(wallet.Hex()[2:10]), now.UnixMilli())
}
