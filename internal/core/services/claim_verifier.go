package services

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/event"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

type claimVerifier struct {
	identities ports.IdentityContractGateway
	issuer     ports.ClaimIssuerGateway
	requests   ports.ClaimRequestRepository
	publisher  pubsub.Publisher
	strict     bool
	now        func() time.Time
}

// NewClaimVerifier returns the claim verifier. With strict validation every claim is checked
// against the issuer contract, otherwise a claim id for the topic is enough.
// issuer may be nil when strict is false.
func NewClaimVerifier(identities ports.IdentityContractGateway, issuer ports.ClaimIssuerGateway, requests ports.ClaimRequestRepository, publisher pubsub.Publisher, strict bool) ports.ClaimVerifierService {
	return &claimVerifier{
		identities: identities,
		issuer:     issuer,
		requests:   requests,
		publisher:  publisher,
		strict:     strict,
		now:        time.Now,
	}
}

// IsVerified tells if identity holds a valid claim for topic. A settled local request counts as verified.
func (v *claimVerifier) IsVerified(ctx context.Context, identity common.Address, topic domain.ClaimTopic) (bool, error) {
	req, err := v.requests.Get(ctx, identity, topic)
	switch {
	case err == nil && req.Status == domain.ClaimRequestVerified:
		return true, nil
	case err != nil && !errors.Is(err, domain.ErrClaimRequestNotFound):
		log.Warn(ctx, "isVerified: cannot read claim request", "identity", identity, "topic", topic, "err", err)
	}

	ids, err := v.identities.GetClaimIdsByTopic(ctx, identity, topic)
	if err != nil {
		return false, &domain.VerificationError{Identity: identity, Topic: topic, Err: err}
	}
	if len(ids) == 0 {
		return false, nil
	}
	if !v.strict {
		return true, nil
	}
	if v.issuer == nil {
		return false, &domain.ConfigurationError{Field: "LAUNCHPAD_CLAIM_ISSUER_ADDRESS"}
	}

	for _, id := range ids {
		claim, err := v.identities.GetClaim(ctx, identity, id)
		if err != nil {
			return false, &domain.VerificationError{Identity: identity, Topic: topic, Err: err}
		}
		if claim.Issuer != v.issuer.Address() {
			log.Debug(ctx, "isVerified: claim from another issuer", "identity", identity, "issuer", claim.Issuer)
			continue
		}
		valid, err := v.issuer.IsClaimValid(ctx, identity, topic, claim.Signature, claim.Data)
		if err != nil {
			return false, &domain.VerificationError{Identity: identity, Topic: topic, Err: err}
		}
		if valid {
			return true, nil
		}
	}
	return false, nil
}

// RequestVerification stores a pending request and signals the issuer. It never touches the chain.
// A request already pending is signaled again, a verified one is returned untouched.
func (v *claimVerifier) RequestVerification(ctx context.Context, wallet, identity common.Address, topic domain.ClaimTopic) (*domain.ClaimRequest, error) {
	req, err := v.requests.Get(ctx, identity, topic)
	switch {
	case err == nil && req.Status == domain.ClaimRequestVerified:
		return req, nil
	case err == nil && req.IsPending():
		log.Info(ctx, "requestVerification: request already pending", "identity", identity, "topic", topic, "id", req.ID)
	default:
		if err != nil && !errors.Is(err, domain.ErrClaimRequestNotFound) {
			log.Warn(ctx, "requestVerification: cannot read claim request", "identity", identity, "err", err)
		}
		req = domain.NewClaimRequest(wallet, identity, topic, v.now())
		if err := v.requests.Save(ctx, req); err != nil {
			log.Error(ctx, "requestVerification: cannot save claim request", "identity", identity, "err", err)
			return nil, err
		}
	}

	err = v.publisher.Publish(ctx, event.ClaimRequestedEvent, &event.ClaimRequested{
		RequestID:   req.ID,
		Wallet:      req.Wallet.Hex(),
		Identity:    req.Identity.Hex(),
		Topic:       uint64(req.Topic),
		RequestedAt: req.RequestedAt,
	})
	if err != nil {
		log.Error(ctx, "requestVerification: cannot publish claim request", "identity", identity, "err", err)
		return nil, err
	}
	log.Info(ctx, "requestVerification: claim requested", "wallet", wallet, "identity", identity, "topic", topic, "id", req.ID)
	return req, nil
}

// RequestState returns the stored request, or a not_requested one when nothing is stored
func (v *claimVerifier) RequestState(ctx context.Context, identity common.Address, topic domain.ClaimTopic) (*domain.ClaimRequest, error) {
	req, err := v.requests.Get(ctx, identity, topic)
	if errors.Is(err, domain.ErrClaimRequestNotFound) {
		return domain.NotRequestedClaim(identity, topic), nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}
