package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// IdentityContractGateway reads claims from identity contracts
type IdentityContractGateway interface {
	GetClaimIdsByTopic(ctx context.Context, identity common.Address, topic domain.ClaimTopic) ([][32]byte, error)
	GetClaim(ctx context.Context, identity common.Address, claimID [32]byte) (*domain.Claim, error)
}

// ClaimIssuerGateway asks the claim issuer contract about claim validity
type ClaimIssuerGateway interface {
	Address() common.Address
	IsClaimValid(ctx context.Context, identity common.Address, topic domain.ClaimTopic, signature, data []byte) (bool, error)
}
