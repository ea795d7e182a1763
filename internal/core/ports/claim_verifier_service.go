package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// ClaimVerifierService checks claims and registers verification requests
type ClaimVerifierService interface {
	IsVerified(ctx context.Context, identity common.Address, topic domain.ClaimTopic) (bool, error)
	RequestVerification(ctx context.Context, wallet, identity common.Address, topic domain.ClaimTopic) (*domain.ClaimRequest, error)
	RequestState(ctx context.Context, identity common.Address, topic domain.ClaimTopic) (*domain.ClaimRequest, error)
}
