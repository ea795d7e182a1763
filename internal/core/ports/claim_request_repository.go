package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// ClaimRequestRepository stores claim requests by (identity, topic).
// Get returns domain.ErrClaimRequestNotFound when nothing is stored.
type ClaimRequestRepository interface {
	Save(ctx context.Context, req *domain.ClaimRequest) error
	Get(ctx context.Context, identity common.Address, topic domain.ClaimTopic) (*domain.ClaimRequest, error)
	Delete(ctx context.Context, identity common.Address, topic domain.ClaimTopic) error
}
