package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// IdentityResolverService resolves and provisions the identity contract of a wallet
type IdentityResolverService interface {
	HasIdentity(ctx context.Context, wallet common.Address) (bool, error)
	ResolveIdentity(ctx context.Context, wallet common.Address) (*common.Address, error)
	ProvisionIdentity(ctx context.Context, wallet common.Address) (*domain.Identity, error)
}
