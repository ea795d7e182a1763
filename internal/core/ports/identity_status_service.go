package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// IdentityStatusService keeps the per wallet identity status shown to clients
type IdentityStatusService interface {
	Status(ctx context.Context, wallet common.Address) domain.IdentityStatus
	Snapshot(ctx context.Context, wallet common.Address) (domain.IdentityStatus, bool)
	RequestKyc(ctx context.Context, wallet common.Address) (domain.IdentityStatus, error)
	InitializeIdentity(ctx context.Context, wallet common.Address) (domain.IdentityStatus, error)
	RefreshStatus(ctx context.Context, wallet common.Address) (domain.IdentityStatus, error)
	Close()
}
