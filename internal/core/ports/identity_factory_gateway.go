package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

// IdentityFactoryGateway is the interface implemented by the IdFactory contract gateway.
// GetIdentity returns the zero address when the wallet has no identity.
type IdentityFactoryGateway interface {
	Address() common.Address
	GetIdentity(ctx context.Context, wallet common.Address) (common.Address, error)
	IsSaltTaken(ctx context.Context, salt string) (bool, error)
	Owner(ctx context.Context) (common.Address, error)
	EstimateCreateIdentity(ctx context.Context, from, wallet common.Address, salt string) (uint64, error)
	CreateIdentity(ctx context.Context, signer eth.Signer, wallet common.Address, salt string, gasLimit uint64) (common.Hash, error)
}
