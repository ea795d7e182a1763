package ports

import (
	"context"

	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

// KeyProvider returns the operator signer allowed to create identities
type KeyProvider interface {
	Signer(ctx context.Context) (eth.Signer, error)
}
