package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactionService interface
type TransactionService interface {
	WaitForTransactionReceipt(ctx context.Context, txID common.Hash) (*types.Receipt, error)
}
