package gateways

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

// ETHClient defines interface for ethereum client
type ETHClient interface {
	Contract(address common.Address, abiJSON string) (*eth.Contract, error)
	CallAuth(ctx context.Context, gasLimit uint64, signer eth.Signer, fn func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error)
	EstimateGas(ctx context.Context, from common.Address, to common.Address, data []byte) (uint64, error)
	WaitMined(ctx context.Context, txID common.Hash) (*types.Receipt, error)
}

// TransactionService blockchain tx service
type transaction struct {
	client ETHClient
}

// NewTransaction new transaction gateway
func NewTransaction(_client ETHClient) *transaction {
	return &transaction{client: _client}
}

// WaitForTransactionReceipt wait for ETH tx receipt. A mined but reverted transaction returns
// its receipt together with eth.ErrReceiptStatusFailed.
func (tr *transaction) WaitForTransactionReceipt(ctx context.Context, txID common.Hash) (*types.Receipt, error) {
	receipt, err := tr.client.WaitMined(ctx, txID)
	if err != nil {
		log.Warn(ctx, "transaction not confirmed", "tx", txID.Hex(), "err", err)
		return receipt, err
	}
	log.Debug(ctx, "transaction confirmed", "tx", txID.Hex(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	return receipt, nil
}
