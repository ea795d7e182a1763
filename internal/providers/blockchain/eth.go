package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

// InitEthClient dials the configured network and returns a client using its settings
func InitEthClient(ctx context.Context, cfg config.Configuration) (*eth.Client, error) {
	clientConfig := &eth.ClientConfig{
		ReceiptTimeout:       cfg.Ethereum.ReceiptTimeout,
		DefaultGasLimit:      cfg.Identity.GasLimit,
		MinGasPrice:          eth.GweiToWei(cfg.Ethereum.MinGasPrice),
		MaxGasPrice:          eth.GweiToWei(cfg.Ethereum.MaxGasPrice),
		RPCResponseTimeout:   cfg.Ethereum.RPCResponseTimeout,
		WaitReceiptCycleTime: cfg.Ethereum.WaitReceiptCycleTime,
	}
	if cfg.Ethereum.ChainID > 0 {
		clientConfig.ChainID = big.NewInt(cfg.Ethereum.ChainID)
	}

	client, err := eth.Dial(ctx, cfg.Ethereum.URL, cfg.Ethereum.RPCRetries, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed connect to eth node %s: %w", cfg.Ethereum.URL, err)
	}
	log.Info(ctx, "ethereum client ready", "network", cfg.Ethereum.Network, "chainID", cfg.Ethereum.ChainID)
	return client, nil
}
