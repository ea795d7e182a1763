package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/polygonid/launchpad-identity/internal/log"
	lphttp "github.com/polygonid/launchpad-identity/pkg/http"
)

const (
	// Eq is for "equal" result of comparison
	Eq = 0
	// Gt is for "greater" than result of comparison
	Gt = 1
	// Lt is for "less than" result of comparison
	Lt = -1

	gasPriceIncrement               = 10
	transactionUnderpricedIncrement = 3

	defaultWaitReceiptCycleTime = time.Second
	defaultReceiptTimeout       = 2 * time.Minute
)

var (
	// ErrSignerNil when no signer is provided for an authorized call
	ErrSignerNil = errors.New("authorized calls can't be made without a signer")
	// ErrReceiptStatusFailed when receiving a failed transaction
	ErrReceiptStatusFailed = errors.New("receipt status is failed")
	// ErrReceiptNotReceived when unable to retrieve a transaction
	ErrReceiptNotReceived = errors.New("receipt not available")
)

// Backend is the subset of ethclient.Client used by Client
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Signer signs transaction digests for a single account.
// SignDigest returns a 65 bytes [R || S || V] signature with V in {0, 1}.
type Signer interface {
	Address() common.Address
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// Client is an ethereum client to call Smart Contract methods.
type Client struct {
	backend Backend
	Config  *ClientConfig
}

// ClientConfig eth client config
type ClientConfig struct {
	ChainID              *big.Int      `json:"chain_id"`
	ReceiptTimeout       time.Duration `json:"receipt_timeout"`
	DefaultGasLimit      uint64        `json:"default_gas_limit"`
	MinGasPrice          *big.Int      `json:"min_gas_price"`
	MaxGasPrice          *big.Int      `json:"max_gas_price"`
	RPCResponseTimeout   time.Duration `json:"rpc_response_time_out"`
	WaitReceiptCycleTime time.Duration `json:"wait_receipt_cycle_time_out"`
}

// NewClient creates a Client instance.
func NewClient(backend Backend, c *ClientConfig) *Client {
	return &Client{backend: backend, Config: c}
}

// Dial connects to the rpc url through a retrying http transport
func Dial(ctx context.Context, url string, retries int, c *ClientConfig) (*Client, error) {
	httpClient := lphttp.NewRetryableClient(retries, c.RPCResponseTimeout, nil)
	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewClient(ethclient.NewClient(rpcClient), c), nil
}

// Backend returns the underlying contract backend
func (c *Client) Backend() bind.ContractBackend {
	return c.backend
}

// Contract binds the abi to address using this client backend
func (c *Client) Contract(address common.Address, abiJSON string) (*Contract, error) {
	return NewContract(address, abiJSON, c.backend, c.Config.RPCResponseTimeout)
}

// CallAuth performs a Smart Contract method call that requires authorization.
// This call requires a valid account with Ether that can be spent during the
// call.
func (c *Client) CallAuth(ctx context.Context, gasLimit uint64, signer Signer, fn func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	if signer == nil {
		return nil, ErrSignerNil
	}

	gasPrice, err := c.getGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gasPrice: %w", err)
	}
	log.Debug(ctx, "Transaction metadata", "gasPrice", gasPrice)

	cid, err := c.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chainID: %w", err)
	}

	auth := NewTransactOpts(ctx, signer, cid)
	auth.Value = big.NewInt(0) // in wei
	if gasLimit == 0 {
		auth.GasLimit = c.Config.DefaultGasLimit // in units
	} else {
		auth.GasLimit = gasLimit // in units
	}
	auth.GasPrice = gasPrice

	tx, err := fn(auth)
	if err != nil && strings.Contains(err.Error(), "transaction underpriced") {
		oldGasPrice := new(big.Int).Set(auth.GasPrice)
		auth.GasPrice = new(big.Int).Mul(gasPrice, big.NewInt(transactionUnderpricedIncrement))
		log.Debug(ctx, "underpriced transaction has been resent",
			"old gasPrice", oldGasPrice,
			"new gasPrice", auth.GasPrice)
		tx, err = fn(auth)
	}
	if tx != nil {
		log.Debug(ctx, "Transaction", "tx", tx.Hash().Hex(), "nonce", tx.Nonce())
	}
	return tx, err
}

// NewTransactOpts returns transact options that sign with signer on chain chainID
func NewTransactOpts(ctx context.Context, signer Signer, chainID *big.Int) *bind.TransactOpts {
	txSigner := types.LatestSignerForChainID(chainID)
	from := signer.Address()
	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != from {
				return nil, bind.ErrNotAuthorized
			}
			h := txSigner.Hash(tx)
			sig, err := signer.SignDigest(ctx, h[:])
			if err != nil {
				return nil, err
			}
			return tx.WithSignature(txSigner, sig)
		},
	}
}

// EstimateGas estimates the gas of a call from from to contract with data
func (c *Client) EstimateGas(ctx context.Context, from common.Address, to common.Address, data []byte) (uint64, error) {
	_ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	return c.backend.EstimateGas(_ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	})
}

// WaitMined waits for the receipt of txID until ReceiptTimeout.
// A receipt with failed status is returned together with ErrReceiptStatusFailed.
func (c *Client) WaitMined(ctx context.Context, txID common.Hash) (*types.Receipt, error) {
	receipt, err := c.waitReceipt(ctx, txID, c.Config.ReceiptTimeout)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, ErrReceiptStatusFailed
	}
	return receipt, nil
}

func (c *Client) waitReceipt(ctx context.Context, txID common.Hash, timeout time.Duration) (*types.Receipt, error) {
	log.Debug(ctx, "Waiting for receipt", "tx", txID.Hex())

	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}
	_ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cycle := c.Config.WaitReceiptCycleTime
	if cycle <= 0 {
		cycle = defaultWaitReceiptCycleTime
	}
	ticker := time.NewTicker(cycle)
	defer ticker.Stop()
	for {
		receipt, err := c.transactionReceipt(_ctx, txID)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.Debug(ctx, "get transaction receipt", "tx", txID.Hex(), "err", err)
		}
		if receipt != nil {
			log.Debug(ctx, "Receipt received", "tx", txID.Hex(), "block", receipt.BlockNumber)
			return receipt, nil
		}

		select {
		case <-_ctx.Done():
			log.Debug(ctx, "Pending transaction / Wait receipt timeout", "tx", txID.Hex())
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrReceiptNotReceived
		case <-ticker.C:
		}
	}
}

func (c *Client) transactionReceipt(ctx context.Context, txID common.Hash) (*types.Receipt, error) {
	_ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	return c.backend.TransactionReceipt(_ctx, txID)
}

func (c *Client) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Config.RPCResponseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
}

// CurrentBlock returns the current block number in the blockchain
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	_ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	return c.backend.BlockNumber(_ctx)
}

// ChainID get chain id. The configured value wins over the node reported one.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if c.Config.ChainID != nil && c.Config.ChainID.Sign() > 0 {
		return c.Config.ChainID, nil
	}
	_ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	cid, err := c.backend.ChainID(_ctx)
	if err != nil {
		return nil, err
	}
	return cid, nil
}

// Ping checks the node answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.CurrentBlock(ctx)
	return err
}

// getGasPrice returns suggested gas price within configured bounds
func (c *Client) getGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice := new(big.Int)
	zero := big.NewInt(0)

	// if configured min gas price == max gas price and is not zero, then force this value
	if c.Config.MinGasPrice != nil && c.Config.MinGasPrice.Cmp(zero) == Gt &&
		c.Config.MaxGasPrice != nil && c.Config.MinGasPrice.Cmp(c.Config.MaxGasPrice) == Eq {
		return gasPrice.Set(c.Config.MaxGasPrice), nil
	}

	_ctx, cancel := c.rpcContext(ctx)
	defer cancel()
	suggestedGasPrice, err := c.backend.SuggestGasPrice(_ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggested gas price: %w", err)
	}

	// increase suggested gas price by 10% for better confirmation speed
	inc := new(big.Int).Set(suggestedGasPrice)
	inc.Div(inc, new(big.Int).SetUint64(gasPriceIncrement))
	suggestedGasPrice.Add(suggestedGasPrice, inc)

	gasPrice.Set(suggestedGasPrice)

	// correct value if estimated gas price is less than configured min value
	if c.Config.MinGasPrice != nil && c.Config.MinGasPrice.Cmp(zero) == Gt &&
		gasPrice.Cmp(c.Config.MinGasPrice) == Lt {
		gasPrice.Set(c.Config.MinGasPrice)
	}
	// correct value if estimated gas price is more than configured max value
	if c.Config.MaxGasPrice != nil && c.Config.MaxGasPrice.Cmp(zero) == Gt &&
		gasPrice.Cmp(c.Config.MaxGasPrice) == Gt {
		gasPrice.Set(c.Config.MaxGasPrice)
	}

	if gasPrice.Cmp(suggestedGasPrice) != Eq {
		log.Debug(ctx, "Transaction metadata",
			"suggested gas price", suggestedGasPrice,
			"corrected gas price", gasPrice)
	}

	return gasPrice, nil
}

// GweiToWei converts an integer amount of gwei
func GweiToWei(gwei int) *big.Int {
	if gwei <= 0 {
		return nil
	}
	return new(big.Int).Mul(big.NewInt(int64(gwei)), big.NewInt(1_000_000_000))
}
