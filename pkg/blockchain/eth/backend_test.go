package eth

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeBackend answers eth_call by 4 bytes selector and records sent transactions
type fakeBackend struct {
	mu       sync.Mutex
	code     []byte
	outputs  map[[4]byte][]byte
	errs     map[[4]byte]error
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	misses   int
	gasPrice *big.Int
	chainID  *big.Int
	calls    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		code:     []byte{0x60, 0x80},
		outputs:  map[[4]byte][]byte{},
		errs:     map[[4]byte]error{},
		receipts: map[common.Hash]*types.Receipt{},
		gasPrice: big.NewInt(10_000_000_000),
		chainID:  big.NewInt(31337),
	}
}

func selector(data []byte) [4]byte {
	var s [4]byte
	copy(s[:], data)
	return s
}

func (f *fakeBackend) answer(method []byte, out []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[selector(method)] = out
}

func (f *fakeBackend) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return f.code, nil
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s := selector(call.Data)
	if err := f.errs[s]; err != nil {
		return nil, err
	}
	return f.outputs[s], nil
}

func (f *fakeBackend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1)}, nil
}

func (f *fakeBackend) PendingCodeAt(_ context.Context, _ common.Address) ([]byte, error) {
	return f.code, nil
}

func (f *fakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeBackend) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return 250_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeBackend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, _ chan<- types.Log) (ethereum.Subscription, error) {
	return nil, ethereum.NotFound
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.misses > 0 {
		f.misses--
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) ChainID(_ context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) BlockNumber(_ context.Context) (uint64, error) {
	return 1, nil
}

type keySigner struct {
	key *ecdsa.PrivateKey
}

func newKeySigner() *keySigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &keySigner{key: key}
}

func (s *keySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *keySigner) SignDigest(_ context.Context, digest []byte) ([]byte, error) {
	return crypto.Sign(digest, s.key)
}
