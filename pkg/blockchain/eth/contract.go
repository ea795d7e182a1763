package eth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract is a contract binding with two read paths: the strict typed decode done by
// bind.BoundContract and a raw eth_call whose output is decoded by the caller.
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	caller  bind.ContractCaller
	timeout time.Duration
}

// NewContract parses abiJSON and binds it to address
func NewContract(address common.Address, abiJSON string, backend bind.ContractBackend, timeout time.Duration) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing abi: %w", err)
	}
	return &Contract{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		caller:  backend,
		timeout: timeout,
	}, nil
}

// Address of the contract
func (c *Contract) Address() common.Address {
	return c.address
}

// Call performs the typed read of method and returns the unpacked outputs
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	_ctx, cancel := c.context(ctx)
	defer cancel()
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: _ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// RawCall performs an eth_call of method and returns the undecoded output
func (c *Contract) RawCall(ctx context.Context, method string, args ...any) ([]byte, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	_ctx, cancel := c.context(ctx)
	defer cancel()
	return c.caller.CallContract(_ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
}

// Pack encodes the call data of method
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	return c.abi.Pack(method, args...)
}

// Transact sends a transaction calling method
func (c *Contract) Transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	return c.bound.Transact(opts, method, args...)
}

func (c *Contract) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ReadObserver is told which path served a read
type ReadObserver func(method string, path ReadPath)

// ReadPath names the path that produced a read result
type ReadPath string

// Read paths
const (
	ReadPathTyped  ReadPath = "typed"
	ReadPathRaw    ReadPath = "raw"
	ReadPathFailed ReadPath = "failed"
)

// Read calls method with the typed decode and falls back to a raw call decoded by lenient
// when the typed path fails. Both failing yields a *DecodeFailure.
func Read[T any](ctx context.Context, c *Contract, observe ReadObserver, method string, lenient func([]byte) (T, error), args ...any) (T, error) {
	return ReadWith(ctx, c, observe, method, FirstOutput[T], lenient, args...)
}

// ReadWith is Read with a custom conversion of the typed outputs
func ReadWith[T any](ctx context.Context, c *Contract, observe ReadObserver, method string, typed func([]any) (T, error), lenient func([]byte) (T, error), args ...any) (T, error) {
	var zero T
	out, typedErr := c.Call(ctx, method, args...)
	if typedErr == nil {
		v, err := typed(out)
		if err == nil {
			notify(observe, method, ReadPathTyped)
			return v, nil
		}
		typedErr = err
	}

	data, rawErr := c.RawCall(ctx, method, args...)
	if rawErr != nil {
		notify(observe, method, ReadPathFailed)
		return zero, &DecodeFailure{Method: method, Typed: typedErr, Raw: rawErr}
	}
	v, err := lenient(data)
	if err != nil {
		notify(observe, method, ReadPathFailed)
		return zero, &DecodeFailure{Method: method, Typed: typedErr, Raw: err, Data: data}
	}
	notify(observe, method, ReadPathRaw)
	return v, nil
}

// FirstOutput returns the first typed output as T
func FirstOutput[T any](out []any) (T, error) {
	var zero T
	if len(out) == 0 {
		return zero, fmt.Errorf("no outputs")
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected output type %T", out[0])
	}
	return v, nil
}

func notify(observe ReadObserver, method string, path ReadPath) {
	if observe != nil {
		observe(method, path)
	}
}
