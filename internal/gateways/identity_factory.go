package gateways

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type identityFactory struct {
	client   ETHClient
	contract *eth.Contract
	observe  eth.ReadObserver
}

// NewIdentityFactory returns the gateway of the IdFactory deployed at address.
// observe may be nil.
func NewIdentityFactory(client ETHClient, address common.Address, observe eth.ReadObserver) (*identityFactory, error) {
	contract, err := client.Contract(address, eth.IdFactoryABI)
	if err != nil {
		return nil, errors.Wrap(err, "binding identity factory")
	}
	return &identityFactory{client: client, contract: contract, observe: observe}, nil
}

// Address of the factory
func (f *identityFactory) Address() common.Address {
	return f.contract.Address()
}

// GetIdentity returns the identity of wallet or the zero address when it has none
func (f *identityFactory) GetIdentity(ctx context.Context, wallet common.Address) (common.Address, error) {
	return eth.Read(ctx, f.contract, f.observe, "getIdentity", eth.DecodeAddress, wallet)
}

// IsSaltTaken tells if the salt was already used to deploy an identity
func (f *identityFactory) IsSaltTaken(ctx context.Context, salt string) (bool, error) {
	return eth.Read(ctx, f.contract, f.observe, "isSaltTaken", eth.DecodeBool, salt)
}

// Owner returns the factory owner, the only account allowed to create identities
func (f *identityFactory) Owner(ctx context.Context) (common.Address, error) {
	return eth.Read(ctx, f.contract, f.observe, "owner", eth.DecodeAddress)
}

// EstimateCreateIdentity estimates the gas of createIdentity sent by from
func (f *identityFactory) EstimateCreateIdentity(ctx context.Context, from, wallet common.Address, salt string) (uint64, error) {
	data, err := f.contract.Pack("createIdentity", wallet, salt)
	if err != nil {
		return 0, errors.Wrap(err, "packing createIdentity")
	}
	return f.client.EstimateGas(ctx, from, f.contract.Address(), data)
}

// CreateIdentity sends createIdentity signed by signer and returns the transaction hash
func (f *identityFactory) CreateIdentity(ctx context.Context, signer eth.Signer, wallet common.Address, salt string, gasLimit uint64) (common.Hash, error) {
	tx, err := f.client.CallAuth(ctx, gasLimit, signer, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return f.contract.Transact(opts, "createIdentity", wallet, salt)
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sending createIdentity")
	}
	return tx.Hash(), nil
}
