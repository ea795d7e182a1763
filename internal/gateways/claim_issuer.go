package gateways

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type claimIssuer struct {
	contract *eth.Contract
	observe  eth.ReadObserver
}

// NewClaimIssuer returns the gateway of the ClaimIssuer deployed at address
func NewClaimIssuer(client ETHClient, address common.Address, observe eth.ReadObserver) (*claimIssuer, error) {
	contract, err := client.Contract(address, eth.ClaimIssuerABI)
	if err != nil {
		return nil, errors.Wrap(err, "binding claim issuer")
	}
	return &claimIssuer{contract: contract, observe: observe}, nil
}

// Address of the issuer
func (i *claimIssuer) Address() common.Address {
	return i.contract.Address()
}

// IsClaimValid asks the issuer if the claim signature and data are valid for identity
func (i *claimIssuer) IsClaimValid(ctx context.Context, identity common.Address, topic domain.ClaimTopic, signature, data []byte) (bool, error) {
	return eth.Read(ctx, i.contract, i.observe, "isClaimValid", eth.DecodeBool, identity, topic.BigInt(), signature, data)
}
