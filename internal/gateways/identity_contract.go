package gateways

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type identityContracts struct {
	client  ETHClient
	observe eth.ReadObserver

	mu        sync.Mutex
	contracts map[common.Address]*eth.Contract
}

// NewIdentityContracts returns a gateway reading claims of any identity contract
func NewIdentityContracts(client ETHClient, observe eth.ReadObserver) *identityContracts {
	return &identityContracts{
		client:    client,
		observe:   observe,
		contracts: make(map[common.Address]*eth.Contract),
	}
}

func (g *identityContracts) contract(identity common.Address) (*eth.Contract, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.contracts[identity]; ok {
		return c, nil
	}
	c, err := g.client.Contract(identity, eth.IdentityABI)
	if err != nil {
		return nil, errors.Wrapf(err, "binding identity %s", identity.Hex())
	}
	g.contracts[identity] = c
	return c, nil
}

// GetClaimIdsByTopic returns the claim ids the identity holds for topic. Empty output means no claims.
func (g *identityContracts) GetClaimIdsByTopic(ctx context.Context, identity common.Address, topic domain.ClaimTopic) ([][32]byte, error) {
	c, err := g.contract(identity)
	if err != nil {
		return nil, err
	}
	return eth.Read(ctx, c, g.observe, "getClaimIdsByTopic", eth.DecodeBytes32Array, topic.BigInt())
}

// GetClaim loads a claim by id
func (g *identityContracts) GetClaim(ctx context.Context, identity common.Address, claimID [32]byte) (*domain.Claim, error) {
	c, err := g.contract(identity)
	if err != nil {
		return nil, err
	}
	claim, err := eth.ReadWith(ctx, c, g.observe, "getClaim", typedClaim, decodeClaim, claimID)
	if err != nil {
		return nil, err
	}
	claim.ID = claimID
	return claim, nil
}

func typedClaim(out []any) (*domain.Claim, error) {
	if len(out) != 6 {
		return nil, fmt.Errorf("getClaim: %d outputs", len(out))
	}
	topic, ok1 := out[0].(*big.Int)
	scheme, ok2 := out[1].(*big.Int)
	issuer, ok3 := out[2].(common.Address)
	sig, ok4 := out[3].([]byte)
	data, ok5 := out[4].([]byte)
	uri, ok6 := out[5].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return nil, fmt.Errorf("getClaim: unexpected output types")
	}
	return &domain.Claim{Topic: topic, Scheme: scheme, Issuer: issuer, Signature: sig, Data: data, URI: uri}, nil
}

// decodeClaim reads the (uint256, uint256, address, bytes, bytes, string) tuple word by word
func decodeClaim(data []byte) (*domain.Claim, error) {
	const word = 32
	topic, err := eth.DecodeUint256At(data, 0)
	if err != nil {
		return nil, err
	}
	scheme, err := eth.DecodeUint256At(data, word)
	if err != nil {
		return nil, err
	}
	issuer, err := eth.DecodeAddressAt(data, 2*word)
	if err != nil {
		return nil, err
	}
	sig, err := eth.DecodeBytesAt(data, 3*word)
	if err != nil {
		return nil, err
	}
	payload, err := eth.DecodeBytesAt(data, 4*word)
	if err != nil {
		return nil, err
	}
	uri, err := eth.DecodeBytesAt(data, 5*word)
	if err != nil {
		return nil, err
	}
	return &domain.Claim{Topic: topic, Scheme: scheme, Issuer: issuer, Signature: sig, Data: payload, URI: string(uri)}, nil
}
