package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Identity is the on-chain identity contract bound to a wallet.
// Address is assigned by the factory and never changes once created.
type Identity struct {
	Address common.Address `json:"address"`
	Owner   common.Address `json:"owner"`
	TxHash  *common.Hash   `json:"txHash,omitempty"`
	Salt    string         `json:"salt,omitempty"`
}

// NewIdentity returns an identity record for an already deployed contract
func NewIdentity(owner, address common.Address) *Identity {
	return &Identity{
		Address: address,
		Owner:   owner,
	}
}

// Provisioned tells if the record was created by this process
func (i *Identity) Provisioned() bool {
	return i.TxHash != nil
}

// IdentityPhase is the lifecycle phase reported to clients
type IdentityPhase string

// Identity phases
const (
	PhaseLoading       IdentityPhase = "loading"
	PhaseUninitialized IdentityPhase = "uninitialized"
	PhaseReady         IdentityPhase = "ready"
)
