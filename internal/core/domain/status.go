package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// IdentityStatus is the snapshot a client renders for a wallet
type IdentityStatus struct {
	Wallet          common.Address     `json:"wallet"`
	Phase           IdentityPhase      `json:"phase"`
	IdentityAddress *common.Address    `json:"identityAddress,omitempty"`
	HasClaim        bool               `json:"hasClaim"`
	RequestPending  bool               `json:"requestPending"`
	KycStatus       ClaimRequestStatus `json:"kycStatus"`
	Error           string             `json:"error,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// NewLoadingStatus is the first status reported while initialization runs
func NewLoadingStatus(wallet common.Address, now time.Time) IdentityStatus {
	return IdentityStatus{
		Wallet:    wallet,
		Phase:     PhaseLoading,
		KycStatus: ClaimRequestNotRequested,
		UpdatedAt: now,
	}
}

// Ready tells if the identity is resolved and usable
func (s IdentityStatus) Ready() bool {
	return s.Phase == PhaseReady && s.IdentityAddress != nil
}
