package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ClaimTopic is the numeric claim category registered on the identity contract
type ClaimTopic uint64

// Known claim topics
const (
	ClaimTopicKYC        ClaimTopic = 1
	ClaimTopicAccredited ClaimTopic = 2
)

// ParseClaimTopic accepts either the topic number or its name (kyc, accredited)
func ParseClaimTopic(s string) (ClaimTopic, error) {
	switch s {
	case "kyc", "KYC":
		return ClaimTopicKYC, nil
	case "accredited", "ACCREDITED":
		return ClaimTopicAccredited, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClaimTopic, s)
	}
	return ClaimTopic(n), nil
}

// BigInt returns the topic as the uint256 argument used by the contracts
func (t ClaimTopic) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(t))
}

func (t ClaimTopic) String() string {
	switch t {
	case ClaimTopicKYC:
		return "kyc"
	case ClaimTopicAccredited:
		return "accredited"
	default:
		return strconv.FormatUint(uint64(t), 10)
	}
}

// Claim is a claim stored in an identity contract. Validity is decided by the issuer contract.
type Claim struct {
	ID        [32]byte
	Topic     *big.Int
	Scheme    *big.Int
	Issuer    common.Address
	Signature []byte
	Data      []byte
	URI       string
}

// ClaimRequestStatus is the local state of a claim request
type ClaimRequestStatus string

// Claim request statuses
const (
	ClaimRequestNotRequested ClaimRequestStatus = "not_requested"
	ClaimRequestPending      ClaimRequestStatus = "pending"
	ClaimRequestVerified     ClaimRequestStatus = "verified"
)

// ClaimRequest tracks a verification request for an (identity, topic) pair
type ClaimRequest struct {
	ID          uuid.UUID
	Wallet      common.Address
	Identity    common.Address
	Topic       ClaimTopic
	Status      ClaimRequestStatus
	RequestedAt time.Time
	SettledAt   *time.Time
}

// NewClaimRequest returns a pending request
func NewClaimRequest(wallet, identity common.Address, topic ClaimTopic, now time.Time) *ClaimRequest {
	return &ClaimRequest{
		ID:          uuid.New(),
		Wallet:      wallet,
		Identity:    identity,
		Topic:       topic,
		Status:      ClaimRequestPending,
		RequestedAt: now,
	}
}

// NotRequestedClaim is the state reported for a pair nobody asked about yet
func NotRequestedClaim(identity common.Address, topic ClaimTopic) *ClaimRequest {
	return &ClaimRequest{
		Identity: identity,
		Topic:    topic,
		Status:   ClaimRequestNotRequested,
	}
}

// Settle marks the request as verified
func (c *ClaimRequest) Settle(at time.Time) {
	c.Status = ClaimRequestVerified
	c.SettledAt = &at
}

// IsPending tells if the request is waiting for the issuer
func (c *ClaimRequest) IsPending() bool {
	return c.Status == ClaimRequestPending
}
