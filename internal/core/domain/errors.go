package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrIdentityNotInitialized is returned when an operation needs a resolved identity
	ErrIdentityNotInitialized = errors.New("identity not initialized")
	// ErrInvalidWallet is returned for malformed wallet addresses
	ErrInvalidWallet = errors.New("invalid wallet address")
	// ErrInvalidClaimTopic is returned for unknown or malformed claim topics
	ErrInvalidClaimTopic = errors.New("invalid claim topic")
	// ErrClaimRequestNotFound is returned by repositories when no request is stored for the key
	ErrClaimRequestNotFound = errors.New("claim request not found")
)

// ConfigurationError is returned when a required setting is missing or invalid
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration: %s is not set", e.Field)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// ResolutionError means the identity lookup could not be decoded on either read path.
// It never means the identity is absent.
type ResolutionError struct {
	Wallet common.Address
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve identity of %s: %v", e.Wallet.Hex(), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ProvisioningFailure names the step where provisioning stopped
type ProvisioningFailure string

// Provisioning failure reasons
const (
	ProvisioningNoCredential       ProvisioningFailure = "no_credential"
	ProvisioningNotOwner           ProvisioningFailure = "not_owner"
	ProvisioningSaltCollision      ProvisioningFailure = "salt_collision"
	ProvisioningSubmissionFailed   ProvisioningFailure = "submission_failed"
	ProvisioningReverted           ProvisioningFailure = "reverted"
	ProvisioningConfirmationFailed ProvisioningFailure = "confirmation_failed"
	ProvisioningNotResolved        ProvisioningFailure = "not_resolved"
)

// ProvisioningError is returned when the identity could not be created and no identity
// was found afterwards
type ProvisioningError struct {
	Reason ProvisioningFailure
	Err    error
}

// NewProvisioningError wraps err with a reason
func NewProvisioningError(reason ProvisioningFailure, err error) *ProvisioningError {
	return &ProvisioningError{Reason: reason, Err: err}
}

func (e *ProvisioningError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provisioning failed: %s", e.Reason)
	}
	return fmt.Sprintf("provisioning failed: %s: %v", e.Reason, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// VerificationError means the claim list or a claim could not be read from the identity contract
type VerificationError struct {
	Identity common.Address
	Topic    ClaimTopic
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("cannot verify %s claim of %s: %v", e.Topic, e.Identity.Hex(), e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// IsProvisioningReason tells if err is a ProvisioningError with the given reason
func IsProvisioningReason(err error, reason ProvisioningFailure) bool {
	var perr *ProvisioningError
	return errors.As(err, &perr) && perr.Reason == reason
}
