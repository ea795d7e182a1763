package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaimTopic(t *testing.T) {
	type testConfig struct {
		name     string
		in       string
		expected ClaimTopic
		err      bool
	}
	for _, tc := range []testConfig{
		{name: "by name", in: "kyc", expected: ClaimTopicKYC},
		{name: "by upper name", in: "ACCREDITED", expected: ClaimTopicAccredited},
		{name: "by number", in: "2", expected: ClaimTopicAccredited},
		{name: "custom number", in: "42", expected: ClaimTopic(42)},
		{name: "zero", in: "0", err: true},
		{name: "garbage", in: "foo", err: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			topic, err := ParseClaimTopic(tc.in)
			if tc.err {
				require.ErrorIs(t, err, ErrInvalidClaimTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, topic)
		})
	}
}

func TestParseWallet(t *testing.T) {
	addr, err := ParseWallet("0xabc1234500000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xabc1234500000000000000000000000000000001"), addr)

	_, err = ParseWallet("0x1234")
	assert.ErrorIs(t, err, ErrInvalidWallet)

	_, err = ParseWallet("0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidWallet)
}

func TestClaimRequestSettle(t *testing.T) {
	now := time.Now()
	req := NewClaimRequest(common.HexToAddress("0x1"), common.HexToAddress("0x2"), ClaimTopicKYC, now)
	assert.True(t, req.IsPending())
	assert.Nil(t, req.SettledAt)

	req.Settle(now.Add(5 * time.Second))
	assert.False(t, req.IsPending())
	assert.Equal(t, ClaimRequestVerified, req.Status)
	require.NotNil(t, req.SettledAt)
	assert.Equal(t, now.Add(5*time.Second), *req.SettledAt)
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	perr := NewProvisioningError(ProvisioningReverted, cause)
	assert.ErrorIs(t, perr, cause)
	assert.True(t, IsProvisioningReason(perr, ProvisioningReverted))
	assert.False(t, IsProvisioningReason(perr, ProvisioningNotOwner))
	assert.Contains(t, perr.Error(), "reverted")

	rerr := &ResolutionError{Wallet: common.HexToAddress("0x1"), Err: cause}
	assert.ErrorIs(t, rerr, cause)

	verr := &VerificationError{Identity: common.HexToAddress("0x2"), Topic: ClaimTopicKYC, Err: cause}
	assert.ErrorIs(t, verr, cause)
	assert.Contains(t, verr.Error(), "kyc")

	cerr := &ConfigurationError{Field: "LAUNCHPAD_FACTORY_ADDRESS"}
	assert.Equal(t, "configuration: LAUNCHPAD_FACTORY_ADDRESS is not set", cerr.Error())
}
