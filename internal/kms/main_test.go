package kms

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// testKey returns a fresh hex encoded secp256k1 key
func testKey(t testing.TB) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(crypto.FromECDSA(key))
}

// assertSigns checks that the signer produces a signature recovering to its address
func assertSigns(t *testing.T, ctx context.Context, signer interface {
	SignDigest(context.Context, []byte) ([]byte, error)
}, want []byte,
) {
	t.Helper()
	digest := crypto.Keccak256([]byte("launchpad"))
	sig, err := signer.SignDigest(ctx, digest)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	pub, err := crypto.Ecrecover(digest, sig)
	require.NoError(t, err)
	require.Equal(t, want, pub)
}
