package kms

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type localSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner returns a signer holding the hex encoded private key in memory
func NewLocalSigner(hexKey string) (*localSigner, error) {
	if hexKey == "" {
		return nil, ErrKeyNotFound
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "private key is not hex encoded")
	}
	key, err := decodeETHPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &localSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address of the key
func (s *localSigner) Address() common.Address {
	return s.address
}

// SignDigest signs a 32 bytes digest
func (s *localSigner) SignDigest(_ context.Context, digest []byte) ([]byte, error) {
	if len(digest) != common.HashLength {
		return nil, errors.Errorf("digest must be %d bytes, got %d", common.HashLength, len(digest))
	}
	sig, err := crypto.Sign(digest, s.key)
	return sig, errors.WithStack(err)
}

// decodeETHPrivateKey is a helper method to convert byte representation of
// private key to *ecdsa.PrivateKey
func decodeETHPrivateKey(key []byte) (*ecdsa.PrivateKey, error) {
	privKey, err := crypto.ToECDSA(key)
	return privKey, errors.WithStack(err)
}

func signerFromHex(hexKey string) (eth.Signer, error) {
	signer, err := NewLocalSigner(hexKey)
	if err != nil {
		return nil, err
	}
	return signer, nil
}
