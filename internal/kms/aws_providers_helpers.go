package kms

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polygonid/launchpad-identity/internal/log"
)

const signatureComponentLength = 32

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// DecodeAWSETHPubKey decodes the public key from the AWS KMS response.
func DecodeAWSETHPubKey(_ context.Context, key []byte) (*ecdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(key, &asn1pubk); err != nil {
		return nil, err
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

// DecodeAWSETHSig decodes the DER signature from the AWS KMS response into the
// 65 bytes ethereum form. S is normalized to the lower half of the curve order.
func DecodeAWSETHSig(ctx context.Context, signature []byte, pubKeyBytes []byte, digest []byte) ([]byte, error) {
	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signature, &sigAsn1); err != nil {
		return nil, err
	}
	sBigInt := new(big.Int).SetBytes(sigAsn1.S.Bytes)
	if sBigInt.Cmp(secp256k1HalfN) > 0 {
		sigAsn1.S.Bytes = new(big.Int).Sub(secp256k1N, sBigInt).Bytes()
	}

	ethSignature, err := getEthereumSignature(ctx, pubKeyBytes, digest, sigAsn1.R.Bytes, sigAsn1.S.Bytes)
	if err != nil {
		return nil, err
	}

	if !crypto.VerifySignature(pubKeyBytes, digest, ethSignature[:64]) {
		log.Error(ctx, "signature verification failed")
		return nil, errors.New("signature verification failed")
	}
	return ethSignature, nil
}

// getEthereumSignature finds the recovery id that yields the expected public key
func getEthereumSignature(ctx context.Context, expectedPublicKeyBytes []byte, digest []byte, r []byte, s []byte) ([]byte, error) {
	rsSignature := append(adjustSignatureLength(r), adjustSignatureLength(s)...)
	for _, v := range []byte{0, 1} {
		signature := append(append([]byte{}, rsSignature...), v)
		recovered, err := crypto.Ecrecover(digest, signature)
		if err != nil {
			log.Error(ctx, "failed to recover public key", "err", err)
			return nil, err
		}
		if bytes.Equal(recovered, expectedPublicKeyBytes) {
			return signature, nil
		}
	}
	return nil, errors.New("can not reconstruct public key from sig")
}

func adjustSignatureLength(buffer []byte) []byte {
	buffer = bytes.TrimLeft(buffer, "\x00")
	for len(buffer) < signatureComponentLength {
		buffer = append([]byte{0}, buffer...)
	}
	return buffer
}
