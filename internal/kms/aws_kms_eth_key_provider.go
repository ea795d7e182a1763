package kms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

// AwKmsEthKeyProviderConfig - configuration for AWS KMS Ethereum key provider
type AwKmsEthKeyProviderConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	URL       string
	KeyID     string
}

type kmsAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

type awsKmsEthKeyProvider struct {
	kmsClient kmsAPI
	keyID     string

	mu     sync.Mutex
	signer *awsKmsSigner
}

// NewAwsKMSEthKeyProvider - creates new key provider for an Ethereum key kept in AWS KMS.
// The private key never leaves KMS, every digest is signed remotely.
func NewAwsKMSEthKeyProvider(ctx context.Context, conf AwKmsEthKeyProviderConfig) (*awsKmsEthKeyProvider, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(conf.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	var options []func(*kms.Options)
	if strings.ToLower(conf.Region) == "local" {
		options = append(options, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(conf.URL)
		})
	}

	return newAwsKMSEthKeyProvider(kms.NewFromConfig(cfg, options...), conf.KeyID), nil
}

func newAwsKMSEthKeyProvider(client kmsAPI, keyID string) *awsKmsEthKeyProvider {
	return &awsKmsEthKeyProvider{kmsClient: client, keyID: keyID}
}

// Signer returns a signer backed by the KMS key. The public key is fetched once.
func (p *awsKmsEthKeyProvider) Signer(ctx context.Context) (eth.Signer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signer != nil {
		return p.signer, nil
	}

	publicKeyResult, err := p.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(p.keyID)})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	pk, err := DecodeAWSETHPubKey(ctx, publicKeyResult.PublicKey)
	if err != nil {
		log.Error(ctx, "failed to decode public key", "err", err)
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	p.signer = &awsKmsSigner{
		kmsClient:   p.kmsClient,
		keyID:       p.keyID,
		pubKeyBytes: crypto.FromECDSAPub(pk),
		address:     crypto.PubkeyToAddress(*pk),
	}
	log.Info(ctx, "aws kms operator key loaded", "address", p.signer.address)
	return p.signer, nil
}

type awsKmsSigner struct {
	kmsClient   kmsAPI
	keyID       string
	pubKeyBytes []byte
	address     common.Address
}

func (s *awsKmsSigner) Address() common.Address {
	return s.address
}

// SignDigest signs the digest in KMS and converts the DER signature to R||S||V
func (s *awsKmsSigner) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	result, err := s.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		log.Error(ctx, "failed to sign payload", "err", err)
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	signature, err := DecodeAWSETHSig(ctx, result.Signature, s.pubKeyBytes, digest)
	if err != nil {
		log.Error(ctx, "failed to decode signature", "err", err)
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	return signature, nil
}
