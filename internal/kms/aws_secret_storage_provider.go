package kms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type secretStorageProviderKeyMaterial struct {
	KeyType    string `json:"key_type"`
	KeyPath    string `json:"key_path"`
	PrivateKey string `json:"private_key"`
}

// AwsSecretStorageProviderConfig is a config for AwsSecretStorageProvider
// AccessKey and SecretKey are the AWS credentials
type AwsSecretStorageProviderConfig struct {
	AccessKey  string
	SecretKey  string
	Region     string
	URL        string
	SecretName string
}

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

type awsSecretStorageProvider struct {
	secretManager secretsManagerAPI
	secretName    string
}

// NewAwsSecretStorageProvider creates a new instance of AwsSecretStorageProvider
func NewAwsSecretStorageProvider(ctx context.Context, conf AwsSecretStorageProviderConfig) (*awsSecretStorageProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(conf.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")),
	)
	if err != nil {
		log.Error(ctx, "error loading AWS config", "err", err)
		return nil, err
	}

	var options []func(*secretsmanager.Options)
	if strings.ToLower(conf.Region) == "local" {
		options = append(options, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(conf.URL)
		})
	}

	return newAwsSecretStorageProvider(secretsmanager.NewFromConfig(cfg, options...), conf.SecretName), nil
}

func newAwsSecretStorageProvider(api secretsManagerAPI, secretName string) *awsSecretStorageProvider {
	return &awsSecretStorageProvider{secretManager: api, secretName: secretName}
}

// Signer reads the secret and returns a signer for the stored key.
// The secret holds either the json key material or the bare hex key.
func (a *awsSecretStorageProvider) Signer(ctx context.Context) (eth.Signer, error) {
	out, err := a.secretManager.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretName),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrKeyNotFound
		}
		log.Error(ctx, "error getting secret value", "err", err, "secret", a.secretName)
		return nil, err
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return nil, ErrKeyNotFound
	}

	value := strings.TrimSpace(*out.SecretString)
	if !strings.HasPrefix(value, "{") {
		return signerFromHex(value)
	}

	var keyMaterial secretStorageProviderKeyMaterial
	if err := json.Unmarshal([]byte(value), &keyMaterial); err != nil {
		return nil, fmt.Errorf("secret %s has unexpected format: %w", a.secretName, err)
	}
	if keyMaterial.KeyType != "" && KeyType(keyMaterial.KeyType) != KeyTypeEthereum {
		return nil, ErrIncorrectKeyType
	}
	return signerFromHex(keyMaterial.PrivateKey)
}

// SaveKeyMaterial creates the secret or puts a new version when it already exists
func (a *awsSecretStorageProvider) SaveKeyMaterial(ctx context.Context, privateKey string) error {
	secretValue, err := json.Marshal(secretStorageProviderKeyMaterial{
		KeyType:    string(KeyTypeEthereum),
		KeyPath:    OperatorKeyPath,
		PrivateKey: privateKey,
	})
	if err != nil {
		return err
	}

	_, err = a.secretManager.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(a.secretName),
		SecretString: aws.String(string(secretValue)),
	})
	var exists *types.ResourceExistsException
	if errors.As(err, &exists) {
		_, err = a.secretManager.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(a.secretName),
			SecretString: aws.String(string(secretValue)),
		})
	}
	if err != nil {
		log.Error(ctx, "error saving secret", "err", err, "secret", a.secretName)
		return err
	}
	return nil
}
