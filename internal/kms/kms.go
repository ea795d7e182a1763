package kms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/providers"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

// KeyType is the type of the stored key
type KeyType string

const (
	// KeyTypeEthereum is the secp256k1 operator key type
	KeyTypeEthereum KeyType = "ETH"

	// OperatorKeyPath is the key path of the operator key in file and secret storages
	OperatorKeyPath = "operator"

	// LocalStorageFileName is the name of the file where the keys are stored
	LocalStorageFileName = "kms_localstorage_keys.json"
)

var (
	// ErrKeyNotFound when the storage has no operator key
	ErrKeyNotFound = errors.New("key not found")
	// ErrIncorrectKeyType when the stored key is not an ethereum key
	ErrIncorrectKeyType = errors.New("incorrect key type")
)

// staticKeyProvider always returns the same signer
type staticKeyProvider struct {
	signer eth.Signer
}

// NewStaticKeyProvider returns a provider for a signer known in advance
func NewStaticKeyProvider(signer eth.Signer) *staticKeyProvider {
	return &staticKeyProvider{signer: signer}
}

// Signer returns the signer
func (p *staticKeyProvider) Signer(_ context.Context) (eth.Signer, error) {
	return p.signer, nil
}

// Open returns the key provider selected by the configuration
func Open(ctx context.Context, cfg config.KeyStore) (ports.KeyProvider, error) {
	log.Info(ctx, "operator key provider", "provider", cfg.Provider)
	switch cfg.Provider {
	case config.KeyProviderEnv:
		signer, err := NewLocalSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		return NewStaticKeyProvider(signer), nil
	case config.KeyProviderLocalStorage:
		return NewLocalStorageEthKeyProvider(filepath.Join(cfg.LocalStoragePath, LocalStorageFileName), OperatorKeyPath), nil
	case config.KeyProviderVault:
		provider, err := openVault(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.KeyProviderAWSSecretManager:
		provider, err := openSecretStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.KeyProviderAWSKMS:
		provider, err := NewAwsKMSEthKeyProvider(ctx, AwKmsEthKeyProviderConfig{
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Region:    cfg.AWSRegion,
			URL:       cfg.AWSURL,
			KeyID:     cfg.AWSKMSKeyID,
		})
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown key provider %q", cfg.Provider)
	}
}

// ErrImportNotSupported when the provider keeps no key material this service can write
var ErrImportNotSupported = errors.New("key import not supported by the provider")

// keyImporter is implemented by the providers storing the raw operator key
type keyImporter interface {
	SaveKeyMaterial(ctx context.Context, privateKey string) error
}

// Import stores the hex encoded privateKey as the operator key of the configured provider
// and returns the address it signs for
func Import(ctx context.Context, cfg config.KeyStore, privateKey string) (eth.Signer, error) {
	signer, err := NewLocalSigner(privateKey)
	if err != nil {
		return nil, err
	}

	var importer keyImporter
	switch cfg.Provider {
	case config.KeyProviderLocalStorage:
		if err := os.MkdirAll(cfg.LocalStoragePath, 0o700); err != nil {
			return nil, err
		}
		if err := SaveKeyMaterial(ctx, filepath.Join(cfg.LocalStoragePath, LocalStorageFileName), OperatorKeyPath, privateKey); err != nil {
			return nil, err
		}
		return signer, nil
	case config.KeyProviderVault:
		importer, err = openVault(ctx, cfg)
	case config.KeyProviderAWSSecretManager:
		importer, err = openSecretStorage(ctx, cfg)
	case config.KeyProviderEnv, config.KeyProviderAWSKMS:
		return nil, fmt.Errorf("%w: %s", ErrImportNotSupported, cfg.Provider)
	default:
		return nil, fmt.Errorf("unknown key provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if err := importer.SaveKeyMaterial(ctx, privateKey); err != nil {
		log.Error(ctx, "cannot save key material", "err", err, "provider", cfg.Provider)
		return nil, err
	}
	return signer, nil
}

func openVault(ctx context.Context, cfg config.KeyStore) (*vaultETHKeyProvider, error) {
	vaultCli, err := providers.VaultClient(ctx, providers.Config{
		Address:             cfg.VaultAddress,
		Token:               cfg.VaultToken,
		UserPassAuthEnabled: cfg.VaultUserPass,
		User:                cfg.VaultUser,
		Pass:                cfg.VaultPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot init vault client: %w", err)
	}
	return NewVaultEthKeyProvider(vaultCli, cfg.VaultMountPath, cfg.VaultSecretPath), nil
}

func openSecretStorage(ctx context.Context, cfg config.KeyStore) (*awsSecretStorageProvider, error) {
	return NewAwsSecretStorageProvider(ctx, AwsSecretStorageProviderConfig{
		AccessKey:  cfg.AWSAccessKey,
		SecretKey:  cfg.AWSSecretKey,
		Region:     cfg.AWSRegion,
		URL:        cfg.AWSURL,
		SecretName: cfg.AWSSecretName,
	})
}
