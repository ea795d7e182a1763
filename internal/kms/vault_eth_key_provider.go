package kms

import (
	"context"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"

	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type vaultETHKeyProvider struct {
	vaultCli *api.Client
	mount    string
	path     string
}

// NewVaultEthKeyProvider returns a provider reading the operator key from a vault kv v2 secret
func NewVaultEthKeyProvider(vaultCli *api.Client, mount, path string) *vaultETHKeyProvider {
	return &vaultETHKeyProvider{vaultCli: vaultCli, mount: mount, path: path}
}

// Signer reads the secret and returns a signer for the stored key
func (v *vaultETHKeyProvider) Signer(ctx context.Context) (eth.Signer, error) {
	secret, err := v.vaultCli.Logical().ReadWithContext(ctx, absVaultSecretPath(v.mount, v.path))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if secret == nil {
		return nil, errors.WithStack(ErrKeyNotFound)
	}

	data, err := getKVv2SecretData(secret)
	if err != nil {
		return nil, err
	}

	if kt, ok := data[jsonKeyType].(string); ok && KeyType(kt) != KeyTypeEthereum {
		return nil, errors.WithStack(ErrIncorrectKeyType)
	}

	privateKey, ok := data[jsonPrivateKey].(string)
	if !ok {
		log.Warn(ctx, "vault secret has no private key", "path", v.path)
		return nil, errors.WithStack(ErrKeyNotFound)
	}
	return signerFromHex(privateKey)
}

// SaveKeyMaterial stores the private key at the provider path
func (v *vaultETHKeyProvider) SaveKeyMaterial(_ context.Context, privateKey string) error {
	return saveVaultKeyMaterial(v.vaultCli, v.mount, v.path, map[string]string{
		jsonKeyType:    string(KeyTypeEthereum),
		jsonPrivateKey: privateKey,
	})
}
