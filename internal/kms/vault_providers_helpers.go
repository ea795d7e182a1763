package kms

import (
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
)

const (
	jsonKeyType    = "key_type"
	jsonPrivateKey = "private_key"
)

func absVaultSecretPath(mount, path string) string {
	return strings.Trim(mount, "/") + "/data/" + strings.TrimPrefix(path, "/")
}

// saveVaultKeyMaterial writes the key material to a kv v2 storage
func saveVaultKeyMaterial(vaultCli *api.Client, mount, path string, jsonObj map[string]string) error {
	secret := map[string]interface{}{"data": jsonObj}
	_, err := vaultCli.Logical().Write(absVaultSecretPath(mount, path), secret)
	return errors.WithStack(err)
}

// extract data map from Secret for kv v2 storage (secret.Data["data"])
func getKVv2SecretData(secret *api.Secret) (map[string]interface{}, error) {
	if secret == nil {
		return nil, errors.New("secret is nil")
	}

	if secret.Data == nil {
		return nil, errors.New("secret data is nil")
	}

	secDataI, ok := secret.Data["data"]
	if !ok {
		return nil, errors.New("secret data not found")
	}

	secData, ok := secDataI.(map[string]interface{})
	if !ok {
		return nil, errors.New("secret data has unexpected format")
	}

	return secData, nil
}
