package kms

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

type localStorageProviderFileContent struct {
	KeyType    string `json:"key_type"`
	KeyPath    string `json:"key_path"`
	PrivateKey string `json:"private_key"`
}

type localStorageEthKeyProvider struct {
	file    string
	keyPath string
}

// NewLocalStorageEthKeyProvider returns a provider reading the key stored under keyPath in file.
// The file is read on every call so a replaced key is picked up without restart.
func NewLocalStorageEthKeyProvider(file, keyPath string) *localStorageEthKeyProvider {
	return &localStorageEthKeyProvider{file: file, keyPath: keyPath}
}

// Signer loads the key and returns a signer
func (ls *localStorageEthKeyProvider) Signer(ctx context.Context) (eth.Signer, error) {
	content, err := readContentFile(ctx, ls.file)
	if err != nil {
		return nil, err
	}
	for _, keyMaterial := range content {
		if keyMaterial.KeyPath != ls.keyPath {
			continue
		}
		if KeyType(keyMaterial.KeyType) != KeyTypeEthereum {
			return nil, errors.WithStack(ErrIncorrectKeyType)
		}
		return signerFromHex(keyMaterial.PrivateKey)
	}
	return nil, errors.WithStack(ErrKeyNotFound)
}

// SaveKeyMaterial stores privateKey under keyPath, replacing a previous key with the same path.
// The file is created when missing.
func SaveKeyMaterial(ctx context.Context, file, keyPath, privateKey string) error {
	content, err := readContentFile(ctx, file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	replaced := false
	for i := range content {
		if content[i].KeyPath == keyPath {
			content[i].KeyType = string(KeyTypeEthereum)
			content[i].PrivateKey = privateKey
			replaced = true
		}
	}
	if !replaced {
		content = append(content, localStorageProviderFileContent{
			KeyType:    string(KeyTypeEthereum),
			KeyPath:    keyPath,
			PrivateKey: privateKey,
		})
	}

	newFileContent, err := json.Marshal(content)
	if err != nil {
		log.Error(ctx, "cannot marshal file content", "err", err)
		return err
	}
	if err := os.WriteFile(file, newFileContent, 0o600); err != nil {
		log.Error(ctx, "cannot write file", "err", err)
		return err
	}
	return nil
}

func readContentFile(ctx context.Context, file string) ([]localStorageProviderFileContent, error) {
	fileContent, err := os.ReadFile(file)
	if err != nil {
		log.Debug(ctx, "cannot read file", "err", err, "file", file)
		return nil, errors.WithStack(err)
	}

	var content []localStorageProviderFileContent
	if err := json.Unmarshal(fileContent, &content); err != nil {
		log.Error(ctx, "cannot unmarshal file content", "err", err)
		return nil, err
	}

	return content, nil
}
