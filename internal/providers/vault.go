package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/userpass"

	"github.com/polygonid/launchpad-identity/internal/log"
)

// HTTPClientTimeout http client timeout
const HTTPClientTimeout = 10 * time.Second

// Config holds the vault connection settings
type Config struct {
	Address             string
	Token               string
	UserPassAuthEnabled bool
	User                string
	Pass                string
}

// VaultClient returns a vault client authenticated with a token or with userpass
func VaultClient(ctx context.Context, cfg Config) (*api.Client, error) {
	if !cfg.UserPassAuthEnabled {
		return NewVaultClient(cfg.Address, cfg.Token)
	}
	return NewVaultClientWithUserPass(ctx, cfg.Address, cfg.User, cfg.Pass)
}

// NewVaultClient checks vault configuration and creates new vault client
func NewVaultClient(address, token string) (*api.Client, error) {
	if token == "" {
		return nil, errors.New("vault access token is not specified")
	}
	client, err := newClient(address)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)
	return client, nil
}

// NewVaultClientWithUserPass logs in with the userpass auth method and returns a client
// holding the resulting token
func NewVaultClientWithUserPass(ctx context.Context, address, user, pass string) (*api.Client, error) {
	if pass == "" {
		return nil, errors.New("vault userpass password is not specified")
	}
	client, err := newClient(address)
	if err != nil {
		return nil, err
	}
	auth, err := userpass.NewUserpassAuth(user, &userpass.Password{FromString: pass})
	if err != nil {
		return nil, fmt.Errorf("building userpass auth: %w", err)
	}
	secret, err := client.Auth().Login(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("vault login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return nil, errors.New("vault login returned no auth info")
	}
	log.Info(ctx, "logged in to vault", "user", user, "renewable", secret.Auth.Renewable)
	return client, nil
}

func newClient(address string) (*api.Client, error) {
	if address == "" {
		return nil, errors.New("vault address is not specified")
	}
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient.Timeout = HTTPClientTimeout

	return api.NewClient(config)
}
