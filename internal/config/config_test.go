package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

const (
	factoryAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	issuerAddr  = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LAUNCHPAD_IDENTITY_FACTORY_ADDRESS", factoryAddr)
	t.Setenv("LAUNCHPAD_CLAIM_ISSUER_ADDRESS", issuerAddr)
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)
	ctx := context.Background()

	cfg, err := Parse(ctx)
	require.NoError(t, err)
	require.NoError(t, cfg.Sanitize(ctx))

	assert.Equal(t, 3010, cfg.ServerPort)
	assert.Equal(t, "ethereum-sepolia", cfg.Ethereum.Network)
	assert.Equal(t, int64(11155111), cfg.Ethereum.ChainID)
	assert.NotEmpty(t, cfg.Ethereum.URL)
	assert.Equal(t, CacheProviderMemory, cfg.Cache.Provider)
	assert.Equal(t, 24*time.Hour, cfg.Cache.RequestTTL)
	assert.True(t, cfg.Identity.AutoProvision)
	assert.True(t, cfg.Identity.StrictClaimValidation)
	assert.Equal(t, uint64(1000000), cfg.Identity.GasLimit)
	assert.Equal(t, 2*time.Second, cfg.Identity.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Identity.PollCeiling)
	assert.Equal(t, 5*time.Second, cfg.Identity.SettlementDelay)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestSanitize(t *testing.T) {
	type testConfig struct {
		name  string
		env   map[string]string
		field string
	}
	for _, tc := range []testConfig{
		{
			name:  "missing factory",
			env:   map[string]string{"LAUNCHPAD_IDENTITY_FACTORY_ADDRESS": ""},
			field: "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS",
		},
		{
			name:  "bad issuer",
			env:   map[string]string{"LAUNCHPAD_CLAIM_ISSUER_ADDRESS": "0x123"},
			field: "LAUNCHPAD_CLAIM_ISSUER_ADDRESS",
		},
		{
			name:  "unknown network",
			env:   map[string]string{"LAUNCHPAD_BLOCKCHAIN_NETWORK": "moonbase"},
			field: "LAUNCHPAD_BLOCKCHAIN_NETWORK",
		},
		{
			name:  "redis without url",
			env:   map[string]string{"LAUNCHPAD_CACHE_PROVIDER": "redis"},
			field: "LAUNCHPAD_CACHE_URL",
		},
		{
			name:  "poll ceiling lower than interval",
			env:   map[string]string{"LAUNCHPAD_POLL_CEILING": "1s"},
			field: "LAUNCHPAD_POLL_INTERVAL",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			ctx := context.Background()
			cfg, err := Parse(ctx)
			require.NoError(t, err)
			err = cfg.Sanitize(ctx)
			var cerr *domain.ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}

func TestUnknownNetworkWithExplicitEndpoint(t *testing.T) {
	setRequired(t)
	t.Setenv("LAUNCHPAD_BLOCKCHAIN_NETWORK", "devnet")
	t.Setenv("LAUNCHPAD_ETHEREUM_URL", "http://localhost:8545")
	t.Setenv("LAUNCHPAD_ETHEREUM_CHAIN_ID", "31337")
	ctx := context.Background()

	cfg, err := Parse(ctx)
	require.NoError(t, err)
	require.NoError(t, cfg.Sanitize(ctx))
	assert.Equal(t, "http://localhost:8545", cfg.Ethereum.URL)
	assert.Equal(t, int64(31337), cfg.Ethereum.ChainID)
}

func TestSanitizeSigner(t *testing.T) {
	setRequired(t)
	ctx := context.Background()

	cfg, err := Parse(ctx)
	require.NoError(t, err)
	cfg.KeyStore.PrivateKey = ""
	var cerr *domain.ConfigurationError
	require.ErrorAs(t, cfg.SanitizeSigner(), &cerr)
	assert.Equal(t, "LAUNCHPAD_OPERATOR_PRIVATE_KEY", cerr.Field)

	cfg.KeyStore.Provider = KeyProviderVault
	cfg.KeyStore.VaultAddress = "http://localhost:8200"
	require.ErrorAs(t, cfg.SanitizeSigner(), &cerr)
	assert.Equal(t, "LAUNCHPAD_KEY_STORE_TOKEN", cerr.Field)

	cfg.KeyStore.VaultToken = "hvs.token"
	assert.NoError(t, cfg.SanitizeSigner())

	cfg.KeyStore.Provider = "hsm"
	require.ErrorAs(t, cfg.SanitizeSigner(), &cerr)
	assert.Equal(t, "LAUNCHPAD_KEY_STORE_PROVIDER", cerr.Field)
}

func TestLegacyPrivateKey(t *testing.T) {
	setRequired(t)
	t.Setenv("LAUNCHPAD_OPERATOR_PRIVATE_KEY", "")
	t.Setenv("PRIVATE_KEY", "0xabc")

	cfg, err := Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", cfg.KeyStore.PrivateKey)
	assert.NoError(t, cfg.SanitizeSigner())
}

func TestLoadNetworksOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
polygon-amoy:
  chainID: 80002
  networkURL: http://amoy.local
localnet:
  chainID: 31337
  networkURL: http://localhost:8545
`), 0o600))

	networks, err := LoadNetworks(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://amoy.local", networks["polygon-amoy"].URL)
	assert.Equal(t, int64(31337), networks["localnet"].ChainID)
	assert.Equal(t, int64(137), networks["polygon"].ChainID)

	_, err = LoadNetworks(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
