package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/log"
)

// Network settings
type Network struct {
	ChainID int64  `yaml:"chainID"`
	URL     string `yaml:"networkURL"`
}

// Networks maps a network name to its settings
type Networks map[string]Network

// DefaultNetwork is used when no network is selected
const DefaultNetwork = "ethereum-sepolia"

// BuiltinNetworks returns the networks known without an override file
func BuiltinNetworks() Networks {
	return Networks{
		"polygon-amoy":      {ChainID: 80002, URL: "https://rpc-amoy.polygon.technology/"},
		"polygon":           {ChainID: 137, URL: "https://polygon-rpc.com/"},
		"ethereum-sepolia":  {ChainID: 11155111, URL: "https://ethereum-sepolia-rpc.publicnode.com"},
		"ethereum":          {ChainID: 1, URL: "https://ethereum-rpc.publicnode.com"},
		"etherlink":         {ChainID: 42793, URL: "https://node.mainnet.etherlink.com"},
		"etherlink-testnet": {ChainID: 128123, URL: "https://node.ghostnet.etherlink.com"},
		"zksync":            {ChainID: 324, URL: "https://mainnet.era.zksync.io"},
		"zksync-sepolia":    {ChainID: 300, URL: "https://zksync-era-sepolia.blockpi.network/v1/rpc/public"},
	}
}

// LoadNetworks returns the built-in networks merged with the ones in the yaml file at path.
// Entries in the file replace built-in entries with the same name.
func LoadNetworks(ctx context.Context, path string) (Networks, error) {
	networks := BuiltinNetworks()
	if path == "" {
		return networks, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading networks file: %w", err)
	}
	var overrides Networks
	if err := yaml.Unmarshal(content, &overrides); err != nil {
		return nil, fmt.Errorf("parsing networks file: %w", err)
	}
	for name, n := range overrides {
		log.Debug(ctx, "network override", "network", name, "chainID", n.ChainID)
		networks[name] = n
	}
	return networks, nil
}

// resolveNetwork fills the rpc url and chain id from the selected network.
// Explicit LAUNCHPAD_ETHEREUM_URL and LAUNCHPAD_ETHEREUM_CHAIN_ID values win.
func (c *Configuration) resolveNetwork(ctx context.Context) error {
	networks, err := LoadNetworks(ctx, c.NetworksFile)
	if err != nil {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_NETWORKS_FILE", Reason: err.Error()}
	}
	name := c.Ethereum.Network
	if name == "" {
		name = DefaultNetwork
	}
	n, ok := networks[name]
	if !ok {
		if c.Ethereum.URL == "" || c.Ethereum.ChainID == 0 {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_BLOCKCHAIN_NETWORK", Reason: fmt.Sprintf("unknown network %q", name)}
		}
		log.Warn(ctx, "unknown network, using explicit url and chain id", "network", name)
	}
	c.Ethereum.Network = name
	if c.Ethereum.URL == "" {
		c.Ethereum.URL = n.URL
	}
	if c.Ethereum.ChainID == 0 {
		c.Ethereum.ChainID = n.ChainID
	}
	if c.Ethereum.URL == "" {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_ETHEREUM_URL"}
	}
	return nil
}
