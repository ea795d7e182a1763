package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/log"
)

// EnvFile is the optional dotenv file loaded before parsing the environment
const EnvFile = ".env-launchpad"

// Key store providers
const (
	KeyProviderEnv              = "env"
	KeyProviderLocalStorage     = "localstorage"
	KeyProviderVault            = "vault"
	KeyProviderAWSSecretManager = "aws_sm"
	KeyProviderAWSKMS           = "aws_kms"
)

// Cache providers
const (
	CacheProviderMemory = "memory"
	CacheProviderRedis  = "redis"
	CacheProviderValkey = "valkey"
)

// legacyPrivateKeyEnv is read when the operator key is not set with the prefixed variable
const legacyPrivateKeyEnv = "PRIVATE_KEY"

// Configuration holds the project configuration
type Configuration struct {
	ServerUrl    string   `env:"LAUNCHPAD_SERVER_URL" envDefault:"http://localhost:3010" tip:"Public url of the service"`
	ServerPort   int      `env:"LAUNCHPAD_SERVER_PORT" envDefault:"3010" tip:"Server port"`
	CORSOrigins  []string `env:"LAUNCHPAD_CORS_ORIGINS" envDefault:"*" envSeparator:"," tip:"Allowed CORS origins"`
	NetworksFile string   `env:"LAUNCHPAD_NETWORKS_FILE" tip:"Optional yaml file overriding the built-in networks"`
	Log          Log
	Ethereum     Ethereum
	Contracts    Contracts
	KeyStore     KeyStore
	Cache        Cache
	Identity     Identity
}

// Log holds runtime configurations
//
// Level: The minimum log level to show on logs. Values can be
//
//	 -4: Debug
//		0: Info
//		4: Warning
//		8: Error
//	 The default log level is info
//
// Mode: Log mode is the format of the log. It can be text or json
// 1: JSON
// 2: Text
// The default log formal is JSON
type Log struct {
	Level int `env:"LAUNCHPAD_LOG_LEVEL" envDefault:"0" tip:"Minimum level to log: (-4:Debug, 0:Info, 4:Warning, 8:Error)"`
	Mode  int `env:"LAUNCHPAD_LOG_MODE" envDefault:"1" tip:"Log format (1: JSON, 2:Structured text)"`
}

// Ethereum struct
type Ethereum struct {
	Network              string        `env:"LAUNCHPAD_BLOCKCHAIN_NETWORK" envDefault:"ethereum-sepolia" tip:"Network name"`
	URL                  string        `env:"LAUNCHPAD_ETHEREUM_URL" tip:"RPC url, overrides the network default"`
	ChainID              int64         `env:"LAUNCHPAD_ETHEREUM_CHAIN_ID" tip:"Chain id, overrides the network default"`
	RPCResponseTimeout   time.Duration `env:"LAUNCHPAD_ETHEREUM_RPC_RESPONSE_TIMEOUT" envDefault:"10s" tip:"RPC Response timeout"`
	RPCRetries           int           `env:"LAUNCHPAD_ETHEREUM_RPC_RETRIES" envDefault:"3" tip:"RPC transport retries"`
	ReceiptTimeout       time.Duration `env:"LAUNCHPAD_ETHEREUM_RECEIPT_TIMEOUT" envDefault:"120s" tip:"Receipt timeout"`
	WaitReceiptCycleTime time.Duration `env:"LAUNCHPAD_ETHEREUM_WAIT_RECEIPT_CYCLE_TIME" envDefault:"2s" tip:"Wait Receipt Cycle Time"`
	MinGasPrice          int           `env:"LAUNCHPAD_ETHEREUM_MIN_GAS_PRICE" envDefault:"0" tip:"Minimum Gas Price (gwei)"`
	MaxGasPrice          int           `env:"LAUNCHPAD_ETHEREUM_MAX_GAS_PRICE" envDefault:"0" tip:"Maximum Gas Price (gwei)"`
}

// Contracts holds the deployed contract addresses
type Contracts struct {
	IdentityFactory string `env:"LAUNCHPAD_IDENTITY_FACTORY_ADDRESS" tip:"IdFactory contract address"`
	ClaimIssuer     string `env:"LAUNCHPAD_CLAIM_ISSUER_ADDRESS" tip:"ClaimIssuer contract address"`
}

// KeyStore defines where the operator key lives
type KeyStore struct {
	Provider         string `env:"LAUNCHPAD_KEY_STORE_PROVIDER" envDefault:"env" tip:"Operator key provider: env, localstorage, vault, aws_sm, aws_kms"`
	PrivateKey       string `env:"LAUNCHPAD_OPERATOR_PRIVATE_KEY" tip:"Operator private key (hex) for the env provider"`
	LocalStoragePath string `env:"LAUNCHPAD_KEY_STORE_LOCAL_STORAGE_PATH" envDefault:"./localstoragekeys" tip:"Folder of the local storage key file"`

	VaultAddress    string `env:"LAUNCHPAD_KEY_STORE_ADDRESS" tip:"Vault address"`
	VaultToken      string `env:"LAUNCHPAD_KEY_STORE_TOKEN" tip:"Vault token"`
	VaultUserPass   bool   `env:"LAUNCHPAD_VAULT_USERPASS_AUTH_ENABLED" tip:"Login to vault with user and password"`
	VaultUser       string `env:"LAUNCHPAD_VAULT_USERPASS_USER" envDefault:"launchpad" tip:"Vault userpass user"`
	VaultPassword   string `env:"LAUNCHPAD_VAULT_USERPASS_PASSWORD" tip:"Vault userpass password"`
	VaultMountPath  string `env:"LAUNCHPAD_KEY_STORE_MOUNT_PATH" envDefault:"secret" tip:"Vault KV v2 mount path"`
	VaultSecretPath string `env:"LAUNCHPAD_KEY_STORE_SECRET_PATH" envDefault:"launchpad/operator" tip:"Vault secret holding the operator key"`

	AWSAccessKey  string `env:"LAUNCHPAD_AWS_ACCESS_KEY" tip:"AWS access key"`
	AWSSecretKey  string `env:"LAUNCHPAD_AWS_SECRET_KEY" tip:"AWS secret key"`
	AWSRegion     string `env:"LAUNCHPAD_AWS_REGION" envDefault:"eu-west-1" tip:"AWS region, use local for localstack"`
	AWSURL        string `env:"LAUNCHPAD_AWS_URL" envDefault:"http://localhost:4566" tip:"AWS endpoint used when the region is local"`
	AWSSecretName string `env:"LAUNCHPAD_AWS_SECRET_NAME" envDefault:"launchpad/operator" tip:"Secrets manager secret holding the operator key"`
	AWSKMSKeyID   string `env:"LAUNCHPAD_AWS_KMS_KEY_ID" tip:"KMS key id (or alias) of the operator key"`
}

// Cache configurations
type Cache struct {
	Provider   string        `env:"LAUNCHPAD_CACHE_PROVIDER" envDefault:"memory" tip:"Cache provider: memory, redis, valkey"`
	URL        string        `env:"LAUNCHPAD_CACHE_URL" tip:"Redis or valkey url"`
	RequestTTL time.Duration `env:"LAUNCHPAD_CLAIM_REQUEST_TTL" envDefault:"24h" tip:"Time to keep claim requests"`
}

// Identity holds the identity workflow settings
type Identity struct {
	AutoProvision         bool          `env:"LAUNCHPAD_AUTO_PROVISION" envDefault:"true" tip:"Create the identity when a wallet has none"`
	GasLimit              uint64        `env:"LAUNCHPAD_CREATE_IDENTITY_GAS_LIMIT" envDefault:"1000000" tip:"Gas limit of createIdentity"`
	PollInterval          time.Duration `env:"LAUNCHPAD_POLL_INTERVAL" envDefault:"2s" tip:"Claim poll interval"`
	PollCeiling           time.Duration `env:"LAUNCHPAD_POLL_CEILING" envDefault:"30s" tip:"Claim poll ceiling"`
	SettlementDelay       time.Duration `env:"LAUNCHPAD_SETTLEMENT_DELAY" envDefault:"5s" tip:"Delay of the simulated issuer"`
	StrictClaimValidation bool          `env:"LAUNCHPAD_STRICT_CLAIM_VALIDATION" envDefault:"true" tip:"Validate claims against the issuer contract"`
	EmbeddedSettler       bool          `env:"LAUNCHPAD_EMBEDDED_SETTLER" envDefault:"true" tip:"Run the claim settler inside the platform"`
}

// Sanitize perform some basic checks and sanitizations in the configuration.
// Returns a domain.ConfigurationError naming the first invalid setting.
func (c *Configuration) Sanitize(ctx context.Context) error {
	sUrl, err := c.validateServerUrl()
	if err != nil {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_SERVER_URL", Reason: err.Error()}
	}
	c.ServerUrl = sUrl

	if err := c.resolveNetwork(ctx); err != nil {
		return err
	}

	if err := c.Contracts.validate(); err != nil {
		return err
	}

	switch c.Cache.Provider {
	case CacheProviderMemory:
	case CacheProviderRedis, CacheProviderValkey:
		if c.Cache.URL == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_CACHE_URL"}
		}
	default:
		return &domain.ConfigurationError{Field: "LAUNCHPAD_CACHE_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.Cache.Provider)}
	}

	if c.Identity.PollInterval <= 0 || c.Identity.PollCeiling < c.Identity.PollInterval {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_POLL_INTERVAL", Reason: "interval must be positive and lower than the ceiling"}
	}
	if c.Identity.GasLimit == 0 {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_CREATE_IDENTITY_GAS_LIMIT"}
	}
	return nil
}

// SanitizeSigner checks the key store settings. Only the binaries that send transactions need them.
func (c *Configuration) SanitizeSigner() error {
	k := c.KeyStore
	switch k.Provider {
	case KeyProviderEnv:
		if k.PrivateKey == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_OPERATOR_PRIVATE_KEY"}
		}
	case KeyProviderLocalStorage:
		if k.LocalStoragePath == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_KEY_STORE_LOCAL_STORAGE_PATH"}
		}
	case KeyProviderVault:
		if k.VaultAddress == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_KEY_STORE_ADDRESS"}
		}
		if !k.VaultUserPass && k.VaultToken == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_KEY_STORE_TOKEN"}
		}
		if k.VaultUserPass && k.VaultPassword == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_VAULT_USERPASS_PASSWORD"}
		}
	case KeyProviderAWSSecretManager:
		if k.AWSAccessKey == "" || k.AWSSecretKey == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_AWS_ACCESS_KEY"}
		}
	case KeyProviderAWSKMS:
		if k.AWSKMSKeyID == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_AWS_KMS_KEY_ID"}
		}
		if k.AWSAccessKey == "" || k.AWSSecretKey == "" {
			return &domain.ConfigurationError{Field: "LAUNCHPAD_AWS_ACCESS_KEY"}
		}
	default:
		return &domain.ConfigurationError{Field: "LAUNCHPAD_KEY_STORE_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", k.Provider)}
	}
	return nil
}

// FactoryAddress returns the parsed IdFactory address
func (c Contracts) FactoryAddress() common.Address {
	return common.HexToAddress(c.IdentityFactory)
}

// IssuerAddress returns the parsed ClaimIssuer address
func (c Contracts) IssuerAddress() common.Address {
	return common.HexToAddress(c.ClaimIssuer)
}

func (c Contracts) validate() error {
	if c.IdentityFactory == "" {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS"}
	}
	if !common.IsHexAddress(c.IdentityFactory) {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS", Reason: "not an address"}
	}
	if c.ClaimIssuer == "" {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_CLAIM_ISSUER_ADDRESS"}
	}
	if !common.IsHexAddress(c.ClaimIssuer) {
		return &domain.ConfigurationError{Field: "LAUNCHPAD_CLAIM_ISSUER_ADDRESS", Reason: "not an address"}
	}
	return nil
}

func (c *Configuration) validateServerUrl() (string, error) {
	sUrl, err := url.ParseRequestURI(c.ServerUrl)
	if err != nil {
		return c.ServerUrl, err
	}
	if sUrl.Scheme == "" {
		return c.ServerUrl, fmt.Errorf("server URL must be an absolute URL")
	}
	sUrl.RawQuery = ""
	return strings.Trim(strings.Trim(sUrl.String(), "/"), "?"), nil
}

// Load reads the configuration from the environment. An optional .env-launchpad file in the
// working directory is loaded first; variables already set in the environment win.
func Load(ctx context.Context) (*Configuration, error) {
	if err := godotenv.Load(EnvFile); err != nil && !os.IsNotExist(err) {
		log.Warn(ctx, "cannot load env file", "file", EnvFile, "err", err)
	}
	return Parse(ctx)
}

// Parse builds the configuration from the current environment without touching dotenv files
func Parse(ctx context.Context) (*Configuration, error) {
	cfg := &Configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.KeyStore.PrivateKey == "" {
		if pk, ok := os.LookupEnv(legacyPrivateKeyEnv); ok {
			log.Debug(ctx, "operator key taken from legacy variable", "var", legacyPrivateKeyEnv)
			cfg.KeyStore.PrivateKey = pk
		}
	}
	checkEnvVars(ctx, cfg)
	return cfg, nil
}

func checkEnvVars(ctx context.Context, cfg *Configuration) {
	if cfg.Contracts.IdentityFactory == "" {
		log.Info(ctx, "LAUNCHPAD_IDENTITY_FACTORY_ADDRESS value is missing")
	}

	if cfg.Contracts.ClaimIssuer == "" {
		log.Info(ctx, "LAUNCHPAD_CLAIM_ISSUER_ADDRESS value is missing")
	}

	if cfg.KeyStore.Provider == KeyProviderEnv && cfg.KeyStore.PrivateKey == "" {
		log.Info(ctx, "LAUNCHPAD_OPERATOR_PRIVATE_KEY value is missing")
	}

	if cfg.Cache.Provider != CacheProviderMemory && cfg.Cache.URL == "" {
		log.Info(ctx, "LAUNCHPAD_CACHE_URL value is missing")
	}
}
