// Package main provides identityctl, a command line client of the identity workflow.
// It talks to the chain directly, without the platform http api.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/polygonid/launchpad-identity/internal/buildinfo"
	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/core/services"
	"github.com/polygonid/launchpad-identity/internal/gateways"
	"github.com/polygonid/launchpad-identity/internal/kms"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/providers/blockchain"
	"github.com/polygonid/launchpad-identity/internal/repositories"
	"github.com/polygonid/launchpad-identity/pkg/cache"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

const appName = "identityctl"

// deps are the services used by the commands
type deps struct {
	resolver ports.IdentityResolverService
	verifier ports.ClaimVerifierService
	close    func()
}

type depsFactory func(ctx context.Context, withSigner bool) (*deps, error)

func main() {
	if err := rootCmd(newDeps).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(factory depsFactory) *cobra.Command {
	var topicName string

	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Resolve, create and verify wallet identities",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&topicName, "topic", "kyc", "Claim topic, name or number")

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <wallet>",
		Short: "Print the identity contract of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := domain.ParseWallet(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd, factory, false, func(ctx context.Context, d *deps) error {
				identity, err := d.resolver.ResolveIdentity(ctx, wallet)
				if err != nil {
					return err
				}
				out := map[string]any{"wallet": wallet.Hex(), "identity": nil}
				if identity != nil {
					out["identity"] = identity.Hex()
				}
				return printJSON(cmd, out)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "provision <wallet>",
		Short: "Create the identity contract of a wallet when it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := domain.ParseWallet(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd, factory, true, func(ctx context.Context, d *deps) error {
				identity, err := d.resolver.ProvisionIdentity(ctx, wallet)
				if err != nil {
					return err
				}
				return printJSON(cmd, identity)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <wallet>",
		Short: "Tell if the identity of a wallet holds a valid claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, topic, err := parseArgs(args[0], topicName)
			if err != nil {
				return err
			}
			return withDeps(cmd, factory, false, func(ctx context.Context, d *deps) error {
				identity, err := resolved(ctx, d, wallet)
				if err != nil {
					return err
				}
				verified, err := d.verifier.IsVerified(ctx, *identity, topic)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"wallet":   wallet.Hex(),
					"identity": identity.Hex(),
					"topic":    topic.String(),
					"verified": verified,
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "request-kyc <wallet>",
		Short: "Ask the issuer for a claim of the wallet identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, topic, err := parseArgs(args[0], topicName)
			if err != nil {
				return err
			}
			return withDeps(cmd, factory, false, func(ctx context.Context, d *deps) error {
				identity, err := resolved(ctx, d, wallet)
				if err != nil {
					return err
				}
				req, err := d.verifier.RequestVerification(ctx, wallet, *identity, topic)
				if err != nil {
					return err
				}
				return printJSON(cmd, req)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := buildinfo.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "%s revision %s (built %s)\n", appName, info.Revision, info.Time)
		},
	})

	return cmd
}

func parseArgs(walletArg, topicArg string) (common.Address, domain.ClaimTopic, error) {
	wallet, err := domain.ParseWallet(walletArg)
	if err != nil {
		return common.Address{}, 0, err
	}
	topic, err := domain.ParseClaimTopic(topicArg)
	if err != nil {
		return common.Address{}, 0, err
	}
	return wallet, topic, nil
}

func withDeps(cmd *cobra.Command, factory depsFactory, withSigner bool, fn func(context.Context, *deps) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := factory(ctx, withSigner)
	if err != nil {
		return err
	}
	if d.close != nil {
		defer d.close()
	}
	return fn(ctx, d)
}

// resolved returns the identity of the wallet, failing when it has none
func resolved(ctx context.Context, d *deps, wallet common.Address) (*common.Address, error) {
	identity, err := d.resolver.ResolveIdentity(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, domain.ErrIdentityNotInitialized
	}
	return identity, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newDeps builds the services from the environment. Logs go to stderr so stdout stays json.
func newDeps(ctx context.Context, withSigner bool) (*deps, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	ctx = log.NewContext(ctx, cfg.Log.Level, cfg.Log.Mode, os.Stderr)
	if err := cfg.Sanitize(ctx); err != nil {
		return nil, err
	}

	ethClient, err := blockchain.InitEthClient(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	factory, err := gateways.NewIdentityFactory(ethClient, cfg.Contracts.FactoryAddress(), nil)
	if err != nil {
		return nil, err
	}
	issuer, err := gateways.NewClaimIssuer(ethClient, cfg.Contracts.IssuerAddress(), nil)
	if err != nil {
		return nil, err
	}

	var keys ports.KeyProvider
	if withSigner {
		if err := cfg.SanitizeSigner(); err != nil {
			return nil, err
		}
		if keys, err = kms.Open(ctx, cfg.KeyStore); err != nil {
			return nil, err
		}
	}

	cachex, err := cache.NewCacheClient(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewPubSub(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Provider == config.CacheProviderMemory {
		log.Warn(ctx, "memory cache provider, claim requests are not shared with the platform")
	}

	requests := repositories.NewClaimRequestCached(cachex, cfg.Cache.RequestTTL)
	return &deps{
		resolver: services.NewIdentityResolver(factory, gateways.NewTransaction(ethClient), keys, cfg.Identity.GasLimit),
		verifier: services.NewClaimVerifier(gateways.NewIdentityContracts(ethClient, nil), issuer, requests, ps, cfg.Identity.StrictClaimValidation),
		close:    func() { _ = ps.Close() },
	}, nil
}
