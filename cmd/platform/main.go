package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polygonid/launchpad-identity/internal/api"
	"github.com/polygonid/launchpad-identity/internal/buildinfo"
	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/core/event"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/core/services"
	"github.com/polygonid/launchpad-identity/internal/gateways"
	"github.com/polygonid/launchpad-identity/internal/health"
	"github.com/polygonid/launchpad-identity/internal/kms"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/metrics"
	"github.com/polygonid/launchpad-identity/internal/providers/blockchain"
	"github.com/polygonid/launchpad-identity/internal/redis"
	"github.com/polygonid/launchpad-identity/internal/repositories"
	"github.com/polygonid/launchpad-identity/pkg/cache"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

var build = buildinfo.Revision()

const shutdownTimeout = 10 * time.Second

func main() {
	log.Info(context.Background(), "starting launchpad identity service...", "revision", build)

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()

	if err := cfg.Sanitize(ctx); err != nil {
		log.Error(ctx, "invalid configuration", "err", err)
		return
	}

	m := metrics.New()

	ethClient, err := blockchain.InitEthClient(ctx, *cfg)
	if err != nil {
		log.Error(ctx, "error dialing with ethereum client", "err", err)
		return
	}

	factory, err := gateways.NewIdentityFactory(ethClient, cfg.Contracts.FactoryAddress(), m.ObserveRead)
	if err != nil {
		log.Error(ctx, "failed create identity factory gateway", "err", err)
		return
	}
	issuer, err := gateways.NewClaimIssuer(ethClient, cfg.Contracts.IssuerAddress(), m.ObserveRead)
	if err != nil {
		log.Error(ctx, "failed create claim issuer gateway", "err", err)
		return
	}
	identityContracts := gateways.NewIdentityContracts(ethClient, m.ObserveRead)
	transactionService := gateways.NewTransaction(ethClient)

	var keyProvider ports.KeyProvider
	if err := cfg.SanitizeSigner(); err != nil {
		log.Warn(ctx, "operator key not configured, identities cannot be created", "err", err)
	} else {
		keyProvider, err = kms.Open(ctx, cfg.KeyStore)
		if err != nil {
			log.Error(ctx, "cannot open operator key provider", "err", err)
			return
		}
	}

	pingers := []health.Ping{ethClient}
	var cachex cache.Cache
	var ps pubsub.Client
	switch cfg.Cache.Provider {
	case config.CacheProviderRedis:
		rdb, err := redis.Open(ctx, cfg.Cache.URL)
		if err != nil {
			log.Error(ctx, "cannot connect to redis", "err", err, "host", cfg.Cache.URL)
			return
		}
		defer func() { _ = rdb.Close() }()
		cachex = cache.NewRedisCache(rdb)
		ps = pubsub.NewRedis(rdb)
		pingers = append(pingers, redis.Wrapper{Client: rdb})
	case config.CacheProviderValkey:
		client, err := redis.OpenValkey(ctx, cfg.Cache.URL)
		if err != nil {
			log.Error(ctx, "cannot connect to valkey", "err", err, "host", cfg.Cache.URL)
			return
		}
		defer client.Close()
		cachex = cache.NewValKeyCache(client)
		ps = pubsub.NewValKeyClient(client)
		pingers = append(pingers, redis.ValkeyWrapper{Client: client})
	default:
		cachex = cache.NewMemoryCache()
		ps = pubsub.NewLocal()
		if !cfg.Identity.EmbeddedSettler {
			log.Warn(ctx, "memory pubsub without embedded settler, claim requests will never be settled")
		}
	}
	defer func() { _ = ps.Close() }()

	claimRequestRepository := repositories.NewClaimRequestCached(cachex, cfg.Cache.RequestTTL)

	resolver := services.NewIdentityResolver(factory, transactionService, keyProvider, cfg.Identity.GasLimit,
		services.WithProvisioningObserver(m.ObserveProvisioning))
	verifier := services.NewClaimVerifier(identityContracts, issuer, claimRequestRepository, ps, cfg.Identity.StrictClaimValidation)
	identityStatus := services.NewIdentityStatus(ctx, resolver, verifier, services.IdentityStatusConfig{
		AutoProvision: cfg.Identity.AutoProvision,
		PollInterval:  cfg.Identity.PollInterval,
		PollCeiling:   cfg.Identity.PollCeiling,
	}, services.WithLoopObserver(m.ObservePollLoop))
	defer identityStatus.Close()
	ps.Subscribe(ctx, event.ClaimSettledEvent, identityStatus.OnClaimSettled)

	if cfg.Identity.EmbeddedSettler {
		settler := services.NewClaimSettler(ctx, claimRequestRepository, ps, cfg.Identity.SettlementDelay)
		defer settler.Close()
		settler.Start(ps)
	}

	serverHealth := health.New(pingers...)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           api.NewServer(identityStatus, verifier, serverHealth, m, cfg.CORSOrigins).Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, "server started", "port", cfg.ServerPort, "url", cfg.ServerUrl)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "starting http server", "err", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info(ctx, "Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "http server shutdown", "err", err)
	}
}
