package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/polygonid/launchpad-identity/internal/buildinfo"
	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/core/services"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/repositories"
	"github.com/polygonid/launchpad-identity/pkg/cache"
	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()
	log.Info(ctx, "starting claim settler...", "revision", buildinfo.Revision())

	// The settler shares claim requests with the platform, so it needs an external cache.
	if cfg.Cache.Provider == config.CacheProviderMemory {
		log.Error(ctx, "the claim settler needs a redis or valkey cache provider", "provider", cfg.Cache.Provider)
		return
	}

	cachex, err := cache.NewCacheClient(ctx, cfg.Cache)
	if err != nil {
		log.Error(ctx, "cannot connect to the cache", "err", err)
		return
	}

	ps, err := pubsub.NewPubSub(ctx, cfg.Cache)
	if err != nil {
		log.Error(ctx, "cannot connect to pubsub", "err", err)
		return
	}
	defer func() { _ = ps.Close() }()

	claimRequestRepository := repositories.NewClaimRequestCached(cachex, cfg.Cache.RequestTTL)
	settler := services.NewClaimSettler(ctx, claimRequestRepository, ps, cfg.Identity.SettlementDelay)
	defer settler.Close()
	settler.Start(ps)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	<-gracefulShutdown
	log.Info(ctx, "Shutting down")
}
