package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/polygonid/launchpad-identity/internal/config"
	"github.com/polygonid/launchpad-identity/internal/kms"
	"github.com/polygonid/launchpad-identity/internal/log"
)

// This is a tool to import the operator ethereum private key into the configured key store.
func main() {
	fPrivateKey := flag.String("privateKey", "", "operator private key (hex)")
	flag.Parse()

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		os.Exit(1)
	}
	ctx := log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout)

	if *fPrivateKey == "" {
		log.Error(ctx, "private key is required")
		os.Exit(1)
	}

	signer, err := kms.Import(ctx, cfg.KeyStore, strings.TrimPrefix(*fPrivateKey, "0x"))
	if err != nil {
		log.Error(ctx, "cannot import private key", "err", err, "provider", cfg.KeyStore.Provider)
		os.Exit(1)
	}
	log.Info(ctx, "private key imported", "provider", cfg.KeyStore.Provider, "address", signer.Address().Hex())
}
