// Command gw-gateway runs the Ethereum-compatible JSON-RPC gateway
// described in spec.md. Loading configuration from the environment or
// flags, and constructing the relational store, are explicit non-goals
// (spec.md §1); this binary exists to show the composition root wired
// together, not to be a turnkey deployment tool.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/godwoken-web3/gw-gateway/config"
	"github.com/godwoken-web3/gw-gateway/internal/app"
	"github.com/godwoken-web3/gw-gateway/internal/query"
)

func main() {
	logger := log.Root()

	cfg, store, err := loadDeployment()
	if err != nil {
		logger.Crit("gw-gateway: missing deployment wiring", "err", err)
		os.Exit(1)
	}

	gw, err := app.New(cfg, store, logger)
	if err != nil {
		logger.Crit("gw-gateway: failed to build application", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("gw-gateway: starting", "addr", cfg.ListenAddr)
	if err := gw.Run(ctx, cfg.ListenAddr); err != nil {
		logger.Crit("gw-gateway: server stopped with error", "err", err)
		os.Exit(1)
	}
}

// loadDeployment is the one seam this binary leaves open: building the
// relational store and populating Config from a concrete environment are
// out of scope here (spec.md §1 Non-goals: "environment/config loading",
// "the relational schema itself", "ORM wiring"). A real deployment
// replaces this function with one that builds a query.Store against its
// chosen driver and fills in Config from its own flags/env.
func loadDeployment() (config.Config, query.Store, error) {
	return config.Config{}, nil, errors.New("loadDeployment: wire a query.Store and Config for your deployment")
}
