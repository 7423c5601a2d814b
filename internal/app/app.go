// Package app is the gateway's composition root: it wires the components
// described across spec.md's component table into one running process.
// Building the relational store itself is out of scope (spec.md §1 Non-
// goals: "the relational schema itself", "ORM wiring"), so New takes a
// ready-made query.Store rather than constructing one.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-redis/redis"

	"github.com/godwoken-web3/gw-gateway/config"
	"github.com/godwoken-web3/gw-gateway/internal/backendrpc"
	"github.com/godwoken-web3/gw-gateway/internal/blockemitter"
	"github.com/godwoken-web3/gw-gateway/internal/datacache"
	"github.com/godwoken-web3/gw-gateway/internal/eventbus"
	"github.com/godwoken-web3/gw-gateway/internal/filters"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/query"
	"github.com/godwoken-web3/gw-gateway/internal/resolver"
	"github.com/godwoken-web3/gw-gateway/internal/rpcserver"
	"github.com/godwoken-web3/gw-gateway/internal/txhashindex"
	"github.com/godwoken-web3/gw-gateway/internal/txtranslator"
)

// App holds every long-lived component the composition root starts.
type App struct {
	Backend *rpcserver.Backend
	Emitter *blockemitter.Emitter
	Bus     *eventbus.Bus

	apis []rpc.API
}

// New wires spec.md's components together from cfg and an already-built
// query.Store, returning a ready-to-serve App.
func New(cfg config.Config, store query.Store, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Root()
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
	}

	backendClient := backendrpc.New(cfg.BackendWriterURL, cfg.BackendReaderURL, cfg.BackendTimeout, logger)
	res := resolver.New(backendClient, rdb, cfg.RollupTypeHash, cfg.EthAccountLockHash, logger)
	translator := txtranslator.New(res, cfg.ChainID, cfg.CreatorAccountId, cfg.ExtraEstimateGas, cfg.EntrypointContract)

	var cache *datacache.Cache
	if rdb != nil {
		cache = datacache.New(rdb, datacache.DefaultOptions(), logger)
	}

	txIndex := txhashindex.New(store, rdb, backendClient)
	filterIdleTimeout := cfg.FilterIdleTimeout
	if filterIdleTimeout == 0 {
		filterIdleTimeout = 5 * time.Minute
	}
	filterManager := filters.New(store, filterIdleTimeout)

	backend := &rpcserver.Backend{
		Config: rpcserver.Config{
			ChainID:            cfg.ChainID,
			RollupTypeHash:     cfg.RollupTypeHash,
			EthAccountLockHash: cfg.EthAccountLockHash,
			CreatorAccountId:   cfg.CreatorAccountId,
			SudtAccountId:      cfg.SudtAccountId,
			ExtraEstimateGas:   cfg.ExtraEstimateGas,
			InstantFinality:    cfg.InstantFinality,
			EntrypointContract: cfg.EntrypointContract,
			FilterIdleTimeout:  int64(filterIdleTimeout.Seconds()),
			Version:            cfg.Version,
		},
		Store:      store,
		BackendRPC: backendClient,
		Resolver:   res,
		Translator: translator,
		Cache:      cache,
		TxIndex:    txIndex,
		Filters:    filterManager,
		Log:        logger,
	}

	var bus *eventbus.Bus
	if rdb != nil {
		bus = eventbus.New(rdb)
	}
	emitter := blockemitter.New(store, emitterPublisher{bus}, logger)

	return &App{
		Backend: backend,
		Emitter: emitter,
		Bus:     bus,
		apis:    rpcserver.GetAPIs(backend),
	}, nil
}

// emitterPublisher adapts a possibly-nil *eventbus.Bus to
// blockemitter.Publisher: with no Redis configured, events are simply
// dropped rather than failing the tick (spec.md §4.9: "best-effort").
type emitterPublisher struct{ bus *eventbus.Bus }

func (p emitterPublisher) PublishNewHead(head gwtypes.ApiBlockHeader) error {
	if p.bus == nil {
		return nil
	}
	return p.bus.PublishNewHead(head)
}

func (p emitterPublisher) PublishLogs(logs []gwtypes.ApiLog) error {
	if p.bus == nil {
		return nil
	}
	return p.bus.PublishLogs(logs)
}

// APIs returns the registered JSON-RPC namespaces, ready for
// rpc.Server.RegisterName.
func (a *App) APIs() []rpc.API { return a.apis }

// Run starts the RPC server on cfg.ListenAddr and the BlockEmitter, both
// stopping when ctx is cancelled (spec.md §4.9: the emitter runs in
// exactly one process).
func (a *App) Run(ctx context.Context, listenAddr string) error {
	srv := rpc.NewServer()
	for _, api := range a.apis {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			return fmt.Errorf("register %s namespace: %w", api.Namespace, err)
		}
	}

	go a.Emitter.Run(ctx)

	return serveHTTP(ctx, listenAddr, srv)
}
