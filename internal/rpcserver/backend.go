package rpcserver

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/godwoken-web3/gw-gateway/internal/datacache"
	"github.com/godwoken-web3/gw-gateway/internal/filters"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/query"
	"github.com/godwoken-web3/gw-gateway/internal/resolver"
	"github.com/godwoken-web3/gw-gateway/internal/txhashindex"
	"github.com/godwoken-web3/gw-gateway/internal/txtranslator"
)

// BackendRPC is the subset of internal/backendrpc.Client the EthMethods
// need, kept as an interface so tests use a hand-written fake in the
// teacher's test_backend.go idiom rather than a real HTTP client.
type BackendRPC interface {
	ExecuteRawL2Transaction(ctx context.Context, nativeTxMolecule []byte, registry gwtypes.EthRegistryAddress, blockParam string) ([]byte, [][]byte, error)
	SubmitL2Transaction(ctx context.Context, nativeTxMolecule []byte) (common.Hash, error)
	GetAccountIdByScriptHash(ctx context.Context, scriptHash common.Hash) (gwtypes.AccountId, bool, error)
	HasTransaction(ctx context.Context, nativeHash common.Hash) (bool, error)
	GetBalance(ctx context.Context, registry gwtypes.EthRegistryAddress, sudtID gwtypes.AccountId) (*hexutil.Big, error)
	GetStorageAt(ctx context.Context, accountID gwtypes.AccountId, key common.Hash) (common.Hash, error)
	GetData(ctx context.Context, key common.Hash) ([]byte, error)
	GetTipBlockHash(ctx context.Context) (common.Hash, error)
}

// Config is the configuration object spec.md §6 names, threaded through
// the Backend as an explicit dependency struct rather than a package
// singleton (spec.md §9).
type Config struct {
	ChainID            uint64
	RollupTypeHash     common.Hash
	EthAccountLockHash common.Hash
	CreatorAccountId   gwtypes.AccountId
	SudtAccountId      gwtypes.AccountId
	ExtraEstimateGas   uint64
	InstantFinality    bool
	EntrypointContract *common.Address // presence enables gasless-tx validation
	FilterIdleTimeout  int64           // seconds
	Version            string
}

// Backend composes the gateway's components into the dependency struct the
// eth_/net_/web3_/poly_/gw_ namespace services share (spec.md §9: "explicit
// dependency structs threaded through constructors; avoid global mutable
// state").
type Backend struct {
	Config     Config
	Store      query.Store
	BackendRPC BackendRPC
	Resolver   *resolver.Resolver
	Translator *txtranslator.Translator
	Cache      *datacache.Cache
	TxIndex    *txhashindex.Index
	Filters    *filters.Manager
	Log        log.Logger
}

func (b *Backend) logger() log.Logger {
	if b.Log != nil {
		return b.Log
	}
	return log.Root()
}
