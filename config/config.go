// Package config defines the gateway's configuration object (spec.md §6).
// Loading it from the environment, flags, or a file is explicitly out of
// scope (spec.md §1 Non-goals: "environment/config loading"); callers
// construct a Config directly.
package config

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the configuration object spec.md §6 names: backend RPC URLs,
// Redis URL, relational store URL, chain id, rollup type hash, the
// optional entrypoint contract, the extra-estimate-gas constant, and the
// instant-finality flag.
type Config struct {
	// ListenAddr is the HTTP address the JSON-RPC surface is served on.
	ListenAddr string

	// BackendWriterURL and BackendReaderURL are the backend's native RPC
	// endpoints; writes and state-changing calls go to the writer, reads
	// may be load-balanced to the reader.
	BackendWriterURL string
	BackendReaderURL string
	BackendTimeout   time.Duration

	// RedisURL and RelationalStoreURL name the two external stores this
	// gateway coordinates through; wiring them up is out of scope here
	// (spec.md §1).
	RedisURL           string
	RelationalStoreURL string

	ChainID            uint64
	RollupTypeHash     common.Hash
	EthAccountLockHash common.Hash
	CreatorAccountId   uint32
	SudtAccountId      uint32

	// ExtraEstimateGas is the constant added on top of the backend's
	// reported gasUsed in eth_estimateGas (spec.md §4.8).
	ExtraEstimateGas uint64

	// InstantFinality, when true, resolves the "latest" block tag as
	// "pending" so wallets see mempool state immediately after submission
	// (spec.md §4.7).
	InstantFinality bool

	// EntrypointContract enables the gasless-transaction validation path
	// when set (spec.md §6).
	EntrypointContract *common.Address

	// FilterIdleTimeout bounds how long an installed filter survives
	// without being polled (spec.md §3).
	FilterIdleTimeout time.Duration

	Version string
}
