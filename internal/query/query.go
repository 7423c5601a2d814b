// Package query defines the Query/ReadStore adapter (spec.md §4.6): typed
// read access to blocks, transactions, and logs from the relational store.
// Only the interface and the shapes it returns are in scope here; the
// relational schema and its driver are explicit non-goals (spec.md §1).
package query

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/godwoken-web3/gw-gateway/internal/filters"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// Store is the read-only interface the rest of the core depends on. A
// concrete implementation talks to the relational store over whatever
// driver/ORM the deployment chooses; that wiring is out of scope here
// (spec.md §1).
type Store interface {
	// TipNumber returns the current tip block number, or (0, false) if no
	// blocks exist yet (spec.md §4.8: eth_blockNumber).
	TipNumber(ctx context.Context) (uint64, bool, error)

	// BlockByNumber resolves a "latest"/"earliest"/specific-number tag,
	// including the special "pending" sentinel meaning "include mempool"
	// (spec.md §4.7).
	BlockByNumber(ctx context.Context, number uint64, includeMempool bool) (*gwtypes.ApiBlock, error)

	// BlockByHash looks up a block by its Ethereum hash; requireCanonical
	// mirrors the {blockHash, requireCanonical} BlockParameter shape
	// (spec.md §4.7).
	BlockByHash(ctx context.Context, hash common.Hash, requireCanonical bool) (*gwtypes.ApiBlock, error)

	// TransactionByEthHash is step (1) of eth_getTransactionByHash's search
	// order (spec.md §4.8): the relational store, authoritative for
	// finalised blocks.
	TransactionByEthHash(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, bool, error)

	// TransactionReceipt looks up a finalised transaction's receipt
	// fields. Returning nil, false means "not finalised yet";
	// EthAPI.GetTransactionReceipt then returns null.
	TransactionReceipt(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, bool, error)

	// BlockHashesAfter returns ascending block hashes with number > after,
	// and the number of the last one returned (spec.md §4.5).
	BlockHashesAfter(ctx context.Context, after uint64) ([]common.Hash, uint64, error)

	// LogsMatching returns logs matching criteria with row id > afterID, in
	// ascending id order, and the id of the last one returned
	// (spec.md §4.5).
	LogsMatching(ctx context.Context, criteria filters.LogCriteria, afterID uint64) ([]gwtypes.ApiLog, uint64, error)

	// TipBlockHash is the relational store's view of the current tip hash,
	// used to fingerprint DataCache keys (spec.md §4.4) independent of the
	// Redis tipBlockHash accelerator (spec.md §6).
	TipBlockHash(ctx context.Context) (common.Hash, error)

	// EthToNative and NativeToEth are the TxHashIndex's authoritative half
	// (spec.md §4.6): once a transaction is finalised, its hash mapping
	// lives in the relational store rather than the Redis accelerator.
	EthToNative(ctx context.Context, ethHash common.Hash) (common.Hash, bool, error)
	NativeToEth(ctx context.Context, nativeHash common.Hash) (common.Hash, bool, error)

	// HeadersInRange and LogsInRange feed the BlockEmitter's per-tick
	// newHeads/logs fan-out (spec.md §4.9).
	HeadersInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]gwtypes.ApiBlockHeader, error)
	LogsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]gwtypes.ApiLog, error)
}
