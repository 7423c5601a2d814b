// Package txhashindex implements the TxHashIndex (spec.md §4.6): the
// bidirectional Ethereum<->native hash mapping (relational store,
// authoritative, plus a Redis fallback for the pre-finality window) and
// the auto-create-account (ACA) reconciliation path.
package txhashindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// mappingTTL bounds how long the Redis accelerator entries live before the
// relational store must have picked them up (spec.md §3: "a short-lived
// accelerator for the pre-finality window").
const mappingTTL = 24 * time.Hour

// acaTTL is longer than mappingTTL: an auto-create transaction has no
// native hash until the backend assigns from_id, so it needs to survive
// until the sender's first confirmed transaction (spec.md §3).
const acaTTL = 7 * 24 * time.Hour

func ethKey(ethHash common.Hash) string   { return fmt.Sprintf("tx:mapping:eth:%s", ethHash.Hex()) }
func gwKey(nativeHash common.Hash) string { return fmt.Sprintf("tx:mapping:gw:%s", nativeHash.Hex()) }
func acaKey(ethHash common.Hash) string   { return fmt.Sprintf("aca:%s", ethHash.Hex()) }
func pendingKey(ethHash common.Hash) string {
	return fmt.Sprintf("tx:pending:%s", ethHash.Hex())
}

// Store is the authoritative half of the index: the relational store.
type Store interface {
	EthToNative(ctx context.Context, ethHash common.Hash) (common.Hash, bool, error)
	NativeToEth(ctx context.Context, nativeHash common.Hash) (common.Hash, bool, error)
}

// Backend is the subset of the backend RPC used to check whether a
// tentatively-derived native hash exists in the mempool, during ACA
// reconciliation (spec.md §4.6).
type Backend interface {
	HasTransaction(ctx context.Context, nativeHash common.Hash) (bool, error)
}

// acaEntry is the Redis-stored value for an auto-create-account pending
// transaction (spec.md §3: AutoCreateAccountCache).
type acaEntry struct {
	RawEthTxHex string `json:"rawEthTxHex"`
	FromAddress string `json:"fromAddress"`
}

// Index is the TxHashIndex of spec.md §4.6.
type Index struct {
	store   Store
	redis   *redis.Client
	backend Backend
}

// New builds an Index.
func New(store Store, rdb *redis.Client, backend Backend) *Index {
	return &Index{store: store, redis: rdb, backend: backend}
}

// RecordSubmission writes both hash-mapping directions to Redis with the
// same TTL when a raw Ethereum transaction is submitted (spec.md §4.6).
// For an auto-create transaction, the native hash is not yet known, so
// callers use RecordAutoCreate instead.
func (idx *Index) RecordSubmission(ethHash, nativeHash common.Hash) error {
	if idx.redis == nil {
		return nil
	}
	if err := idx.redis.Set(ethKey(ethHash), nativeHash.Hex(), mappingTTL).Err(); err != nil {
		return fmt.Errorf("record eth->native mapping: %w", err)
	}
	if err := idx.redis.Set(gwKey(nativeHash), ethHash.Hex(), mappingTTL).Err(); err != nil {
		return fmt.Errorf("record native->eth mapping: %w", err)
	}
	return nil
}

// RecordPendingTx caches a submitted transaction's raw bytes for the window
// between submission and the relational store picking it up, so
// GetTransactionByHash can synthesise a pending-tx view the same way it
// does for an ACA entry (spec.md §4.6, §4.8).
func (idx *Index) RecordPendingTx(ethHash common.Hash, rawEthTxHex string, from common.Address) error {
	if idx.redis == nil {
		return nil
	}
	b, err := json.Marshal(acaEntry{RawEthTxHex: rawEthTxHex, FromAddress: from.Hex()})
	if err != nil {
		return err
	}
	if err := idx.redis.Set(pendingKey(ethHash), string(b), mappingTTL).Err(); err != nil {
		return fmt.Errorf("record pending tx: %w", err)
	}
	return nil
}

// PendingTx fetches a cached pending transaction's raw bytes, if any.
func (idx *Index) PendingTx(ethHash common.Hash) (gwtypes.AutoCreateEntry, bool, error) {
	if idx.redis == nil {
		return gwtypes.AutoCreateEntry{}, false, nil
	}
	v, err := idx.redis.Get(pendingKey(ethHash)).Result()
	if err == redis.Nil {
		return gwtypes.AutoCreateEntry{}, false, nil
	}
	if err != nil {
		return gwtypes.AutoCreateEntry{}, false, fmt.Errorf("redis lookup pending tx: %w", err)
	}
	var e acaEntry
	if err := json.Unmarshal([]byte(v), &e); err != nil {
		return gwtypes.AutoCreateEntry{}, false, fmt.Errorf("corrupt pending tx entry: %w", err)
	}
	return gwtypes.AutoCreateEntry{
		EthHash:     ethHash,
		RawEthTxHex: e.RawEthTxHex,
		FromAddress: common.HexToAddress(e.FromAddress),
	}, true, nil
}

// RecordAutoCreate stores the ACA entry keyed by ethHash (spec.md §3, §4.6).
func (idx *Index) RecordAutoCreate(entry gwtypes.AutoCreateEntry) error {
	if idx.redis == nil {
		return nil
	}
	b, err := json.Marshal(acaEntry{RawEthTxHex: entry.RawEthTxHex, FromAddress: entry.FromAddress.Hex()})
	if err != nil {
		return err
	}
	if err := idx.redis.Set(acaKey(entry.EthHash), string(b), acaTTL).Err(); err != nil {
		return fmt.Errorf("record aca entry: %w", err)
	}
	return nil
}

// EthToNative resolves an Ethereum hash to its native hash: relational
// store first (authoritative), then Redis (spec.md §4.6).
func (idx *Index) EthToNative(ctx context.Context, ethHash common.Hash) (common.Hash, bool, error) {
	if nativeHash, ok, err := idx.store.EthToNative(ctx, ethHash); err != nil {
		return common.Hash{}, false, err
	} else if ok {
		return nativeHash, true, nil
	}
	if idx.redis == nil {
		return common.Hash{}, false, nil
	}
	v, err := idx.redis.Get(ethKey(ethHash)).Result()
	if err == redis.Nil {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("redis lookup eth->native: %w", err)
	}
	return common.HexToHash(v), true, nil
}

// NativeToEth is the symmetric lookup (spec.md §4.6).
func (idx *Index) NativeToEth(ctx context.Context, nativeHash common.Hash) (common.Hash, bool, error) {
	if ethHash, ok, err := idx.store.NativeToEth(ctx, nativeHash); err != nil {
		return common.Hash{}, false, err
	} else if ok {
		return ethHash, true, nil
	}
	if idx.redis == nil {
		return common.Hash{}, false, nil
	}
	v, err := idx.redis.Get(gwKey(nativeHash)).Result()
	if err == redis.Nil {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("redis lookup native->eth: %w", err)
	}
	return common.HexToHash(v), true, nil
}

// ACAEntry fetches the pending auto-create entry for an Ethereum hash, if
// any (spec.md §4.6).
func (idx *Index) ACAEntry(ethHash common.Hash) (gwtypes.AutoCreateEntry, bool, error) {
	if idx.redis == nil {
		return gwtypes.AutoCreateEntry{}, false, nil
	}
	v, err := idx.redis.Get(acaKey(ethHash)).Result()
	if err == redis.Nil {
		return gwtypes.AutoCreateEntry{}, false, nil
	}
	if err != nil {
		return gwtypes.AutoCreateEntry{}, false, fmt.Errorf("redis lookup aca entry: %w", err)
	}
	var e acaEntry
	if err := json.Unmarshal([]byte(v), &e); err != nil {
		return gwtypes.AutoCreateEntry{}, false, fmt.Errorf("corrupt aca entry: %w", err)
	}
	return gwtypes.AutoCreateEntry{
		EthHash:     ethHash,
		RawEthTxHex: e.RawEthTxHex,
		FromAddress: common.HexToAddress(e.FromAddress),
	}, true, nil
}

// ResolveACA re-derives the native hash for a reconciled ACA transaction
// now that the sender's account id is known. If the relational store
// already holds the Ethereum hash, the ACA entry is deleted. Otherwise the
// backend is asked whether the derived hash exists in the mempool; if it
// does, the hash mapping is recorded in Redis and the ACA entry is kept
// (spec.md §4.6).
func (idx *Index) ResolveACA(ctx context.Context, ethHash, candidateNativeHash common.Hash) (bool, error) {
	if _, ok, err := idx.store.EthToNative(ctx, ethHash); err != nil {
		return false, err
	} else if ok {
		idx.deleteACA(ethHash)
		return true, nil
	}

	found, err := idx.backend.HasTransaction(ctx, candidateNativeHash)
	if err != nil {
		return false, fmt.Errorf("check backend for derived native hash: %w", err)
	}
	if found {
		if err := idx.RecordSubmission(ethHash, candidateNativeHash); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (idx *Index) deleteACA(ethHash common.Hash) {
	if idx.redis == nil {
		return
	}
	idx.redis.Del(acaKey(ethHash))
}
