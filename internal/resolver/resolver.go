// Package resolver implements the Address & Account Resolver (spec.md §4.2):
// Ethereum address <-> backend script hash <-> backend account id, with a
// Redis-backed, idempotent cache of the script-hash -> account-id half.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-redis/redis"

	"github.com/godwoken-web3/gw-gateway/internal/codec/backendhash"
	"github.com/godwoken-web3/gw-gateway/internal/codec/molecule"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// accountIDCacheTTL is long: once a script hash has an id, it never
// changes (spec.md §4.2).
const accountIDCacheTTL = 30 * 24 * time.Hour

// Backend is the subset of the backend RPC this resolver needs.
type Backend interface {
	GetAccountIdByScriptHash(ctx context.Context, scriptHash common.Hash) (gwtypes.AccountId, bool, error)
}

// Resolver maps Ethereum addresses to backend accounts.
type Resolver struct {
	backend             Backend
	redis               *redis.Client
	rollupTypeHash      common.Hash
	ethAccountLockHash  common.Hash
	log                 log.Logger
}

// New builds a Resolver. rollupTypeHash and ethAccountLockCodeHash are
// process-wide constants of the configured rollup instance (spec.md §4.2).
func New(backend Backend, rdb *redis.Client, rollupTypeHash, ethAccountLockCodeHash common.Hash, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.Root()
	}
	return &Resolver{
		backend:            backend,
		redis:              rdb,
		rollupTypeHash:     rollupTypeHash,
		ethAccountLockHash: ethAccountLockCodeHash,
		log:                logger,
	}
}

// ScriptHashOf derives the backend script hash for an Ethereum address: a
// pure function of (ethAddr, rollupTypeHash, ethAccountLockCodeHash)
// (spec.md §4.2). The canonical eth-account-lock script is
// {code_hash: ethAccountLockCodeHash, hash_type: type, args: rollupTypeHash || ethAddr}.
// BackendScriptHash is a backend-domain hash (spec.md §3), not an Ethereum
// identity hash, so it is hashed with backendhash.Hash, never Keccak-256
// (spec.md §4.1 reserves Keccak-256 for Ethereum identities).
func (r *Resolver) ScriptHashOf(ethAddr common.Address) common.Hash {
	args := molecule.FixedStruct(r.rollupTypeHash[:], ethAddr[:])
	script := molecule.Table(
		r.ethAccountLockHash[:],
		[]byte{1}, // hash_type: "type"
		molecule.Table(args),
	)
	return backendhash.Hash(script)
}

// redisKey mirrors spec.md §6's "gwRpc_<scriptHash>" layout.
func redisKey(scriptHash common.Hash) string {
	return fmt.Sprintf("gwRpc_%s", scriptHash.Hex())
}

// AccountIdOf resolves an Ethereum address to a backend account id. It
// never errors for "not registered yet": absence is reported via the
// second return, matching spec.md §4.2's "never throws" contract so
// callers (e.g. eth_getBalance, eth_sendRawTransaction) decide what to do.
func (r *Resolver) AccountIdOf(ctx context.Context, ethAddr common.Address) (gwtypes.AccountId, bool, error) {
	scriptHash := r.ScriptHashOf(ethAddr)
	return r.AccountIdOfScriptHash(ctx, scriptHash)
}

// AccountIdOfScriptHash is AccountIdOf's core: cached by script hash
// because an address -> script hash derivation is cheap to repeat
// (spec.md §4.2: "Address->scriptHash is not cached").
func (r *Resolver) AccountIdOfScriptHash(ctx context.Context, scriptHash common.Hash) (gwtypes.AccountId, bool, error) {
	key := redisKey(scriptHash)
	if r.redis != nil {
		if v, err := r.redis.Get(key).Result(); err == nil {
			var id uint32
			if _, scanErr := fmt.Sscanf(v, "%d", &id); scanErr == nil {
				return id, true, nil
			}
		} else if err != redis.Nil {
			r.log.Warn("resolver: redis get failed, falling through to backend", "err", err)
		}
	}

	id, ok, err := r.backend.GetAccountIdByScriptHash(ctx, scriptHash)
	if err != nil {
		return 0, false, fmt.Errorf("resolve account id: %w", err)
	}
	if !ok {
		// Misses are never cached (spec.md §4.2): a newly created account
		// must be visible on its very next lookup.
		return 0, false, nil
	}
	if r.redis != nil {
		if err := r.redis.Set(key, fmt.Sprintf("%d", id), accountIDCacheTTL).Err(); err != nil {
			r.log.Warn("resolver: redis set failed", "err", err)
		}
	}
	return id, true, nil
}
