// Package datacache implements the read-through, single-flight cache for
// expensive read-only execution (spec.md §4.4): eth_call, eth_estimateGas,
// and execute_raw_l2transaction results are memoised by a fingerprint of
// tip state, with in-process and cross-process de-duplication of
// concurrent identical requests.
package datacache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-redis/redis"
	"golang.org/x/sync/singleflight"
)

// state is the Redis-stored CacheEntry's state (spec.md §3).
type state string

const (
	statePending state = "PENDING"
	stateReady   state = "READY"
	stateFailed  state = "FAILED"
)

type entry struct {
	State state  `json:"state"`
	Value string `json:"value,omitempty"`
	Err   string `json:"err,omitempty"`
}

// Options tunes the cache's polling and TTL behaviour.
type Options struct {
	ClaimTTL       time.Duration // PENDING claim TTL (Redis SETNX PX)
	ResultTTL      time.Duration // READY TTL
	NegativeTTL    time.Duration // short TTL for FAILED entries, to allow retry
	PollInterval   time.Duration // ~30ms per spec.md §4.4
}

// DefaultOptions matches the intervals spec.md §4.4 names.
func DefaultOptions() Options {
	return Options{
		ClaimTTL:     5 * time.Second,
		ResultTTL:    10 * time.Second,
		NegativeTTL:  1 * time.Second,
		PollInterval: 30 * time.Millisecond,
	}
}

// Cache is the DataCache of spec.md §4.4.
type Cache struct {
	redis   *redis.Client
	group   singleflight.Group
	opts    Options
	log     log.Logger
}

// New builds a Cache. A nil redis client disables the cross-process half of
// the cache and degrades to pure in-process single-flight, matching
// spec.md §7's "a Redis outage demotes the cache path to direct execution"
// for the distributed half while still deduplicating local concurrency.
func New(rdb *redis.Client, opts Options, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.Root()
	}
	return &Cache{redis: rdb, opts: opts, log: logger}
}

// Key composes the state-dependent cache key: first64(tipHash) ||
// first64(memPoolStateRoot) || first64(keccak(serialisedParams))
// (spec.md §4.4).
func Key(prefix string, tipHash, memPoolStateRoot common.Hash, params []byte) string {
	paramsHash := crypto.Keccak256Hash(params)
	return fmt.Sprintf("dataCache:%s:%x%x%x",
		prefix,
		first8(tipHash[:]),
		first8(memPoolStateRoot[:]),
		first8(paramsHash[:]),
	)
}

func first8(b []byte) []byte {
	if len(b) < 8 {
		return b
	}
	return b[:8]
}

// Compute is the shape of the expensive read-only operation memoised by
// Get.
type Compute func(ctx context.Context) ([]byte, error)

// Get implements spec.md §4.4's get(): memoised READY value if present;
// waits on a PENDING entry; otherwise claims PENDING and runs compute.
func (c *Cache) Get(ctx context.Context, key string, compute Compute) ([]byte, error) {
	// In-process de-duplication: concurrent callers in this process for
	// the same key share one compute() call and its result, regardless of
	// Redis availability (spec.md §9: local future-map keyed by
	// fingerprint).
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.getOrCompute(ctx, key, compute)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) getOrCompute(ctx context.Context, key string, compute Compute) ([]byte, error) {
	if c.redis == nil {
		return compute(ctx)
	}

	claimed, err := c.redis.SetNX(key, mustMarshal(entry{State: statePending}), c.opts.ClaimTTL).Result()
	if err != nil {
		c.log.Warn("datacache: redis unavailable, executing directly", "err", err)
		return compute(ctx)
	}

	if !claimed {
		return c.waitForResult(ctx, key, compute)
	}
	return c.runAndStore(ctx, key, compute)
}

func (c *Cache) runAndStore(ctx context.Context, key string, compute Compute) ([]byte, error) {
	value, err := compute(ctx)
	if ctx.Err() != nil {
		// Caller cancelled: release the PENDING claim promptly so waiters
		// don't block out the full ClaimTTL (spec.md §5).
		c.store(key, entry{State: stateFailed, Err: "cancelled"}, c.opts.NegativeTTL)
		return nil, ctx.Err()
	}
	if err != nil {
		c.store(key, entry{State: stateFailed, Err: err.Error()}, c.opts.NegativeTTL)
		return nil, err
	}
	c.store(key, entry{State: stateReady, Value: string(value)}, c.opts.ResultTTL)
	return value, nil
}

func (c *Cache) store(key string, e entry, ttl time.Duration) {
	if err := c.redis.Set(key, mustMarshal(e), ttl).Err(); err != nil {
		c.log.Warn("datacache: failed to store result", "key", key, "err", err)
	}
}

func (c *Cache) waitForResult(ctx context.Context, key string, compute Compute) ([]byte, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			raw, err := c.redis.Get(key).Result()
			if err == redis.Nil {
				// The winner's claim expired without a result (e.g. it
				// crashed); race to claim it ourselves.
				return c.getOrCompute(ctx, key, compute)
			}
			if err != nil {
				return nil, fmt.Errorf("datacache: redis get failed: %w", err)
			}
			var e entry
			if err := json.Unmarshal([]byte(raw), &e); err != nil {
				return nil, fmt.Errorf("datacache: corrupt entry: %w", err)
			}
			switch e.State {
			case stateReady:
				return []byte(e.Value), nil
			case stateFailed:
				return nil, fmt.Errorf("%s", e.Err)
			}
			// still PENDING; keep polling
		}
	}
}

func mustMarshal(e entry) string {
	b, err := json.Marshal(e)
	if err != nil {
		// entry only ever holds strings; Marshal cannot fail.
		panic(err)
	}
	return string(b)
}

// SerialiseCallParams implements spec.md §4.4's fixed-field-order JSON
// serialisation with "0x" placeholders for absent fields, so two
// semantically equal calls yield the same key.
func SerialiseCallParams(from, to, gas, gasPrice, value, data string) []byte {
	type ordered struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
		Value    string `json:"value"`
		Data     string `json:"data"`
	}
	def := func(s string) string {
		if s == "" {
			return "0x"
		}
		return s
	}
	b, _ := json.Marshal(ordered{
		From:     def(from),
		To:       def(to),
		Gas:      def(gas),
		GasPrice: def(gasPrice),
		Value:    def(value),
		Data:     def(data),
	})
	return b
}
