// Package blockemitter implements the BlockEmitter (spec.md §4.9): a
// single-writer loop that tails the rollup tip roughly every second and
// publishes newHeads/logs to subscriber processes. It runs in exactly one
// process (spec.md §5) and is supervised: a crashed loop restarts after a
// bounded delay.
package blockemitter

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// PollInterval is the roughly-1s tip poll cadence spec.md §4.9 names.
const PollInterval = 1 * time.Second

// RestartDelay bounds how long the supervisor waits before restarting a
// crashed loop (spec.md §4.9: "≈5 s").
const RestartDelay = 5 * time.Second

// Store is the subset of the Query/ReadStore adapter the emitter needs: it
// reads headers and logs for a half-open range of newly finalised blocks.
type Store interface {
	TipNumber(ctx context.Context) (uint64, bool, error)
	HeadersInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]gwtypes.ApiBlockHeader, error)
	LogsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]gwtypes.ApiLog, error)
}

// Publisher is the event fan-out sink (internal/eventbus.Bus satisfies
// this).
type Publisher interface {
	PublishNewHead(head gwtypes.ApiBlockHeader) error
	PublishLogs(logs []gwtypes.ApiLog) error
}

// Emitter is the BlockEmitter of spec.md §4.9.
type Emitter struct {
	store     Store
	publisher Publisher
	log       log.Logger

	lastKnown uint64
}

// New builds an Emitter.
func New(store Store, publisher Publisher, logger log.Logger) *Emitter {
	if logger == nil {
		logger = log.Root()
	}
	return &Emitter{store: store, publisher: publisher, log: logger}
}

// Run supervises the tail loop until ctx is cancelled, restarting it after
// RestartDelay if it panics (spec.md §4.9).
func (e *Emitter) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		e.runOnceSupervised(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(RestartDelay):
		}
	}
}

func (e *Emitter) runOnceSupervised(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("blockemitter: loop panicked, will restart", "panic", r)
		}
	}()
	e.loop(ctx)
}

func (e *Emitter) loop(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.tick(ctx); err != nil {
				e.log.Warn("blockemitter: tick failed", "err", err)
			}
		}
	}
}

// tick implements one iteration of spec.md §4.9's algorithm: read the tip,
// and if it advanced, emit newHeads for (lastKnown, tip] then logs for
// fromBlock=lastKnown+1, toBlock=tip, then advance lastKnown.
func (e *Emitter) tick(ctx context.Context) error {
	tip, ok, err := e.store.TipNumber(ctx)
	if err != nil {
		return err
	}
	if !ok || tip <= e.lastKnown {
		return nil
	}

	headers, err := e.store.HeadersInRange(ctx, e.lastKnown, tip)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if err := e.publisher.PublishNewHead(h); err != nil {
			e.log.Warn("blockemitter: publish newHead failed", "err", err)
		}
	}

	logs, err := e.store.LogsInRange(ctx, e.lastKnown+1, tip)
	if err != nil {
		return err
	}
	if len(logs) > 0 {
		if err := e.publisher.PublishLogs(logs); err != nil {
			e.log.Warn("blockemitter: publish logs failed", "err", err)
		}
	}

	e.lastKnown = tip
	return nil
}
