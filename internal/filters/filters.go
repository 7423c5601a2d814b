// Package filters implements the FilterManager (spec.md §4.5): install,
// uninstall, and poll block / pending-tx / log filters, each with its own
// cursor. Filter state is process-local (spec.md §5): filter ids created in
// one process cannot be polled from another.
package filters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// Kind enumerates the filter kinds spec.md §3 names.
type Kind int

const (
	BlockFilter Kind = iota
	PendingTxFilter
	LogFilter
)

// LogCriteria is the stored parameter set for a LogFilter (spec.md §3).
type LogCriteria struct {
	FromBlock *uint64
	ToBlock   *uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

// ID is the filter's 16-byte random identifier (spec.md §3). A uuid.UUID
// is exactly 16 bytes, so it doubles as the id type directly.
type ID = uuid.UUID

type filter struct {
	id        ID
	kind      Kind
	criteria  LogCriteria
	cursor    uint64 // highest block number (BlockFilter) or log row id (LogFilter) already returned
	createdAt time.Time
	lastPoll  time.Time
}

// Store is the subset of spec.md §4.6's Query/ReadStore adapter the
// FilterManager polls against.
type Store interface {
	BlockHashesAfter(ctx context.Context, number uint64) ([]common.Hash, uint64, error)
	LogsMatching(ctx context.Context, criteria LogCriteria, afterID uint64) ([]gwtypes.ApiLog, uint64, error)
}

// Manager is the FilterManager of spec.md §4.5.
type Manager struct {
	store       Store
	idleTimeout time.Duration

	mu      sync.Mutex
	filters map[ID]*filter
}

// New builds a Manager. idleTimeout is the idle interval after which a
// filter expires; expiry is lazy, checked on access (spec.md §3).
func New(store Store, idleTimeout time.Duration) *Manager {
	return &Manager{
		store:       store,
		idleTimeout: idleTimeout,
		filters:     make(map[ID]*filter),
	}
}

// InstallBlockFilter installs a BlockFilter with the given initial cursor
// (the tip block number at install time, so only later blocks are
// returned).
func (m *Manager) InstallBlockFilter(initialCursor uint64) ID {
	return m.install(BlockFilter, LogCriteria{}, initialCursor)
}

// InstallPendingTxFilter installs a PendingTxFilter. getChanges on it
// always returns empty: the system does not expose pending-tx streaming
// (spec.md §4.5).
func (m *Manager) InstallPendingTxFilter() ID {
	return m.install(PendingTxFilter, LogCriteria{}, 0)
}

// InstallLogFilter installs a LogFilter with the given criteria and initial
// cursor (the highest existing log row id, so only newer logs match).
func (m *Manager) InstallLogFilter(criteria LogCriteria, initialCursor uint64) ID {
	return m.install(LogFilter, criteria, initialCursor)
}

func (m *Manager) install(kind Kind, criteria LogCriteria, initialCursor uint64) ID {
	id := uuid.New()
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[id] = &filter{
		id:        id,
		kind:      kind,
		criteria:  criteria,
		cursor:    initialCursor,
		createdAt: now,
		lastPoll:  now,
	}
	return id
}

// Uninstall removes a filter. Returns false if it did not exist (including
// if it had already lazily expired).
func (m *Manager) Uninstall(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.filters[id]; !ok {
		return false
	}
	delete(m.filters, id)
	return true
}

// ErrFilterNotFound is returned by GetChanges/GetLogs when the id is
// unknown or has lazily expired.
var ErrFilterNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "filter not found" }

func (m *Manager) lookup(id ID) (*filter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.filters[id]
	if !ok {
		return nil, false
	}
	if time.Since(f.lastPoll) > m.idleTimeout {
		delete(m.filters, id)
		return nil, false
	}
	f.lastPoll = time.Now()
	return f, true
}

// BlockChanges returns the ascending-order block hashes newer than the
// filter's cursor, then advances the cursor to the last one returned
// (spec.md §4.5).
func (m *Manager) BlockChanges(ctx context.Context, id ID) ([]common.Hash, error) {
	f, ok := m.lookup(id)
	if !ok {
		return nil, ErrFilterNotFound
	}
	if f.kind == PendingTxFilter {
		return nil, nil
	}
	if f.kind != BlockFilter {
		return nil, fmt.Errorf("filter %s is not a block filter", id)
	}
	hashes, newCursor, err := m.store.BlockHashesAfter(ctx, f.cursor)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	f.cursor = newCursor
	m.mu.Unlock()
	return hashes, nil
}

// LogChanges returns logs with row id greater than the filter's cursor,
// then advances the cursor to the last log's id (spec.md §4.5, §9: this
// cursor unit is a log row id, distinct from the block-number cursor
// BlockFilter uses).
func (m *Manager) LogChanges(ctx context.Context, id ID) ([]gwtypes.ApiLog, error) {
	f, ok := m.lookup(id)
	if !ok {
		return nil, ErrFilterNotFound
	}
	if f.kind != LogFilter {
		return nil, fmt.Errorf("filter %s is not a log filter", id)
	}
	logs, newCursor, err := m.store.LogsMatching(ctx, f.criteria, f.cursor)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	f.cursor = newCursor
	m.mu.Unlock()
	return logs, nil
}

// KindOf reports a filter's kind, for dispatching eth_getFilterChanges to
// the right cursor advance (spec.md §4.5).
func (m *Manager) KindOf(id ID) (Kind, bool) {
	f, ok := m.lookup(id)
	if !ok {
		return 0, false
	}
	return f.kind, true
}

// Criteria returns the stored criteria of a LogFilter, for eth_getFilterLogs
// (spec.md §4.5), which re-runs the full query rather than just the delta.
func (m *Manager) Criteria(id ID) (LogCriteria, bool) {
	f, ok := m.lookup(id)
	if !ok {
		return LogCriteria{}, false
	}
	return f.criteria, true
}
