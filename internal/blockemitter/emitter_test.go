package blockemitter

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

type fakeStore struct {
	tip      uint64
	tipFound bool
	tipErr   error
	headers  []gwtypes.ApiBlockHeader
	logs     []gwtypes.ApiLog
	headersErr error
	logsErr    error

	headersCalledFrom, headersCalledTo uint64
	logsCalledFrom, logsCalledTo       uint64
}

func (s *fakeStore) TipNumber(ctx context.Context) (uint64, bool, error) { return s.tip, s.tipFound, s.tipErr }

func (s *fakeStore) HeadersInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]gwtypes.ApiBlockHeader, error) {
	s.headersCalledFrom, s.headersCalledTo = fromExclusive, toInclusive
	return s.headers, s.headersErr
}

func (s *fakeStore) LogsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]gwtypes.ApiLog, error) {
	s.logsCalledFrom, s.logsCalledTo = fromBlock, toBlock
	return s.logs, s.logsErr
}

type fakePublisher struct {
	heads []gwtypes.ApiBlockHeader
	logs  [][]gwtypes.ApiLog

	headErr error
	logsErr error
}

func (p *fakePublisher) PublishNewHead(head gwtypes.ApiBlockHeader) error {
	p.heads = append(p.heads, head)
	return p.headErr
}

func (p *fakePublisher) PublishLogs(logs []gwtypes.ApiLog) error {
	p.logs = append(p.logs, logs)
	return p.logsErr
}

func TestTickNoOpWhenTipUnchanged(t *testing.T) {
	store := &fakeStore{tip: 5, tipFound: true}
	pub := &fakePublisher{}
	e := New(store, pub, nil)
	e.lastKnown = 5

	if err := e.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(pub.heads) != 0 || len(pub.logs) != 0 {
		t.Fatalf("tick with an unchanged tip published heads=%d logs=%d, want none", len(pub.heads), len(pub.logs))
	}
}

func TestTickNoOpWhenNoBlocksYet(t *testing.T) {
	store := &fakeStore{tipFound: false}
	pub := &fakePublisher{}
	e := New(store, pub, nil)

	if err := e.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(pub.heads) != 0 {
		t.Fatalf("tick with no blocks yet should not publish, got %d heads", len(pub.heads))
	}
}

func TestTickPublishesHeadersAndLogsThenAdvancesCursor(t *testing.T) {
	store := &fakeStore{
		tip:      10,
		tipFound: true,
		headers: []gwtypes.ApiBlockHeader{
			{Number: big.NewInt(9), Hash: common.HexToHash("0x09")},
			{Number: big.NewInt(10), Hash: common.HexToHash("0x0a")},
		},
		logs: []gwtypes.ApiLog{{BlockNumber: 9}, {BlockNumber: 10}},
	}
	pub := &fakePublisher{}
	e := New(store, pub, nil)
	e.lastKnown = 8

	if err := e.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if store.headersCalledFrom != 8 || store.headersCalledTo != 10 {
		t.Fatalf("HeadersInRange called with (%d,%d), want (8,10)", store.headersCalledFrom, store.headersCalledTo)
	}
	if store.logsCalledFrom != 9 || store.logsCalledTo != 10 {
		t.Fatalf("LogsInRange called with (%d,%d), want (9,10)", store.logsCalledFrom, store.logsCalledTo)
	}
	if len(pub.heads) != 2 {
		t.Fatalf("published %d heads, want 2", len(pub.heads))
	}
	if len(pub.logs) != 1 || len(pub.logs[0]) != 2 {
		t.Fatalf("published logs = %v, want one batch of 2", pub.logs)
	}
	if e.lastKnown != 10 {
		t.Fatalf("lastKnown = %d, want 10 after tick", e.lastKnown)
	}
}

func TestTickSkipsEmptyLogBatchPublish(t *testing.T) {
	store := &fakeStore{tip: 1, tipFound: true}
	pub := &fakePublisher{}
	e := New(store, pub, nil)

	if err := e.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(pub.logs) != 0 {
		t.Fatalf("tick with no logs should not call PublishLogs, got %d calls", len(pub.logs))
	}
}

func TestTickPropagatesTipNumberError(t *testing.T) {
	store := &fakeStore{tipErr: errors.New("boom")}
	e := New(store, &fakePublisher{}, nil)
	if err := e.tick(context.Background()); err == nil {
		t.Fatal("tick should propagate a TipNumber error")
	}
}

func TestTickDoesNotAdvanceCursorOnHeadersError(t *testing.T) {
	store := &fakeStore{tip: 5, tipFound: true, headersErr: errors.New("boom")}
	e := New(store, &fakePublisher{}, nil)
	e.lastKnown = 1

	if err := e.tick(context.Background()); err == nil {
		t.Fatal("tick should propagate a HeadersInRange error")
	}
	if e.lastKnown != 1 {
		t.Fatalf("lastKnown = %d, want unchanged at 1 after a failed tick", e.lastKnown)
	}
}

// panickingStore panics on TipNumber, so the first tick of loop() panics.
type panickingStore struct{ *fakeStore }

func (panickingStore) TipNumber(ctx context.Context) (uint64, bool, error) { panic("boom") }

func TestRunOnceSupervisedRecoversFromPanic(t *testing.T) {
	e := New(panickingStore{&fakeStore{}}, &fakePublisher{}, nil)

	// The first tick fires after PollInterval and panics; runOnceSupervised
	// recovers and returns well before ctx expires.
	ctx, cancel := context.WithTimeout(context.Background(), 5*PollInterval)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("runOnceSupervised should recover internally, got panic: %v", r)
		}
	}()
	e.runOnceSupervised(ctx)
	if ctx.Err() != nil {
		t.Fatal("runOnceSupervised returned only after ctx expired; the panicking tick never ran")
	}
}
