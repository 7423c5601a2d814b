package datacache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestKeyIsDeterministicAndSensitiveToParams(t *testing.T) {
	tip := common.HexToHash("0x01")
	root := common.HexToHash("0x02")

	k1 := Key("call", tip, root, []byte("params-a"))
	k2 := Key("call", tip, root, []byte("params-a"))
	if k1 != k2 {
		t.Fatal("Key must be deterministic for identical inputs")
	}

	k3 := Key("call", tip, root, []byte("params-b"))
	if k1 == k3 {
		t.Fatal("Key must differ when params differ")
	}

	k4 := Key("estimateGas", tip, root, []byte("params-a"))
	if k1 == k4 {
		t.Fatal("Key must differ when the prefix differs")
	}
}

func TestSerialiseCallParamsFillsDefaults(t *testing.T) {
	got := SerialiseCallParams("", "0xabc", "", "", "", "")
	want := []byte(`{"from":"0x","to":"0xabc","gas":"0x","gasPrice":"0x","value":"0x","data":"0x"}`)
	if !bytes.Equal(got, want) {
		t.Fatalf("SerialiseCallParams = %s, want %s", got, want)
	}
}

func TestGetWithNilRedisRunsComputeOnce(t *testing.T) {
	c := New(nil, DefaultOptions(), nil)

	const n = 8
	var calls int32
	started := make(chan struct{}, n)
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		<-release
		return []byte("result"), nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "same-key", compute)
			results[i] = v
			errs[i] = err
		}(i)
	}
	<-started  // the winner has claimed the key and is blocked in compute
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("compute should be de-duplicated in-process, called %d times", calls)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Get[%d] error: %v", i, err)
		}
		if !bytes.Equal(results[i], []byte("result")) {
			t.Fatalf("Get[%d] = %s, want result", i, results[i])
		}
	}
}

func TestGetWithNilRedisPropagatesComputeError(t *testing.T) {
	c := New(nil, DefaultOptions(), nil)
	wantErr := errors.New("boom")

	_, err := c.Get(context.Background(), "err-key", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Get error = %v, want %v", err, wantErr)
	}
}

func TestGetDifferentKeysComputeIndependently(t *testing.T) {
	c := New(nil, DefaultOptions(), nil)
	var calls int32
	compute := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("v"), nil
	}

	if _, err := c.Get(context.Background(), "key-a", compute); err != nil {
		t.Fatalf("Get key-a: %v", err)
	}
	if _, err := c.Get(context.Background(), "key-b", compute); err != nil {
		t.Fatalf("Get key-b: %v", err)
	}
	if calls != 2 {
		t.Fatalf("distinct keys should each invoke compute, calls = %d", calls)
	}
}
