package rpcserver

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/godwoken-web3/gw-gateway/internal/codec"
)

func TestWeb3APIClientVersion(t *testing.T) {
	b := newTestBackend(newFakeStore(), newFakeBackendRPC(), Config{Version: "1.2.3"})
	api := NewWeb3API(b)
	if got := api.ClientVersion(); got != "gw-gateway/1.2.3" {
		t.Fatalf("ClientVersion() = %q, want %q", got, "gw-gateway/1.2.3")
	}
}

func TestWeb3APISha3MatchesKeccak256(t *testing.T) {
	b := newTestBackend(newFakeStore(), newFakeBackendRPC(), Config{})
	api := NewWeb3API(b)

	input := hexutil.Bytes("hello")
	got := api.Sha3(input)
	want := codec.Keccak256Hash(input).Bytes()
	if string(got) != string(want) {
		t.Fatalf("Sha3(%q) = %x, want %x", input, got, want)
	}
}
