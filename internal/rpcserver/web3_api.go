package rpcserver

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/godwoken-web3/gw-gateway/internal/codec"
)

// Web3API implements the web3_ namespace (spec.md §6).
type Web3API struct {
	b *Backend
}

// NewWeb3API builds the web3_ namespace service.
func NewWeb3API(b *Backend) *Web3API { return &Web3API{b: b} }

// ClientVersion reports the gateway's configured version string.
func (s *Web3API) ClientVersion() string {
	return "gw-gateway/" + s.b.Config.Version
}

// Sha3 hashes input with Keccak-256, the convention web3_sha3 follows
// (distinct from the backend's blake2b-based hash).
func (s *Web3API) Sha3(input hexutil.Bytes) hexutil.Bytes {
	return codec.Keccak256Hash(input).Bytes()
}
