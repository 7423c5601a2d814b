package rpcserver

import "fmt"

// NetAPI implements the net_ namespace (spec.md §6).
type NetAPI struct {
	b *Backend
}

// NewNetAPI builds the net_ namespace service.
func NewNetAPI(b *Backend) *NetAPI { return &NetAPI{b: b} }

// Version returns the chain id as a decimal string, the convention
// net_version uses (distinct from eth_chainId's hex encoding).
func (s *NetAPI) Version() string {
	return fmt.Sprintf("%d", s.b.Config.ChainID)
}

// Listening always reports true: the gateway has no peer-to-peer network
// to be listening on, but wallets probe this before anything else.
func (s *NetAPI) Listening() bool {
	return true
}

// PeerCount is always zero: there is no peer-to-peer layer (spec.md §1
// Non-goals).
func (s *NetAPI) PeerCount() string {
	return "0x0"
}
