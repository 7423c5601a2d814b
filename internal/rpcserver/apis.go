package rpcserver

import "github.com/ethereum/go-ethereum/rpc"

// GetAPIs registers the gateway's full JSON-RPC surface, following the same
// []rpc.API assembly AlisonCopeland23-mfer-node/mferbackend/rpcapi.go uses
// (spec.md §4.7, §6).
func GetAPIs(b *Backend) []rpc.API {
	return []rpc.API{
		{
			Namespace: "eth",
			Version:   "1.0",
			Service:   NewEthAPI(b),
			Public:    true,
		},
		{
			Namespace: "net",
			Version:   "1.0",
			Service:   NewNetAPI(b),
			Public:    true,
		},
		{
			Namespace: "web3",
			Version:   "1.0",
			Service:   NewWeb3API(b),
			Public:    true,
		},
		{
			Namespace: "poly",
			Version:   "1.0",
			Service:   NewPolyAPI(b),
			Public:    true,
		},
		{
			Namespace: "gw",
			Version:   "1.0",
			Service:   NewGwAPI(b),
			Public:    true,
		},
	}
}
