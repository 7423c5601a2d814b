package rpcserver

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
)

// GwAPI implements the gw_ namespace: thin, validated pass-through to the
// backend's native RPC for callers that need it directly rather than
// through the Ethereum-shaped surface (spec.md §6).
type GwAPI struct {
	b *Backend
}

// NewGwAPI builds the gw_ namespace service.
func NewGwAPI(b *Backend) *GwAPI { return &GwAPI{b: b} }

// ExecuteRawL2Transaction forwards a native-encoded read-only execution
// request to the backend (spec.md §1 item 3).
func (s *GwAPI) ExecuteRawL2Transaction(ctx context.Context, nativeTxMolecule hexutil.Bytes, registryId uint32, registryAddress common.Address, blockParam string) (hexutil.Bytes, error) {
	if len(nativeTxMolecule) == 0 {
		return nil, rpcerr.InvalidParam(0, "nativeTxMolecule", "must not be empty")
	}
	registry := gwtypes.EthRegistryAddress{RegistryId: registryId, Address: registryAddress}
	returnData, _, err := s.b.BackendRPC.ExecuteRawL2Transaction(ctx, nativeTxMolecule, registry, blockParam)
	if err != nil {
		return nil, decodeBackendError(err)
	}
	return returnData, nil
}

// SubmitL2Transaction forwards a native-encoded signed transaction to the
// backend's mempool (spec.md §1 item 2). Unlike eth_sendRawTransaction,
// this method performs no Ethereum-side hash bookkeeping: callers using
// the native RPC directly manage their own hash tracking.
func (s *GwAPI) SubmitL2Transaction(ctx context.Context, nativeTxMolecule hexutil.Bytes) (common.Hash, error) {
	if len(nativeTxMolecule) == 0 {
		return common.Hash{}, rpcerr.InvalidParam(0, "nativeTxMolecule", "must not be empty")
	}
	hash, err := s.b.BackendRPC.SubmitL2Transaction(ctx, nativeTxMolecule)
	if err != nil {
		return common.Hash{}, decodeBackendError(err)
	}
	return hash, nil
}

// GetAccountIdByScriptHash forwards the account-id lookup (spec.md §4.2).
func (s *GwAPI) GetAccountIdByScriptHash(ctx context.Context, scriptHash common.Hash) (*hexutil.Uint64, error) {
	id, found, err := s.b.BackendRPC.GetAccountIdByScriptHash(ctx, scriptHash)
	if err != nil {
		return nil, rpcerr.Internalf("get account id: %v", err)
	}
	if !found {
		return nil, nil
	}
	v := hexutil.Uint64(id)
	return &v, nil
}

// GetBalance forwards the raw balance query (spec.md §4.8).
func (s *GwAPI) GetBalance(ctx context.Context, registryId uint32, registryAddress common.Address, sudtId uint32) (*hexutil.Big, error) {
	registry := gwtypes.EthRegistryAddress{RegistryId: registryId, Address: registryAddress}
	balance, err := s.b.BackendRPC.GetBalance(ctx, registry, sudtId)
	if err != nil {
		return nil, rpcerr.Internalf("get balance: %v", err)
	}
	return balance, nil
}

// GetStorageAt forwards the raw storage query (spec.md §4.8).
func (s *GwAPI) GetStorageAt(ctx context.Context, accountId uint32, key common.Hash) (common.Hash, error) {
	value, err := s.b.BackendRPC.GetStorageAt(ctx, accountId, key)
	if err != nil {
		return common.Hash{}, rpcerr.Internalf("get storage: %v", err)
	}
	return value, nil
}

// GetTipBlockHash forwards the backend's own notion of tip, distinct from
// the relational store's view the rest of the gateway reads from
// (spec.md §4.4: used to fingerprint DataCache keys).
func (s *GwAPI) GetTipBlockHash(ctx context.Context) (common.Hash, error) {
	hash, err := s.b.BackendRPC.GetTipBlockHash(ctx)
	if err != nil {
		return common.Hash{}, rpcerr.Internalf("get tip block hash: %v", err)
	}
	return hash, nil
}
