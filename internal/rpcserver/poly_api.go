package rpcserver

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
)

// PolyAPI implements the poly_ namespace (spec.md §6): gateway- and
// rollup-identity queries that have no Ethereum-standard equivalent.
type PolyAPI struct {
	b *Backend
}

// NewPolyAPI builds the poly_ namespace service.
func NewPolyAPI(b *Backend) *PolyAPI { return &PolyAPI{b: b} }

// VersionInfo is poly_version's structured response (spec.md §6:
// "software/chain identity as a structured object").
type VersionInfo struct {
	Version string `json:"version"`
	ChainID uint64 `json:"chainId"`
}

// Version returns the gateway's software version and configured chain id.
func (s *PolyAPI) Version() VersionInfo {
	return VersionInfo{Version: s.b.Config.Version, ChainID: s.b.Config.ChainID}
}

// GetCreatorId returns the configured creator account id (spec.md §4.3:
// the to_id target for contract creation and unknown recipients).
func (s *PolyAPI) GetCreatorId() gwtypes.AccountId {
	return s.b.Config.CreatorAccountId
}

// GetEthAccountLockHash returns the configured eth-account-lock code hash
// used to derive every address's backend script (spec.md §4.2).
func (s *PolyAPI) GetEthAccountLockHash() common.Hash {
	return s.b.Config.EthAccountLockHash
}

// GetGwTxHashByEthTxHash resolves an Ethereum transaction hash to its
// native hash via the TxHashIndex (spec.md §4.6).
func (s *PolyAPI) GetGwTxHashByEthTxHash(ctx context.Context, ethHash common.Hash) (*common.Hash, error) {
	nativeHash, found, err := s.b.TxIndex.EthToNative(ctx, ethHash)
	if err != nil {
		return nil, rpcerr.Internalf("resolve native hash: %v", err)
	}
	if !found {
		return nil, nil
	}
	return &nativeHash, nil
}

// GetEthTxHashByGwTxHash is the symmetric lookup (spec.md §4.6).
func (s *PolyAPI) GetEthTxHashByGwTxHash(ctx context.Context, nativeHash common.Hash) (*common.Hash, error) {
	ethHash, found, err := s.b.TxIndex.NativeToEth(ctx, nativeHash)
	if err != nil {
		return nil, rpcerr.Internalf("resolve eth hash: %v", err)
	}
	if !found {
		return nil, nil
	}
	return &ethHash, nil
}

// HealthStatus is poly_getHealthStatus's response.
type HealthStatus struct {
	TipBlockNumber uint64 `json:"tipBlockNumber"`
	TipBlockHash   common.Hash `json:"tipBlockHash"`
}

// GetHealthStatus reports the gateway's view of the rollup tip, used as a
// liveness probe by operators (spec.md §6).
func (s *PolyAPI) GetHealthStatus(ctx context.Context) (HealthStatus, error) {
	tip, _, err := s.b.Store.TipNumber(ctx)
	if err != nil {
		return HealthStatus{}, rpcerr.Internalf("read tip: %v", err)
	}
	tipHash, err := s.b.Store.TipBlockHash(ctx)
	if err != nil {
		return HealthStatus{}, rpcerr.Internalf("read tip hash: %v", err)
	}
	return HealthStatus{TipBlockNumber: tip, TipBlockHash: tipHash}, nil
}
