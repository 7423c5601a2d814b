package rpcserver

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/godwoken-web3/gw-gateway/internal/datacache"
	"github.com/godwoken-web3/gw-gateway/internal/filters"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/resolver"
	"github.com/godwoken-web3/gw-gateway/internal/txhashindex"
	"github.com/godwoken-web3/gw-gateway/internal/txtranslator"
)

// fakeBackendRPC is a hand-written fake for the BackendRPC interface, kept
// in the teacher's test_backend.go idiom rather than a mocking library.
type fakeBackendRPC struct {
	executeReturnData []byte
	executeLogs       [][]byte
	executeErr        error

	submittedTx []byte
	submitHash  common.Hash
	submitErr   error

	accountByScriptHash map[common.Hash]gwtypes.AccountId
	hasTxSet            map[common.Hash]bool
	balance             *hexutil.Big
	storageValue        common.Hash
	data                map[common.Hash][]byte
	tipBlockHash        common.Hash
}

func newFakeBackendRPC() *fakeBackendRPC {
	return &fakeBackendRPC{
		accountByScriptHash: make(map[common.Hash]gwtypes.AccountId),
		hasTxSet:            make(map[common.Hash]bool),
		data:                make(map[common.Hash][]byte),
	}
}

func (f *fakeBackendRPC) ExecuteRawL2Transaction(ctx context.Context, nativeTxMolecule []byte, registry gwtypes.EthRegistryAddress, blockParam string) ([]byte, [][]byte, error) {
	return f.executeReturnData, f.executeLogs, f.executeErr
}

func (f *fakeBackendRPC) SubmitL2Transaction(ctx context.Context, nativeTxMolecule []byte) (common.Hash, error) {
	f.submittedTx = nativeTxMolecule
	return f.submitHash, f.submitErr
}

func (f *fakeBackendRPC) GetAccountIdByScriptHash(ctx context.Context, scriptHash common.Hash) (gwtypes.AccountId, bool, error) {
	id, ok := f.accountByScriptHash[scriptHash]
	return id, ok, nil
}

func (f *fakeBackendRPC) HasTransaction(ctx context.Context, nativeHash common.Hash) (bool, error) {
	return f.hasTxSet[nativeHash], nil
}

func (f *fakeBackendRPC) GetBalance(ctx context.Context, registry gwtypes.EthRegistryAddress, sudtID gwtypes.AccountId) (*hexutil.Big, error) {
	return f.balance, nil
}

func (f *fakeBackendRPC) GetStorageAt(ctx context.Context, accountID gwtypes.AccountId, key common.Hash) (common.Hash, error) {
	return f.storageValue, nil
}

func (f *fakeBackendRPC) GetData(ctx context.Context, key common.Hash) ([]byte, error) {
	return f.data[key], nil
}

func (f *fakeBackendRPC) GetTipBlockHash(ctx context.Context) (common.Hash, error) {
	return f.tipBlockHash, nil
}

// fakeStore is a hand-written fake satisfying both query.Store (what the
// Backend needs) and filters.Store (the FilterManager's narrower subset) -
// their method sets share identical signatures, so one fake serves both.
type fakeStore struct {
	tip      uint64
	tipFound bool
	tipHash  common.Hash

	blocksByNumber   map[uint64]*gwtypes.ApiBlock
	blocksByHash     map[common.Hash]*gwtypes.ApiBlock
	txByEthHash      map[common.Hash]*gwtypes.ApiTransaction
	receiptByEthHash map[common.Hash]*gwtypes.ApiTransaction
	ethToNative      map[common.Hash]common.Hash
	nativeToEth      map[common.Hash]common.Hash
	logs             []gwtypes.ApiLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocksByNumber:   make(map[uint64]*gwtypes.ApiBlock),
		blocksByHash:     make(map[common.Hash]*gwtypes.ApiBlock),
		txByEthHash:      make(map[common.Hash]*gwtypes.ApiTransaction),
		receiptByEthHash: make(map[common.Hash]*gwtypes.ApiTransaction),
		ethToNative:      make(map[common.Hash]common.Hash),
		nativeToEth:      make(map[common.Hash]common.Hash),
	}
}

func (s *fakeStore) TipNumber(ctx context.Context) (uint64, bool, error) { return s.tip, s.tipFound, nil }

func (s *fakeStore) BlockByNumber(ctx context.Context, number uint64, includeMempool bool) (*gwtypes.ApiBlock, error) {
	return s.blocksByNumber[number], nil
}

func (s *fakeStore) BlockByHash(ctx context.Context, hash common.Hash, requireCanonical bool) (*gwtypes.ApiBlock, error) {
	return s.blocksByHash[hash], nil
}

func (s *fakeStore) TransactionByEthHash(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, bool, error) {
	tx, ok := s.txByEthHash[ethHash]
	return tx, ok, nil
}

func (s *fakeStore) TransactionReceipt(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, bool, error) {
	tx, ok := s.receiptByEthHash[ethHash]
	return tx, ok, nil
}

func (s *fakeStore) BlockHashesAfter(ctx context.Context, after uint64) ([]common.Hash, uint64, error) {
	return nil, after, nil
}

func (s *fakeStore) LogsMatching(ctx context.Context, criteria filters.LogCriteria, afterID uint64) ([]gwtypes.ApiLog, uint64, error) {
	var out []gwtypes.ApiLog
	var lastID uint64 = afterID
	for _, l := range s.logs {
		if l.LogId > afterID {
			out = append(out, l)
			if l.LogId > lastID {
				lastID = l.LogId
			}
		}
	}
	return out, lastID, nil
}

func (s *fakeStore) TipBlockHash(ctx context.Context) (common.Hash, error) { return s.tipHash, nil }

func (s *fakeStore) EthToNative(ctx context.Context, ethHash common.Hash) (common.Hash, bool, error) {
	h, ok := s.ethToNative[ethHash]
	return h, ok, nil
}

func (s *fakeStore) NativeToEth(ctx context.Context, nativeHash common.Hash) (common.Hash, bool, error) {
	h, ok := s.nativeToEth[nativeHash]
	return h, ok, nil
}

func (s *fakeStore) HeadersInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]gwtypes.ApiBlockHeader, error) {
	return nil, nil
}

func (s *fakeStore) LogsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]gwtypes.ApiLog, error) {
	return nil, nil
}

var (
	testRollupTypeHash     = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	testEthAccountLockHash = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
)

// newTestBackend wires a Backend out of the fakes above and the real
// Resolver/Translator/TxIndex/Filters components running with a nil Redis
// client, the same nil-redis degradation path exercised directly in their
// own package tests.
func newTestBackend(store *fakeStore, brpc *fakeBackendRPC, cfg Config) *Backend {
	res := resolver.New(brpc, nil, testRollupTypeHash, testEthAccountLockHash, nil)
	tr := txtranslator.New(res, cfg.ChainID, cfg.CreatorAccountId, cfg.ExtraEstimateGas, cfg.EntrypointContract)
	idx := txhashindex.New(store, nil, brpc)
	mgr := filters.New(store, time.Hour)
	return &Backend{
		Config:     cfg,
		Store:      store,
		BackendRPC: brpc,
		Resolver:   res,
		Translator: tr,
		Cache:      nil,
		TxIndex:    idx,
		Filters:    mgr,
	}
}

func accountScriptHash(b *Backend, addr common.Address) common.Hash {
	return b.Resolver.ScriptHashOf(addr)
}

func withCache(b *Backend) *Backend {
	b.Cache = datacache.New(nil, datacache.DefaultOptions(), nil)
	return b
}
