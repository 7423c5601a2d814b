package rpcserver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/godwoken-web3/gw-gateway/internal/datacache"
	"github.com/godwoken-web3/gw-gateway/internal/filters"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
	"github.com/godwoken-web3/gw-gateway/internal/txtranslator"
)

// EthAPI implements the eth_* namespace (spec.md §4.8).
type EthAPI struct {
	b *Backend
}

// NewEthAPI builds the eth_ namespace service.
func NewEthAPI(b *Backend) *EthAPI { return &EthAPI{b: b} }

func (s *EthAPI) resolveFn() Resolver { return blockResolver{s.b} }

// blockResolver adapts Backend to the Resolver interface Resolve needs.
type blockResolver struct{ b *Backend }

func (r blockResolver) TipNumber(ctx context.Context) (uint64, bool, error) {
	return r.b.Store.TipNumber(ctx)
}

func (r blockResolver) BlockNumberByHash(ctx context.Context, hash common.Hash, requireCanonical bool) (uint64, bool, error) {
	block, err := r.b.Store.BlockByHash(ctx, hash, requireCanonical)
	if err != nil {
		return 0, false, err
	}
	if block == nil {
		return 0, false, nil
	}
	return block.Number.Uint64(), true, nil
}

// ChainId returns the configured chain id (spec.md §4.8).
func (s *EthAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).SetUint64(s.b.Config.ChainID))
}

// BlockNumber returns the tip block number, or nil if no blocks exist yet
// (spec.md §4.8).
func (s *EthAPI) BlockNumber(ctx context.Context) (*hexutil.Uint64, error) {
	tip, ok, err := s.b.Store.TipNumber(ctx)
	if err != nil {
		return nil, rpcerr.Internalf("read tip: %v", err)
	}
	if !ok {
		return nil, nil
	}
	v := hexutil.Uint64(tip)
	return &v, nil
}

// GetBalance resolves the tag, calls the backend with the serialised
// registry address and the configured sUDT id, returning a u256
// little-endian value as hex (spec.md §4.8).
func (s *EthAPI) GetBalance(ctx context.Context, address common.Address, blockParam BlockParameter) (*hexutil.Big, error) {
	if _, err := Resolve(ctx, s.resolveFn(), blockParam, s.b.Config.InstantFinality); err != nil {
		return nil, err
	}
	registry := gwtypes.EthRegistryAddress{RegistryId: 2, Address: address}
	balance, err := s.b.BackendRPC.GetBalance(ctx, registry, s.b.Config.SudtAccountId)
	if err != nil {
		return nil, rpcerr.Internalf("get balance: %v", err)
	}
	if balance == nil {
		return (*hexutil.Big)(big.NewInt(0)), nil
	}
	return balance, nil
}

// GetStorageAt normalises key to 32 bytes, resolves the account id, and
// returns 32 zero bytes for an account that does not exist yet
// (spec.md §4.8).
func (s *EthAPI) GetStorageAt(ctx context.Context, address common.Address, key hexutil.Bytes, blockParam BlockParameter) (hexutil.Bytes, error) {
	if _, err := Resolve(ctx, s.resolveFn(), blockParam, s.b.Config.InstantFinality); err != nil {
		return nil, err
	}
	normalised := normaliseStorageKey(key)

	accountID, found, err := s.b.Resolver.AccountIdOf(ctx, address)
	if err != nil {
		return nil, rpcerr.Internalf("resolve account: %v", err)
	}
	if !found {
		return make([]byte, 32), nil
	}

	value, err := s.b.BackendRPC.GetStorageAt(ctx, accountID, normalised)
	if err != nil {
		return nil, rpcerr.Internalf("get storage: %v", err)
	}
	return value[:], nil
}

// normaliseStorageKey left-pads key to 32 bytes, or left-truncates it when
// longer (spec.md §4.8).
func normaliseStorageKey(key []byte) common.Hash {
	var out common.Hash
	if len(key) >= 32 {
		copy(out[:], key[len(key)-32:])
		return out
	}
	copy(out[32-len(key):], key)
	return out
}

// codeHashKey builds the synthetic key (u32 LE accountId || 0xFF ||
// 0x01 || zeros) eth_getCode reads the contract's code hash from
// (spec.md §4.8).
func codeHashKey(accountID gwtypes.AccountId) common.Hash {
	var key common.Hash
	binary.LittleEndian.PutUint32(key[:4], accountID)
	key[4] = 0xFF
	key[5] = 0x01
	return key
}

// GetCode resolves the account id, loads its code hash at the synthetic
// key, then fetches the code blob for that hash. Absent returns "0x"
// (spec.md §4.8).
func (s *EthAPI) GetCode(ctx context.Context, address common.Address, blockParam BlockParameter) (hexutil.Bytes, error) {
	if _, err := Resolve(ctx, s.resolveFn(), blockParam, s.b.Config.InstantFinality); err != nil {
		return nil, err
	}
	accountID, found, err := s.b.Resolver.AccountIdOf(ctx, address)
	if err != nil {
		return nil, rpcerr.Internalf("resolve account: %v", err)
	}
	if !found {
		return hexutil.Bytes{}, nil
	}

	codeHashBytes, err := s.b.BackendRPC.GetData(ctx, codeHashKey(accountID))
	if err != nil {
		return nil, rpcerr.Internalf("get code hash: %v", err)
	}
	if len(codeHashBytes) == 0 {
		return hexutil.Bytes{}, nil
	}
	codeHash := common.BytesToHash(codeHashBytes)

	code, err := s.b.BackendRPC.GetData(ctx, codeHash)
	if err != nil {
		return nil, rpcerr.Internalf("get code: %v", err)
	}
	return code, nil
}

// Call executes a read-only transaction and returns its return data,
// wrapped through DataCache when enabled (spec.md §4.8).
func (s *EthAPI) Call(ctx context.Context, args CallArgs, blockParam BlockParameter) (hexutil.Bytes, error) {
	resolution, err := Resolve(ctx, s.resolveFn(), blockParam, s.b.Config.InstantFinality)
	if err != nil {
		return nil, err
	}
	returnData, _, err := s.executeReadOnly(ctx, args, resolution)
	if err != nil {
		return nil, err
	}
	return returnData, nil
}

// EstimateGas executes a read-only transaction, extracts the polyjuice
// system log from the execution logs, and returns
// max(gasUsed + extraGas, intrinsicGas) (spec.md §4.8).
func (s *EthAPI) EstimateGas(ctx context.Context, args CallArgs, blockParam *BlockParameter) (hexutil.Uint64, error) {
	var p BlockParameter
	if blockParam != nil {
		p = *blockParam
	}
	resolution, err := Resolve(ctx, s.resolveFn(), p, s.b.Config.InstantFinality)
	if err != nil {
		return 0, err
	}
	_, rawLogs, err := s.executeReadOnly(ctx, args, resolution)
	if err != nil {
		return 0, err
	}

	call := args.ToCallObject()
	intrinsicGas := txtranslator.IntrinsicGas(call.To == nil, call.Data)
	gas, err := txtranslator.ExtractGasUsed(rawLogs, s.b.Config.ExtraEstimateGas, intrinsicGas)
	if err != nil {
		return 0, rpcerr.New(rpcerr.TransactionExecution, err.Error())
	}
	return hexutil.Uint64(gas), nil
}

func (s *EthAPI) executeReadOnly(ctx context.Context, args CallArgs, resolution Resolution) (hexutil.Bytes, [][]byte, error) {
	call := args.ToCallObject()
	rawTx, registry, err := s.b.Translator.EthCallToNative(ctx, call)
	if err != nil {
		return nil, nil, err
	}
	encoded := txtranslator.EncodeNativeRawTx(rawTx)
	blockParam := blockParamString(resolution)

	compute := func(ctx context.Context) ([]byte, error) {
		returnData, rawLogs, err := s.b.BackendRPC.ExecuteRawL2Transaction(ctx, encoded, registry, blockParam)
		if err != nil {
			return nil, decodeExecutionError(err)
		}
		return packExecutionResult(returnData, rawLogs), nil
	}

	if s.b.Cache == nil {
		raw, err := compute(ctx)
		if err != nil {
			return nil, nil, err
		}
		return unpackExecutionResult(raw)
	}

	tipHash, err := s.b.Store.TipBlockHash(ctx)
	if err != nil {
		return nil, nil, rpcerr.Internalf("read tip hash: %v", err)
	}
	key := datacache.Key("exec", tipHash, memPoolStateRootPlaceholder(resolution), serialiseCallArgs(args))

	raw, err := s.b.Cache.Get(ctx, key, compute)
	if err != nil {
		return nil, nil, err
	}
	return unpackExecutionResult(raw)
}

func blockParamString(r Resolution) string {
	if r.IncludeMempool {
		return "pending"
	}
	return fmt.Sprintf("0x%x", r.Number)
}

// memPoolStateRootPlaceholder fills the memPoolStateRoot slot of the
// DataCache key with the resolved block number (u64 LE in the first 8
// bytes). The backend's mempool state root is not read, so a cached result
// is not invalidated by mempool changes that leave tipHash and the resolved
// block number unchanged.
func memPoolStateRootPlaceholder(r Resolution) common.Hash {
	var h common.Hash
	binary.LittleEndian.PutUint64(h[:8], r.Number)
	return h
}

func serialiseCallArgs(args CallArgs) []byte {
	from, to, gas, gasPrice, value, data := "", "", "", "", "", ""
	if args.From != nil {
		from = args.From.Hex()
	}
	if args.To != nil {
		to = args.To.Hex()
	}
	if args.Gas != nil {
		gas = args.Gas.String()
	}
	if args.GasPrice != nil {
		gasPrice = args.GasPrice.String()
	}
	if args.Value != nil {
		value = args.Value.String()
	}
	if args.Input != nil {
		data = args.Input.String()
	} else if args.Data != nil {
		data = args.Data.String()
	}
	return datacache.SerialiseCallParams(from, to, gas, gasPrice, value, data)
}

// packExecutionResult/unpackExecutionResult let the DataCache store both
// the return data and the raw logs (needed by EstimateGas) behind one key.
func packExecutionResult(returnData []byte, rawLogs [][]byte) []byte {
	type wire struct {
		ReturnData hexutil.Bytes   `json:"r"`
		Logs       []hexutil.Bytes `json:"l"`
	}
	logs := make([]hexutil.Bytes, len(rawLogs))
	for i, l := range rawLogs {
		logs[i] = l
	}
	b, _ := json.Marshal(wire{ReturnData: returnData, Logs: logs})
	return b
}

func unpackExecutionResult(raw []byte) (hexutil.Bytes, [][]byte, error) {
	type wire struct {
		ReturnData hexutil.Bytes   `json:"r"`
		Logs       []hexutil.Bytes `json:"l"`
	}
	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, nil, rpcerr.Internalf("decode cached execution result: %v", err)
	}
	logs := make([][]byte, len(w.Logs))
	for i, l := range w.Logs {
		logs[i] = l
	}
	return w.ReturnData, logs, nil
}

// SendRawTransaction translates, submits to the backend, caches both hash
// mappings and, if auto-create, the ACA entry, then returns ethHash
// (spec.md §4.8).
func (s *EthAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	native, autoCreate, ethHash, err := s.b.Translator.EthRawToNative(ctx, input)
	if err != nil {
		return common.Hash{}, err
	}
	s.b.logger().Debug("translated transaction", "ethHash", ethHash, "raw", spew.Sdump(native.Raw))

	encoded := txtranslator.EncodeNativeTx(native)
	nativeHash := txtranslator.NativeHash(native.Raw)

	if _, err := s.b.BackendRPC.SubmitL2Transaction(ctx, encoded); err != nil {
		return common.Hash{}, decodeExecutionError(err)
	}

	if autoCreate != nil {
		if err := s.b.TxIndex.RecordAutoCreate(*autoCreate); err != nil {
			s.b.logger().Warn("failed to record aca entry", "err", err)
		}
	} else {
		if err := s.b.TxIndex.RecordSubmission(ethHash, nativeHash); err != nil {
			s.b.logger().Warn("failed to record hash mapping", "err", err)
		}
		if ethTx, decodeErr := txtranslator.DecodeRawHex(hexutil.Encode(input)); decodeErr == nil {
			if from, senderErr := txtranslator.RecoverSender(ethTx, s.b.Config.ChainID); senderErr == nil {
				rawHex := "0x" + common.Bytes2Hex(input)
				if err := s.b.TxIndex.RecordPendingTx(ethHash, rawHex, from); err != nil {
					s.b.logger().Warn("failed to record pending tx", "err", err)
				}
			}
		}
	}
	return ethHash, nil
}

// GetTransactionByHash implements spec.md §4.8's three-step search order:
// relational store, then backend mempool via the Redis hash mapping, then
// ACA reconciliation.
func (s *EthAPI) GetTransactionByHash(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, error) {
	if tx, found, err := s.b.Store.TransactionByEthHash(ctx, ethHash); err != nil {
		return nil, rpcerr.Internalf("query transaction: %v", err)
	} else if found {
		return tx, nil
	}

	if nativeHash, found, err := s.b.TxIndex.EthToNative(ctx, ethHash); err != nil {
		return nil, rpcerr.Internalf("lookup hash mapping: %v", err)
	} else if found {
		return s.synthesiseFromMempool(ctx, ethHash, nativeHash)
	}

	return s.reconcileACA(ctx, ethHash)
}

func (s *EthAPI) synthesiseFromMempool(ctx context.Context, ethHash, nativeHash common.Hash) (*gwtypes.ApiTransaction, error) {
	found, err := s.b.BackendRPC.HasTransaction(ctx, nativeHash)
	if err != nil {
		return nil, rpcerr.Internalf("check backend mempool: %v", err)
	}
	if !found {
		return nil, nil
	}

	entry, found, err := s.b.TxIndex.PendingTx(ethHash)
	if err != nil {
		return nil, rpcerr.Internalf("lookup pending tx entry: %v", err)
	}
	if !found {
		return nil, nil
	}
	ethTx, err := txtranslator.DecodeRawHex(entry.RawEthTxHex)
	if err != nil {
		return nil, rpcerr.Internalf("decode pending raw tx: %v", err)
	}

	tipHash, err := s.b.Store.TipBlockHash(ctx)
	if err != nil {
		return nil, rpcerr.Internalf("read tip hash: %v", err)
	}
	tipNumber, _, err := s.b.Store.TipNumber(ctx)
	if err != nil {
		return nil, rpcerr.Internalf("read tip number: %v", err)
	}
	apiTx := s.b.Translator.PolyjuiceRawToApiTx(ethTx, ethHash, tipHash, tipNumber, entry.FromAddress)
	return &apiTx, nil
}

func (s *EthAPI) reconcileACA(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, error) {
	entry, found, err := s.b.TxIndex.ACAEntry(ethHash)
	if err != nil {
		return nil, rpcerr.Internalf("lookup aca entry: %v", err)
	}
	if !found {
		return nil, nil
	}

	ethTx, err := txtranslator.DecodeRawHex(entry.RawEthTxHex)
	if err != nil {
		return nil, rpcerr.Internalf("decode aca raw tx: %v", err)
	}

	fromId, accountFound, err := s.b.Resolver.AccountIdOf(ctx, entry.FromAddress)
	if err != nil {
		return nil, rpcerr.Internalf("resolve aca sender: %v", err)
	}
	if !accountFound {
		// The backend has not yet created the account; the transaction is
		// still only in flight.
		return nil, nil
	}

	candidateRaw, err := s.b.Translator.NativeRawTxForACA(ctx, ethTx, fromId)
	if err != nil {
		return nil, rpcerr.Internalf("rebuild aca candidate: %v", err)
	}
	candidateHash := txtranslator.NativeHash(candidateRaw)
	resolved, err := s.b.TxIndex.ResolveACA(ctx, ethHash, candidateHash)
	if err != nil {
		return nil, rpcerr.Internalf("resolve aca: %v", err)
	}
	if !resolved {
		return nil, nil
	}

	tipHash, err := s.b.Store.TipBlockHash(ctx)
	if err != nil {
		return nil, rpcerr.Internalf("read tip hash: %v", err)
	}
	tipNumber, _, err := s.b.Store.TipNumber(ctx)
	if err != nil {
		return nil, rpcerr.Internalf("read tip number: %v", err)
	}
	apiTx := s.b.Translator.PolyjuiceRawToApiTx(ethTx, ethHash, tipHash, tipNumber, entry.FromAddress)
	return &apiTx, nil
}

// GetTransactionReceipt looks the receipt up in the relational store only.
// Unlike GetTransactionByHash it has no mempool or ACA path: a transaction
// the store does not hold yet yields null.
func (s *EthAPI) GetTransactionReceipt(ctx context.Context, ethHash common.Hash) (*gwtypes.ApiTransaction, error) {
	if tx, found, err := s.b.Store.TransactionReceipt(ctx, ethHash); err != nil {
		return nil, rpcerr.Internalf("query receipt: %v", err)
	} else if found {
		return tx, nil
	}
	return nil, nil
}

// GetLogs queries logs matching criteria directly against the relational
// store (no filter installed, spec.md §4.5/§4.8).
func (s *EthAPI) GetLogs(ctx context.Context, crit FilterCriteriaArgs) ([]gwtypes.ApiLog, error) {
	logs, _, err := s.b.Store.LogsMatching(ctx, crit.toLogCriteria(), 0)
	if err != nil {
		return nil, rpcerr.Internalf("query logs: %v", err)
	}
	return logs, nil
}

// FilterCriteriaArgs is eth_getLogs/eth_newFilter's shared argument shape.
type FilterCriteriaArgs struct {
	FromBlock *rpc.BlockNumber `json:"fromBlock"`
	ToBlock   *rpc.BlockNumber `json:"toBlock"`
	Address   addressList      `json:"address"`
	Topics    [][]*common.Hash `json:"topics"`
}

func (c FilterCriteriaArgs) toLogCriteria() filters.LogCriteria {
	var from, to *uint64
	if c.FromBlock != nil && *c.FromBlock >= 0 {
		v := uint64(*c.FromBlock)
		from = &v
	}
	if c.ToBlock != nil && *c.ToBlock >= 0 {
		v := uint64(*c.ToBlock)
		to = &v
	}
	topics := make([][]common.Hash, len(c.Topics))
	for i, group := range c.Topics {
		for _, t := range group {
			if t != nil {
				topics[i] = append(topics[i], *t)
			}
		}
	}
	return filters.LogCriteria{FromBlock: from, ToBlock: to, Addresses: c.Address, Topics: topics}
}

// NewFilter installs a LogFilter (spec.md §4.5).
func (s *EthAPI) NewFilter(ctx context.Context, crit FilterCriteriaArgs) (filters.ID, error) {
	_, lastID, err := s.b.Store.LogsMatching(ctx, crit.toLogCriteria(), 0)
	if err != nil {
		return filters.ID{}, rpcerr.Internalf("determine initial log cursor: %v", err)
	}
	return s.b.Filters.InstallLogFilter(crit.toLogCriteria(), lastID), nil
}

// NewBlockFilter installs a BlockFilter cursored at the current tip
// (spec.md §4.5).
func (s *EthAPI) NewBlockFilter(ctx context.Context) (filters.ID, error) {
	tip, _, err := s.b.Store.TipNumber(ctx)
	if err != nil {
		return filters.ID{}, rpcerr.Internalf("read tip: %v", err)
	}
	return s.b.Filters.InstallBlockFilter(tip), nil
}

// NewPendingTransactionFilter installs a PendingTxFilter, which always
// returns empty on getChanges (spec.md §4.5: the system does not expose
// pending-tx streaming).
func (s *EthAPI) NewPendingTransactionFilter(ctx context.Context) filters.ID {
	return s.b.Filters.InstallPendingTxFilter()
}

// UninstallFilter removes a filter (spec.md §4.5).
func (s *EthAPI) UninstallFilter(ctx context.Context, id filters.ID) bool {
	return s.b.Filters.Uninstall(id)
}

// GetFilterChanges dispatches to the right cursor advance by filter kind
// (spec.md §4.5). Results are returned as a raw JSON array since the shape
// differs (hashes vs logs) by filter kind, matching the Ethereum JSON-RPC
// convention go-ethereum itself follows for this method.
func (s *EthAPI) GetFilterChanges(ctx context.Context, id filters.ID) (any, error) {
	kind, ok := s.b.Filters.KindOf(id)
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidParams, "filter not found")
	}
	switch kind {
	case filters.LogFilter:
		logs, err := s.b.Filters.LogChanges(ctx, id)
		if err != nil {
			return nil, rpcerr.Internalf("get filter changes: %v", err)
		}
		return logs, nil
	default:
		hashes, err := s.b.Filters.BlockChanges(ctx, id)
		if err != nil {
			return nil, rpcerr.Internalf("get filter changes: %v", err)
		}
		return hashes, nil
	}
}

// GetFilterLogs re-runs a LogFilter's full query from its stored criteria
// (spec.md §4.5).
func (s *EthAPI) GetFilterLogs(ctx context.Context, id filters.ID) ([]gwtypes.ApiLog, error) {
	crit, ok := s.b.Filters.Criteria(id)
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidParams, "filter not found")
	}
	logs, _, err := s.b.Store.LogsMatching(ctx, crit, 0)
	if err != nil {
		return nil, rpcerr.Internalf("query filter logs: %v", err)
	}
	return logs, nil
}

// Sign, SignTransaction, SendTransaction always fail: this gateway never
// holds private keys (spec.md §4.8).
func (s *EthAPI) Sign(ctx context.Context, addr common.Address, data hexutil.Bytes) (hexutil.Bytes, error) {
	return nil, rpcerr.NotSupported("eth_sign")
}

func (s *EthAPI) SignTransaction(ctx context.Context, args CallArgs) (hexutil.Bytes, error) {
	return nil, rpcerr.NotSupported("eth_signTransaction")
}

func (s *EthAPI) SendTransaction(ctx context.Context, args CallArgs) (common.Hash, error) {
	return common.Hash{}, rpcerr.NotSupported("eth_sendTransaction")
}

// GetBlockByNumber and GetBlockByHash return the API block shape, with
// transactions included only if fullTx is set.
func (s *EthAPI) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (*gwtypes.ApiBlock, error) {
	resolution, err := Resolve(ctx, s.resolveFn(), BlockParameter{inner: rpc.BlockNumberOrHash{BlockNumber: &number}}, s.b.Config.InstantFinality)
	if err != nil {
		return nil, err
	}
	block, err := s.b.Store.BlockByNumber(ctx, resolution.Number, resolution.IncludeMempool)
	if err != nil {
		return nil, rpcerr.Internalf("query block: %v", err)
	}
	return trimBlock(block, fullTx), nil
}

func (s *EthAPI) GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (*gwtypes.ApiBlock, error) {
	block, err := s.b.Store.BlockByHash(ctx, hash, false)
	if err != nil {
		return nil, rpcerr.Internalf("query block: %v", err)
	}
	if block == nil {
		return nil, nil
	}
	return trimBlock(block, fullTx), nil
}

func trimBlock(block *gwtypes.ApiBlock, fullTx bool) *gwtypes.ApiBlock {
	if block == nil || fullTx {
		return block
	}
	trimmed := *block
	trimmed.Transactions = nil
	return &trimmed
}

// decodeExecutionError decodes backend return data per spec.md §7: a
// 0x08c379a0 (Error(string)) prefix becomes "execution reverted: <reason>",
// 0x4e487b71 (Panic(uint256)) becomes a panic-code message, and a
// cycle-budget overrun surfaces as "out of gas". The raw data is forwarded
// in the error's data field.
func decodeExecutionError(err error) error {
	return decodeBackendError(err)
}
