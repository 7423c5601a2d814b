// Package txtranslator converts signed Ethereum transactions into the
// backend's native transaction format (spec.md §4.3): recovering the
// sender, deriving or auto-creating the sender's backend account, and
// computing both Ethereum and native transaction hashes.
package txtranslator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/godwoken-web3/gw-gateway/internal/codec"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
)

// txGas, txGasContractCreation and the per-byte costs are the Ethereum intrinsic gas
// constants spec.md §4.3 names.
const (
	txGas                 uint64 = 21000
	txGasContractCreation uint64 = 53000
	txDataZeroGas         uint64 = 4
	txDataNonZeroGas      uint64 = 16
)

// Resolver is the subset of internal/resolver.Resolver the translator
// needs.
type Resolver interface {
	AccountIdOf(ctx context.Context, addr common.Address) (gwtypes.AccountId, bool, error)
}

// Translator implements spec.md §4.3.
type Translator struct {
	resolver         Resolver
	chainID          uint64
	creatorId        gwtypes.AccountId
	extraEstimateGas uint64

	entrypoint *common.Address
}

// New builds a Translator. creatorId is the configured creator account id
// used for contract creation and unknown-recipient transfers
// (spec.md §4.3 step 4). extraEstimateGas is the configured constant added
// on top of the system log's gasUsed in eth_estimateGas (spec.md §4.8).
// entrypoint configures the optional gasless-transaction validation path
// (spec.md §6): a nil entrypoint disables it.
func New(resolver Resolver, chainID uint64, creatorId gwtypes.AccountId, extraEstimateGas uint64, entrypoint *common.Address) *Translator {
	return &Translator{
		resolver:         resolver,
		chainID:          chainID,
		creatorId:        creatorId,
		extraEstimateGas: extraEstimateGas,
		entrypoint:       entrypoint,
	}
}

// IntrinsicGas computes the Ethereum intrinsic gas floor: 21000, +53000 for
// contract creation, plus 4/16 gas per zero/non-zero input byte
// (spec.md §4.3).
func IntrinsicGas(isCreate bool, data []byte) uint64 {
	gas := txGas
	if isCreate {
		gas += txGasContractCreation
	}
	for _, b := range data {
		if b == 0 {
			gas += txDataZeroGas
		} else {
			gas += txDataNonZeroGas
		}
	}
	return gas
}

// EthRawToNative implements spec.md §4.3's ethRawToNative: RLP-decodes and
// validates the raw transaction, recovers the sender, resolves from_id/
// to_id, and builds the NativeTx plus an optional AutoCreateEntry.
func (t *Translator) EthRawToNative(ctx context.Context, raw []byte) (gwtypes.NativeTx, *gwtypes.AutoCreateEntry, common.Hash, error) {
	tx, ptx, err := codec.DecodeEthRawTx(raw, t.chainID)
	if err != nil {
		switch {
		case err == codec.ErrChainIDMismatch:
			return gwtypes.NativeTx{}, nil, common.Hash{}, rpcerr.New(rpcerr.InvalidParams, "chain id mismatch")
		default:
			return gwtypes.NativeTx{}, nil, common.Hash{}, rpcerr.New(rpcerr.InvalidParams, "invalid signature")
		}
	}
	ethHash := codec.EthHash(tx)

	if err := t.validateGasless(ptx); err != nil {
		return gwtypes.NativeTx{}, nil, common.Hash{}, err
	}

	fromId, found, err := t.resolver.AccountIdOf(ctx, ptx.From)
	if err != nil {
		return gwtypes.NativeTx{}, nil, common.Hash{}, rpcerr.Internalf("resolve sender account: %v", err)
	}

	var autoCreate *gwtypes.AutoCreateEntry
	if !found {
		fromId = gwtypes.UnknownAccountId
		autoCreate = &gwtypes.AutoCreateEntry{
			EthHash:     ethHash,
			RawEthTxHex: "0x" + common.Bytes2Hex(raw),
			FromAddress: ptx.From,
		}
	}

	rawTx, err := t.buildNativeRawTx(ctx, ptx.To, fromId, uint32(ptx.Nonce), ptx.GasLimit, ptx.GasPrice, ptx.Value, ptx.Data)
	if err != nil {
		return gwtypes.NativeTx{}, nil, common.Hash{}, err
	}

	sig, err := signatureFromRSV(ptx.R, ptx.S, ptx.V)
	if err != nil {
		return gwtypes.NativeTx{}, nil, common.Hash{}, rpcerr.New(rpcerr.InvalidParams, "invalid signature")
	}

	native := gwtypes.NativeTx{Raw: rawTx, Signature: sig}
	return native, autoCreate, ethHash, nil
}

// buildNativeRawTx resolves to_id and packs the args blob shared by
// EthRawToNative and NativeRawTxForACA: the to_id/nonce/args fields of a
// NativeRawTx are a pure function of (to, nonce, gasLimit, gasPrice, value,
// data) plus the already-resolved from_id (spec.md §4.3 step 4, §3).
func (t *Translator) buildNativeRawTx(ctx context.Context, to *common.Address, fromId gwtypes.AccountId, nonce uint32, gasLimit uint64, gasPrice, value *big.Int, data []byte) (gwtypes.NativeRawTx, error) {
	toId, _, err := t.resolveToId(ctx, to)
	if err != nil {
		return gwtypes.NativeRawTx{}, err
	}
	isCreate := to == nil

	args, err := buildArgs(isCreate, to != nil, gasLimit, gasPrice, value, data)
	if err != nil {
		return gwtypes.NativeRawTx{}, rpcerr.New(rpcerr.InvalidParams, err.Error())
	}

	return gwtypes.NativeRawTx{
		ChainID: t.chainID,
		FromId:  fromId,
		ToId:    toId,
		Nonce:   nonce,
		Args:    args,
	}, nil
}

// NativeRawTxForACA re-derives the full NativeRawTx of a transaction whose
// sender was originally unknown, now that ethTx's sender has been resolved
// to fromId (spec.md §4.6): to_id, nonce, and args are reconstructed from
// ethTx exactly as EthRawToNative does at submission time, so the resulting
// hash matches what the backend actually computed for the confirmed
// transaction.
func (t *Translator) NativeRawTxForACA(ctx context.Context, ethTx *types.Transaction, fromId gwtypes.AccountId) (gwtypes.NativeRawTx, error) {
	return t.buildNativeRawTx(ctx, ethTx.To(), fromId, uint32(ethTx.Nonce()), ethTx.Gas(), ethTx.GasPrice(), ethTx.Value(), ethTx.Data())
}

// resolveToId implements spec.md §4.3 step 4: contract creation resolves to
// the creator account; a known recipient resolves to its account; an
// unknown recipient still proceeds (the backend may create an EOA for a
// plain transfer) by pointing to_id at the creator account too.
func (t *Translator) resolveToId(ctx context.Context, to *common.Address) (gwtypes.AccountId, bool, error) {
	if to == nil {
		return t.creatorId, false, nil
	}
	id, found, err := t.resolver.AccountIdOf(ctx, *to)
	if err != nil {
		return 0, false, rpcerr.Internalf("resolve recipient account: %v", err)
	}
	if !found {
		return t.creatorId, true, nil
	}
	return id, false, nil
}

// signatureFromRSV packs r||s||recoveryId (spec.md §3: NativeTx.signature),
// normalising the Ethereum v value (27/28, or EIP-155 35+2*chainId+{0,1})
// down to the raw recovery id 0/1.
func signatureFromRSV(r, s, v *big.Int) ([65]byte, error) {
	var out [65]byte
	if r == nil || s == nil || v == nil {
		return out, errInvalidRSV
	}
	recoveryId, err := normaliseRecoveryId(v)
	if err != nil {
		return out, err
	}
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	out[64] = recoveryId
	return out, nil
}

func normaliseRecoveryId(v *big.Int) (byte, error) {
	vv := new(big.Int).Set(v)
	if vv.Uint64() >= 35 {
		// EIP-155: v = chainId*2 + 35 + recoveryId
		vv = new(big.Int).Sub(vv, big.NewInt(35))
		recoveryId := new(big.Int).Mod(vv, big.NewInt(2))
		return byte(recoveryId.Uint64()), nil
	}
	switch vv.Uint64() {
	case 27:
		return 0, nil
	case 28:
		return 1, nil
	case 0, 1:
		return byte(vv.Uint64()), nil
	default:
		return 0, errInvalidRSV
	}
}

var errInvalidRSV = rpcerr.New(rpcerr.InvalidParams, "invalid signature")

// EthCallToNative implements spec.md §4.3's ethCallToNative: fills missing
// call-object fields with safe defaults and produces a NativeRawTx plus the
// caller's EthRegistryAddress.
func (t *Translator) EthCallToNative(ctx context.Context, call gwtypes.CallObject) (gwtypes.NativeRawTx, gwtypes.EthRegistryAddress, error) {
	var from common.Address
	if call.From != nil {
		from = *call.From
	}

	fromId, found, err := t.resolver.AccountIdOf(ctx, from)
	if err != nil {
		return gwtypes.NativeRawTx{}, gwtypes.EthRegistryAddress{}, rpcerr.Internalf("resolve caller account: %v", err)
	}
	if !found {
		// eth_call/eth_estimateGas never auto-create; from_id simply stays 0
		// ("unknown sender") and execution proceeds read-only.
		fromId = gwtypes.UnknownAccountId
	}

	toId, _, err := t.resolveToId(ctx, call.To)
	if err != nil {
		return gwtypes.NativeRawTx{}, gwtypes.EthRegistryAddress{}, err
	}
	isCreate := call.To == nil

	gasLimit := uint64(50_000_000)
	if call.Gas != nil {
		gasLimit = *call.Gas
	}
	gasPrice := big.NewInt(0)
	if call.GasPrice != nil {
		gasPrice = call.GasPrice
	}
	value := big.NewInt(0)
	if call.Value != nil {
		value = call.Value
	}

	args, err := buildArgs(isCreate, call.To != nil, gasLimit, gasPrice, value, call.Data)
	if err != nil {
		return gwtypes.NativeRawTx{}, gwtypes.EthRegistryAddress{}, rpcerr.New(rpcerr.InvalidParams, err.Error())
	}
	rawTx := gwtypes.NativeRawTx{
		ChainID: t.chainID,
		FromId:  fromId,
		ToId:    toId,
		Nonce:   0,
		Args:    args,
	}
	registryAddr := gwtypes.EthRegistryAddress{RegistryId: ethRegistryId, Address: from}
	return rawTx, registryAddr, nil
}

// ethRegistryId is the backend's registry id for the Ethereum address
// scheme (glossary: Registry address).
const ethRegistryId uint32 = 2

// PolyjuiceRawToApiTx implements spec.md §4.3's polyjuiceRawToApiTx: builds
// the Ethereum-shaped API transaction object for a tx that only lives in
// the mempool or is being reconstructed from an ACA entry, referencing the
// current tip (spec.md §4.8, pending-tx reconciliation).
func (t *Translator) PolyjuiceRawToApiTx(ethTx *types.Transaction, ethHash common.Hash, tipHash common.Hash, tipNumber uint64, from common.Address) gwtypes.ApiTransaction {
	v, r, s := ethTx.RawSignatureValues()
	blockNumber := new(big.Int).SetUint64(tipNumber)
	return gwtypes.ApiTransaction{
		Hash:        ethHash,
		BlockHash:   &tipHash,
		BlockNumber: blockNumber,
		From:        from,
		To:          ethTx.To(),
		Value:       ethTx.Value(),
		GasPrice:    ethTx.GasPrice(),
		Gas:         ethTx.Gas(),
		Input:       ethTx.Data(),
		Nonce:       ethTx.Nonce(),
		V:           v,
		R:           r,
		S:           s,
		ChainID:     ethTx.ChainId(),
	}
}

// DecodeRawHex is a small helper used by callers reconstructing an
// ethTx from the raw hex stored in an AutoCreateEntry (spec.md §4.6).
func DecodeRawHex(rawHex string) (*types.Transaction, error) {
	raw := common.FromHex(rawHex)
	tx := new(types.Transaction)
	if err := rlp.DecodeBytes(raw, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// RecoverSender re-derives the sender of a raw transaction (used by
// SendRawTransaction to record the pending-transaction entry).
func RecoverSender(tx *types.Transaction, chainID uint64) (common.Address, error) {
	signer := types.NewEIP155Signer(new(big.Int).SetUint64(chainID))
	return types.Sender(signer, tx)
}
