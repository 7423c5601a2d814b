package txtranslator

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

type fakeResolver struct {
	accounts map[common.Address]gwtypes.AccountId
}

func (r *fakeResolver) AccountIdOf(ctx context.Context, addr common.Address) (gwtypes.AccountId, bool, error) {
	id, ok := r.accounts[addr]
	return id, ok, nil
}

const testChainID = 71393

func signedRawTx(t *testing.T, to *common.Address, value *big.Int, data []byte) ([]byte, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	var tx *types.Transaction
	if to == nil {
		tx = types.NewContractCreation(0, value, 200000, big.NewInt(1), data)
	} else {
		tx = types.NewTransaction(0, *to, value, 200000, big.NewInt(1), data)
	}
	signer := types.NewEIP155Signer(new(big.Int).SetUint64(testChainID))
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	raw, err := rlp.EncodeToBytes(signed)
	if err != nil {
		t.Fatalf("encode tx: %v", err)
	}
	return raw, from
}

func TestEthRawToNativeKnownSender(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	raw, from := signedRawTx(t, &to, big.NewInt(100), nil)

	resolver := &fakeResolver{accounts: map[common.Address]gwtypes.AccountId{
		from: 5,
		to:   6,
	}}
	tr := New(resolver, testChainID, 1, 1000, nil)

	native, autoCreate, ethHash, err := tr.EthRawToNative(context.Background(), raw)
	if err != nil {
		t.Fatalf("EthRawToNative: %v", err)
	}
	if autoCreate != nil {
		t.Fatalf("autoCreate = %+v, want nil for a known sender", autoCreate)
	}
	if native.Raw.FromId != 5 {
		t.Fatalf("FromId = %d, want 5", native.Raw.FromId)
	}
	if native.Raw.ToId != 6 {
		t.Fatalf("ToId = %d, want 6", native.Raw.ToId)
	}
	if ethHash == (common.Hash{}) {
		t.Fatal("ethHash should not be zero")
	}
}

func TestEthRawToNativeUnknownSenderProducesAutoCreate(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	raw, _ := signedRawTx(t, &to, big.NewInt(100), nil)

	resolver := &fakeResolver{accounts: map[common.Address]gwtypes.AccountId{to: 6}}
	tr := New(resolver, testChainID, 1, 1000, nil)

	native, autoCreate, _, err := tr.EthRawToNative(context.Background(), raw)
	if err != nil {
		t.Fatalf("EthRawToNative: %v", err)
	}
	if autoCreate == nil {
		t.Fatal("autoCreate should be set for an unresolved sender")
	}
	if native.Raw.FromId != gwtypes.UnknownAccountId {
		t.Fatalf("FromId = %d, want UnknownAccountId (0)", native.Raw.FromId)
	}
}

func TestEthRawToNativeContractCreationUsesCreator(t *testing.T) {
	raw, from := signedRawTx(t, nil, big.NewInt(0), []byte{0x60, 0x60})

	resolver := &fakeResolver{accounts: map[common.Address]gwtypes.AccountId{from: 9}}
	tr := New(resolver, testChainID, 77, 1000, nil)

	native, _, _, err := tr.EthRawToNative(context.Background(), raw)
	if err != nil {
		t.Fatalf("EthRawToNative: %v", err)
	}
	if native.Raw.ToId != 77 {
		t.Fatalf("ToId = %d, want creator account 77 for contract creation", native.Raw.ToId)
	}
}

func TestEthRawToNativeChainIDMismatch(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	raw, _ := signedRawTx(t, &to, big.NewInt(0), nil)

	tr := New(&fakeResolver{}, testChainID+1, 1, 0, nil)
	_, _, _, err := tr.EthRawToNative(context.Background(), raw)
	if err == nil {
		t.Fatal("EthRawToNative should reject a mismatched chain id")
	}
}

// TestNativeRawTxForACAMatchesSubmissionTimeRawTx confirms ACA reconciliation
// rebuilds the exact same to_id/nonce/args EthRawToNative computed at
// submission time, now that the sender is known, rather than a degenerate
// zero-valued NativeRawTx (spec.md §4.6).
func TestNativeRawTxForACAMatchesSubmissionTimeRawTx(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	raw, from := signedRawTx(t, &to, big.NewInt(100), []byte{0x01, 0x02})

	resolver := &fakeResolver{accounts: map[common.Address]gwtypes.AccountId{to: 6}}
	tr := New(resolver, testChainID, 1, 1000, nil)

	// At submission time the sender is unresolved: FromId is UnknownAccountId
	// and an AutoCreateEntry is produced.
	submitted, autoCreate, _, err := tr.EthRawToNative(context.Background(), raw)
	if err != nil {
		t.Fatalf("EthRawToNative: %v", err)
	}
	if autoCreate == nil {
		t.Fatal("expected an AutoCreateEntry for an unresolved sender")
	}

	ethTx, err := DecodeRawHex(autoCreate.RawEthTxHex)
	if err != nil {
		t.Fatalf("DecodeRawHex: %v", err)
	}

	// The sender account is now known; ACA reconciliation reruns with the
	// resolved FromId.
	const resolvedFromId gwtypes.AccountId = 42
	resolver.accounts[from] = resolvedFromId

	candidate, err := tr.NativeRawTxForACA(context.Background(), ethTx, resolvedFromId)
	if err != nil {
		t.Fatalf("NativeRawTxForACA: %v", err)
	}
	if candidate.FromId != resolvedFromId {
		t.Fatalf("FromId = %d, want %d", candidate.FromId, resolvedFromId)
	}
	if candidate.ToId != submitted.Raw.ToId {
		t.Fatalf("ToId = %d, want %d (matching submission-time ToId)", candidate.ToId, submitted.Raw.ToId)
	}
	if candidate.Nonce != submitted.Raw.Nonce {
		t.Fatalf("Nonce = %d, want %d", candidate.Nonce, submitted.Raw.Nonce)
	}
	if string(candidate.Args) != string(submitted.Raw.Args) {
		t.Fatalf("Args = %x, want %x (matching submission-time Args)", candidate.Args, submitted.Raw.Args)
	}
}

func TestIntrinsicGas(t *testing.T) {
	base := IntrinsicGas(false, nil)
	if base != txGas {
		t.Fatalf("IntrinsicGas(false, nil) = %d, want %d", base, txGas)
	}
	create := IntrinsicGas(true, nil)
	if create != txGas+txGasContractCreation {
		t.Fatalf("IntrinsicGas(true, nil) = %d, want %d", create, txGas+txGasContractCreation)
	}
	withData := IntrinsicGas(false, []byte{0x00, 0x01})
	want := txGas + txDataZeroGas + txDataNonZeroGas
	if withData != want {
		t.Fatalf("IntrinsicGas with 1 zero + 1 non-zero byte = %d, want %d", withData, want)
	}
}

func TestEthCallToNativeDefaultsMissingFields(t *testing.T) {
	tr := New(&fakeResolver{}, testChainID, 1, 0, nil)

	raw, registry, err := tr.EthCallToNative(context.Background(), gwtypes.CallObject{})
	if err != nil {
		t.Fatalf("EthCallToNative: %v", err)
	}
	if raw.FromId != gwtypes.UnknownAccountId {
		t.Fatalf("FromId = %d, want UnknownAccountId", raw.FromId)
	}
	if raw.ToId != 1 {
		t.Fatalf("ToId = %d, want creator account 1 for an empty call object", raw.ToId)
	}
	if registry.RegistryId != ethRegistryId {
		t.Fatalf("RegistryId = %d, want %d", registry.RegistryId, ethRegistryId)
	}
}

func TestPolyjuiceRawToApiTx(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	raw, from := signedRawTx(t, &to, big.NewInt(42), []byte("x"))
	tx := new(types.Transaction)
	if err := rlp.DecodeBytes(raw, tx); err != nil {
		t.Fatalf("decode: %v", err)
	}

	tr := New(&fakeResolver{}, testChainID, 1, 0, nil)
	ethHash := tx.Hash()
	tipHash := common.HexToHash("0xabc")
	got := tr.PolyjuiceRawToApiTx(tx, ethHash, tipHash, 100, from)

	if got.Hash != ethHash {
		t.Fatalf("Hash = %s, want %s", got.Hash, ethHash)
	}
	if got.From != from {
		t.Fatalf("From = %s, want %s", got.From, from)
	}
	if got.BlockHash == nil || *got.BlockHash != tipHash {
		t.Fatalf("BlockHash = %v, want %s", got.BlockHash, tipHash)
	}
	if got.BlockNumber == nil || got.BlockNumber.Uint64() != 100 {
		t.Fatalf("BlockNumber = %v, want 100", got.BlockNumber)
	}
}

func TestDecodeRawHexAndRecoverSender(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	raw, from := signedRawTx(t, &to, big.NewInt(1), nil)
	rawHex := "0x" + common.Bytes2Hex(raw)

	tx, err := DecodeRawHex(rawHex)
	if err != nil {
		t.Fatalf("DecodeRawHex: %v", err)
	}
	got, err := RecoverSender(tx, testChainID)
	if err != nil {
		t.Fatalf("RecoverSender: %v", err)
	}
	if got != from {
		t.Fatalf("RecoverSender = %s, want %s", got, from)
	}
}
