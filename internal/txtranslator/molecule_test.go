package txtranslator

import (
	"encoding/binary"
	"testing"

	"github.com/godwoken-web3/gw-gateway/internal/codec/molecule"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

func TestBytesFieldLengthPrefixed(t *testing.T) {
	out := bytesField([]byte{1, 2, 3})
	n := binary.LittleEndian.Uint32(out[0:4])
	if n != 3 {
		t.Fatalf("bytesField length = %d, want 3", n)
	}
	if string(out[4:]) != string([]byte{1, 2, 3}) {
		t.Fatalf("bytesField body = %v, want [1 2 3]", out[4:])
	}
}

func TestEncodeNativeRawTxIsATable(t *testing.T) {
	tx := gwtypes.NativeRawTx{ChainID: 1, FromId: 2, ToId: 3, Nonce: 4, Args: []byte{9, 9}}
	encoded := EncodeNativeRawTx(tx)

	fields, err := molecule.DecodeTableOffsets(encoded)
	if err != nil {
		t.Fatalf("DecodeTableOffsets: %v", err)
	}
	if len(fields) != 5 {
		t.Fatalf("EncodeNativeRawTx field count = %d, want 5", len(fields))
	}
	if binary.LittleEndian.Uint64(fields[0]) != 1 {
		t.Fatalf("chain_id field = %v, want 1", fields[0])
	}
}

func TestNativeHashIsDeterministic(t *testing.T) {
	tx := gwtypes.NativeRawTx{ChainID: 1, FromId: 2, ToId: 3, Nonce: 4, Args: []byte{9, 9}}
	a := NativeHash(tx)
	b := NativeHash(tx)
	if a != b {
		t.Fatal("NativeHash must be a pure function of the tx")
	}

	tx2 := tx
	tx2.Nonce = 5
	if NativeHash(tx2) == a {
		t.Fatal("NativeHash should differ when the tx differs")
	}
}

func TestEncodeNativeTxWrapsRawAndSignature(t *testing.T) {
	tx := gwtypes.NativeTx{
		Raw:       gwtypes.NativeRawTx{ChainID: 1},
		Signature: [65]byte{1, 2, 3},
	}
	encoded := EncodeNativeTx(tx)

	fields, err := molecule.DecodeTableOffsets(encoded)
	if err != nil {
		t.Fatalf("DecodeTableOffsets: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("EncodeNativeTx field count = %d, want 2", len(fields))
	}
}
