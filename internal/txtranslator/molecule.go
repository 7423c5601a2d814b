package txtranslator

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/godwoken-web3/gw-gateway/internal/codec/backendhash"
	"github.com/godwoken-web3/gw-gateway/internal/codec/molecule"
	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// bytesField is molecule's plain "Bytes" (vector<byte>) encoding: a fixed-
// item-size dynamic vector collapses to a 4-byte little-endian length
// followed by the raw bytes, not the offset-table form spec.md §4.1
// reserves for tables and vectors of variable-sized items.
func bytesField(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b)))
	copy(out[4:], b)
	return out
}

// EncodeNativeRawTx produces the byte-identical molecular encoding of a
// NativeRawTx (spec.md §3, §4.1): a table of
// {chain_id: u64, from_id: u32, to_id: u32, nonce: u32, args: Bytes}.
func EncodeNativeRawTx(tx gwtypes.NativeRawTx) []byte {
	return molecule.Table(
		molecule.Uint64LE(tx.ChainID),
		molecule.Uint32LE(tx.FromId),
		molecule.Uint32LE(tx.ToId),
		molecule.Uint32LE(tx.Nonce),
		bytesField(tx.Args),
	)
}

// NativeHash computes nativeHash = backendHash(molecular(NativeRawTx))
// (spec.md §3 invariant).
func NativeHash(tx gwtypes.NativeRawTx) common.Hash {
	return backendhash.Hash(EncodeNativeRawTx(tx))
}

// EncodeNativeTx molecular-encodes the full signed transaction
// {raw: NativeRawTx, signature: 65B} for submission to the backend.
func EncodeNativeTx(tx gwtypes.NativeTx) []byte {
	return molecule.Table(
		bytesField(EncodeNativeRawTx(tx.Raw)),
		bytesField(tx.Signature[:]),
	)
}
