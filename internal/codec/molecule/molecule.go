// Package molecule implements the backend's molecular (offset-table) wire
// format (spec.md §4.1): byte-identical encodings of fixed vectors/structs,
// dynamic vectors/tables, and unions are required or the backend rejects
// the message.
package molecule

import (
	"encoding/binary"
	"fmt"
)

// FixedStruct concatenates field byte slices with no header, the encoding
// used for fixed vectors and fixed structs (spec.md §4.1).
func FixedStruct(fields ...[]byte) []byte {
	out := make([]byte, 0, totalLen(fields))
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

// Table encodes a dynamic vector or table: a 4-byte little-endian
// total_size, then N+1 4-byte little-endian offsets into the payload
// (the last offset equals total_size, the first equals 4*(N+2)), followed
// by the concatenated field bodies (spec.md §4.1).
func Table(fields ...[]byte) []byte {
	n := len(fields)
	headerLen := 4 * (n + 2)
	totalSize := headerLen + totalLen(fields)

	out := make([]byte, totalSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(totalSize))

	offset := uint32(headerLen)
	pos := 4
	for i := 0; i <= n; i++ {
		binary.LittleEndian.PutUint32(out[pos:pos+4], offset)
		pos += 4
		if i < n {
			offset += uint32(len(fields[i]))
		}
	}
	cursor := headerLen
	for _, f := range fields {
		copy(out[cursor:], f)
		cursor += len(f)
	}
	return out
}

// Union encodes a union: a 4-byte little-endian tag followed by the tagged
// variant's own encoding (spec.md §4.1).
func Union(tag uint32, variant []byte) []byte {
	out := make([]byte, 4+len(variant))
	binary.LittleEndian.PutUint32(out[0:4], tag)
	copy(out[4:], variant)
	return out
}

// DecodeTableOffsets splits a Table-encoded buffer back into its field
// slices, validating the monotonic-offsets and total_size invariants
// spec.md §4.1 requires of every implementer.
func DecodeTableOffsets(buf []byte) ([][]byte, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("molecule: table too short: %d bytes", len(buf))
	}
	totalSize := binary.LittleEndian.Uint32(buf[0:4])
	if int(totalSize) != len(buf) {
		return nil, fmt.Errorf("molecule: total_size mismatch: header says %d, got %d bytes", totalSize, len(buf))
	}
	firstOffset := binary.LittleEndian.Uint32(buf[4:8])
	if int(firstOffset) < 8 || int(firstOffset) > len(buf) {
		return nil, fmt.Errorf("molecule: invalid first offset %d", firstOffset)
	}
	n := (int(firstOffset) - 4) / 4 - 1
	if n < 0 {
		return nil, fmt.Errorf("molecule: negative field count")
	}
	offsets := make([]uint32, n+1)
	for i := 0; i <= n; i++ {
		pos := 4 + i*4
		if pos+4 > len(buf) {
			return nil, fmt.Errorf("molecule: offset table truncated")
		}
		offsets[i] = binary.LittleEndian.Uint32(buf[pos : pos+4])
	}
	if offsets[n] != totalSize {
		return nil, fmt.Errorf("molecule: last offset %d != total_size %d", offsets[n], totalSize)
	}
	fields := make([][]byte, n)
	for i := 0; i < n; i++ {
		if offsets[i] > offsets[i+1] || int(offsets[i+1]) > len(buf) {
			return nil, fmt.Errorf("molecule: offsets not monotonic at field %d", i)
		}
		fields[i] = buf[offsets[i]:offsets[i+1]]
	}
	return fields, nil
}

func totalLen(fields [][]byte) int {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	return n
}

// Uint32LE and Uint64LE/Uint128LE below encode the fixed-width integers the
// backend's molecular structs embed (NativeRawTx fields, args header).

func Uint32LE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func Uint64LE(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// Uint128LE encodes v, which must fit in 128 bits, as 16 little-endian
// bytes (used for gas_price and value in the args blob, spec.md §4.3 step 5).
func Uint128LE(v []byte) []byte {
	out := make([]byte, 16)
	// v is big-endian (e.g. from big.Int.Bytes()); reverse into the low
	// bytes of the little-endian output.
	n := len(v)
	if n > 16 {
		n = 16
		v = v[len(v)-16:]
	}
	for i := 0; i < n; i++ {
		out[i] = v[n-1-i]
	}
	return out
}
