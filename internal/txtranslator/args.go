package txtranslator

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/godwoken-web3/gw-gateway/internal/codec/molecule"
)

// polyMagic is the fixed-prefix magic of the args blob the EVM backend
// expects: "POLY" (spec.md §3, §4.3 step 5).
var polyMagic = [4]byte{'P', 'O', 'L', 'Y'}

const argsVersion byte = 0

// flag bits packed into the args header's flags byte (spec.md §4.3 step 5).
const (
	flagIsCreate byte = 1 << 0
	flagHasTo    byte = 1 << 1
)

// buildArgs encodes the EVM backend's args blob: magic + version + flags,
// then gas_limit (u64 LE), gas_price (u128 LE), value (u128 LE),
// input_size (u32 LE), input (spec.md §3, §4.3 step 5).
//
// gasPrice and value are bounds-checked against 128 bits before packing,
// rather than silently truncating an oversized value into the fixed-width
// field.
func buildArgs(isCreate, hasTo bool, gasLimit uint64, gasPrice, value *big.Int, input []byte) ([]byte, error) {
	var flags byte
	if isCreate {
		flags |= flagIsCreate
	}
	if hasTo {
		flags |= flagHasTo
	}

	header := make([]byte, 0, 4+1+1)
	header = append(header, polyMagic[:]...)
	header = append(header, argsVersion, flags)

	gasLimitBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(gasLimitBytes, gasLimit)

	gasPriceBytes, err := uint128LEBytes(gasPrice)
	if err != nil {
		return nil, fmt.Errorf("gas_price: %w", err)
	}
	valueBytes, err := uint128LEBytes(value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}

	inputSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(inputSize, uint32(len(input)))

	out := make([]byte, 0, len(header)+len(gasLimitBytes)+len(gasPriceBytes)+len(valueBytes)+len(inputSize)+len(input))
	out = append(out, header...)
	out = append(out, gasLimitBytes...)
	out = append(out, gasPriceBytes...)
	out = append(out, valueBytes...)
	out = append(out, inputSize...)
	out = append(out, input...)
	return out, nil
}

// maxUint128 bounds the u128 fields of the args blob.
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// uint128LEBytes converts v to 16 little-endian bytes, rejecting negative
// values and anything that would overflow 128 bits. uint256.FromBig rejects
// values beyond 256 bits; the maxUint128 comparison enforces the 128-bit
// bound.
func uint128LEBytes(v *big.Int) ([]byte, error) {
	if v == nil {
		return molecule.Uint128LE(nil), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", v)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return nil, fmt.Errorf("%s exceeds uint256 range", v)
	}
	if v.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("%s exceeds uint128 range", v)
	}
	return molecule.Uint128LE(v.Bytes()), nil
}
