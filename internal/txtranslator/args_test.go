package txtranslator

import (
	"encoding/binary"
	"math/big"
	"testing"
)

func TestBuildArgsHeaderAndFlags(t *testing.T) {
	out, err := buildArgs(true, false, 21000, big.NewInt(1), big.NewInt(2), []byte("hi"))
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}

	if string(out[0:4]) != "POLY" {
		t.Fatalf("args magic = %q, want POLY", out[0:4])
	}
	if out[4] != argsVersion {
		t.Fatalf("args version = %d, want %d", out[4], argsVersion)
	}
	if out[5] != flagIsCreate {
		t.Fatalf("args flags = %#x, want flagIsCreate only (%#x)", out[5], flagIsCreate)
	}

	gasLimit := binary.LittleEndian.Uint64(out[6:14])
	if gasLimit != 21000 {
		t.Fatalf("args gas_limit = %d, want 21000", gasLimit)
	}
}

func TestBuildArgsFlagsHasToOnly(t *testing.T) {
	out, err := buildArgs(false, true, 21000, big.NewInt(0), big.NewInt(0), nil)
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	if out[5] != flagHasTo {
		t.Fatalf("args flags = %#x, want flagHasTo only (%#x)", out[5], flagHasTo)
	}
}

func TestBuildArgsInputSizeAndBytes(t *testing.T) {
	input := []byte{0xaa, 0xbb, 0xcc}
	out, err := buildArgs(false, true, 0, big.NewInt(0), big.NewInt(0), input)
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}

	// header(6) + gasLimit(8) + gasPrice(16) + value(16) = 46 bytes before input_size.
	inputSizeOffset := 4 + 1 + 1 + 8 + 16 + 16
	size := binary.LittleEndian.Uint32(out[inputSizeOffset : inputSizeOffset+4])
	if size != uint32(len(input)) {
		t.Fatalf("args input_size = %d, want %d", size, len(input))
	}
	gotInput := out[inputSizeOffset+4:]
	if string(gotInput) != string(input) {
		t.Fatalf("args input = %v, want %v", gotInput, input)
	}
}

func TestBuildArgsNilAmountsPackAsZero(t *testing.T) {
	out, err := buildArgs(false, true, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	gasPriceAndValue := out[4+1+1+8 : 4+1+1+8+32]
	for _, b := range gasPriceAndValue {
		if b != 0 {
			t.Fatalf("args gas_price/value with nil inputs = %x, want all zero", gasPriceAndValue)
		}
	}
}

func TestBuildArgsRejectsNegativeAmount(t *testing.T) {
	if _, err := buildArgs(false, true, 0, big.NewInt(-1), big.NewInt(0), nil); err == nil {
		t.Fatal("buildArgs should reject a negative gas_price")
	}
}

func TestBuildArgsRejectsUint128Overflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 128) // 2^128, one past the u128 max
	if _, err := buildArgs(false, true, 0, big.NewInt(0), tooBig, nil); err == nil {
		t.Fatal("buildArgs should reject a value exceeding uint128 range")
	}
}
