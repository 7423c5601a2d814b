package txtranslator

import (
	"math/big"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
)

// gaslessCallDataOffset is where a gasless UserOperation-shaped calldata
// packs its two ABI-encoded uint256 gas fields: verificationGasLimit at
// word 0, callGasLimit at word 1 (spec.md §6).
const gaslessCallDataOffset = 0

// validateGasless implements spec.md §6's gasless-transaction validation
// path: when an entrypoint contract is configured and a transaction's `to`
// matches it, the gas price must be zero and the declared gas limit must
// equal verificationGasLimit*3 + callGasLimit, both read from the leading
// two 32-byte words of the call data.
func (t *Translator) validateGasless(ptx *gwtypes.PolyjuiceTx) error {
	if t.entrypoint == nil || ptx.To == nil || *ptx.To != *t.entrypoint {
		return nil
	}

	if ptx.GasPrice == nil || ptx.GasPrice.Sign() != 0 {
		return rpcerr.InvalidParam(0, "gasPrice", "must be zero for a gasless transaction")
	}

	verificationGasLimit, callGasLimit, err := decodeGaslessGasFields(ptx.Data)
	if err != nil {
		return rpcerr.InvalidParam(0, "data", err.Error())
	}

	wantGas := verificationGasLimit*3 + callGasLimit
	if ptx.GasLimit != wantGas {
		return rpcerr.InvalidParam(0, "gasLimit", "must equal verificationGasLimit*3 + callGasLimit")
	}
	return nil
}

func decodeGaslessGasFields(data []byte) (verificationGasLimit, callGasLimit uint64, err error) {
	const wantLen = gaslessCallDataOffset + 64
	if len(data) < wantLen {
		return 0, 0, errGaslessCallDataTooShort
	}
	verificationGasLimit = new(big.Int).SetBytes(data[gaslessCallDataOffset : gaslessCallDataOffset+32]).Uint64()
	callGasLimit = new(big.Int).SetBytes(data[gaslessCallDataOffset+32 : gaslessCallDataOffset+64]).Uint64()
	return verificationGasLimit, callGasLimit, nil
}

var errGaslessCallDataTooShort = rpcerr.New(rpcerr.InvalidParams, "gasless call data too short to carry verificationGasLimit/callGasLimit")
