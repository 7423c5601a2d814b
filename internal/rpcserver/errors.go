package rpcserver

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/godwoken-web3/gw-gateway/internal/backendrpc"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
)

// revertSelector and panicSelector are the ABI function selectors
// Error(string) and Panic(uint256) prefix their encoded payload with
// (spec.md §7).
var (
	revertSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}
	panicSelector  = [4]byte{0x4e, 0x48, 0x7b, 0x71}
)

// cycleBudgetMarker is the substring the backend's wrapped error envelope
// uses to signal that execution exceeded its cycle budget (spec.md §7:
// "an execution that exceeded the cycle budget surfaces as \"out of gas\"").
const cycleBudgetMarker = "exceeded max cycles"

// decodeBackendError maps a backend RPC failure onto the gateway's error
// taxonomy (spec.md §7): a *backendrpc.Error carrying revert/panic-encoded
// data becomes a TransactionExecution error with the raw data attached; a
// cycle-budget overrun becomes "out of gas"; any other backend error is
// re-emitted as BackendRpcError; anything else (a connection failure) is
// internal, so clients can retry.
func decodeBackendError(err error) error {
	if err == nil {
		return nil
	}
	backendErr, ok := err.(*backendrpc.Error)
	if !ok {
		return rpcerr.Internalf("backend request failed: %v", err)
	}

	if len(backendErr.Data) > 0 {
		var raw hexutil.Bytes
		if unmarshalErr := raw.UnmarshalJSON(backendErr.Data); unmarshalErr == nil {
			if msg, decoded := decodeRevertData(raw); decoded {
				return rpcerr.WithData(rpcerr.TransactionExecution, msg, raw)
			}
		}
	}

	if containsCycleBudgetMarker(backendErr.Message) {
		return rpcerr.New(rpcerr.TransactionExecution, "out of gas")
	}

	return rpcerr.New(rpcerr.BackendRpcError, backendErr.Message)
}

// decodeRevertData implements spec.md §7's return-data decoding: a
// 0x08c379a0 prefix is Error(string), 0x4e487b71 is Panic(uint256);
// anything else is left undecoded (decoded=false) so the caller falls
// through to the generic backend-error path.
func decodeRevertData(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	var selector [4]byte
	copy(selector[:], data[:4])

	switch selector {
	case revertSelector:
		reason, err := decodeABIString(data[4:])
		if err != nil {
			return "execution reverted", true
		}
		return fmt.Sprintf("execution reverted: %s", reason), true
	case panicSelector:
		if len(data) < 4+32 {
			return "execution reverted (panic)", true
		}
		code := binary.BigEndian.Uint64(data[4+24 : 4+32])
		return fmt.Sprintf("execution reverted: %s", panicMessage(code)), true
	default:
		return "", false
	}
}

// decodeABIString decodes a single ABI-encoded `string` argument: a 32-byte
// offset (always 0x20 here), a 32-byte length, then the padded UTF-8 bytes.
func decodeABIString(data []byte) (string, error) {
	if len(data) < 64 {
		return "", fmt.Errorf("truncated revert reason")
	}
	n := new(big.Int).SetBytes(data[32:64]).Uint64()
	if uint64(len(data)) < 64+n {
		return "", fmt.Errorf("truncated revert reason")
	}
	return string(data[64 : 64+n]), nil
}

// panicMessage maps Solidity's standard Panic(uint256) codes to the
// messages solc's own revert strings use.
func panicMessage(code uint64) string {
	switch code {
	case 0x01:
		return "assertion failed"
	case 0x11:
		return "arithmetic operation overflowed outside of an unchecked block"
	case 0x12:
		return "division or modulo by zero"
	case 0x21:
		return "tried to convert a value into an enum, but the value was too big or negative"
	case 0x22:
		return "access to a storage byte array that is incorrectly encoded"
	case 0x31:
		return "pop() was called on an empty array"
	case 0x32:
		return "array index is out of bounds"
	case 0x41:
		return "allocated too much memory or created an array that is too large"
	case 0x51:
		return "called a zero-initialized variable of internal function type"
	default:
		return fmt.Sprintf("panic code 0x%x", code)
	}
}

func containsCycleBudgetMarker(msg string) bool {
	return strings.Contains(msg, cycleBudgetMarker)
}
