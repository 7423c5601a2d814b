// Package rpcerr implements the gateway's JSON-RPC error taxonomy
// (spec.md §7, error codes in §6).
package rpcerr

import "fmt"

// Code is a JSON-RPC 2.0 error code.
type Code int

const (
	ParseError            Code = -32700
	InvalidRequest        Code = -32600
	MethodNotFound        Code = -32601
	InvalidParams         Code = -32602
	Internal              Code = -32603
	HeaderNotFound         Code = -32000
	TransactionExecution  Code = -32000
	MethodNotSupported    Code = -32004
	LimitExceeded         Code = -32005
	BackendRpcError       Code = -32098
	Web3Error             Code = -32099
)

// Error is the gateway's sum-typed RPC error. It implements the two
// interfaces github.com/ethereum/go-ethereum/rpc looks for when rendering
// a JSON-RPC error response: Error() string, ErrorCode() int, and
// (optionally) ErrorData() any.
type Error struct {
	code    Code
	message string
	data    any
}

func (e *Error) Error() string   { return e.message }
func (e *Error) ErrorCode() int  { return int(e.code) }
func (e *Error) ErrorData() any  { return e.data }

// New builds a bare Error with no data payload.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// WithData builds an Error carrying a data payload (e.g. a revert's raw
// return data, per spec.md §7).
func WithData(code Code, message string, data any) *Error {
	return &Error{code: code, message: message, data: data}
}

// InvalidParam formats the context-padded message spec.md §7 requires:
// "invalid argument <i>: <path> -> <detail>".
func InvalidParam(index int, path, detail string) *Error {
	return New(InvalidParams, fmt.Sprintf("invalid argument %d: %s -> %s", index, path, detail))
}

// NotSupported builds the fixed-message MethodNotSupported error used by
// eth_sign, eth_signTransaction, eth_sendTransaction (spec.md §4.8).
func NotSupported(method string) *Error {
	return New(MethodNotSupported, fmt.Sprintf("%s is not supported", method))
}

// HeaderNotFoundErr is returned when a {blockHash} BlockParameter does not
// resolve (spec.md §4.7).
func HeaderNotFoundErr() *Error {
	return New(HeaderNotFound, "header not found")
}

// Internalf wraps an unexpected error as -32603, the way spec.md §7 requires
// handlers to map anything that isn't one of the named kinds.
func Internalf(format string, args ...any) *Error {
	return New(Internal, fmt.Sprintf(format, args...))
}
