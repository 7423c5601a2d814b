// Package gwtypes holds the data model shared across the gateway: the
// Ethereum-facing shapes (spec.md §3) and the backend's native shapes.
package gwtypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AccountId is the backend's 32-bit account identifier. Zero means
// "unknown sender, backend will derive" (auto-create-account).
type AccountId = uint32

// UnknownAccountId is the from_id that marks an unknown sender: the
// transaction is an auto-create-account request and the backend derives
// the sender's account.
const UnknownAccountId AccountId = 0

// BackendScriptHash is the backend's 32-byte identifier for a lock/type
// script; the primary key for an account before it has an AccountId.
type BackendScriptHash = common.Hash

// PolyjuiceTx is the intermediate shape produced after RLP-decoding and
// validating a raw Ethereum transaction but before translation: the
// Ethereum transaction plus its recovered sender (spec.md §3).
type PolyjuiceTx struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *common.Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	V, R, S  *big.Int
	From     common.Address
}

// NativeRawTx is the backend's native, unsigned transaction body
// (spec.md §3).
type NativeRawTx struct {
	ChainID uint64
	FromId  AccountId
	ToId    AccountId
	Nonce   uint32
	Args    []byte
}

// NativeTx pairs a NativeRawTx with its 65-byte r||s||v signature, where v
// is the normalised recovery id (0 or 1), not the Ethereum v value.
type NativeTx struct {
	Raw       NativeRawTx
	Signature [65]byte
}

// AutoCreateEntry is produced when the sender of a translated transaction
// has no backend account yet (spec.md §4.3 step 3, §4.6).
type AutoCreateEntry struct {
	EthHash      common.Hash
	RawEthTxHex  string
	FromAddress  common.Address
}

// EthRegistryAddress is the (registryId, len, bytes) tuple the backend uses
// to identify EOAs across address schemes (spec.md glossary).
type EthRegistryAddress struct {
	RegistryId uint32
	Address    common.Address
}

// PolyjuiceSystemLog is the decoded payload of a service_flag=0x02 log
// (spec.md §4.8).
type PolyjuiceSystemLog struct {
	GasUsed           uint64
	CumulativeGasUsed uint64
	CreatedAddress    common.Address
	StatusCode        uint32
}

// PolyjuiceUserLog is the decoded payload of a service_flag=0x03 log
// (spec.md §4.8).
type PolyjuiceUserLog struct {
	Address common.Address
	Data    []byte
	Topics  []common.Hash
}

// RawBackendLog is the undecoded shape returned by the backend's execution
// result (spec.md §4.8).
type RawBackendLog struct {
	ServiceFlag uint8
	AccountId   AccountId
	Data        []byte
}

// ServiceFlag enumerates the kinds of logs the backend can emit.
type ServiceFlag uint8

const (
	ServiceFlagSudtOperation ServiceFlag = 0x00
	ServiceFlagSudtPayFee    ServiceFlag = 0x01
	ServiceFlagPolyjuiceSys  ServiceFlag = 0x02
	ServiceFlagPolyjuiceUser ServiceFlag = 0x03
)

// CallObject is the decoded `eth_call`/`eth_estimateGas` parameter object.
type CallObject struct {
	From     *common.Address
	To       *common.Address
	Gas      *uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// ApiTransaction is the Ethereum-shaped transaction object returned by
// eth_getTransactionByHash / included in eth_getBlockByNumber(fullTx=true).
type ApiTransaction struct {
	Hash             common.Hash
	BlockHash        *common.Hash
	BlockNumber      *big.Int
	TransactionIndex *uint64
	From             common.Address
	To               *common.Address
	Value            *big.Int
	GasPrice         *big.Int
	Gas              uint64
	Input            []byte
	Nonce            uint64
	V, R, S          *big.Int
	ChainID          *big.Int
}

// ApiLog is the Ethereum-shaped log object.
type ApiLog struct {
	Address          common.Address
	Topics           []common.Hash
	Data             []byte
	BlockNumber      uint64
	TransactionHash  common.Hash
	TransactionIndex uint64
	BlockHash        common.Hash
	LogIndex         uint64
	Removed          bool
	// LogId is the relational store's monotonic row id for the log; it is
	// the LogFilter cursor unit (spec.md §4.5, §9) and is not part of the
	// Ethereum wire shape, so it is not marshalled.
	LogId uint64 `json:"-"`
}

// ApiBlockHeader is the minimal shape BlockEmitter publishes for newHeads
// (spec.md §4.9: "transactions omitted").
type ApiBlockHeader struct {
	Number     *big.Int
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
}

// ApiBlock is the full eth_getBlockByNumber/eth_getBlockByHash shape.
type ApiBlock struct {
	ApiBlockHeader
	Transactions []ApiTransaction
	TxHashes     []common.Hash
}
