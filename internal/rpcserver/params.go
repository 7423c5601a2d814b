// Package rpcserver implements the Dispatcher & Validator and EthMethods
// components (spec.md §4.7, §4.8): the eth_/net_/web3_/poly_/gw_ JSON-RPC
// surface, registered as github.com/ethereum/go-ethereum/rpc namespaces
// the way AlisonCopeland23-mfer-node/mferbackend/rpcapi.go registers its
// own.
package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
	"github.com/godwoken-web3/gw-gateway/internal/rpcerr"
)

// BlockParameter is spec.md §4.7's sum type: "latest" | "earliest" |
// "pending" | HexNumber | {blockHash, requireCanonical?} | {blockNumber}.
// It embeds go-ethereum's rpc.BlockNumberOrHash, which already covers the
// HexNumber/{blockHash,requireCanonical} half; only the tag-resolution
// policy (instant-finality) is specific to this gateway.
type BlockParameter struct {
	inner rpc.BlockNumberOrHash
}

// UnmarshalJSON accepts every shape spec.md §4.7 names.
func (p *BlockParameter) UnmarshalJSON(data []byte) error {
	return p.inner.UnmarshalJSON(data)
}

// Number reports the tag as a raw rpc.BlockNumber when the parameter was a
// string/hex-number, and ok=true.
func (p BlockParameter) Number() (rpc.BlockNumber, bool) {
	return p.inner.Number()
}

// Hash reports the {blockHash,...} shape, when present.
func (p BlockParameter) Hash() (common.Hash, bool) {
	return p.inner.Hash()
}

// RequireCanonical reports whether {blockHash, requireCanonical: true} was
// given.
func (p BlockParameter) RequireCanonical() bool {
	return p.inner.RequireCanonical
}

// Resolution is the outcome of resolving a BlockParameter against the
// current chain state (spec.md §4.7).
type Resolution struct {
	Number         uint64
	IncludeMempool bool // the "pending" sentinel
}

// Resolver resolves tags against live chain state.
type Resolver interface {
	TipNumber(ctx context.Context) (uint64, bool, error)
	BlockNumberByHash(ctx context.Context, hash common.Hash, requireCanonical bool) (uint64, bool, error)
}

// Resolve implements spec.md §4.7's tag-resolution policy:
//   - "earliest" -> 0
//   - "latest"   -> under instant-finality, resolved as "pending" so
//     wallets see mempool state immediately after submission
//   - "pending"  -> IncludeMempool=true, Number=tip
//   - {blockHash} -> looked up; HeaderNotFound if missing
func Resolve(ctx context.Context, resolver Resolver, p BlockParameter, instantFinality bool) (Resolution, error) {
	if hash, ok := p.Hash(); ok {
		number, found, err := resolver.BlockNumberByHash(ctx, hash, p.RequireCanonical())
		if err != nil {
			return Resolution{}, rpcerr.Internalf("resolve block hash: %v", err)
		}
		if !found {
			return Resolution{}, rpcerr.HeaderNotFoundErr()
		}
		return Resolution{Number: number}, nil
	}

	number, _ := p.Number()
	switch number {
	case rpc.EarliestBlockNumber:
		return Resolution{Number: 0}, nil
	case rpc.PendingBlockNumber:
		tip, _, err := resolver.TipNumber(ctx)
		if err != nil {
			return Resolution{}, rpcerr.Internalf("resolve tip: %v", err)
		}
		return Resolution{Number: tip, IncludeMempool: true}, nil
	case rpc.LatestBlockNumber:
		tip, _, err := resolver.TipNumber(ctx)
		if err != nil {
			return Resolution{}, rpcerr.Internalf("resolve tip: %v", err)
		}
		if instantFinality {
			return Resolution{Number: tip, IncludeMempool: true}, nil
		}
		return Resolution{Number: tip}, nil
	default:
		if number < 0 {
			return Resolution{}, rpcerr.New(rpcerr.InvalidParams, fmt.Sprintf("invalid block number %d", number))
		}
		return Resolution{Number: uint64(number)}, nil
	}
}

// CallArgs is the JSON shape of eth_call/eth_estimateGas's call object
// (spec.md §3: CallObject).
type CallArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"` // some clients send `input` instead of `data`
}

// ToCallObject validates and converts to the internal CallObject shape.
func (a CallArgs) ToCallObject() gwtypes.CallObject {
	var gas *uint64
	if a.Gas != nil {
		v := uint64(*a.Gas)
		gas = &v
	}
	call := gwtypes.CallObject{From: a.From, To: a.To, Gas: gas}
	if a.GasPrice != nil {
		call.GasPrice = a.GasPrice.ToInt()
	}
	if a.Value != nil {
		call.Value = a.Value.ToInt()
	}
	if a.Input != nil {
		call.Data = *a.Input
	} else if a.Data != nil {
		call.Data = *a.Data
	}
	return call
}

// NewFilterArgs is the JSON shape of eth_newFilter's argument
// (spec.md §4.5).
type NewFilterArgs struct {
	FromBlock *rpc.BlockNumber `json:"fromBlock"`
	ToBlock   *rpc.BlockNumber `json:"toBlock"`
	Address   addressList      `json:"address"`
	Topics    [][]*common.Hash `json:"topics"`
}

// addressList accepts either a single address or an array of addresses,
// matching eth_newFilter's flexible JSON shape.
type addressList []common.Address

func (a *addressList) UnmarshalJSON(data []byte) error {
	var single common.Address
	if err := json.Unmarshal(data, &single); err == nil {
		*a = addressList{single}
		return nil
	}
	var many []common.Address
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}
