package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// ErrChainIDMismatch is returned when an EIP-155-signed transaction carries
// a chain id other than the configured one (spec.md §4.3 step 1).
var ErrChainIDMismatch = errors.New("chain id mismatch")

// ErrInvalidSignature is returned when sender recovery fails
// (spec.md §4.3 step 2).
var ErrInvalidSignature = errors.New("invalid signature")

// DecodeEthRawTx RLP-decodes the input to eth_sendRawTransaction into a
// go-ethereum legacy transaction and recovers its sender, enforcing the
// EIP-155 chain id check from spec.md §4.3 steps 1-2.
//
// The wire shape spec.md §3 names for EthRawTransaction -
// {nonce, gasPrice, gasLimit, to, value, data, v, r, s} - is exactly the
// legacy Ethereum transaction RLP tuple, so decoding reuses
// core/types.Transaction rather than hand-rolling a 9-field RLP decode.
func DecodeEthRawTx(raw []byte, chainID uint64) (*types.Transaction, *gwtypes.PolyjuiceTx, error) {
	tx := new(types.Transaction)
	if err := rlp.DecodeBytes(raw, tx); err != nil {
		return nil, nil, fmt.Errorf("decode rlp: %w", err)
	}

	v, _, _ := tx.RawSignatureValues()
	// v >= 35 means the transaction embeds an EIP-155 chain id (spec.md §3).
	if v != nil && v.Uint64() >= 35 {
		if tx.ChainId() == nil || tx.ChainId().Uint64() != chainID {
			return nil, nil, ErrChainIDMismatch
		}
	}

	signer := types.NewEIP155Signer(new(big.Int).SetUint64(chainID))
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	rv, rr, rs := tx.RawSignatureValues()
	ptx := &gwtypes.PolyjuiceTx{
		Nonce:    tx.Nonce(),
		GasPrice: tx.GasPrice(),
		GasLimit: tx.Gas(),
		To:       tx.To(),
		Value:    tx.Value(),
		Data:     tx.Data(),
		ChainID:  tx.ChainId(),
		V:        rv,
		R:        rr,
		S:        rs,
		From:     from,
	}
	return tx, ptx, nil
}

// EthHash computes ethHash = keccak(rlp(signedEthTx)) (spec.md §3 invariant).
// go-ethereum's tx.Hash() already is exactly this for legacy transactions.
func EthHash(tx *types.Transaction) common.Hash {
	return tx.Hash()
}

// Keccak256Hash is the only hash used for Ethereum identities (spec.md §4.1).
func Keccak256Hash(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}
