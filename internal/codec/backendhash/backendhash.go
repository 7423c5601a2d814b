// Package backendhash implements the backend's hash primitive: a
// blake2b-like, 256-bit, domain-separated hash over molecular-encoded
// bytes (spec.md §4.1). It is a pure function of the encoded bytes.
package backendhash

import (
	"golang.org/x/crypto/blake2b"

	"github.com/ethereum/go-ethereum/common"
)

// personalization is the domain-separation tag mixed into every hash so
// that backend hashes never collide with hashes computed for any other
// purpose over the same bytes.
const personalization = "ckb-default-hash"

// Hash computes the backend's native hash of already molecular-encoded
// bytes (spec.md §3: nativeHash = ckbHash(molecular(NativeRawTx))).
func Hash(encoded []byte) common.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on an oversized key; nil never does.
		panic(err)
	}
	h.Write([]byte(personalization))
	h.Write(encoded)
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}
