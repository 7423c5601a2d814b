// Package codec implements the gateway's hex canonicalisation, RLP, and
// keccak helpers (spec.md §4.1). Molecular encoding and the backend's hash
// live in the codec/molecule and codec/backendhash subpackages.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hexNumberRe = regexp.MustCompile(`^0x([0-9a-fA-F]+)$`)

// ValidateHexNumber checks the "0x"+hex-digits shape spec.md §4.1 requires
// of a hex-number. It never normalises case; callers lower-case only when
// using the value as a cache key (spec.md §4.1).
func ValidateHexNumber(s string) error {
	if !hexNumberRe.MatchString(s) {
		return fmt.Errorf("invalid hex number: %q", s)
	}
	return nil
}

// ValidateHexString checks that s is "0x" followed by an even number of hex
// digits (spec.md §4.1).
func ValidateHexString(s string) error {
	if err := ValidateHexNumber(s); err != nil {
		return fmt.Errorf("invalid hex string: %q", s)
	}
	if len(s)%2 != 0 {
		return fmt.Errorf("invalid hex string: odd length %q", s)
	}
	return nil
}

// CanonicalKey lower-cases a validated hex string for use as a cache key.
// Idempotent: CanonicalKey(CanonicalKey(s)) == CanonicalKey(s).
func CanonicalKey(s string) string {
	return strings.ToLower(s)
}

// ParseHexUint64 parses a validated hex-number into a uint64.
func ParseHexUint64(s string) (uint64, error) {
	if err := ValidateHexNumber(s); err != nil {
		return 0, err
	}
	return strconv.ParseUint(s[2:], 16, 64)
}
