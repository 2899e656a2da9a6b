package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/lntypes"
)

// Hash is a 32-byte payment hash, canonically a lowercase hex string without
// a 0x prefix.
type Hash = lntypes.Hash

// Preimage is the 32-byte secret whose SHA-256 equals a locked Hash.
type Preimage = lntypes.Preimage

// CanonicalHash strips an optional "0x"/"0X" prefix and lowercases, then
// validates the result is exactly 64 hex characters decoding to 32 bytes.
// This is the canonicalization spec step used before any lock/escrow lookup.
func CanonicalHash(s string) (Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	trimmed = strings.ToLower(trimmed)

	if len(trimmed) != lntypes.HashSize*2 {
		return Hash{}, fmt.Errorf("%w: want %d hex chars, got %d",
			ErrInvalidPaymentHash, lntypes.HashSize*2, len(trimmed))
	}

	if _, err := hex.DecodeString(trimmed); err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidPaymentHash, err)
	}

	return lntypes.MakeHashFromStr(trimmed)
}

// HashNoPrefix returns the canonical lowercase hex encoding without "0x".
func HashNoPrefix(h Hash) string {
	return h.String()
}

// HashWithPrefix returns the canonical "0x"-prefixed lowercase hex encoding.
func HashWithPrefix(h Hash) string {
	return "0x" + h.String()
}
