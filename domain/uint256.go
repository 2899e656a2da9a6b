package domain

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// uint128Mod is 2**128, used to split a Uint256 into high/low limbs the way
// the chain's u256 struct (and the wire format in spec §4.1/§6.1) does.
var uint128Mod = new(big.Int).Lsh(big.NewInt(1), 128)

// Uint256 is an unsigned 256-bit integer, backed by math/big. The chain
// represents amounts and hashes as this type's low/high u128 split; this
// type is the in-process analogue used by the escrow ledger and the
// ChainGateway's wire encoding.
type Uint256 struct {
	v *big.Int
}

// ZeroUint256 returns the additive identity.
func ZeroUint256() Uint256 {
	return Uint256{v: new(big.Int)}
}

// NewUint256FromUint64 builds a Uint256 from a plain uint64.
func NewUint256FromUint64(n uint64) Uint256 {
	return Uint256{v: new(big.Int).SetUint64(n)}
}

// NewUint256FromBigInt wraps a big.Int, rejecting negative or oversized
// values.
func NewUint256FromBigInt(n *big.Int) (Uint256, error) {
	if n.Sign() < 0 {
		return Uint256{}, fmt.Errorf("uint256: negative value %s", n.String())
	}
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	if n.Cmp(max) >= 0 {
		return Uint256{}, fmt.Errorf("uint256: value %s overflows 256 bits", n.String())
	}
	return Uint256{v: new(big.Int).Set(n)}, nil
}

// Uint256FromLowHigh reconstructs a 256-bit value from its little-endian
// (low: u128, high: u128) split, the encoding the chain RPC uses (spec §6.1).
func Uint256FromLowHigh(low, high *big.Int) (Uint256, error) {
	if low.Sign() < 0 || high.Sign() < 0 {
		return Uint256{}, fmt.Errorf("uint256: negative limb")
	}
	if low.Cmp(uint128Mod) >= 0 || high.Cmp(uint128Mod) >= 0 {
		return Uint256{}, fmt.Errorf("uint256: limb overflows 128 bits")
	}
	v := new(big.Int).Lsh(high, 128)
	v.Add(v, low)
	return Uint256{v: v}, nil
}

// LowHigh splits the value into its little-endian (low, high) u128 halves.
func (u Uint256) LowHigh() (low, high *big.Int) {
	low = new(big.Int).And(u.v, new(big.Int).Sub(uint128Mod, big.NewInt(1)))
	high = new(big.Int).Rsh(u.v, 128)
	return low, high
}

// Uint256FromSHA256Words reconstructs the 256-bit value from the eight
// 32-bit big-endian words a SHA-256 digest produces, per spec §4.1's
// "Numeric semantics": w0..w3 form the high 128 bits, w4..w7 the low 128
// bits, combined in unambiguous big-endian byte order.
func Uint256FromSHA256Words(digest [32]byte) Uint256 {
	return Uint256{v: new(big.Int).SetBytes(digest[:])}
}

// Bytes32 returns the big-endian 32-byte representation.
func (u Uint256) Bytes32() [32]byte {
	var out [32]byte
	b := u.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// Hex returns a "0x"-prefixed big-endian hex encoding.
func (u Uint256) Hex() string {
	return "0x" + hex.EncodeToString(u.v.Bytes())
}

// BigInt returns the underlying big.Int (read-only use expected; callers
// must not mutate the returned pointer).
func (u Uint256) BigInt() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return u.v
}

// IsZero reports whether the value is zero.
func (u Uint256) IsZero() bool {
	return u.v == nil || u.v.Sign() == 0
}

// Cmp compares u to other: -1, 0, or 1.
func (u Uint256) Cmp(other Uint256) int {
	return u.BigInt().Cmp(other.BigInt())
}

// Add returns u + other.
func (u Uint256) Add(other Uint256) Uint256 {
	return Uint256{v: new(big.Int).Add(u.BigInt(), other.BigInt())}
}

// Sub returns u - other. Panics if the result would be negative — callers
// are expected to have already checked sufficiency (the escrow ledger never
// subtracts more than it holds, by construction).
func (u Uint256) Sub(other Uint256) Uint256 {
	r := new(big.Int).Sub(u.BigInt(), other.BigInt())
	if r.Sign() < 0 {
		panic("uint256: subtraction underflow")
	}
	return Uint256{v: r}
}

// MulPow10 returns u * 10^exp (exp may be negative, in which case it divides,
// truncating).
func (u Uint256) MulPow10(exp int) Uint256 {
	if exp == 0 {
		return u
	}
	if exp > 0 {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
		return Uint256{v: new(big.Int).Mul(u.BigInt(), factor)}
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil)
	return Uint256{v: new(big.Int).Quo(u.BigInt(), divisor)}
}

// String renders the value in decimal.
func (u Uint256) String() string {
	return u.BigInt().String()
}

// MarshalJSON encodes as a decimal string (never a bare JSON number — 256
// bits overflows float64/JS number precision).
func (u Uint256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string.
func (u *Uint256) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("uint256: invalid decimal string %q", s)
	}
	parsed, err := NewUint256FromBigInt(v)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
