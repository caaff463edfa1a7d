package types

import (
	"fmt"
	"math/bits"
)

// Uint128 is an unsigned 128-bit accumulator. Consensus code uses it
// for quantities that overflow int64 long before they overflow 128
// bits: interest-seconds products, bandwidth averages, and the virtual
// witness schedule.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// U128 builds a Uint128 from a uint64.
func U128(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Mul64 multiplies two uint64 values into a full 128-bit product.
func Mul64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Hi: hi, Lo: lo}
}

// Add returns u + v, wrapping on overflow.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}
}

// Sub returns u - v, wrapping on underflow.
func (u Uint128) Sub(v Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}
}

// MulU64 returns u * v, discarding overflow above 128 bits.
func (u Uint128) MulU64(v uint64) Uint128 {
	hi, lo := bits.Mul64(u.Lo, v)
	hi += u.Hi * v
	return Uint128{Hi: hi, Lo: lo}
}

// DivU64 returns u / v truncated toward zero. Panics if v is zero.
func (u Uint128) DivU64(v uint64) Uint128 {
	hi := u.Hi / v
	rem := u.Hi % v
	lo, _ := bits.Div64(rem, u.Lo, v)
	return Uint128{Hi: hi, Lo: lo}
}

// Shl returns u shifted left by n bits.
func (u Uint128) Shl(n uint) Uint128 {
	switch {
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Hi: u.Lo << (n - 64)}
	case n == 0:
		return u
	}
	return Uint128{Hi: u.Hi<<n | u.Lo>>(64-n), Lo: u.Lo << n}
}

// Or returns the bitwise or of u and v.
func (u Uint128) Or(v Uint128) Uint128 {
	return Uint128{Hi: u.Hi | v.Hi, Lo: u.Lo | v.Lo}
}

// PopCount returns the number of set bits.
func (u Uint128) PopCount() int {
	return bits.OnesCount64(u.Hi) + bits.OnesCount64(u.Lo)
}

// Cmp returns -1, 0 or 1 comparing u against v.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi != v.Hi:
		if u.Hi < v.Hi {
			return -1
		}
		return 1
	case u.Lo != v.Lo:
		if u.Lo < v.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// IsZero reports whether the value is zero.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Uint64 truncates the value to its low 64 bits.
func (u Uint128) Uint64() uint64 {
	return u.Lo
}

// String formats the value as hi:lo hex for logs.
func (u Uint128) String() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}
