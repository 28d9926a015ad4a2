// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Uint128 is an unsigned 128-bit integer, used for every dune balance,
// premine, cap, and mint amount in the system. It is represented as two
// uint64 halves rather than math/big so that zero values are cheap and
// comparisons don't allocate.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// MaxUint128 is 2^128 - 1, the cap term used for the synthetic genesis dune.
var MaxUint128 = Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}

// Uint128FromU64 widens a uint64 into a Uint128.
func Uint128FromU64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// IsZero reports whether the value is zero.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Cmp returns -1, 0, or 1 as u is less than, equal to, or greater than v.
func (u Uint128) Cmp(v Uint128) int {
	if u.Hi != v.Hi {
		if u.Hi < v.Hi {
			return -1
		}
		return 1
	}
	switch {
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

func (u Uint128) LessThan(v Uint128) bool    { return u.Cmp(v) < 0 }
func (u Uint128) GreaterThan(v Uint128) bool { return u.Cmp(v) > 0 }

// Add returns u+v and whether the addition overflowed 128 bits.
func (u Uint128) Add(v Uint128) (Uint128, bool) {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, carry := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}, carry != 0
}

// MustAdd adds and panics on overflow. Balances are validated on decode to
// stay within [0, 2^128) and the engine never lets U exceed input supply, so
// an overflow here means the decoder let something invalid through.
func (u Uint128) MustAdd(v Uint128) Uint128 {
	r, overflow := u.Add(v)
	if overflow {
		panic(fmt.Errorf("uint128 overflow: %s + %s", u, v))
	}
	return r
}

// Sub returns u-v and whether the subtraction underflowed.
func (u Uint128) Sub(v Uint128) (Uint128, bool) {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, borrow := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}, borrow != 0
}

// MustSub subtracts and panics on underflow; see MustAdd.
func (u Uint128) MustSub(v Uint128) Uint128 {
	r, underflow := u.Sub(v)
	if underflow {
		panic(fmt.Errorf("uint128 underflow: %s - %s", u, v))
	}
	return r
}

// Min returns the smaller of u and v.
func (u Uint128) Min(v Uint128) Uint128 {
	if u.Cmp(v) <= 0 {
		return u
	}
	return v
}

// big returns the math/big representation, used only for decimal
// formatting/parsing and division where a 64-bit carry chain isn't worth
// hand-rolling.
func (u Uint128) big() *big.Int {
	z := new(big.Int).SetUint64(u.Hi)
	z.Lsh(z, 64)
	z.Or(z, new(big.Int).SetUint64(u.Lo))
	return z
}

func fromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 {
		return Uint128{}, fmt.Errorf("uint128: negative value %s", b)
	}
	if b.BitLen() > 128 {
		return Uint128{}, fmt.Errorf("uint128: value %s exceeds 2^128-1", b)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(b, mask).Uint64()
	hi := new(big.Int).Rsh(b, 64).Uint64()
	return Uint128{Hi: hi, Lo: lo}, nil
}

// String renders the value as an unsigned base-10 string.
func (u Uint128) String() string {
	return u.big().String()
}

// ParseUint128 parses a decimal string into a Uint128, rejecting negative
// values and anything outside [0, 2^128). This backs every amount-bearing
// field in the dunestone schema (amount, cap, premine).
func ParseUint128(s string) (Uint128, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Uint128{}, fmt.Errorf("uint128: invalid decimal string %q", s)
	}
	return fromBig(b)
}

// DivFloorU64 computes floor(u / d) for a uint64 divisor, used by flex-mode
// mint amount derivation (sats paid / price per unit).
func DivFloorU64(u Uint128, d uint64) (Uint128, error) {
	if d == 0 {
		return Uint128{}, fmt.Errorf("uint128: division by zero")
	}
	q := new(big.Int).Div(u.big(), new(big.Int).SetUint64(d))
	return fromBig(q)
}

// DivModFloorU64 computes floor(u / d) and u mod d for a uint64 divisor,
// used by the edict split rule to divide a balance evenly across outputs
// with the remainder going to the first `r` of them.
func DivModFloorU64(u Uint128, d uint64) (q Uint128, r uint64, err error) {
	if d == 0 {
		return Uint128{}, 0, fmt.Errorf("uint128: division by zero")
	}
	qb, rb := new(big.Int).DivMod(u.big(), new(big.Int).SetUint64(d), new(big.Int))
	q, err = fromBig(qb)
	if err != nil {
		return Uint128{}, 0, err
	}
	return q, rb.Uint64(), nil
}

// Split returns the (low, high) halves, each reinterpreted bit-for-bit as a
// signed int64, used to persist a
// Uint128 across two signed 64-bit store columns, per the documented
// balance_0/balance_1 convention.
func (u Uint128) Split() (lo int64, hi int64) {
	return int64(u.Lo), int64(u.Hi)
}

// FromSplit reconstructs a Uint128 from the sign-extended (low, high) int64
// pair read back from storage.
func FromSplit(lo, hi int64) Uint128 {
	return Uint128{Lo: uint64(lo), Hi: uint64(hi)}
}
