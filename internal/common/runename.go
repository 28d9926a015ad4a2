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
	"math/big"
	"strings"
)

// reservedNameBase is the starting integer for the coinbase/unnamed
// etching name generator: name(Rune(reservedNameBase + (block<<32 | tx))).
var reservedNameBase = mustDecimal("6402364363415443603228541259936211926")

// mustDecimal parses a base-10 literal, panicking on malformed input. Only
// ever called with the compile-time constant above.
func mustDecimal(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("common: invalid decimal literal " + s)
	}
	return n
}

// ReservedNameBase is 6402364363415443603228541259936211926, the constant
// from spec.md's reserved-name generator.
func ReservedNameBase() *big.Int {
	return new(big.Int).Set(reservedNameBase)
}

// RuneNameInteger converts a dune name (A=0, B=1, ..., Z=25, AA=26, ...) into
// its base-26 integer value. Only A-Z yield meaningful digits; other
// characters are not rejected here (etching names are validated against the
// wider [A-Za-z0-9_.-]{1,31} schema pattern upstream). Inside the indexer its
// only caller is RuneNameCommitmentBytes, which upper-cases the name first.
func RuneNameInteger(name string) *big.Int {
	n := big.NewInt(0)
	base := big.NewInt(26)
	for _, c := range name {
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(c-'A')))
		n.Add(n, big.NewInt(1))
	}
	n.Sub(n, big.NewInt(1))
	return n
}

// RuneIntegerToName is the inverse of RuneNameInteger: it renders an
// arbitrary non-negative integer as a dune name, used by the reserved-name
// generator for coinbase/unnamed etchings.
func RuneIntegerToName(n *big.Int) string {
	v := new(big.Int).Add(n, big.NewInt(1))
	base := big.NewInt(26)
	var sb strings.Builder
	letters := make([]byte, 0, 16)
	for v.Sign() > 0 {
		v.Sub(v, big.NewInt(1))
		mod := new(big.Int)
		v.DivMod(v, base, mod)
		letters = append(letters, byte('A')+byte(mod.Int64()))
	}
	for i := len(letters) - 1; i >= 0; i-- {
		sb.WriteByte(letters[i])
	}
	return sb.String()
}

// ReservedName computes the coinbase/unnamed etching name for a given
// (block, txIndex) pair, per spec.md §4.3:
// name(Rune(6402364363415443603228541259936211926 + (block<<32 | tx))).
func ReservedName(block uint64, txIndex uint32) string {
	offset := new(big.Int).Lsh(big.NewInt(int64(block)), 32)
	offset.Or(offset, big.NewInt(int64(txIndex)))
	n := new(big.Int).Add(reservedNameBase, offset)
	return RuneIntegerToName(n)
}

// MinNameLength implements the minimum-name-length schedule: starting at
// GenesisBlock with InitialAvailable=13, every UnlockInterval blocks the
// minimum allowed name length decreases by one.
func MinNameLength(block uint64) int {
	if block < GenesisBlock {
		return InitialAvailable
	}
	elapsed := (block - GenesisBlock) / UnlockInterval
	min := InitialAvailable - int(elapsed)
	if min < 1 {
		return 1
	}
	return min
}

// RuneNameCommitmentBytes packs a rune name as the 16-byte little-endian
// encoding of its base-26 integer value with trailing zero bytes stripped,
// per spec.md §4.2.
func RuneNameCommitmentBytes(name string) []byte {
	n := RuneNameInteger(strings.ToUpper(name))
	buf := make([]byte, 16)
	bytes := n.Bytes() // big-endian, minimal length
	// Place big-endian bytes into the low end of a 16-byte buffer, then
	// reverse to little-endian.
	if len(bytes) > 16 {
		bytes = bytes[len(bytes)-16:]
	}
	copy(buf[16-len(bytes):], bytes)
	le := make([]byte, 16)
	for i := 0; i < 16; i++ {
		le[i] = buf[15-i]
	}
	// Strip trailing zero bytes.
	end := 16
	for end > 0 && le[end-1] == 0 {
		end--
	}
	return le[:end]
}
