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

// Package rules holds the pure, side-effect-free protocol rules of
// spec.md §4.3: the mint-open predicate, the price-terms check, and dune
// mode classification. None of it touches the cache or store.
package rules

import (
	"math"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
)

// IsFlexDune reports whether a dune mints in flex mode: no fixed
// per-mint amount, minted amount instead derived from sats paid to
// PricePayTo divided by PriceAmount.
func IsFlexDune(d domain.Dune) bool {
	return d.MintAmount.IsZero() && d.PriceAmount != nil && d.PricePayTo != nil
}

// IsMintOpen implements the mint-open predicate of spec.md §4.3. offset
// accounts for the mint currently being evaluated: the caller passes true
// to ask "would minting now push mints over the cap/window", matching the
// engine's `total_mints = mints + (offset ? 1 : 0)` check before it
// actually increments Mints.
//
// Per the Open Question in spec.md §9, the start/end window is anchored on
// the dune's creation block alone (creationBlock), never on
// creationBlock+creationTxIndex — this matches the TypeScript indexer
// variant spec.md designates as canonical.
func IsMintOpen(block uint64, txIndex uint32, d domain.Dune, offset bool) bool {
	if d.Unmintable {
		return false
	}
	if block == d.EtchBlock && txIndex == d.EtchTxIndex {
		return false
	}

	totalMints := d.Mints
	if offset {
		totalMints = totalMints.MustAdd(common.Uint128FromU64(1))
	}
	if d.MintCap != nil && totalMints.GreaterThan(*d.MintCap) {
		return false
	}

	start := effectiveStart(d)
	end := effectiveEnd(d)
	return block >= start && block <= end
}

func effectiveStart(d domain.Dune) uint64 {
	var fromOffset *uint64
	if d.MintOffsetStart != nil {
		v := d.EtchBlock + *d.MintOffsetStart
		fromOffset = &v
	}
	switch {
	case d.MintStart != nil && fromOffset != nil:
		if *d.MintStart > *fromOffset {
			return *d.MintStart
		}
		return *fromOffset
	case d.MintStart != nil:
		return *d.MintStart
	case fromOffset != nil:
		return *fromOffset
	default:
		return d.EtchBlock
	}
}

func effectiveEnd(d domain.Dune) uint64 {
	var fromOffset *uint64
	if d.MintOffsetEnd != nil {
		v := d.EtchBlock + *d.MintOffsetEnd
		fromOffset = &v
	}
	switch {
	case d.MintEnd != nil && fromOffset != nil:
		if *d.MintEnd < *fromOffset {
			return *d.MintEnd
		}
		return *fromOffset
	case d.MintEnd != nil:
		return *d.MintEnd
	case fromOffset != nil:
		return *fromOffset
	default:
		return math.MaxUint64
	}
}

// IsPriceTermsMet checks the flex-mode payment condition of spec.md §4.3.
// For a fixed-mode dune (no price set) it always returns (zero, true); the
// caller is expected to use the dune's MintAmount directly in that case.
// For a flex-mode dune it sums the transaction's payments to PricePayTo and
// returns floor(sum / PriceAmount) as the minted amount (possibly zero); ok
// is false only when no output pays PricePayTo or the division fails.
func IsPriceTermsMet(d domain.Dune, tx chain.Tx) (mintedAmount common.Uint128, ok bool) {
	if d.PricePayTo == nil || d.PriceAmount == nil {
		return common.Uint128{}, true
	}

	var totalSats uint64
	found := false
	for _, out := range tx.Vout {
		if out.ScriptPubKey.Address == *d.PricePayTo {
			totalSats += out.ValueSats
			found = true
		}
	}
	if !found {
		return common.Uint128{}, false
	}

	amount, err := common.DivFloorU64(common.Uint128FromU64(totalSats), *d.PriceAmount)
	if err != nil {
		return common.Uint128{}, false
	}
	return amount, true
}
