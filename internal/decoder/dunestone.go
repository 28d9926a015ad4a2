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

// Package decoder extracts and validates the dunestone protocol message
// embedded in a transaction's OP_RETURN output (C1).
package decoder

import (
	"fmt"

	"github.com/bitapeslabs/dunes-indexer/internal/common"
)

// DuneID identifies a dune by its creation point, "block:tx".
type DuneID struct {
	Block uint64
	Tx    uint32
}

func (d DuneID) String() string {
	return fmt.Sprintf("%d:%d", d.Block, d.Tx)
}

// IsZero reports whether this is the "0:0" self-reference sentinel.
func (d DuneID) IsZero() bool {
	return d.Block == 0 && d.Tx == 0
}

// Price is the flex-mode unit price: mint amount is derived at mint time as
// floor(sats paid to PayTo / Amount).
type Price struct {
	Amount uint64
	PayTo  string
}

// Terms describes a dune's minting schedule.
type Terms struct {
	Amount          common.Uint128
	Cap             *common.Uint128
	HeightStart     *uint64
	HeightEnd       *uint64
	OffsetStart     *uint64
	OffsetEnd       *uint64
	Price           *Price
}

// Etching describes a token-creation request.
type Etching struct {
	Divisibility uint8
	Premine      common.Uint128
	Name         string
	HasName      bool
	Symbol       rune
	HasSymbol    bool
	Terms        *Terms
	Turbo        bool
}

// Edict is a declarative balance-movement instruction.
type Edict struct {
	ID     DuneID
	Amount common.Uint128
	Output uint32
}

// Dunestone is the fully decoded and validated protocol message. A
// cenotaph dunestone may still carry a parsed Etching, when the etching was
// validated before the failing check (the dune is created, unmintable), but its Edicts/Mint are never used to move balances by the
// engine — everything the tx's inputs carried is burned instead.
type Dunestone struct {
	Edicts   []Edict
	Etching  *Etching
	Mint     *DuneID
	Pointer  *uint32
	Cenotaph bool
}
