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

package engine

import (
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/decoder"
)

// genesisProtocolID is the fixed dune id "1:0" reserved for the protocol's
// synthetic coinbase etching at GenesisBlock (spec.md §4.5 Genesis special
// case).
const genesisProtocolID = "1:0"

// synthesizeGenesisEtching builds the protocol-defined etching minted into
// the GenesisBlock coinbase: an unlimited, immediately open mint with no
// premine, giving the indexer a dune to exercise before any real etching
// exists on chain. Name and symbol are protocol-defined constants, not a
// user-chosen value, so they need no commitment check.
func synthesizeGenesisEtching() *decoder.Etching {
	cap := common.MaxUint128
	start := uint64(common.GenesisBlock)
	return &decoder.Etching{
		Divisibility: 0,
		Premine:      common.Uint128{},
		Name:         "DUNESGENESISX",
		HasName:      true,
		Symbol:       'D',
		HasSymbol:    true,
		Turbo:        true,
		Terms: &decoder.Terms{
			Amount:      common.Uint128FromU64(1),
			Cap:         &cap,
			HeightStart: &start,
		},
	}
}
