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

import "github.com/bitapeslabs/dunes-indexer/internal/common"

// pendingOutput is the Step B staging record for one vout: its eventual
// owner, value, and the dune balances edicts/mint/pointer route to it
// during this transaction. It only becomes a real Utxo at finalization if
// it isn't an OP_RETURN output and ends up with a non-zero balance.
type pendingOutput struct {
	voutIndex  uint32
	addressID  int64
	valueSats  uint64
	isOpReturn bool
	balances   map[int64]common.Uint128
}

func nonOpReturnIndices(pendings []*pendingOutput) []int {
	var out []int
	for i, p := range pendings {
		if !p.isOpReturn {
			out = append(out, i)
		}
	}
	return out
}

// allocateAmount unconditionally moves give units of duneID from U into p
// and the transfers ledger. give must already be <= U[duneID].
func allocateAmount(U map[int64]common.Uint128, transfers map[int64]map[int64]common.Uint128, p *pendingOutput, duneID int64, give common.Uint128) {
	if give.IsZero() {
		return
	}
	U[duneID] = U[duneID].MustSub(give)
	if p.balances == nil {
		p.balances = make(map[int64]common.Uint128)
	}
	p.balances[duneID] = p.balances[duneID].MustAdd(give)
	if transfers[p.addressID] == nil {
		transfers[p.addressID] = make(map[int64]common.Uint128)
	}
	transfers[p.addressID][duneID] = transfers[p.addressID][duneID].MustAdd(give)
}

// allocate is the Step E allocation primitive: amt==0 means "give
// everything left", otherwise give is capped at what's actually left in U.
func allocate(U map[int64]common.Uint128, transfers map[int64]map[int64]common.Uint128, p *pendingOutput, duneID int64, amt common.Uint128) {
	have := U[duneID]
	give := amt
	if amt.IsZero() || have.LessThan(amt) {
		give = have
	}
	allocateAmount(U, transfers, p, duneID, give)
}
