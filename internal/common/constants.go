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

// Package common holds the primitives shared by every layer of the
// indexer: the 128-bit balance type, reserved address IDs, and the
// protocol constants from the spec.
package common

const (
	GenesisBlock      = 840_000
	UnlockInterval    = 17_500
	InitialAvailable  = 13
	TaprootAnnexByte  = 0x50
	CommitConfirms    = 6
	TaprootScriptType = "witness_v1_taproot"
)

// Reserved address IDs. These rows are seeded once and never change.
const (
	AddressIDCoinbase = 1
	AddressIDOpReturn = 2
	AddressIDUnknown  = 3
)

const (
	AddressCoinbase = "COINBASE/GENESIS"
	AddressOpReturn = "OP_RETURN"
	AddressUnknown  = "UNKNOWN"
)

// Dunestone protocol identifiers accepted in the "p" field of the payload.
var ProtocolTags = map[string]bool{
	"dunes":               true,
	"https://dunes.sh":    true,
}

// EventType enumerates the append-only audit log kinds, in the order they
// must be emitted for a given transaction.
type EventType int

const (
	EventEtch EventType = iota
	EventMint
	EventTransfer
	EventBurn
)

func (e EventType) String() string {
	switch e {
	case EventEtch:
		return "ETCH"
	case EventMint:
		return "MINT"
	case EventTransfer:
		return "TRANSFER"
	case EventBurn:
		return "BURN"
	default:
		return "UNKNOWN"
	}
}
