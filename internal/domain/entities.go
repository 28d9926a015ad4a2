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

// Package domain holds the entity shapes of spec.md §3, independent of how
// they're persisted (internal/store) or staged in RAM (internal/cache).
// IDs are int64: negative values are tentative local IDs minted by the
// block cache for rows created during the current block and not yet
// flushed; non-negative values are real store-assigned IDs.
package domain

import "github.com/bitapeslabs/dunes-indexer/internal/common"

type Address struct {
	ID      int64
	Address string
}

type Transaction struct {
	ID   int64
	Hash string
}

type Utxo struct {
	ID                 int64
	TransactionID      int64
	VoutIndex          uint32
	AddressID          int64
	ValueSats          uint64
	BlockCreated        int64
	BlockSpent          *int64
	TransactionSpentID *int64
}

type UtxoBalance struct {
	ID      int64
	UtxoID  int64
	DuneID  int64
	Balance common.Uint128
}

type Dune struct {
	ID               int64
	DuneProtocolID   string
	Name             string
	Symbol           rune
	Decimals         uint8
	Premine          common.Uint128
	Mints            common.Uint128
	MintCap          *common.Uint128
	// MintAmount is the fixed-mode per-mint amount. Zero means "flex mode"
	// when Price is set (spec.md §4.5 Step C), or "no terms" when it
	// isn't — both are represented the same way the wire schema does.
	MintAmount       common.Uint128
	MintStart        *uint64
	MintEnd          *uint64
	MintOffsetStart  *uint64
	MintOffsetEnd    *uint64
	PriceAmount      *uint64
	PricePayTo       *string
	Turbo            bool
	Unmintable       bool
	BurntAmount      common.Uint128
	EtchTransactionID int64
	DeployerAddressID int64
	// EtchBlock/EtchTxIndex are the dune's creation point, used by the
	// mint-open predicate's same-tx self-mint exclusion. They're encoded
	// in DuneProtocolID ("block:tx") but kept denormalized here since
	// rules.IsMintOpen is a pure function over a Dune value.
	EtchBlock   uint64
	EtchTxIndex uint32
}

type Balance struct {
	ID        int64
	AddressID int64
	DuneID    int64
	Balance   common.Uint128
}

type Event struct {
	ID            int64
	Type          common.EventType
	Block         int64
	TransactionID int64
	DuneID        int64
	Amount        common.Uint128
	FromAddressID int64
	ToAddressID   int64
}
