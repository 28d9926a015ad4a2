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

// Package store is the C7 adapter: bulk reads/writes of domain entities
// against a relational store (gorm over sqlite, per the teacher's own
// indirect dependency graph), with one transaction per block.
package store

import (
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
)

// Row types mirror the gorm schema. Optional Uint128 fields split into two
// signed int64 columns (Balance0/balance0 = low, Balance1/balance1 = high) per spec.md
// §4.3/§9; presence of an optional field is tracked by a companion *bool-
// free "Has*" column so a real zero value and "unset" don't collide.

type addressRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Address string `gorm:"uniqueIndex;size:128"`
}

type transactionRow struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Hash string `gorm:"uniqueIndex;size:64"`
}

type utxoRow struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	TransactionID      int64  `gorm:"uniqueIndex:idx_utxo_natural"`
	VoutIndex          uint32 `gorm:"uniqueIndex:idx_utxo_natural"`
	AddressID          int64
	ValueSats          uint64
	BlockCreated       int64
	BlockSpent         *int64
	TransactionSpentID *int64
}

type utxoBalanceRow struct {
	ID       int64 `gorm:"primaryKey;autoIncrement"`
	UtxoID   int64 `gorm:"index"`
	DuneID   int64 `gorm:"index"`
	Balance0 int64
	Balance1 int64
}

type duneRow struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	DuneProtocolID    string `gorm:"uniqueIndex;size:32"`
	Name              string `gorm:"uniqueIndex;size:31"`
	Symbol            int32
	Decimals          uint8
	Premine0          int64
	Premine1          int64
	Mints0            int64
	Mints1            int64
	HasMintCap        bool
	MintCap0          int64
	MintCap1          int64
	MintAmount0       int64
	MintAmount1       int64
	HasMintStart      bool
	MintStart         uint64
	HasMintEnd        bool
	MintEnd           uint64
	HasMintOffsetStart bool
	MintOffsetStart   uint64
	HasMintOffsetEnd  bool
	MintOffsetEnd     uint64
	HasPrice          bool
	PriceAmount       uint64
	PricePayTo        string
	Turbo             bool
	Unmintable        bool
	BurntAmount0      int64
	BurntAmount1      int64
	EtchTransactionID int64
	DeployerAddressID int64
	EtchBlock         uint64
	EtchTxIndex       uint32
}

type balanceRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	AddressID int64 `gorm:"uniqueIndex:idx_balance_natural"`
	DuneID    int64 `gorm:"uniqueIndex:idx_balance_natural"`
	Balance0  int64
	Balance1  int64
}

type eventRow struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	Type          int
	Block         int64 `gorm:"index"`
	TransactionID int64
	DuneID        int64
	Amount0       int64
	Amount1       int64
	FromAddressID int64
	ToAddressID   int64
}

func (addressRow) TableName() string     { return "addresses" }
func (transactionRow) TableName() string { return "transactions" }
func (utxoRow) TableName() string        { return "utxos" }
func (utxoBalanceRow) TableName() string { return "utxo_balances" }
func (duneRow) TableName() string        { return "dunes" }
func (balanceRow) TableName() string     { return "balances" }
func (eventRow) TableName() string       { return "events" }

func addressToDomain(r addressRow) domain.Address {
	return domain.Address{ID: r.ID, Address: r.Address}
}

func addressFromDomain(a domain.Address) addressRow {
	return addressRow{ID: r_id(a.ID), Address: a.Address}
}

func transactionToDomain(r transactionRow) domain.Transaction {
	return domain.Transaction{ID: r.ID, Hash: r.Hash}
}

func transactionFromDomain(t domain.Transaction) transactionRow {
	return transactionRow{ID: r_id(t.ID), Hash: t.Hash}
}

func utxoToDomain(r utxoRow) domain.Utxo {
	return domain.Utxo{
		ID:                 r.ID,
		TransactionID:      r.TransactionID,
		VoutIndex:          r.VoutIndex,
		AddressID:          r.AddressID,
		ValueSats:          r.ValueSats,
		BlockCreated:       r.BlockCreated,
		BlockSpent:         r.BlockSpent,
		TransactionSpentID: r.TransactionSpentID,
	}
}

func utxoFromDomain(u domain.Utxo) utxoRow {
	return utxoRow{
		ID:                 r_id(u.ID),
		TransactionID:      u.TransactionID,
		VoutIndex:          u.VoutIndex,
		AddressID:          u.AddressID,
		ValueSats:          u.ValueSats,
		BlockCreated:       u.BlockCreated,
		BlockSpent:         u.BlockSpent,
		TransactionSpentID: u.TransactionSpentID,
	}
}

func utxoBalanceToDomain(r utxoBalanceRow) domain.UtxoBalance {
	return domain.UtxoBalance{
		ID:      r.ID,
		UtxoID:  r.UtxoID,
		DuneID:  r.DuneID,
		Balance: common.FromSplit(r.Balance0, r.Balance1),
	}
}

func utxoBalanceFromDomain(ub domain.UtxoBalance) utxoBalanceRow {
	lo, hi := ub.Balance.Split()
	return utxoBalanceRow{ID: r_id(ub.ID), UtxoID: ub.UtxoID, DuneID: ub.DuneID, Balance0: lo, Balance1: hi}
}

func duneToDomain(r duneRow) domain.Dune {
	d := domain.Dune{
		ID:                r.ID,
		DuneProtocolID:    r.DuneProtocolID,
		Name:              r.Name,
		Symbol:            rune(r.Symbol),
		Decimals:          r.Decimals,
		Premine:           common.FromSplit(r.Premine0, r.Premine1),
		Mints:             common.FromSplit(r.Mints0, r.Mints1),
		MintAmount:        common.FromSplit(r.MintAmount0, r.MintAmount1),
		Turbo:             r.Turbo,
		Unmintable:        r.Unmintable,
		BurntAmount:       common.FromSplit(r.BurntAmount0, r.BurntAmount1),
		EtchTransactionID: r.EtchTransactionID,
		DeployerAddressID: r.DeployerAddressID,
		EtchBlock:         r.EtchBlock,
		EtchTxIndex:       r.EtchTxIndex,
	}
	if r.HasMintCap {
		v := common.FromSplit(r.MintCap0, r.MintCap1)
		d.MintCap = &v
	}
	if r.HasMintStart {
		v := r.MintStart
		d.MintStart = &v
	}
	if r.HasMintEnd {
		v := r.MintEnd
		d.MintEnd = &v
	}
	if r.HasMintOffsetStart {
		v := r.MintOffsetStart
		d.MintOffsetStart = &v
	}
	if r.HasMintOffsetEnd {
		v := r.MintOffsetEnd
		d.MintOffsetEnd = &v
	}
	if r.HasPrice {
		amount := r.PriceAmount
		payTo := r.PricePayTo
		d.PriceAmount = &amount
		d.PricePayTo = &payTo
	}
	return d
}

func duneFromDomain(d domain.Dune) duneRow {
	premineLo, premineHi := d.Premine.Split()
	mintsLo, mintsHi := d.Mints.Split()
	mintAmountLo, mintAmountHi := d.MintAmount.Split()
	burntLo, burntHi := d.BurntAmount.Split()
	r := duneRow{
		ID:                r_id(d.ID),
		DuneProtocolID:    d.DuneProtocolID,
		Name:              d.Name,
		Symbol:            int32(d.Symbol),
		Decimals:          d.Decimals,
		Premine0:          premineLo,
		Premine1:          premineHi,
		Mints0:            mintsLo,
		Mints1:            mintsHi,
		MintAmount0:       mintAmountLo,
		MintAmount1:       mintAmountHi,
		Turbo:             d.Turbo,
		Unmintable:        d.Unmintable,
		BurntAmount0:      burntLo,
		BurntAmount1:      burntHi,
		EtchTransactionID: d.EtchTransactionID,
		DeployerAddressID: d.DeployerAddressID,
		EtchBlock:         d.EtchBlock,
		EtchTxIndex:       d.EtchTxIndex,
	}
	if d.MintCap != nil {
		r.HasMintCap = true
		r.MintCap0, r.MintCap1 = d.MintCap.Split()
	}
	if d.MintStart != nil {
		r.HasMintStart = true
		r.MintStart = *d.MintStart
	}
	if d.MintEnd != nil {
		r.HasMintEnd = true
		r.MintEnd = *d.MintEnd
	}
	if d.MintOffsetStart != nil {
		r.HasMintOffsetStart = true
		r.MintOffsetStart = *d.MintOffsetStart
	}
	if d.MintOffsetEnd != nil {
		r.HasMintOffsetEnd = true
		r.MintOffsetEnd = *d.MintOffsetEnd
	}
	if d.PriceAmount != nil && d.PricePayTo != nil {
		r.HasPrice = true
		r.PriceAmount = *d.PriceAmount
		r.PricePayTo = *d.PricePayTo
	}
	return r
}

// r_id maps a tentative (negative) domain ID to zero so gorm treats the row
// as a fresh insert and lets autoincrement assign the real ID.
func r_id(id int64) int64 {
	if id < 0 {
		return 0
	}
	return id
}

func balanceToDomain(r balanceRow) domain.Balance {
	return domain.Balance{
		ID:        r.ID,
		AddressID: r.AddressID,
		DuneID:    r.DuneID,
		Balance:   common.FromSplit(r.Balance0, r.Balance1),
	}
}

func balanceFromDomain(b domain.Balance) balanceRow {
	lo, hi := b.Balance.Split()
	return balanceRow{ID: r_id(b.ID), AddressID: b.AddressID, DuneID: b.DuneID, Balance0: lo, Balance1: hi}
}

func eventFromDomain(e domain.Event) eventRow {
	lo, hi := e.Amount.Split()
	return eventRow{
		Type:          int(e.Type),
		Block:         e.Block,
		TransactionID: e.TransactionID,
		DuneID:        e.DuneID,
		Amount0:       lo,
		Amount1:       hi,
		FromAddressID: e.FromAddressID,
		ToAddressID:   e.ToAddressID,
	}
}
