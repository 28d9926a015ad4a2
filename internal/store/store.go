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

package store

import (
	"fmt"

	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// UtxoNaturalKey is the (transaction_id, vout_index) lookup key for a Utxo.
type UtxoNaturalKey struct {
	TransactionID int64
	VoutIndex     uint32
}

// Store is the bulk read side of the C7 adapter contract.
type Store interface {
	Migrate() error

	LoadAddressesByStrings(vals []string) ([]domain.Address, error)
	LoadAddressesByIDs(ids []int64) ([]domain.Address, error)
	LoadTransactionsByHashes(hashes []string) ([]domain.Transaction, error)
	LoadUtxosByNaturalKeys(keys []UtxoNaturalKey) ([]domain.Utxo, error)
	LoadUtxoBalancesByUtxoIDs(ids []int64) ([]domain.UtxoBalance, error)
	LoadDunesByProtocolIDs(ids []string) ([]domain.Dune, error)
	LoadDunesByNames(names []string) ([]domain.Dune, error)
	LoadDunesByIDs(ids []int64) ([]domain.Dune, error)
	LoadBalancesByAddressIDs(ids []int64) ([]domain.Balance, error)

	// LoadUtxosForSnapshot backs the GET /snapshot HTTP route: every utxo
	// created at or before `end` that was either never spent or spent
	// after `end`.
	LoadUtxosForSnapshot(addressID int64, end int64) ([]domain.Utxo, error)

	// RunInTransaction runs fn inside a single database transaction,
	// committing iff fn returns nil. This is the one transactional
	// boundary per block flush required by spec.md §4.7.
	RunInTransaction(fn func(tx BlockTx) error) error

	// EnsureReservedAddresses seeds the fixed {1:COINBASE, 2:OP_RETURN,
	// 3:UNKNOWN} address rows if absent. Idempotent; called once at
	// startup, never inside a block transaction.
	EnsureReservedAddresses() error
}

// BlockTx is the bulk write side, scoped to one open transaction. Insert*
// methods take rows with non-positive (tentative or zero) IDs; those that
// return []int64 return the real autoincrement IDs assigned, in input order,
// so the caller (the
// block cache) can finish remapping foreign keys. Update* methods take rows
// that already carry real IDs.
type BlockTx interface {
	InsertAddresses(rows []domain.Address) ([]int64, error)
	InsertDunes(rows []domain.Dune) ([]int64, error)
	UpdateDunes(rows []domain.Dune) error
	PatchDuneEtchTransactionIDs(patches map[int64]int64) error
	InsertTransactions(rows []domain.Transaction) ([]int64, error)
	InsertUtxos(rows []domain.Utxo) ([]int64, error)
	UpdateUtxos(rows []domain.Utxo) error
	InsertUtxoBalances(rows []domain.UtxoBalance) error
	InsertBalances(rows []domain.Balance) ([]int64, error)
	UpdateBalances(rows []domain.Balance) error
	InsertEvents(rows []domain.Event) error
}

type gormStore struct {
	db *gorm.DB
}

// New opens (creating if necessary) a sqlite-backed Store at path.
func New(path string) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Migrate() error {
	return s.db.AutoMigrate(
		&addressRow{},
		&duneRow{},
		&transactionRow{},
		&utxoRow{},
		&utxoBalanceRow{},
		&balanceRow{},
		&eventRow{},
	)
}

func (s *gormStore) EnsureReservedAddresses() error {
	rows := []addressRow{
		{ID: common.AddressIDCoinbase, Address: common.AddressCoinbase},
		{ID: common.AddressIDOpReturn, Address: common.AddressOpReturn},
		{ID: common.AddressIDUnknown, Address: common.AddressUnknown},
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *gormStore) LoadAddressesByStrings(vals []string) ([]domain.Address, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	var rows []addressRow
	if err := s.db.Where("address IN ?", vals).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, addressToDomain), nil
}

func (s *gormStore) LoadAddressesByIDs(ids []int64) ([]domain.Address, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []addressRow
	if err := s.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, addressToDomain), nil
}

func (s *gormStore) LoadTransactionsByHashes(hashes []string) ([]domain.Transaction, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var rows []transactionRow
	if err := s.db.Where("hash IN ?", hashes).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, transactionToDomain), nil
}

func (s *gormStore) LoadUtxosByNaturalKeys(keys []UtxoNaturalKey) ([]domain.Utxo, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	q := s.db.Model(&utxoRow{})
	for i, k := range keys {
		if i == 0 {
			q = q.Where("transaction_id = ? AND vout_index = ?", k.TransactionID, k.VoutIndex)
			continue
		}
		q = q.Or("transaction_id = ? AND vout_index = ?", k.TransactionID, k.VoutIndex)
	}
	var rows []utxoRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, utxoToDomain), nil
}

func (s *gormStore) LoadUtxoBalancesByUtxoIDs(ids []int64) ([]domain.UtxoBalance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []utxoBalanceRow
	if err := s.db.Where("utxo_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, utxoBalanceToDomain), nil
}

func (s *gormStore) LoadDunesByProtocolIDs(ids []string) ([]domain.Dune, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []duneRow
	if err := s.db.Where("dune_protocol_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, duneToDomain), nil
}

func (s *gormStore) LoadDunesByNames(names []string) ([]domain.Dune, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var rows []duneRow
	if err := s.db.Where("name IN ?", names).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, duneToDomain), nil
}

func (s *gormStore) LoadDunesByIDs(ids []int64) ([]domain.Dune, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []duneRow
	if err := s.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, duneToDomain), nil
}

func (s *gormStore) LoadBalancesByAddressIDs(ids []int64) ([]domain.Balance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []balanceRow
	if err := s.db.Where("address_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, balanceToDomain), nil
}

func (s *gormStore) LoadUtxosForSnapshot(addressID int64, end int64) ([]domain.Utxo, error) {
	var rows []utxoRow
	err := s.db.
		Where("address_id = ? AND block_created <= ? AND (block_spent IS NULL OR block_spent > ?)", addressID, end, end).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapRows(rows, utxoToDomain), nil
}

func (s *gormStore) RunInTransaction(fn func(tx BlockTx) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormBlockTx{tx: tx})
	})
}

type gormBlockTx struct {
	tx *gorm.DB
}

func (b *gormBlockTx) InsertAddresses(rows []domain.Address) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dbRows := make([]addressRow, len(rows))
	for i, r := range rows {
		dbRows[i] = addressFromDomain(r)
	}
	if err := b.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&dbRows).Error; err != nil {
		return nil, err
	}
	return idsOf(dbRows, func(r addressRow) int64 { return r.ID }), nil
}

func (b *gormBlockTx) InsertDunes(rows []domain.Dune) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dbRows := make([]duneRow, len(rows))
	for i, r := range rows {
		dbRows[i] = duneFromDomain(r)
	}
	if err := b.tx.Create(&dbRows).Error; err != nil {
		return nil, err
	}
	return idsOf(dbRows, func(r duneRow) int64 { return r.ID }), nil
}

func (b *gormBlockTx) UpdateDunes(rows []domain.Dune) error {
	for _, r := range rows {
		row := duneFromDomain(r)
		if err := b.tx.Model(&duneRow{}).Where("id = ?", r.ID).Updates(map[string]any{
			"mints0":        row.Mints0,
			"mints1":        row.Mints1,
			"burnt_amount0": row.BurntAmount0,
			"burnt_amount1": row.BurntAmount1,
			"unmintable":    row.Unmintable,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (b *gormBlockTx) PatchDuneEtchTransactionIDs(patches map[int64]int64) error {
	for duneID, txID := range patches {
		if err := b.tx.Model(&duneRow{}).Where("id = ?", duneID).Update("etch_transaction_id", txID).Error; err != nil {
			return err
		}
	}
	return nil
}

func (b *gormBlockTx) InsertTransactions(rows []domain.Transaction) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dbRows := make([]transactionRow, len(rows))
	for i, r := range rows {
		dbRows[i] = transactionFromDomain(r)
	}
	if err := b.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&dbRows).Error; err != nil {
		return nil, err
	}
	return idsOf(dbRows, func(r transactionRow) int64 { return r.ID }), nil
}

func (b *gormBlockTx) InsertUtxos(rows []domain.Utxo) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dbRows := make([]utxoRow, len(rows))
	for i, r := range rows {
		dbRows[i] = utxoFromDomain(r)
	}
	if err := b.tx.Create(&dbRows).Error; err != nil {
		return nil, err
	}
	return idsOf(dbRows, func(r utxoRow) int64 { return r.ID }), nil
}

func (b *gormBlockTx) UpdateUtxos(rows []domain.Utxo) error {
	for _, r := range rows {
		if err := b.tx.Model(&utxoRow{}).Where("id = ?", r.ID).Updates(map[string]any{
			"block_spent":          r.BlockSpent,
			"transaction_spent_id": r.TransactionSpentID,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (b *gormBlockTx) InsertUtxoBalances(rows []domain.UtxoBalance) error {
	if len(rows) == 0 {
		return nil
	}
	dbRows := make([]utxoBalanceRow, len(rows))
	for i, r := range rows {
		dbRows[i] = utxoBalanceFromDomain(r)
	}
	return b.tx.Create(&dbRows).Error
}

func (b *gormBlockTx) InsertBalances(rows []domain.Balance) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dbRows := make([]balanceRow, len(rows))
	for i, r := range rows {
		dbRows[i] = balanceFromDomain(r)
	}
	if err := b.tx.Create(&dbRows).Error; err != nil {
		return nil, err
	}
	return idsOf(dbRows, func(r balanceRow) int64 { return r.ID }), nil
}

func (b *gormBlockTx) UpdateBalances(rows []domain.Balance) error {
	for _, r := range rows {
		row := balanceFromDomain(r)
		if err := b.tx.Model(&balanceRow{}).Where("id = ?", r.ID).Updates(map[string]any{
			"balance0": row.Balance0,
			"balance1": row.Balance1,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (b *gormBlockTx) InsertEvents(rows []domain.Event) error {
	if len(rows) == 0 {
		return nil
	}
	dbRows := make([]eventRow, len(rows))
	for i, r := range rows {
		dbRows[i] = eventFromDomain(r)
	}
	return b.tx.Create(&dbRows).Error
}

func mapRows[R any, D any](rows []R, conv func(R) D) []D {
	out := make([]D, len(rows))
	for i, r := range rows {
		out[i] = conv(r)
	}
	return out
}

func idsOf[R any](rows []R, get func(R) int64) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = get(r)
	}
	return out
}
