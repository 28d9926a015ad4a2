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

package cache

import (
	"testing"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/decoder"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
	"github.com/bitapeslabs/dunes-indexer/internal/store"
)

// fakeStore is an in-memory stand-in for store.Store/store.BlockTx, scoped
// to a single test: it never touches sqlite, just slices keyed the same way
// the real gorm tables are.
type fakeStore struct {
	addresses    []domain.Address
	transactions []domain.Transaction
	utxos        []domain.Utxo
	utxoBalances []domain.UtxoBalance
	dunes        []domain.Dune
	balances     []domain.Balance
	events       []domain.Event
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (f *fakeStore) Migrate() error                { return nil }
func (f *fakeStore) EnsureReservedAddresses() error { return nil }

func (f *fakeStore) LoadAddressesByStrings(vals []string) ([]domain.Address, error) {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	var out []domain.Address
	for _, a := range f.addresses {
		if set[a.Address] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadAddressesByIDs(ids []int64) ([]domain.Address, error) {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []domain.Address
	for _, a := range f.addresses {
		if set[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadTransactionsByHashes(hashes []string) ([]domain.Transaction, error) {
	set := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		set[h] = true
	}
	var out []domain.Transaction
	for _, t := range f.transactions {
		if set[t.Hash] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadUtxosByNaturalKeys(keys []store.UtxoNaturalKey) ([]domain.Utxo, error) {
	set := make(map[store.UtxoNaturalKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	var out []domain.Utxo
	for _, u := range f.utxos {
		if set[store.UtxoNaturalKey{TransactionID: u.TransactionID, VoutIndex: u.VoutIndex}] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadUtxoBalancesByUtxoIDs(ids []int64) ([]domain.UtxoBalance, error) {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []domain.UtxoBalance
	for _, ub := range f.utxoBalances {
		if set[ub.UtxoID] {
			out = append(out, ub)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadDunesByProtocolIDs(ids []string) ([]domain.Dune, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []domain.Dune
	for _, d := range f.dunes {
		if set[d.DuneProtocolID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadDunesByNames(names []string) ([]domain.Dune, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	var out []domain.Dune
	for _, d := range f.dunes {
		if set[d.Name] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadDunesByIDs(ids []int64) ([]domain.Dune, error) {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []domain.Dune
	for _, d := range f.dunes {
		if set[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadBalancesByAddressIDs(ids []int64) ([]domain.Balance, error) {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []domain.Balance
	for _, b := range f.balances {
		if set[b.AddressID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadUtxosForSnapshot(addressID int64, end int64) ([]domain.Utxo, error) {
	var out []domain.Utxo
	for _, u := range f.utxos {
		if u.AddressID != addressID || u.BlockCreated > end {
			continue
		}
		if u.BlockSpent != nil && *u.BlockSpent <= end {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) RunInTransaction(fn func(tx store.BlockTx) error) error {
	return fn(f)
}

func (f *fakeStore) allocID() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) InsertAddresses(rows []domain.Address) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		r.ID = f.allocID()
		f.addresses = append(f.addresses, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (f *fakeStore) InsertDunes(rows []domain.Dune) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		r.ID = f.allocID()
		f.dunes = append(f.dunes, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (f *fakeStore) UpdateDunes(rows []domain.Dune) error {
	for _, r := range rows {
		for i, d := range f.dunes {
			if d.ID == r.ID {
				f.dunes[i] = r
			}
		}
	}
	return nil
}

func (f *fakeStore) PatchDuneEtchTransactionIDs(patches map[int64]int64) error {
	for duneID, txID := range patches {
		for i, d := range f.dunes {
			if d.ID == duneID {
				f.dunes[i].EtchTransactionID = txID
			}
		}
	}
	return nil
}

func (f *fakeStore) InsertTransactions(rows []domain.Transaction) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		r.ID = f.allocID()
		f.transactions = append(f.transactions, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (f *fakeStore) InsertUtxos(rows []domain.Utxo) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		r.ID = f.allocID()
		f.utxos = append(f.utxos, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (f *fakeStore) UpdateUtxos(rows []domain.Utxo) error {
	for _, r := range rows {
		for i, u := range f.utxos {
			if u.ID == r.ID {
				f.utxos[i].BlockSpent = r.BlockSpent
				f.utxos[i].TransactionSpentID = r.TransactionSpentID
			}
		}
	}
	return nil
}

func (f *fakeStore) InsertUtxoBalances(rows []domain.UtxoBalance) error {
	for _, r := range rows {
		r.ID = f.allocID()
		f.utxoBalances = append(f.utxoBalances, r)
	}
	return nil
}

func (f *fakeStore) InsertBalances(rows []domain.Balance) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		r.ID = f.allocID()
		f.balances = append(f.balances, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (f *fakeStore) UpdateBalances(rows []domain.Balance) error {
	for _, r := range rows {
		for i, b := range f.balances {
			if b.ID == r.ID {
				f.balances[i].Balance = r.Balance
			}
		}
	}
	return nil
}

func (f *fakeStore) InsertEvents(rows []domain.Event) error {
	f.events = append(f.events, rows...)
	return nil
}

var _ store.Store = (*fakeStore)(nil)
var _ store.BlockTx = (*fakeStore)(nil)

func TestBlockCacheFindOrCreateAddressReusesExisting(t *testing.T) {
	c := New()
	a1 := c.FindOrCreateAddress("bc1qexample")
	a2 := c.FindOrCreateAddress("bc1qexample")
	if a1.ID != a2.ID {
		t.Fatalf("expected same tentative ID for repeated address, got %d and %d", a1.ID, a2.ID)
	}
	if a1.ID >= 0 {
		t.Fatalf("expected a tentative negative ID, got %d", a1.ID)
	}
}

func TestBlockCacheAddBalanceAccumulates(t *testing.T) {
	c := New()
	c.AddBalance(1, 2, common.Uint128FromU64(100), false)
	b := c.AddBalance(1, 2, common.Uint128FromU64(50), false)
	if b.Balance.Cmp(common.Uint128FromU64(150)) != 0 {
		t.Fatalf("expected accumulated balance 150, got %s", b.Balance)
	}
	b = c.AddBalance(1, 2, common.Uint128FromU64(30), true)
	if b.Balance.Cmp(common.Uint128FromU64(120)) != 0 {
		t.Fatalf("expected 120 after subtracting 30, got %s", b.Balance)
	}
}

func TestBlockCachePrefetchLoadsReservedAddresses(t *testing.T) {
	f := newFakeStore()
	f.addresses = []domain.Address{
		{ID: common.AddressIDCoinbase, Address: common.AddressCoinbase},
		{ID: common.AddressIDOpReturn, Address: common.AddressOpReturn},
		{ID: common.AddressIDUnknown, Address: common.AddressUnknown},
	}
	c := New()
	block := chain.Block{Height: 840000, Tx: []chain.Tx{{TxID: "tx0"}}}
	if err := c.Prefetch(f, block, []decoder.Dunestone{{}}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, ok := c.FindAddressByID(common.AddressIDCoinbase); !ok {
		t.Fatalf("expected reserved coinbase address to be prefetched")
	}
	if _, ok := c.FindAddressByID(common.AddressIDOpReturn); !ok {
		t.Fatalf("expected reserved op_return address to be prefetched")
	}
}

func TestBlockCacheFlushAssignsRealIDsAndPatchesForwardReference(t *testing.T) {
	f := newFakeStore()
	c := New()

	tx := c.FindOrCreateTransaction("aabbcc")
	addr := c.FindOrCreateAddress("bc1qowner")
	dune := c.CreateDune(domain.Dune{
		DuneProtocolID:    "840000:1",
		Name:              "TESTDUNE",
		EtchTransactionID: tx.ID,
		DeployerAddressID: addr.ID,
		EtchBlock:         840000,
	})
	c.AddEvent(domain.Event{
		Type:          common.EventEtch,
		TransactionID: tx.ID,
		DuneID:        dune.ID,
		FromAddressID: addr.ID,
		ToAddressID:   addr.ID,
	})

	if err := c.Flush(f); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(f.dunes) != 1 {
		t.Fatalf("expected one flushed dune, got %d", len(f.dunes))
	}
	if f.dunes[0].ID <= 0 {
		t.Fatalf("expected dune to get a real positive ID, got %d", f.dunes[0].ID)
	}
	if f.dunes[0].EtchTransactionID <= 0 {
		t.Fatalf("expected dune's forward-referenced transaction ID to be patched to a real ID, got %d", f.dunes[0].EtchTransactionID)
	}
	if len(f.transactions) != 1 || f.transactions[0].ID != f.dunes[0].EtchTransactionID {
		t.Fatalf("patched etch transaction ID should match the flushed transaction row")
	}
	if len(f.events) != 1 {
		t.Fatalf("expected one flushed event, got %d", len(f.events))
	}
	if f.events[0].DuneID != f.dunes[0].ID {
		t.Fatalf("expected event's dune ID remapped to the real dune ID")
	}
}

func TestBlockCacheFlushRemapsUtxoAndBalanceForeignKeys(t *testing.T) {
	f := newFakeStore()
	c := New()

	tx := c.FindOrCreateTransaction("feedface")
	addr := c.FindOrCreateAddress("bc1qrecipient")
	utxo := c.CreateUtxo(domain.Utxo{
		TransactionID: tx.ID,
		VoutIndex:     0,
		AddressID:     addr.ID,
		ValueSats:     1000,
		BlockCreated:  840000,
	})
	c.CreateUtxoBalance(domain.UtxoBalance{UtxoID: utxo.ID, DuneID: common.AddressIDUnknown, Balance: common.Uint128FromU64(42)})
	c.AddBalance(addr.ID, common.AddressIDUnknown, common.Uint128FromU64(42), false)

	if err := c.Flush(f); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(f.utxos) != 1 || f.utxos[0].ID <= 0 {
		t.Fatalf("expected one flushed utxo with a real ID: %+v", f.utxos)
	}
	if f.utxos[0].TransactionID != f.transactions[0].ID {
		t.Fatalf("expected utxo's transaction ID remapped to the real transaction ID")
	}
	if len(f.utxoBalances) != 1 || f.utxoBalances[0].UtxoID != f.utxos[0].ID {
		t.Fatalf("expected utxo balance's utxo ID remapped to the real utxo ID")
	}
	if len(f.balances) != 1 || f.balances[0].AddressID != f.addresses[0].ID {
		t.Fatalf("expected balance's address ID remapped to the real address ID")
	}
}
