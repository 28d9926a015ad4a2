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
	"fmt"
	"strings"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/decoder"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
	"github.com/bitapeslabs/dunes-indexer/internal/store"
)

// BlockCache is the C4 adapter: one Table per entity plus the secondary
// indexes the engine looks things up by, all scoped to a single block. It is
// exclusively owned by the engine for the duration of that block; nothing
// else may mutate it concurrently.
type BlockCache struct {
	addresses    *Table[domain.Address]
	addressByStr map[string]int64

	transactions *Table[domain.Transaction]
	txByHash     map[string]int64

	utxos     *Table[domain.Utxo]
	utxoByKey map[utxoKey]int64

	utxoBalances       *Table[domain.UtxoBalance]
	utxoBalancesByUtxo map[int64][]int64

	dunes            *Table[domain.Dune]
	duneByProtocolID map[string]int64
	duneByName       map[string]int64

	balances     *Table[domain.Balance]
	balanceByKey map[balanceKey]int64

	events []domain.Event
}

func New() *BlockCache {
	return &BlockCache{
		addresses:          NewTable(func(a domain.Address) int64 { return a.ID }),
		addressByStr:       make(map[string]int64),
		transactions:       NewTable(func(t domain.Transaction) int64 { return t.ID }),
		txByHash:           make(map[string]int64),
		utxos:              NewTable(func(u domain.Utxo) int64 { return u.ID }),
		utxoByKey:          make(map[utxoKey]int64),
		utxoBalances:       NewTable(func(ub domain.UtxoBalance) int64 { return ub.ID }),
		utxoBalancesByUtxo: make(map[int64][]int64),
		dunes:              NewTable(func(d domain.Dune) int64 { return d.ID }),
		duneByProtocolID:   make(map[string]int64),
		duneByName:         make(map[string]int64),
		balances:           NewTable(func(b domain.Balance) int64 { return b.ID }),
		balanceByKey:       make(map[balanceKey]int64),
	}
}

// --- Address ---

func (c *BlockCache) loadAddress(a domain.Address) {
	c.addresses.Load(a)
	c.addressByStr[a.Address] = a.ID
}

func (c *BlockCache) FindAddressByID(id int64) (domain.Address, bool) {
	return c.addresses.Get(id).Value()
}

func (c *BlockCache) FindAddressByString(addr string) (domain.Address, bool) {
	id, ok := c.addressByStr[addr]
	if !ok {
		return domain.Address{}, false
	}
	return c.addresses.Get(id).Value()
}

func (c *BlockCache) FindOrCreateAddress(addr string) domain.Address {
	if a, ok := c.FindAddressByString(addr); ok {
		return a
	}
	a := domain.Address{ID: c.addresses.NextTentativeID(), Address: addr}
	c.addresses.Put(a)
	c.addressByStr[addr] = a.ID
	return a
}

// --- Transaction ---

func (c *BlockCache) loadTransaction(t domain.Transaction) {
	c.transactions.Load(t)
	c.txByHash[t.Hash] = t.ID
}

func (c *BlockCache) FindTransactionByHash(hash string) (domain.Transaction, bool) {
	id, ok := c.txByHash[hash]
	if !ok {
		return domain.Transaction{}, false
	}
	return c.transactions.Get(id).Value()
}

func (c *BlockCache) FindOrCreateTransaction(hash string) domain.Transaction {
	if t, ok := c.FindTransactionByHash(hash); ok {
		return t
	}
	t := domain.Transaction{ID: c.transactions.NextTentativeID(), Hash: hash}
	c.transactions.Put(t)
	c.txByHash[hash] = t.ID
	return t
}

// --- Utxo ---

func (c *BlockCache) loadUtxo(u domain.Utxo) {
	c.utxos.Load(u)
	c.utxoByKey[utxoKey{u.TransactionID, u.VoutIndex}] = u.ID
}

func (c *BlockCache) FindUtxo(transactionID int64, voutIndex uint32) (domain.Utxo, bool) {
	id, ok := c.utxoByKey[utxoKey{transactionID, voutIndex}]
	if !ok {
		return domain.Utxo{}, false
	}
	return c.utxos.Get(id).Value()
}

func (c *BlockCache) CreateUtxo(u domain.Utxo) domain.Utxo {
	u.ID = c.utxos.NextTentativeID()
	c.utxos.Put(u)
	c.utxoByKey[utxoKey{u.TransactionID, u.VoutIndex}] = u.ID
	return u
}

func (c *BlockCache) UpdateUtxo(u domain.Utxo) {
	c.utxos.Put(u)
}

// --- UtxoBalance ---

func (c *BlockCache) loadUtxoBalance(ub domain.UtxoBalance) {
	c.utxoBalances.Load(ub)
	c.utxoBalancesByUtxo[ub.UtxoID] = append(c.utxoBalancesByUtxo[ub.UtxoID], ub.ID)
}

func (c *BlockCache) FindUtxoBalances(utxoID int64) []domain.UtxoBalance {
	ids := c.utxoBalancesByUtxo[utxoID]
	out := make([]domain.UtxoBalance, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.utxoBalances.Get(id).Value(); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *BlockCache) CreateUtxoBalance(ub domain.UtxoBalance) domain.UtxoBalance {
	ub.ID = c.utxoBalances.NextTentativeID()
	c.utxoBalances.Put(ub)
	c.utxoBalancesByUtxo[ub.UtxoID] = append(c.utxoBalancesByUtxo[ub.UtxoID], ub.ID)
	return ub
}

// --- Dune ---

func (c *BlockCache) loadDune(d domain.Dune) {
	c.dunes.Load(d)
	c.duneByProtocolID[d.DuneProtocolID] = d.ID
	if d.Name != "" {
		c.duneByName[d.Name] = d.ID
	}
}

func (c *BlockCache) FindDuneByID(id int64) (domain.Dune, bool) {
	return c.dunes.Get(id).Value()
}

func (c *BlockCache) FindDuneByProtocolID(protocolID string) (domain.Dune, bool) {
	id, ok := c.duneByProtocolID[protocolID]
	if !ok {
		return domain.Dune{}, false
	}
	return c.dunes.Get(id).Value()
}

func (c *BlockCache) FindDuneByName(name string) (domain.Dune, bool) {
	id, ok := c.duneByName[name]
	if !ok {
		return domain.Dune{}, false
	}
	return c.dunes.Get(id).Value()
}

func (c *BlockCache) CreateDune(d domain.Dune) domain.Dune {
	d.ID = c.dunes.NextTentativeID()
	c.dunes.Put(d)
	c.duneByProtocolID[d.DuneProtocolID] = d.ID
	if d.Name != "" {
		c.duneByName[d.Name] = d.ID
	}
	return d
}

func (c *BlockCache) UpdateDune(d domain.Dune) {
	c.dunes.Put(d)
}

// --- Balance ---

func (c *BlockCache) loadBalance(b domain.Balance) {
	c.balances.Load(b)
	c.balanceByKey[balanceKey{b.AddressID, b.DuneID}] = b.ID
}

func (c *BlockCache) FindBalance(addressID, duneID int64) (domain.Balance, bool) {
	id, ok := c.balanceByKey[balanceKey{addressID, duneID}]
	if !ok {
		return domain.Balance{}, false
	}
	return c.balances.Get(id).Value()
}

// AddBalance adds (or, if negative is true, subtracts) delta from the
// (addressID, duneID) aggregate, creating the row if it doesn't exist yet.
// Balances may pass through zero and the row is kept per spec.md §4.5 Step G.
func (c *BlockCache) AddBalance(addressID, duneID int64, delta common.Uint128, negative bool) domain.Balance {
	b, ok := c.FindBalance(addressID, duneID)
	if !ok {
		b = domain.Balance{ID: c.balances.NextTentativeID(), AddressID: addressID, DuneID: duneID}
		c.balanceByKey[balanceKey{addressID, duneID}] = b.ID
	}
	if negative {
		b.Balance = b.Balance.MustSub(delta)
	} else {
		b.Balance = b.Balance.MustAdd(delta)
	}
	c.balances.Put(b)
	return b
}

// --- Events ---

func (c *BlockCache) AddEvent(e domain.Event) {
	c.events = append(c.events, e)
}

func (c *BlockCache) Events() []domain.Event {
	return c.events
}

// Prefetch loads everything the engine will need for block in one pass of
// bulk reads, per spec.md §4.4's six-step order. stones holds the decoded
// dunestone for each entry of block.Tx, in the same order, so the dune
// reference scan (step 5) doesn't need to re-run the decoder.
func (c *BlockCache) Prefetch(st store.Store, block chain.Block, stones []decoder.Dunestone) error {
	// Step 1: transactions referenced by any vin.
	hashSet := make(map[string]struct{})
	for _, tx := range block.Tx {
		for _, vin := range tx.Vin {
			if vin.Coinbase {
				continue
			}
			hashSet[vin.TxID] = struct{}{}
		}
	}
	txs, err := st.LoadTransactionsByHashes(stringSetToSlice(hashSet))
	if err != nil {
		return fmt.Errorf("cache: prefetch transactions: %w", err)
	}
	for _, t := range txs {
		c.loadTransaction(t)
	}

	// Step 2: utxos naturally keyed off those transactions.
	var utxoKeys []store.UtxoNaturalKey
	for _, tx := range block.Tx {
		for _, vin := range tx.Vin {
			if vin.Coinbase {
				continue
			}
			t, ok := c.FindTransactionByHash(vin.TxID)
			if !ok {
				continue // unindexed input; resolved to UNKNOWN sender at engine time.
			}
			utxoKeys = append(utxoKeys, store.UtxoNaturalKey{TransactionID: t.ID, VoutIndex: vin.Vout})
		}
	}
	utxos, err := st.LoadUtxosByNaturalKeys(utxoKeys)
	if err != nil {
		return fmt.Errorf("cache: prefetch utxos: %w", err)
	}
	for _, u := range utxos {
		c.loadUtxo(u)
	}

	// Step 3: utxo balances for those utxos.
	utxoIDs := make([]int64, len(utxos))
	for i, u := range utxos {
		utxoIDs[i] = u.ID
	}
	ubs, err := st.LoadUtxoBalancesByUtxoIDs(utxoIDs)
	if err != nil {
		return fmt.Errorf("cache: prefetch utxo balances: %w", err)
	}
	for _, ub := range ubs {
		c.loadUtxoBalance(ub)
	}

	// Step 4: addresses: reserved triple, utxo owners, and every vout
	// recipient in the block.
	addrIDSet := map[int64]struct{}{
		common.AddressIDCoinbase: {},
		common.AddressIDOpReturn: {},
		common.AddressIDUnknown:  {},
	}
	for _, u := range utxos {
		addrIDSet[u.AddressID] = struct{}{}
	}
	addrStrSet := make(map[string]struct{})
	for _, tx := range block.Tx {
		for _, vout := range tx.Vout {
			if vout.ScriptPubKey.Address != "" {
				addrStrSet[vout.ScriptPubKey.Address] = struct{}{}
			}
		}
	}
	addrsByID, err := st.LoadAddressesByIDs(int64SetToSlice(addrIDSet))
	if err != nil {
		return fmt.Errorf("cache: prefetch addresses by id: %w", err)
	}
	addrsByStr, err := st.LoadAddressesByStrings(stringSetToSlice(addrStrSet))
	if err != nil {
		return fmt.Errorf("cache: prefetch addresses by string: %w", err)
	}
	for _, a := range addrsByID {
		c.loadAddress(a)
	}
	for _, a := range addrsByStr {
		c.loadAddress(a)
	}

	// Step 5: dunes referenced by mints, edicts, utxo_balances, or an
	// etching name collision.
	protoIDSet := make(map[string]struct{})
	nameSet := make(map[string]struct{})
	for _, s := range stones {
		if s.Mint != nil && !s.Mint.IsZero() {
			protoIDSet[s.Mint.String()] = struct{}{}
		}
		for _, e := range s.Edicts {
			if e.ID.IsZero() {
				continue // "0:0" is rewritten to the current tx at engine time.
			}
			protoIDSet[e.ID.String()] = struct{}{}
		}
		if s.Etching != nil && s.Etching.HasName {
			nameSet[strings.ToUpper(s.Etching.Name)] = struct{}{}
		}
	}
	duneIDSet := make(map[int64]struct{})
	for _, ub := range ubs {
		duneIDSet[ub.DuneID] = struct{}{}
	}
	dunesByProto, err := st.LoadDunesByProtocolIDs(stringSetToSlice(protoIDSet))
	if err != nil {
		return fmt.Errorf("cache: prefetch dunes by protocol id: %w", err)
	}
	dunesByName, err := st.LoadDunesByNames(stringSetToSlice(nameSet))
	if err != nil {
		return fmt.Errorf("cache: prefetch dunes by name: %w", err)
	}
	dunesByID, err := st.LoadDunesByIDs(int64SetToSlice(duneIDSet))
	if err != nil {
		return fmt.Errorf("cache: prefetch dunes by id: %w", err)
	}
	for _, d := range dunesByProto {
		c.loadDune(d)
	}
	for _, d := range dunesByName {
		c.loadDune(d)
	}
	for _, d := range dunesByID {
		c.loadDune(d)
	}

	// Step 6: balances for every prefetched address.
	bals, err := st.LoadBalancesByAddressIDs(c.addresses.IDs())
	if err != nil {
		return fmt.Errorf("cache: prefetch balances: %w", err)
	}
	for _, b := range bals {
		c.loadBalance(b)
	}

	return nil
}
