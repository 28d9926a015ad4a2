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

	"github.com/bitapeslabs/dunes-indexer/internal/domain"
	"github.com/bitapeslabs/dunes-indexer/internal/store"
)

// idMap resolves a tentative (negative) ID minted this block to the real ID
// the store assigned it at flush time. Real (non-negative) IDs, including
// the reserved {1,2,3} addresses, pass through unchanged.
type idMap map[int64]int64

func (m idMap) resolve(id int64) int64 {
	if id >= 0 {
		return id
	}
	if real, ok := m[id]; ok {
		return real
	}
	return id
}

// Flush emits the block's staged writes as bulk upserts in FK order
// (Address, Dune, Transaction, Utxo, Utxo_balance, Balance, Event) inside a
// single store transaction, per spec.md §4.4. Dune.EtchTransactionID is a
// forward reference to a Transaction row flushed after it; that one column
// is patched in a second pass once transaction IDs are known.
func (c *BlockCache) Flush(st store.Store) error {
	return st.RunInTransaction(func(tx store.BlockTx) error {
		addrIDs := make(idMap)
		newAddrs := c.addresses.New()
		if len(newAddrs) > 0 {
			ids, err := tx.InsertAddresses(newAddrs)
			if err != nil {
				return fmt.Errorf("flush addresses: %w", err)
			}
			for i, a := range newAddrs {
				addrIDs[a.ID] = ids[i]
			}
		}

		duneIDs := make(idMap)
		pendingEtchTx := make(map[int64]int64) // real dune ID -> tentative transaction ID
		newDunes := c.dunes.New()
		for i := range newDunes {
			newDunes[i].DeployerAddressID = addrIDs.resolve(newDunes[i].DeployerAddressID)
		}
		if len(newDunes) > 0 {
			ids, err := tx.InsertDunes(newDunes)
			if err != nil {
				return fmt.Errorf("flush dunes: %w", err)
			}
			for i, d := range newDunes {
				duneIDs[d.ID] = ids[i]
				if d.EtchTransactionID < 0 {
					pendingEtchTx[ids[i]] = d.EtchTransactionID
				}
			}
		}
		if changed := c.dunes.Changed(); len(changed) > 0 {
			if err := tx.UpdateDunes(changed); err != nil {
				return fmt.Errorf("flush dune updates: %w", err)
			}
		}

		txIDs := make(idMap)
		newTxs := c.transactions.New()
		if len(newTxs) > 0 {
			ids, err := tx.InsertTransactions(newTxs)
			if err != nil {
				return fmt.Errorf("flush transactions: %w", err)
			}
			for i, t := range newTxs {
				txIDs[t.ID] = ids[i]
			}
		}

		if len(pendingEtchTx) > 0 {
			patches := make(map[int64]int64, len(pendingEtchTx))
			for duneRealID, tentativeTxID := range pendingEtchTx {
				real, ok := txIDs[tentativeTxID]
				if !ok {
					return fmt.Errorf("flush: dune %d's etch transaction %d was not flushed", duneRealID, tentativeTxID)
				}
				patches[duneRealID] = real
			}
			if err := tx.PatchDuneEtchTransactionIDs(patches); err != nil {
				return fmt.Errorf("flush dune etch transaction patch: %w", err)
			}
		}

		utxoIDs := make(idMap)
		newUtxos := c.utxos.New()
		for i := range newUtxos {
			newUtxos[i].AddressID = addrIDs.resolve(newUtxos[i].AddressID)
			newUtxos[i].TransactionID = txIDs.resolve(newUtxos[i].TransactionID)
		}
		if len(newUtxos) > 0 {
			ids, err := tx.InsertUtxos(newUtxos)
			if err != nil {
				return fmt.Errorf("flush utxos: %w", err)
			}
			for i, u := range newUtxos {
				utxoIDs[u.ID] = ids[i]
			}
		}
		if changed := c.utxos.Changed(); len(changed) > 0 {
			if err := tx.UpdateUtxos(changed); err != nil {
				return fmt.Errorf("flush utxo updates: %w", err)
			}
		}

		newUBs := c.utxoBalances.New()
		for i := range newUBs {
			newUBs[i].UtxoID = utxoIDs.resolve(newUBs[i].UtxoID)
			newUBs[i].DuneID = duneIDs.resolve(newUBs[i].DuneID)
		}
		if len(newUBs) > 0 {
			if err := tx.InsertUtxoBalances(newUBs); err != nil {
				return fmt.Errorf("flush utxo balances: %w", err)
			}
		}

		newBals := c.balances.New()
		for i := range newBals {
			newBals[i].AddressID = addrIDs.resolve(newBals[i].AddressID)
			newBals[i].DuneID = duneIDs.resolve(newBals[i].DuneID)
		}
		if len(newBals) > 0 {
			if _, err := tx.InsertBalances(newBals); err != nil {
				return fmt.Errorf("flush balances: %w", err)
			}
		}
		if changed := c.balances.Changed(); len(changed) > 0 {
			if err := tx.UpdateBalances(changed); err != nil {
				return fmt.Errorf("flush balance updates: %w", err)
			}
		}

		if len(c.events) > 0 {
			events := make([]domain.Event, len(c.events))
			for i, e := range c.events {
				e.TransactionID = txIDs.resolve(e.TransactionID)
				e.DuneID = duneIDs.resolve(e.DuneID)
				e.FromAddressID = addrIDs.resolve(e.FromAddressID)
				e.ToAddressID = addrIDs.resolve(e.ToAddressID)
				events[i] = e
			}
			if err := tx.InsertEvents(events); err != nil {
				return fmt.Errorf("flush events: %w", err)
			}
		}

		return nil
	})
}
