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

// Package engine implements C5, the transition engine: the per-transaction
// etch/mint/edict/pointer-sweep state machine that is the heart of the
// indexer (spec.md §4.5). It runs strictly single-threaded against an
// already-hot internal/cache.BlockCache; every read and write here is an
// in-memory cache call, never a store round trip.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bitapeslabs/dunes-indexer/internal/cache"
	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/commitment"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/decoder"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc"
	"github.com/bitapeslabs/dunes-indexer/internal/rules"
	"go.uber.org/zap"
)

// Engine runs the transition logic for one block at a time against a
// pre-populated cache.BlockCache. It holds no state of its own between
// blocks.
type Engine struct {
	client rpc.Client
	log    *zap.SugaredLogger
}

func New(client rpc.Client, log *zap.SugaredLogger) *Engine {
	return &Engine{client: client, log: log}
}

// DecodeBlock runs C1 over every transaction in block, in order. The result
// feeds both cache.Prefetch (which needs to know which dunes are referenced
// before the engine runs) and ProcessBlock itself, so it's decoded once per
// block rather than once per component.
func (e *Engine) DecodeBlock(block chain.Block) ([]decoder.Dunestone, error) {
	stones := make([]decoder.Dunestone, len(block.Tx))
	for i, tx := range block.Tx {
		stone, err := decoder.Decode(tx)
		if err != nil {
			return nil, fmt.Errorf("engine: decode tx %s: %w", tx.TxID, err)
		}
		stones[i] = stone
	}
	return stones, nil
}

// ProcessBlock runs every transaction of block through Steps A-G against c,
// which must already have been prefetched for this block. It returns an
// error only for the fatal conditions of spec.md §7: those abort the block
// so the caller discards the cache and retries. Every recoverable condition
// (cenotaph, rejected etch/mint/edict) is handled internally and never
// surfaces as an error.
func (e *Engine) ProcessBlock(c *cache.BlockCache, block chain.Block, stones []decoder.Dunestone) error {
	for txIndex, tx := range block.Tx {
		isGenesis := block.Height == common.GenesisBlock && txIndex == 0
		if err := e.processTx(c, block, txIndex, tx, stones[txIndex], isGenesis); err != nil {
			return fmt.Errorf("engine: block %d tx %d (%s): %w", block.Height, txIndex, tx.TxID, err)
		}
	}
	return nil
}

func (e *Engine) processTx(c *cache.BlockCache, block chain.Block, txIndex int, tx chain.Tx, stone decoder.Dunestone, isGenesis bool) error {
	// --- Step A: input gathering ---
	var inputUtxos []domain.Utxo
	for _, vin := range tx.Vin {
		if vin.Coinbase {
			continue
		}
		spentTx, ok := c.FindTransactionByHash(vin.TxID)
		if !ok {
			continue
		}
		u, ok := c.FindUtxo(spentTx.ID, vin.Vout)
		if !ok {
			continue
		}
		inputUtxos = append(inputUtxos, u)
	}

	senderAddressID := int64(common.AddressIDUnknown)
	if len(inputUtxos) > 0 {
		senderAddressID = inputUtxos[0].AddressID
	}

	U := make(map[int64]common.Uint128)
	for _, u := range inputUtxos {
		for _, ub := range c.FindUtxoBalances(u.ID) {
			U[ub.DuneID] = U[ub.DuneID].MustAdd(ub.Balance)
		}
	}

	hasActionable := stone.Etching != nil || stone.Mint != nil || len(stone.Edicts) > 0
	if len(inputUtxos) == 0 && !hasActionable && !isGenesis {
		return nil
	}

	txRow := c.FindOrCreateTransaction(tx.TxID)

	// --- Step B: pending outputs ---
	pendings := make([]*pendingOutput, len(tx.Vout))
	for i, vout := range tx.Vout {
		p := &pendingOutput{voutIndex: uint32(i), valueSats: vout.ValueSats, balances: make(map[int64]common.Uint128)}
		switch {
		case vout.ScriptPubKey.Type == "nulldata":
			p.addressID = common.AddressIDOpReturn
			p.isOpReturn = true
		case vout.ScriptPubKey.Address != "":
			p.addressID = c.FindOrCreateAddress(vout.ScriptPubKey.Address).ID
		default:
			p.addressID = common.AddressIDUnknown
		}
		pendings[i] = p
	}

	// --- Step C: etching ---
	etchedDuneID := int64(0)
	etching := stone.Etching
	if isGenesis {
		etching = synthesizeGenesisEtching()
	}
	if etching != nil {
		if err := e.applyEtching(c, block, txIndex, tx, txRow, senderAddressID, etching, stone.Cenotaph, isGenesis, U, &etchedDuneID); err != nil {
			return err
		}
	}

	// --- Step D: mint ---
	if stone.Mint != nil {
		e.applyMint(c, block, txIndex, txRow, senderAddressID, *stone.Mint, tx, stone.Cenotaph, U)
	}

	// --- Step E: edict allocation ---
	transfers := make(map[int64]map[int64]common.Uint128)
	if stone.Cenotaph {
		for duneID, amt := range U {
			if amt.IsZero() {
				continue
			}
			if transfers[common.AddressIDOpReturn] == nil {
				transfers[common.AddressIDOpReturn] = make(map[int64]common.Uint128)
			}
			transfers[common.AddressIDOpReturn][duneID] = transfers[common.AddressIDOpReturn][duneID].MustAdd(amt)
			U[duneID] = common.Uint128{}
		}
	} else {
		voutCount := uint32(len(tx.Vout))
		for _, edict := range stone.Edicts {
			dune, found := e.resolveEdictDune(c, edict, etchedDuneID)
			if !found {
				continue
			}
			have, inU := U[dune.ID]
			if !inU || have.IsZero() {
				continue
			}
			if edict.Output == voutCount {
				nonOR := nonOpReturnIndices(pendings)
				if len(nonOR) == 0 {
					continue
				}
				if edict.Amount.IsZero() {
					base, rem, err := common.DivModFloorU64(U[dune.ID], uint64(len(nonOR)))
					if err != nil {
						return fmt.Errorf("edict split: %w", err)
					}
					for i, idx := range nonOR {
						give := base
						if uint64(i) < rem {
							give = give.MustAdd(common.Uint128FromU64(1))
						}
						allocateAmount(U, transfers, pendings[idx], dune.ID, give)
					}
				} else {
					for _, idx := range nonOR {
						allocate(U, transfers, pendings[idx], dune.ID, edict.Amount)
					}
				}
			} else {
				if int(edict.Output) >= len(pendings) {
					continue
				}
				allocate(U, transfers, pendings[edict.Output], dune.ID, edict.Amount)
			}
		}
	}

	// --- Step F: pointer sweep ---
	if !stone.Cenotaph {
		target, err := choosePointerTarget(stone.Pointer, pendings)
		if err != nil {
			return err
		}
		for duneID, amt := range U {
			if amt.IsZero() {
				continue
			}
			allocateAmount(U, transfers, pendings[target], duneID, amt)
		}
	}

	// --- Step G: finalization ---
	e.finalize(c, block, txRow, senderAddressID, inputUtxos, pendings, transfers)

	return nil
}

// choosePointerTarget implements spec.md §4.5 Step F: pointer if set and
// valid, else the first non-OP_RETURN output, else any OP_RETURN output,
// else a fatal error (an impossible-by-Bitcoin-rules state: every
// transaction has at least one output).
func choosePointerTarget(pointer *uint32, pendings []*pendingOutput) (int, error) {
	if pointer != nil && int(*pointer) < len(pendings) {
		return int(*pointer), nil
	}
	for i, p := range pendings {
		if !p.isOpReturn {
			return i, nil
		}
	}
	for i, p := range pendings {
		if p.isOpReturn {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no output available for pointer sweep")
}

// resolveEdictDune rewrites the "0:0" self-reference to the dune etched
// earlier in this same transaction, if any, then looks it up in the cache.
func (e *Engine) resolveEdictDune(c *cache.BlockCache, edict decoder.Edict, etchedDuneID int64) (domain.Dune, bool) {
	if edict.ID.IsZero() {
		if etchedDuneID == 0 {
			return domain.Dune{}, false
		}
		return c.FindDuneByID(etchedDuneID)
	}
	return c.FindDuneByProtocolID(edict.ID.String())
}

func (e *Engine) applyEtching(c *cache.BlockCache, block chain.Block, txIndex int, tx chain.Tx, txRow domain.Transaction, senderAddressID int64, etching *decoder.Etching, cenotaph bool, isGenesis bool, U map[int64]common.Uint128, etchedDuneID *int64) error {
	protocolID := fmt.Sprintf("%d:%d", block.Height, txIndex)
	if isGenesis {
		protocolID = genesisProtocolID
	}

	if _, exists := c.FindDuneByProtocolID(protocolID); exists {
		return nil
	}

	name := strings.ToUpper(etching.Name)
	if !etching.HasName {
		name = common.ReservedName(uint64(block.Height), uint32(txIndex))
	}
	if _, exists := c.FindDuneByName(name); exists {
		return nil
	}
	if len(name) < common.MinNameLength(uint64(block.Height)) {
		return nil
	}

	isFlex := false
	if etching.Terms != nil {
		amountZero := etching.Terms.Amount.IsZero()
		hasPrice := etching.Terms.Price != nil
		switch {
		case !amountZero:
			// fixed mode
		case amountZero && hasPrice:
			isFlex = true
		default:
			return nil // amount=0 with no price: invalid mode
		}
		if isFlex && etching.Terms.Cap != nil {
			return nil
		}
	}

	if etching.HasName && !isGenesis {
		ok, err := commitment.Check(e.client, tx, block.Height, name)
		if err != nil {
			return fmt.Errorf("commitment check: %w", err)
		}
		if !ok {
			return nil
		}
	}

	d := domain.Dune{
		DuneProtocolID:    protocolID,
		Name:              name,
		Decimals:          etching.Divisibility,
		Premine:           etching.Premine,
		Turbo:             etching.Turbo,
		DeployerAddressID: senderAddressID,
		EtchTransactionID: txRow.ID,
		EtchBlock:         uint64(block.Height),
		EtchTxIndex:       uint32(txIndex),
	}
	if etching.HasSymbol {
		d.Symbol = etching.Symbol
	} else {
		d.Symbol = 'D'
	}
	if etching.Terms != nil {
		d.MintAmount = etching.Terms.Amount
		d.MintCap = etching.Terms.Cap
		d.MintStart = etching.Terms.HeightStart
		d.MintEnd = etching.Terms.HeightEnd
		d.MintOffsetStart = etching.Terms.OffsetStart
		d.MintOffsetEnd = etching.Terms.OffsetEnd
		if etching.Terms.Price != nil {
			amt := etching.Terms.Price.Amount
			payTo := etching.Terms.Price.PayTo
			d.PriceAmount = &amt
			d.PricePayTo = &payTo
		}
	}
	d.Unmintable = cenotaph || etching.Terms == nil

	created := c.CreateDune(d)
	*etchedDuneID = created.ID

	c.AddEvent(domain.Event{
		Type: common.EventEtch, Block: block.Height, TransactionID: txRow.ID,
		DuneID: created.ID, Amount: created.Premine,
		FromAddressID: common.AddressIDUnknown, ToAddressID: senderAddressID,
	})
	if !cenotaph && !created.Premine.IsZero() {
		U[created.ID] = U[created.ID].MustAdd(created.Premine)
	}
	return nil
}

func (e *Engine) applyMint(c *cache.BlockCache, block chain.Block, txIndex int, txRow domain.Transaction, senderAddressID int64, mintID decoder.DuneID, tx chain.Tx, cenotaph bool, U map[int64]common.Uint128) {
	dune, found := c.FindDuneByProtocolID(mintID.String())
	if !found {
		return
	}

	isFlex := rules.IsFlexDune(dune)
	var flexAmount common.Uint128
	priceMet := true
	if isFlex {
		flexAmount, priceMet = rules.IsPriceTermsMet(dune, tx)
	}
	if !priceMet || !rules.IsMintOpen(uint64(block.Height), uint32(txIndex), dune, true) {
		return
	}

	if cenotaph {
		dune.Mints = dune.Mints.MustAdd(common.Uint128FromU64(1))
		c.UpdateDune(dune)
		return
	}

	mintAmount := dune.MintAmount
	if isFlex {
		mintAmount = flexAmount
	}
	if mintAmount.IsZero() {
		return
	}

	dune.Mints = dune.Mints.MustAdd(common.Uint128FromU64(1))
	c.UpdateDune(dune)
	c.AddEvent(domain.Event{
		Type: common.EventMint, Block: block.Height, TransactionID: txRow.ID,
		DuneID: dune.ID, Amount: mintAmount,
		FromAddressID: common.AddressIDUnknown, ToAddressID: senderAddressID,
	})
	U[dune.ID] = U[dune.ID].MustAdd(mintAmount)
}

func (e *Engine) finalize(c *cache.BlockCache, block chain.Block, txRow domain.Transaction, senderAddressID int64, inputUtxos []domain.Utxo, pendings []*pendingOutput, transfers map[int64]map[int64]common.Uint128) {
	type transferEntry struct {
		to     int64
		duneID int64
		amount common.Uint128
	}
	var entries []transferEntry
	for to, m := range transfers {
		for duneID, amt := range m {
			if amt.IsZero() {
				continue
			}
			entries = append(entries, transferEntry{to, duneID, amt})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		burnI, burnJ := entries[i].to == common.AddressIDOpReturn, entries[j].to == common.AddressIDOpReturn
		if burnI != burnJ {
			return burnJ
		}
		if entries[i].to != entries[j].to {
			return entries[i].to < entries[j].to
		}
		return entries[i].duneID < entries[j].duneID
	})
	for _, te := range entries {
		evType := common.EventTransfer
		if te.to == common.AddressIDOpReturn {
			evType = common.EventBurn
			if dune, ok := c.FindDuneByID(te.duneID); ok {
				dune.BurntAmount = dune.BurntAmount.MustAdd(te.amount)
				c.UpdateDune(dune)
			}
		}
		c.AddEvent(domain.Event{
			Type: evType, Block: block.Height, TransactionID: txRow.ID,
			DuneID: te.duneID, Amount: te.amount,
			FromAddressID: senderAddressID, ToAddressID: te.to,
		})
	}

	blockHeight := block.Height
	for _, u := range inputUtxos {
		for _, ub := range c.FindUtxoBalances(u.ID) {
			c.AddBalance(u.AddressID, ub.DuneID, ub.Balance, true)
		}
		txID := txRow.ID
		u.BlockSpent = &blockHeight
		u.TransactionSpentID = &txID
		c.UpdateUtxo(u)
	}

	for _, p := range pendings {
		if p.isOpReturn || len(p.balances) == 0 {
			continue
		}
		newUtxo := c.CreateUtxo(domain.Utxo{
			TransactionID: txRow.ID, VoutIndex: p.voutIndex,
			AddressID: p.addressID, ValueSats: p.valueSats, BlockCreated: block.Height,
		})
		duneIDs := make([]int64, 0, len(p.balances))
		for id := range p.balances {
			duneIDs = append(duneIDs, id)
		}
		sort.Slice(duneIDs, func(i, j int) bool { return duneIDs[i] < duneIDs[j] })
		for _, duneID := range duneIDs {
			amt := p.balances[duneID]
			if amt.IsZero() {
				continue
			}
			c.CreateUtxoBalance(domain.UtxoBalance{UtxoID: newUtxo.ID, DuneID: duneID, Balance: amt})
			c.AddBalance(p.addressID, duneID, amt, false)
		}
	}
}
