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

// Package blockreader implements C6: it keeps a bounded window of
// materialized blocks ahead of the engine, fetched from bitcoind in
// parallel chunks, and hands them back out strictly in height order.
package blockreader

import (
	"context"
	"fmt"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reader pulls blocks from bitcoind chunkSize at a time, bounded so it never
// holds more than windowSize blocks in memory ahead of the caller.
type Reader struct {
	client     rpc.Client
	log        *zap.SugaredLogger
	chunkSize  int
	windowSize int
}

func New(client rpc.Client, log *zap.SugaredLogger, chunkSize, windowSize int) *Reader {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if windowSize < chunkSize {
		windowSize = chunkSize
	}
	return &Reader{client: client, log: log, chunkSize: chunkSize, windowSize: windowSize}
}

// Tip returns the height of the chain's current best block.
func (r *Reader) Tip() (int64, error) {
	hash, err := r.client.GetBestBlockHash()
	if err != nil {
		return 0, fmt.Errorf("blockreader: get chain tip: %w", err)
	}
	header, err := r.client.GetBlockHeaderVerbose(hash)
	if err != nil {
		return 0, fmt.Errorf("blockreader: get tip header: %w", err)
	}
	return int64(header.Height), nil
}

// GetBlock fetches and converts a single block by height.
func (r *Reader) GetBlock(height int64) (chain.Block, error) {
	hash, err := r.client.GetBlockHash(height)
	if err != nil {
		return chain.Block{}, fmt.Errorf("blockreader: get block hash %d: %w", height, err)
	}
	raw, err := r.client.GetBlockVerboseTx(hash)
	if err != nil {
		return chain.Block{}, fmt.Errorf("blockreader: get block %d: %w", height, err)
	}
	block, err := convertBlock(height, raw)
	if err != nil {
		return chain.Block{}, fmt.Errorf("blockreader: convert block %d: %w", height, err)
	}
	return block, nil
}

// Stream fetches every block in [start, end] (inclusive) in windowSize-sized
// batches, running up to chunkSize RPCs concurrently within each batch, and
// invokes fn once per block strictly in ascending height order. It stops and
// returns the first error from either a fetch or fn.
func (r *Reader) Stream(ctx context.Context, start, end int64, fn func(chain.Block) error) error {
	for batchStart := start; batchStart <= end; batchStart += int64(r.windowSize) {
		batchEnd := batchStart + int64(r.windowSize) - 1
		if batchEnd > end {
			batchEnd = end
		}
		blocks := make([]chain.Block, batchEnd-batchStart+1)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.chunkSize)
		for h := batchStart; h <= batchEnd; h++ {
			h := h
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b, err := r.GetBlock(h)
				if err != nil {
					return err
				}
				blocks[h-batchStart] = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("blockreader: fetch batch [%d,%d]: %w", batchStart, batchEnd, err)
		}

		for _, b := range blocks {
			if err := fn(b); err != nil {
				return err
			}
		}
		r.log.Debugw("fetched block batch", "start", batchStart, "end", batchEnd)
	}
	return nil
}

func convertBlock(height int64, raw *btcjson.GetBlockVerboseTxResult) (chain.Block, error) {
	block := chain.Block{Height: height, Hash: raw.Hash}
	block.Tx = make([]chain.Tx, len(raw.Tx))
	for i, rawTx := range raw.Tx {
		tx, err := convertTx(rawTx)
		if err != nil {
			return chain.Block{}, fmt.Errorf("tx %s: %w", rawTx.Txid, err)
		}
		block.Tx[i] = tx
	}
	return block, nil
}

func convertTx(rawTx btcjson.TxRawResult) (chain.Tx, error) {
	tx := chain.Tx{TxID: rawTx.Txid}
	tx.Vin = make([]chain.Vin, len(rawTx.Vin))
	for i, v := range rawTx.Vin {
		tx.Vin[i] = chain.Vin{
			TxID:     v.Txid,
			Vout:     v.Vout,
			Witness:  v.Witness,
			Coinbase: v.Coinbase != "",
		}
	}
	tx.Vout = make([]chain.Vout, len(rawTx.Vout))
	for i, v := range rawTx.Vout {
		amount, err := btcutil.NewAmount(v.Value)
		if err != nil {
			return chain.Tx{}, fmt.Errorf("vout %d: %w", v.N, err)
		}
		tx.Vout[i] = chain.Vout{
			N:         v.N,
			ValueSats: uint64(amount),
			ScriptPubKey: chain.ScriptPubKey{
				Asm:     v.ScriptPubKey.Asm,
				Hex:     v.ScriptPubKey.Hex,
				Type:    v.ScriptPubKey.Type,
				Address: scriptPubKeyAddress(v.ScriptPubKey),
			},
		}
	}
	return tx, nil
}

// scriptPubKeyAddress adapts across btcjson's pre/post-0.21 address
// representations: newer bitcoind returns a single Address field, older
// ones return an Addresses slice. Multisig scripts with more than one
// address have no single owner and are treated as UNKNOWN by the engine.
func scriptPubKeyAddress(spk btcjson.ScriptPubKeyResult) string {
	if spk.Address != "" {
		return spk.Address
	}
	if len(spk.Addresses) == 1 {
		return spk.Addresses[0]
	}
	return ""
}
