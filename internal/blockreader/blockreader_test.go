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

package blockreader

import (
	"context"
	"strings"
	"testing"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc/rpctest"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func hashFromByte(b byte) *chainhash.Hash {
	h, err := chainhash.NewHashFromStr(strings.Repeat(string([]byte{"0123456789abcdef"[b%16]}), 64))
	if err != nil {
		panic(err)
	}
	return h
}

func fakeWithBlocks(n int) *rpctest.Fake {
	f := rpctest.New()
	for i := 0; i < n; i++ {
		h := hashFromByte(byte(i + 1))
		f.BlocksByHeight[int64(i)] = h
		f.BlocksByHash[*h] = &btcjson.GetBlockVerboseTxResult{
			Hash:   h.String(),
			Height: int64(i),
			Tx: []btcjson.TxRawResult{
				{Txid: "tx", Vout: []btcjson.Vout{
					{N: 0, Value: 0.5, ScriptPubKey: btcjson.ScriptPubKeyResult{Type: "pubkeyhash", Address: "addr"}},
				}},
			},
		}
	}
	f.BestBlockHash = hashFromByte(byte(n))
	f.HeadersByHash[*f.BestBlockHash] = &btcjson.GetBlockHeaderVerboseResult{Height: int32(n - 1)}
	return f
}

func TestTip(t *testing.T) {
	f := fakeWithBlocks(5)
	r := New(f, testLogger(), 2, 4)
	tip, err := r.Tip()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if tip != 4 {
		t.Fatalf("expected tip 4, got %d", tip)
	}
}

func TestGetBlockConvertsValueToSats(t *testing.T) {
	f := fakeWithBlocks(1)
	r := New(f, testLogger(), 1, 1)
	block, err := r.GetBlock(0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(block.Tx) != 1 || len(block.Tx[0].Vout) != 1 {
		t.Fatalf("unexpected block shape: %+v", block)
	}
	if block.Tx[0].Vout[0].ValueSats != 50_000_000 {
		t.Fatalf("expected 0.5 BTC = 50,000,000 sats, got %d", block.Tx[0].Vout[0].ValueSats)
	}
	if block.Tx[0].Vout[0].ScriptPubKey.Address != "addr" {
		t.Fatalf("address not propagated: %+v", block.Tx[0].Vout[0].ScriptPubKey)
	}
}

func TestStreamVisitsBlocksInHeightOrder(t *testing.T) {
	f := fakeWithBlocks(9)
	r := New(f, testLogger(), 3, 3)

	var seen []int64
	err := r.Stream(context.Background(), 0, 8, func(b chain.Block) error {
		seen = append(seen, b.Height)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(seen) != 9 {
		t.Fatalf("expected 9 blocks, got %d", len(seen))
	}
	for i, h := range seen {
		if h != int64(i) {
			t.Fatalf("expected strictly ascending heights, got %v", seen)
		}
	}
}

func TestStreamPropagatesCallbackError(t *testing.T) {
	f := fakeWithBlocks(3)
	r := New(f, testLogger(), 2, 2)

	called := 0
	err := r.Stream(context.Background(), 0, 2, func(b chain.Block) error {
		called++
		if b.Height == 1 {
			return context.Canceled
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected error propagated from callback")
	}
}

func TestStreamPropagatesFetchError(t *testing.T) {
	f := fakeWithBlocks(2) // heights 0,1 only
	r := New(f, testLogger(), 2, 2)

	err := r.Stream(context.Background(), 0, 5, func(b chain.Block) error { return nil })
	if err == nil {
		t.Fatalf("expected error fetching a height beyond the fake's dataset")
	}
}

func TestNewClampsWindowToChunkSize(t *testing.T) {
	r := New(nil, testLogger(), 5, 1)
	if r.windowSize != 5 {
		t.Fatalf("expected windowSize clamped up to chunkSize, got %d", r.windowSize)
	}
	r2 := New(nil, testLogger(), 0, 0)
	if r2.chunkSize != 1 {
		t.Fatalf("expected chunkSize clamped to 1, got %d", r2.chunkSize)
	}
}
