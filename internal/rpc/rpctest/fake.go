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

// Package rpctest provides an in-memory fake of internal/rpc.Client for
// tests of the commitment checker and block reader.
package rpctest

import (
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Fake is a scriptable in-memory rpc.Client.
type Fake struct {
	BlocksByHeight map[int64]*chainhash.Hash
	BlocksByHash   map[chainhash.Hash]*btcjson.GetBlockVerboseTxResult
	HeadersByHash  map[chainhash.Hash]*btcjson.GetBlockHeaderVerboseResult
	TxsByID        map[chainhash.Hash]*btcjson.TxRawResult
	BestBlockHash  *chainhash.Hash
}

func New() *Fake {
	return &Fake{
		BlocksByHeight: make(map[int64]*chainhash.Hash),
		BlocksByHash:   make(map[chainhash.Hash]*btcjson.GetBlockVerboseTxResult),
		HeadersByHash:  make(map[chainhash.Hash]*btcjson.GetBlockHeaderVerboseResult),
		TxsByID:        make(map[chainhash.Hash]*btcjson.TxRawResult),
	}
}

func (f *Fake) GetBlockHash(height int64) (*chainhash.Hash, error) {
	h, ok := f.BlocksByHeight[height]
	if !ok {
		return nil, fmt.Errorf("rpctest: no block at height %d", height)
	}
	return h, nil
}

func (f *Fake) GetBestBlockHash() (*chainhash.Hash, error) {
	if f.BestBlockHash == nil {
		return nil, fmt.Errorf("rpctest: no best block hash set")
	}
	return f.BestBlockHash, nil
}

func (f *Fake) GetBlockVerboseTx(hash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error) {
	b, ok := f.BlocksByHash[*hash]
	if !ok {
		return nil, fmt.Errorf("rpctest: no block %s", hash)
	}
	return b, nil
}

func (f *Fake) GetRawTransactionVerbose(txid *chainhash.Hash) (*btcjson.TxRawResult, error) {
	tx, ok := f.TxsByID[*txid]
	if !ok {
		return nil, fmt.Errorf("rpctest: no tx %s", txid)
	}
	return tx, nil
}

func (f *Fake) GetBlockHeaderVerbose(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
	h, ok := f.HeadersByHash[*hash]
	if !ok {
		return nil, fmt.Errorf("rpctest: no header %s", hash)
	}
	return h, nil
}
