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

// Package chain holds the minimal block/transaction shape the rest of the
// indexer operates on. The block reader (internal/blockreader) is the only
// place that translates btcjson/wire RPC results into this shape, so every
// downstream package (decoder, commitment, engine) stays free of
// RPC-specific types.
package chain

// ScriptPubKey is the subset of a vout's scriptPubKey the decoder needs.
type ScriptPubKey struct {
	Asm     string
	Hex     string
	Type    string
	Address string
}

// Vout is one transaction output.
type Vout struct {
	N            uint32
	ValueSats    uint64
	ScriptPubKey ScriptPubKey
}

// Vin is one transaction input. Witness holds the hex-encoded witness stack
// elements exactly as returned by getblock(hash, 2)/getrawtransaction.
type Vin struct {
	TxID     string
	Vout     uint32
	Witness  []string
	Coinbase bool
}

// Tx is a transaction as seen by the indexer.
type Tx struct {
	TxID string
	Vin  []Vin
	Vout []Vout
}

// Block is a fully materialized block, in tx-index order.
type Block struct {
	Height int64
	Hash   string
	Tx     []Tx
}
