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

// Package rpc wraps the Bitcoin Core JSON-RPC surface the indexer depends
// on (spec.md §6.2) behind a narrow interface, so the block reader and
// commitment checker can be exercised against a fake in tests.
package rpc

import (
	"github.com/bitapeslabs/dunes-indexer/internal/config"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// Client is the subset of bitcoind's JSON-RPC API the indexer calls.
type Client interface {
	GetBlockHash(height int64) (*chainhash.Hash, error)
	GetBestBlockHash() (*chainhash.Hash, error)
	GetBlockVerboseTx(hash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error)
	GetRawTransactionVerbose(txid *chainhash.Hash) (*btcjson.TxRawResult, error)
	GetBlockHeaderVerbose(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
}

// rpcClient adapts *rpcclient.Client to Client.
type rpcClient struct {
	inner *rpcclient.Client
}

// New dials bitcoind using the given config and returns a Client.
func New(cfg config.BitcoinConfig) (Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.RPCHost,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPass,
		HTTPPostMode: true,
		DisableTLS:   !cfg.RPCTLS,
	}
	c, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}
	return &rpcClient{inner: c}, nil
}

func (c *rpcClient) GetBlockHash(height int64) (*chainhash.Hash, error) {
	return c.inner.GetBlockHash(height)
}

func (c *rpcClient) GetBestBlockHash() (*chainhash.Hash, error) {
	return c.inner.GetBestBlockHash()
}

func (c *rpcClient) GetBlockVerboseTx(hash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error) {
	return c.inner.GetBlockVerboseTx(hash)
}

func (c *rpcClient) GetRawTransactionVerbose(txid *chainhash.Hash) (*btcjson.TxRawResult, error) {
	return c.inner.GetRawTransactionVerbose(txid)
}

func (c *rpcClient) GetBlockHeaderVerbose(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
	return c.inner.GetBlockHeaderVerbose(hash)
}
