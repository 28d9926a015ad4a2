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

// Package commitment implements C2: verifying that a non-reserved etching
// was pre-committed to in a taproot witness at least CommitConfirms blocks
// before the etching transaction (spec.md §4.2).
package commitment

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// Check returns true if any non-coinbase input of tx reveals, in its
// witness, a valid taproot commitment to runeName with at least
// CommitConfirms confirmations as of currentBlock. RPC failures are
// returned as errors, per spec.md §7 ("RPC failure during commitment
// check" is fatal for the block).
func Check(client rpc.Client, tx chain.Tx, currentBlock int64, runeName string) (bool, error) {
	target := common.RuneNameCommitmentBytes(runeName)
	for _, vin := range tx.Vin {
		if vin.Coinbase {
			continue
		}
		ok, err := checkVin(client, vin, currentBlock, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func checkVin(client rpc.Client, vin chain.Vin, currentBlock int64, target []byte) (bool, error) {
	offset, ok := tapscriptOffset(vin.Witness)
	if !ok {
		return false, nil
	}
	script, err := hex.DecodeString(vin.Witness[offset])
	if err != nil {
		return false, nil
	}
	if !containsPush(script, target) {
		return false, nil
	}

	txid, err := chainhash.NewHashFromStr(vin.TxID)
	if err != nil {
		return false, fmt.Errorf("commitment: malformed prev txid %q: %w", vin.TxID, err)
	}
	prevTx, err := client.GetRawTransactionVerbose(txid)
	if err != nil {
		return false, fmt.Errorf("commitment: fetch prev tx %s: %w", vin.TxID, err)
	}
	if int(vin.Vout) >= len(prevTx.Vout) {
		return false, nil
	}
	if prevTx.Vout[vin.Vout].ScriptPubKey.Type != common.TaprootScriptType {
		return false, nil
	}
	if prevTx.BlockHash == "" {
		// Unconfirmed previous tx can never satisfy CommitConfirms.
		return false, nil
	}
	blockHash, err := chainhash.NewHashFromStr(prevTx.BlockHash)
	if err != nil {
		return false, fmt.Errorf("commitment: malformed prev blockhash %q: %w", prevTx.BlockHash, err)
	}
	header, err := client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return false, fmt.Errorf("commitment: fetch prev header %s: %w", prevTx.BlockHash, err)
	}

	confirmations := currentBlock - int64(header.Height) + 1
	return confirmations >= common.CommitConfirms, nil
}

// tapscriptOffset locates the tapscript element in a witness stack per
// BIP341: if the last element looks like an annex (starts with 0x50), the
// tapscript is the third-from-last element; otherwise it's the
// second-from-last. Key-path spends (stack length < 2) have no tapscript.
func tapscriptOffset(witness []string) (int, bool) {
	n := len(witness)
	if n < 2 {
		return 0, false
	}
	offset := n - 2
	if isAnnex(witness[n-1]) {
		offset = n - 3
	}
	if offset < 0 {
		return 0, false
	}
	return offset, true
}

func isAnnex(hexElem string) bool {
	if len(hexElem) < 2 {
		return false
	}
	b, err := hex.DecodeString(hexElem[:2])
	if err != nil || len(b) == 0 {
		return false
	}
	return b[0] == common.TaprootAnnexByte
}

// containsPush reports whether script pushes target as one of its data
// elements anywhere in its instruction stream.
func containsPush(script []byte, target []byte) bool {
	tok := txscript.MakeScriptTokenizer(0, script)
	for tok.Next() {
		if bytes.Equal(tok.Data(), target) {
			return true
		}
	}
	return false
}
