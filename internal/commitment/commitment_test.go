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

package commitment

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc/rpctest"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

var prevTxidHex = strings.Repeat("1", 64)

func tapscriptCommitting(t *testing.T, name string) []byte {
	t.Helper()
	b := txscript.NewScriptBuilder()
	b.AddData(common.RuneNameCommitmentBytes(name))
	script, err := b.Script()
	if err != nil {
		t.Fatalf("build tapscript: %s", err)
	}
	return script
}

func setupFake(t *testing.T, committedHeight int64, spkType string) (*rpctest.Fake, *chainhash.Hash) {
	t.Helper()
	f := rpctest.New()

	prevHash, err := chainhash.NewHashFromStr(prevTxidHex)
	if err != nil {
		t.Fatalf("hash: %s", err)
	}

	blockHashHex := strings.Repeat("2", 64)
	blockHash, err := chainhash.NewHashFromStr(blockHashHex)
	if err != nil {
		t.Fatalf("hash: %s", err)
	}

	f.TxsByID[*prevHash] = &btcjson.TxRawResult{
		Vout: []btcjson.Vout{
			{ScriptPubKey: btcjson.ScriptPubKeyResult{Type: spkType}},
		},
		BlockHash: blockHashHex,
	}
	f.HeadersByHash[*blockHash] = &btcjson.GetBlockHeaderVerboseResult{
		Height: int32(committedHeight),
	}
	return f, prevHash
}

func TestCheckMatchesValidCommitment(t *testing.T) {
	f, prevHash := setupFake(t, 840000, common.TaprootScriptType)
	script := tapscriptCommitting(t, "TESTDUNE")

	tx := chain.Tx{Vin: []chain.Vin{{
		TxID:    prevHash.String(),
		Vout:    0,
		Witness: []string{"sig", hex.EncodeToString(script), "controlblock"},
	}}}

	ok, err := Check(f, tx, 840000+common.CommitConfirms-1, "TESTDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Fatalf("expected commitment to be found")
	}
}

func TestCheckRejectsInsufficientConfirmations(t *testing.T) {
	f, prevHash := setupFake(t, 840000, common.TaprootScriptType)
	script := tapscriptCommitting(t, "TESTDUNE")

	tx := chain.Tx{Vin: []chain.Vin{{
		TxID:    prevHash.String(),
		Vout:    0,
		Witness: []string{"sig", hex.EncodeToString(script), "controlblock"},
	}}}

	ok, err := Check(f, tx, 840000+common.CommitConfirms-2, "TESTDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Fatalf("expected commitment to be rejected for insufficient confirmations")
	}
}

func TestCheckRejectsNonTaprootPrevOutput(t *testing.T) {
	f, prevHash := setupFake(t, 840000, "pubkeyhash")
	script := tapscriptCommitting(t, "TESTDUNE")

	tx := chain.Tx{Vin: []chain.Vin{{
		TxID:    prevHash.String(),
		Vout:    0,
		Witness: []string{"sig", hex.EncodeToString(script), "controlblock"},
	}}}

	ok, err := Check(f, tx, 840000+common.CommitConfirms, "TESTDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Fatalf("expected commitment to be rejected for non-taproot previous output")
	}
}

func TestCheckRejectsWrongName(t *testing.T) {
	f, prevHash := setupFake(t, 840000, common.TaprootScriptType)
	script := tapscriptCommitting(t, "TESTDUNE")

	tx := chain.Tx{Vin: []chain.Vin{{
		TxID:    prevHash.String(),
		Vout:    0,
		Witness: []string{"sig", hex.EncodeToString(script), "controlblock"},
	}}}

	ok, err := Check(f, tx, 840000+common.CommitConfirms, "OTHERDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Fatalf("expected commitment to be rejected for mismatched name")
	}
}

func TestCheckSkipsCoinbaseInput(t *testing.T) {
	f := rpctest.New()
	tx := chain.Tx{Vin: []chain.Vin{{Coinbase: true}}}
	ok, err := Check(f, tx, 900000, "TESTDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Fatalf("coinbase input should never satisfy a commitment")
	}
}

func TestCheckHandlesKeyPathSpendWithNoTapscript(t *testing.T) {
	f := rpctest.New()
	tx := chain.Tx{Vin: []chain.Vin{{
		TxID:    prevTxidHex,
		Vout:    0,
		Witness: []string{"sig"},
	}}}
	ok, err := Check(f, tx, 900000, "TESTDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Fatalf("key-path spend has no tapscript and cannot commit")
	}
}

func TestCheckAnnexShiftsTapscriptOffset(t *testing.T) {
	f, prevHash := setupFake(t, 840000, common.TaprootScriptType)
	script := tapscriptCommitting(t, "TESTDUNE")
	annex := "50" // annex prefix byte

	tx := chain.Tx{Vin: []chain.Vin{{
		TxID:    prevHash.String(),
		Vout:    0,
		Witness: []string{"sig", hex.EncodeToString(script), "controlblock", annex},
	}}}

	ok, err := Check(f, tx, 840000+common.CommitConfirms, "TESTDUNE")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Fatalf("expected commitment to be found with annex present")
	}
}
