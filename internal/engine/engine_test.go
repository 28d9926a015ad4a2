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

package engine

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/bitapeslabs/dunes-indexer/internal/cache"
	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/domain"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc/rpctest"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// opReturnVout builds a nulldata vout carrying payload, encoded as the real
// decoder expects (scriptPubKey.hex with an OP_RETURN push).
func opReturnVout(t *testing.T, payload []byte) chain.Vout {
	t.Helper()
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_RETURN)
	b.AddData(payload)
	script, err := b.Script()
	if err != nil {
		t.Fatalf("build op_return script: %s", err)
	}
	return chain.Vout{ScriptPubKey: chain.ScriptPubKey{Type: "nulldata", Hex: hex.EncodeToString(script)}}
}

func uint128p(u common.Uint128) *common.Uint128 { return &u }

// seedInput creates a spendable input utxo (and its owning transaction) in
// c, carrying duneID -> amount balances, and returns the chain.Vin that
// spends it.
func seedInput(c *cache.BlockCache, prevTxHash string, balances map[int64]common.Uint128) chain.Vin {
	prevTx := c.FindOrCreateTransaction(prevTxHash)
	addr := c.FindOrCreateAddress("bc1qsender")
	u := c.CreateUtxo(domain.Utxo{TransactionID: prevTx.ID, VoutIndex: 0, AddressID: addr.ID, ValueSats: 10000, BlockCreated: 839999})
	for duneID, amt := range balances {
		c.CreateUtxoBalance(domain.UtxoBalance{UtxoID: u.ID, DuneID: duneID, Balance: amt})
		c.AddBalance(addr.ID, duneID, amt, false)
	}
	return chain.Vin{TxID: prevTxHash, Vout: 0}
}

func seedDune(c *cache.BlockCache, protocolID, name string) domain.Dune {
	return c.CreateDune(domain.Dune{
		DuneProtocolID: protocolID,
		Name:           name,
		EtchBlock:      840000,
		MintAmount:     common.Uint128FromU64(100),
		MintCap:        uint128p(common.Uint128FromU64(1000)),
	})
}

// runBlock decodes and processes a single-tx block, returning the engine's
// error (if any) for callers that care.
func runBlock(t *testing.T, e *Engine, c *cache.BlockCache, block chain.Block) error {
	t.Helper()
	stones, err := e.DecodeBlock(block)
	if err != nil {
		t.Fatalf("decode block: %s", err)
	}
	return e.ProcessBlock(c, block, stones)
}

func TestEngineEvenSplitEdict(t *testing.T) {
	c := cache.New()
	e := New(nil, testLogger())

	dune := seedDune(c, "840000:1", "SPLITDUNE")
	vin := seedInput(c, "prevtx1", map[int64]common.Uint128{dune.ID: common.Uint128FromU64(300)})

	payload := []byte(`{"p":"dunes","edicts":[{"id":"840000:1","amount":"0","output":4}]}`)
	tx := chain.Tx{
		TxID: "tx-split",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{
			opReturnVout(t, payload),
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qa"}},
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qb"}},
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qc"}},
		},
	}

	block := chain.Block{Height: 840001, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	a, _ := c.FindAddressByString("bc1qa")
	b, _ := c.FindAddressByString("bc1qb")
	cc, _ := c.FindAddressByString("bc1qc")
	balA, _ := c.FindBalance(a.ID, dune.ID)
	balB, _ := c.FindBalance(b.ID, dune.ID)
	balC, _ := c.FindBalance(cc.ID, dune.ID)
	if balA.Balance.Cmp(common.Uint128FromU64(100)) != 0 {
		t.Fatalf("expected 100 to output A, got %s", balA.Balance)
	}
	if balB.Balance.Cmp(common.Uint128FromU64(100)) != 0 {
		t.Fatalf("expected 100 to output B, got %s", balB.Balance)
	}
	if balC.Balance.Cmp(common.Uint128FromU64(100)) != 0 {
		t.Fatalf("expected 100 to output C, got %s", balC.Balance)
	}
}

func TestEngineEvenSplitEdictWithRemainder(t *testing.T) {
	c := cache.New()
	e := New(nil, testLogger())

	dune := seedDune(c, "840000:1", "SPLITDUNE")
	vin := seedInput(c, "prevtx1", map[int64]common.Uint128{dune.ID: common.Uint128FromU64(10)})

	payload := []byte(`{"p":"dunes","edicts":[{"id":"840000:1","amount":"0","output":4}]}`)
	tx := chain.Tx{
		TxID: "tx-split",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{
			opReturnVout(t, payload),
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qa"}},
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qb"}},
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qc"}},
		},
	}

	block := chain.Block{Height: 840001, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	a, _ := c.FindAddressByString("bc1qa")
	b, _ := c.FindAddressByString("bc1qb")
	cc, _ := c.FindAddressByString("bc1qc")
	balA, _ := c.FindBalance(a.ID, dune.ID)
	balB, _ := c.FindBalance(b.ID, dune.ID)
	balC, _ := c.FindBalance(cc.ID, dune.ID)
	total := balA.Balance.MustAdd(balB.Balance).MustAdd(balC.Balance)
	if total.Cmp(common.Uint128FromU64(10)) != 0 {
		t.Fatalf("expected total of 10 distributed, got %s", total)
	}
	// floor(10/3)=3 remainder 1: the first non-OP_RETURN output gets the
	// extra unit.
	if balA.Balance.Cmp(common.Uint128FromU64(4)) != 0 {
		t.Fatalf("expected first output to receive the remainder unit (4), got %s", balA.Balance)
	}
}

func TestEnginePerOutputEdict(t *testing.T) {
	c := cache.New()
	e := New(nil, testLogger())

	dune := seedDune(c, "840000:1", "TARGETDUNE")
	vin := seedInput(c, "prevtx2", map[int64]common.Uint128{dune.ID: common.Uint128FromU64(500)})

	payload := []byte(`{"p":"dunes","edicts":[{"id":"840000:1","amount":"200","output":1}]}`)
	tx := chain.Tx{
		TxID: "tx-perout",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{
			opReturnVout(t, payload),
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qtarget"}},
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qother"}},
		},
	}

	block := chain.Block{Height: 840001, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	target, _ := c.FindAddressByString("bc1qtarget")
	other, _ := c.FindAddressByString("bc1qother")
	balTarget, _ := c.FindBalance(target.ID, dune.ID)
	balOther, _ := c.FindBalance(other.ID, dune.ID)
	if balTarget.Balance.Cmp(common.Uint128FromU64(500)) != 0 {
		t.Fatalf("expected 200 from the edict plus the 300 swept remainder at the named output, got %s", balTarget.Balance)
	}
	// the pointer sweep (Step F) carries the untouched remainder to the
	// first non-OP_RETURN output, which is also bc1qtarget here.
	if !balOther.Balance.IsZero() {
		t.Fatalf("expected no balance swept to the second output, got %s", balOther.Balance)
	}
}

func TestEngineMintAfterEtchViaGenesis(t *testing.T) {
	c := cache.New()
	e := New(nil, testLogger())

	etchTx := chain.Tx{TxID: "coinbase", Vin: []chain.Vin{{Coinbase: true}}, Vout: []chain.Vout{
		{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qminer"}},
	}}
	mintVin := seedInput(c, "prevtx3", nil)
	payload := []byte(`{"p":"dunes","mint":"1:0"}`)
	mintTx := chain.Tx{
		TxID: "tx-mint",
		Vin:  []chain.Vin{mintVin},
		Vout: []chain.Vout{opReturnVout(t, payload), {ScriptPubKey: chain.ScriptPubKey{Address: "bc1qminter"}}},
	}

	block := chain.Block{Height: common.GenesisBlock, Tx: []chain.Tx{etchTx, mintTx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	dune, ok := c.FindDuneByProtocolID("1:0")
	if !ok {
		t.Fatalf("expected genesis dune to be etched")
	}
	if dune.Mints.Cmp(common.Uint128FromU64(1)) != 0 {
		t.Fatalf("expected one mint recorded, got %s", dune.Mints)
	}
	minter, _ := c.FindAddressByString("bc1qminter")
	bal, _ := c.FindBalance(minter.ID, dune.ID)
	if bal.Balance.Cmp(dune.MintAmount) != 0 {
		t.Fatalf("expected minter to receive the genesis mint amount, got %s want %s", bal.Balance, dune.MintAmount)
	}
}

func TestEngineCenotaphBurnsEverything(t *testing.T) {
	c := cache.New()
	e := New(nil, testLogger())

	dune := seedDune(c, "840000:1", "BURNDUNE")
	vin := seedInput(c, "prevtx4", map[int64]common.Uint128{dune.ID: common.Uint128FromU64(77)})

	// an edict naming an out-of-range output makes the dunestone a cenotaph.
	payload := []byte(`{"p":"dunes","edicts":[{"id":"840000:1","amount":"1","output":99}]}`)
	tx := chain.Tx{
		TxID: "tx-cenotaph",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{opReturnVout(t, payload), {ScriptPubKey: chain.ScriptPubKey{Address: "bc1qsomeone"}}},
	}

	block := chain.Block{Height: 840001, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	someone, _ := c.FindAddressByString("bc1qsomeone")
	balSomeone, _ := c.FindBalance(someone.ID, dune.ID)
	if !balSomeone.Balance.IsZero() {
		t.Fatalf("expected no balance to reach the named output on cenotaph, got %s", balSomeone.Balance)
	}
	balBurned, _ := c.FindBalance(common.AddressIDOpReturn, dune.ID)
	if !balBurned.Balance.IsZero() {
		t.Fatalf("expected burned units to be held by no address balance, got %s at OP_RETURN", balBurned.Balance)
	}
	updatedDune, _ := c.FindDuneByID(dune.ID)
	if updatedDune.BurntAmount.Cmp(common.Uint128FromU64(77)) != 0 {
		t.Fatalf("expected dune's burnt amount tracked, got %s", updatedDune.BurntAmount)
	}
}

func TestEngineFlexMint(t *testing.T) {
	c := cache.New()
	e := New(nil, testLogger())

	priceAmt := uint64(1000)
	payTo := "bc1qtreasury"
	dune := c.CreateDune(domain.Dune{
		DuneProtocolID: "840000:2",
		Name:           "FLEXDUNE",
		EtchBlock:      840000,
		MintAmount:     common.Uint128{},
		PriceAmount:    &priceAmt,
		PricePayTo:     &payTo,
	})

	vin := seedInput(c, "prevtx5", nil)
	payload := []byte(`{"p":"dunes","mint":"840000:2","pointer":2}`)
	tx := chain.Tx{
		TxID: "tx-flexmint",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{
			opReturnVout(t, payload),
			{ScriptPubKey: chain.ScriptPubKey{Address: payTo}, ValueSats: 5000},
			{ScriptPubKey: chain.ScriptPubKey{Address: "bc1qminter"}},
		},
	}

	block := chain.Block{Height: 840001, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	minter, _ := c.FindAddressByString("bc1qminter")
	bal, _ := c.FindBalance(minter.ID, dune.ID)
	if bal.Balance.Cmp(common.Uint128FromU64(5)) != 0 {
		t.Fatalf("expected floor(5000/1000)=5 units minted to minter, got %s", bal.Balance)
	}
}

func TestEngineEtchWithCommitment(t *testing.T) {
	f := rpctest.New()
	e := New(f, testLogger())
	c := cache.New()

	prevTxidHex := strings.Repeat("3", 64)
	blockHashHex := strings.Repeat("4", 64)
	prevHash, err := chainhash.NewHashFromStr(prevTxidHex)
	if err != nil {
		t.Fatalf("hash: %s", err)
	}
	blockHash, err := chainhash.NewHashFromStr(blockHashHex)
	if err != nil {
		t.Fatalf("hash: %s", err)
	}

	b := txscript.NewScriptBuilder()
	b.AddData(common.RuneNameCommitmentBytes("COMMITMENTDUNE"))
	tapscript, err := b.Script()
	if err != nil {
		t.Fatalf("build tapscript: %s", err)
	}

	f.TxsByID[*prevHash] = &btcjson.TxRawResult{
		Vout:      []btcjson.Vout{{ScriptPubKey: btcjson.ScriptPubKeyResult{Type: common.TaprootScriptType}}},
		BlockHash: blockHashHex,
	}
	f.HeadersByHash[*blockHash] = &btcjson.GetBlockHeaderVerboseResult{Height: 839990}

	etchBlockHeight := int64(839990) + common.CommitConfirms
	vin := chain.Vin{TxID: prevHash.String(), Vout: 0, Witness: []string{"sig", hex.EncodeToString(tapscript), "controlblock"}}
	payload := []byte(`{"p":"dunes","etching":{"dune":"COMMITMENTDUNE","premine":"1000"}}`)
	tx := chain.Tx{
		TxID: "tx-etch",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{opReturnVout(t, payload), {ScriptPubKey: chain.ScriptPubKey{Address: "bc1qetcher"}}},
	}

	block := chain.Block{Height: etchBlockHeight, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	dune, ok := c.FindDuneByName("COMMITMENTDUNE")
	if !ok {
		t.Fatalf("expected etching to succeed once the commitment is found")
	}
	if dune.Premine.Cmp(common.Uint128FromU64(1000)) != 0 {
		t.Fatalf("expected premine 1000, got %s", dune.Premine)
	}
	etcher, _ := c.FindAddressByString("bc1qetcher")
	bal, _ := c.FindBalance(etcher.ID, dune.ID)
	if bal.Balance.Cmp(common.Uint128FromU64(1000)) != 0 {
		t.Fatalf("expected premine swept to etcher via pointer, got %s", bal.Balance)
	}
}

func TestEngineEtchRejectedWithoutCommitment(t *testing.T) {
	f := rpctest.New() // empty: the key-path witness has no tapscript, so no RPC call is made
	e := New(f, testLogger())
	c := cache.New()

	prevTxidHex := strings.Repeat("5", 64)
	vin := chain.Vin{TxID: prevTxidHex, Vout: 0, Witness: []string{"sig"}}
	payload := []byte(`{"p":"dunes","etching":{"dune":"NOCOMMITMENTDUNE"}}`)
	tx := chain.Tx{
		TxID: "tx-etch-reject",
		Vin:  []chain.Vin{vin},
		Vout: []chain.Vout{opReturnVout(t, payload), {ScriptPubKey: chain.ScriptPubKey{Address: "bc1qetcher"}}},
	}

	block := chain.Block{Height: 840001, Tx: []chain.Tx{tx}}
	if err := runBlock(t, e, c, block); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if _, ok := c.FindDuneByName("NOCOMMITMENTDUNE"); ok {
		t.Fatalf("expected etching to be rejected without a valid commitment")
	}
}
