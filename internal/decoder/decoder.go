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

package decoder

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/btcsuite/btcd/txscript"
)

// duneNamePattern matches the etching.dune schema field: 1-31 characters of
// the allowed alphabet.
var duneNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,31}$`)

// rawPayload mirrors the wire JSON shape described in spec.md §6.1. Amount
// fields stay strings here; they're coerced to Uint128 (and range checked)
// during validation.
type rawPayload struct {
	P       string        `json:"p"`
	Edicts  []rawEdict    `json:"edicts"`
	Etching *rawEtching   `json:"etching"`
	Mint    *string       `json:"mint"`
	Pointer *uint32       `json:"pointer"`
}

type rawEdict struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	Output uint32 `json:"output"`
}

type rawTerms struct {
	Amount string        `json:"amount"`
	Cap    *string       `json:"cap"`
	Height [2]*uint64    `json:"height"`
	Offset [2]*uint64    `json:"offset"`
	Price  *rawPrice     `json:"price"`
}

type rawPrice struct {
	Amount uint64 `json:"amount"`
	PayTo  string `json:"pay_to"`
}

type rawEtching struct {
	Divisibility *uint8    `json:"divisibility"`
	Premine      *string   `json:"premine"`
	Dune         *string   `json:"dune"`
	Symbol       *string   `json:"symbol"`
	Terms        *rawTerms `json:"terms"`
	Turbo        *bool     `json:"turbo"`
}

// Decode implements the C1 algorithm of spec.md §4.1 against a single
// transaction: find the OP_RETURN vout, extract and parse its payload, and
// classify the result as a well-formed dunestone or a cenotaph.
func Decode(tx chain.Tx) (Dunestone, error) {
	vout, found := findOpReturn(tx.Vout)
	if !found {
		// No OP_RETURN at all: not a dunes transaction.
		return Dunestone{}, nil
	}

	payloadBytes, ok := extractPayload(vout)
	if !ok {
		return Dunestone{Cenotaph: true}, nil
	}

	var raw rawPayload
	if err := json.Unmarshal(payloadBytes, &raw); err != nil {
		return Dunestone{Cenotaph: true}, nil
	}
	if !common.ProtocolTags[raw.P] {
		return Dunestone{Cenotaph: true}, nil
	}

	stone, ok := validate(raw, uint32(len(tx.Vout)))
	if !ok {
		stone.Cenotaph = true
	}
	return stone, nil
}

// findOpReturn returns the first vout whose scriptPubKey is nulldata or
// whose ASM starts with OP_RETURN.
func findOpReturn(vouts []chain.Vout) (chain.Vout, bool) {
	for _, v := range vouts {
		if v.ScriptPubKey.Type == "nulldata" ||
			strings.HasPrefix(strings.TrimSpace(v.ScriptPubKey.Asm), "OP_RETURN") {
			return v, true
		}
	}
	return chain.Vout{}, false
}

// extractPayload pulls the raw payload bytes out of an OP_RETURN vout,
// preferring the hex script (authoritative) and falling back to ASM.
func extractPayload(vout chain.Vout) ([]byte, bool) {
	if vout.ScriptPubKey.Hex != "" {
		script, err := hex.DecodeString(vout.ScriptPubKey.Hex)
		if err == nil {
			if payload, ok := extractFromScript(script); ok {
				return payload, true
			}
		}
	}
	return extractFromAsm(vout.ScriptPubKey.Asm)
}

// extractFromScript strips the leading OP_RETURN opcode and decodes every
// subsequent data push, concatenating them in order. This also naturally
// handles the OP_PUSHDATA1/2/4 length-prefix forms via txscript's tokenizer.
func extractFromScript(script []byte) ([]byte, bool) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, false
	}
	tok := txscript.MakeScriptTokenizer(0, script[1:])
	var buf []byte
	any := false
	for tok.Next() {
		if len(tok.Data()) > 0 {
			buf = append(buf, tok.Data()...)
			any = true
		}
	}
	if tok.Err() != nil || !any {
		return nil, false
	}
	return buf, true
}

// extractFromAsm parses the "OP_RETURN <hex...>" ASM form, concatenating
// every hex token following the opcode.
func extractFromAsm(asm string) ([]byte, bool) {
	fields := strings.Fields(asm)
	if len(fields) == 0 || fields[0] != "OP_RETURN" {
		return nil, false
	}
	var buf []byte
	for _, f := range fields[1:] {
		b, err := hex.DecodeString(f)
		if err != nil {
			return nil, false
		}
		buf = append(buf, b...)
	}
	if len(buf) == 0 {
		return nil, false
	}
	return buf, true
}

// validate runs the remaining schema/range checks of spec.md §4.1 steps
// 4-6. The returned Dunestone is fully validated iff ok is true; on failure
// it holds whatever fields were parsed before the failing check, and Decode
// returns it marked as a cenotaph.
func validate(raw rawPayload, voutCount uint32) (Dunestone, bool) {
	var stone Dunestone

	for _, re := range raw.Edicts {
		id, err := parseDuneID(re.ID)
		if err != nil {
			return stone, false
		}
		if id.Block == 0 && id.Tx != 0 {
			return stone, false
		}
		amount, err := common.ParseUint128(re.Amount)
		if err != nil {
			return stone, false
		}
		if re.Output > voutCount {
			return stone, false
		}
		stone.Edicts = append(stone.Edicts, Edict{ID: id, Amount: amount, Output: re.Output})
	}

	if raw.Etching != nil {
		etching, ok := validateEtching(raw.Etching)
		if !ok {
			return stone, false
		}
		stone.Etching = etching
	}

	if raw.Mint != nil {
		id, err := parseDuneID(*raw.Mint)
		if err != nil {
			return stone, false
		}
		stone.Mint = &id
	}

	// Pointer validity (whether it names an in-range output) is an
	// engine-side concern (§4.5 Step F), not a decode-time failure.
	stone.Pointer = raw.Pointer

	return stone, true
}

func validateEtching(re *rawEtching) (*Etching, bool) {
	e := &Etching{Turbo: true}

	if re.Divisibility != nil {
		if *re.Divisibility > 18 {
			return nil, false
		}
		e.Divisibility = *re.Divisibility
	}

	if re.Premine != nil {
		premine, err := common.ParseUint128(*re.Premine)
		if err != nil {
			return nil, false
		}
		e.Premine = premine
	}

	if re.Dune != nil {
		if !duneNamePattern.MatchString(*re.Dune) {
			return nil, false
		}
		e.Name = *re.Dune
		e.HasName = true
	}

	if re.Symbol != nil {
		runes := []rune(*re.Symbol)
		if len(runes) != 1 {
			return nil, false
		}
		e.Symbol = runes[0]
		e.HasSymbol = true
	}

	if re.Turbo != nil {
		e.Turbo = *re.Turbo
	}

	if re.Terms != nil {
		terms, ok := validateTerms(re.Terms)
		if !ok {
			return nil, false
		}
		e.Terms = terms
	}

	return e, true
}

func validateTerms(rt *rawTerms) (*Terms, bool) {
	t := &Terms{}

	if rt.Amount != "" {
		amount, err := common.ParseUint128(rt.Amount)
		if err != nil {
			return nil, false
		}
		t.Amount = amount
	}

	if rt.Cap != nil {
		cap, err := common.ParseUint128(*rt.Cap)
		if err != nil {
			return nil, false
		}
		t.Cap = &cap
	}

	t.HeightStart = rt.Height[0]
	t.HeightEnd = rt.Height[1]
	t.OffsetStart = rt.Offset[0]
	t.OffsetEnd = rt.Offset[1]

	if rt.Price != nil {
		t.Price = &Price{Amount: rt.Price.Amount, PayTo: rt.Price.PayTo}
	}

	return t, true
}

// parseDuneID parses the wire "b:t" form into a DuneID.
func parseDuneID(s string) (DuneID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return DuneID{}, fmt.Errorf("decoder: malformed dune id %q", s)
	}
	block, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return DuneID{}, fmt.Errorf("decoder: malformed dune id %q: %w", s, err)
	}
	tx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return DuneID{}, fmt.Errorf("decoder: malformed dune id %q: %w", s, err)
	}
	return DuneID{Block: block, Tx: uint32(tx)}, nil
}
