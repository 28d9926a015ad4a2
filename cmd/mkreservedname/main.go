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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bitapeslabs/dunes-indexer/internal/common"
)

var cmdlineFlags struct {
	block uint64
	tx    uint
}

func main() {
	flag.Uint64Var(&cmdlineFlags.block, "block", 0, "block height of the unnamed etching")
	flag.UintVar(&cmdlineFlags.tx, "tx", 0, "transaction index within the block")
	flag.Parse()

	if cmdlineFlags.block == 0 {
		fmt.Printf("ERROR: you must specify -block\n")
		os.Exit(1)
	}

	name := common.ReservedName(cmdlineFlags.block, uint32(cmdlineFlags.tx))
	fmt.Printf("Reserved name: %s\n", name)
	fmt.Printf("Min name length at block %d: %d\n", cmdlineFlags.block, common.MinNameLength(cmdlineFlags.block))
}
