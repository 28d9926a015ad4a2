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
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitapeslabs/dunes-indexer/internal/blockreader"
	"github.com/bitapeslabs/dunes-indexer/internal/cache"
	"github.com/bitapeslabs/dunes-indexer/internal/chain"
	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/config"
	"github.com/bitapeslabs/dunes-indexer/internal/engine"
	"github.com/bitapeslabs/dunes-indexer/internal/httpapi"
	"github.com/bitapeslabs/dunes-indexer/internal/logging"
	"github.com/bitapeslabs/dunes-indexer/internal/rpc"
	"github.com/bitapeslabs/dunes-indexer/internal/store"
	"github.com/bitapeslabs/dunes-indexer/internal/version"
	"go.uber.org/zap"

	_ "go.uber.org/automaxprocs"
)

const programName = "dunesindexer"

var cmdlineFlags struct {
	configFile string
	version    bool
}

func main() {
	flag.StringVar(&cmdlineFlags.configFile, "config", "", "path to config file to load")
	flag.BoolVar(&cmdlineFlags.version, "version", false, "show version")
	flag.Parse()

	if cmdlineFlags.version {
		fmt.Printf("%s %s\n", programName, version.GetVersionString())
		os.Exit(0)
	}

	cfg, err := config.Load(cmdlineFlags.configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %s\n", err)
		os.Exit(1)
	}

	logging.Configure()
	logger := logging.GetLogger()
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("%s", err)
	}
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	client, err := rpc.New(cfg.Bitcoin)
	if err != nil {
		return fmt.Errorf("connect to bitcoind: %w", err)
	}

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	if err := st.EnsureReservedAddresses(); err != nil {
		return fmt.Errorf("seed reserved addresses: %w", err)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.ListenAddress, cfg.HTTP.ListenPort),
		Handler: httpapi.New(st, logger).Router(),
	}
	go func() {
		logger.Infof("starting http query surface on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server failed: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := blockreader.New(client, logger, cfg.Indexer.ChunkSize, cfg.Indexer.MaxBlockCacheSize)
	eng := engine.New(client, logger)

	tip, err := reader.Tip()
	if err != nil {
		return fmt.Errorf("get chain tip: %w", err)
	}
	startHeight := cfg.Indexer.GenesisHeight
	if startHeight < common.GenesisBlock {
		startHeight = common.GenesisBlock
	}
	logger.Infof("indexing from block %d to tip %d", startHeight, tip)

	err = reader.Stream(ctx, startHeight, tip, func(block chain.Block) error {
		return processBlock(eng, st, block)
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream blocks: %w", err)
	}
	return nil
}

func processBlock(eng *engine.Engine, st store.Store, block chain.Block) error {
	stones, err := eng.DecodeBlock(block)
	if err != nil {
		return err
	}
	c := cache.New()
	if err := c.Prefetch(st, block, stones); err != nil {
		return err
	}
	if err := eng.ProcessBlock(c, block, stones); err != nil {
		return err
	}
	return c.Flush(st)
}
