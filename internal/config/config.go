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

package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the process-wide configuration, loaded first from an optional
// YAML file and then overlaid with environment variables.
type Config struct {
	Network string        `yaml:"network" envconfig:"NETWORK"`
	Logging LoggingConfig `yaml:"logging"`
	Bitcoin BitcoinConfig `yaml:"bitcoin"`
	Storage StorageConfig `yaml:"storage"`
	Indexer IndexerConfig `yaml:"indexer"`
	HTTP    HTTPConfig    `yaml:"http"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOGGING_LEVEL"`
}

// BitcoinConfig holds the RPC endpoint for the out-of-scope Bitcoin Core
// node the block reader pulls blocks and witness data from.
type BitcoinConfig struct {
	RPCHost string `yaml:"rpcHost" envconfig:"BITCOIN_RPC_HOST"`
	RPCUser string `yaml:"rpcUser" envconfig:"BITCOIN_RPC_USER"`
	RPCPass string `yaml:"rpcPass" envconfig:"BITCOIN_RPC_PASS"`
	RPCTLS  bool   `yaml:"rpcTLS" envconfig:"BITCOIN_RPC_TLS"`
}

type StorageConfig struct {
	// Path is a sqlite DSN/file path, e.g. "./dunes.db".
	Path string `yaml:"path" envconfig:"STORAGE_PATH"`
}

type IndexerConfig struct {
	GenesisHeight     int64 `yaml:"genesisHeight"     envconfig:"GENESIS_HEIGHT"`
	ChunkSize         int   `yaml:"chunkSize"         envconfig:"GET_BLOCK_CHUNK_SIZE"`
	MaxBlockCacheSize int   `yaml:"maxBlockCacheSize" envconfig:"MAX_BLOCK_CACHE_SIZE"`
}

type HTTPConfig struct {
	ListenAddress string `yaml:"address" envconfig:"HTTP_LISTEN_ADDRESS"`
	ListenPort    uint   `yaml:"port"    envconfig:"HTTP_LISTEN_PORT"`
}

// Singleton config instance with default values, following the teacher's
// package-level defaulted struct + Load(file) pattern.
var globalConfig = &Config{
	Network: "mainnet",
	Logging: LoggingConfig{
		Level: "info",
	},
	Storage: StorageConfig{
		Path: "./dunes.db",
	},
	Indexer: IndexerConfig{
		GenesisHeight:     840_000,
		ChunkSize:         16,
		MaxBlockCacheSize: 64,
	},
	HTTP: HTTPConfig{
		ListenAddress: "0.0.0.0",
		ListenPort:    8080,
	},
}

// Load reads an optional YAML config file and then overlays environment
// variables onto the package-level Config singleton.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("dunes", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	switch globalConfig.Network {
	case "mainnet", "testnet", "regtest":
	default:
		return nil, fmt.Errorf("unknown network name: %s", globalConfig.Network)
	}
	return globalConfig, nil
}

// GetConfig returns the global config singleton, loading defaults if Load
// was never called (mirrors the teacher's config accessor).
func GetConfig() *Config {
	return globalConfig
}
