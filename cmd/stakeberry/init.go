package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/stakeberry/chain"
	"github.com/blockberries/stakeberry/config"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

var (
	initChainID       string
	initDataDir       string
	initInitialSupply int64
	initForce         bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new node",
	Long: `Initialize a new Stakeberry node.

This command creates:
  - config.toml: node configuration
  - witness_key.json: the bootstrap witness signing key
  - genesis.json: the chain's genesis parameters
  - data/: block log and state directories

Example:
  stakeberry init --chain-id mychain`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initChainID, "chain-id", "stakeberry-testnet-1", "chain ID for the network")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", ".", "directory for configuration and data")
	initCmd.Flags().Int64Var(&initInitialSupply, "initial-supply", 0, "liquid core credited to the bootstrap account")
	initCmd.Flags().BoolVar(&initForce, "force", false, "override existing configuration")
}

// GenesisDoc pins the genesis parameters so every node, and every
// replay, seeds identical state.
type GenesisDoc struct {
	ChainID       string      `json:"chain_id"`
	Time          int64       `json:"time"`
	InitMinerKey  string      `json:"initminer_key"`
	InitialSupply types.Share `json:"initial_supply"`
}

// GenesisConfig converts the document into the chain's genesis input.
func (g *GenesisDoc) GenesisConfig() (chain.GenesisConfig, error) {
	key, err := protocol.PublicKeyFromHex(g.InitMinerKey)
	if err != nil {
		return chain.GenesisConfig{}, fmt.Errorf("genesis initminer key: %w", err)
	}
	return chain.GenesisConfig{
		Time:          types.TimeFromUnix(g.Time),
		InitMinerKey:  key,
		InitialSupply: g.InitialSupply,
	}, nil
}

func genesisPath(dataDir string) string {
	return filepath.Join(dataDir, "genesis.json")
}

func loadGenesisDoc(path string) (*GenesisDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis document: %w", err)
	}
	doc := new(GenesisDoc)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing genesis document: %w", err)
	}
	return doc, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := initDataDir
	configPath := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config.toml already exists; use --force to override")
	}

	cfg := config.DefaultConfig()
	cfg.Node.ChainID = initChainID
	cfg.Node.DataDir = filepath.Join(dataDir, "data")
	cfg.Witness.PrivateKeyPath = filepath.Join(dataDir, "witness_key.json")
	cfg.BlockLog.Path = filepath.Join(dataDir, "data", "blocklog")
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	pub, err := generateWitnessKey(cfg.Witness.PrivateKeyPath)
	if err != nil {
		return err
	}

	// Align genesis with the slot grid so the first block's timing
	// checks out.
	genesisTime := time.Now().Unix()
	genesisTime -= genesisTime % chain.BlockIntervalSec
	doc := GenesisDoc{
		ChainID:       initChainID,
		Time:          genesisTime,
		InitMinerKey:  pub.String(),
		InitialSupply: types.Share(initInitialSupply),
	}
	docData, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(genesisPath(dataDir), docData, 0644); err != nil {
		return fmt.Errorf("writing genesis document: %w", err)
	}

	if err := config.WriteConfigFile(configPath, cfg); err != nil {
		return err
	}

	fmt.Printf("Initialized node in %s\n", dataDir)
	fmt.Printf("  Chain ID:    %s\n", initChainID)
	fmt.Printf("  Witness key: %s\n", cfg.Witness.PrivateKeyPath)
	fmt.Printf("  Genesis:     %s\n", genesisPath(dataDir))
	return nil
}
