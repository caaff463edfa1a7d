// Package config loads and validates the node's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for a stakeberry node.
type Config struct {
	Node     NodeConfig     `toml:"node"`
	Witness  WitnessConfig  `toml:"witness"`
	BlockLog BlockLogConfig `toml:"blocklog"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

// NodeConfig contains node identity and chain configuration.
type NodeConfig struct {
	// ChainID is the unique identifier for the blockchain network.
	ChainID string `toml:"chain_id"`

	// DataDir is the root directory for all node data.
	DataDir string `toml:"data_dir"`
}

// WitnessConfig contains block production configuration.
type WitnessConfig struct {
	// Enabled determines whether this node produces blocks.
	Enabled bool `toml:"enabled"`

	// Name is the witness account to produce as.
	Name string `toml:"name"`

	// PrivateKeyPath is the path to the witness Ed25519 signing key file.
	PrivateKeyPath string `toml:"private_key_path"`

	// RequiredParticipation is the minimum fraction of recent slots that
	// must be filled before this node produces, in percent.
	RequiredParticipation int `toml:"required_participation"`
}

// BlockLogConfig contains block storage configuration.
type BlockLogConfig struct {
	// Backend is the storage backend to use ("leveldb", "badgerdb" or "memory").
	Backend string `toml:"backend"`

	// Path is the directory path for block storage.
	Path string `toml:"path"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is the log output destination ("stdout", "stderr", or a file path).
	Output string `toml:"output"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ChainID: "stakeberry-testnet-1",
			DataDir: "data",
		},
		Witness: WitnessConfig{
			Enabled:               false,
			PrivateKeyPath:        "witness_key.json",
			RequiredParticipation: 33,
		},
		BlockLog: BlockLogConfig{
			Backend: "leveldb",
			Path:    "data/blocklog",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "stakeberry",
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrEmptyChainID           = errors.New("chain_id cannot be empty")
	ErrEmptyDataDir           = errors.New("data_dir cannot be empty")
	ErrEmptyWitnessName       = errors.New("witness name cannot be empty when production is enabled")
	ErrEmptyPrivateKeyPath    = errors.New("private_key_path cannot be empty when production is enabled")
	ErrInvalidParticipation   = errors.New("required_participation must be between 0 and 100")
	ErrInvalidBlockLogBackend = errors.New("blocklog backend must be 'leveldb', 'badgerdb' or 'memory'")
	ErrEmptyBlockLogPath      = errors.New("blocklog path cannot be empty")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput         = errors.New("log output cannot be empty")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node config: %w", err)
	}
	if err := c.Witness.Validate(); err != nil {
		return fmt.Errorf("witness config: %w", err)
	}
	if err := c.BlockLog.Validate(); err != nil {
		return fmt.Errorf("blocklog config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the node configuration for errors.
func (c *NodeConfig) Validate() error {
	if c.ChainID == "" {
		return ErrEmptyChainID
	}
	if c.DataDir == "" {
		return ErrEmptyDataDir
	}
	return nil
}

// Validate checks the witness configuration for errors.
func (c *WitnessConfig) Validate() error {
	if c.Enabled {
		if c.Name == "" {
			return ErrEmptyWitnessName
		}
		if c.PrivateKeyPath == "" {
			return ErrEmptyPrivateKeyPath
		}
	}
	if c.RequiredParticipation < 0 || c.RequiredParticipation > 100 {
		return ErrInvalidParticipation
	}
	return nil
}

// Validate checks the block log configuration for errors.
func (c *BlockLogConfig) Validate() error {
	switch c.Backend {
	case "leveldb", "badgerdb", "memory":
	default:
		return ErrInvalidBlockLogBackend
	}
	if c.Backend != "memory" && c.Path == "" {
		return ErrEmptyBlockLogPath
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
		// Valid formats
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}

	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// EnsureDataDirs creates the data directories specified in the configuration.
func (c *Config) EnsureDataDirs() error {
	dirs := []string{
		c.Node.DataDir,
		filepath.Dir(c.Witness.PrivateKeyPath),
		c.BlockLog.Path,
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return nil
}
