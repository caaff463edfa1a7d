package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "stakeberry-testnet-1", cfg.Node.ChainID)
	assert.Equal(t, "data", cfg.Node.DataDir)
	assert.False(t, cfg.Witness.Enabled)
	assert.Equal(t, 33, cfg.Witness.RequiredParticipation)
	assert.Equal(t, "leveldb", cfg.BlockLog.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Defaults must validate
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[node]
chain_id = "stakeberry-mainnet"
data_dir = "/var/lib/stakeberry"

[witness]
enabled = true
name = "initminer"
private_key_path = "/etc/stakeberry/witness_key.json"

[blocklog]
backend = "badgerdb"
path = "/var/lib/stakeberry/blocklog"

[logging]
level = "debug"
format = "json"
output = "stdout"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "stakeberry-mainnet", cfg.Node.ChainID)
	assert.True(t, cfg.Witness.Enabled)
	assert.Equal(t, "initminer", cfg.Witness.Name)
	assert.Equal(t, "badgerdb", cfg.BlockLog.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Unset fields keep their defaults.
	assert.Equal(t, 33, cfg.Witness.RequiredParticipation)
	assert.Equal(t, "stakeberry", cfg.Metrics.Namespace)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid default",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty chain id",
			mutate:  func(c *Config) { c.Node.ChainID = "" },
			wantErr: ErrEmptyChainID,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Node.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name: "witness enabled without name",
			mutate: func(c *Config) {
				c.Witness.Enabled = true
				c.Witness.Name = ""
			},
			wantErr: ErrEmptyWitnessName,
		},
		{
			name: "witness enabled without key path",
			mutate: func(c *Config) {
				c.Witness.Enabled = true
				c.Witness.Name = "initminer"
				c.Witness.PrivateKeyPath = ""
			},
			wantErr: ErrEmptyPrivateKeyPath,
		},
		{
			name:    "participation out of range",
			mutate:  func(c *Config) { c.Witness.RequiredParticipation = 101 },
			wantErr: ErrInvalidParticipation,
		},
		{
			name:    "unknown blocklog backend",
			mutate:  func(c *Config) { c.BlockLog.Backend = "rocksdb" },
			wantErr: ErrInvalidBlockLogBackend,
		},
		{
			name: "empty blocklog path",
			mutate: func(c *Config) {
				c.BlockLog.Backend = "leveldb"
				c.BlockLog.Path = ""
			},
			wantErr: ErrEmptyBlockLogPath,
		},
		{
			name: "memory backend allows empty path",
			mutate: func(c *Config) {
				c.BlockLog.Backend = "memory"
				c.BlockLog.Path = ""
			},
		},
		{
			name: "metrics enabled without namespace",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Namespace = ""
			},
			wantErr: ErrEmptyMetricsNamespace,
		},
		{
			name: "metrics enabled without listen addr",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddr = ""
			},
			wantErr: ErrEmptyMetricsListenAddr,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "empty log output",
			mutate:  func(c *Config) { c.Logging.Output = "" },
			wantErr: ErrEmptyLogOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")

	cfg := DefaultConfig()
	cfg.Node.ChainID = "roundtrip-chain"
	cfg.Witness.Enabled = true
	cfg.Witness.Name = "alice"

	require.NoError(t, WriteConfigFile(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnsureDataDirs(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Node.DataDir = filepath.Join(dir, "data")
	cfg.Witness.PrivateKeyPath = filepath.Join(dir, "keys", "witness_key.json")
	cfg.BlockLog.Path = filepath.Join(dir, "data", "blocklog")

	require.NoError(t, cfg.EnsureDataDirs())

	for _, d := range []string{
		cfg.Node.DataDir,
		filepath.Join(dir, "keys"),
		cfg.BlockLog.Path,
	} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
