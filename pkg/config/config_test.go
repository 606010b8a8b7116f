package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, int64(1), cfg.ChainID)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.True(t, cfg.BackupEnabled)
	assert.Equal(t, 3600, cfg.BackupPeriodSeconds)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
environment: production
rpc_url: https://mainnet.example.com
chain_id: 1
wallet_address: "0x1111111111111111111111111111111111111111"
sender_address: "0x2222222222222222222222222222222222222222"
nats_url: nats://localhost:4222
backup_enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://mainnet.example.com", cfg.RPCURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.False(t, cfg.BackupEnabled)
	require.NoError(t, cfg.Validate())
}

func TestValidateMissingFields(t *testing.T) {
	cfg := &Config{RPCURL: "http://localhost:8545"}
	assert.Error(t, cfg.Validate())

	cfg.WalletAddress = "0x1111111111111111111111111111111111111111"
	assert.Error(t, cfg.Validate())

	cfg.SenderAddress = "0x2222222222222222222222222222222222222222"
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	viper.Reset()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
