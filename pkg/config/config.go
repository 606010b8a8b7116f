// Package config loads daemon configuration from a YAML file and
// environment variables via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all settings for the relay daemon.
type Config struct {
	Environment string `mapstructure:"environment"`

	// Chain settings.
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`

	// Wallet settings.
	WalletAddress string `mapstructure:"wallet_address"`
	SenderAddress string `mapstructure:"sender_address"`
	KeystoreDir   string `mapstructure:"keystore_dir"`

	// API server.
	ListenAddr string `mapstructure:"listen_addr"`

	// Relay history store.
	BadgerDir string `mapstructure:"badger_dir"`

	// Optional NATS event publishing. Empty disables it.
	NATSURL string `mapstructure:"nats_url"`

	// Backup settings.
	BackupEnabled       bool   `mapstructure:"backup_enabled"`
	BackupDir           string `mapstructure:"backup_dir"`
	BackupPeriodSeconds int    `mapstructure:"backup_period_seconds"`
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("rpc_url", "http://localhost:8545")
	viper.SetDefault("chain_id", 1)
	viper.SetDefault("keystore_dir", "keystore")
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("badger_dir", "relay_db")
	// Registered so env-only overrides show up in AllSettings.
	viper.SetDefault("wallet_address", "")
	viper.SetDefault("sender_address", "")
	viper.SetDefault("nats_url", "")
	viper.SetDefault("backup_enabled", true)
	viper.SetDefault("backup_dir", "backups")
	viper.SetDefault("backup_period_seconds", 3600)
}

// Load reads configuration from the given file (optional) plus
// DAPPER_-prefixed environment variables.
func Load(configFile string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("DAPPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("config: rpc_url is required")
	}
	if c.WalletAddress == "" {
		return fmt.Errorf("config: wallet_address is required")
	}
	if c.SenderAddress == "" {
		return fmt.Errorf("config: sender_address is required")
	}
	return nil
}
