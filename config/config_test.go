// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/htlc/factory"
)

const testConfigJSON = `{
	"log-level": "debug",
	"resolver-address": "0x0000000000000000000000000000000000000b0b",
	"secret-cache-ttl": "5s",
	"retry": {"initial-interval": "100ms", "max-interval": "2s", "timeout": "30s"},
	"source": {
		"chain-id": "0x0101010101010101010101010101010101010101010101010101010101010101",
		"factory-address": "0x00000000000000000000000000000000000fac01",
		"native-token": "0x000000000000000000000000000000000000eeee",
		"access-token": "0x000000000000000000000000000000000000acce",
		"src-rescue-delay": 86400,
		"dst-rescue-delay": 86400
	},
	"destination": {
		"chain-id": "0x0202020202020202020202020202020202020202020202020202020202020202",
		"factory-address": "0x00000000000000000000000000000000000fac02",
		"native-token": "0x000000000000000000000000000000000000eeee",
		"access-token": "0x000000000000000000000000000000000000acce",
		"src-rescue-delay": 3600,
		"dst-rescue-delay": 7200
	}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestNewConfigFromFile(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, testConfigJSON)
	v, err := BuildViper(newFlagSet(t, "--"+ConfigFileKey, path))
	require.NoError(err)

	cfg, err := NewConfig(v)
	require.NoError(err)

	require.Equal(zapcore.DebugLevel, cfg.logLevel)
	require.Equal(common.HexToAddress("0x0b0b"), cfg.GetResolverAddress())
	require.Equal(5*time.Second, cfg.SecretCacheTTL)
	require.Equal(defaultMetricsPort, cfg.MetricsPort)
	require.Equal(defaultMaxConcurrency, cfg.MaxConcurrency)

	policy := cfg.GetRetryPolicy()
	require.Equal(100*time.Millisecond, policy.InitialInterval)
	require.Equal(2*time.Second, policy.MaxInterval)
	require.Equal(30*time.Second, policy.Timeout)

	require.Equal(byte(0x01), cfg.Source.GetChainID()[0])
	require.Equal(byte(0x02), cfg.Destination.GetChainID()[31])

	dst := cfg.Destination.GetFactoryConfig()
	require.Equal(common.HexToAddress("0x0fac02"), dst.Address)
	require.Equal(uint32(3600), dst.SrcRescueDelay)
	require.Equal(uint32(7200), dst.DstRescueDelay)
	require.Equal(factory.DefaultAddressCacheSize, dst.AddressCacheSize)

	logger, err := cfg.NewLogger()
	require.NoError(err)
	require.True(logger.Core().Enabled(zapcore.DebugLevel))
}

func TestPrecedence(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, testConfigJSON)
	t.Setenv("HTLC_SECRET_CACHE_TTL", "9s")
	t.Setenv("HTLC_RETRY_TIMEOUT", "1m")
	t.Setenv("HTLC_LOG_LEVEL", "warn")

	// The flag beats both the environment and the file.
	v, err := BuildViper(newFlagSet(t, "--"+ConfigFileKey, path, "--"+LogLevelKey, "error"))
	require.NoError(err)
	cfg, err := NewConfig(v)
	require.NoError(err)

	require.Equal(zapcore.ErrorLevel, cfg.logLevel)
	require.Equal(9*time.Second, cfg.SecretCacheTTL)
	require.Equal(time.Minute, cfg.Retry.Timeout)
}

func TestConfigFileFromEnv(t *testing.T) {
	require := require.New(t)

	t.Setenv("HTLC_CONFIG_FILE", writeConfig(t, testConfigJSON))
	v, err := BuildViper(newFlagSet(t))
	require.NoError(err)
	cfg, err := NewConfig(v)
	require.NoError(err)
	require.Equal("debug", cfg.LogLevel)
}

func TestBuildViperMissingFile(t *testing.T) {
	_, err := BuildViper(newFlagSet(t, "--"+ConfigFileKey, filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{name: "valid"},
		{
			name:   "bad log level",
			modify: func(c *Config) { c.LogLevel = "loud" },
		},
		{
			name:    "bad resolver address",
			modify:  func(c *Config) { c.ResolverAddress = "0x1234" },
			wantErr: errInvalidAddress,
		},
		{
			name:    "short chain id",
			modify:  func(c *Config) { c.Source.ChainID = "0x0102" },
			wantErr: errInvalidChainID,
		},
		{
			name:    "bad factory address",
			modify:  func(c *Config) { c.Destination.FactoryAddress = "factory" },
			wantErr: errInvalidAddress,
		},
		{
			name:    "same chain",
			modify:  func(c *Config) { c.Destination.ChainID = c.Source.ChainID },
			wantErr: errSameChain,
		},
		{
			name: "inverted retry intervals",
			modify: func(c *Config) {
				c.Retry.InitialInterval = time.Second
				c.Retry.MaxInterval = time.Millisecond
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			v, err := BuildViper(newFlagSet(t, "--"+ConfigFileKey, writeConfig(t, testConfigJSON)))
			require.NoError(err)
			cfg, err := BuildConfig(v)
			require.NoError(err)

			if tt.modify == nil {
				require.NoError(cfg.Validate())
				return
			}
			tt.modify(&cfg)
			err = cfg.Validate()
			require.Error(err)
			if tt.wantErr != nil {
				require.ErrorIs(err, tt.wantErr)
			}
		})
	}
}
