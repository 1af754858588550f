// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/htlc/factory"
	"github.com/luxfi/htlc/utils"
)

const (
	defaultLogLevel       = "info"
	defaultMetricsPort    = uint16(9090)
	defaultSecretCacheTTL = 2 * time.Second
	defaultMaxConcurrency = 8
)

var (
	errInvalidChainID = errors.New("chain id must be 32 hex-encoded bytes")
	errInvalidAddress = errors.New("invalid hex address")
	errSameChain      = errors.New("source and destination chain must differ")
)

// ChainConfig describes one chain the resolver operates on and the factory
// deployed there
type ChainConfig struct {
	ChainID        string `mapstructure:"chain-id" json:"chain-id"`
	FactoryAddress string `mapstructure:"factory-address" json:"factory-address"`
	NativeToken    string `mapstructure:"native-token" json:"native-token"`
	AccessToken    string `mapstructure:"access-token" json:"access-token"`
	SrcRescueDelay uint32 `mapstructure:"src-rescue-delay" json:"src-rescue-delay"`
	DstRescueDelay uint32 `mapstructure:"dst-rescue-delay" json:"dst-rescue-delay"`

	// convenience fields populated during validation
	chainID ids.ID
	factory factory.Config
}

// Validate parses the hex fields of the section
func (c *ChainConfig) Validate() error {
	b := common.FromHex(c.ChainID)
	if len(b) != len(ids.ID{}) {
		return fmt.Errorf("%w: %q", errInvalidChainID, c.ChainID)
	}
	copy(c.chainID[:], b)

	addrs := []struct {
		name  string
		value string
		out   *common.Address
	}{
		{"factory-address", c.FactoryAddress, &c.factory.Address},
		{"native-token", c.NativeToken, &c.factory.NativeToken},
		{"access-token", c.AccessToken, &c.factory.AccessToken},
	}
	for _, a := range addrs {
		if !common.IsHexAddress(a.value) {
			return fmt.Errorf("%w: %s %q", errInvalidAddress, a.name, a.value)
		}
		*a.out = common.HexToAddress(a.value)
	}
	c.factory.SrcRescueDelay = c.SrcRescueDelay
	c.factory.DstRescueDelay = c.DstRescueDelay
	return nil
}

// GetChainID returns the parsed chain identifier
func (c *ChainConfig) GetChainID() ids.ID {
	return c.chainID
}

// GetFactoryConfig returns the factory configuration for this chain
func (c *ChainConfig) GetFactoryConfig() *factory.Config {
	cfg := c.factory
	return &cfg
}

// RetryConfig shapes how long the resolver waits for a window to open
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial-interval" json:"initial-interval"`
	MaxInterval     time.Duration `mapstructure:"max-interval" json:"max-interval"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Config is the resolver service configuration
type Config struct {
	LogLevel         string        `mapstructure:"log-level" json:"log-level"`
	MetricsPort      uint16        `mapstructure:"metrics-port" json:"metrics-port"`
	DBPath           string        `mapstructure:"db-path" json:"db-path"`
	ResolverAddress  string        `mapstructure:"resolver-address" json:"resolver-address"`
	SecretCacheTTL   time.Duration `mapstructure:"secret-cache-ttl" json:"secret-cache-ttl"`
	MaxConcurrency   int           `mapstructure:"max-concurrency" json:"max-concurrency"`
	AddressCacheSize int           `mapstructure:"address-cache-size" json:"address-cache-size"`
	Retry            RetryConfig   `mapstructure:"retry" json:"retry"`
	Source           ChainConfig   `mapstructure:"source" json:"source"`
	Destination      ChainConfig   `mapstructure:"destination" json:"destination"`

	// convenience fields populated during validation
	resolverAddress common.Address
	logLevel        zapcore.Level
}

// Validate checks the configuration and populates the parsed fields
func (c *Config) Validate() error {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.logLevel = level

	if !common.IsHexAddress(c.ResolverAddress) {
		return fmt.Errorf("%w: %s %q", errInvalidAddress, ResolverAddressKey, c.ResolverAddress)
	}
	c.resolverAddress = common.HexToAddress(c.ResolverAddress)

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("invalid %s config: %w", SourceKey, err)
	}
	if err := c.Destination.Validate(); err != nil {
		return fmt.Errorf("invalid %s config: %w", DestinationKey, err)
	}
	if c.Source.chainID == c.Destination.chainID {
		return errSameChain
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry max interval %s below initial interval %s",
			c.Retry.MaxInterval, c.Retry.InitialInterval)
	}
	c.Source.factory.AddressCacheSize = c.AddressCacheSize
	c.Destination.factory.AddressCacheSize = c.AddressCacheSize
	return nil
}

// GetResolverAddress returns the parsed resolver account
func (c *Config) GetResolverAddress() common.Address {
	return c.resolverAddress
}

// GetRetryPolicy returns the resolver retry policy
func (c *Config) GetRetryPolicy() utils.RetryPolicy {
	return utils.RetryPolicy{
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		Timeout:         c.Retry.Timeout,
	}
}

// NewLogger builds a JSON zap logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(c.logLevel)
	return zc.Build()
}
