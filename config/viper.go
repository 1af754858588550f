// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/htlc/factory"
	"github.com/luxfi/htlc/utils"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// AddFlags registers the command line options read by BuildViper
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Path to a JSON or YAML configuration file")
	fs.String(LogLevelKey, defaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String(DBPathKey, "", "Swap record database directory. Empty keeps records in memory")
	fs.String(ResolverAddressKey, "", "Resolver account address")
}

// Build the viper instance. The config file is optional and may be provided
// via the command line flag or the HTLC_CONFIG_FILE environment variable.
// All config keys may be provided via config file or environment variable.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map key names to env var names: HTLC_RETRY_MAX_INTERVAL sets retry.max-interval.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	filename := v.GetString(ConfigFileKey)
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(os.ExpandEnv(filename))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
	v.SetDefault(SecretCacheTTLKey, defaultSecretCacheTTL)
	v.SetDefault(MaxConcurrencyKey, defaultMaxConcurrency)
	v.SetDefault(AddressCacheKey, factory.DefaultAddressCacheSize)
	v.SetDefault(RetryInitialIntervalKey, utils.DefaultRetryPolicy.InitialInterval)
	v.SetDefault(RetryMaxIntervalKey, utils.DefaultRetryPolicy.MaxInterval)
	v.SetDefault(RetryTimeoutKey, utils.DefaultRetryPolicy.Timeout)
}

// BuildConfig constructs the resolver config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
