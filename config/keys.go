// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable prefix. HTLC_LOG_LEVEL sets log-level.
	EnvPrefix = "htlc"

	// Top-level configuration keys
	LogLevelKey        = "log-level"
	MetricsPortKey     = "metrics-port"
	DBPathKey          = "db-path"
	ResolverAddressKey = "resolver-address"
	SecretCacheTTLKey  = "secret-cache-ttl"
	MaxConcurrencyKey  = "max-concurrency"
	AddressCacheKey    = "address-cache-size"

	// Retry keys
	RetryInitialIntervalKey = "retry.initial-interval"
	RetryMaxIntervalKey     = "retry.max-interval"
	RetryTimeoutKey         = "retry.timeout"

	// Per-chain sections
	SourceKey      = "source"
	DestinationKey = "destination"
)
