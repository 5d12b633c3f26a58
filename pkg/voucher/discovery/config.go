package discovery

import (
	"github.com/gideon-vouchers/voucher-server/pkg/config"
	"github.com/gideon-vouchers/voucher-server/pkg/config/env"
	"github.com/gideon-vouchers/voucher-server/pkg/config/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VOUCHER_DISCOVERY_"

	MaxConcurrencyConfigEnvName = envConfigPrefix + "MAX_CONCURRENCY"
	defaultMaxConcurrency       = 8

	FetchMetadataConfigEnvName = envConfigPrefix + "FETCH_METADATA"
	defaultFetchMetadata       = true
)

type conf struct {
	maxConcurrency config.Int64
	fetchMetadata  config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			maxConcurrency: env.NewInt64Config(MaxConcurrencyConfigEnvName, defaultMaxConcurrency),
			fetchMetadata:  env.NewBoolConfig(FetchMetadataConfigEnvName, defaultFetchMetadata),
		}
	}
}

type testOverrides struct {
	maxConcurrency int64
	fetchMetadata  bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			maxConcurrency: wrapper.NewInt64Config(memory.NewConfig(overrides.maxConcurrency), defaultMaxConcurrency),
			fetchMetadata:  wrapper.NewBoolConfig(memory.NewConfig(overrides.fetchMetadata), defaultFetchMetadata),
		}
	}
}
