package metadata

import (
	"time"

	"github.com/gideon-vouchers/voucher-server/pkg/config"
	"github.com/gideon-vouchers/voucher-server/pkg/config/env"
	"github.com/gideon-vouchers/voucher-server/pkg/config/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VOUCHER_METADATA_"

	FetchTimeoutConfigEnvName = envConfigPrefix + "FETCH_TIMEOUT"
	defaultFetchTimeout       = 10 * time.Second

	CacheBudgetConfigEnvName = envConfigPrefix + "CACHE_BUDGET"
	defaultCacheBudget       = 1024

	RequestsPerHostConfigEnvName = envConfigPrefix + "REQUESTS_PER_HOST"
	defaultRequestsPerHost       = 5

	MaxAttemptsConfigEnvName = envConfigPrefix + "MAX_ATTEMPTS"
	defaultMaxAttempts       = 3
)

type conf struct {
	fetchTimeout    config.Duration
	cacheBudget     config.Int64
	requestsPerHost config.Float64
	maxAttempts     config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			fetchTimeout:    env.NewDurationConfig(FetchTimeoutConfigEnvName, defaultFetchTimeout),
			cacheBudget:     env.NewInt64Config(CacheBudgetConfigEnvName, defaultCacheBudget),
			requestsPerHost: env.NewFloat64Config(RequestsPerHostConfigEnvName, defaultRequestsPerHost),
			maxAttempts:     env.NewUint64Config(MaxAttemptsConfigEnvName, defaultMaxAttempts),
		}
	}
}

type testOverrides struct {
	fetchTimeout    time.Duration
	cacheBudget     int64
	requestsPerHost float64
	maxAttempts     uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			fetchTimeout:    wrapper.NewDurationConfig(memory.NewConfig(overrides.fetchTimeout), defaultFetchTimeout),
			cacheBudget:     wrapper.NewInt64Config(memory.NewConfig(overrides.cacheBudget), defaultCacheBudget),
			requestsPerHost: wrapper.NewFloat64Config(memory.NewConfig(overrides.requestsPerHost), defaultRequestsPerHost),
			maxAttempts:     wrapper.NewUint64Config(memory.NewConfig(overrides.maxAttempts), defaultMaxAttempts),
		}
	}
}
