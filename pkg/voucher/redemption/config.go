package redemption

import (
	"time"

	"github.com/gideon-vouchers/voucher-server/pkg/config"
	"github.com/gideon-vouchers/voucher-server/pkg/config/env"
	"github.com/gideon-vouchers/voucher-server/pkg/config/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VOUCHER_REDEMPTION_"

	PollTimeoutConfigEnvName = envConfigPrefix + "POLL_TIMEOUT"
	defaultPollTimeout       = 30 * time.Second

	PollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = time.Second
)

type conf struct {
	pollTimeout  config.Duration
	pollInterval config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			pollTimeout:  env.NewDurationConfig(PollTimeoutConfigEnvName, defaultPollTimeout),
			pollInterval: env.NewDurationConfig(PollIntervalConfigEnvName, defaultPollInterval),
		}
	}
}

type testOverrides struct {
	pollTimeout  time.Duration
	pollInterval time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			pollTimeout:  wrapper.NewDurationConfig(memory.NewConfig(overrides.pollTimeout), defaultPollTimeout),
			pollInterval: wrapper.NewDurationConfig(memory.NewConfig(overrides.pollInterval), defaultPollInterval),
		}
	}
}
