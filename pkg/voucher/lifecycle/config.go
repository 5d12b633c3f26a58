package lifecycle

import (
	"github.com/gideon-vouchers/voucher-server/pkg/config"
	"github.com/gideon-vouchers/voucher-server/pkg/config/env"
	"github.com/gideon-vouchers/voucher-server/pkg/config/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VOUCHER_LIFECYCLE_"

	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 64
)

type conf struct {
	// Micro-lamports per compute unit, zero disables the priority fee
	computeUnitPrice config.Uint64
	lockStripes      config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			computeUnitPrice: env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			lockStripes:      env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
		}
	}
}

type testOverrides struct {
	computeUnitPrice uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			computeUnitPrice: wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitPrice), defaultComputeUnitPrice),
			lockStripes:      wrapper.NewUint64Config(memory.NewConfig(nil), defaultLockStripes),
		}
	}
}
