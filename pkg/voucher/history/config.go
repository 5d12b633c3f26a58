package history

import (
	"github.com/gideon-vouchers/voucher-server/pkg/config"
	"github.com/gideon-vouchers/voucher-server/pkg/config/env"
	"github.com/gideon-vouchers/voucher-server/pkg/config/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VOUCHER_HISTORY_"

	SignatureLimitConfigEnvName = envConfigPrefix + "SIGNATURE_LIMIT"
	defaultSignatureLimit       = 50

	PageSizeConfigEnvName = envConfigPrefix + "PAGE_SIZE"
	defaultPageSize       = 10

	TransferLimitConfigEnvName = envConfigPrefix + "TRANSFER_LIMIT"
	defaultTransferLimit       = 10

	MaxAttemptsConfigEnvName = envConfigPrefix + "MAX_ATTEMPTS"
	defaultMaxAttempts       = 3
)

type conf struct {
	signatureLimit config.Uint64
	pageSize       config.Uint64
	transferLimit  config.Uint64
	maxAttempts    config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			signatureLimit: env.NewUint64Config(SignatureLimitConfigEnvName, defaultSignatureLimit),
			pageSize:       env.NewUint64Config(PageSizeConfigEnvName, defaultPageSize),
			transferLimit:  env.NewUint64Config(TransferLimitConfigEnvName, defaultTransferLimit),
			maxAttempts:    env.NewUint64Config(MaxAttemptsConfigEnvName, defaultMaxAttempts),
		}
	}
}

type testOverrides struct {
	signatureLimit uint64
	pageSize       uint64
	transferLimit  uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			signatureLimit: wrapper.NewUint64Config(memory.NewConfig(overrides.signatureLimit), defaultSignatureLimit),
			pageSize:       wrapper.NewUint64Config(memory.NewConfig(overrides.pageSize), defaultPageSize),
			transferLimit:  wrapper.NewUint64Config(memory.NewConfig(overrides.transferLimit), defaultTransferLimit),
			maxAttempts:    wrapper.NewUint64Config(memory.NewConfig(uint64(1)), defaultMaxAttempts),
		}
	}
}
