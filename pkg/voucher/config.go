package voucher

import (
	"context"

	"github.com/gideon-vouchers/voucher-server/pkg/config"
	"github.com/gideon-vouchers/voucher-server/pkg/config/env"
	"github.com/gideon-vouchers/voucher-server/pkg/config/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VOUCHER_CODEC_"

	MetadataOffsetConfigEnvName = envConfigPrefix + "METADATA_OFFSET"
	MetadataLengthConfigEnvName = envConfigPrefix + "METADATA_LENGTH"

	RecipientOffsetConfigEnvName = envConfigPrefix + "RECIPIENT_OFFSET"
)

type conf struct {
	metadataOffset  config.Int64
	metadataLength  config.Int64
	recipientOffset config.Int64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			metadataOffset:  env.NewInt64Config(MetadataOffsetConfigEnvName, DefaultMetadataOffset),
			metadataLength:  env.NewInt64Config(MetadataLengthConfigEnvName, DefaultMetadataLength),
			recipientOffset: env.NewInt64Config(RecipientOffsetConfigEnvName, DefaultRecipientOffset),
		}
	}
}

// WithLayout returns a provider fixed to the given layout.
func WithLayout(l Layout) ConfigProvider {
	return func() *conf {
		return &conf{
			metadataOffset:  wrapper.NewInt64Config(memory.NewConfig(int64(l.MetadataOffset)), DefaultMetadataOffset),
			metadataLength:  wrapper.NewInt64Config(memory.NewConfig(int64(l.MetadataLength)), DefaultMetadataLength),
			recipientOffset: wrapper.NewInt64Config(memory.NewConfig(int64(l.RecipientOffset)), DefaultRecipientOffset),
		}
	}
}

// LoadLayout resolves the codec layout from config.
func LoadLayout(ctx context.Context, provider ConfigProvider) Layout {
	c := provider()
	return Layout{
		MetadataOffset:  int(c.metadataOffset.Get(ctx)),
		MetadataLength:  int(c.metadataLength.Get(ctx)),
		RecipientOffset: int(c.recipientOffset.Get(ctx)),
	}
}
