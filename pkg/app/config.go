package app

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/gideon-vouchers/voucher-server/pkg/netutil"
)

// BaseConfig is the process level configuration. Service level knobs are
// read separately through each package's WithEnvConfigs.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	// Metrics configuration across many providers
	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	// SolanaEndpoints are used in round-robin order.
	SolanaEndpoints []string `mapstructure:"solana_endpoints"`

	// DatabaseUrl is an optional postgres:// url for the activity store. The
	// in memory store is used when empty.
	DatabaseUrl string `mapstructure:"database_url"`

	// Keypair is the default Solana CLI keypair file used to sign.
	Keypair string `mapstructure:"keypair"`

	CoingeckoUrl        string `mapstructure:"coingecko_url"`
	RateRefreshSchedule string `mapstructure:"rate_refresh_schedule"`
	Country             string `mapstructure:"country"`

	SignalRelayUrl string `mapstructure:"signal_relay_url"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	AppName: "voucherctl",

	SolanaEndpoints: []string{
		"https://api.devnet.solana.com",
		"https://rpc.ankr.com/solana_devnet",
	},

	CoingeckoUrl:        "https://api.coingecko.com/api",
	RateRefreshSchedule: "*/10 * * * *",
	Country:             "South Africa",
}

func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	_ = v.BindEnv("app_name", "APP_NAME")

	_ = v.BindEnv("new_relic_license_key", "NEW_RELIC_LICENSE_KEY")

	_ = v.BindEnv("solana_endpoints", "SOLANA_ENDPOINTS")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("keypair", "KEYPAIR")

	_ = v.BindEnv("coingecko_url", "COINGECKO_URL")
	_ = v.BindEnv("rate_refresh_schedule", "RATE_REFRESH_SCHEDULE")
	_ = v.BindEnv("country", "COUNTRY")

	_ = v.BindEnv("signal_relay_url", "SIGNAL_RELAY_URL")
}

// LoadConfig reads .env files, then the optional config file at configPath,
// then environment variables, each overriding the last.
func LoadConfig(configPath string, envFiles ...string) (*BaseConfig, error) {
	for _, envFile := range envFiles {
		// Existing environment variables win over the file
		err := godotenv.Load(envFile)
		if err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "failed to load %s", envFile)
		}
	}

	v := viper.New()
	bindEnvs(v)

	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to search
	// for a default config file because one hasn't been explicitly set, so a
	// missing explicit file is checked here.
	if len(configPath) > 0 {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrap(err, "failed to load config")
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if len(config.AppName) == 0 {
		return nil, errors.New("must specify an application name")
	}
	if len(config.SolanaEndpoints) == 0 {
		return nil, errors.New("must specify at least one solana endpoint")
	}
	for _, endpoint := range config.SolanaEndpoints {
		if _, err := netutil.ValidateHttpUrl(endpoint, false); err != nil {
			return nil, errors.Wrapf(err, "invalid solana endpoint %q", endpoint)
		}
	}
	if _, err := netutil.ValidateHttpUrl(config.CoingeckoUrl, false); err != nil {
		return nil, errors.Wrap(err, "invalid coingecko url")
	}
	if len(config.SignalRelayUrl) > 0 {
		if _, err := netutil.ValidateUrl(config.SignalRelayUrl, "ws", "wss"); err != nil {
			return nil, errors.Wrap(err, "invalid signal relay url")
		}
	}

	return &config, nil
}
