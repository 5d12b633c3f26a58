package app

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/currency"
	"github.com/gideon-vouchers/voucher-server/pkg/currency/coingecko"
	pg "github.com/gideon-vouchers/voucher-server/pkg/database/postgres"
	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
	activity_memory "github.com/gideon-vouchers/voucher-server/pkg/voucher/activity/memory"
	activity_postgres "github.com/gideon-vouchers/voucher-server/pkg/voucher/activity/postgres"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/discovery"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/history"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/lifecycle"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/metadata"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/redemption"
)

const (
	shutdownTimeout = 5 * time.Second
)

// Env wires the voucher services for a single process.
type Env struct {
	Config *BaseConfig
	Log    *logrus.Entry

	Metrics *newrelic.Application

	Solana    solana.Client
	Layout    voucher.Layout
	Activity  activity.Store
	Discovery *discovery.Service
	History   *history.Service
	Lifecycle *lifecycle.Service
	Poller    *redemption.Poller
	Converter *currency.Converter

	db   *sql.DB
	cron *cron.Cron
}

// NewEnv configures logging and metrics, then builds every service from
// config and the service level environment variables.
func NewEnv(ctx context.Context, config *BaseConfig) (*Env, error) {
	log := logrus.StandardLogger().WithField("type", "app")

	// todo: Better abstraction so we're not directly tied to NR
	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return nil, errors.Wrap(err, "error connecting to new relic")
		}

		metricsProvider = nr
	}

	configureLogger(config, metricsProvider)

	rotator, err := solana.NewRoundRobin(config.SolanaEndpoints...)
	if err != nil {
		return nil, err
	}
	sc := solana.NewWithRotator(rotator, nil)

	env := &Env{
		Config:  config,
		Log:     log,
		Metrics: metricsProvider,
		Solana:  sc,
	}

	if len(config.DatabaseUrl) > 0 {
		db, err := pg.NewWithUrl(ctx, config.DatabaseUrl, 0, 0)
		if err != nil {
			return nil, err
		}
		env.db = db

		if err := activity_postgres.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to create activity schema")
		}
		env.Activity = activity_postgres.New(db)
	} else {
		env.Activity = activity_memory.New()
	}

	env.Layout = voucher.LoadLayout(ctx, voucher.WithEnvConfigs())

	env.Discovery = discovery.NewService(sc, metadata.NewFetcher(metadata.WithEnvConfigs()), env.Layout, discovery.WithEnvConfigs())
	env.History = history.NewService(sc, env.Layout, history.WithEnvConfigs())
	env.Lifecycle = lifecycle.NewService(sc, env.Layout, env.Activity, lifecycle.WithEnvConfigs())
	env.Poller = redemption.NewPoller(sc, redemption.WithEnvConfigs())
	env.Converter = currency.NewConverter(coingecko.NewClientWithBaseUrl(config.CoingeckoUrl))

	return env, nil
}

// Context returns ctx carrying the metrics provider, if any, inside a New
// Relic transaction named after the operation.
func (e *Env) Context(ctx context.Context, operation string) (context.Context, func()) {
	return metrics.StartTransaction(ctx, e.Metrics, operation)
}

// StartRateRefresh refreshes exchange rates now and then on the configured
// cron schedule until Close.
func (e *Env) StartRateRefresh(ctx context.Context) error {
	if e.cron != nil {
		return nil
	}

	refresh := func() {
		if err := e.Converter.Refresh(ctx); err != nil {
			e.Log.WithError(err).Warn("exchange rate refresh failed")
		}
	}

	cronJob := cron.New(cron.WithLocation(time.Local))
	_, err := cronJob.AddFunc(e.Config.RateRefreshSchedule, refresh)
	if err != nil {
		return errors.Wrap(err, "failed to initialize rate refresh cron")
	}

	refresh()
	cronJob.Start()
	e.cron = cronJob
	return nil
}

// RelayDialer returns the redemption dialer for the configured relay.
func (e *Env) RelayDialer() (redemption.Dialer, error) {
	if len(e.Config.SignalRelayUrl) == 0 {
		return nil, errors.New("signal_relay_url is not configured")
	}
	return redemption.RelayDialer(e.Config.SignalRelayUrl), nil
}

func (e *Env) Close() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.Log.WithError(err).Warn("failure closing database")
		}
	}
	if e.Metrics != nil {
		e.Metrics.Shutdown(shutdownTimeout)
	}
}

func configureLogger(config *BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}
}
