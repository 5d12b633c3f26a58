package redemption

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
)

const (
	metricsStructName = "voucher.redemption"
)

var (
	ErrInvalidAddress = errors.New("invalid address")

	errNotReceived = errors.New("voucher not received")
)

type Status uint8

const (
	StatusNotConfirmed Status = iota
	StatusConfirmed
)

func (s Status) String() string {
	if s == StatusConfirmed {
		return "confirmed"
	}
	return "not_confirmed"
}

// Poller watches a wallet's associated token account for an incoming voucher.
type Poller struct {
	log  *logrus.Entry
	conf *conf
	sc   solana.Client
}

func NewPoller(sc solana.Client, configProvider ConfigProvider) *Poller {
	return &Poller{
		log:  logrus.StandardLogger().WithField("type", "voucher/redemption/poller"),
		conf: configProvider(),
		sc:   sc,
	}
}

// WaitForReceipt polls until owner holds a non-zero balance of mint or the
// poll budget runs out. Running out of budget is StatusNotConfirmed, not an
// error.
func (p *Poller) WaitForReceipt(ctx context.Context, owner, mint string) (Status, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "WaitForReceipt")
	defer tracer.End()

	log := p.log.WithFields(logrus.Fields{
		"method": "WaitForReceipt",
		"owner":  owner,
		"mint":   mint,
	})

	ownerKey, err := solana.ParsePublicKey(owner)
	if err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, ErrInvalidAddress
	}
	mintKey, err := solana.ParsePublicKey(mint)
	if err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, ErrInvalidAddress
	}

	ata, err := token.GetAssociatedAccount(ownerKey, mintKey, token.Program2022Key)
	if err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, errors.Wrap(err, "error deriving associated token account")
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.conf.pollTimeout.Get(ctx))
	defer cancel()

	interval := p.conf.pollInterval.Get(ctx)
	start := time.Now()

	attempts, err := retry.Retry(
		func() error {
			balance, _, err := p.sc.GetTokenAccountBalance(ata)
			if err != nil {
				if err != solana.ErrNoBalance && err != solana.ErrNoAccountInfo {
					log.WithError(err).Debug("failure getting token balance")
				}
				return errNotReceived
			}
			if balance == 0 {
				return errNotReceived
			}
			return nil
		},
		retry.Context(pollCtx),
		retry.BackoffContext(pollCtx, backoff.Constant(interval), interval),
	)

	log = log.WithFields(logrus.Fields{
		"attempts": attempts,
		"elapsed":  time.Since(start),
	})
	if err != nil {
		log.Info("voucher not received within poll budget")
		return StatusNotConfirmed, nil
	}

	log.Info("voucher received")
	return StatusConfirmed, nil
}
