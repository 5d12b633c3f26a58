package redemption

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

const (
	redemptionEventName = "VoucherRedemption"
)

var (
	ErrSameWallet    = errors.New("holder and issuer wallets are the same")
	ErrMintMismatch  = errors.New("offer is for a different voucher")
	ErrUnexpectedMsg = errors.New("unexpected redemption message")
)

// TransferFunc moves the voucher mint from the holder to wallet.
type TransferFunc func(ctx context.Context, wallet, mint string) error

// NewPeerId returns a fresh identifier a holder can publish in a handoff.
func NewPeerId() string {
	return uuid.New().String()
}

// Session runs the issuer side of a redemption.
type Session struct {
	log    *logrus.Entry
	dial   Dialer
	poller *Poller
}

func NewSession(dial Dialer, poller *Poller) *Session {
	return &Session{
		log:    logrus.StandardLogger().WithField("type", "voucher/redemption/session"),
		dial:   dial,
		poller: poller,
	}
}

// Verify handles a scanned handoff payload. It asks the holder to send the
// voucher to connectedWallet, waits for it to arrive and replies with
// TransferValid or TransferInvalid.
func (s *Session) Verify(ctx context.Context, payload, connectedWallet string) (Status, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Verify")
	defer tracer.End()

	log := s.log.WithFields(logrus.Fields{
		"method": "Verify",
		"wallet": connectedWallet,
	})

	handoff, err := ParseHandoff(payload)
	if err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, err
	}
	if _, err := solana.ParsePublicKey(connectedWallet); err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, ErrInvalidAddress
	}
	if handoff.Wallet == connectedWallet {
		tracer.OnError(ErrSameWallet)
		return StatusNotConfirmed, ErrSameWallet
	}

	log = log.WithFields(logrus.Fields{
		"peer":   handoff.PeerId,
		"holder": handoff.Wallet,
		"mint":   handoff.Mint,
	})

	transport, err := s.dial(ctx, handoff.PeerId)
	if err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, errors.Wrap(err, "error connecting to holder")
	}
	defer transport.Close()

	offer := EncodeOffer(&Offer{Wallet: connectedWallet, Mint: handoff.Mint})
	if err := transport.Send(ctx, offer); err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, errors.Wrap(err, "error sending offer")
	}

	status, err := s.poller.WaitForReceipt(ctx, connectedWallet, handoff.Mint)
	if err != nil {
		tracer.OnError(err)
		return StatusNotConfirmed, err
	}

	reply := TransferInvalid
	if status == StatusConfirmed {
		reply = TransferValid
	}
	if err := transport.Send(ctx, reply); err != nil {
		log.WithError(err).Warn("failure sending redemption result to holder")
	}

	metrics.RecordEvent(ctx, redemptionEventName, map[string]interface{}{
		"mint":   handoff.Mint,
		"holder": handoff.Wallet,
		"issuer": connectedWallet,
		"status": status.String(),
	})

	log.WithField("status", status.String()).Info("redemption verified")
	return status, nil
}

// Respond runs the holder side over an established transport. It waits for
// the issuer's offer, transfers the voucher named in handoff and reports the
// issuer's verdict.
func Respond(ctx context.Context, transport Transport, handoff *Handoff, transfer TransferFunc) (Status, error) {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":   "voucher/redemption/respond",
		"wallet": handoff.Wallet,
		"mint":   handoff.Mint,
	})

	msg, err := transport.Receive(ctx)
	if err != nil {
		return StatusNotConfirmed, errors.Wrap(err, "error receiving offer")
	}

	offer, err := ParseOffer(msg)
	if err != nil {
		return StatusNotConfirmed, err
	}
	if offer.Mint != handoff.Mint {
		return StatusNotConfirmed, ErrMintMismatch
	}
	if offer.Wallet == handoff.Wallet {
		return StatusNotConfirmed, ErrSameWallet
	}

	log = log.WithField("issuer", offer.Wallet)
	if err := transfer(ctx, offer.Wallet, offer.Mint); err != nil {
		return StatusNotConfirmed, errors.Wrap(err, "error transferring voucher")
	}
	log.Debug("voucher sent, waiting for issuer")

	verdict, err := transport.Receive(ctx)
	if err != nil {
		return StatusNotConfirmed, errors.Wrap(err, "error receiving verdict")
	}

	switch verdict {
	case TransferValid:
		return StatusConfirmed, nil
	case TransferInvalid:
		return StatusNotConfirmed, nil
	default:
		return StatusNotConfirmed, errors.Wrapf(ErrUnexpectedMsg, "%q", verdict)
	}
}
