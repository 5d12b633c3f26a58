package history

import (
	"context"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
)

const (
	metricsStructName = "voucher.history.service"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
)

// Entry is a single classified transaction.
type Entry struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time

	Kind    TransactionKind
	Success bool

	// Performer is the fee payer. Empty when the message couldn't be decoded.
	Performer string

	// Mint is empty when it couldn't be recovered.
	Mint     string
	Metadata *voucher.Metadata

	EscrowLamports uint64
	Transfer       *TransferInfo
}

// Escrow returns the display value of EscrowLamports.
func (e *Entry) Escrow() string {
	return voucher.FormatSol(e.EscrowLamports)
}

// History is an ordered, newest first, list of entries split into pages.
type History struct {
	Entries  []*Entry
	pageSize int
}

// Page returns the n-th page, starting at 1. Out of range pages are empty.
func (h *History) Page(n int) []*Entry {
	if n < 1 || h.pageSize < 1 {
		return nil
	}

	start := (n - 1) * h.pageSize
	if start >= len(h.Entries) {
		return nil
	}

	end := start + h.pageSize
	if end > len(h.Entries) {
		end = len(h.Entries)
	}
	return h.Entries[start:end]
}

func (h *History) PageCount() int {
	if h.pageSize < 1 {
		return 0
	}
	return (len(h.Entries) + h.pageSize - 1) / h.pageSize
}

type Service struct {
	log  *logrus.Entry
	conf *conf

	sc          solana.Client
	tokenClient *token.Client
	layout      voucher.Layout
}

func NewService(sc solana.Client, layout voucher.Layout, configProvider ConfigProvider) *Service {
	return &Service{
		log:         logrus.StandardLogger().WithField("type", "voucher/history/service"),
		conf:        configProvider(),
		sc:          sc,
		tokenClient: token.NewClient(sc, token.Program2022Key),
		layout:      layout,
	}
}

// GetHistory classifies the most recent transactions referencing address,
// which may be a wallet, a mint or the program itself. RPC failures degrade
// to an empty history or to unclassified entries.
func (s *Service) GetHistory(ctx context.Context, address string) (*History, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetHistory")
	defer tracer.End()

	log := s.log.WithFields(logrus.Fields{
		"method":  "GetHistory",
		"address": address,
	})

	key, err := solana.ParsePublicKey(address)
	if err != nil {
		tracer.OnError(err)
		return nil, ErrInvalidAddress
	}

	history := &History{
		pageSize: int(s.conf.pageSize.Get(ctx)),
	}

	signatures, err := s.sc.GetSignaturesForAddress(key, solana.CommitmentConfirmed, s.conf.signatureLimit.Get(ctx), "", "")
	if err != nil {
		log.WithError(err).Warn("failure getting signatures")
		tracer.OnError(err)
		return history, nil
	}

	metadataByMint := make(map[string]*voucher.Metadata)
	for _, sig := range signatures {
		entry := s.getEntry(ctx, log, sig)

		if len(entry.Mint) > 0 {
			m, ok := metadataByMint[entry.Mint]
			if !ok {
				m = s.getMetadata(entry.Mint)
				metadataByMint[entry.Mint] = m
			}
			entry.Metadata = m
		}

		history.Entries = append(history.Entries, entry)
	}

	return history, nil
}

// GetTransfers returns the token transfers of a voucher mint, newest first.
func (s *Service) GetTransfers(ctx context.Context, mint string) ([]*Entry, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetTransfers")
	defer tracer.End()

	log := s.log.WithFields(logrus.Fields{
		"method": "GetTransfers",
		"mint":   mint,
	})

	key, err := solana.ParsePublicKey(mint)
	if err != nil {
		tracer.OnError(err)
		return nil, ErrInvalidAddress
	}

	signatures, err := s.sc.GetSignaturesForAddress(key, solana.CommitmentConfirmed, s.conf.transferLimit.Get(ctx), "", "")
	if err != nil {
		log.WithError(err).Warn("failure getting signatures")
		tracer.OnError(err)
		return []*Entry{}, nil
	}

	metadata := s.getMetadata(mint)

	transfers := []*Entry{}
	for _, sig := range signatures {
		entry := s.getEntry(ctx, log, sig)
		if entry.Kind != KindTransfer {
			continue
		}

		entry.Mint = mint
		entry.Metadata = metadata
		transfers = append(transfers, entry)
	}
	return transfers, nil
}

func (s *Service) getEntry(ctx context.Context, log *logrus.Entry, sig *solana.TransactionSignature) *Entry {
	entry := &Entry{
		Signature: base58.Encode(sig.Signature[:]),
		Slot:      sig.Slot,
		BlockTime: sig.BlockTime,
		Kind:      KindUnknown,
		Success:   sig.Err == nil,
	}

	var txn solana.ConfirmedTransaction
	_, err := retry.Retry(
		func() error {
			var err error
			txn, err = s.sc.GetTransaction(sig.Signature, solana.CommitmentConfirmed)
			return err
		},
		retry.Context(ctx),
		retry.NonRetriableErrors(solana.ErrSignatureNotFound),
		retry.Limit(uint(s.conf.maxAttempts.Get(ctx))),
		retry.BackoffWithJitter(backoff.BinaryExponential(250*time.Millisecond), 2*time.Second, 0.1),
	)
	if err != nil {
		log.WithError(err).WithField("signature", entry.Signature).Debug("transaction unavailable")
		return entry
	}

	if txn.BlockTime != nil {
		entry.BlockTime = txn.BlockTime
	}
	entry.Success = txn.Err == nil

	if !txn.Versioned && len(txn.Transaction.Message.Accounts) > 0 {
		entry.Performer = base58.Encode(txn.Transaction.Message.Accounts[0])
	}

	classification := Classify(&txn)
	entry.Kind = classification.Kind
	entry.Mint = classification.Mint
	entry.EscrowLamports = classification.EscrowLamports
	entry.Transfer = classification.Transfer

	return entry
}

func (s *Service) getMetadata(mint string) *voucher.Metadata {
	key, err := solana.ParsePublicKey(mint)
	if err != nil {
		return nil
	}

	_, data, err := s.tokenClient.GetMint(key, solana.CommitmentConfirmed)
	if err != nil {
		return nil
	}

	m := s.layout.DecodeMintMetadata(data)
	if !m.IsDecoded() {
		return nil
	}
	return &m
}
