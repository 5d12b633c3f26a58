package discovery

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/metadata"
)

const (
	metricsStructName = "voucher.discovery.service"

	heldVouchersMetricName = "Voucher.Discovery.HeldVouchers"
)

var (
	ErrInvalidWallet = errors.New("invalid wallet address")
	ErrInvalidMint   = errors.New("invalid mint address")
)

// MetadataFetcher resolves off-chain metadata documents.
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) (*metadata.Document, error)
}

// Service resolves the vouchers held by a wallet from chain state.
type Service struct {
	log  *logrus.Entry
	conf *conf

	sc          solana.Client
	tokenClient *token.Client
	layout      voucher.Layout
	fetcher     MetadataFetcher
}

// NewService returns a discovery service. A nil fetcher disables off-chain
// metadata resolution.
func NewService(sc solana.Client, fetcher MetadataFetcher, layout voucher.Layout, configProvider ConfigProvider) *Service {
	return &Service{
		log:         logrus.StandardLogger().WithField("type", "voucher/discovery/service"),
		conf:        configProvider(),
		sc:          sc,
		tokenClient: token.NewClient(sc, token.Program2022Key),
		layout:      layout,
		fetcher:     fetcher,
	}
}

type holding struct {
	mint   ed25519.PublicKey
	amount uint64
}

// ListVouchers returns the vouchers the wallet currently holds. Token accounts
// with a zero balance are skipped. A mint that fails to resolve is returned as
// an undecodable record rather than failing the batch, so the only error is
// ErrInvalidWallet.
func (s *Service) ListVouchers(ctx context.Context, wallet string) ([]*voucher.Voucher, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ListVouchers")
	defer tracer.End()

	log := s.log.WithFields(logrus.Fields{
		"method": "ListVouchers",
		"wallet": wallet,
	})

	owner, err := solana.ParsePublicKey(wallet)
	if err != nil {
		tracer.OnError(err)
		return nil, ErrInvalidWallet
	}

	accounts, err := s.sc.GetTokenAccountsByOwner(owner, token.Program2022Key)
	if err != nil {
		log.WithError(err).Warn("failure getting token accounts")
		tracer.OnError(err)
		return []*voucher.Voucher{}, nil
	}

	holdings := collectHoldings(log, accounts)
	tracer.AddAttribute("holdings", len(holdings))
	metrics.RecordCount(ctx, heldVouchersMetricName, uint64(len(holdings)))

	vouchers := make([]*voucher.Voucher, len(holdings))

	concurrency := int(s.conf.maxConcurrency.Get(ctx))
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, h := range holdings {
		wg.Add(1)
		go func(i int, h holding) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			v := s.resolve(ctx, h.mint, owner)
			v.Amount = h.amount
			vouchers[i] = v
		}(i, h)
	}
	wg.Wait()

	return vouchers, nil
}

// GetVoucher resolves a single mint. Failures other than a malformed address
// degrade to an undecodable record.
func (s *Service) GetVoucher(ctx context.Context, mint string) (*voucher.Voucher, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetVoucher")
	defer tracer.End()

	mintKey, err := solana.ParsePublicKey(mint)
	if err != nil {
		tracer.OnError(err)
		return nil, ErrInvalidMint
	}

	return s.resolve(ctx, mintKey, nil), nil
}

// collectHoldings decodes the base account layout of each token account and
// merges non-zero balances per mint, preserving discovery order.
func collectHoldings(log *logrus.Entry, accounts []solana.KeyedAccountInfo) []holding {
	var holdings []holding
	byMint := make(map[string]int)

	for _, keyed := range accounts {
		var account token.Account
		if !account.Unmarshal(keyed.Data) {
			log.WithField("account", base58.Encode(keyed.PublicKey)).Debug("skipping undecodable token account")
			continue
		}

		if account.Amount == 0 {
			continue
		}

		key := base58.Encode(account.Mint)
		if i, ok := byMint[key]; ok {
			holdings[i].amount += account.Amount
			continue
		}

		byMint[key] = len(holdings)
		holdings = append(holdings, holding{mint: account.Mint, amount: account.Amount})
	}

	return holdings
}

// resolve runs the per-mint pipeline: mint account, metadata decode, escrow
// balance, then the off-chain document. holder may be nil when unknown.
func (s *Service) resolve(ctx context.Context, mint, holder ed25519.PublicKey) *voucher.Voucher {
	mintAddress := base58.Encode(mint)
	log := s.log.WithFields(logrus.Fields{
		"method": "resolve",
		"mint":   mintAddress,
	})

	m, data, err := s.tokenClient.GetMint(mint, solana.CommitmentConfirmed)
	if err == token.ErrAccountNotFound {
		v := voucher.NewUndecodableVoucher(mintAddress)
		v.State = voucher.StateUninitialized
		return v
	} else if err != nil {
		log.WithError(err).Debug("failure getting mint")
		return voucher.NewUndecodableVoucher(mintAddress)
	}

	v := voucher.NewVoucherFromMetadata(mintAddress, s.layout.DecodeMintMetadata(data))
	if !v.IsDecoded() {
		log.Debug("mint metadata is undecodable")
		return v
	}

	escrow := s.getEscrow(log, v.EscrowAddress)
	v.Escrow = escrow.Balance()
	v.EscrowLamports = escrow.Lamports

	v.State = voucher.Observe(voucher.Observation{
		MintExists:     true,
		MintSupply:     m.Supply,
		EscrowExists:   escrow.Exists,
		EscrowLamports: escrow.Lamports,
		HolderIsPayer:  s.isHeldByPayer(log, mint, holder, escrow),
	})

	if s.fetcher != nil && s.conf.fetchMetadata.Get(ctx) && len(v.URI) > 0 {
		doc, err := s.fetcher.Fetch(ctx, v.URI)
		if err != nil {
			log.WithError(err).Debug("metadata document unavailable, using on-chain values")
		} else {
			metadata.Apply(v, doc)
		}
	}

	return v
}

func (s *Service) getEscrow(log *logrus.Entry, address string) voucher.EscrowInfo {
	escrowKey, err := solana.ParsePublicKey(address)
	if err != nil {
		log.WithField("escrow", address).Debug("escrow address is not a valid key")
		return voucher.EscrowInfo{}
	}

	info, err := s.sc.GetAccountInfo(escrowKey, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		return s.layout.DecodeEscrowInfo(escrowKey, nil)
	} else if err != nil {
		log.WithError(err).Debug("failure getting escrow account")
		return voucher.EscrowInfo{Address: escrowKey}
	}

	return s.layout.DecodeEscrowInfo(escrowKey, &info)
}

// isHeldByPayer reports whether the token still sits with the issuer. The
// payer's ATA is probed when the holder isn't known to be the payer.
func (s *Service) isHeldByPayer(log *logrus.Entry, mint, holder ed25519.PublicKey, escrow voucher.EscrowInfo) bool {
	if escrow.Account == nil {
		return true
	}

	payer := escrow.Account.Payer
	if holder != nil {
		return bytes.Equal(holder, payer)
	}

	ata, err := token.GetAssociatedAccount(payer, mint, token.Program2022Key)
	if err != nil {
		return true
	}

	balance, _, err := s.sc.GetTokenAccountBalance(ata)
	if err == solana.ErrNoBalance || err == solana.ErrNoAccountInfo {
		return false
	} else if err != nil {
		log.WithError(err).Debug("failure getting payer token balance")
		return true
	}
	return balance > 0
}
