package lifecycle

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	sync_util "github.com/gideon-vouchers/voucher-server/pkg/sync"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
)

const (
	metricsStructName = "voucher.lifecycle.service"

	submittedEventName = "VoucherTransactionSubmitted"
	rejectedEventName  = "VoucherTransactionRejected"

	submitDurationMetricName = "Voucher.SubmitDuration"
)

// Result identifies a submitted transaction.
type Result struct {
	Signature  string
	ActivityId string

	// Mint and Escrow are set when the transaction creates a voucher.
	Mint   string
	Escrow string
}

type CreateVoucherParams struct {
	Recipient ed25519.PublicKey

	// Amount is the escrow funding in lamports.
	Amount uint64

	Title       string
	Description string
	Symbol      string
	URI         string

	// Expiry is a unix timestamp in milliseconds. Zero means no expiry.
	Expiry int64
}

func (p *CreateVoucherParams) validate() error {
	if len(p.Recipient) != ed25519.PublicKeySize {
		return ErrInvalidRecipient
	}
	if p.Amount == 0 {
		return ErrInvalidAmount
	}
	if len(p.Title) == 0 || len(p.Symbol) == 0 || len(p.URI) == 0 {
		return ErrInvalidMetadata
	}
	if p.Expiry < 0 {
		return ErrInvalidExpiry
	}
	return nil
}

// Service assembles, signs and submits voucher lifecycle transactions. Each
// operation re-derives the voucher's state from confirmed chain data and
// checks the transition locally before anything is submitted.
type Service struct {
	log  *logrus.Entry
	conf *conf

	sc          solana.Client
	tokenClient *token.Client
	layout      voucher.Layout
	machine     *voucher.Machine
	activity    activity.Store

	mintLocks *sync_util.StripedLock
	now       func() time.Time
}

func NewService(sc solana.Client, layout voucher.Layout, activityStore activity.Store, configProvider ConfigProvider) *Service {
	conf := configProvider()

	stripes := conf.lockStripes.Get(context.Background())
	if stripes == 0 {
		stripes = defaultLockStripes
	}

	return &Service{
		log:         logrus.StandardLogger().WithField("type", "voucher/lifecycle/service"),
		conf:        conf,
		sc:          sc,
		tokenClient: token.NewClient(sc, token.Program2022Key),
		layout:      layout,
		machine:     voucher.NewMachine(),
		activity:    activityStore,
		mintLocks:   sync_util.NewStripedLock(uint(stripes)),
		now:         time.Now,
	}
}

// InitMintAuthority creates the shared mint authority account. When the
// account already exists nothing is built or submitted and a nil result is
// returned.
func (s *Service) InitMintAuthority(ctx context.Context, payer ed25519.PrivateKey) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "InitMintAuthority")
	defer tracer.End()

	authority, _, err := gideon.GetMintAuthorityAddress()
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving mint authority")
	}

	_, err = s.sc.GetAccountInfo(authority, solana.CommitmentConfirmed)
	if err == nil {
		s.log.WithFields(logrus.Fields{
			"method":    "InitMintAuthority",
			"authority": base58.Encode(authority),
		}).Debug("mint authority already exists")
		return nil, nil
	} else if err != solana.ErrNoAccountInfo {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error probing mint authority")
	}

	ixn := gideon.NewInitMintAuthorityInstruction(&gideon.InitMintAuthorityInstructionAccounts{
		MintAuthority: authority,
		Payer:         publicKey(payer),
	})

	result, err := s.submit(ctx, activity.KindInitMintAuthority, nil, []ed25519.PrivateKey{payer}, ixn)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return result, nil
}

// CreateVoucher funds a new escrow and mints the voucher token to the payer.
// mint is a fresh keypair that becomes the voucher's mint address.
func (s *Service) CreateVoucher(ctx context.Context, payer, mint ed25519.PrivateKey, params CreateVoucherParams) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateVoucher")
	defer tracer.End()

	if err := params.validate(); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	payerKey := publicKey(payer)
	mintKey := publicKey(mint)

	lock := s.mintLocks.Get(mintKey)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.getSnapshot(mintKey, nil, payerKey)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	if _, err := s.machine.Apply(current.state, voucher.TransitionInitEscrowAndMint, voucher.TransitionInput{Caller: payerKey, Now: s.now()}); err != nil {
		tracer.OnError(err)
		return nil, err
	}
	if err := s.checkFunds(payerKey, params.Amount); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	authority, _, err := gideon.GetMintAuthorityAddress()
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving mint authority")
	}

	escrow, _, err := gideon.GetEscrowAddress(&gideon.GetEscrowAddressArgs{
		Payer:     payerKey,
		Recipient: params.Recipient,
		Mint:      mintKey,
	})
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving escrow address")
	}

	ata, err := token.GetAssociatedAccount(payerKey, mintKey, token.Program2022Key)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving payer token account")
	}

	ixn, err := gideon.NewInitEscrowAndMintVoucherInstruction(
		&gideon.InitEscrowAndMintVoucherInstructionAccounts{
			Escrow:                 escrow,
			Payer:                  payerKey,
			Mint:                   mintKey,
			MintAuthority:          authority,
			AssociatedTokenAccount: ata,
			TokenProgram:           token.Program2022Key,
		},
		&gideon.InitEscrowAndMintVoucherInstructionArgs{
			Payer:       payerKey,
			Recipient:   params.Recipient,
			Amount:      params.Amount,
			VoucherMint: mintKey,

			Title:       params.Title,
			Description: params.Description,
			Symbol:      params.Symbol,
			URI:         params.URI,
			Expiry:      params.Expiry,
		},
	)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error building instruction")
	}

	result, err := s.submit(ctx, activity.KindCreateVoucher, mintKey, []ed25519.PrivateKey{payer, mint}, ixn)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	result.Mint = base58.Encode(mintKey)
	result.Escrow = base58.Encode(escrow)
	return result, nil
}

// checkFunds rejects an escrow the payer can't cover before anything is
// signed. Fees and rent come on top and are left to preflight.
func (s *Service) checkFunds(payer ed25519.PublicKey, amount uint64) error {
	balance, err := s.sc.GetBalance(payer)
	if err != nil && err != solana.ErrNoBalance {
		return errors.Wrap(err, "error getting payer balance")
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	return nil
}

// TransferVoucher moves the single voucher token from the holder to the
// recipient, creating the recipient's token account when it doesn't exist.
// The escrow is untouched.
func (s *Service) TransferVoucher(ctx context.Context, holder ed25519.PrivateKey, recipient, mint ed25519.PublicKey) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "TransferVoucher")
	defer tracer.End()

	if len(recipient) != ed25519.PublicKeySize {
		tracer.OnError(ErrInvalidRecipient)
		return nil, ErrInvalidRecipient
	}

	holderKey := publicKey(holder)

	lock := s.mintLocks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	source, err := token.GetAssociatedAccount(holderKey, mint, token.Program2022Key)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving holder token account")
	}

	sourceAccount, err := s.tokenClient.GetAccount(source, solana.CommitmentConfirmed)
	if err == token.ErrAccountNotFound || err == token.ErrInvalidTokenAccount {
		tracer.OnError(err)
		return nil, ErrInsufficientBalance
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting holder token account")
	} else if sourceAccount.Amount < 1 {
		tracer.OnError(ErrInsufficientBalance)
		return nil, ErrInsufficientBalance
	}

	current, err := s.getSnapshot(mint, nil, holderKey)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	if _, err := s.machine.Apply(current.state, voucher.TransitionTransferToken, voucher.TransitionInput{Caller: holderKey, Now: s.now()}); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	var instructions []solana.Instruction

	createIxn, destination, err := token.CreateAssociatedTokenAccount(holderKey, recipient, mint, token.Program2022Key)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving recipient token account")
	}

	_, err = s.sc.GetAccountInfo(destination, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		instructions = append(instructions, createIxn)
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error probing recipient token account")
	}

	instructions = append(instructions, token.Transfer(token.Program2022Key, source, destination, holderKey, 1))

	result, err := s.submit(ctx, activity.KindTransferVoucher, mint, []ed25519.PrivateKey{holder}, instructions...)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return result, nil
}

// RedeemVoucher burns the holder's voucher token and releases the escrow to
// the holder. The holder must be the escrow's recipient and the voucher must
// not have expired. Both are checked before submitting.
func (s *Service) RedeemVoucher(ctx context.Context, holder ed25519.PrivateKey, mint, escrowAddress ed25519.PublicKey) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RedeemVoucher")
	defer tracer.End()

	holderKey := publicKey(holder)

	lock := s.mintLocks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.getSnapshot(mint, escrowAddress, holderKey)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	in := voucher.TransitionInput{
		Caller: holderKey,
		Expiry: current.metadata.Expiry,
		Now:    s.now(),
	}
	if current.escrow.Account != nil {
		in.Payer = current.escrow.Account.Payer
		in.Recipient = current.escrow.Account.Recipient
	}

	if _, err := s.machine.Apply(current.state, voucher.TransitionReleaseAndBurn, in); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method": "RedeemVoucher",
			"mint":   base58.Encode(mint),
			"holder": base58.Encode(holderKey),
		}).Info("redemption rejected locally")
		tracer.OnError(err)
		return nil, err
	}

	authority, _, err := gideon.GetMintAuthorityAddress()
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving mint authority")
	}

	ata, err := token.GetAssociatedAccount(holderKey, mint, token.Program2022Key)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error deriving holder token account")
	}

	ixn := gideon.NewReleaseEscrowAndBurnVoucherInstruction(&gideon.ReleaseEscrowAndBurnVoucherInstructionAccounts{
		Payer:                  holderKey,
		AssociatedTokenAccount: ata,
		Mint:                   mint,
		MintAuthority:          authority,
		Escrow:                 current.escrow.Address,
		TokenProgram:           token.Program2022Key,
	})

	result, err := s.submit(ctx, activity.KindRedeemVoucher, mint, []ed25519.PrivateKey{holder}, ixn)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return result, nil
}

// ReclaimVoucher returns an expired voucher's escrow to its original payer.
// now must be strictly past the voucher's expiry.
func (s *Service) ReclaimVoucher(ctx context.Context, payer ed25519.PrivateKey, mint, escrowAddress ed25519.PublicKey, now time.Time) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ReclaimVoucher")
	defer tracer.End()

	payerKey := publicKey(payer)

	lock := s.mintLocks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.getSnapshot(mint, escrowAddress, payerKey)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	in := voucher.TransitionInput{
		Caller: payerKey,
		Expiry: current.metadata.Expiry,
		Now:    now,
	}
	if current.escrow.Account != nil {
		in.Payer = current.escrow.Account.Payer
		in.Recipient = current.escrow.Account.Recipient
	}

	if _, err := s.machine.Apply(current.state, voucher.TransitionReclaimExpired, in); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	ixn := gideon.NewReleaseExpiredEscrowInstruction(&gideon.ReleaseExpiredEscrowInstructionAccounts{
		Payer:  payerKey,
		Escrow: current.escrow.Address,
		Mint:   mint,
	})

	result, err := s.submit(ctx, activity.KindReclaimVoucher, mint, []ed25519.PrivateKey{payer}, ixn)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return result, nil
}

type snapshot struct {
	state    voucher.State
	metadata voucher.Metadata
	escrow   voucher.EscrowInfo
}

// getSnapshot reads the confirmed mint and escrow accounts. When
// escrowAddress is nil it is taken from the mint metadata. caller is the
// wallet the holder state is evaluated against.
func (s *Service) getSnapshot(mint, escrowAddress, caller ed25519.PublicKey) (*snapshot, error) {
	m, data, err := s.tokenClient.GetMint(mint, solana.CommitmentConfirmed)
	if err == token.ErrAccountNotFound {
		return &snapshot{
			state:    voucher.StateUninitialized,
			metadata: voucher.UndecodableMetadata(),
		}, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting mint")
	}

	result := &snapshot{
		metadata: s.layout.DecodeMintMetadata(data),
	}

	if escrowAddress == nil && result.metadata.IsDecoded() {
		decoded, err := solana.ParsePublicKey(result.metadata.EscrowAddress)
		if err == nil {
			escrowAddress = decoded
		}
	}
	if escrowAddress == nil {
		return nil, ErrEscrowNotFound
	}

	info, err := s.sc.GetAccountInfo(escrowAddress, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		result.escrow = s.layout.DecodeEscrowInfo(escrowAddress, nil)
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting escrow")
	} else {
		result.escrow = s.layout.DecodeEscrowInfo(escrowAddress, &info)
	}

	holderIsPayer := true
	if result.escrow.Account != nil {
		holderIsPayer = bytes.Equal(caller, result.escrow.Account.Payer)
	}

	result.state = voucher.Observe(voucher.Observation{
		MintExists:     true,
		MintSupply:     m.Supply,
		EscrowExists:   result.escrow.Exists,
		EscrowLamports: result.escrow.Lamports,
		HolderIsPayer:  holderIsPayer,
	})
	return result, nil
}

// submit signs and sends the instructions, recording the attempt in the
// activity store. The first signer pays the fee.
func (s *Service) submit(ctx context.Context, kind activity.Kind, mint ed25519.PublicKey, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (*Result, error) {
	payer := publicKey(signers[0])

	log := s.log.WithFields(logrus.Fields{
		"method": "submit",
		"kind":   kind.String(),
		"payer":  base58.Encode(payer),
	})

	bh, err := s.sc.GetLatestBlockhash()
	if err != nil {
		return nil, errors.Wrap(err, "error getting latest blockhash")
	}

	txn, err := makeTransaction(payer, bh, s.conf.computeUnitPrice.Get(ctx), instructions...)
	if err != nil {
		return nil, err
	}
	if err := txn.Sign(signers...); err != nil {
		return nil, errors.Wrap(err, "error signing transaction")
	}

	var mintAddress string
	if mint != nil {
		mintAddress = base58.Encode(mint)
	}

	record := activity.NewRecord(kind, base58.Encode(payer), mintAddress, encodeSignature(&txn))
	if err := s.activity.Put(ctx, record); err != nil {
		return nil, errors.Wrap(err, "error saving activity record")
	}

	log = log.WithFields(logrus.Fields{
		"signature":   record.Signature,
		"activity_id": record.ActivityId,
	})

	start := time.Now()
	_, err = s.sc.SubmitTransaction(txn, solana.CommitmentConfirmed)
	metrics.RecordDuration(ctx, submitDurationMetricName, time.Since(start))
	if err != nil {
		submissionErr := newSubmissionError(&txn, err)

		record.State = activity.StateFailed
		record.ErrorMessage = submissionErr.Error()
		if updateErr := s.activity.Update(ctx, record); updateErr != nil {
			log.WithError(updateErr).Warn("failure updating activity record")
		}

		log.WithError(err).Info("transaction rejected")
		metrics.RecordEvent(ctx, rejectedEventName, map[string]interface{}{
			"kind":  kind.String(),
			"error": record.ErrorMessage,
		})
		return nil, submissionErr
	}

	record.State = activity.StateSubmitted
	if err := s.activity.Update(ctx, record); err != nil {
		log.WithError(err).Warn("failure updating activity record")
	}

	log.Debug("transaction submitted")
	metrics.RecordEvent(ctx, submittedEventName, map[string]interface{}{
		"kind": kind.String(),
	})

	return &Result{
		Signature:  record.Signature,
		ActivityId: record.ActivityId,
	}, nil
}
