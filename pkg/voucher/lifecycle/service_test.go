package lifecycle

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	compute_budget "github.com/gideon-vouchers/voucher-server/pkg/solana/computebudget"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
	activity_memory "github.com/gideon-vouchers/voucher-server/pkg/voucher/activity/memory"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/vouchertest"
)

const testExpiry = 1700000000000

type testEnv struct {
	ctx      context.Context
	sc       *memory.Client
	activity activity.Store
	service  *Service

	payer     ed25519.PrivateKey
	recipient ed25519.PrivateKey
}

func setup(t *testing.T) *testEnv {
	return setupWithOverrides(t, &testOverrides{})
}

func setupWithOverrides(t *testing.T, overrides *testOverrides) *testEnv {
	sc := memory.New()
	activityStore := activity_memory.New()

	return &testEnv{
		ctx:       context.Background(),
		sc:        sc,
		activity:  activityStore,
		service:   NewService(sc, voucher.DefaultLayout, activityStore, withManualTestOverrides(overrides)),
		payer:     testutil.GenerateSolanaKeypair(t),
		recipient: testutil.GenerateSolanaKeypair(t),
	}
}

// seedVoucher writes a funded voucher issued by the env payer to the env
// recipient, held by holder.
func (e *testEnv) seedVoucher(t *testing.T, holder ed25519.PublicKey, expiry int64) (mint, escrow ed25519.PublicKey) {
	mint = testutil.GenerateSolanaKeys(t, 1)[0]
	escrow = vouchertest.Seed(t, e.sc, vouchertest.Voucher{
		Mint:           mint,
		Payer:          publicKey(e.payer),
		Recipient:      publicKey(e.recipient),
		Holder:         holder,
		Name:           "Voucher",
		Symbol:         "VCH",
		URI:            "https://example.com/voucher.json",
		Expiry:         expiry,
		EscrowLamports: 1_000_000_000,
	})
	return mint, escrow
}

func (e *testEnv) fund(key ed25519.PublicKey, lamports uint64) {
	e.sc.SetAccount(key, solana.AccountInfo{
		Owner:    make(ed25519.PublicKey, ed25519.PublicKeySize),
		Lamports: lamports,
	})
}

func (e *testEnv) setNow(millis int64) {
	e.service.now = func() time.Time { return time.UnixMilli(millis) }
}

func (e *testEnv) assertActivity(t *testing.T, result *Result, kind activity.Kind, state activity.State) *activity.Record {
	record, err := e.activity.Get(e.ctx, result.ActivityId)
	require.NoError(t, err)
	assert.Equal(t, kind, record.Kind)
	assert.Equal(t, state, record.State)
	assert.Equal(t, result.Signature, record.Signature)
	return record
}

func assertProgram(t *testing.T, txn solana.Transaction, index int, program ed25519.PublicKey) {
	require.True(t, index < len(txn.Message.Instructions))
	programIndex := txn.Message.Instructions[index].ProgramIndex
	assert.True(t, bytes.Equal(program, txn.Message.Accounts[programIndex]))
}

func TestInitMintAuthority_AlreadyExists(t *testing.T) {
	env := setup(t)

	authority, _, err := gideon.GetMintAuthorityAddress()
	require.NoError(t, err)
	env.sc.SetAccount(authority, solana.AccountInfo{Owner: gideon.ProgramKey, Lamports: 1})

	result, err := env.service.InitMintAuthority(env.ctx, env.payer)
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Zero(t, env.sc.CallCount("GetLatestBlockhash"))
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
	assert.Empty(t, env.sc.Submitted())
}

func TestInitMintAuthority_Submits(t *testing.T) {
	env := setup(t)

	result, err := env.service.InitMintAuthority(env.ctx, env.payer)
	require.NoError(t, err)
	require.NotNil(t, result)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0].Message.Instructions, 1)
	assertProgram(t, submitted[0], 0, gideon.ProgramKey)
	assert.Equal(t, []byte{byte(gideon.InstructionTypeInitMintAuthority)}, submitted[0].Message.Instructions[0].Data)
	assert.Equal(t, base58.Encode(submitted[0].Signature()), result.Signature)

	env.assertActivity(t, result, activity.KindInitMintAuthority, activity.StateSubmitted)
}

func TestInitMintAuthority_ProbeFailure(t *testing.T) {
	env := setup(t)
	env.sc.SetError("GetAccountInfo", errors.New("unavailable"))

	_, err := env.service.InitMintAuthority(env.ctx, env.payer)
	assert.Error(t, err)
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestCreateVoucher_HappyPath(t *testing.T) {
	env := setup(t)
	mint := testutil.GenerateSolanaKeypair(t)

	params := CreateVoucherParams{
		Recipient:   publicKey(env.recipient),
		Amount:      1_999_999_999,
		Title:       "Free Coffee",
		Description: "One free coffee",
		Symbol:      "CAFE",
		URI:         "https://example.com/coffee.json",
		Expiry:      testExpiry,
	}
	env.fund(publicKey(env.payer), params.Amount)

	result, err := env.service.CreateVoucher(env.ctx, env.payer, mint, params)
	require.NoError(t, err)

	expectedEscrow, _, err := gideon.GetEscrowAddress(&gideon.GetEscrowAddressArgs{
		Payer:     publicKey(env.payer),
		Recipient: publicKey(env.recipient),
		Mint:      publicKey(mint),
	})
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(publicKey(mint)), result.Mint)
	assert.Equal(t, base58.Encode(expectedEscrow), result.Escrow)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	txn := submitted[0]
	assert.True(t, txn.IsFullySigned())
	assert.Len(t, txn.Signatures, 2)

	require.Len(t, txn.Message.Instructions, 1)
	assertProgram(t, txn, 0, gideon.ProgramKey)

	escrowArgs, mintArgs, err := gideon.DecodeInitEscrowAndMintVoucherInstructionData(txn.Message.Instructions[0].Data)
	require.NoError(t, err)
	assert.EqualValues(t, params.Amount, escrowArgs.Amount)
	assert.Equal(t, []byte(publicKey(env.payer)), escrowArgs.Payer[:])
	assert.Equal(t, []byte(publicKey(env.recipient)), escrowArgs.Recipient[:])
	assert.Equal(t, []byte(publicKey(mint)), escrowArgs.VoucherMint[:])
	assert.Equal(t, params.Title, mintArgs.Title)
	assert.Equal(t, params.Description, mintArgs.Description)
	assert.Equal(t, params.Symbol, mintArgs.Symbol)
	assert.Equal(t, params.URI, mintArgs.URI)
	assert.EqualValues(t, testExpiry, mintArgs.Expiry)

	record := env.assertActivity(t, result, activity.KindCreateVoucher, activity.StateSubmitted)
	assert.Equal(t, result.Mint, record.Mint)
	assert.Equal(t, base58.Encode(publicKey(env.payer)), record.Wallet)
}

func TestCreateVoucher_InvalidParams(t *testing.T) {
	env := setup(t)
	mint := testutil.GenerateSolanaKeypair(t)

	valid := CreateVoucherParams{
		Recipient: publicKey(env.recipient),
		Amount:    1,
		Title:     "Title",
		Symbol:    "SYM",
		URI:       "https://example.com",
	}

	for expected, mutate := range map[error]func(p *CreateVoucherParams){
		ErrInvalidRecipient: func(p *CreateVoucherParams) { p.Recipient = nil },
		ErrInvalidAmount:    func(p *CreateVoucherParams) { p.Amount = 0 },
		ErrInvalidMetadata:  func(p *CreateVoucherParams) { p.Symbol = "" },
		ErrInvalidExpiry:    func(p *CreateVoucherParams) { p.Expiry = -1 },
	} {
		params := valid
		mutate(&params)

		_, err := env.service.CreateVoucher(env.ctx, env.payer, mint, params)
		assert.Equal(t, expected, err)
	}

	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestCreateVoucher_InsufficientFunds(t *testing.T) {
	env := setup(t)
	mint := testutil.GenerateSolanaKeypair(t)

	params := CreateVoucherParams{
		Recipient: publicKey(env.recipient),
		Amount:    1_000_000_000,
		Title:     "Title",
		Symbol:    "SYM",
		URI:       "https://example.com",
	}

	_, err := env.service.CreateVoucher(env.ctx, env.payer, mint, params)
	assert.Equal(t, ErrInsufficientFunds, err)

	env.fund(publicKey(env.payer), params.Amount-1)
	_, err = env.service.CreateVoucher(env.ctx, env.payer, mint, params)
	assert.Equal(t, ErrInsufficientFunds, err)

	env.sc.SetError("GetBalance", errors.New("unavailable"))
	_, err = env.service.CreateVoucher(env.ctx, env.payer, mint, params)
	assert.Error(t, err)
	assert.NotEqual(t, ErrInsufficientFunds, err)

	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestCreateVoucher_MintExists(t *testing.T) {
	env := setup(t)

	mint := testutil.GenerateSolanaKeypair(t)
	vouchertest.Seed(t, env.sc, vouchertest.Voucher{
		Mint:           publicKey(mint),
		Payer:          publicKey(env.payer),
		Recipient:      publicKey(env.recipient),
		Name:           "Voucher",
		Symbol:         "VCH",
		URI:            "https://example.com/voucher.json",
		EscrowLamports: 1,
	})

	_, err := env.service.CreateVoucher(env.ctx, env.payer, mint, CreateVoucherParams{
		Recipient: publicKey(env.recipient),
		Amount:    1,
		Title:     "Title",
		Symbol:    "SYM",
		URI:       "https://example.com",
	})
	assert.True(t, errors.Is(err, voucher.ErrInvalidTransition))
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestTransferVoucher_CreatesRecipientAccount(t *testing.T) {
	env := setup(t)
	mint, _ := env.seedVoucher(t, nil, 0)

	result, err := env.service.TransferVoucher(env.ctx, env.payer, publicKey(env.recipient), mint)
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	txn := submitted[0]
	require.Len(t, txn.Message.Instructions, 2)
	assertProgram(t, txn, 0, token.AssociatedTokenAccountProgramKey)

	source, err := token.GetAssociatedAccount(publicKey(env.payer), mint, token.Program2022Key)
	require.NoError(t, err)
	destination, err := token.GetAssociatedAccount(publicKey(env.recipient), mint, token.Program2022Key)
	require.NoError(t, err)

	transfer, err := token.DecompileTransfer(txn.Message, 1)
	require.NoError(t, err)
	assert.EqualValues(t, token.Program2022Key, transfer.Program)
	assert.EqualValues(t, source, transfer.Source)
	assert.EqualValues(t, destination, transfer.Destination)
	assert.EqualValues(t, publicKey(env.payer), transfer.Owner)
	assert.EqualValues(t, 1, transfer.Amount)

	env.assertActivity(t, result, activity.KindTransferVoucher, activity.StateSubmitted)
}

func TestTransferVoucher_ExistingRecipientAccount(t *testing.T) {
	env := setup(t)
	mint, _ := env.seedVoucher(t, nil, 0)

	destination, err := token.GetAssociatedAccount(publicKey(env.recipient), mint, token.Program2022Key)
	require.NoError(t, err)
	env.sc.SetAccount(destination, solana.AccountInfo{
		Owner: token.Program2022Key,
		Data:  vouchertest.TokenAccountData(mint, publicKey(env.recipient), 0),
	})

	_, err = env.service.TransferVoucher(env.ctx, env.payer, publicKey(env.recipient), mint)
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0].Message.Instructions, 1)
	assertProgram(t, submitted[0], 0, token.Program2022Key)
}

func TestTransferVoucher_NotHeld(t *testing.T) {
	env := setup(t)
	mint, _ := env.seedVoucher(t, nil, 0)

	stranger := testutil.GenerateSolanaKeypair(t)
	_, err := env.service.TransferVoucher(env.ctx, stranger, publicKey(env.recipient), mint)
	assert.Equal(t, ErrInsufficientBalance, err)

	ata, err := token.GetAssociatedAccount(publicKey(env.payer), mint, token.Program2022Key)
	require.NoError(t, err)
	require.NoError(t, env.sc.SetTokenAmount(ata, 0))

	_, err = env.service.TransferVoucher(env.ctx, env.payer, publicKey(env.recipient), mint)
	assert.Equal(t, ErrInsufficientBalance, err)

	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestRedeemVoucher_HappyPath(t *testing.T) {
	env := setup(t)
	mint, escrow := env.seedVoucher(t, publicKey(env.recipient), testExpiry)
	env.setNow(testExpiry - 1)

	result, err := env.service.RedeemVoucher(env.ctx, env.recipient, mint, escrow)
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	txn := submitted[0]
	require.Len(t, txn.Message.Instructions, 1)
	assertProgram(t, txn, 0, gideon.ProgramKey)
	assert.Equal(t, []byte{byte(gideon.InstructionTypeReleaseEscrowAndBurnVoucher)}, txn.Message.Instructions[0].Data)
	assert.True(t, bytes.Equal(publicKey(env.recipient), txn.Message.Accounts[0]))

	env.assertActivity(t, result, activity.KindRedeemVoucher, activity.StateSubmitted)
}

func TestRedeemVoucher_RecipientMismatch(t *testing.T) {
	env := setup(t)
	mint, escrow := env.seedVoucher(t, nil, 0)

	stranger := testutil.GenerateSolanaKeypair(t)
	for _, caller := range []ed25519.PrivateKey{env.payer, stranger} {
		_, err := env.service.RedeemVoucher(env.ctx, caller, mint, escrow)
		assert.Equal(t, voucher.ErrRecipientMismatch, err)
	}

	assert.Zero(t, env.sc.CallCount("GetLatestBlockhash"))
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestRedeemVoucher_Expired(t *testing.T) {
	env := setup(t)
	mint, escrow := env.seedVoucher(t, publicKey(env.recipient), testExpiry)
	env.setNow(testExpiry + 1)

	_, err := env.service.RedeemVoucher(env.ctx, env.recipient, mint, escrow)
	assert.Equal(t, voucher.ErrExpired, err)
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestRedeemVoucher_AlreadyReclaimed(t *testing.T) {
	env := setup(t)
	mint, escrow := env.seedVoucher(t, publicKey(env.recipient), testExpiry)
	env.sc.DeleteAccount(escrow)

	_, err := env.service.RedeemVoucher(env.ctx, env.recipient, mint, escrow)
	assert.True(t, errors.Is(err, voucher.ErrInvalidTransition))
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestReclaimVoucher_ExpiryBoundary(t *testing.T) {
	env := setup(t)
	mint, escrow := env.seedVoucher(t, nil, testExpiry)

	_, err := env.service.ReclaimVoucher(env.ctx, env.payer, mint, escrow, time.UnixMilli(1699999999999))
	assert.Equal(t, voucher.ErrNotExpired, err)
	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))

	_, err = env.service.ReclaimVoucher(env.ctx, env.payer, mint, escrow, time.UnixMilli(testExpiry))
	assert.Equal(t, voucher.ErrNotExpired, err)

	result, err := env.service.ReclaimVoucher(env.ctx, env.payer, mint, escrow, time.UnixMilli(1700000000001))
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	assertProgram(t, submitted[0], 0, gideon.ProgramKey)
	assert.Equal(t, []byte{byte(gideon.InstructionTypeReleaseExpiredEscrow)}, submitted[0].Message.Instructions[0].Data)

	env.assertActivity(t, result, activity.KindReclaimVoucher, activity.StateSubmitted)
}

func TestReclaimVoucher_Rejections(t *testing.T) {
	env := setup(t)
	now := time.UnixMilli(testExpiry + 1)

	noExpiryMint, noExpiryEscrow := env.seedVoucher(t, nil, 0)
	_, err := env.service.ReclaimVoucher(env.ctx, env.payer, noExpiryMint, noExpiryEscrow, now)
	assert.Equal(t, voucher.ErrNoExpiry, err)

	mint, escrow := env.seedVoucher(t, publicKey(env.recipient), testExpiry)
	_, err = env.service.ReclaimVoucher(env.ctx, env.recipient, mint, escrow, now)
	assert.Equal(t, voucher.ErrPayerMismatch, err)

	assert.Zero(t, env.sc.CallCount("SubmitTransaction"))
}

func TestSubmit_ProgramRejection(t *testing.T) {
	env := setup(t)
	mint, escrow := env.seedVoucher(t, publicKey(env.recipient), 0)

	logs := []string{
		"Program gidsaNxwQbr6pyLDaqVn4pPwAypkjwFNZQvvKBJ1Rbi invoke [1]",
		"Program gidsaNxwQbr6pyLDaqVn4pPwAypkjwFNZQvvKBJ1Rbi failed: custom program error: 0x3",
	}
	env.sc.SetSubmitHandler(func(txn solana.Transaction) error {
		txErr, err := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
			Index: 0,
			Err:   solana.CustomError(gideon.ErrInsufficientFunds),
		})
		require.NoError(t, err)
		txErr.Logs = logs
		return txErr
	})

	_, err := env.service.RedeemVoucher(env.ctx, env.recipient, mint, escrow)
	require.Error(t, err)

	var submissionErr *SubmissionError
	require.True(t, errors.As(err, &submissionErr))
	require.NotNil(t, submissionErr.ProgramError)
	assert.Equal(t, gideon.ErrInsufficientFunds, *submissionErr.ProgramError)
	assert.Equal(t, logs, submissionErr.Logs)
	assert.Empty(t, env.sc.Submitted())

	record, err := env.activity.GetBySignature(env.ctx, submissionErr.Signature)
	require.NoError(t, err)
	assert.Equal(t, activity.StateFailed, record.State)
	assert.Equal(t, submissionErr.Error(), record.ErrorMessage)
}

func TestSubmit_NonProgramRejection(t *testing.T) {
	env := setup(t)
	mint, _ := env.seedVoucher(t, nil, 0)

	env.sc.SetSubmitHandler(func(txn solana.Transaction) error {
		txErr, err := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
			Index: 1,
			Err:   token.ErrorInsufficientFunds,
		})
		require.NoError(t, err)
		return txErr
	})

	_, err := env.service.TransferVoucher(env.ctx, env.payer, publicKey(env.recipient), mint)

	var submissionErr *SubmissionError
	require.True(t, errors.As(err, &submissionErr))
	assert.Nil(t, submissionErr.ProgramError)
	assert.NotNil(t, submissionErr.Err)
}

func TestSubmit_ComputeUnitPrice(t *testing.T) {
	env := setupWithOverrides(t, &testOverrides{computeUnitPrice: 1000})

	_, err := env.service.InitMintAuthority(env.ctx, env.payer)
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0].Message.Instructions, 2)
	assertProgram(t, submitted[0], 0, compute_budget.ProgramKey)
	assertProgram(t, submitted[0], 1, gideon.ProgramKey)

	price, ok := compute_budget.FindComputeUnitPrice(submitted[0].Message)
	require.True(t, ok)
	assert.EqualValues(t, 1000, price)
}
