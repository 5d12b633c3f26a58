package gideon

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/system"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
)

func TestInitMintAuthorityInstruction(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	ix := NewInitMintAuthorityInstruction(&InitMintAuthorityInstructionAccounts{
		MintAuthority: keys[0],
		Payer:         keys[1],
	})

	assert.EqualValues(t, ProgramKey, ix.Program)
	assert.Equal(t, []byte{0}, ix.Data)
	assertAccounts(t, ix.Accounts,
		expectedAccount{keys[0], true, false},
		expectedAccount{keys[1], true, true},
		expectedAccount{system.ProgramKey, false, false},
	)
}

func TestInitEscrowAndMintVoucherInstruction(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 7)
	payer, recipient, mint, escrow, authority, ata, tokenProgram := keys[0], keys[1], keys[2], keys[3], keys[4], keys[5], keys[6]

	args := &InitEscrowAndMintVoucherInstructionArgs{
		Payer:       payer,
		Recipient:   recipient,
		Amount:      1_500_000_000,
		VoucherMint: mint,
		Title:       "Coffee",
		Description: "One flat white",
		Symbol:      "CUP",
		URI:         "https://example.com/cup.json",
		Expiry:      1700000000000,
	}
	ix, err := NewInitEscrowAndMintVoucherInstruction(
		&InitEscrowAndMintVoucherInstructionAccounts{
			Escrow:                 escrow,
			Payer:                  payer,
			Mint:                   mint,
			MintAuthority:          authority,
			AssociatedTokenAccount: ata,
			TokenProgram:           tokenProgram,
		},
		args,
	)
	require.NoError(t, err)

	expected := []byte{1}
	expected = append(expected, payer...)
	expected = append(expected, recipient...)
	expected = binary.LittleEndian.AppendUint64(expected, args.Amount)
	expected = append(expected, mint...)
	for _, s := range []string{args.Title, args.Description, args.Symbol, args.URI} {
		expected = binary.LittleEndian.AppendUint32(expected, uint32(len(s)))
		expected = append(expected, s...)
	}
	expected = binary.LittleEndian.AppendUint64(expected, uint64(args.Expiry))
	assert.Equal(t, expected, ix.Data)

	assertAccounts(t, ix.Accounts,
		expectedAccount{escrow, true, false},
		expectedAccount{payer, true, true},
		expectedAccount{mint, true, true},
		expectedAccount{authority, true, false},
		expectedAccount{ata, true, false},
		expectedAccount{system.RentSysvarKey, false, false},
		expectedAccount{system.ProgramKey, false, false},
		expectedAccount{tokenProgram, false, false},
		expectedAccount{token.AssociatedTokenAccountProgramKey, false, false},
	)

	escrowArgs, mintArgs, err := DecodeInitEscrowAndMintVoucherInstructionData(ix.Data)
	require.NoError(t, err)
	assert.EqualValues(t, args.Amount, escrowArgs.Amount)
	assert.EqualValues(t, recipient, escrowArgs.Recipient[:])
	assert.Equal(t, args.Title, mintArgs.Title)
	assert.Equal(t, args.URI, mintArgs.URI)
	assert.Equal(t, args.Expiry, mintArgs.Expiry)

	_, _, err = DecodeInitEscrowAndMintVoucherInstructionData([]byte{2})
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
	_, _, err = DecodeInitEscrowAndMintVoucherInstructionData(ix.Data[:40])
	assert.ErrorIs(t, err, ErrInvalidInstructionData)

	_, err = NewInitEscrowAndMintVoucherInstruction(
		&InitEscrowAndMintVoucherInstructionAccounts{},
		&InitEscrowAndMintVoucherInstructionArgs{Payer: payer[:4], Recipient: recipient, VoucherMint: mint},
	)
	assert.Error(t, err)
}

func TestReleaseEscrowAndBurnVoucherInstruction(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 6)

	ix := NewReleaseEscrowAndBurnVoucherInstruction(&ReleaseEscrowAndBurnVoucherInstructionAccounts{
		Payer:                  keys[0],
		AssociatedTokenAccount: keys[1],
		Mint:                   keys[2],
		MintAuthority:          keys[3],
		Escrow:                 keys[4],
		TokenProgram:           keys[5],
	})

	assert.Equal(t, []byte{2}, ix.Data)
	assert.Equal(t, InstructionTypeReleaseEscrowAndBurnVoucher, GetInstructionType(ix.Data))
	assertAccounts(t, ix.Accounts,
		expectedAccount{keys[0], true, true},
		expectedAccount{keys[1], true, false},
		expectedAccount{keys[2], true, false},
		expectedAccount{keys[3], false, false},
		expectedAccount{keys[4], true, false},
		expectedAccount{keys[5], false, false},
		expectedAccount{system.ClockSysvarKey, false, false},
		expectedAccount{system.ProgramKey, false, false},
	)
}

func TestReleaseExpiredEscrowInstruction(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)

	ix := NewReleaseExpiredEscrowInstruction(&ReleaseExpiredEscrowInstructionAccounts{
		Payer:  keys[0],
		Escrow: keys[1],
		Mint:   keys[2],
	})

	assert.Equal(t, []byte{3}, ix.Data)
	assertAccounts(t, ix.Accounts,
		expectedAccount{keys[0], true, true},
		expectedAccount{keys[1], true, false},
		expectedAccount{keys[2], false, false},
		expectedAccount{system.ClockSysvarKey, false, false},
	)
}

func TestGetInstructionType(t *testing.T) {
	assert.Equal(t, InstructionTypeUnknown, GetInstructionType(nil))
	assert.Equal(t, InstructionTypeUnknown, GetInstructionType([]byte{4}))
	assert.Equal(t, InstructionTypeInitMintAuthority, GetInstructionType([]byte{0}))
	assert.Equal(t, "release_expired_escrow", InstructionTypeReleaseExpiredEscrow.String())
}

type expectedAccount struct {
	key      ed25519.PublicKey
	writable bool
	signer   bool
}

func assertAccounts(t *testing.T, actual []solana.AccountMeta, expected ...expectedAccount) {
	require.Len(t, actual, len(expected))
	for i, e := range expected {
		assert.EqualValues(t, e.key, actual[i].PublicKey, "account %d", i)
		assert.Equal(t, e.writable, actual[i].IsWritable, "account %d writable", i)
		assert.Equal(t, e.signer, actual[i].IsSigner, "account %d signer", i)
	}
}
