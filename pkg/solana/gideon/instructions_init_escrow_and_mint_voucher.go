package gideon

import (
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/system"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
)

type InitEscrowArgs struct {
	Payer       [32]byte
	Recipient   [32]byte
	Amount      uint64
	VoucherMint [32]byte
}

type MintVoucherArgs struct {
	Title       string
	Description string
	Symbol      string
	URI         string

	// Expiry is a unix timestamp in milliseconds. Zero means no expiry.
	Expiry int64
}

type InitEscrowAndMintVoucherInstructionArgs struct {
	Payer       ed25519.PublicKey
	Recipient   ed25519.PublicKey
	Amount      uint64
	VoucherMint ed25519.PublicKey

	Title       string
	Description string
	Symbol      string
	URI         string
	Expiry      int64
}

type InitEscrowAndMintVoucherInstructionAccounts struct {
	Escrow                 ed25519.PublicKey
	Payer                  ed25519.PublicKey
	Mint                   ed25519.PublicKey
	MintAuthority          ed25519.PublicKey
	AssociatedTokenAccount ed25519.PublicKey
	TokenProgram           ed25519.PublicKey
}

func NewInitEscrowAndMintVoucherInstruction(
	accounts *InitEscrowAndMintVoucherInstructionAccounts,
	args *InitEscrowAndMintVoucherInstructionArgs,
) (solana.Instruction, error) {
	if len(args.Payer) != ed25519.PublicKeySize || len(args.Recipient) != ed25519.PublicKeySize || len(args.VoucherMint) != ed25519.PublicKeySize {
		return solana.Instruction{}, errors.New("invalid escrow key length")
	}

	data, err := encodeInstruction(
		InstructionTypeInitEscrowAndMintVoucher,
		InitEscrowArgs{
			Payer:       toKey32(args.Payer),
			Recipient:   toKey32(args.Recipient),
			Amount:      args.Amount,
			VoucherMint: toKey32(args.VoucherMint),
		},
		MintVoucherArgs{
			Title:       args.Title,
			Description: args.Description,
			Symbol:      args.Symbol,
			URI:         args.URI,
			Expiry:      args.Expiry,
		},
	)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.Instruction{
		Program: ProgramKey,

		Data: data,

		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Escrow,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Mint,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.MintAuthority,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.AssociatedTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  system.RentSysvarKey,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  system.ProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.TokenProgram,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  token.AssociatedTokenAccountProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}, nil
}

// DecodeInitEscrowAndMintVoucherInstructionData parses the arguments of a
// compiled InitEscrowAndMintVoucher instruction.
func DecodeInitEscrowAndMintVoucherInstructionData(data []byte) (*InitEscrowArgs, *MintVoucherArgs, error) {
	if GetInstructionType(data) != InstructionTypeInitEscrowAndMintVoucher {
		return nil, nil, ErrInvalidInstructionData
	}

	var escrowArgs InitEscrowArgs
	var mintArgs MintVoucherArgs

	dec := bin.NewBorshDecoder(data[1:])
	if err := dec.Decode(&escrowArgs); err != nil {
		return nil, nil, errors.Wrap(ErrInvalidInstructionData, err.Error())
	}
	if err := dec.Decode(&mintArgs); err != nil {
		return nil, nil, errors.Wrap(ErrInvalidInstructionData, err.Error())
	}

	return &escrowArgs, &mintArgs, nil
}
