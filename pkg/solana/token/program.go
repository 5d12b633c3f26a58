package token

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

var (
	// ProgramKey is the original SPL token program.
	ProgramKey = mustKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Program2022Key is the Token-2022 program. Vouchers are minted under it.
	Program2022Key = mustKey("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// Command is the leading instruction byte of the token programs.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program/src/instruction.rs
type Command byte

const (
	CommandInitializeMint       Command = 0
	CommandTransfer             Command = 3
	CommandMintTo               Command = 7
	CommandBurn                 Command = 8
	CommandCloseAccount         Command = 9
	CommandTransferChecked      Command = 12
	CommandInitializeMintCloser Command = 25

	CommandUnknown = Command(math.MaxUint8)
)

// Custom errors raised by the token programs.
const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
)

func mustKey(address string) ed25519.PublicKey {
	key, err := solana.ParsePublicKey(address)
	if err != nil {
		panic(err)
	}
	return key
}

// IsTokenProgram reports whether program is either of the token programs.
func IsTokenProgram(program ed25519.PublicKey) bool {
	return bytes.Equal(program, ProgramKey) || bytes.Equal(program, Program2022Key)
}

func instructionAt(m solana.Message, index int) (solana.CompiledInstruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return solana.CompiledInstruction{}, errors.Errorf("instruction doesn't exist at %d", index)
	}
	return m.Instructions[index], nil
}

// GetCommand returns the command of the token instruction at index.
func GetCommand(m solana.Message, index int) (Command, error) {
	i, err := instructionAt(m, index)
	if err != nil {
		return CommandUnknown, err
	}

	switch {
	case !IsTokenProgram(m.Accounts[i.ProgramIndex]):
		return CommandUnknown, solana.ErrIncorrectProgram
	case len(i.Data) == 0:
		return CommandUnknown, errors.New("token instruction missing data")
	default:
		return Command(i.Data[0]), nil
	}
}

// Transfer moves amount tokens from source to dest. owner signs.
func Transfer(program, source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	w := newLayoutWriter(9)
	w.u8(uint8(CommandTransfer))
	w.u64(amount)

	return solana.NewInstruction(
		program,
		w.bytes(9),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

// DecompiledTransfer covers both Transfer and TransferChecked. Mint is only
// set for the checked variant.
type DecompiledTransfer struct {
	Program     ed25519.PublicKey
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Mint        ed25519.PublicKey
	Amount      uint64
}

// transferLayout lists the account positions of a transfer variant, -1 when
// the variant has no such account.
type transferLayout struct {
	dataSize    int
	source      int
	mint        int
	destination int
	owner       int
}

var transferLayouts = map[Command]transferLayout{
	CommandTransfer:        {dataSize: 9, source: 0, mint: -1, destination: 1, owner: 2},
	CommandTransferChecked: {dataSize: 10, source: 0, mint: 1, destination: 2, owner: 3},
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	cmd, err := GetCommand(m, index)
	if err != nil {
		return nil, err
	}

	layout, ok := transferLayouts[cmd]
	if !ok {
		return nil, solana.ErrIncorrectInstruction
	}

	i := m.Instructions[index]
	if len(i.Data) != layout.dataSize {
		return nil, errors.Errorf("invalid data size: %d (expect %d)", len(i.Data), layout.dataSize)
	}
	if len(i.Accounts) <= layout.owner {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	r := newLayoutReader(i.Data[1:])
	decompiled := &DecompiledTransfer{
		Program:     m.Accounts[i.ProgramIndex],
		Source:      m.Accounts[i.Accounts[layout.source]],
		Destination: m.Accounts[i.Accounts[layout.destination]],
		Owner:       m.Accounts[i.Accounts[layout.owner]],
		Amount:      r.u64(),
	}
	if layout.mint >= 0 {
		decompiled.Mint = m.Accounts[i.Accounts[layout.mint]]
	}
	return decompiled, r.err
}
