package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

func TestGetCommand_Error(t *testing.T) {
	keys := generateKeys(t, 4)

	// invalid program
	cmd, err := GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(keys[1], []byte{})).Message, 0)
	assert.Equal(t, CommandUnknown, cmd)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	// no data
	cmd, err = GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(Program2022Key, []byte{})).Message, 0)
	assert.Equal(t, CommandUnknown, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data")

	// out of range
	_, err = GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(Program2022Key, []byte{3})).Message, 1)
	assert.Error(t, err)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 3)

	for _, program := range []ed25519.PublicKey{ProgramKey, Program2022Key} {
		instruction := Transfer(program, keys[0], keys[1], keys[2], 1)

		expected := make([]byte, 9)
		expected[0] = byte(CommandTransfer)
		binary.LittleEndian.PutUint64(expected[1:], 1)

		assert.Equal(t, program, instruction.Program)
		assert.Equal(t, expected, instruction.Data)
		assert.True(t, instruction.Accounts[0].IsWritable)
		assert.True(t, instruction.Accounts[1].IsWritable)
		assert.False(t, instruction.Accounts[2].IsWritable)
		assert.True(t, instruction.Accounts[2].IsSigner)

		decompiled, err := DecompileTransfer(solana.NewTransaction(keys[2], instruction).Message, 0)
		require.NoError(t, err)
		assert.Equal(t, program, decompiled.Program)
		assert.Equal(t, keys[0], decompiled.Source)
		assert.Equal(t, keys[1], decompiled.Destination)
		assert.Equal(t, keys[2], decompiled.Owner)
		assert.Nil(t, decompiled.Mint)
		assert.EqualValues(t, 1, decompiled.Amount)
	}
}

func TestDecompileTransfer_Checked(t *testing.T) {
	keys := generateKeys(t, 4)

	data := make([]byte, 10)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], 1)

	instruction := solana.NewInstruction(
		Program2022Key,
		data,
		solana.NewAccountMeta(keys[0], false),
		solana.NewReadonlyAccountMeta(keys[1], false),
		solana.NewAccountMeta(keys[2], false),
		solana.NewReadonlyAccountMeta(keys[3], true),
	)

	decompiled, err := DecompileTransfer(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Source)
	assert.Equal(t, keys[1], decompiled.Mint)
	assert.Equal(t, keys[2], decompiled.Destination)
	assert.Equal(t, keys[3], decompiled.Owner)
	assert.EqualValues(t, 1, decompiled.Amount)

	instruction.Data = instruction.Data[:9]
	_, err = DecompileTransfer(solana.NewTransaction(keys[3], instruction).Message, 0)
	assert.Error(t, err)
}

func TestDecompileTransfer_WrongInstruction(t *testing.T) {
	keys := generateKeys(t, 3)

	burn := solana.NewInstruction(
		Program2022Key,
		[]byte{byte(CommandBurn), 1, 0, 0, 0, 0, 0, 0, 0},
		solana.NewAccountMeta(keys[0], false),
		solana.NewAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(keys[2], true),
	)
	_, err := DecompileTransfer(solana.NewTransaction(keys[2], burn).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	short := Transfer(Program2022Key, keys[0], keys[1], keys[2], 1)
	short.Accounts = short.Accounts[:2]
	_, err = DecompileTransfer(solana.NewTransaction(keys[2], short).Message, 0)
	assert.Error(t, err)
}

func TestProgramKeys(t *testing.T) {
	for expected, key := range map[string]ed25519.PublicKey{
		"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA":  ProgramKey,
		"TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb":  Program2022Key,
		"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL": AssociatedTokenAccountProgramKey,
	} {
		assert.Len(t, key, ed25519.PublicKeySize)
		assert.Equal(t, expected, base58.Encode(key))
	}

	assert.True(t, IsTokenProgram(ProgramKey))
	assert.True(t, IsTokenProgram(Program2022Key))
	assert.False(t, IsTokenProgram(AssociatedTokenAccountProgramKey))
	assert.Panics(t, func() { mustKey("not-a-key") })
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
