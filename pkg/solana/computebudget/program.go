package compute_budget

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

var ProgramKey = mustKey("ComputeBudget111111111111111111111111111111")

const (
	commandRequestUnits uint8 = iota
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

var ErrInvalidInstruction = errors.New("invalid compute budget instruction")

func mustKey(address string) ed25519.PublicKey {
	key, err := solana.ParsePublicKey(address)
	if err != nil {
		panic(err)
	}
	return key
}

// encode writes command followed by a little endian argument.
func encode(command uint8, arg interface{}) []byte {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	_ = enc.WriteUint8(command)

	switch v := arg.(type) {
	case uint32:
		_ = enc.WriteUint32(v, bin.LE)
	case uint64:
		_ = enc.WriteUint64(v, bin.LE)
	}
	return buf.Bytes()
}

// decode checks the command byte and returns a decoder over its argument.
func decode(data []byte, command uint8, argSize int) (*bin.Decoder, error) {
	if len(data) != 1+argSize || data[0] != command {
		return nil, ErrInvalidInstruction
	}
	return bin.NewBinDecoder(data[1:]), nil
}

func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	return solana.NewInstruction(ProgramKey, encode(commandSetComputeUnitLimit, computeUnitLimit))
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	return solana.NewInstruction(ProgramKey, encode(commandSetComputeUnitPrice, microLamports))
}

func ParseSetComputeUnitLimitIxnData(data []byte) (uint32, error) {
	dec, err := decode(data, commandSetComputeUnitLimit, 4)
	if err != nil {
		return 0, err
	}
	return dec.ReadUint32(bin.LE)
}

func ParseSetComputeUnitPriceIxnData(data []byte) (uint64, error) {
	dec, err := decode(data, commandSetComputeUnitPrice, 8)
	if err != nil {
		return 0, err
	}
	return dec.ReadUint64(bin.LE)
}

// FindComputeUnitPrice returns the price set by the first SetComputeUnitPrice
// instruction in the message, if any.
func FindComputeUnitPrice(m solana.Message) (uint64, bool) {
	for _, ix := range m.Instructions {
		if int(ix.ProgramIndex) >= len(m.Accounts) || !bytes.Equal(m.Accounts[ix.ProgramIndex], ProgramKey) {
			continue
		}

		if price, err := ParseSetComputeUnitPriceIxnData(ix.Data); err == nil {
			return price, true
		}
	}
	return 0, false
}
