package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"sort"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta is an account referenced by an instruction.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	isPayer   bool
	isProgram bool
}

func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner, IsWritable: true}
}

func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner}
}

// rank orders accounts for the message account list: fee payer, writable
// signers, read-only signers, writable accounts, read-only accounts and
// finally invoked programs.
func (m AccountMeta) rank() int {
	switch {
	case m.isPayer:
		return 0
	case m.isProgram && !m.IsSigner && !m.IsWritable:
		return 5
	case m.IsSigner && m.IsWritable:
		return 1
	case m.IsSigner:
		return 2
	case m.IsWritable:
		return 3
	default:
		return 4
	}
}

type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// CompiledInstruction references its program and accounts by index into the
// message account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

// compileAccounts merges every account referenced by the instructions into a
// single ordered list. Duplicates keep the union of their permissions.
// normalizeKey maps an empty key to the all-zero address.
func normalizeKey(key ed25519.PublicKey) ed25519.PublicKey {
	if len(key) == 0 {
		return make(ed25519.PublicKey, ed25519.PublicKeySize)
	}
	return key
}

func compileAccounts(payer ed25519.PublicKey, instructions []Instruction) []AccountMeta {
	var merged []AccountMeta
	add := func(meta AccountMeta) {
		meta.PublicKey = normalizeKey(meta.PublicKey)
		for i := range merged {
			if !bytes.Equal(merged[i].PublicKey, meta.PublicKey) {
				continue
			}
			merged[i].IsSigner = merged[i].IsSigner || meta.IsSigner
			merged[i].IsWritable = merged[i].IsWritable || meta.IsWritable
			merged[i].isPayer = merged[i].isPayer || meta.isPayer
			merged[i].isProgram = merged[i].isProgram || meta.isProgram
			return
		}
		merged = append(merged, meta)
	}

	add(AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true})
	for _, instruction := range instructions {
		add(AccountMeta{PublicKey: instruction.Program, isProgram: true})
		for _, account := range instruction.Accounts {
			add(account)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := merged[i].rank(), merged[j].rank()
		if ri != rj {
			return ri < rj
		}
		return bytes.Compare(merged[i].PublicKey, merged[j].PublicKey) < 0
	})
	return merged
}
