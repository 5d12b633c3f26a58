package history

import (
	"bytes"
	"crypto/ed25519"
	"regexp"
	"strings"

	"github.com/mr-tron/base58/base58"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/token"
)

// TransactionKind is a best-effort classification of a transaction. It is
// inferred from log text and instruction shapes, not from anything the
// program guarantees.
type TransactionKind uint8

const (
	KindUnknown TransactionKind = iota
	KindMint
	KindBurn
	KindTransfer
)

func (k TransactionKind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	case KindTransfer:
		return "transfer"
	}
	return "unknown"
}

const (
	mintedLogMarker = "NFT minted successfully"
	closeLogMarker  = "Instruction: CloseAccount"

	// Matches the account list position of the mint in a release
	// transaction when no instruction can be decoded.
	burnMintAccountIndex = 2
)

var mintLogPattern = regexp.MustCompile(`Program log: Mint:\s([1-9A-HJ-NP-Za-km-z]+)`)

// TransferInfo describes a single token transfer instruction.
type TransferInfo struct {
	Source      string
	Destination string
	Amount      uint64
}

// Classification is what could be recovered from a single transaction.
type Classification struct {
	Kind TransactionKind
	Mint string

	// EscrowLamports is the escrow funding of a mint or the amount released
	// by a burn.
	EscrowLamports uint64

	Transfer *TransferInfo
}

// Classify inspects a confirmed transaction. Mints are recognized by the
// program's success log, burns by the token CloseAccount log and transfers by
// a token Transfer instruction under either token program.
func Classify(txn *solana.ConfirmedTransaction) Classification {
	var logs []string
	if txn.Meta != nil {
		logs = txn.Meta.LogMessages
	}

	switch {
	case containsLog(logs, mintedLogMarker):
		return classifyMint(txn, logs)
	case containsLog(logs, closeLogMarker):
		return classifyBurn(txn)
	}

	if transfer, mint, ok := findTransfer(txn); ok {
		return Classification{
			Kind:     KindTransfer,
			Mint:     mint,
			Transfer: transfer,
		}
	}

	return Classification{Kind: KindUnknown}
}

func classifyMint(txn *solana.ConfirmedTransaction, logs []string) Classification {
	result := Classification{Kind: KindMint}

	for _, log := range logs {
		if matches := mintLogPattern.FindStringSubmatch(log); len(matches) == 2 {
			result.Mint = matches[1]
			break
		}
	}

	if ix, ok := findProgramInstruction(txn, gideon.InstructionTypeInitEscrowAndMintVoucher); ok {
		escrowArgs, _, err := gideon.DecodeInitEscrowAndMintVoucherInstructionData(ix.Data)
		if err == nil {
			result.EscrowLamports = escrowArgs.Amount
			if len(result.Mint) == 0 {
				result.Mint = base58.Encode(escrowArgs.VoucherMint[:])
			}
			return result
		}
	}

	// Fall back to what the payer spent, net of the fee
	if meta := txn.Meta; meta != nil && len(meta.PreBalances) > 0 && len(meta.PostBalances) > 0 {
		pre, post := meta.PreBalances[0], meta.PostBalances[0]
		if pre > post+meta.Fee {
			result.EscrowLamports = pre - post - meta.Fee
		}
	}

	return result
}

func classifyBurn(txn *solana.ConfirmedTransaction) Classification {
	result := Classification{Kind: KindBurn}

	accounts := txn.Transaction.Message.Accounts
	if ix, ok := findProgramInstruction(txn, gideon.InstructionTypeReleaseEscrowAndBurnVoucher); ok && len(ix.Accounts) > 2 && int(ix.Accounts[2]) < len(accounts) {
		result.Mint = base58.Encode(accounts[ix.Accounts[2]])
	} else if !txn.Versioned && len(accounts) > burnMintAccountIndex {
		result.Mint = base58.Encode(accounts[burnMintAccountIndex])
	}

	// The releasing payer gains the escrow lamports, net of the fee it paid
	if meta := txn.Meta; meta != nil && len(meta.PreBalances) > 0 && len(meta.PostBalances) > 0 {
		pre, post := meta.PreBalances[0], meta.PostBalances[0]
		if post+meta.Fee > pre {
			result.EscrowLamports = post + meta.Fee - pre
		}
	}

	return result
}

func findTransfer(txn *solana.ConfirmedTransaction) (*TransferInfo, string, bool) {
	if txn.Versioned {
		return nil, "", false
	}

	m := txn.Transaction.Message
	for i := range m.Instructions {
		decompiled, err := token.DecompileTransfer(m, i)
		if err != nil {
			continue
		}

		transfer := &TransferInfo{
			Source:      base58.Encode(decompiled.Source),
			Destination: base58.Encode(decompiled.Destination),
			Amount:      decompiled.Amount,
		}

		mint := mintFromTokenBalances(txn, decompiled.Source)
		if len(decompiled.Mint) > 0 {
			mint = base58.Encode(decompiled.Mint)
		}

		return transfer, mint, true
	}

	return nil, "", false
}

func mintFromTokenBalances(txn *solana.ConfirmedTransaction, account ed25519.PublicKey) string {
	if txn.Meta == nil {
		return ""
	}

	accounts := txn.Transaction.Message.Accounts
	for _, balances := range [][]solana.TokenBalance{txn.Meta.PreTokenBalances, txn.Meta.PostTokenBalances} {
		for _, balance := range balances {
			if int(balance.AccountIndex) < len(accounts) && bytes.Equal(accounts[balance.AccountIndex], account) {
				return balance.Mint
			}
		}
	}
	return ""
}

func findProgramInstruction(txn *solana.ConfirmedTransaction, t gideon.InstructionType) (solana.CompiledInstruction, bool) {
	if txn.Versioned {
		return solana.CompiledInstruction{}, false
	}

	m := txn.Transaction.Message
	for _, ix := range m.Instructions {
		if int(ix.ProgramIndex) >= len(m.Accounts) || !bytes.Equal(m.Accounts[ix.ProgramIndex], gideon.ProgramKey) {
			continue
		}
		if gideon.GetInstructionType(ix.Data) == t {
			return ix, true
		}
	}
	return solana.CompiledInstruction{}, false
}

func containsLog(logs []string, marker string) bool {
	for _, log := range logs {
		if strings.Contains(log, marker) {
			return true
		}
	}
	return false
}
