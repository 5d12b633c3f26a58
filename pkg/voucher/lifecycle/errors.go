package lifecycle

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/gideon"
)

var (
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrInvalidAmount       = errors.New("escrow amount must be positive")
	ErrInvalidMetadata     = errors.New("title, symbol and uri are required")
	ErrInvalidExpiry       = errors.New("expiry cannot be negative")
	ErrInsufficientBalance = errors.New("holder does not own the voucher")
	ErrEscrowNotFound      = errors.New("escrow account not found")
	ErrInsufficientFunds   = errors.New("wallet balance is too low")
)

// SubmissionError is returned when a transaction was rejected by the network.
// The transaction had no effect.
type SubmissionError struct {
	Signature string
	Err       error

	// ProgramError is set when the rejecting instruction belongs to the
	// voucher program and raised a custom error.
	ProgramError *gideon.Error

	// Logs are the preflight program logs, if the node returned any.
	Logs []string
}

func (e *SubmissionError) Error() string {
	var sb strings.Builder
	sb.WriteString("transaction rejected")
	if e.ProgramError != nil {
		sb.WriteString(": ")
		sb.WriteString(e.ProgramError.String())
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if len(e.Logs) > 0 {
		sb.WriteString(fmt.Sprintf(" (%d log lines)", len(e.Logs)))
	}
	return sb.String()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func newSubmissionError(txn *solana.Transaction, err error) *SubmissionError {
	submissionErr := &SubmissionError{
		Signature: encodeSignature(txn),
		Err:       err,
	}

	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) {
		return submissionErr
	}
	submissionErr.Logs = txErr.Logs

	ixErr := txErr.InstructionError()
	if ixErr == nil || ixErr.Index < 0 || ixErr.Index >= len(txn.Message.Instructions) {
		return submissionErr
	}

	programIndex := int(txn.Message.Instructions[ixErr.Index].ProgramIndex)
	if programIndex >= len(txn.Message.Accounts) || !bytes.Equal(txn.Message.Accounts[programIndex], gideon.ProgramKey) {
		return submissionErr
	}

	if programErr, ok := gideon.GetError(err); ok {
		submissionErr.ProgramError = &programErr
	}
	return submissionErr
}
