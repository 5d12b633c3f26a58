package lifecycle

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	compute_budget "github.com/gideon-vouchers/voucher-server/pkg/solana/computebudget"
)

// makeTransaction assembles a legacy transaction paid for by payer. A
// non-zero compute unit price prepends a priority fee instruction. The
// returned transaction is not signed.
func makeTransaction(payer ed25519.PublicKey, bh solana.Blockhash, computeUnitPrice uint64, instructions ...solana.Instruction) (solana.Transaction, error) {
	if len(instructions) == 0 {
		return solana.Transaction{}, errors.New("no instructions provided")
	}

	if computeUnitPrice > 0 {
		instructions = append([]solana.Instruction{compute_budget.SetComputeUnitPrice(computeUnitPrice)}, instructions...)
	}

	txn := solana.NewTransaction(payer, instructions...)
	txn.SetBlockhash(bh)

	if err := txn.CheckSize(); err != nil {
		return solana.Transaction{}, err
	}
	return txn, nil
}

func encodeSignature(txn *solana.Transaction) string {
	if len(txn.Signatures) == 0 {
		return ""
	}
	return base58.Encode(txn.Signature())
}

func publicKey(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}
