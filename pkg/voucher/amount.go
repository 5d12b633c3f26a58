package voucher

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const LamportsPerSol = 1_000_000_000

var (
	ErrInvalidAmount = errors.New("invalid amount")

	lamportsPerSol = decimal.NewFromInt(LamportsPerSol)
	maxLamports    = fromUint64(^uint64(0))
)

// SolToLamports converts a display amount in SOL to lamports, truncating
// toward zero.
func SolToLamports(sol string) (uint64, error) {
	d, err := decimal.NewFromString(sol)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAmount, "%q", sol)
	}
	return DecimalToLamports(d)
}

func DecimalToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, errors.Wrapf(ErrInvalidAmount, "negative amount %s", sol)
	}

	lamports := sol.Mul(lamportsPerSol).Truncate(0)
	if lamports.GreaterThan(maxLamports) {
		return 0, errors.Wrapf(ErrInvalidAmount, "amount %s overflows", sol)
	}

	return lamports.BigInt().Uint64(), nil
}

func LamportsToSol(lamports uint64) decimal.Decimal {
	return fromUint64(lamports).Div(lamportsPerSol)
}

// FormatSol renders lamports as a SOL amount without trailing zeros.
func FormatSol(lamports uint64) string {
	return LamportsToSol(lamports).String()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
