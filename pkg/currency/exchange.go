package currency

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidBase = errors.New("invalid base currency")

// ExchangeData is a snapshot of the price of Base in other currencies, keyed
// by lower case ISO 4217 code.
type ExchangeData struct {
	Base      string
	Rates     map[string]float64
	Timestamp time.Time
}

// Rate returns the price in code. Non-positive prices are treated as missing.
func (d *ExchangeData) Rate(code string) (float64, bool) {
	price, ok := d.Rates[strings.ToLower(code)]
	return price, ok && price > 0
}

// Client is an exchange rate source.
type Client interface {
	GetCurrentRates(ctx context.Context, base string) (*ExchangeData, error)

	// GetHistoricalRates returns the daily rates for the day containing
	// timestamp.
	GetHistoricalRates(ctx context.Context, base string, timestamp time.Time) (*ExchangeData, error)
}
