package currency

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
)

const (
	metricsStructName = "currency.converter"

	// SolanaAsset is the exchange rate base used for every conversion.
	SolanaAsset = "solana"

	DefaultCountry = "South Africa"
)

var (
	ErrUnknownCountry = errors.New("unknown country")
)

// Rate is the price of one SOL in a country's local currency.
type Rate struct {
	Country string
	Symbol  string
	Code    string
	Price   decimal.Decimal
}

// Used until the first successful refresh, and for any currency a refresh
// doesn't return.
var fallbackRates = []Rate{
	{Country: "South Africa", Symbol: "R", Code: "zar", Price: decimal.RequireFromString("2553.01")},
	{Country: "United States", Symbol: "$", Code: "usd", Price: decimal.RequireFromString("142.20")},
	{Country: "United Kingdom", Symbol: "£", Code: "gbp", Price: decimal.RequireFromString("108.80")},
	{Country: "European Union", Symbol: "€", Code: "eur", Price: decimal.RequireFromString("129.23")},
	{Country: "Japan", Symbol: "¥", Code: "jpy", Price: decimal.RequireFromString("20864.23")},
	{Country: "China", Symbol: "¥", Code: "cny", Price: decimal.RequireFromString("1042.83")},
	{Country: "India", Symbol: "₹", Code: "inr", Price: decimal.RequireFromString("11961.83")},
}

// Converter converts SOL amounts to and from local currencies.
type Converter struct {
	log    *logrus.Entry
	client Client

	mu        sync.RWMutex
	rates     []Rate
	updatedAt time.Time
}

func NewConverter(client Client) *Converter {
	rates := make([]Rate, len(fallbackRates))
	copy(rates, fallbackRates)

	return &Converter{
		log:    logrus.StandardLogger().WithField("type", "currency/converter"),
		client: client,
		rates:  rates,
	}
}

// Refresh replaces the rates of every currency the exchange returns. On
// failure the previous rates are kept.
func (c *Converter) Refresh(ctx context.Context) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Refresh")
	defer tracer.End()

	data, err := c.client.GetCurrentRates(ctx, SolanaAsset)
	if err != nil {
		c.log.WithError(err).Warn("failure refreshing exchange rates, keeping previous rates")
		tracer.OnError(err)
		return err
	}

	c.apply(data)
	return nil
}

// RefreshAt loads the rates of a past day.
func (c *Converter) RefreshAt(ctx context.Context, at time.Time) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RefreshAt")
	defer tracer.End()

	data, err := c.client.GetHistoricalRates(ctx, SolanaAsset, at)
	if err != nil {
		tracer.OnError(err)
		return err
	}

	c.apply(data)
	return nil
}

func (c *Converter) apply(data *ExchangeData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var updated int
	for i, rate := range c.rates {
		price, ok := data.Rate(rate.Code)
		if !ok {
			continue
		}
		c.rates[i].Price = decimal.NewFromFloat(price)
		updated++
	}
	c.updatedAt = data.Timestamp

	c.log.WithFields(logrus.Fields{
		"updated":   updated,
		"timestamp": data.Timestamp,
	}).Debug("exchange rates applied")
}

// Rates returns every known rate in a stable order.
func (c *Converter) Rates() []Rate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rates := make([]Rate, len(c.rates))
	copy(rates, c.rates)
	return rates
}

// UpdatedAt is the exchange timestamp of the last refresh, zero when only
// fallback rates are in use.
func (c *Converter) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// GetRate looks a country up by name, case insensitively.
func (c *Converter) GetRate(country string) (Rate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rate := range c.rates {
		if strings.EqualFold(rate.Country, strings.TrimSpace(country)) {
			return rate, nil
		}
	}
	return Rate{}, errors.Wrapf(ErrUnknownCountry, "%q", country)
}

// Convert returns the local currency value of sol.
func (c *Converter) Convert(country string, sol decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.GetRate(country)
	if err != nil {
		return decimal.Zero, err
	}
	return sol.Mul(rate.Price), nil
}

// ToSol returns the SOL value of a local currency amount.
func (c *Converter) ToSol(country string, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.GetRate(country)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(rate.Price), nil
}

// Format renders the local value of sol with the currency symbol and two
// decimals, e.g. "R 3829.52".
func (c *Converter) Format(country string, sol decimal.Decimal) (string, error) {
	rate, err := c.GetRate(country)
	if err != nil {
		return "", err
	}
	return rate.Symbol + " " + sol.Mul(rate.Price).StringFixed(2), nil
}
