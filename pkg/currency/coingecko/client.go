package coingecko

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	xrate "golang.org/x/time/rate"

	"github.com/gideon-vouchers/voucher-server/pkg/currency"
	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/rate"
	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
)

const (
	metricsStructName = "currency.coingecko.client"

	DefaultBaseUrl = "https://api.coingecko.com/api"

	historyDateLayout = "02-01-2006"

	// Public API quota is about 30 calls a minute.
	requestInterval = 2 * time.Second
	limiterKey      = "coingecko"
)

var (
	ErrRateLimited = errors.New("coingecko rate limit exceeded")

	errUnavailable = errors.New("coingecko unavailable")
)

type client struct {
	baseUrl    string
	httpClient *http.Client
	limiter    rate.Limiter
	retrier    retry.Retrier
}

func NewClient() currency.Client {
	return NewClientWithBaseUrl(DefaultBaseUrl)
}

// NewClientWithBaseUrl returns a client against a coingecko compatible API,
// such as the pro endpoint or a mirror.
func NewClientWithBaseUrl(baseUrl string) currency.Client {
	return newClient(
		baseUrl,
		rate.NewLocalRateLimiter(xrate.Every(requestInterval)),
		retry.Limit(3),
		retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
	)
}

// newClient retries transport failures and 5xx responses with strategies.
func newClient(baseUrl string, limiter rate.Limiter, strategies ...retry.Strategy) *client {
	strategies = append([]retry.Strategy{
		retry.RetryIf(func(err error) bool {
			var urlErr *url.Error
			return err == errUnavailable || (errors.As(err, &urlErr) && !errors.Is(err, context.Canceled))
		}),
	}, strategies...)

	return &client{
		baseUrl:    strings.TrimSuffix(baseUrl, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
		retrier:    retry.NewRetrier(strategies...),
	}
}

func (c *client) GetCurrentRates(ctx context.Context, base string) (*currency.ExchangeData, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetCurrentRates")
	defer tracer.End()

	query := url.Values{}
	for _, section := range []string{"localization", "tickers", "community_data", "developer_data", "sparkline"} {
		query.Set(section, "false")
	}

	var coin coinResponse
	if err := c.get(ctx, "/v3/coins/"+url.PathEscape(base), query, &coin); err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return coin.exchangeData(coin.LastUpdated), nil
}

// GetHistoricalRates returns the snapshot coingecko keeps for the UTC day of
// timestamp. The result is stamped at the start of that day.
func (c *client) GetHistoricalRates(ctx context.Context, base string, timestamp time.Time) (*currency.ExchangeData, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetHistoricalRates")
	defer tracer.End()

	day := time.Date(timestamp.Year(), timestamp.Month(), timestamp.Day(), 0, 0, 0, 0, timestamp.Location())

	query := url.Values{}
	query.Set("date", day.Format(historyDateLayout))
	query.Set("localization", "false")

	var coin coinResponse
	if err := c.get(ctx, "/v3/coins/"+url.PathEscape(base)+"/history", query, &coin); err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return coin.exchangeData(day), nil
}

func (c *client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return errors.Wrap(err, "rate limited")
	}

	endpoint := c.baseUrl + path + "?" + query.Encode()

	_, err := c.retrier.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return currency.ErrInvalidBase
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		case resp.StatusCode >= http.StatusInternalServerError:
			return errUnavailable
		default:
			return errors.Errorf("unexpected status code %d", resp.StatusCode)
		}

		return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "failed to decode response")
	})
	return err
}

type coinResponse struct {
	Symbol     string `json:"symbol"`
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
	LastUpdated time.Time `json:"last_updated"`
}

// exchangeData keeps fiat codes only. Coingecko mixes crypto assets such as
// "link" into the same price map.
func (r *coinResponse) exchangeData(at time.Time) *currency.ExchangeData {
	rates := make(map[string]float64, len(r.MarketData.CurrentPrice))
	for code, price := range r.MarketData.CurrentPrice {
		if len(code) != 3 {
			continue
		}
		rates[strings.ToLower(code)] = price
	}

	return &currency.ExchangeData{
		Base:      strings.ToLower(r.Symbol),
		Rates:     rates,
		Timestamp: at,
	}
}
