package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/currency"
	"github.com/gideon-vouchers/voucher-server/pkg/rate"
	"github.com/gideon-vouchers/voucher-server/pkg/retry"
)

const latestResponse = `{
  "id": "solana",
  "symbol": "SOL",
  "market_data": {
    "current_price": {
      "usd": 150.5,
      "ZAR": 2700.25,
      "eur": 140.1,
      "btc": 0.0023,
      "link": 9.1
    }
  },
  "last_updated": "2024-05-01T12:00:00.000Z"
}`

const historicalResponse = `{
  "id": "solana",
  "symbol": "sol",
  "market_data": {
    "current_price": {
      "usd": 99.5
    }
  }
}`

func newTestServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/coins/solana":
			assert.Equal(t, "false", r.URL.Query().Get("tickers"))
			_, _ = w.Write([]byte(latestResponse))
		case "/v3/coins/solana/history":
			assert.Equal(t, "02-01-2024", r.URL.Query().Get("date"))
			_, _ = w.Write([]byte(historicalResponse))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGetCurrentRates(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	client := newClient(server.URL+"/", &rate.NoLimiter{})

	data, err := client.GetCurrentRates(context.Background(), "solana")
	require.NoError(t, err)

	assert.Equal(t, "sol", data.Base)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), data.Timestamp.UTC())
	assert.Equal(t, map[string]float64{
		"usd": 150.5,
		"zar": 2700.25,
		"eur": 140.1,
		"btc": 0.0023,
	}, data.Rates)
}

func TestGetHistoricalRates(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	client := newClient(server.URL, &rate.NoLimiter{})

	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	data, err := client.GetHistoricalRates(context.Background(), "solana", at)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), data.Timestamp)
	assert.Equal(t, map[string]float64{"usd": 99.5}, data.Rates)
}

func TestGetCurrentRates_InvalidBase(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	client := newClient(server.URL, &rate.NoLimiter{})

	_, err := client.GetCurrentRates(context.Background(), "not-a-coin")
	assert.Equal(t, currency.ErrInvalidBase, err)
}

func TestGetCurrentRates_RateLimited(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newClient(server.URL, &rate.NoLimiter{}, retry.Limit(3))

	_, err := client.GetCurrentRates(context.Background(), "solana")
	assert.Equal(t, ErrRateLimited, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetCurrentRates_RetriesUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(latestResponse))
	}))
	defer server.Close()

	client := newClient(server.URL, &rate.NoLimiter{}, retry.Limit(3))

	data, err := client.GetCurrentRates(context.Background(), "solana")
	require.NoError(t, err)
	assert.Equal(t, 150.5, data.Rates["usd"])
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, -10)
	_, err = client.GetCurrentRates(context.Background(), "solana")
	assert.Equal(t, errUnavailable, err)
}

func TestGetCurrentRates_Canceled(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(server.URL, &rate.NoLimiter{}).GetCurrentRates(ctx, "solana")
	assert.Error(t, err)
}
