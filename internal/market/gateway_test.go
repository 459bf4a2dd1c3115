package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bitcoinJSON = `{
	"id": "bitcoin",
	"symbol": "btc",
	"name": "Bitcoin",
	"market_data": {
		"current_price": {"usd": 30000},
		"market_cap": {"usd": 590000000000},
		"price_change_percentage_24h": 1.5
	}
}`

const marketsJSON = `[
	{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 30000, "market_cap": 590000000000, "market_cap_rank": 1},
	{"id": "ethereum", "symbol": "eth", "name": "Ethereum", "current_price": 1800, "market_cap": 220000000000, "market_cap_rank": 2}
]`

func fastConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Freshness:    time.Minute,
		CallInterval: time.Millisecond,
		BackoffBase:  time.Millisecond,
		Timeout:      5 * time.Second,
	}
}

func TestGetCoin(t *testing.T) {
	t.Run("fetches and caches within the freshness window", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "/coins/bitcoin", r.URL.Path)
			assert.Equal(t, "false", r.URL.Query().Get("localization"))
			w.Write([]byte(bitcoinJSON))
		}))
		defer srv.Close()

		g := NewGateway(fastConfig(srv.URL))

		detail, err := g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)
		assert.Equal(t, "Bitcoin", detail.Name)
		assert.Equal(t, 30000.0, detail.PriceUSD)

		_, err = g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)
		assert.Equal(t, int64(1), calls.Load(), "second call within the window must be served from cache")
	})

	t.Run("refetches once the freshness window has passed", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(bitcoinJSON))
		}))
		defer srv.Close()

		cfg := fastConfig(srv.URL)
		cfg.Freshness = 30 * time.Millisecond
		g := NewGateway(cfg)

		_, err := g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)

		time.Sleep(40 * time.Millisecond)

		_, err = g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("404 fails immediately with no retry", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		g := NewGateway(fastConfig(srv.URL))

		_, err := g.GetCoin(context.Background(), "nosuchcoin")
		assert.ErrorIs(t, err, ErrCoinNotFound)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("429 is retried three times with doubling backoff", func(t *testing.T) {
		var attempts []time.Time
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts = append(attempts, time.Now())
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		cfg := fastConfig(srv.URL)
		cfg.BackoffBase = 20 * time.Millisecond
		g := NewGateway(cfg)

		_, err := g.GetCoin(context.Background(), "bitcoin")
		assert.ErrorIs(t, err, ErrRateLimited)
		require.Len(t, attempts, 4, "initial attempt plus exactly three retries")

		// Delays scale 1x, 2x, 4x off the base.
		assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), 20*time.Millisecond)
		assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1]), 40*time.Millisecond)
		assert.GreaterOrEqual(t, attempts[3].Sub(attempts[2]), 80*time.Millisecond)
	})

	t.Run("server errors propagate without retry", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := NewGateway(fastConfig(srv.URL))

		_, err := g.GetCoin(context.Background(), "bitcoin")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCoinNotFound)
		assert.NotErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("paces successive upstream calls", func(t *testing.T) {
		var attempts []time.Time
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts = append(attempts, time.Now())
			w.Write([]byte(bitcoinJSON))
		}))
		defer srv.Close()

		cfg := fastConfig(srv.URL)
		cfg.CallInterval = 30 * time.Millisecond
		cfg.Freshness = time.Nanosecond // force an upstream call each time
		g := NewGateway(cfg)

		_, err := g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)
		_, err = g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)

		require.Len(t, attempts, 2)
		assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), 30*time.Millisecond)
	})
}

func TestGetTopCoins(t *testing.T) {
	t.Run("returns the market-cap ordered snapshot and caches it", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "/coins/markets", r.URL.Path)
			assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
			assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))
			w.Write([]byte(marketsJSON))
		}))
		defer srv.Close()

		g := NewGateway(fastConfig(srv.URL))

		top := g.GetTopCoins(context.Background())
		require.Len(t, top, 2)
		assert.Equal(t, "bitcoin", top[0].ID)
		assert.Equal(t, "ethereum", top[1].ID)

		g.GetTopCoins(context.Background())
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("degrades to empty on upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := NewGateway(fastConfig(srv.URL))
		assert.Empty(t, g.GetTopCoins(context.Background()))
	})

	t.Run("snapshot never leaks into coin details", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/coins/markets":
				w.Write([]byte(marketsJSON))
			case "/coins/bitcoin":
				w.Write([]byte(bitcoinJSON))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		g := NewGateway(fastConfig(srv.URL))
		require.NotEmpty(t, g.GetTopCoins(context.Background()))

		// A user-typed id that happens to match any internal naming must
		// behave like any other unknown coin, never yield a nil detail.
		detail, err := g.GetCoin(context.Background(), "top coins")
		assert.ErrorIs(t, err, ErrCoinNotFound)
		assert.Nil(t, detail)

		detail, err = g.GetCoin(context.Background(), "bitcoin")
		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, "Bitcoin", detail.Name)
	})
}
