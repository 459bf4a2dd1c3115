package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Parth0603/CryptoPulse/internal/database"
	"github.com/Parth0603/CryptoPulse/internal/market"
)

func newTestCommands(t *testing.T, handler http.Handler) *Commands {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gateway := market.NewGateway(market.Config{
		BaseURL:      srv.URL,
		CallInterval: time.Millisecond,
		BackoffBase:  time.Millisecond,
	})

	return New(store, gateway)
}

func TestCommandTop(t *testing.T) {
	t.Run("renders the ranked list", func(t *testing.T) {
		c := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":30000,"market_cap":1,"market_cap_rank":1}]`))
		}))

		out := c.CommandTop(context.Background())
		assert.Contains(t, out, "1. Bitcoin (BTC)")
	})

	t.Run("empty upstream renders could-not-fetch, not an empty table", func(t *testing.T) {
		c := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))

		out := c.CommandTop(context.Background())
		assert.Contains(t, out, "Could not fetch")
	})
}

func TestCommandAddFavorite(t *testing.T) {
	t.Run("unknown coin writes nothing", func(t *testing.T) {
		c := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := c.CommandAddFavorite(context.Background(), "42", "nosuchcoin")
		assert.ErrorIs(t, err, market.ErrCoinNotFound)

		out, err := c.CommandFavorites("42")
		require.NoError(t, err)
		assert.Contains(t, out, "no favorites")
	})

	t.Run("valid coin is stored under its canonical id", func(t *testing.T) {
		c := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_data":{"current_price":{"usd":30000}}}`))
		}))

		out, err := c.CommandAddFavorite(context.Background(), "42", "bitcoin")
		require.NoError(t, err)
		assert.Contains(t, out, "bitcoin")

		list, err := c.CommandFavorites("42")
		require.NoError(t, err)
		assert.Contains(t, list, "⭐ bitcoin")
	})
}

func TestCommandAlerts(t *testing.T) {
	c := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	out, err := c.CommandAlerts("42")
	require.NoError(t, err)
	assert.Contains(t, out, "no active alerts")
}
