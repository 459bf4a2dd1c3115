package market

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/internal/types"
)

const (
	topCoinsLimit = 10
	maxRetries    = 3
)

var (
	// ErrCoinNotFound means the upstream does not know the requested id.
	ErrCoinNotFound = errors.New("coin not found")
	// ErrRateLimited means the upstream kept answering 429 through the
	// whole retry budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Config carries the gateway knobs. The zero value is completed by
// NewGateway with production defaults; tests shrink the intervals.
type Config struct {
	BaseURL      string
	Freshness    time.Duration // cache validity window
	CallInterval time.Duration // minimum delay before every upstream attempt
	BackoffBase  time.Duration // first 429 retry delay, doubled per retry
	Timeout      time.Duration // per-request HTTP timeout
}

// Gateway fetches market data with a freshness-window cache, a global
// inter-call pace and a bounded 429 retry loop.
type Gateway struct {
	client *resty.Client
	cfg    Config

	// The top-coins snapshot is held apart from the detail cache so a
	// user-supplied coin id can never collide with it.
	cacheMu      sync.Mutex
	details      map[string]detailEntry
	top          []types.CoinSummary
	topFetchedAt time.Time

	paceMu   sync.Mutex
	lastCall time.Time
}

type detailEntry struct {
	detail    *types.CoinDetail
	fetchedAt time.Time
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Freshness == 0 {
		cfg.Freshness = 5 * time.Minute
	}
	if cfg.CallInterval == 0 {
		cfg.CallInterval = 1200 * time.Millisecond
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Gateway{
		client:  client,
		cfg:     cfg,
		details: make(map[string]detailEntry),
	}
}

type coinResponse struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	MarketData struct {
		CurrentPrice             map[string]float64 `json:"current_price"`
		MarketCap                map[string]float64 `json:"market_cap"`
		PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// GetCoin returns the detail for one coin id, served from cache while fresh.
// A 404 fails immediately with ErrCoinNotFound; 429 responses are retried up
// to 3 times with doubling backoff before ErrRateLimited.
func (g *Gateway) GetCoin(ctx context.Context, id string) (*types.CoinDetail, error) {
	if detail, ok := g.cachedDetail(id); ok {
		return detail, nil
	}

	body, err := g.fetch(ctx, "/coins/"+id, map[string]string{
		"localization":   "false",
		"tickers":        "false",
		"community_data": "false",
		"developer_data": "false",
	})
	if err != nil {
		return nil, err
	}

	var resp coinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to decode coin %s", id)
	}

	detail := &types.CoinDetail{
		ID:        resp.ID,
		Symbol:    resp.Symbol,
		Name:      resp.Name,
		PriceUSD:  resp.MarketData.CurrentPrice["usd"],
		MarketCap: resp.MarketData.MarketCap["usd"],
		Change24h: resp.MarketData.PriceChangePercentage24h,
	}

	g.storeDetail(id, detail)
	return detail, nil
}

// GetTopCoins returns the top coins by market cap, descending. Any upstream
// failure degrades to an empty slice; callers render "could not fetch"
// instead of an error.
func (g *Gateway) GetTopCoins(ctx context.Context) []types.CoinSummary {
	if top, ok := g.cachedTop(); ok {
		return top
	}

	body, err := g.fetch(ctx, "/coins/markets", map[string]string{
		"vs_currency": "usd",
		"order":       "market_cap_desc",
		"per_page":    "10",
		"page":        "1",
	})
	if err != nil {
		log.Errorf("failed to fetch top coins: %v", err)
		return nil
	}

	var top []types.CoinSummary
	if err := json.Unmarshal(body, &top); err != nil {
		log.Errorf("failed to decode top coins: %v", err)
		return nil
	}
	if len(top) > topCoinsLimit {
		top = top[:topCoinsLimit]
	}

	g.storeTop(top)
	return top
}

// fetch performs one upstream GET with pacing and the 429 retry loop.
func (g *Gateway) fetch(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := g.pace(ctx); err != nil {
			return nil, err
		}

		resp, err := g.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			return nil, errors.Wrapf(err, "upstream request %s failed", path)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			return resp.Body(), nil
		case http.StatusNotFound:
			return nil, ErrCoinNotFound
		case http.StatusTooManyRequests:
			if attempt >= maxRetries {
				return nil, ErrRateLimited
			}
			delay := g.cfg.BackoffBase << attempt
			log.Debugf("upstream 429 on %s, retrying in %s", path, delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("upstream request %s failed with status %d", path, resp.StatusCode())
		}
	}
}

// pace enforces the global minimum delay between upstream call attempts.
func (g *Gateway) pace(ctx context.Context) error {
	g.paceMu.Lock()
	now := time.Now()
	wait := g.lastCall.Add(g.cfg.CallInterval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before sleeping so concurrent callers queue up.
	g.lastCall = now.Add(wait)
	g.paceMu.Unlock()

	if wait > 0 {
		return sleep(ctx, wait)
	}
	return nil
}

func (g *Gateway) cachedDetail(id string) (*types.CoinDetail, bool) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	entry, ok := g.details[id]
	if !ok || time.Since(entry.fetchedAt) >= g.cfg.Freshness {
		return nil, false
	}
	return entry.detail, true
}

func (g *Gateway) storeDetail(id string, detail *types.CoinDetail) {
	g.cacheMu.Lock()
	g.details[id] = detailEntry{detail: detail, fetchedAt: time.Now()}
	g.cacheMu.Unlock()
}

func (g *Gateway) cachedTop() ([]types.CoinSummary, bool) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	if len(g.top) == 0 || time.Since(g.topFetchedAt) >= g.cfg.Freshness {
		return nil, false
	}
	return g.top, true
}

func (g *Gateway) storeTop(top []types.CoinSummary) {
	g.cacheMu.Lock()
	g.top = top
	g.topFetchedAt = time.Now()
	g.cacheMu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
