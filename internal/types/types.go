package types

// Condition is the comparison an alert applies to the live price.
type Condition string

const (
	ConditionAbove Condition = ">"
	ConditionBelow Condition = "<"
	ConditionEqual Condition = "="
)

// Valid reports whether c is one of the three supported comparisons.
func (c Condition) Valid() bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionEqual:
		return true
	}
	return false
}

type Alert struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Coin      string    `json:"coin"`
	Condition Condition `json:"condition"`
	Price     float64   `json:"price"`
	CreatedAt string    `json:"created_at"`
}

// CoinDetail is the single-coin payload from GET /coins/{id}.
type CoinDetail struct {
	ID        string
	Symbol    string
	Name      string
	PriceUSD  float64
	MarketCap float64
	Change24h float64
}

// CoinSummary is one row of the GET /coins/markets top list.
type CoinSummary struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	PriceUSD  float64 `json:"current_price"`
	MarketCap float64 `json:"market_cap"`
	Rank      int     `json:"market_cap_rank"`
}
