package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ResolvedSource is one path through the reference graph that contributed
// weight to a resolved ticker.
type ResolvedSource struct {
	Path   []string `json:"path"`
	Weight float64  `json:"weight"`
}

// ResolvedItem is a ticker after resolution. Weight is in percentage points;
// the items of one resolution sum to at most 100 and the remainder is cash.
// Path is the chain of codes of the first path that reached the ticker.
type ResolvedItem struct {
	Ticker  string           `json:"ticker"`
	Weight  float64          `json:"weight"`
	Path    []string         `json:"path"`
	Sources []ResolvedSource `json:"sources,omitempty"`
}

func (r ResolvedSource) MarshalJSON() ([]byte, error) {
	type plain struct {
		Path   []string        `json:"path"`
		Weight json.RawMessage `json:"weight"`
	}
	return json.Marshal(plain{
		Path:   r.Path,
		Weight: json.RawMessage(fmt.Sprintf("%.6f", r.Weight)),
	})
}

func (r ResolvedItem) MarshalJSON() ([]byte, error) {
	type plain struct {
		Ticker  string           `json:"ticker"`
		Weight  json.RawMessage  `json:"weight"`
		Path    []string         `json:"path"`
		Sources []ResolvedSource `json:"sources,omitempty"`
	}
	return json.Marshal(plain{
		Ticker:  r.Ticker,
		Weight:  json.RawMessage(fmt.Sprintf("%.6f", r.Weight)),
		Path:    r.Path,
		Sources: r.Sources,
	})
}

// TotalWeight sums the weights of resolved items
func TotalWeight(items []ResolvedItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Weight
	}
	return total
}

// Quote represents a real-time quote for a security.
// ChangePercent is the session change and doubles as the default momentum score.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent float64         `json:"change_percent"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// TargetHolding is the desired position for one ticker after allocation
type TargetHolding struct {
	Ticker string          `json:"ticker"`
	Weight float64         `json:"weight"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
	Shares decimal.Decimal `json:"shares"`
}

// Allocation is the result of converting resolved weights into positions
type Allocation struct {
	TotalCapital decimal.Decimal `json:"total_capital"`
	Holdings     []TargetHolding `json:"holdings"`
	Cash         decimal.Decimal `json:"cash"`
}

// Holding is a current position supplied by the caller or the brokerage
type Holding struct {
	Ticker string          `json:"ticker"`
	Shares decimal.Decimal `json:"shares"`
}

// TradeSide is buy or sell
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeInstruction is one order derived from the target vs current diff
type TradeInstruction struct {
	Ticker         string           `json:"ticker"`
	Side           TradeSide        `json:"side"`
	Quantity       decimal.Decimal  `json:"quantity"`
	EstimatedPrice *decimal.Decimal `json:"estimated_price,omitempty"`
}
