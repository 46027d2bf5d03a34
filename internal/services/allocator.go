package services

import (
	"context"
	"fmt"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

const (
	fractionalSharePlaces = 6
	cashPlaces            = 2
)

var hundred = decimal.NewFromInt(100)

// Allocator converts resolved weights into share counts against a capital amount
type Allocator struct {
	prices PriceSource
}

// NewAllocator creates a new Allocator
func NewAllocator(prices PriceSource) *Allocator {
	return &Allocator{prices: prices}
}

// Allocate sizes a position for every resolved item. Shares are never rounded up,
// so Σ value ≤ capital and the remainder is cash. Prices are fetched for every
// ticker before any sizing happens; one missing price fails the whole allocation.
func (a *Allocator) Allocate(ctx context.Context, items []models.ResolvedItem, totalCapital decimal.Decimal, fractional bool) (*models.Allocation, error) {
	defer TrackTime("Allocate", time.Now())

	if !totalCapital.IsPositive() {
		return nil, ErrInvalidCapital
	}

	alloc := &models.Allocation{
		TotalCapital: totalCapital,
		Holdings:     make([]models.TargetHolding, 0, len(items)),
		Cash:         totalCapital,
	}
	if len(items) == 0 {
		return alloc, nil
	}

	quotes, err := a.prices.GetQuotes(ctx, tickersOf(items))
	if err != nil {
		return nil, err
	}

	invested := decimal.Zero
	for _, it := range items {
		quote, ok := quotes[it.Ticker]
		if !ok || !quote.Price.IsPositive() {
			return nil, &PriceUnavailableError{Ticker: it.Ticker}
		}
		h := sizePosition(it, quote.Price, totalCapital, fractional)
		if h.Shares.IsZero() && it.Weight > 0 {
			AddWarning(ctx, models.Warning{
				Code:    models.WarnSharesRoundedToZero,
				Message: fmt.Sprintf("%s: %.4f%% of capital buys less than one share at %s", it.Ticker, it.Weight, quote.Price.StringFixed(2)),
			})
		}
		invested = invested.Add(h.Value)
		alloc.Holdings = append(alloc.Holdings, h)
	}

	alloc.Cash = totalCapital.Sub(invested)
	if alloc.Cash.IsNegative() {
		alloc.Cash = decimal.Zero
	}
	return alloc, nil
}

func sizePosition(it models.ResolvedItem, price, capital decimal.Decimal, fractional bool) models.TargetHolding {
	target := capital.Mul(decimal.NewFromFloat(it.Weight)).Div(hundred)
	shares := target.Div(price)
	if fractional {
		shares = shares.Truncate(fractionalSharePlaces)
	} else {
		shares = shares.Floor()
	}
	return models.TargetHolding{
		Ticker: it.Ticker,
		Weight: it.Weight,
		Price:  price,
		Value:  shares.Mul(price).Truncate(cashPlaces),
		Shares: shares,
	}
}
