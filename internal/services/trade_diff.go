package services

import (
	"sort"
	"strings"

	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

// shareEpsilon absorbs rounding noise; smaller deltas produce no trade
var shareEpsilon = decimal.New(1, -6)

func tickerKey(ticker string) string {
	return models.NormalizeTicker(ticker)
}

// Diff computes the orders that move current holdings to targets, sorted by ticker.
// Tickers held but not targeted are sold in full. Duplicate current rows are summed.
func Diff(targets []models.TargetHolding, current []models.Holding) []models.TradeInstruction {
	held := make(map[string]decimal.Decimal, len(current))
	heldName := make(map[string]string, len(current))
	for _, h := range current {
		key := tickerKey(h.Ticker)
		if _, seen := heldName[key]; !seen {
			heldName[key] = strings.TrimSpace(h.Ticker)
		}
		held[key] = held[key].Add(h.Shares)
	}

	var trades []models.TradeInstruction
	targeted := make(map[string]bool, len(targets))
	for _, t := range targets {
		key := tickerKey(t.Ticker)
		// A target listed twice would double-trade; the first one wins
		if targeted[key] {
			continue
		}
		targeted[key] = true

		delta := t.Shares.Sub(held[key])
		if delta.Abs().LessThanOrEqual(shareEpsilon) {
			continue
		}
		price := t.Price
		trade := models.TradeInstruction{Ticker: t.Ticker, Quantity: delta.Abs(), EstimatedPrice: &price}
		if delta.IsPositive() {
			trade.Side = models.TradeSideBuy
		} else {
			trade.Side = models.TradeSideSell
		}
		trades = append(trades, trade)
	}

	for key, shares := range held {
		if targeted[key] || shares.LessThanOrEqual(shareEpsilon) {
			continue
		}
		trades = append(trades, models.TradeInstruction{
			Ticker:   heldName[key],
			Side:     models.TradeSideSell,
			Quantity: shares,
		})
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return tickerKey(trades[i].Ticker) < tickerKey(trades[j].Ticker)
	})
	return trades
}
