package services

import (
	"testing"

	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

func target(ticker, shares string, price float64) models.TargetHolding {
	return models.TargetHolding{
		Ticker: ticker,
		Shares: decimal.RequireFromString(shares),
		Price:  decimal.NewFromFloat(price),
	}
}

func holding(ticker, shares string) models.Holding {
	return models.Holding{Ticker: ticker, Shares: decimal.RequireFromString(shares)}
}

func assertTrade(t *testing.T, got models.TradeInstruction, ticker string, side models.TradeSide, qty string) {
	t.Helper()
	if got.Ticker != ticker || got.Side != side || !got.Quantity.Equal(decimal.RequireFromString(qty)) {
		t.Errorf("expected %s %s %s, got %s %s %s", side, qty, ticker, got.Side, got.Quantity, got.Ticker)
	}
}

func TestDiff_BuysSellsAndLiquidations(t *testing.T) {
	trades := Diff(
		[]models.TargetHolding{target("MSFT", "5", 400), target("AAPL", "10", 200)},
		[]models.Holding{holding("AAPL", "4"), holding("TSLA", "3")},
	)

	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d: %+v", len(trades), trades)
	}
	assertTrade(t, trades[0], "AAPL", models.TradeSideBuy, "6")
	assertTrade(t, trades[1], "MSFT", models.TradeSideBuy, "5")
	assertTrade(t, trades[2], "TSLA", models.TradeSideSell, "3")

	if trades[0].EstimatedPrice == nil || !trades[0].EstimatedPrice.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected AAPL estimated price 200, got %v", trades[0].EstimatedPrice)
	}
	// A ticker that is only being liquidated has no quote
	if trades[2].EstimatedPrice != nil {
		t.Errorf("expected no estimated price for TSLA, got %s", trades[2].EstimatedPrice)
	}
}

func TestDiff_PartialSell(t *testing.T) {
	trades := Diff([]models.TargetHolding{target("AAPL", "2", 200)}, []models.Holding{holding("AAPL", "5.5")})

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	assertTrade(t, trades[0], "AAPL", models.TradeSideSell, "3.5")
}

func TestDiff_NoChange(t *testing.T) {
	trades := Diff(
		[]models.TargetHolding{target("AAPL", "10", 200), target("MSFT", "10.0000004", 400)},
		[]models.Holding{holding("AAPL", "10"), holding("MSFT", "10")},
	)
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %+v", trades)
	}
}

// Current rows are matched case-insensitively and summed
func TestDiff_DuplicateCurrentRows(t *testing.T) {
	trades := Diff(
		[]models.TargetHolding{target("AAPL", "10", 200)},
		[]models.Holding{holding("aapl", "2"), holding(" AAPL ", "3")},
	)

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d: %+v", len(trades), trades)
	}
	assertTrade(t, trades[0], "AAPL", models.TradeSideBuy, "5")
}

func TestDiff_ZeroTargetSellsEverything(t *testing.T) {
	trades := Diff([]models.TargetHolding{target("AAPL", "0", 200)}, []models.Holding{holding("AAPL", "7")})

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	assertTrade(t, trades[0], "AAPL", models.TradeSideSell, "7")
}

func TestDiff_ZeroHoldingIgnored(t *testing.T) {
	trades := Diff(nil, []models.Holding{holding("AAPL", "0")})
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %+v", trades)
	}
}

// Applying the trades to current holdings reaches the targets
func TestDiff_ReachesTargets(t *testing.T) {
	targets := []models.TargetHolding{target("A", "12.5", 10), target("B", "0", 20), target("C", "3", 30)}
	current := []models.Holding{holding("A", "20"), holding("B", "4"), holding("D", "1.25")}

	positions := map[string]decimal.Decimal{}
	for _, h := range current {
		positions[h.Ticker] = h.Shares
	}
	for _, tr := range Diff(targets, current) {
		if tr.Side == models.TradeSideBuy {
			positions[tr.Ticker] = positions[tr.Ticker].Add(tr.Quantity)
		} else {
			positions[tr.Ticker] = positions[tr.Ticker].Sub(tr.Quantity)
		}
	}

	want := map[string]string{"A": "12.5", "B": "0", "C": "3", "D": "0"}
	for ticker, shares := range want {
		if !positions[ticker].Equal(decimal.RequireFromString(shares)) {
			t.Errorf("%s: expected %s shares after trading, got %s", ticker, shares, positions[ticker])
		}
	}
}
