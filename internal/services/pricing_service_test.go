package services

import (
	"context"
	"errors"
	"testing"

	"github.com/epeers/nexus/internal/alphavantage"
	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

func TestPricingService_MissFetchesAndFillsCaches(t *testing.T) {
	fetcher := newFakeFetcher(map[string]alphavantage.ParsedQuote{
		"AAPL": {Symbol: "AAPL", Price: 187.5, ChangePercent: 1.25},
	})
	fast, slow := newMapCache(), newMapCache()
	svc := NewPricingService(fetcher, fast, slow)

	q, err := svc.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("187.5")) || q.ChangePercent != 1.25 {
		t.Errorf("unexpected quote %+v", q)
	}
	for name, c := range map[string]*mapCache{"fast": fast, "slow": slow} {
		if _, ok := c.GetQuote(context.Background(), "AAPL"); !ok {
			t.Errorf("expected %s cache to be filled", name)
		}
	}

	if _, err := svc.GetQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("second GetQuote failed: %v", err)
	}
	if n := fetcher.callCount("AAPL"); n != 1 {
		t.Errorf("expected 1 fetch, got %d", n)
	}
}

// A hit in a slower tier is copied into the faster tiers
func TestPricingService_BackfillsFasterTier(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	fast, slow := newMapCache(), newMapCache()
	slow.SetQuote(context.Background(), &models.Quote{Symbol: "MSFT", Price: decimal.NewFromInt(400)})
	svc := NewPricingService(fetcher, fast, slow)

	if _, err := svc.GetQuote(context.Background(), "MSFT"); err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if _, ok := fast.GetQuote(context.Background(), "MSFT"); !ok {
		t.Errorf("expected fast tier to be backfilled")
	}
	if n := fetcher.callCount("MSFT"); n != 0 {
		t.Errorf("expected no fetch, got %d", n)
	}
}

func TestPricingService_GetQuotes(t *testing.T) {
	fetcher := newFakeFetcher(map[string]alphavantage.ParsedQuote{
		"A": {Symbol: "A", Price: 10},
		"B": {Symbol: "B", Price: 20},
	})
	svc := NewPricingService(fetcher)

	quotes, err := svc.GetQuotes(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}
	if len(quotes) != 2 || !quotes["B"].Price.Equal(decimal.NewFromInt(20)) {
		t.Errorf("unexpected quotes %+v", quotes)
	}
}

func TestPricingService_GetQuotesFailsOnAnyMissing(t *testing.T) {
	fetcher := newFakeFetcher(map[string]alphavantage.ParsedQuote{
		"A":    {Symbol: "A", Price: 10},
		"FREE": {Symbol: "FREE", Price: 0},
	})
	svc := NewPricingService(fetcher)

	for _, symbols := range [][]string{{"A", "GHOST"}, {"A", "FREE"}} {
		_, err := svc.GetQuotes(context.Background(), symbols)
		var pu *PriceUnavailableError
		if !errors.As(err, &pu) {
			t.Errorf("%v: expected PriceUnavailableError, got %v", symbols, err)
			continue
		}
		if pu.Ticker != symbols[1] {
			t.Errorf("expected failing ticker %s, got %s", symbols[1], pu.Ticker)
		}
	}
}

func TestQuoteScorer_SkipsUnavailable(t *testing.T) {
	fetcher := newFakeFetcher(map[string]alphavantage.ParsedQuote{
		"UP":   {Symbol: "UP", Price: 10, ChangePercent: 3.5},
		"DOWN": {Symbol: "DOWN", Price: 10, ChangePercent: -1.2},
	})
	scorer := NewQuoteScorer(NewPricingService(fetcher))

	scores, err := scorer.Scores(context.Background(), []string{"UP", "DOWN", "GHOST"})
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	if scores["UP"] != 3.5 || scores["DOWN"] != -1.2 {
		t.Errorf("unexpected scores %+v", scores)
	}
	if _, ok := scores["GHOST"]; ok {
		t.Errorf("expected GHOST to be unscored")
	}
}

func TestStaticScores_OnlyRequested(t *testing.T) {
	scores, _ := StaticScores{"A": 1, "B": 2}.Scores(context.Background(), []string{"B", "C"})
	if len(scores) != 1 || scores["B"] != 2 {
		t.Errorf("unexpected scores %+v", scores)
	}
}
