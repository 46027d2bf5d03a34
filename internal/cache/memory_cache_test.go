package cache

import (
	"context"
	"testing"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

func mustNY(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("bad time %q: %v", value, err)
	}
	return ts
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5 * time.Minute)
	now := mustNY(t, "2026-03-11 10:00") // Wednesday
	c.now = func() time.Time { return now }

	c.SetQuote(ctx, &models.Quote{Symbol: "aapl", Price: decimal.RequireFromString("189.25")})

	q, ok := c.GetQuote(ctx, "AAPL")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !q.Price.Equal(decimal.RequireFromString("189.25")) {
		t.Errorf("Price = %s, want 189.25", q.Price)
	}

	now = now.Add(6 * time.Minute)
	if _, ok := c.GetQuote(ctx, "AAPL"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestMemoryCacheExpiresAtMarketClose(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	now := mustNY(t, "2026-03-11 16:20")
	c.now = func() time.Time { return now }

	c.SetQuote(ctx, &models.Quote{Symbol: "MSFT", Price: decimal.NewFromInt(400)})

	now = now.Add(9 * time.Minute)
	if _, ok := c.GetQuote(ctx, "MSFT"); !ok {
		t.Fatal("expected hit before the close")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.GetQuote(ctx, "MSFT"); ok {
		t.Error("expected miss after the 16:30 close")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	c.SetQuote(ctx, &models.Quote{Symbol: "VTI", Price: decimal.NewFromInt(250)})
	c.InvalidateQuote("vti")
	if _, ok := c.GetQuote(ctx, "VTI"); ok {
		t.Error("expected miss after invalidate")
	}
}
