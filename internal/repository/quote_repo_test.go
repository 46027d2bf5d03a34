package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/epeers/nexus/internal/database"
	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

func TestQuoteRepository_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		t.Skip("PG_URL environment variable not set, skipping integration test")
	}
	ctx := context.Background()
	db, err := database.New(ctx, pgURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	defer db.Pool.Exec(ctx, `DELETE FROM quote_cache WHERE symbol = 'QTST'`)

	repo := NewQuoteRepository(db.Pool, time.Hour)
	clock := time.Date(2024, 7, 23, 14, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	repo.SetQuote(ctx, &models.Quote{Symbol: "qtst", Price: decimal.RequireFromString("123.45"), ChangePercent: 1.5, FetchedAt: clock})

	got, ok := repo.GetQuote(ctx, "QTST")
	if !ok {
		t.Fatal("expected cached quote")
	}
	if !got.Price.Equal(decimal.RequireFromString("123.45")) || got.ChangePercent != 1.5 {
		t.Errorf("unexpected quote %+v", got)
	}

	clock = clock.Add(2 * time.Hour)
	if _, ok := repo.GetQuote(ctx, "QTST"); ok {
		t.Errorf("expected expired quote to miss")
	}
	if n, err := repo.PurgeExpired(ctx); err != nil || n < 1 {
		t.Errorf("expected at least 1 purged quote, got %d, %v", n, err)
	}
}
