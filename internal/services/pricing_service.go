package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/epeers/nexus/internal/alphavantage"
	"github.com/epeers/nexus/internal/metrics"
	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentQuotes bounds parallel market data requests per call
const maxConcurrentQuotes = 8

// QuoteCache is a quote cache tier (memory or redis)
type QuoteCache interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, bool)
	SetQuote(ctx context.Context, quote *models.Quote)
}

// QuoteFetcher fetches live quotes; implemented by alphavantage.Client
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*alphavantage.ParsedQuote, error)
}

// PriceSource is what the Allocator needs
type PriceSource interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error)
}

// PricingService handles quote fetching through the cache tiers, falling back to AlphaVantage
type PricingService struct {
	caches  []QuoteCache
	fetcher QuoteFetcher
}

// NewPricingService creates a new PricingService. Caches are consulted in order.
func NewPricingService(fetcher QuoteFetcher, caches ...QuoteCache) *PricingService {
	return &PricingService{
		caches:  caches,
		fetcher: fetcher,
	}
}

// GetQuote fetches a real-time quote, checking each cache tier first
func (s *PricingService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	for i, c := range s.caches {
		if quote, ok := c.GetQuote(ctx, symbol); ok {
			metrics.QuoteCacheLookups.WithLabelValues("hit").Inc()
			// backfill the faster tiers
			for _, faster := range s.caches[:i] {
				faster.SetQuote(ctx, quote)
			}
			return quote, nil
		}
	}
	metrics.QuoteCacheLookups.WithLabelValues("miss").Inc()

	avQuote, err := s.fetcher.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote from AlphaVantage: %w", err)
	}

	quote := &models.Quote{
		Symbol:        symbol,
		Price:         decimal.NewFromFloat(avQuote.Price),
		ChangePercent: avQuote.ChangePercent,
		FetchedAt:     time.Now(),
	}
	for _, c := range s.caches {
		c.SetQuote(ctx, quote)
	}
	return quote, nil
}

// GetQuotes fetches quotes for every symbol concurrently. Any failure fails the
// whole call with a *PriceUnavailableError naming the first ticker that failed.
func (s *PricingService) GetQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	defer TrackTime("GetQuotes", time.Now())

	var mu sync.Mutex
	quotes := make(map[string]*models.Quote, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for _, symbol := range symbols {
		g.Go(func() error {
			quote, err := s.GetQuote(gctx, symbol)
			if err != nil {
				log.Warnf("quote for %s unavailable: %v", symbol, err)
				return &PriceUnavailableError{Ticker: symbol, Err: err}
			}
			if !quote.Price.IsPositive() {
				return &PriceUnavailableError{Ticker: symbol, Err: fmt.Errorf("non-positive price %s", quote.Price)}
			}
			mu.Lock()
			quotes[symbol] = quote
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}
