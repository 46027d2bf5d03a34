package services

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// QuoteScorer is the MarketContext backed by live quotes: a ticker's score is its
// session change percent. Tickers without a quote are left unscored rather than
// failing the command, so they rank last.
type QuoteScorer struct {
	pricing *PricingService
}

// NewQuoteScorer creates a new QuoteScorer
func NewQuoteScorer(pricing *PricingService) *QuoteScorer {
	return &QuoteScorer{pricing: pricing}
}

func (s *QuoteScorer) Scores(ctx context.Context, tickers []string) (map[string]float64, error) {
	var mu sync.Mutex
	scores := make(map[string]float64, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for _, ticker := range tickers {
		g.Go(func() error {
			quote, err := s.pricing.GetQuote(gctx, ticker)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				log.Warnf("no score for %s: %v", ticker, err)
				return nil
			}
			mu.Lock()
			scores[ticker] = quote.ChangePercent
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// StaticScores is a fixed MarketContext, used for resolution previews supplied with
// explicit scores and in tests
type StaticScores map[string]float64

func (s StaticScores) Scores(_ context.Context, tickers []string) (map[string]float64, error) {
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if v, ok := s[t]; ok {
			out[t] = v
		}
	}
	return out, nil
}
