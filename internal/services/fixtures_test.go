package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/epeers/nexus/internal/alphavantage"
	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/repository"
	"github.com/shopspring/decimal"
)

func tk(symbol string, w float64) models.Component {
	return models.Component{Kind: models.ComponentKindTicker, Value: symbol, Weight: w}
}

func pref(code string, w float64) models.Component {
	return models.Component{Kind: models.ComponentKindPortfolioRef, Value: code, Weight: w}
}

func nref(code string, w float64) models.Component {
	return models.Component{Kind: models.ComponentKindNexusRef, Value: code, Weight: w}
}

func cmd(name string, w float64) models.Component {
	return models.Component{Kind: models.ComponentKindCommandRef, Value: name, Weight: w}
}

func cultivate(w float64, a, b []models.Component) models.Component {
	c := cmd(models.CommandCultivate, w)
	c.Branches = map[string][]models.Component{models.VariantA: a, models.VariantB: b}
	return c
}

func portfolio(code string, components ...models.Component) *models.Definition {
	return &models.Definition{Kind: models.DefinitionKindPortfolio, Code: code, OwnerID: 1, Components: components}
}

func nexus(code string, components ...models.Component) *models.Definition {
	return &models.Definition{Kind: models.DefinitionKindNexus, Code: code, OwnerID: 1, Components: components}
}

func portfolioRef(code string) models.DefinitionRef {
	return models.DefinitionRef{Kind: models.DefinitionKindPortfolio, Code: code}
}

func nexusRef(code string) models.DefinitionRef {
	return models.DefinitionRef{Kind: models.DefinitionKindNexus, Code: code}
}

func newTestResolver() *Resolver {
	return NewResolver(NewCommandRegistry(2.0, BreakoutPolicyEqual), 0)
}

const weightTolerance = 1e-6

func assertWeights(t *testing.T, items []models.ResolvedItem, want map[string]float64, order ...string) {
	t.Helper()
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(items), items)
	}
	for i, it := range items {
		w, ok := want[it.Ticker]
		if !ok {
			t.Errorf("unexpected ticker %s", it.Ticker)
			continue
		}
		if math.Abs(it.Weight-w) > weightTolerance {
			t.Errorf("%s: expected weight %.6f, got %.6f", it.Ticker, w, it.Weight)
		}
		if len(order) > 0 && order[i] != it.Ticker {
			t.Errorf("position %d: expected %s, got %s", i, order[i], it.Ticker)
		}
	}
}

func hasWarning(warnings []models.Warning, code models.WarningCode) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// fakePrices is a PriceSource with fixed prices; unknown tickers fail
type fakePrices map[string]float64

func (f fakePrices) GetQuotes(_ context.Context, symbols []string) (map[string]*models.Quote, error) {
	quotes := make(map[string]*models.Quote, len(symbols))
	for _, s := range symbols {
		p, ok := f[s]
		if !ok {
			return nil, &PriceUnavailableError{Ticker: s}
		}
		quotes[s] = &models.Quote{Symbol: s, Price: decimal.NewFromFloat(p)}
	}
	return quotes, nil
}

// fakeFetcher stands in for the AlphaVantage client
type fakeFetcher struct {
	mu     sync.Mutex
	quotes map[string]alphavantage.ParsedQuote
	calls  map[string]int
}

func newFakeFetcher(quotes map[string]alphavantage.ParsedQuote) *fakeFetcher {
	return &fakeFetcher{quotes: quotes, calls: make(map[string]int)}
}

func (f *fakeFetcher) GetQuote(_ context.Context, symbol string) (*alphavantage.ParsedQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", alphavantage.ErrNoQuote, symbol)
	}
	return &q, nil
}

func (f *fakeFetcher) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

// mapCache is a QuoteCache tier backed by a map
type mapCache struct {
	mu     sync.Mutex
	quotes map[string]*models.Quote
}

func newMapCache() *mapCache {
	return &mapCache{quotes: make(map[string]*models.Quote)}
}

func (c *mapCache) GetQuote(_ context.Context, symbol string) (*models.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	return q, ok
}

func (c *mapCache) SetQuote(_ context.Context, q *models.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.Symbol] = q
}

func newStore(t *testing.T, defs ...*models.Definition) *repository.MemoryDefinitionStore {
	t.Helper()
	return repository.NewMemoryDefinitionStore(defs...)
}
