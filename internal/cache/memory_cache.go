package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/util"
)

// quoteLifetime is how long a quote cached at now stays fresh
func quoteLifetime(now time.Time, ttl time.Duration) time.Duration {
	return util.QuoteDeadline(now, ttl).Sub(now)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// MemoryCache provides an in-process cache for quotes
type MemoryCache struct {
	quotes  map[string]quoteEntry
	quoteMu sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

type quoteEntry struct {
	quote     *models.Quote
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(quoteTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		quotes: make(map[string]quoteEntry),
		ttl:    quoteTTL,
		now:    time.Now,
	}
}

// GetQuote retrieves a cached quote if fresh
func (c *MemoryCache) GetQuote(_ context.Context, symbol string) (*models.Quote, bool) {
	c.quoteMu.RLock()
	defer c.quoteMu.RUnlock()

	entry, exists := c.quotes[normalizeSymbol(symbol)]
	if !exists {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.quote, true
}

// SetQuote caches a quote
func (c *MemoryCache) SetQuote(_ context.Context, quote *models.Quote) {
	c.quoteMu.Lock()
	defer c.quoteMu.Unlock()

	now := c.now()
	c.quotes[normalizeSymbol(quote.Symbol)] = quoteEntry{
		quote:     quote,
		expiresAt: now.Add(quoteLifetime(now, c.ttl)),
	}
}

// InvalidateQuote removes a quote from the cache
func (c *MemoryCache) InvalidateQuote(symbol string) {
	c.quoteMu.Lock()
	defer c.quoteMu.Unlock()

	delete(c.quotes, normalizeSymbol(symbol))
}

// Clear removes all cached data
func (c *MemoryCache) Clear() {
	c.quoteMu.Lock()
	c.quotes = make(map[string]quoteEntry)
	c.quoteMu.Unlock()
}
