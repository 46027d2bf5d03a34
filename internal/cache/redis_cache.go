package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const quoteKeyPrefix = "nexus:quote:"

// RedisCache shares quotes between service instances.
// Redis failures degrade to a miss; the caller falls through to the market data API.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCache creates a quote cache on an existing client
func NewRedisCache(client *redis.Client, quoteTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: quoteTTL, now: time.Now}
}

// NewRedisCacheFromURL parses a redis:// URL and pings the server
func NewRedisCacheFromURL(ctx context.Context, redisURL string, quoteTTL time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisCache(client, quoteTTL), nil
}

func quoteKey(symbol string) string {
	return quoteKeyPrefix + normalizeSymbol(symbol)
}

// GetQuote retrieves a cached quote
func (c *RedisCache) GetQuote(ctx context.Context, symbol string) (*models.Quote, bool) {
	raw, err := c.client.Get(ctx, quoteKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warnf("redis quote lookup for %s failed: %v", symbol, err)
		return nil, false
	}

	var quote models.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		log.Warnf("discarding unreadable cached quote for %s: %v", symbol, err)
		return nil, false
	}
	return &quote, true
}

// SetQuote caches a quote until the earlier of the TTL and the next market close
func (c *RedisCache) SetQuote(ctx context.Context, quote *models.Quote) {
	raw, err := json.Marshal(quote)
	if err != nil {
		log.Errorf("failed to encode quote for %s: %v", quote.Symbol, err)
		return
	}
	if err := c.client.Set(ctx, quoteKey(quote.Symbol), raw, quoteLifetime(c.now(), c.ttl)).Err(); err != nil {
		log.Warnf("redis quote store for %s failed: %v", quote.Symbol, err)
	}
}

// Close releases the redis connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}
