package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/util"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// QuoteRepository persists quotes in Postgres as the last cache tier before AlphaVantage
type QuoteRepository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewQuoteRepository creates a new QuoteRepository
func NewQuoteRepository(pool *pgxpool.Pool, ttl time.Duration) *QuoteRepository {
	return &QuoteRepository{pool: pool, ttl: ttl, now: time.Now}
}

// GetQuote retrieves a cached quote if it has not expired.
// Errors are logged and reported as a miss so a database hiccup falls through to the fetcher.
func (r *QuoteRepository) GetQuote(ctx context.Context, symbol string) (*models.Quote, bool) {
	query := `
		SELECT symbol, price, change_percent, fetched_at
		FROM quote_cache
		WHERE symbol = $1 AND expires_at > $2
	`
	q := &models.Quote{}
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(strings.TrimSpace(symbol)), r.now()).Scan(
		&q.Symbol, &q.Price, &q.ChangePercent, &q.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Warnf("failed to read cached quote for %s: %v", symbol, err)
		return nil, false
	}
	return q, true
}

// SetQuote stores a quote, replacing any earlier one for the symbol
func (r *QuoteRepository) SetQuote(ctx context.Context, quote *models.Quote) {
	query := `
		INSERT INTO quote_cache (symbol, price, change_percent, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE
		SET price = EXCLUDED.price, change_percent = EXCLUDED.change_percent,
		    fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at
	`
	now := r.now()
	_, err := r.pool.Exec(ctx, query,
		strings.ToUpper(strings.TrimSpace(quote.Symbol)), quote.Price, quote.ChangePercent, quote.FetchedAt,
		util.QuoteDeadline(now, r.ttl),
	)
	if err != nil {
		log.Warnf("failed to cache quote for %s: %v", quote.Symbol, err)
	}
}

// PurgeExpired removes quotes past their expiry and returns how many were deleted
func (r *QuoteRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quote_cache WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
