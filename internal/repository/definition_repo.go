package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/epeers/nexus/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefinitionRepository handles database operations for Portfolio and Nexus definitions
type DefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepository creates a new DefinitionRepository
func NewDefinitionRepository(pool *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

const selectDefinition = `
	SELECT id, kind, code, owner, amplification, draft, components, connected_commands, created, updated
	FROM definition
`

func scanDefinition(row pgx.Row) (*models.Definition, error) {
	d := &models.Definition{}
	var components, connected []byte
	err := row.Scan(
		&d.ID, &d.Kind, &d.Code, &d.OwnerID, &d.Amplification, &d.Draft,
		&components, &connected, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDefinitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}
	if err := json.Unmarshal(components, &d.Components); err != nil {
		return nil, fmt.Errorf("failed to decode components of %s: %w", d.Code, err)
	}
	if len(connected) > 0 {
		if err := json.Unmarshal(connected, &d.ConnectedCommands); err != nil {
			return nil, fmt.Errorf("failed to decode connected commands of %s: %w", d.Code, err)
		}
	}
	return d, nil
}

func getDefinition(ctx context.Context, q querier, ref models.DefinitionRef) (*models.Definition, error) {
	return scanDefinition(q.QueryRow(ctx, selectDefinition+` WHERE kind = $1 AND code = $2`, ref.Kind, ref.Code))
}

// Get retrieves a definition by kind and code
func (r *DefinitionRepository) Get(ctx context.Context, ref models.DefinitionRef) (*models.Definition, error) {
	return getDefinition(ctx, r.pool, ref)
}

// Save inserts or replaces a definition. When originalCode names a different code
// the old row is removed in the same transaction (rename).
func (r *DefinitionRepository) Save(ctx context.Context, def *models.Definition, originalCode string) error {
	components, err := json.Marshal(def.Components)
	if err != nil {
		return fmt.Errorf("failed to encode components: %w", err)
	}
	connected := []byte("[]")
	if len(def.ConnectedCommands) > 0 {
		if connected, err = json.Marshal(def.ConnectedCommands); err != nil {
			return fmt.Errorf("failed to encode connected commands: %w", err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if originalCode != "" && originalCode != def.Code {
		if _, err := tx.Exec(ctx, `DELETE FROM definition WHERE kind = $1 AND code = $2`, def.Kind, originalCode); err != nil {
			return fmt.Errorf("failed to remove renamed definition: %w", err)
		}
	}

	query := `
		INSERT INTO definition (kind, code, owner, amplification, draft, components, connected_commands, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (kind, code) DO UPDATE
		SET amplification = EXCLUDED.amplification,
			draft = EXCLUDED.draft,
			components = EXCLUDED.components,
			connected_commands = EXCLUDED.connected_commands,
			updated = NOW()
		RETURNING id, created, updated
	`
	err = tx.QueryRow(ctx, query,
		def.Kind, def.Code, def.OwnerID, def.Amplification, def.Draft, components, connected,
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete deletes a definition
func (r *DefinitionRepository) Delete(ctx context.Context, ref models.DefinitionRef) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM definition WHERE kind = $1 AND code = $2`, ref.Kind, ref.Code)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

// ListByOwner retrieves all definitions for a user (metadata only)
func (r *DefinitionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.DefinitionListItem, error) {
	query := `
		SELECT id, kind, code, draft, created, updated
		FROM definition
		WHERE owner = $1
		ORDER BY created DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	var items []models.DefinitionListItem
	for rows.Next() {
		var it models.DefinitionListItem
		if err := rows.Scan(&it.ID, &it.Kind, &it.Code, &it.Draft, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountByOwner returns how many definitions a user owns
func (r *DefinitionRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM definition WHERE owner = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count definitions: %w", err)
	}
	return n, nil
}

// Snapshot captures every definition reachable from root inside one read-only
// REPEATABLE READ transaction, so all lookups see the same database state.
func (r *DefinitionRepository) Snapshot(ctx context.Context, root models.DefinitionRef) (*Snapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return collectGraph(ctx, root, func(ctx context.Context, ref models.DefinitionRef) (*models.Definition, error) {
		return getDefinition(ctx, tx, ref)
	})
}
