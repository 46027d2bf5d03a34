package services

import (
	"context"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/repository"
)

// DefinitionStore persists Portfolio and Nexus definitions keyed by kind and code.
// Implemented by repository.DefinitionRepository and repository.MemoryDefinitionStore.
type DefinitionStore interface {
	Get(ctx context.Context, ref models.DefinitionRef) (*models.Definition, error)
	Save(ctx context.Context, def *models.Definition, originalCode string) error
	Delete(ctx context.Context, ref models.DefinitionRef) error
	ListByOwner(ctx context.Context, ownerID int64) ([]models.DefinitionListItem, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	Snapshot(ctx context.Context, root models.DefinitionRef) (*repository.Snapshot, error)
}

// DefinitionLookup is the read view the resolver walks
type DefinitionLookup interface {
	Lookup(ref models.DefinitionRef) (*models.Definition, bool)
}
