package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/epeers/nexus/internal/models"
)

// MemoryDefinitionStore is an in-process definition store with the same
// contract as DefinitionRepository. It backs tests and local tooling.
type MemoryDefinitionStore struct {
	mu     sync.RWMutex
	defs   map[models.DefinitionRef]*models.Definition
	nextID int64
}

// NewMemoryDefinitionStore creates a store pre-populated with defs
func NewMemoryDefinitionStore(defs ...*models.Definition) *MemoryDefinitionStore {
	s := &MemoryDefinitionStore{defs: make(map[models.DefinitionRef]*models.Definition)}
	for _, d := range defs {
		_ = s.Save(context.Background(), d, "")
	}
	return s
}

// Get retrieves a copy of a definition
func (s *MemoryDefinitionStore) Get(_ context.Context, ref models.DefinitionRef) (*models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.defs[ref]
	if !ok {
		return nil, ErrDefinitionNotFound
	}
	return d.Clone(), nil
}

// Save inserts or replaces a definition, removing originalCode on rename
func (s *MemoryDefinitionStore) Save(_ context.Context, def *models.Definition, originalCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if originalCode != "" && originalCode != def.Code {
		delete(s.defs, models.DefinitionRef{Kind: def.Kind, Code: originalCode})
	}

	if existing, ok := s.defs[def.Ref()]; ok {
		def.ID = existing.ID
		def.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		def.ID = s.nextID
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	s.defs[def.Ref()] = def.Clone()
	return nil
}

// Delete removes a definition
func (s *MemoryDefinitionStore) Delete(_ context.Context, ref models.DefinitionRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[ref]; !ok {
		return ErrDefinitionNotFound
	}
	delete(s.defs, ref)
	return nil
}

// ListByOwner returns metadata for a user's definitions, newest first
func (s *MemoryDefinitionStore) ListByOwner(_ context.Context, ownerID int64) ([]models.DefinitionListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.DefinitionListItem
	for _, d := range s.defs {
		if d.OwnerID != ownerID {
			continue
		}
		items = append(items, models.DefinitionListItem{
			ID:        d.ID,
			Kind:      d.Kind,
			Code:      d.Code,
			Draft:     d.Draft,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

// CountByOwner returns how many definitions a user owns
func (s *MemoryDefinitionStore) CountByOwner(_ context.Context, ownerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.defs {
		if d.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// Snapshot captures every definition reachable from root under a single read lock
func (s *MemoryDefinitionStore) Snapshot(ctx context.Context, root models.DefinitionRef) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collectGraph(ctx, root, func(_ context.Context, ref models.DefinitionRef) (*models.Definition, error) {
		d, ok := s.defs[ref]
		if !ok {
			return nil, ErrDefinitionNotFound
		}
		return d.Clone(), nil
	})
}
