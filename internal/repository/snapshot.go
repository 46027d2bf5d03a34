package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/epeers/nexus/internal/models"
)

var ErrDefinitionNotFound = errors.New("definition not found")

// Snapshot is an immutable arena of definitions captured at one instant.
// A run resolves against a snapshot so edits racing the run are never observed mid-resolution.
type Snapshot struct {
	defs map[models.DefinitionRef]*models.Definition
}

// NewSnapshot builds a snapshot from the given definitions (deep copies are taken)
func NewSnapshot(defs ...*models.Definition) *Snapshot {
	s := &Snapshot{defs: make(map[models.DefinitionRef]*models.Definition, len(defs))}
	for _, d := range defs {
		s.defs[d.Ref()] = d.Clone()
	}
	return s
}

// Lookup returns the definition for ref as it existed when the snapshot was taken
func (s *Snapshot) Lookup(ref models.DefinitionRef) (*models.Definition, bool) {
	d, ok := s.defs[ref]
	return d, ok
}

// Get is Lookup in the store's calling convention, so a snapshot can stand in for
// the store when validating definitions against the captured view
func (s *Snapshot) Get(_ context.Context, ref models.DefinitionRef) (*models.Definition, error) {
	d, ok := s.defs[ref]
	if !ok {
		return nil, ErrDefinitionNotFound
	}
	return d, nil
}

// Len returns the number of definitions captured
func (s *Snapshot) Len() int {
	return len(s.defs)
}

type fetchFunc func(ctx context.Context, ref models.DefinitionRef) (*models.Definition, error)

// collectGraph walks the reference graph breadth-first from root and captures every
// reachable definition. Missing references are skipped; the resolver reports them.
// The visited set keeps cyclic data from looping.
func collectGraph(ctx context.Context, root models.DefinitionRef, fetch fetchFunc) (*Snapshot, error) {
	snap := &Snapshot{defs: make(map[models.DefinitionRef]*models.Definition)}
	visited := map[models.DefinitionRef]struct{}{root: {}}
	queue := []models.DefinitionRef{root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := queue[0]
		queue = queue[1:]

		def, err := fetch(ctx, ref)
		if errors.Is(err, ErrDefinitionNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ref, err)
		}
		snap.defs[ref] = def

		for _, child := range def.References() {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, child)
		}
	}

	return snap, nil
}
