package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/epeers/nexus/internal/database"
	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/repository"
)

const testOwner int64 = 990001

// getTestRepo connects to PG_URL, skipping the test when no database is available
func getTestRepo(t *testing.T) *repository.DefinitionRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		t.Skip("PG_URL environment variable not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.New(ctx, pgURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	cleanup := func() {
		db.Pool.Exec(context.Background(), `DELETE FROM definition WHERE owner = $1`, testOwner)
	}
	cleanup()
	t.Cleanup(cleanup)

	return repository.NewDefinitionRepository(db.Pool)
}

func TestDefinitionRepository_RoundTrip(t *testing.T) {
	repo := getTestRepo(t)
	ctx := context.Background()

	cultivate := models.Component{
		Kind:   models.ComponentKindCommandRef,
		Value:  models.CommandCultivate,
		Weight: 40,
		Branches: map[string][]models.Component{
			models.VariantA: {{Kind: models.ComponentKindTicker, Value: "XTST", Weight: 100}},
			models.VariantB: {{Kind: models.ComponentKindTicker, Value: "YTST", Weight: 100}},
		},
	}
	def := &models.Definition{
		Kind:              models.DefinitionKindNexus,
		Code:              "NXTST1",
		OwnerID:           testOwner,
		Components:        []models.Component{{Kind: models.ComponentKindTicker, Value: "ATST", Weight: 60}, cultivate},
		ConnectedCommands: []models.Component{{Kind: models.ComponentKindCommandRef, Value: models.CommandMarket}},
	}
	if err := repo.Save(ctx, def, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if def.ID == 0 {
		t.Errorf("expected id to be assigned")
	}

	got, err := repo.Get(ctx, def.Ref())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Components) != 2 || len(got.Components[1].Branches[models.VariantB]) != 1 {
		t.Errorf("components did not round-trip: %+v", got.Components)
	}
	if len(got.ConnectedCommands) != 1 {
		t.Errorf("expected 1 connected command, got %d", len(got.ConnectedCommands))
	}
	if got.Amplification != 0 {
		t.Errorf("expected no amplification on a nexus, got %f", got.Amplification)
	}

	if n, err := repo.CountByOwner(ctx, testOwner); err != nil || n != 1 {
		t.Errorf("expected count 1, got %d, %v", n, err)
	}
}

func TestDefinitionRepository_RenameAndDelete(t *testing.T) {
	repo := getTestRepo(t)
	ctx := context.Background()

	def := &models.Definition{
		Kind:       models.DefinitionKindPortfolio,
		Code:       "PFTST1",
		OwnerID:    testOwner,
		Components: []models.Component{{Kind: models.ComponentKindTicker, Value: "ATST", Weight: 100}},
	}
	if err := repo.Save(ctx, def, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	def.Code = "PFTST2"
	if err := repo.Save(ctx, def, "PFTST1"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if _, err := repo.Get(ctx, models.DefinitionRef{Kind: models.DefinitionKindPortfolio, Code: "PFTST1"}); !errors.Is(err, repository.ErrDefinitionNotFound) {
		t.Errorf("expected old code removed, got %v", err)
	}

	if err := repo.Delete(ctx, def.Ref()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, def.Ref()); !errors.Is(err, repository.ErrDefinitionNotFound) {
		t.Errorf("expected ErrDefinitionNotFound, got %v", err)
	}
}

func TestDefinitionRepository_Snapshot(t *testing.T) {
	repo := getTestRepo(t)
	ctx := context.Background()

	leaf := &models.Definition{
		Kind:       models.DefinitionKindPortfolio,
		Code:       "PFTST3",
		OwnerID:    testOwner,
		Components: []models.Component{{Kind: models.ComponentKindTicker, Value: "ATST", Weight: 100}},
	}
	root := &models.Definition{
		Kind:       models.DefinitionKindNexus,
		Code:       "NXTST2",
		OwnerID:    testOwner,
		Components: []models.Component{{Kind: models.ComponentKindPortfolioRef, Value: "PFTST3", Weight: 100}},
	}
	for _, d := range []*models.Definition{leaf, root} {
		if err := repo.Save(ctx, d, ""); err != nil {
			t.Fatalf("Save %s failed: %v", d.Code, err)
		}
	}

	snap, err := repo.Snapshot(ctx, root.Ref())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Len() != 2 {
		t.Errorf("expected 2 definitions in snapshot, got %d", snap.Len())
	}
	if _, ok := snap.Lookup(leaf.Ref()); !ok {
		t.Errorf("expected leaf in snapshot")
	}
}
