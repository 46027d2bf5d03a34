package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/services"
)

func TestWarningCollector_BasicUsage(t *testing.T) {
	ctx, wc := services.NewWarningContext(context.Background())

	services.AddWarning(ctx, models.Warning{
		Code:    models.WarnCommandWeightToCash,
		Message: "test warning 1",
	})
	services.AddWarning(ctx, models.Warning{
		Code:    models.WarnSharesRoundedToZero,
		Message: "test warning 2",
	})

	warnings := wc.GetWarnings()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warnings))
	}

	if warnings[0].Code != models.WarnCommandWeightToCash {
		t.Errorf("expected code %s, got %s", models.WarnCommandWeightToCash, warnings[0].Code)
	}
	if warnings[1].Code != models.WarnSharesRoundedToZero {
		t.Errorf("expected code %s, got %s", models.WarnSharesRoundedToZero, warnings[1].Code)
	}
}

func TestWarningCollector_NoCollectorNoPanic(t *testing.T) {
	// AddWarning with a plain context is silently dropped
	services.AddWarning(context.Background(), models.Warning{
		Code:    models.WarnAmplificationScaled,
		Message: "dropped",
	})
}

// Callers get a copy; later warnings do not leak into an earlier snapshot
func TestWarningCollector_GetWarningsCopies(t *testing.T) {
	ctx, wc := services.NewWarningContext(context.Background())
	services.AddWarning(ctx, models.Warning{Code: models.WarnCommandDiscardedWeight, Message: "first"})

	snapshot := wc.GetWarnings()
	snapshot[0].Message = "changed"
	services.AddWarning(ctx, models.Warning{Code: models.WarnCommandDiscardedWeight, Message: "second"})

	if len(snapshot) != 1 {
		t.Errorf("expected snapshot to keep 1 warning, got %d", len(snapshot))
	}
	if got := wc.GetWarnings()[0].Message; got != "first" {
		t.Errorf("expected collector to be unaffected, got %q", got)
	}
}

func TestWarningCollector_ConcurrentSafe(t *testing.T) {
	ctx, wc := services.NewWarningContext(context.Background())

	var wg sync.WaitGroup
	n := 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			services.AddWarning(ctx, models.Warning{
				Code:    models.WarnSharesRoundedToZero,
				Message: "concurrent warning",
			})
		}()
	}
	wg.Wait()

	if warnings := wc.GetWarnings(); len(warnings) != n {
		t.Errorf("expected %d warnings, got %d", n, len(warnings))
	}
}
