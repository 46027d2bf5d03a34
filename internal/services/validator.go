package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/epeers/nexus/internal/metrics"
	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/repository"
)

// WeightSumTolerance is how far top-level weights may drift from 100
const WeightSumTolerance = 0.1

// DefinitionGetter is the read access the Validator needs
type DefinitionGetter interface {
	Get(ctx context.Context, ref models.DefinitionRef) (*models.Definition, error)
}

// Validator checks a definition for structural correctness before it is stored.
// It never mutates the store.
type Validator struct {
	store DefinitionGetter
}

// NewValidator creates a new Validator
func NewValidator(store DefinitionGetter) *Validator {
	return &Validator{store: store}
}

// Validate checks def against every save-time invariant. originalCode is the code
// being edited in place (empty for a new definition). Failures are *ValidationError.
func (v *Validator) Validate(ctx context.Context, def *models.Definition, originalCode string) error {
	err := v.validate(ctx, def, originalCode)
	var verr *ValidationError
	if errors.As(err, &verr) {
		metrics.ValidationFailures.WithLabelValues(string(verr.Kind)).Inc()
	}
	return err
}

func (v *Validator) validate(ctx context.Context, def *models.Definition, originalCode string) error {
	if err := validateStructure(def); err != nil {
		return err
	}

	if !def.Draft {
		if err := validateWeights(def); err != nil {
			return err
		}
	}

	if err := v.checkDuplicate(ctx, def, originalCode); err != nil {
		return err
	}

	return v.checkCycles(ctx, def)
}

// validateStructure checks kinds, values and command shapes
func validateStructure(def *models.Definition) error {
	if !def.Kind.Valid() {
		return newValidationError(InvalidComponentError, "unknown definition kind %q", def.Kind)
	}
	if def.Code == "" {
		return newValidationError(InvalidComponentError, "code is required")
	}
	if def.Amplification < 0 || (def.Amplification != 0 && def.Kind != models.DefinitionKindPortfolio) {
		return newValidationError(InvalidComponentError, "amplification must be positive and is only allowed on portfolios")
	}

	if err := validateComponents(def.Kind, def.Components, "components"); err != nil {
		return err
	}

	if len(def.ConnectedCommands) > 0 && def.Kind != models.DefinitionKindNexus {
		return newValidationError(InvalidComponentError, "connected commands are only allowed on nexus codes")
	}
	for i, c := range def.ConnectedCommands {
		if c.Kind != models.ComponentKindCommandRef {
			return newValidationError(InvalidComponentError, "connected_commands[%d]: must be a command", i)
		}
		if c.Value != models.CommandMarket && c.Value != models.CommandBreakout {
			return newValidationError(InvalidComponentError, "connected_commands[%d]: %q cannot act on the whole code", i, c.Value)
		}
		if c.Weight != 0 {
			return newValidationError(InvalidComponentError, "connected_commands[%d]: connected commands carry no weight", i)
		}
	}
	return nil
}

func validateComponents(kind models.DefinitionKind, components []models.Component, where string) error {
	for i, c := range components {
		at := fmt.Sprintf("%s[%d]", where, i)
		if c.Value == "" {
			return newValidationError(InvalidComponentError, "%s: value is required", at)
		}

		switch c.Kind {
		case models.ComponentKindTicker, models.ComponentKindPortfolioRef:
		case models.ComponentKindNexusRef, models.ComponentKindCommandRef:
			if kind != models.DefinitionKindNexus {
				return newValidationError(InvalidComponentError, "%s: %s is only allowed in nexus codes", at, c.Kind)
			}
		default:
			return newValidationError(InvalidComponentError, "%s: unknown component kind %q", at, c.Kind)
		}

		if c.Kind != models.ComponentKindCommandRef || c.Value != models.CommandCultivate {
			if len(c.Branches) > 0 {
				return newValidationError(InvalidComponentError, "%s: only Cultivate commands have branches", at)
			}
		}
		if c.Kind != models.ComponentKindCommandRef {
			continue
		}

		switch c.Value {
		case models.CommandMarket, models.CommandBreakout:
		case models.CommandCultivate:
			if len(c.Branches) != 2 || len(c.Branches[models.VariantA]) == 0 || len(c.Branches[models.VariantB]) == 0 {
				return newValidationError(InvalidComponentError, "%s: Cultivate needs non-empty A and B branches", at)
			}
			for _, variant := range []string{models.VariantA, models.VariantB} {
				if err := validateComponents(kind, c.Branches[variant], fmt.Sprintf("%s.%s", at, variant)); err != nil {
					return err
				}
			}
		default:
			return newValidationError(InvalidComponentError, "%s: unknown command %q", at, c.Value)
		}
	}
	return nil
}

// validateWeights enforces positivity everywhere and the 100 ± tolerance sums.
// Positivity is checked first so {60, 40, 0} reports the zero weight.
func validateWeights(def *models.Definition) error {
	if err := checkPositive(def.Components, "components"); err != nil {
		return err
	}
	if err := checkSum(def.Components, "components"); err != nil {
		return err
	}
	return nil
}

func checkPositive(components []models.Component, where string) error {
	for i, c := range components {
		at := fmt.Sprintf("%s[%d]", where, i)
		if c.Weight <= 0 {
			return newValidationError(ZeroWeightError, "%s (%s %s) has weight %.4f", at, c.Kind, c.Value, c.Weight)
		}
		for _, variant := range []string{models.VariantA, models.VariantB} {
			if err := checkPositive(c.Branches[variant], fmt.Sprintf("%s.%s", at, variant)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkSum(components []models.Component, where string) error {
	var total float64
	for _, c := range components {
		total += c.Weight
	}
	if math.Abs(total-100) > WeightSumTolerance {
		return newValidationError(WeightSumError, "%s sum to %.4f", where, total)
	}
	for i, c := range components {
		for _, variant := range []string{models.VariantA, models.VariantB} {
			branch, ok := c.Branches[variant]
			if !ok {
				continue
			}
			if err := checkSum(branch, fmt.Sprintf("%s[%d].%s", where, i, variant)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkDuplicate rejects saving over an existing code unless it is an edit in place
func (v *Validator) checkDuplicate(ctx context.Context, def *models.Definition, originalCode string) error {
	_, err := v.store.Get(ctx, def.Ref())
	if errors.Is(err, repository.ErrDefinitionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check for existing definition: %w", err)
	}
	if originalCode != def.Code {
		return newValidationError(DuplicateCodeError, "%s %q already exists", def.Kind, def.Code)
	}
	return nil
}

// checkCycles walks references depth-first from def with def substituted into the store.
// Only a revisit of an ancestor on the current branch is a cycle; reaching the same
// definition through two different branches (diamond reuse) is legal.
func (v *Validator) checkCycles(ctx context.Context, def *models.Definition) error {
	loaded := map[models.DefinitionRef]*models.Definition{def.Ref(): def}
	done := map[models.DefinitionRef]bool{}

	load := func(ref models.DefinitionRef) (*models.Definition, error) {
		if d, ok := loaded[ref]; ok {
			return d, nil
		}
		d, err := v.store.Get(ctx, ref)
		if errors.Is(err, repository.ErrDefinitionNotFound) {
			loaded[ref] = nil
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ref, err)
		}
		loaded[ref] = d
		return d, nil
	}

	var visit func(d *models.Definition, ancestors []models.DefinitionRef) error
	visit = func(d *models.Definition, ancestors []models.DefinitionRef) error {
		for _, child := range d.References() {
			if slices.Contains(ancestors, child) {
				path := make([]string, 0, len(ancestors)+1)
				for _, a := range ancestors {
					path = append(path, a.Code)
				}
				path = append(path, child.Code)
				return &ValidationError{
					Kind:   CycleError,
					Detail: fmt.Sprintf("%s %q is its own ancestor", child.Kind, child.Code),
					Path:   path,
				}
			}
			if done[child] {
				continue
			}
			cd, err := load(child)
			if err != nil {
				return err
			}
			if cd == nil {
				done[child] = true
				continue
			}
			if err := visit(cd, append(slices.Clone(ancestors), child)); err != nil {
				return err
			}
		}
		done[d.Ref()] = true
		return nil
	}

	return visit(def, []models.DefinitionRef{def.Ref()})
}
