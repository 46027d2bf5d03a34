package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/repository"
	log "github.com/sirupsen/logrus"
)

// EntitlementChecker decides whether a user may create another definition
type EntitlementChecker interface {
	CanCreate(ctx context.Context, ownerID int64) error
}

// QuotaEntitlements caps the number of definitions a user may own
type QuotaEntitlements struct {
	counter interface {
		CountByOwner(ctx context.Context, ownerID int64) (int, error)
	}
	max int
}

// NewQuotaEntitlements creates a checker allowing up to max definitions per user; max ≤ 0 is unlimited
func NewQuotaEntitlements(store DefinitionStore, max int) *QuotaEntitlements {
	return &QuotaEntitlements{counter: store, max: max}
}

func (q *QuotaEntitlements) CanCreate(ctx context.Context, ownerID int64) error {
	if q.max <= 0 {
		return nil
	}
	n, err := q.counter.CountByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to count definitions: %w", err)
	}
	if n >= q.max {
		return fmt.Errorf("%w: user %d owns %d of %d", ErrQuotaExceeded, ownerID, n, q.max)
	}
	return nil
}

// DefinitionService handles definition business logic
type DefinitionService struct {
	store        DefinitionStore
	validator    *Validator
	resolver     *Resolver
	entitlements EntitlementChecker
	market       MarketContext
}

// NewDefinitionService creates a new DefinitionService. market ranks command
// candidates for resolution previews.
func NewDefinitionService(store DefinitionStore, validator *Validator, resolver *Resolver, entitlements EntitlementChecker, market MarketContext) *DefinitionService {
	return &DefinitionService{
		store:        store,
		validator:    validator,
		resolver:     resolver,
		entitlements: entitlements,
		market:       market,
	}
}

func translateNotFound(err error, ref models.DefinitionRef) error {
	if errors.Is(err, repository.ErrDefinitionNotFound) {
		return &NotFoundError{Ref: ref}
	}
	return err
}

// SaveDefinition validates and stores a definition on behalf of userID.
// Editing (OriginalCode set) requires ownership of the original; creating
// requires an entitlement. Nothing is written unless validation passes.
func (s *DefinitionService) SaveDefinition(ctx context.Context, userID int64, req *models.SaveDefinitionRequest) (*models.Definition, error) {
	defer TrackTime("SaveDefinition", time.Now())

	def := req.Definition.Clone()
	def.Kind = req.Kind
	def.OwnerID = userID
	def.NormalizeTickers()

	if req.OriginalCode != "" {
		origRef := models.DefinitionRef{Kind: req.Kind, Code: req.OriginalCode}
		existing, err := s.store.Get(ctx, origRef)
		if err != nil {
			return nil, translateNotFound(err, origRef)
		}
		if existing.OwnerID != userID {
			return nil, ErrUnauthorized
		}
	} else if s.entitlements != nil {
		if err := s.entitlements.CanCreate(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := s.validator.Validate(ctx, def, req.OriginalCode); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, def, req.OriginalCode); err != nil {
		return nil, fmt.Errorf("failed to save definition: %w", err)
	}
	log.Infof("user %d saved %s (%d components, draft=%t)", userID, def.Ref(), len(def.Components), def.Draft)
	return def, nil
}

// ValidateDefinition is a dry run of SaveDefinition's checks; nothing is stored
func (s *DefinitionService) ValidateDefinition(ctx context.Context, userID int64, req *models.SaveDefinitionRequest) error {
	def := req.Definition.Clone()
	def.Kind = req.Kind
	def.OwnerID = userID
	return s.validator.Validate(ctx, def, req.OriginalCode)
}

// GetDefinition retrieves a definition
func (s *DefinitionService) GetDefinition(ctx context.Context, ref models.DefinitionRef) (*models.Definition, error) {
	def, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, translateNotFound(err, ref)
	}
	return def, nil
}

// DeleteDefinition removes a definition owned by userID. Definitions referencing it
// are left alone; resolving them will report the missing reference.
func (s *DefinitionService) DeleteDefinition(ctx context.Context, userID int64, ref models.DefinitionRef) error {
	existing, err := s.store.Get(ctx, ref)
	if err != nil {
		return translateNotFound(err, ref)
	}
	if existing.OwnerID != userID {
		return ErrUnauthorized
	}
	if err := s.store.Delete(ctx, ref); err != nil {
		return translateNotFound(err, ref)
	}
	log.Infof("user %d deleted %s", userID, ref)
	return nil
}

// ListDefinitions returns a user's definitions
func (s *DefinitionService) ListDefinitions(ctx context.Context, ownerID int64) ([]models.DefinitionListItem, error) {
	items, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	if items == nil {
		items = []models.DefinitionListItem{}
	}
	return items, nil
}

// PreviewResolution resolves a stored definition without pricing or trading it
func (s *DefinitionService) PreviewResolution(ctx context.Context, ref models.DefinitionRef, req *models.ResolveRequest) (*models.ResolveResponse, error) {
	defer TrackTime("PreviewResolution", time.Now())

	snap, err := s.store.Snapshot(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	market := s.market
	if len(req.Scores) > 0 {
		market = StaticScores(req.Scores)
	}

	ctx, wc := NewWarningContext(ctx)
	items, err := s.resolver.Resolve(ctx, ref, snap, market, ResolveOptions{CultivateVariant: req.CultivateVariant})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ResolvedItem{}
	}

	return &models.ResolveResponse{
		Code:     ref.Code,
		Kind:     ref.Kind,
		Items:    items,
		Cash:     math.Max(0, rootMultiplier-models.TotalWeight(items)),
		Warnings: wc.GetWarnings(),
	}, nil
}
