package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/epeers/nexus/internal/models"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxResolveDepth bounds recursion so a cycle that slipped past the
// Validator fails fast instead of recursing forever.
const DefaultMaxResolveDepth = 32

// rootMultiplier makes resolved weights come out in percentage points
const rootMultiplier = 100.0

// ResolveOptions carries caller choices that steer resolution
type ResolveOptions struct {
	CultivateVariant string
}

// Resolver expands a definition's reference graph into a flat weighted ticker list
type Resolver struct {
	commands *CommandRegistry
	maxDepth int
}

// NewResolver creates a new Resolver. A maxDepth ≤ 0 uses DefaultMaxResolveDepth.
func NewResolver(commands *CommandRegistry, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxResolveDepth
	}
	return &Resolver{commands: commands, maxDepth: maxDepth}
}

// itemBuilder accumulates weight for one ticker while merging duplicates.
// Contributions reached through the same path are summed into one source.
type itemBuilder struct {
	ticker  string
	weight  float64
	path    []string
	sources []models.ResolvedSource
}

func (b *itemBuilder) addSource(path []string, w float64) {
	key := strings.Join(path, "/")
	for i := range b.sources {
		if strings.Join(b.sources[i].Path, "/") == key {
			b.sources[i].Weight += w
			return
		}
	}
	b.sources = append(b.sources, models.ResolvedSource{Path: path, Weight: w})
}

// mergeItems merges duplicate tickers by summing weights, keeping first-occurrence order.
// Tickers are compared in canonical form so "aapl" and "AAPL" are one holding.
func mergeItems(items []models.ResolvedItem) []models.ResolvedItem {
	if len(items) < 2 {
		return items
	}
	order := make([]string, 0, len(items))
	builders := make(map[string]*itemBuilder, len(items))
	for _, it := range items {
		key := tickerKey(it.Ticker)
		b, exists := builders[key]
		if !exists {
			b = &itemBuilder{ticker: key, path: it.Path}
			builders[key] = b
			order = append(order, key)
		}
		b.weight += it.Weight
		if len(it.Sources) == 0 {
			b.addSource(it.Path, it.Weight)
		}
		for _, src := range it.Sources {
			b.addSource(src.Path, src.Weight)
		}
	}

	result := make([]models.ResolvedItem, 0, len(order))
	for _, ticker := range order {
		b := builders[ticker]
		result = append(result, models.ResolvedItem{
			Ticker:  b.ticker,
			Weight:  b.weight,
			Path:    b.path,
			Sources: b.sources,
		})
	}
	return result
}

// Resolve expands root into resolved items whose weights sum to at most 100.
// The deficit is implicit cash. The same lookup and market context always
// produce the same list in the same order.
func (r *Resolver) Resolve(ctx context.Context, root models.DefinitionRef, lookup DefinitionLookup, market MarketContext, opts ResolveOptions) ([]models.ResolvedItem, error) {
	defer TrackTime("Resolve", time.Now())

	if v := opts.CultivateVariant; v != "" && v != models.VariantA && v != models.VariantB {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidVariant, v)
	}

	items, err := r.resolveDefinition(ctx, root, lookup, market, opts, rootMultiplier, nil, 0)
	if err != nil {
		return nil, err
	}

	// Amplification can push the total above 100; scale back so the
	// result never claims more than the whole capital.
	total := models.TotalWeight(items)
	if total > rootMultiplier+1e-9 {
		factor := rootMultiplier / total
		for i := range items {
			items[i] = reweight(items[i], items[i].Weight*factor)
		}
		AddWarning(ctx, models.Warning{
			Code:    models.WarnAmplificationScaled,
			Message: fmt.Sprintf("%s: amplified weights summed to %.4f and were scaled to 100", root.Code, total),
		})
	}

	log.Debugf("resolved %s into %d tickers (%.4f%% allocated)", root, len(items), models.TotalWeight(items))
	return items, nil
}

func (r *Resolver) resolveDefinition(ctx context.Context, ref models.DefinitionRef, lookup DefinitionLookup, market MarketContext, opts ResolveOptions, multiplier float64, ancestors []string, depth int) ([]models.ResolvedItem, error) {
	if depth > r.maxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d (%s)", ErrDepthExceeded, ref, depth, strings.Join(ancestors, " -> "))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	def, ok := lookup.Lookup(ref)
	if !ok {
		return nil, &NotFoundError{Ref: ref}
	}
	if def.Draft {
		return nil, fmt.Errorf("%w: %s", ErrDraftDefinition, ref)
	}

	path := append(slices.Clone(ancestors), def.Code)
	items, err := r.resolveComponents(ctx, def.Components, lookup, market, opts, multiplier*def.EffectiveAmplification(), path, depth)
	if err != nil {
		return nil, err
	}

	// Connected commands act on everything the code resolved
	for _, c := range def.ConnectedCommands {
		cmd, ok := r.commands.Get(c.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown connected command %q", ErrInvalidComponent, ref, c.Value)
		}
		items, err = cmd.Apply(ctx, mergeItems(items), market)
		if err != nil {
			return nil, fmt.Errorf("%s: %s failed: %w", ref, c.Value, err)
		}
	}

	return mergeItems(items), nil
}

// resolveComponents resolves one ordered component list. A command replaces the
// items produced by the components before it in the same list.
func (r *Resolver) resolveComponents(ctx context.Context, components []models.Component, lookup DefinitionLookup, market MarketContext, opts ResolveOptions, multiplier float64, path []string, depth int) ([]models.ResolvedItem, error) {
	var items []models.ResolvedItem
	for _, c := range components {
		effective := c.Weight / 100 * multiplier

		switch c.Kind {
		case models.ComponentKindTicker:
			items = append(items, models.ResolvedItem{
				Ticker:  models.NormalizeTicker(c.Value),
				Weight:  effective,
				Path:    path,
				Sources: []models.ResolvedSource{{Path: path, Weight: effective}},
			})

		case models.ComponentKindPortfolioRef, models.ComponentKindNexusRef:
			ref, _ := c.Ref()
			sub, err := r.resolveDefinition(ctx, ref, lookup, market, opts, effective, path, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, sub...)

		case models.ComponentKindCommandRef:
			cmd, ok := r.commands.Get(c.Value)
			if !ok {
				return nil, fmt.Errorf("%w: unknown command %q in %s", ErrInvalidComponent, c.Value, path[len(path)-1])
			}
			out, err := cmd.Apply(ctx, mergeItems(items), market)
			if err != nil {
				return nil, fmt.Errorf("%s: %s failed: %w", path[len(path)-1], c.Value, err)
			}

			if branching, ok := cmd.(BranchingCommand); ok {
				branch, err := branching.SelectBranch(c, opts)
				if err != nil {
					return nil, err
				}
				sub, err := r.resolveComponents(ctx, branch, lookup, market, opts, effective, path, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			} else if effective > 0 {
				AddWarning(ctx, models.Warning{
					Code:    models.WarnCommandWeightToCash,
					Message: fmt.Sprintf("%s: %s carries %.4f%% of its own; held as cash", path[len(path)-1], c.Value, effective),
				})
			}
			items = out

		default:
			return nil, fmt.Errorf("%w: unknown component kind %q", ErrInvalidComponent, c.Kind)
		}
	}
	return items, nil
}
