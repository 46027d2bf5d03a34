package services

import (
	"context"
	"fmt"
	"math"

	"github.com/epeers/nexus/internal/models"
)

// MarketContext supplies the market-dependent inputs commands rank and filter on.
// Tickers missing from the returned map have no score.
type MarketContext interface {
	Scores(ctx context.Context, tickers []string) (map[string]float64, error)
}

// Command transforms the ordered items resolved so far within one definition
// into a new ordered list that replaces them.
type Command interface {
	Name() string
	Apply(ctx context.Context, items []models.ResolvedItem, market MarketContext) ([]models.ResolvedItem, error)
}

// BranchingCommand is a command that additionally contributes one of several
// author-defined sub-sequences, chosen at resolution time.
type BranchingCommand interface {
	Command
	SelectBranch(c models.Component, opts ResolveOptions) ([]models.Component, error)
}

// BreakoutPolicy decides how the weight consumed by Breakout is spread over survivors
type BreakoutPolicy string

const (
	BreakoutPolicyEqual        BreakoutPolicy = "equal"
	BreakoutPolicyProportional BreakoutPolicy = "proportional"
)

// CommandRegistry maps command identifiers to implementations
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry registers the built-in commands
func NewCommandRegistry(breakoutThreshold float64, policy BreakoutPolicy) *CommandRegistry {
	r := &CommandRegistry{commands: make(map[string]Command)}
	r.Register(MarketCommand{})
	r.Register(BreakoutCommand{Threshold: breakoutThreshold, Policy: policy})
	r.Register(CultivateCommand{})
	return r
}

// Register adds or replaces a command
func (r *CommandRegistry) Register(c Command) {
	r.commands[c.Name()] = c
}

// Get returns the command registered under name
func (r *CommandRegistry) Get(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

func scoreOf(scores map[string]float64, ticker string) float64 {
	if s, ok := scores[ticker]; ok {
		return s
	}
	return math.Inf(-1)
}

func tickersOf(items []models.ResolvedItem) []string {
	tickers := make([]string, len(items))
	for i, it := range items {
		tickers[i] = it.Ticker
	}
	return tickers
}

// reweight returns a copy of item carrying weight w, with its sources scaled to match
func reweight(item models.ResolvedItem, w float64) models.ResolvedItem {
	out := item
	factor := 0.0
	if item.Weight != 0 {
		factor = w / item.Weight
	}
	out.Weight = w
	out.Sources = make([]models.ResolvedSource, len(item.Sources))
	for i, src := range item.Sources {
		out.Sources[i] = models.ResolvedSource{Path: src.Path, Weight: src.Weight * factor}
	}
	return out
}

// MarketCommand keeps the single top-ranked item and gives it all consumed weight
type MarketCommand struct{}

func (MarketCommand) Name() string { return models.CommandMarket }

func (MarketCommand) Apply(ctx context.Context, items []models.ResolvedItem, market MarketContext) ([]models.ResolvedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	scores, err := market.Scores(ctx, tickersOf(items))
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}

	best := 0
	for i := 1; i < len(items); i++ {
		if scoreOf(scores, items[i].Ticker) > scoreOf(scores, items[best].Ticker) {
			best = i
		}
	}
	return []models.ResolvedItem{reweight(items[best], models.TotalWeight(items))}, nil
}

// BreakoutCommand keeps items scoring above Threshold and spreads the consumed
// weight over them according to Policy. With no survivors the weight becomes cash.
type BreakoutCommand struct {
	Threshold float64
	Policy    BreakoutPolicy
}

func (BreakoutCommand) Name() string { return models.CommandBreakout }

func (b BreakoutCommand) Apply(ctx context.Context, items []models.ResolvedItem, market MarketContext) ([]models.ResolvedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	scores, err := market.Scores(ctx, tickersOf(items))
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	var survivors []models.ResolvedItem
	var survivorWeight float64
	for _, it := range items {
		if scoreOf(scores, it.Ticker) > b.Threshold {
			survivors = append(survivors, it)
			survivorWeight += it.Weight
		}
	}

	consumed := models.TotalWeight(items)
	if len(survivors) == 0 {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnCommandDiscardedWeight,
			Message: fmt.Sprintf("Breakout: no candidate scored above %.2f; %.4f%% held as cash", b.Threshold, consumed),
		})
		return nil, nil
	}

	out := make([]models.ResolvedItem, len(survivors))
	for i, it := range survivors {
		var w float64
		switch b.Policy {
		case BreakoutPolicyProportional:
			w = consumed * it.Weight / survivorWeight
		default:
			w = consumed / float64(len(survivors))
		}
		out[i] = reweight(it, w)
	}
	return out, nil
}

// CultivateCommand passes earlier items through untouched; its contribution is the
// caller-selected A/B branch, resolved by the Resolver inside the component's weight.
type CultivateCommand struct{}

func (CultivateCommand) Name() string { return models.CommandCultivate }

func (CultivateCommand) Apply(_ context.Context, items []models.ResolvedItem, _ MarketContext) ([]models.ResolvedItem, error) {
	return items, nil
}

func (CultivateCommand) SelectBranch(c models.Component, opts ResolveOptions) ([]models.Component, error) {
	variant := opts.CultivateVariant
	if variant == "" {
		variant = models.VariantA
	}
	if variant != models.VariantA && variant != models.VariantB {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidVariant, variant)
	}
	return c.Branches[variant], nil
}
