package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefinitionKind separates the two code namespaces
type DefinitionKind string

const (
	DefinitionKindPortfolio DefinitionKind = "portfolio"
	DefinitionKindNexus     DefinitionKind = "nexus"
)

// Valid reports whether k is a known definition kind
func (k DefinitionKind) Valid() bool {
	return k == DefinitionKindPortfolio || k == DefinitionKindNexus
}

// ComponentKind identifies what a component's Value refers to
type ComponentKind string

const (
	ComponentKindTicker       ComponentKind = "Ticker"
	ComponentKindPortfolioRef ComponentKind = "PortfolioRef"
	ComponentKindNexusRef     ComponentKind = "NexusRef"
	ComponentKindCommandRef   ComponentKind = "CommandRef"
)

// Command identifiers understood by the resolver
const (
	CommandMarket    = "Market"
	CommandBreakout  = "Breakout"
	CommandCultivate = "Cultivate"
)

// Cultivate variants
const (
	VariantA = "A"
	VariantB = "B"
)

// Component is one weighted entry inside a Portfolio or Nexus Code.
// Weight is in percentage points. Branches is only set on Cultivate commands;
// each branch is resolved inside the Cultivate component's own weight.
type Component struct {
	Kind     ComponentKind          `json:"kind"`
	Value    string                 `json:"value"`
	Weight   float64                `json:"weight"`
	Branches map[string][]Component `json:"branches,omitempty"`
}

// Ref returns the definition a reference component points at.
// ok is false for tickers and commands.
func (c Component) Ref() (DefinitionRef, bool) {
	switch c.Kind {
	case ComponentKindPortfolioRef:
		return DefinitionRef{Kind: DefinitionKindPortfolio, Code: c.Value}, true
	case ComponentKindNexusRef:
		return DefinitionRef{Kind: DefinitionKindNexus, Code: c.Value}, true
	}
	return DefinitionRef{}, false
}

// DefinitionRef addresses a definition by namespace and code
type DefinitionRef struct {
	Kind DefinitionKind `json:"kind"`
	Code string         `json:"code"`
}

func (r DefinitionRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Code)
}

// Definition is a stored Portfolio or Nexus Code
type Definition struct {
	ID                int64          `json:"id"`
	Kind              DefinitionKind `json:"kind"`
	Code              string         `json:"code"`
	OwnerID           int64          `json:"owner_id"`
	Components        []Component    `json:"components"`
	Amplification     float64        `json:"amplification,omitempty"`
	ConnectedCommands []Component    `json:"connected_commands,omitempty"`
	Draft             bool           `json:"draft"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Ref returns the address of the definition
func (d *Definition) Ref() DefinitionRef {
	return DefinitionRef{Kind: d.Kind, Code: d.Code}
}

// EffectiveAmplification returns the amplification multiplier, defaulting to 1.0.
// Nexus Codes are never amplified.
func (d *Definition) EffectiveAmplification() float64 {
	if d.Kind != DefinitionKindPortfolio || d.Amplification == 0 {
		return 1.0
	}
	return d.Amplification
}

// References lists every definition referenced by the top-level components,
// including those inside Cultivate branches, in declaration order.
func (d *Definition) References() []DefinitionRef {
	var refs []DefinitionRef
	var walk func(components []Component)
	walk = func(components []Component) {
		for _, c := range components {
			if ref, ok := c.Ref(); ok {
				refs = append(refs, ref)
			}
			for _, variant := range []string{VariantA, VariantB} {
				walk(c.Branches[variant])
			}
		}
	}
	walk(d.Components)
	return refs
}

// NormalizeTicker is the canonical form of a ticker symbol
func NormalizeTicker(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeTickers rewrites every Ticker component, including those inside
// Cultivate branches, to its canonical symbol.
func (d *Definition) NormalizeTickers() {
	var walk func(components []Component)
	walk = func(components []Component) {
		for i := range components {
			if components[i].Kind == ComponentKindTicker {
				components[i].Value = NormalizeTicker(components[i].Value)
			}
			for _, branch := range components[i].Branches {
				walk(branch)
			}
		}
	}
	walk(d.Components)
}

// Clone returns a deep copy so snapshots never share component slices with the store
func (d *Definition) Clone() *Definition {
	raw, err := json.Marshal(d)
	if err != nil {
		cp := *d
		return &cp
	}
	var cp Definition
	if err := json.Unmarshal(raw, &cp); err != nil {
		cp = *d
	}
	return &cp
}

// DefinitionListItem represents a definition in a list (metadata only)
type DefinitionListItem struct {
	ID        int64          `json:"id"`
	Kind      DefinitionKind `json:"kind"`
	Code      string         `json:"code"`
	Draft     bool           `json:"draft"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
