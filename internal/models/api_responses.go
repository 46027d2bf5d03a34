package models

// SaveDefinitionRequest represents the request body for saving a definition.
// OriginalCode names the existing code being edited; it is empty for a new definition.
type SaveDefinitionRequest struct {
	Kind         DefinitionKind `json:"kind" binding:"required"`
	Definition   Definition     `json:"definition"`
	OriginalCode string         `json:"originalCode,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ValidationErrorResponse is returned with 409 when a definition fails validation
type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind"`
	Detail string   `json:"detail"`
	Path   []string `json:"path,omitempty"`
}

// ResolveRequest represents the request body for a resolution preview
// Scores, when given, replace live market data for command ranking.
type ResolveRequest struct {
	CultivateVariant string             `json:"cultivateVariant,omitempty"`
	Scores           map[string]float64 `json:"scores,omitempty"`
}

// ResolveResponse represents a resolution preview
type ResolveResponse struct {
	Code     string         `json:"code"`
	Kind     DefinitionKind `json:"kind"`
	Items    []ResolvedItem `json:"items"`
	Cash     float64        `json:"cash"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

// HoldingsCSVResponse represents parsed holdings from an uploaded CSV
type HoldingsCSVResponse struct {
	Holdings []Holding `json:"holdings"`
}

// ComponentsCSVResponse represents parsed components from an uploaded CSV
type ComponentsCSVResponse struct {
	Components []Component `json:"components"`
}
