package models

// WarningCode categorizes warnings by subsystem.
// W1xxx = resolution commands, W2xxx = weight normalization, W3xxx = allocation.
type WarningCode string

const (
	WarnCommandDiscardedWeight WarningCode = "W1001" // a command dropped candidates; their weight became cash
	WarnCommandWeightToCash    WarningCode = "W1002" // a command's own weight carries no items and is cash
	WarnAmplificationScaled    WarningCode = "W2001" // amplified weights exceeded 100 and were scaled back
	WarnSharesRoundedToZero    WarningCode = "W3001" // whole-share rounding left a target with zero shares
)

// Warning represents a non-fatal issue encountered during processing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
