package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/epeers/nexus/internal/models"
)

var (
	// Validation
	ErrWeightSum        = errors.New("component weights must sum to 100")
	ErrZeroWeight       = errors.New("component weight must be greater than zero")
	ErrCycle            = errors.New("definition references itself")
	ErrDuplicateCode    = errors.New("code already exists")
	ErrInvalidComponent = errors.New("invalid component")

	// Resolution
	ErrDefinitionNotFound = errors.New("definition not found")
	ErrDepthExceeded      = errors.New("maximum resolution depth exceeded")
	ErrDraftDefinition    = errors.New("draft definitions cannot be resolved")

	// Allocation
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidCapital   = errors.New("total capital must be greater than zero")

	// Runs
	ErrRunNotFound                = errors.New("run not found")
	ErrRunNotAwaitingConfirmation = errors.New("run is not awaiting confirmation")
	ErrTradeNotInRun              = errors.New("trade was not computed by this run")
	ErrRunCancelled               = errors.New("run cancelled")
	ErrRunDispatching             = errors.New("run is already dispatching and cannot be cancelled")
	ErrInvalidVariant             = errors.New("cultivate variant must be 'A' or 'B'")
	ErrBrokerNotConfigured        = errors.New("no brokerage account configured")

	// Saving
	ErrUnauthorized  = errors.New("not authorized to modify this definition")
	ErrQuotaExceeded = errors.New("definition quota exceeded")
)

// ValidationErrorKind names the invariant a definition violated
type ValidationErrorKind string

const (
	WeightSumError        ValidationErrorKind = "WeightSumError"
	ZeroWeightError       ValidationErrorKind = "ZeroWeightError"
	CycleError            ValidationErrorKind = "CycleError"
	DuplicateCodeError    ValidationErrorKind = "DuplicateCodeError"
	InvalidComponentError ValidationErrorKind = "InvalidComponentError"
)

var validationSentinels = map[ValidationErrorKind]error{
	WeightSumError:        ErrWeightSum,
	ZeroWeightError:       ErrZeroWeight,
	CycleError:            ErrCycle,
	DuplicateCodeError:    ErrDuplicateCode,
	InvalidComponentError: ErrInvalidComponent,
}

// ValidationError is returned by the Validator. Path is set for cycles.
type ValidationError struct {
	Kind   ValidationErrorKind
	Detail string
	Path   []string
}

func (e *ValidationError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Detail, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return validationSentinels[e.Kind]
}

func newValidationError(kind ValidationErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to a code missing from the store
type NotFoundError struct {
	Ref models.DefinitionRef
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Ref.Kind, e.Ref.Code)
}

func (e *NotFoundError) Unwrap() error {
	return ErrDefinitionNotFound
}

// PriceUnavailableError reports a ticker with no usable quote
type PriceUnavailableError struct {
	Ticker string
	Err    error
}

func (e *PriceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("price unavailable for %s: %v", e.Ticker, e.Err)
	}
	return fmt.Sprintf("price unavailable for %s", e.Ticker)
}

func (e *PriceUnavailableError) Unwrap() error {
	return ErrPriceUnavailable
}
