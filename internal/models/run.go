package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunState is the lifecycle state of one execution job
type RunState string

const (
	RunStateIdle                 RunState = "Idle"
	RunStateResolving            RunState = "Resolving"
	RunStateAllocating           RunState = "Allocating"
	RunStateDiffing              RunState = "Diffing"
	RunStateAwaitingConfirmation RunState = "AwaitingConfirmation"
	RunStateDispatching          RunState = "Dispatching"
	RunStateComplete             RunState = "Complete"
	RunStateFailed               RunState = "Failed"
)

// Terminal reports whether no further transition can happen from s
func (s RunState) Terminal() bool {
	return s == RunStateComplete || s == RunStateFailed
}

// RunRequest starts a resolve → allocate → diff job
type RunRequest struct {
	RootCode          string          `json:"rootCode" binding:"required"`
	RootKind          DefinitionKind  `json:"rootKind" binding:"required"`
	TotalCapital      decimal.Decimal `json:"totalCapital"`
	FractionalAllowed bool            `json:"fractionalAllowed"`
	CultivateVariant  string          `json:"cultivateVariant,omitempty"`
	CurrentHoldings   []Holding       `json:"currentHoldings,omitempty"`
	UseBrokerHoldings bool            `json:"useBrokerHoldings,omitempty"`
	Confirm           bool            `json:"confirm"`
	// Dispatch options used when Confirm is set
	SubmitOrders      bool               `json:"submitOrders,omitempty"`
	BrokerCredentials *BrokerCredentials `json:"brokerCredentials,omitempty"`
	NotifyEmail       string             `json:"notifyEmail,omitempty"`
}

// RunEventType tags a streamed event
type RunEventType string

const (
	RunEventProgress RunEventType = "progress"
	RunEventResult   RunEventType = "result"
	RunEventError    RunEventType = "error"
	RunEventDispatch RunEventType = "dispatch"
)

// RunEvent is one line of the run stream. A result or error ends the compute
// phase; an auto-confirmed run appends one dispatch event after its result, so
// consumers read until the stream closes rather than stopping at the result.
type RunEvent struct {
	Type     RunEventType     `json:"type"`
	Message  string           `json:"message,omitempty"`
	Payload  *RunResult       `json:"payload,omitempty"`
	Dispatch *ConfirmResponse `json:"dispatch,omitempty"`
}

// Terminal reports whether the event ends the compute phase of a run
func (e RunEvent) Terminal() bool {
	return e.Type == RunEventResult || e.Type == RunEventError
}

// RunResult is the payload of the terminal result event
type RunResult struct {
	RunID    uuid.UUID          `json:"run_id"`
	Code     string             `json:"code"`
	Resolved []ResolvedItem     `json:"resolved"`
	Holdings []TargetHolding    `json:"holdings"`
	Cash     decimal.Decimal    `json:"cash"`
	Trades   []TradeInstruction `json:"trades"`
	Warnings []Warning          `json:"warnings,omitempty"`
}

// BrokerCredentials overrides the configured brokerage account for one confirmation
type BrokerCredentials struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
	BaseURL   string `json:"baseUrl,omitempty"`
}

// ConfirmRequest executes the trades of a run awaiting confirmation.
// An empty Trades list confirms every computed trade.
type ConfirmRequest struct {
	Trades []TradeInstruction `json:"trades"`
	// SubmitOrders sends the trades to the brokerage; nothing is traded without it
	SubmitOrders      bool               `json:"submitOrders,omitempty"`
	BrokerCredentials *BrokerCredentials `json:"brokerCredentials,omitempty"`
	NotifyEmail       string             `json:"notifyEmail,omitempty"`
}

// DispatchStatus is the outcome of one dispatcher or of a whole confirmation
type DispatchStatus string

const (
	DispatchStatusSuccess DispatchStatus = "success"
	DispatchStatusError   DispatchStatus = "error"
)

// DispatchOutcome reports what one dispatcher did
type DispatchOutcome struct {
	Dispatcher string         `json:"dispatcher"`
	Status     DispatchStatus `json:"status"`
	Message    string         `json:"message"`
	Submitted  int            `json:"submitted"`
	Failed     []string       `json:"failed,omitempty"`
}

// ConfirmResponse is the single JSON answer to a confirmation
type ConfirmResponse struct {
	Status     DispatchStatus    `json:"status"`
	Message    string            `json:"message"`
	Dispatches []DispatchOutcome `json:"dispatches"`
}

// DispatchJob is the confirmed work handed to each dispatcher
type DispatchJob struct {
	RunID             uuid.UUID
	Code              string
	Trades            []TradeInstruction
	SubmitOrders      bool
	BrokerCredentials *BrokerCredentials
	NotifyEmail       string
}

// RunStatus describes a run still held by the coordinator
type RunStatus struct {
	RunID     uuid.UUID  `json:"run_id"`
	State     RunState   `json:"state"`
	Code      string     `json:"code"`
	Result    *RunResult `json:"result,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
