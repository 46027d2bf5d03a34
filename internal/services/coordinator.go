package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/epeers/nexus/internal/metrics"
	"github.com/epeers/nexus/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultConfirmTTL is how long a computed trade list waits for confirmation
const DefaultConfirmTTL = 15 * time.Minute

// runEventBuffer holds every event a run can emit, so the producer never blocks
// on a consumer that went away
const runEventBuffer = 16

// Dispatcher acts on confirmed trades (brokerage orders, notifications).
// Failures are reported in the outcome, never returned.
type Dispatcher interface {
	Name() string
	// Requested reports whether this job asks for the dispatcher
	Requested(job models.DispatchJob) bool
	Dispatch(ctx context.Context, job models.DispatchJob) models.DispatchOutcome
}

// HoldingsProvider loads current positions from the brokerage account
type HoldingsProvider interface {
	Holdings(ctx context.Context, creds *models.BrokerCredentials) ([]models.Holding, error)
}

// CoordinatorDeps are the collaborators of a Coordinator. Holdings may be nil
// when no brokerage is configured.
type CoordinatorDeps struct {
	Store       DefinitionStore
	Resolver    *Resolver
	Allocator   *Allocator
	Market      MarketContext
	Holdings    HoldingsProvider
	Dispatchers []Dispatcher
	ConfirmTTL  time.Duration
}

// Coordinator drives runs through resolve, allocate and diff, parks them for
// confirmation, and dispatches confirmed trades
type Coordinator struct {
	deps CoordinatorDeps
	now  func() time.Time

	mu   sync.Mutex
	jobs map[uuid.UUID]*runJob
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	if deps.ConfirmTTL <= 0 {
		deps.ConfirmTTL = DefaultConfirmTTL
	}
	return &Coordinator{
		deps: deps,
		now:  time.Now,
		jobs: make(map[uuid.UUID]*runJob),
	}
}

func checkRunRequest(req *models.RunRequest) error {
	if !req.RootKind.Valid() {
		return fmt.Errorf("%w: unknown root kind %q", ErrInvalidComponent, req.RootKind)
	}
	if strings.TrimSpace(req.RootCode) == "" {
		return fmt.Errorf("%w: rootCode is required", ErrInvalidComponent)
	}
	if !req.TotalCapital.IsPositive() {
		return ErrInvalidCapital
	}
	if v := req.CultivateVariant; v != "" && v != models.VariantA && v != models.VariantB {
		return fmt.Errorf("%w: got %q", ErrInvalidVariant, v)
	}
	for _, h := range req.CurrentHoldings {
		if strings.TrimSpace(h.Ticker) == "" || h.Shares.IsNegative() {
			return fmt.Errorf("%w: holding %q has shares %s", ErrInvalidComponent, h.Ticker, h.Shares)
		}
	}
	return nil
}

// Start validates the request and launches the run. The returned channel carries
// progress events followed by exactly one result or error event (and, for
// auto-confirmed runs, a final dispatch event), then is closed. Cancelling ctx
// before the run is parked aborts it.
func (c *Coordinator) Start(ctx context.Context, req models.RunRequest) (uuid.UUID, <-chan models.RunEvent, error) {
	if err := checkRunRequest(&req); err != nil {
		return uuid.Nil, nil, err
	}
	c.sweep()

	runCtx, cancel := context.WithCancel(ctx)
	job := newRunJob(req, cancel)
	events := make(chan models.RunEvent, runEventBuffer)

	c.mu.Lock()
	c.jobs[job.id] = job
	c.mu.Unlock()

	log.Infof("run %s started for %s:%s", job.id, req.RootKind, req.RootCode)
	go c.execute(runCtx, job, events)
	return job.id, events, nil
}

func (c *Coordinator) execute(ctx context.Context, job *runJob, events chan<- models.RunEvent) {
	defer close(events)
	defer job.cancel()

	events <- models.RunEvent{Type: models.RunEventProgress, Message: "Initializing..."}

	result, err := c.compute(ctx, job, events)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrRunCancelled) {
			err = fmt.Errorf("%w: %v", ErrRunCancelled, err)
		}
		job.fail()
		c.remove(job.id)
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		log.Warnf("run %s failed: %v", job.id, err)
		events <- models.RunEvent{Type: models.RunEventError, Message: err.Error()}
		return
	}

	if err := job.park(result, c.now(), c.deps.ConfirmTTL); err != nil {
		c.remove(job.id)
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		events <- models.RunEvent{Type: models.RunEventError, Message: err.Error()}
		return
	}
	metrics.RunsAwaitingConfirmation.Inc()
	events <- models.RunEvent{Type: models.RunEventResult, Payload: result}

	if !job.request.Confirm {
		return
	}
	resp, err := c.Confirm(context.WithoutCancel(ctx), job.id, models.ConfirmRequest{
		SubmitOrders:      job.request.SubmitOrders,
		BrokerCredentials: job.request.BrokerCredentials,
		NotifyEmail:       job.request.NotifyEmail,
	})
	if err != nil {
		resp = &models.ConfirmResponse{Status: models.DispatchStatusError, Message: err.Error()}
	}
	events <- models.RunEvent{Type: models.RunEventDispatch, Dispatch: resp}
}

// compute runs Resolving → Allocating → Diffing against one snapshot of the store
func (c *Coordinator) compute(ctx context.Context, job *runJob, events chan<- models.RunEvent) (*models.RunResult, error) {
	req := job.request
	root := models.DefinitionRef{Kind: req.RootKind, Code: req.RootCode}
	ctx, wc := NewWarningContext(ctx)

	if err := job.advance(models.RunStateIdle, models.RunStateResolving); err != nil {
		return nil, err
	}
	start := time.Now()
	snap, err := c.deps.Store.Snapshot(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	def, ok := snap.Lookup(root)
	if !ok {
		return nil, &NotFoundError{Ref: root}
	}
	if def.Draft {
		return nil, fmt.Errorf("%w: %s", ErrDraftDefinition, root)
	}
	// Stored data is re-checked against the snapshot; it may predate a rule change.
	if err := NewValidator(snap).Validate(ctx, def, def.Code); err != nil {
		return nil, err
	}
	items, err := c.deps.Resolver.Resolve(ctx, root, snap, c.deps.Market, ResolveOptions{CultivateVariant: req.CultivateVariant})
	if err != nil {
		return nil, err
	}
	TrackStage("resolve", start)
	events <- models.RunEvent{Type: models.RunEventProgress, Message: fmt.Sprintf("Resolved %d tickers", len(items))}

	if err := job.advance(models.RunStateResolving, models.RunStateAllocating); err != nil {
		return nil, err
	}
	start = time.Now()
	alloc, err := c.deps.Allocator.Allocate(ctx, items, req.TotalCapital, req.FractionalAllowed)
	if err != nil {
		return nil, err
	}
	TrackStage("allocate", start)
	events <- models.RunEvent{
		Type:    models.RunEventProgress,
		Message: fmt.Sprintf("Allocated %s across %d holdings (cash %s)", alloc.TotalCapital.Sub(alloc.Cash).StringFixed(2), len(alloc.Holdings), alloc.Cash.StringFixed(2)),
	}

	if err := job.advance(models.RunStateAllocating, models.RunStateDiffing); err != nil {
		return nil, err
	}
	start = time.Now()
	current := req.CurrentHoldings
	if req.UseBrokerHoldings {
		if c.deps.Holdings == nil {
			return nil, ErrBrokerNotConfigured
		}
		current, err = c.deps.Holdings.Holdings(ctx, req.BrokerCredentials)
		if err != nil {
			return nil, fmt.Errorf("failed to load brokerage holdings: %w", err)
		}
	}
	trades := Diff(alloc.Holdings, current)
	TrackStage("diff", start)
	events <- models.RunEvent{Type: models.RunEventProgress, Message: fmt.Sprintf("Computed %d trades", len(trades))}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunCancelled, err)
	}
	if trades == nil {
		trades = []models.TradeInstruction{}
	}
	return &models.RunResult{
		RunID:    job.id,
		Code:     def.Code,
		Resolved: items,
		Holdings: alloc.Holdings,
		Cash:     alloc.Cash,
		Trades:   trades,
		Warnings: wc.GetWarnings(),
	}, nil
}

// Confirm dispatches the confirmed trades of a parked run. Dispatchers run on a
// context detached from the caller's cancellation so a disconnect cannot leave
// orders half submitted. Each dispatcher's outcome is reported independently.
func (c *Coordinator) Confirm(ctx context.Context, runID uuid.UUID, req models.ConfirmRequest) (*models.ConfirmResponse, error) {
	c.sweep()
	job, ok := c.lookup(runID)
	if !ok {
		return nil, ErrRunNotFound
	}

	job.mu.Lock()
	if job.state != models.RunStateAwaitingConfirmation {
		state := job.state
		job.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrRunNotAwaitingConfirmation, state)
	}
	trades, err := selectTrades(job.result.Trades, req.Trades)
	if err != nil {
		job.mu.Unlock()
		return nil, err
	}
	job.state = models.RunStateDispatching
	code := job.result.Code
	job.mu.Unlock()
	metrics.RunsAwaitingConfirmation.Dec()

	dispatchJob := models.DispatchJob{
		RunID:             runID,
		Code:              code,
		Trades:            trades,
		SubmitOrders:      req.SubmitOrders,
		BrokerCredentials: req.BrokerCredentials,
		NotifyEmail:       req.NotifyEmail,
	}
	dctx := context.WithoutCancel(ctx)
	resp := &models.ConfirmResponse{Status: models.DispatchStatusSuccess, Dispatches: []models.DispatchOutcome{}}

	for _, d := range c.deps.Dispatchers {
		if !d.Requested(dispatchJob) {
			continue
		}
		start := time.Now()
		outcome := d.Dispatch(dctx, dispatchJob)
		TrackStage("dispatch_"+d.Name(), start)
		metrics.DispatchTotal.WithLabelValues(d.Name(), string(outcome.Status)).Inc()
		if outcome.Status != models.DispatchStatusSuccess {
			resp.Status = models.DispatchStatusError
			log.Errorf("run %s: %s dispatch failed: %s", runID, d.Name(), outcome.Message)
		}
		resp.Dispatches = append(resp.Dispatches, outcome)
	}

	switch {
	case len(resp.Dispatches) == 0:
		resp.Message = fmt.Sprintf("Confirmed %d trades; no dispatcher was requested", len(trades))
	case resp.Status == models.DispatchStatusSuccess:
		resp.Message = fmt.Sprintf("Dispatched %d trades", len(trades))
	default:
		resp.Message = "One or more dispatchers failed"
	}

	job.mu.Lock()
	job.state = models.RunStateComplete
	job.mu.Unlock()
	c.remove(runID)
	metrics.RunsTotal.WithLabelValues("complete").Inc()
	log.Infof("run %s complete: %s", runID, resp.Message)
	return resp, nil
}

// Cancel aborts a run that has not started dispatching. A parked run's trade list is discarded.
func (c *Coordinator) Cancel(runID uuid.UUID) error {
	job, ok := c.lookup(runID)
	if !ok {
		return ErrRunNotFound
	}

	job.mu.Lock()
	state := job.state
	switch {
	case state == models.RunStateDispatching:
		job.mu.Unlock()
		return ErrRunDispatching
	case state.Terminal():
		job.mu.Unlock()
		return ErrRunNotFound
	}
	job.state = models.RunStateFailed
	job.result = nil
	job.mu.Unlock()

	job.cancel()
	if state == models.RunStateAwaitingConfirmation {
		metrics.RunsAwaitingConfirmation.Dec()
		metrics.RunsTotal.WithLabelValues("cancelled").Inc()
		c.remove(runID)
	}
	log.Infof("run %s cancelled in %s", runID, state)
	return nil
}

// Status reports a run the coordinator still holds
func (c *Coordinator) Status(runID uuid.UUID) (*models.RunStatus, error) {
	c.sweep()
	job, ok := c.lookup(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	st := job.status()
	return &st, nil
}

// RunSweeper discards expired parked runs until ctx is done
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep discards parked runs whose confirmation window has passed
func (c *Coordinator) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, job := range c.jobs {
		job.mu.Lock()
		expired := job.state == models.RunStateAwaitingConfirmation && !now.Before(job.expiresAt)
		if expired {
			job.state = models.RunStateFailed
			job.result = nil
		}
		job.mu.Unlock()
		if expired {
			delete(c.jobs, id)
			metrics.RunsAwaitingConfirmation.Dec()
			metrics.RunsTotal.WithLabelValues("expired").Inc()
			log.Infof("run %s expired awaiting confirmation", id)
		}
	}
}

func (c *Coordinator) lookup(id uuid.UUID) (*runJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	return job, ok
}

func (c *Coordinator) remove(id uuid.UUID) {
	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()
}
