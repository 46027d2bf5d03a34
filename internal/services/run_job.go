package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/epeers/nexus/internal/models"
	"github.com/google/uuid"
)

// runJob is one execution. state and result are guarded by mu; the compute
// goroutine is the only writer of events.
type runJob struct {
	id      uuid.UUID
	code    string
	request models.RunRequest
	cancel  context.CancelFunc

	mu        sync.Mutex
	state     models.RunState
	result    *models.RunResult
	parkedAt  time.Time
	expiresAt time.Time
}

func newRunJob(req models.RunRequest, cancel context.CancelFunc) *runJob {
	return &runJob{
		id:      uuid.New(),
		code:    req.RootCode,
		request: req,
		cancel:  cancel,
		state:   models.RunStateIdle,
	}
}

// advance moves the job from one compute state to the next. It fails if the job
// left the expected state (cancelled or expired) in the meantime.
func (j *runJob) advance(from, to models.RunState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != from {
		return fmt.Errorf("%w: run left %s (now %s)", ErrRunCancelled, from, j.state)
	}
	j.state = to
	return nil
}

func (j *runJob) park(result *models.RunResult, now time.Time, ttl time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != models.RunStateDiffing {
		return fmt.Errorf("%w: run left %s (now %s)", ErrRunCancelled, models.RunStateDiffing, j.state)
	}
	j.state = models.RunStateAwaitingConfirmation
	j.result = result
	j.parkedAt = now
	j.expiresAt = now.Add(ttl)
	return nil
}

// fail moves any non-terminal job to Failed and reports whether it did
func (j *runJob) fail() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = models.RunStateFailed
	j.result = nil
	return true
}

func (j *runJob) status() models.RunStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := models.RunStatus{RunID: j.id, State: j.state, Code: j.code, Result: j.result}
	if j.state == models.RunStateAwaitingConfirmation {
		exp := j.expiresAt
		st.ExpiresAt = &exp
	}
	return st
}

// selectTrades checks confirmed trades against the computed list. Each confirmed
// trade must match a computed one by ticker and side with a quantity no larger than
// computed; each computed trade may be confirmed once. An empty list confirms all.
func selectTrades(computed, confirmed []models.TradeInstruction) ([]models.TradeInstruction, error) {
	if len(confirmed) == 0 {
		return computed, nil
	}

	used := make([]bool, len(computed))
	selected := make([]models.TradeInstruction, 0, len(confirmed))
	for _, want := range confirmed {
		idx := -1
		for i, have := range computed {
			if tickerKey(have.Ticker) == tickerKey(want.Ticker) && have.Side == want.Side {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s %s", ErrTradeNotInRun, want.Side, want.Ticker)
		}
		if used[idx] {
			return nil, fmt.Errorf("%w: %s %s confirmed twice", ErrTradeNotInRun, want.Side, want.Ticker)
		}
		have := computed[idx]
		if !want.Quantity.IsPositive() || want.Quantity.GreaterThan(have.Quantity) {
			return nil, fmt.Errorf("%w: %s %s quantity %s exceeds computed %s",
				ErrTradeNotInRun, want.Side, want.Ticker, want.Quantity, have.Quantity)
		}
		used[idx] = true
		selected = append(selected, models.TradeInstruction{
			Ticker:         have.Ticker,
			Side:           have.Side,
			Quantity:       want.Quantity,
			EstimatedPrice: have.EstimatedPrice,
		})
	}
	return selected, nil
}
