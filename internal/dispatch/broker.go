package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/epeers/nexus/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const BrokerDispatcherName = "brokerage"

// OrderPlacer is the part of the alpaca client the dispatcher uses
type OrderPlacer interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetPositions() ([]alpaca.Position, error)
}

// ClientFactory builds a brokerage client for one set of credentials
type ClientFactory func(creds models.BrokerCredentials) OrderPlacer

// NewAlpacaClient is the production ClientFactory
func NewAlpacaClient(creds models.BrokerCredentials) OrderPlacer {
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     creds.APIKey,
		APISecret:  creds.APISecret,
		BaseURL:    creds.BaseURL,
		RetryLimit: 3,
	})
}

// BrokerDispatcher submits confirmed trades as market day orders. Sells go first
// so their proceeds fund the buys.
type BrokerDispatcher struct {
	defaults  *models.BrokerCredentials
	newClient ClientFactory
}

// NewBrokerDispatcher creates a dispatcher. defaults may be nil, in which case
// confirmations must carry their own credentials.
func NewBrokerDispatcher(defaults *models.BrokerCredentials, newClient ClientFactory) *BrokerDispatcher {
	if newClient == nil {
		newClient = NewAlpacaClient
	}
	return &BrokerDispatcher{defaults: defaults, newClient: newClient}
}

func (b *BrokerDispatcher) Name() string { return BrokerDispatcherName }

// Requested reports whether the confirmation asked for orders. Configured
// defaults only supply credentials; they never opt a confirmation in.
func (b *BrokerDispatcher) Requested(job models.DispatchJob) bool {
	return job.SubmitOrders
}

func (b *BrokerDispatcher) client(creds *models.BrokerCredentials) (OrderPlacer, error) {
	if creds == nil {
		creds = b.defaults
	}
	if creds == nil || creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("brokerage credentials are incomplete")
	}
	c := *creds
	if c.BaseURL == "" && b.defaults != nil {
		c.BaseURL = b.defaults.BaseURL
	}
	return b.newClient(c), nil
}

// clientOrderID is stable per run, ticker and side so a resubmitted order is rejected as a duplicate
func clientOrderID(runID uuid.UUID, t models.TradeInstruction) string {
	return uuid.NewSHA1(runID, []byte(string(t.Side)+":"+strings.ToUpper(t.Ticker))).String()
}

func (b *BrokerDispatcher) Dispatch(_ context.Context, job models.DispatchJob) models.DispatchOutcome {
	outcome := models.DispatchOutcome{Dispatcher: b.Name(), Status: models.DispatchStatusSuccess}

	client, err := b.client(job.BrokerCredentials)
	if err != nil {
		outcome.Status = models.DispatchStatusError
		outcome.Message = err.Error()
		return outcome
	}

	ordered := make([]models.TradeInstruction, 0, len(job.Trades))
	for _, side := range []models.TradeSide{models.TradeSideSell, models.TradeSideBuy} {
		for _, t := range job.Trades {
			if t.Side == side {
				ordered = append(ordered, t)
			}
		}
	}

	for _, t := range ordered {
		qty := t.Quantity
		side := alpaca.Buy
		if t.Side == models.TradeSideSell {
			side = alpaca.Sell
		}
		order, err := client.PlaceOrder(alpaca.PlaceOrderRequest{
			Symbol:        t.Ticker,
			Qty:           &qty,
			Side:          side,
			Type:          alpaca.Market,
			TimeInForce:   alpaca.Day,
			ClientOrderID: clientOrderID(job.RunID, t),
		})
		if err != nil {
			log.Errorf("run %s: order %s %s %s failed: %v", job.RunID, t.Side, qty, t.Ticker, err)
			outcome.Failed = append(outcome.Failed, fmt.Sprintf("%s %s %s: %v", t.Side, qty, t.Ticker, err))
			continue
		}
		log.Infof("run %s: submitted %s %s %s as order %s", job.RunID, t.Side, qty, t.Ticker, order.ID)
		outcome.Submitted++
	}

	switch {
	case len(outcome.Failed) > 0:
		outcome.Status = models.DispatchStatusError
		outcome.Message = fmt.Sprintf("Submitted %d of %d orders", outcome.Submitted, len(ordered))
	case len(ordered) == 0:
		outcome.Message = "No orders to submit"
	default:
		outcome.Message = fmt.Sprintf("Submitted %d orders", outcome.Submitted)
	}
	return outcome
}

// Holdings loads current brokerage positions. Short positions are reported as zero.
func (b *BrokerDispatcher) Holdings(_ context.Context, creds *models.BrokerCredentials) ([]models.Holding, error) {
	client, err := b.client(creds)
	if err != nil {
		return nil, err
	}
	positions, err := client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	holdings := make([]models.Holding, 0, len(positions))
	for _, p := range positions {
		qty := p.Qty
		if qty.IsNegative() {
			qty = decimal.Zero
		}
		holdings = append(holdings, models.Holding{Ticker: p.Symbol, Shares: qty})
	}
	return holdings, nil
}
