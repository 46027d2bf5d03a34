package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/epeers/nexus/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakePlacer struct {
	placed    []alpaca.PlaceOrderRequest
	failOn    string
	positions []alpaca.Position
}

func (f *fakePlacer) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	if req.Symbol == f.failOn {
		return nil, errors.New("insufficient buying power")
	}
	f.placed = append(f.placed, req)
	return &alpaca.Order{ID: "order-" + req.Symbol}, nil
}

func (f *fakePlacer) GetPositions() ([]alpaca.Position, error) {
	return f.positions, nil
}

func trade(ticker string, side models.TradeSide, qty string) models.TradeInstruction {
	return models.TradeInstruction{Ticker: ticker, Side: side, Quantity: decimal.RequireFromString(qty)}
}

func TestBrokerDispatchSellsFirst(t *testing.T) {
	placer := &fakePlacer{}
	var gotCreds models.BrokerCredentials
	d := NewBrokerDispatcher(&models.BrokerCredentials{APIKey: "k", APISecret: "s", BaseURL: "https://paper-api.alpaca.markets"},
		func(c models.BrokerCredentials) OrderPlacer { gotCreds = c; return placer })

	job := models.DispatchJob{
		RunID:        uuid.New(),
		SubmitOrders: true,
		Trades: []models.TradeInstruction{
			trade("AAPL", models.TradeSideBuy, "3"),
			trade("MSFT", models.TradeSideSell, "1.5"),
		},
	}
	if !d.Requested(job) {
		t.Fatal("expected dispatcher to be requested when orders are asked for")
	}

	outcome := d.Dispatch(context.Background(), job)
	if outcome.Status != models.DispatchStatusSuccess || outcome.Submitted != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if gotCreds.APIKey != "k" {
		t.Errorf("expected default credentials, got %+v", gotCreds)
	}

	var symbols []string
	for _, o := range placer.placed {
		symbols = append(symbols, o.Symbol)
		if o.Type != alpaca.Market || o.TimeInForce != alpaca.Day {
			t.Errorf("%s: expected market day order, got %s/%s", o.Symbol, o.Type, o.TimeInForce)
		}
	}
	if diff := cmp.Diff([]string{"MSFT", "AAPL"}, symbols); diff != "" {
		t.Errorf("order sequence mismatch (-want +got):\n%s", diff)
	}
	if placer.placed[0].Side != alpaca.Sell || !placer.placed[0].Qty.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("unexpected sell order %+v", placer.placed[0])
	}
}

func TestBrokerDispatchContinuesAfterFailure(t *testing.T) {
	placer := &fakePlacer{failOn: "AAPL"}
	d := NewBrokerDispatcher(nil, func(models.BrokerCredentials) OrderPlacer { return placer })

	job := models.DispatchJob{
		RunID:             uuid.New(),
		BrokerCredentials: &models.BrokerCredentials{APIKey: "k", APISecret: "s"},
		Trades: []models.TradeInstruction{
			trade("AAPL", models.TradeSideBuy, "3"),
			trade("VTI", models.TradeSideBuy, "2"),
		},
	}
	outcome := d.Dispatch(context.Background(), job)
	if outcome.Status != models.DispatchStatusError {
		t.Fatalf("expected error status, got %+v", outcome)
	}
	if outcome.Submitted != 1 || len(outcome.Failed) != 1 {
		t.Errorf("expected 1 submitted and 1 failed, got %+v", outcome)
	}
}

func TestBrokerRequestedOnlyWhenOrdersAskedFor(t *testing.T) {
	defaults := &models.BrokerCredentials{APIKey: "k", APISecret: "s"}
	creds := &models.BrokerCredentials{APIKey: "k2", APISecret: "s2"}

	tests := []struct {
		name     string
		defaults *models.BrokerCredentials
		job      models.DispatchJob
		want     bool
	}{
		{"nothing configured", nil, models.DispatchJob{}, false},
		{"defaults alone", defaults, models.DispatchJob{}, false},
		{"email only with defaults", defaults, models.DispatchJob{NotifyEmail: "me@example.com"}, false},
		{"credentials without opt-in", nil, models.DispatchJob{BrokerCredentials: creds}, false},
		{"opt-in with defaults", defaults, models.DispatchJob{SubmitOrders: true}, true},
		{"opt-in with credentials", nil, models.DispatchJob{SubmitOrders: true, BrokerCredentials: creds}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewBrokerDispatcher(tt.defaults, nil)
			if got := d.Requested(tt.job); got != tt.want {
				t.Errorf("expected Requested=%v, got %v", tt.want, got)
			}
		})
	}
}

// An email-only job never reaches the brokerage even with a default account
func TestBrokerEmailOnlyPlacesNoOrders(t *testing.T) {
	placer := &fakePlacer{}
	d := NewBrokerDispatcher(&models.BrokerCredentials{APIKey: "k", APISecret: "s"},
		func(models.BrokerCredentials) OrderPlacer { return placer })
	email := &recordingSender{}
	dispatchers := []interface {
		Requested(models.DispatchJob) bool
		Dispatch(context.Context, models.DispatchJob) models.DispatchOutcome
	}{d, NewEmailDispatcher(email)}

	job := models.DispatchJob{
		RunID:       uuid.New(),
		Code:        "GROWTH",
		NotifyEmail: "me@example.com",
		Trades:      []models.TradeInstruction{trade("AAPL", models.TradeSideBuy, "3")},
	}
	for _, disp := range dispatchers {
		if disp.Requested(job) {
			disp.Dispatch(context.Background(), job)
		}
	}
	if len(placer.placed) != 0 {
		t.Errorf("expected no orders, got %d", len(placer.placed))
	}
	if email.to != "me@example.com" {
		t.Errorf("expected email to me@example.com, got %q", email.to)
	}
}

func TestClientOrderIDIsStable(t *testing.T) {
	runID := uuid.New()
	a := clientOrderID(runID, trade("aapl", models.TradeSideBuy, "1"))
	b := clientOrderID(runID, trade("AAPL", models.TradeSideBuy, "2"))
	c := clientOrderID(runID, trade("AAPL", models.TradeSideSell, "1"))
	if a != b {
		t.Errorf("expected same id for same run/ticker/side, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected different ids for different sides")
	}
}

func TestHoldingsFromPositions(t *testing.T) {
	placer := &fakePlacer{positions: []alpaca.Position{
		{Symbol: "AAPL", Qty: decimal.RequireFromString("10")},
		{Symbol: "TSLA", Qty: decimal.RequireFromString("-2")},
	}}
	d := NewBrokerDispatcher(&models.BrokerCredentials{APIKey: "k", APISecret: "s"}, func(models.BrokerCredentials) OrderPlacer { return placer })

	holdings, err := d.Holdings(context.Background(), nil)
	if err != nil {
		t.Fatalf("Holdings failed: %v", err)
	}
	if len(holdings) != 2 || !holdings[0].Shares.Equal(decimal.NewFromInt(10)) || !holdings[1].Shares.IsZero() {
		t.Errorf("unexpected holdings %+v", holdings)
	}
}
