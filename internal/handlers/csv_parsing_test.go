package handlers_test

import (
	"strings"
	"testing"

	"github.com/epeers/nexus/internal/handlers"
	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

func TestParseHoldingsCSV_HappyPath(t *testing.T) {
	csv := "ticker,shares\naapl,10\nMSFT,2.5\n"
	holdings, err := handlers.ParseHoldingsCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}
	if holdings[0].Ticker != "AAPL" || !holdings[0].Shares.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected first holding: %+v", holdings[0])
	}
	if holdings[1].Ticker != "MSFT" || !holdings[1].Shares.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("unexpected second holding: %+v", holdings[1])
	}
}

func TestParseHoldingsCSV_MissingColumn(t *testing.T) {
	_, err := handlers.ParseHoldingsCSV(strings.NewReader("ticker,quantity\nAAPL,1\n"))
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	if !strings.Contains(err.Error(), "shares") {
		t.Errorf("expected error to mention missing column, got: %s", err.Error())
	}
}

func TestParseHoldingsCSV_BadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty ticker", "ticker,shares\n,10\n"},
		{"negative shares", "ticker,shares\nAAPL,-1\n"},
		{"not a number", "ticker,shares\nAAPL,ten\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handlers.ParseHoldingsCSV(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "row 2") {
				t.Errorf("expected error to mention row number, got: %s", err.Error())
			}
		})
	}
}

func TestParseHoldingsCSV_HeaderOnly(t *testing.T) {
	holdings, err := handlers.ParseHoldingsCSV(strings.NewReader("Ticker,SHARES\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("expected 0 holdings, got %d", len(holdings))
	}
}

func TestParseComponentsCSV_HappyPath(t *testing.T) {
	csv := "kind,value,weight\n,voo,50\nPortfolioRef,Core,30\nCommandRef,Market,20\n"
	components, err := handlers.ParseComponentsCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.Component{
		{Kind: models.ComponentKindTicker, Value: "VOO", Weight: 50},
		{Kind: models.ComponentKindPortfolioRef, Value: "Core", Weight: 30},
		{Kind: models.ComponentKindCommandRef, Value: "Market", Weight: 20},
	}
	if len(components) != len(want) {
		t.Fatalf("expected %d components, got %d", len(want), len(components))
	}
	for i := range want {
		got := components[i]
		if got.Kind != want[i].Kind || got.Value != want[i].Value || got.Weight != want[i].Weight {
			t.Errorf("component %d: expected %+v, got %+v", i, want[i], got)
		}
	}
}

// Without a kind column every row is a ticker
func TestParseComponentsCSV_NoKindColumn(t *testing.T) {
	components, err := handlers.ParseComponentsCSV(strings.NewReader("value,weight\nspy,100\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(components) != 1 || components[0].Kind != models.ComponentKindTicker || components[0].Value != "SPY" {
		t.Errorf("unexpected components: %+v", components)
	}
}

func TestParseComponentsCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		mention string
	}{
		{"missing weight column", "value\nAAPL\n", "weight"},
		{"unknown kind", "kind,value,weight\nBond,X,100\n", "row 2"},
		{"empty value", "value,weight\n,100\n", "row 2"},
		{"invalid weight", "value,weight\nAAPL,lots\n", "row 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handlers.ParseComponentsCSV(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("expected error to mention %q, got: %s", tt.mention, err.Error())
			}
		})
	}
}
