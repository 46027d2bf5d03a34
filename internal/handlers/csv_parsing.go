package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epeers/nexus/internal/models"
	"github.com/shopspring/decimal"
)

// readCSVHeader reads the header row and indexes columns case-insensitively
func readCSVHeader(reader *csv.Reader, required ...string) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIdx := make(map[string]int)
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}
	return colIdx, nil
}

// ParseHoldingsCSV parses a CSV file with ticker and shares columns into current holdings.
// Shares may be fractional but not negative.
func ParseHoldingsCSV(r io.Reader) ([]models.Holding, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	colIdx, err := readCSVHeader(reader, "ticker", "shares")
	if err != nil {
		return nil, err
	}

	var holdings []models.Holding
	rowNum := 1 // header is row 1, data starts at row 2
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to read CSV record: %w", rowNum+1, err)
		}
		rowNum++

		ticker := strings.ToUpper(strings.TrimSpace(record[colIdx["ticker"]]))
		if ticker == "" {
			return nil, fmt.Errorf("row %d: ticker is empty", rowNum)
		}

		sharesStr := strings.TrimSpace(record[colIdx["shares"]])
		shares, err := decimal.NewFromString(sharesStr)
		if err != nil || shares.IsNegative() {
			return nil, fmt.Errorf("row %d: invalid shares %q", rowNum, sharesStr)
		}

		holdings = append(holdings, models.Holding{Ticker: ticker, Shares: shares})
	}

	return holdings, nil
}

// ParseComponentsCSV parses a CSV file with kind, value and weight columns into
// definition components. kind may be omitted per row and defaults to Ticker.
// Cultivate branches cannot be expressed in CSV; weights are checked at save time.
func ParseComponentsCSV(r io.Reader) ([]models.Component, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	colIdx, err := readCSVHeader(reader, "value", "weight")
	if err != nil {
		return nil, err
	}
	kindIdx, hasKind := colIdx["kind"]

	var components []models.Component
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to read CSV record: %w", rowNum+1, err)
		}
		rowNum++

		kind := models.ComponentKindTicker
		if hasKind && kindIdx < len(record) {
			if k := strings.TrimSpace(record[kindIdx]); k != "" {
				kind = models.ComponentKind(k)
			}
		}
		switch kind {
		case models.ComponentKindTicker, models.ComponentKindPortfolioRef, models.ComponentKindNexusRef, models.ComponentKindCommandRef:
		default:
			return nil, fmt.Errorf("row %d: unknown kind %q", rowNum, kind)
		}

		value := strings.TrimSpace(record[colIdx["value"]])
		if value == "" {
			return nil, fmt.Errorf("row %d: value is empty", rowNum)
		}
		if kind == models.ComponentKindTicker {
			value = strings.ToUpper(value)
		}

		weightStr := strings.TrimSpace(record[colIdx["weight"]])
		weight, err := strconv.ParseFloat(weightStr, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid weight %q", rowNum, weightStr)
		}

		components = append(components, models.Component{Kind: kind, Value: value, Weight: weight})
	}

	return components, nil
}
