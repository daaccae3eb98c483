// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package activitycsv parses the Trades section of IBKR Activity Statement
// CSV files.
//
// Activity Statement CSVs are multi-section files where each row starts with
// a section name and row type (Header, Data, SubTotal, Total). Only
// Trades/Data rows with the "Order" discriminator are extracted; everything
// else, including Account Information, is skipped.
package activitycsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Trade is one stock trade execution row. Numeric fields are raw strings
// with thousands separators removed; conversion to typed values happens
// during normalization.
type Trade struct {
	// Symbol is the ticker symbol.
	Symbol string
	// DateTime is the execution time.
	DateTime time.Time
	// CurrencyCode is the currency code.
	CurrencyCode string
	// Quantity is positive for buys, negative for sells.
	Quantity string
	// TradePrice is the per-unit fill price.
	TradePrice string
	// Commission is the commission as reported (negative).
	Commission string
	// RealizedPnl is the realized P&L column, empty when not reported.
	RealizedPnl string
}

// ParseFile parses a single Activity Statement CSV file.
func ParseFile(filePath string) ([]Trade, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parse(file)
}

func parse(reader io.Reader) ([]Trade, error) {
	csvReader := csv.NewReader(reader)
	// Sections have different column counts.
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	var trades []Trade
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		if len(record) < 3 {
			continue
		}
		// Only Trades,Data,Order rows carry executions; SubTotal, Total, and
		// per-fill "Trade" rows under a consolidated statement are skipped.
		if record[0] != "Trades" || record[1] != "Data" || record[2] != "Order" {
			continue
		}
		// Columns: DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,
		// Quantity,T. Price,C. Price,Proceeds,Comm/Fee,Basis,Realized P/L,MTM P/L,Code
		if len(record) < 14 || record[3] != "Stocks" {
			continue
		}
		dateTime, err := parseDateTime(record[6])
		if err != nil {
			return nil, fmt.Errorf("parsing date %q for %s: %w", record[6], record[5], err)
		}
		trades = append(trades, Trade{
			Symbol:       record[5],
			DateTime:     dateTime,
			CurrencyCode: record[4],
			Quantity:     cleanNumber(record[7]),
			TradePrice:   cleanNumber(record[8]),
			Commission:   cleanNumber(record[11]),
			RealizedPnl:  cleanNumber(record[13]),
		})
	}
	return trades, nil
}

// parseDateTime parses the Activity Statement timestamp format
// "2026-01-02, 09:30:00", falling back to a bare date.
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02, 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// cleanNumber strips thousands separators and surrounding quotes from a
// numeric field.
func cleanNumber(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}
