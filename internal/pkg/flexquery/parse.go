// Copyright 2026 Peter Edge
//
// All rights reserved.

package flexquery

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
)

// Statement is the parsed content of one Flex Query statement.
//
// All record fields are raw attribute strings: the upstream feed varies its
// attribute names across report types, so parsing only resolves which
// attribute carries each field. Conversion to typed values happens during
// normalization.
type Statement struct {
	// AccountID is the broker account identifier (e.g., "U1234567").
	AccountID string
	// Trades is the list of trade execution records.
	Trades []RawTrade
	// OpenPositions is the point-in-time open-positions snapshot.
	OpenPositions []RawPosition
	// EquitySummaries is the series of daily equity summary records.
	EquitySummaries []RawEquitySummary
	// StartingCash is the statement's reported starting cash, empty if absent.
	StartingCash string
	// EndingCash is the statement's reported ending cash, empty if absent.
	EndingCash string
}

// RawTrade is one trade record with attributes resolved but not yet typed.
type RawTrade struct {
	// ExecutionID is the broker's unique fill identifier.
	ExecutionID string
	// Symbol is the ticker symbol.
	Symbol string
	// Side is the broker buy/sell string.
	Side string
	// Quantity is the fill quantity as reported (may be signed).
	Quantity string
	// Price is the per-unit fill price.
	Price string
	// Commission is the commission as reported (IBKR reports it negative).
	Commission string
	// Currency is the currency code.
	Currency string
	// RealizedPnl is the realized P&L signal, empty if absent.
	RealizedPnl string
	// NetCash is the broker's explicit net cash effect, empty if absent.
	NetCash string
	// DateTime is the execution timestamp as reported.
	DateTime string
}

// RawPosition is one open-position record with attributes resolved but not yet typed.
type RawPosition struct {
	// Symbol is the ticker symbol.
	Symbol string
	// Quantity is the signed position quantity.
	Quantity string
	// CostBasisPrice is the per-unit cost basis.
	CostBasisPrice string
	// MarkPrice is the broker's mark price.
	MarkPrice string
	// PositionValue is the marked position value.
	PositionValue string
	// UnrealizedPnl is the broker-reported unrealized P&L.
	UnrealizedPnl string
	// Currency is the currency code.
	Currency string
}

// RawEquitySummary is one daily equity summary record.
type RawEquitySummary struct {
	// ReportDate is the summary date as reported.
	ReportDate string
	// Total is the total account value.
	Total string
	// Cash is the cash component.
	Cash string
	// Stock is the securities component.
	Stock string
}

// ParseStatement parses raw Flex Query XML into a Statement.
//
// The parser is tolerant of the feed's attribute-name variants: each field
// declares an ordered list of acceptable attribute names and the first
// present, non-empty one wins. Unknown elements and attributes are ignored.
func ParseStatement(data []byte) (*Statement, error) {
	statement := &Statement{}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "FlexStatement":
			statement.AccountID = attrValue(start, "accountId")
		case "Trade", "Order":
			// Some report configurations emit consolidated Order rows
			// instead of per-fill Trade rows; both carry the same attributes.
			statement.Trades = append(statement.Trades, rawTrade(start))
		case "OpenPosition":
			statement.OpenPositions = append(statement.OpenPositions, rawPosition(start))
		case "EquitySummaryByReportDateInBase":
			statement.EquitySummaries = append(statement.EquitySummaries, rawEquitySummary(start))
		case "EquitySummaryInBase":
			// Standard statements use this name for the container element
			// wrapping the daily rows; some report configurations use it for
			// the rows themselves. Only attribute-bearing elements are rows.
			if len(start.Attr) == 0 {
				continue
			}
			statement.EquitySummaries = append(statement.EquitySummaries, rawEquitySummary(start))
		case "CashReportCurrency":
			// The base-currency summary row carries the statement's own
			// starting/ending cash figures.
			if currency := attrValue(start, "currency"); currency != "" && currency != "BASE_SUMMARY" {
				continue
			}
			statement.StartingCash = attrValue(start, "startingCash", "startingCashSec")
			statement.EndingCash = attrValue(start, "endingCash", "endingCashSec", "endingSettledCash")
		}
	}
	return statement, nil
}

// rawTrade resolves a trade element's attributes in preference order.
func rawTrade(start xml.StartElement) RawTrade {
	trade := RawTrade{
		ExecutionID: attrValue(start, "tradeID", "execID", "transactionID"),
		Symbol:      attrValue(start, "symbol"),
		Side:        attrValue(start, "buySell", "side"),
		Quantity:    attrValue(start, "quantity", "shares"),
		Price:       attrValue(start, "tradePrice", "price"),
		Commission:  attrValue(start, "ibCommission", "commission"),
		Currency:    attrValue(start, "currency"),
		RealizedPnl: attrValue(start, "fifoPnlRealized", "realizedPnl", "fifoRealizedPnl"),
		NetCash:     attrValue(start, "netCash"),
		DateTime:    attrValue(start, "dateTime"),
	}
	// Older report types split the timestamp into tradeDate and tradeTime.
	if trade.DateTime == "" {
		date := attrValue(start, "tradeDate", "reportDate")
		if clock := attrValue(start, "tradeTime"); clock != "" {
			trade.DateTime = date + ";" + clock
		} else {
			trade.DateTime = date
		}
	}
	return trade
}

// rawPosition resolves an open-position element's attributes in preference order.
func rawPosition(start xml.StartElement) RawPosition {
	return RawPosition{
		Symbol:         attrValue(start, "symbol"),
		Quantity:       attrValue(start, "position", "quantity"),
		CostBasisPrice: attrValue(start, "costBasisPrice", "openPrice"),
		MarkPrice:      attrValue(start, "markPrice"),
		PositionValue:  attrValue(start, "positionValue", "value"),
		UnrealizedPnl:  attrValue(start, "fifoPnlUnrealized", "unrealizedPnl"),
		Currency:       attrValue(start, "currency"),
	}
}

// rawEquitySummary resolves an equity summary element's attributes in preference order.
func rawEquitySummary(start xml.StartElement) RawEquitySummary {
	return RawEquitySummary{
		ReportDate: attrValue(start, "reportDate"),
		Total:      attrValue(start, "total", "totalLong"),
		Cash:       attrValue(start, "cash", "cashLong"),
		Stock:      attrValue(start, "stock", "stockLong"),
	}
}

// attrValue returns the first present, non-empty attribute among names.
func attrValue(start xml.StartElement, names ...string) string {
	for _, name := range names {
		for _, attr := range start.Attr {
			if attr.Name.Local == name && attr.Value != "" {
				return attr.Value
			}
		}
	}
	return ""
}
