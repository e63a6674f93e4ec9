// Package flexquery converts Flex query report rows into executions
// and positions. The rows carry both JSON and XML tags so the same
// shapes decode saved report files and Flex Web Service statements.
package flexquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/logger"
	"tradecast/internal/types"
)

// TradeRow is one TradeConfirm entry of a trades report.
type TradeRow struct {
	TradeID          string          `json:"tradeID" xml:"tradeID,attr"`
	Symbol           string          `json:"symbol" xml:"symbol,attr"`
	UnderlyingSymbol string          `json:"underlyingSymbol" xml:"underlyingSymbol,attr"`
	PutCall          string          `json:"putCall" xml:"putCall,attr"`
	Strike           json.Number     `json:"strike" xml:"strike,attr"`
	Expiry           string          `json:"expiry" xml:"expiry,attr"`
	Quantity         decimal.Decimal `json:"quantity" xml:"quantity,attr"`
	Price            decimal.Decimal `json:"price" xml:"price,attr"`
	Currency         string          `json:"currency" xml:"currency,attr"`
	DateTime         string          `json:"dateTime" xml:"dateTime,attr"`
}

// PositionRow is one OpenPosition entry of a portfolio report.
type PositionRow struct {
	Symbol           string          `json:"symbol" xml:"symbol,attr"`
	UnderlyingSymbol string          `json:"underlyingSymbol" xml:"underlyingSymbol,attr"`
	PutCall          string          `json:"putCall" xml:"putCall,attr"`
	Strike           json.Number     `json:"strike" xml:"strike,attr"`
	Expiry           string          `json:"expiry" xml:"expiry,attr"`
	Position         decimal.Decimal `json:"position" xml:"position,attr"`
	CostBasisPrice   decimal.Decimal `json:"costBasisPrice" xml:"costBasisPrice,attr"`
	MarkPrice        decimal.Decimal `json:"markPrice" xml:"markPrice,attr"`
	Currency         string          `json:"currency" xml:"currency,attr"`
	ReportDate       string          `json:"reportDate" xml:"reportDate,attr"`
}

// ParseTime handles both the Flex "20250129;112309" form and RFC 3339.
func ParseTime(value string) (time.Time, error) {
	if len(value) == 15 && value[8] == ';' {
		return time.Parse("20060102;150405", value)
	}
	return time.Parse(time.RFC3339, value)
}

// parseInstrument builds the instrument for a row. Option rows carry
// putCall plus strike/expiry on the underlying symbol; everything else
// is a stock row.
func parseInstrument(symbol, underlying, putCall string, strike json.Number, expiry, currency string) (types.Instrument, error) {
	if currency == "" {
		currency = "USD"
	}
	if putCall == "" {
		return types.Stock(symbol, currency), nil
	}

	strikeDec, err := decimal.NewFromString(strike.String())
	if err != nil {
		return types.Instrument{}, fmt.Errorf("parse strike %q: %w", strike, err)
	}
	expiryDate, err := time.Parse("20060102", expiry)
	if err != nil {
		return types.Instrument{}, fmt.Errorf("parse expiry %q: %w", expiry, err)
	}
	kind := types.OptionCall
	if putCall == "P" {
		kind = types.OptionPut
	}
	return types.Option(underlying, strikeDec, expiryDate, kind, currency)
}

// ParseExecutions converts trade rows, skipping malformed ones with a
// warning. Malformed rows never reach the reconciliation core.
func ParseExecutions(ctx context.Context, rows []TradeRow, sourceID string) []types.Execution {
	execs := make([]types.Execution, 0, len(rows))
	for _, row := range rows {
		ts, err := ParseTime(row.DateTime)
		if err != nil {
			logger.Warn(ctx, "Skipping trade with invalid datetime", "trade_id", row.TradeID, "error", err)
			continue
		}
		instrument, err := parseInstrument(row.Symbol, row.UnderlyingSymbol, row.PutCall, row.Strike, row.Expiry, row.Currency)
		if err != nil {
			logger.Warn(ctx, "Skipping trade with invalid instrument", "trade_id", row.TradeID, "error", err)
			continue
		}
		if row.Quantity.IsZero() {
			logger.Warn(ctx, "Skipping trade with zero quantity", "trade_id", row.TradeID)
			continue
		}

		side := types.SideBuy
		if row.Quantity.IsNegative() {
			side = types.SideSell
		}
		execs = append(execs, types.Execution{
			Instrument: instrument,
			Quantity:   row.Quantity.Abs(),
			Price:      row.Price,
			Side:       side,
			Currency:   instrument.Currency,
			Timestamp:  ts,
			ExecID:     row.TradeID,
			SourceID:   sourceID,
		})
	}
	return execs
}

// ParsePositions converts position rows, skipping malformed ones.
func ParsePositions(ctx context.Context, rows []PositionRow, reportTime time.Time) []types.Position {
	positions := make([]types.Position, 0, len(rows))
	for _, row := range rows {
		instrument, err := parseInstrument(row.Symbol, row.UnderlyingSymbol, row.PutCall, row.Strike, row.Expiry, row.Currency)
		if err != nil {
			logger.Warn(ctx, "Skipping position with invalid instrument", "symbol", row.Symbol, "error", err)
			continue
		}
		positions = append(positions, types.Position{
			Instrument:  instrument,
			Quantity:    row.Position,
			CostBasis:   row.CostBasisPrice,
			MarketPrice: row.MarkPrice,
			ReportTime:  reportTime,
		})
	}
	return positions
}
