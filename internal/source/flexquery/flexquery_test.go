package flexquery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/logger"
	"tradecast/internal/types"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithConfig(logger.LogConfig{Level: "ERROR", Format: "text"})
	os.Exit(m.Run())
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("20240610;143000")
	if err != nil {
		t.Fatalf("parse flex form: %v", err)
	}
	want := time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("Expected %v, got %v", want, ts)
	}

	ts, err = ParseTime("2024-06-10T14:30:00Z")
	if err != nil {
		t.Fatalf("parse RFC3339 form: %v", err)
	}
	if !ts.Equal(want) {
		t.Errorf("Expected %v, got %v", want, ts)
	}

	if _, err := ParseTime("not a time"); err == nil {
		t.Error("Expected an error for garbage input")
	}
}

func TestParseExecutions(t *testing.T) {
	rows := []TradeRow{
		{
			TradeID:  "1001",
			Symbol:   "AAPL",
			Quantity: decimal.NewFromInt(100),
			Price:    decimal.RequireFromString("150.25"),
			Currency: "USD",
			DateTime: "20240610;143000",
		},
		{
			TradeID:  "1002",
			Symbol:   "TSLA",
			Quantity: decimal.NewFromInt(-40),
			Price:    decimal.NewFromInt(700),
			DateTime: "2024-06-10T15:00:00Z",
		},
		{
			TradeID:  "1003",
			Symbol:   "BAD",
			Quantity: decimal.NewFromInt(10),
			DateTime: "garbage",
		},
		{
			TradeID:  "1004",
			Symbol:   "ZERO",
			Quantity: decimal.Zero,
			DateTime: "20240610;150000",
		},
	}

	execs := ParseExecutions(context.Background(), rows, "flex")
	if len(execs) != 2 {
		t.Fatalf("Expected 2 valid executions, got %d", len(execs))
	}

	buy := execs[0]
	if buy.Side != types.SideBuy || !buy.Quantity.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected BUY 100, got %s %s", buy.Side, buy.Quantity)
	}
	if buy.ExecID != "1001" || buy.SourceID != "flex" {
		t.Errorf("Unexpected ids: %s/%s", buy.ExecID, buy.SourceID)
	}

	// Negative quantity becomes a SELL with positive quantity, and a
	// missing currency defaults to USD.
	sell := execs[1]
	if sell.Side != types.SideSell {
		t.Errorf("Expected SELL, got %s", sell.Side)
	}
	if !sell.Quantity.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected quantity 40, got %s", sell.Quantity)
	}
	if sell.Currency != "USD" {
		t.Errorf("Expected currency defaulted to USD, got %s", sell.Currency)
	}
}

func TestParseOptionRow(t *testing.T) {
	rows := []TradeRow{{
		TradeID:          "2001",
		Symbol:           "AAPL 240621C00150000",
		UnderlyingSymbol: "AAPL",
		PutCall:          "C",
		Strike:           "150",
		Expiry:           "20240621",
		Quantity:         decimal.NewFromInt(5),
		Price:            decimal.RequireFromString("2.30"),
		Currency:         "USD",
		DateTime:         "20240610;143000",
	}}

	execs := ParseExecutions(context.Background(), rows, "flex")
	if len(execs) != 1 {
		t.Fatalf("Expected 1 execution, got %d", len(execs))
	}
	inst := execs[0].Instrument
	if !inst.IsOption() {
		t.Fatal("Expected an option instrument")
	}
	if inst.Symbol != "AAPL" {
		t.Errorf("Expected the underlying symbol, got %s", inst.Symbol)
	}
	if !inst.Option.Strike.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected strike 150, got %s", inst.Option.Strike)
	}
	if inst.Option.Kind != types.OptionCall {
		t.Errorf("Expected a call, got %s", inst.Option.Kind)
	}
	if !inst.Option.Expiry.Equal(time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected expiry: %v", inst.Option.Expiry)
	}
}

func TestParsePositions(t *testing.T) {
	reportTime := time.Date(2024, 6, 10, 21, 0, 0, 0, time.UTC)
	rows := []PositionRow{
		{
			Symbol:         "AAPL",
			Position:       decimal.NewFromInt(100),
			CostBasisPrice: decimal.RequireFromString("150.25"),
			MarkPrice:      decimal.RequireFromString("155.00"),
			Currency:       "USD",
		},
		{
			Symbol:           "TSLA 240621P00700000",
			UnderlyingSymbol: "TSLA",
			PutCall:          "P",
			Strike:           "700",
			Expiry:           "bad-date",
			Position:         decimal.NewFromInt(-2),
		},
	}

	positions := ParsePositions(context.Background(), rows, reportTime)
	if len(positions) != 1 {
		t.Fatalf("Expected 1 valid position, got %d", len(positions))
	}
	pos := positions[0]
	if pos.Instrument.Symbol != "AAPL" {
		t.Errorf("Unexpected symbol %s", pos.Instrument.Symbol)
	}
	if !pos.ReportTime.Equal(reportTime) {
		t.Errorf("Expected report time carried through, got %v", pos.ReportTime)
	}
}
