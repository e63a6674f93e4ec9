package flexjson

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradecast/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithConfig(logger.LogConfig{Level: "ERROR", Format: "text"})
	os.Exit(m.Run())
}

func TestSourceReadsNewestReport(t *testing.T) {
	dir := t.TempDir()
	older := `{"TradeConfirm":[{"tradeID":"1","symbol":"OLD","quantity":10,"price":1,"dateTime":"20240609;100000"}]}`
	newer := `{"TradeConfirm":[{"tradeID":"2","symbol":"NEW","quantity":10,"price":1,"dateTime":"20240610;100000"}]}`
	if err := os.WriteFile(filepath.Join(dir, "trades_20240609.json"), []byte(older), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trades_20240610.json"), []byte(newer), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewSource("flex", dir)
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	execs, err := src.Executions(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("executions: %v", err)
	}
	if len(execs) != 1 || execs[0].Instrument.Symbol != "NEW" {
		t.Fatalf("Expected only the newest report's trades, got %+v", execs)
	}
}

func TestSourceFiltersBySince(t *testing.T) {
	dir := t.TempDir()
	report := `{"TradeConfirm":[
		{"tradeID":"1","symbol":"AAPL","quantity":10,"price":1,"dateTime":"20240610;090000"},
		{"tradeID":"2","symbol":"AAPL","quantity":10,"price":1,"dateTime":"20240610;120000"}
	]}`
	if err := os.WriteFile(filepath.Join(dir, "trades_20240610.json"), []byte(report), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewSource("flex", dir)
	since := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	execs, err := src.Executions(context.Background(), since)
	if err != nil {
		t.Fatalf("executions: %v", err)
	}
	if len(execs) != 1 || execs[0].ExecID != "2" {
		t.Fatalf("Expected only the later trade, got %+v", execs)
	}
}

func TestSourceReadsPortfolioReport(t *testing.T) {
	dir := t.TempDir()
	report := `{"OpenPosition":[{"symbol":"AAPL","position":100,"costBasisPrice":150.25,"markPrice":155}]}`
	if err := os.WriteFile(filepath.Join(dir, "portfolio_20240610.json"), []byte(report), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewSource("flex", dir)
	positions, err := src.Positions(context.Background())
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions) != 1 || positions[0].Instrument.Symbol != "AAPL" {
		t.Fatalf("Expected the AAPL position, got %+v", positions)
	}
}

func TestSourceMissingDirectory(t *testing.T) {
	src := NewSource("flex", filepath.Join(t.TempDir(), "missing"))
	if err := src.Connect(context.Background()); err == nil {
		t.Error("Expected an error for a missing directory")
	}
}
