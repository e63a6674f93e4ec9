package recon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/types"
)

var baseTime = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func stockExec(id, symbol string, side types.Side, qty, price string, ts time.Time) types.Execution {
	return types.Execution{
		Instrument: types.Stock(symbol, "USD"),
		Quantity:   dec(qty),
		Price:      dec(price),
		Side:       side,
		Currency:   "USD",
		Timestamp:  ts,
		ExecID:     id,
		SourceID:   "test",
	}
}

func optionExec(t *testing.T, id, symbol string, side types.Side, qty, price, strike string, kind types.OptionKind, ts time.Time) types.Execution {
	t.Helper()
	expiry := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	inst, err := types.Option(symbol, dec(strike), expiry, kind, "USD")
	if err != nil {
		t.Fatalf("build option: %v", err)
	}
	return types.Execution{
		Instrument: inst,
		Quantity:   dec(qty),
		Price:      dec(price),
		Side:       side,
		Currency:   "USD",
		Timestamp:  ts,
		ExecID:     id,
		SourceID:   "test",
	}
}

func TestReconcileEmptyInput(t *testing.T) {
	results := NewEngine().Reconcile(context.Background(), nil, nil)
	if results != nil {
		t.Errorf("Expected nil results for empty input, got %d", len(results))
	}
}

func TestReconcileSelfMatch(t *testing.T) {
	execs := []types.Execution{
		stockExec("1", "AAPL", types.SideBuy, "100", "150.25", baseTime),
		stockExec("2", "AAPL", types.SideSell, "100", "160.25", baseTime.Add(150*time.Minute)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	res := results[0]
	if res.Kind != ResultClosed {
		t.Fatalf("Expected closed result, got kind %d", res.Kind)
	}
	if got := res.Closed.ProfitAmount; !got.Equal(dec("1000")) {
		t.Errorf("Expected profit 1000, got %s", got)
	}
	if !res.Closed.PercentValid {
		t.Fatal("Expected a valid profit percentage")
	}
	// 10 / 150.25 * 100
	if got := res.Closed.ProfitPercent.StringFixed(2); got != "6.66" {
		t.Errorf("Expected profit percent 6.66, got %s", got)
	}
	if got := res.Closed.HoldTime(); got != 150*time.Minute {
		t.Errorf("Expected hold time 2h30m, got %v", got)
	}
}

func TestReconcileWeightedAverage(t *testing.T) {
	execs := []types.Execution{
		stockExec("1", "MSFT", types.SideBuy, "100", "100", baseTime),
		stockExec("2", "MSFT", types.SideBuy, "50", "112", baseTime.Add(10*time.Minute)),
		stockExec("3", "MSFT", types.SideSell, "150", "110", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	match := results[0].Closed
	if match == nil {
		t.Fatal("Expected a closed match")
	}
	// (100*100 + 50*112) / 150 = 104
	if got := match.Buy.WeightedPrice; !got.Equal(dec("104")) {
		t.Errorf("Expected weighted buy price 104, got %s", got)
	}
	// (110 - 104) * 150
	if got := match.ProfitAmount; !got.Equal(dec("900")) {
		t.Errorf("Expected profit 900, got %s", got)
	}
}

func TestReconcilePartialMatch(t *testing.T) {
	execs := []types.Execution{
		stockExec("1", "AAPL", types.SideBuy, "100", "150", baseTime),
		stockExec("2", "AAPL", types.SideSell, "60", "160", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	// Residual open BUY carries the earlier timestamp, so it sorts first.
	open := results[0]
	if open.Kind != ResultOpen {
		t.Fatalf("Expected first result open, got kind %d", open.Kind)
	}
	if !open.Open.Quantity.Equal(dec("40")) {
		t.Errorf("Expected residual quantity 40, got %s", open.Open.Quantity)
	}
	if !open.Open.WeightedPrice.Equal(dec("150")) {
		t.Errorf("Expected residual to inherit price 150, got %s", open.Open.WeightedPrice)
	}

	closed := results[1]
	if closed.Kind != ResultClosed {
		t.Fatalf("Expected second result closed, got kind %d", closed.Kind)
	}
	if !closed.Closed.Buy.Quantity.Equal(dec("60")) {
		t.Errorf("Expected matched quantity 60, got %s", closed.Closed.Buy.Quantity)
	}
	if !closed.Closed.ProfitAmount.Equal(dec("600")) {
		t.Errorf("Expected profit 600, got %s", closed.Closed.ProfitAmount)
	}

	// Conservation: matched + residual = original quantity.
	total := closed.Closed.Buy.Quantity.Add(open.Open.Quantity)
	if !total.Equal(dec("100")) {
		t.Errorf("Quantity not conserved: %s", total)
	}
}

func TestReconcileShortProfitSign(t *testing.T) {
	execs := []types.Execution{
		stockExec("1", "TSLA", types.SideSell, "100", "150.25", baseTime),
		stockExec("2", "TSLA", types.SideBuy, "100", "140.25", baseTime.Add(6*time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	match := results[0].Closed
	// Price fell after a short open, so the profit is positive.
	if !match.ProfitAmount.Equal(dec("1000")) {
		t.Errorf("Expected profit 1000, got %s", match.ProfitAmount)
	}
	if match.ProfitPercent.IsNegative() {
		t.Errorf("Expected positive percent for a profitable short, got %s", match.ProfitPercent)
	}
	if got := match.ProfitPercent.StringFixed(2); got != "6.66" {
		t.Errorf("Expected percent 6.66, got %s", got)
	}
}

func TestReconcileOptionMultiplier(t *testing.T) {
	execs := []types.Execution{
		optionExec(t, "1", "AAPL", types.SideBuy, "5", "2.00", "150", types.OptionCall, baseTime),
		optionExec(t, "2", "AAPL", types.SideSell, "5", "3.00", "150", types.OptionCall, baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	// (3 - 2) * 5 contracts * 100 shares
	if got := results[0].Closed.ProfitAmount; !got.Equal(dec("500")) {
		t.Errorf("Expected profit 500, got %s", got)
	}
}

func TestReconcileOptionsGroupSeparately(t *testing.T) {
	// Same symbol, different strikes: must not match each other.
	execs := []types.Execution{
		optionExec(t, "1", "AAPL", types.SideBuy, "5", "2.00", "150", types.OptionCall, baseTime),
		optionExec(t, "2", "AAPL", types.SideSell, "5", "3.00", "155", types.OptionCall, baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 2 {
		t.Fatalf("Expected 2 open results, got %d", len(results))
	}
	for _, res := range results {
		if res.Kind != ResultOpen {
			t.Errorf("Expected open result, got kind %d", res.Kind)
		}
	}
}

func TestReconcilePositionMatch(t *testing.T) {
	pos := types.Position{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   dec("100"),
		CostBasis:  dec("150"),
		ReportTime: baseTime,
	}
	execs := []types.Execution{
		stockExec("1", "AAPL", types.SideSell, "60", "160", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, []types.Position{pos})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	match := results[0].Closed
	if match == nil {
		t.Fatal("Expected a closed match against the position")
	}
	if match.Buy.Origin != FromPosition {
		t.Error("Expected the buy side to be the synthetic position aggregate")
	}
	if len(match.Buy.Fills) != 0 {
		t.Errorf("Expected no constituent fills on the position side, got %d", len(match.Buy.Fills))
	}
	if !match.Buy.WeightedPrice.Equal(dec("150")) {
		t.Errorf("Expected position side at cost basis 150, got %s", match.Buy.WeightedPrice)
	}
	// (160 - 150) * 60, percent against the cost basis.
	if !match.ProfitAmount.Equal(dec("600")) {
		t.Errorf("Expected profit 600, got %s", match.ProfitAmount)
	}
	if got := match.ProfitPercent.StringFixed(2); got != "6.67" {
		t.Errorf("Expected percent 6.67, got %s", got)
	}
}

func TestReconcilePositionMatchCapped(t *testing.T) {
	pos := types.Position{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   dec("100"),
		CostBasis:  dec("150"),
		ReportTime: baseTime,
	}
	execs := []types.Execution{
		stockExec("1", "AAPL", types.SideSell, "150", "160", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, []types.Position{pos})
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	var closed, open int
	for _, res := range results {
		switch res.Kind {
		case ResultClosed:
			closed++
			if !res.Closed.Sell.Quantity.Equal(dec("100")) {
				t.Errorf("Expected matched quantity capped at 100, got %s", res.Closed.Sell.Quantity)
			}
		case ResultOpen:
			open++
			if !res.Open.Quantity.Equal(dec("50")) {
				t.Errorf("Expected residual sell of 50, got %s", res.Open.Quantity)
			}
			if res.Open.Side != types.SideSell {
				t.Errorf("Expected residual on the sell side, got %s", res.Open.Side)
			}
		}
	}
	if closed != 1 || open != 1 {
		t.Errorf("Expected 1 closed and 1 open, got %d and %d", closed, open)
	}
}

func TestReconcileShortPositionMatch(t *testing.T) {
	pos := types.Position{
		Instrument: types.Stock("TSLA", "USD"),
		Quantity:   dec("-100"),
		CostBasis:  dec("150"),
		ReportTime: baseTime,
	}
	execs := []types.Execution{
		stockExec("1", "TSLA", types.SideBuy, "100", "140", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, []types.Position{pos})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	match := results[0].Closed
	if match.Sell.Origin != FromPosition {
		t.Error("Expected the sell side to be the synthetic position aggregate")
	}
	// Bought back below the short's basis: positive profit.
	if !match.ProfitAmount.Equal(dec("1000")) {
		t.Errorf("Expected profit 1000, got %s", match.ProfitAmount)
	}
	if match.ProfitPercent.IsNegative() {
		t.Errorf("Expected positive percent, got %s", match.ProfitPercent)
	}
}

func TestReconcileNonReducingSidePassesThrough(t *testing.T) {
	pos := types.Position{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   dec("100"),
		CostBasis:  dec("150"),
		ReportTime: baseTime,
	}
	execs := []types.Execution{
		stockExec("1", "AAPL", types.SideBuy, "50", "155", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, []types.Position{pos})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Kind != ResultOpen {
		t.Fatalf("Expected a pass-through open result, got kind %d", results[0].Kind)
	}
	if !results[0].Open.Quantity.Equal(dec("50")) {
		t.Errorf("Expected quantity 50, got %s", results[0].Open.Quantity)
	}
}

func TestReconcileZeroOpeningPrice(t *testing.T) {
	pos := types.Position{
		Instrument: types.Stock("GRANT", "USD"),
		Quantity:   dec("100"),
		CostBasis:  dec("0"),
		ReportTime: baseTime,
	}
	execs := []types.Execution{
		stockExec("1", "GRANT", types.SideSell, "50", "10", baseTime.Add(time.Hour)),
	}

	results := NewEngine().Reconcile(context.Background(), execs, []types.Position{pos})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	match := results[0].Closed
	if match == nil {
		t.Fatal("Expected a closed match")
	}
	if match.PercentValid {
		t.Error("Expected percent to be flagged invalid for a zero opening price")
	}
	if !match.ProfitAmount.Equal(dec("500")) {
		t.Errorf("Expected profit 500, got %s", match.ProfitAmount)
	}
}

func TestReconcileOrdering(t *testing.T) {
	execs := []types.Execution{
		stockExec("1", "MSFT", types.SideBuy, "10", "100", baseTime.Add(2*time.Hour)),
		stockExec("2", "AAPL", types.SideBuy, "100", "150", baseTime),
		stockExec("3", "AAPL", types.SideSell, "60", "160", baseTime),
	}

	results := NewEngine().Reconcile(context.Background(), execs, nil)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Symbol() != "AAPL" || results[1].Symbol() != "AAPL" || results[2].Symbol() != "MSFT" {
		t.Fatalf("Expected AAPL results before MSFT, got %s %s %s",
			results[0].Symbol(), results[1].Symbol(), results[2].Symbol())
	}
	// Same symbol, same timestamp: the closed match sorts first.
	if results[0].Kind != ResultClosed {
		t.Errorf("Expected closed result first on timestamp tie, got kind %d", results[0].Kind)
	}
	if results[1].Kind != ResultOpen {
		t.Errorf("Expected open residual second, got kind %d", results[1].Kind)
	}
}

func TestReconcileDoesNotMutateInputs(t *testing.T) {
	execs := []types.Execution{
		stockExec("1", "AAPL", types.SideBuy, "100", "150", baseTime),
		stockExec("2", "AAPL", types.SideSell, "60", "160", baseTime.Add(time.Hour)),
	}
	positions := []types.Position{{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   dec("500"),
		CostBasis:  dec("120"),
		ReportTime: baseTime,
	}}

	NewEngine().Reconcile(context.Background(), execs, positions)

	if !execs[0].Quantity.Equal(dec("100")) || !execs[1].Quantity.Equal(dec("60")) {
		t.Error("Execution quantities were mutated")
	}
	if !positions[0].Quantity.Equal(dec("500")) {
		t.Errorf("Position quantity was mutated: %s", positions[0].Quantity)
	}
}
