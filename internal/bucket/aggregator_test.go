package bucket

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/types"
)

var day = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func exec(id string, ts time.Time) types.Execution {
	return types.Execution{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   decimal.NewFromInt(10),
		Price:      decimal.NewFromInt(150),
		Side:       types.SideBuy,
		Currency:   "USD",
		Timestamp:  ts,
		ExecID:     id,
		SourceID:   "test",
	}
}

func TestRoundDown(t *testing.T) {
	ts := day.Add(17*time.Minute + 42*time.Second)
	if got := RoundDown(ts, 15*time.Minute); !got.Equal(day.Add(15 * time.Minute)) {
		t.Errorf("Expected 00:15, got %v", got)
	}
	if got := RoundDown(ts, time.Hour); !got.Equal(day) {
		t.Errorf("Expected 00:00, got %v", got)
	}
}

func TestBoundaryInitEmitsNothing(t *testing.T) {
	a := NewAggregator()
	a.AddExecutions([]types.Execution{exec("1", day.Add(3 * time.Minute))})

	completed := a.CompletedBuckets(day.Add(20 * time.Minute))
	for _, g := range Granularities {
		if len(completed[g]) != 0 {
			t.Errorf("Expected nothing emitted on the initializing call for %s, got %d", g, len(completed[g]))
		}
	}
	if a.QueuedCount(Gran15m) != 1 {
		t.Errorf("Expected the execution to stay queued, got %d", a.QueuedCount(Gran15m))
	}
}

func TestCompletedBucketsDrainsClosedWindow(t *testing.T) {
	a := NewAggregator()
	a.AddExecutions([]types.Execution{
		exec("1", day.Add(3*time.Minute)),
		exec("2", day.Add(9*time.Minute)),
		exec("3", day.Add(17*time.Minute)),
	})

	now := day.Add(20 * time.Minute)
	a.CompletedBuckets(now) // initializes boundaries
	completed := a.CompletedBuckets(now)

	buckets := completed[Gran15m]
	if len(buckets) != 1 {
		t.Fatalf("Expected 1 completed 15m bucket, got %d", len(buckets))
	}
	bkt := buckets[0]
	if !bkt.Start.Equal(day) || !bkt.End.Equal(day.Add(15*time.Minute)) {
		t.Errorf("Expected window [00:00, 00:15), got [%v, %v)", bkt.Start, bkt.End)
	}
	if len(bkt.Executions) != 2 {
		t.Fatalf("Expected 2 executions in the bucket, got %d", len(bkt.Executions))
	}
	// The 00:17 execution belongs to the still-open window.
	if a.QueuedCount(Gran15m) != 1 {
		t.Errorf("Expected 1 execution still queued, got %d", a.QueuedCount(Gran15m))
	}

	// The 1h and 1d windows have not closed yet.
	if len(completed[Gran1h]) != 0 || len(completed[Gran1d]) != 0 {
		t.Errorf("Expected no 1h/1d buckets, got %d and %d", len(completed[Gran1h]), len(completed[Gran1d]))
	}
}

func TestCompletedBucketsCatchUp(t *testing.T) {
	a := NewAggregator()
	a.AddExecutions([]types.Execution{
		exec("1", day.Add(3*time.Minute)),
		exec("2", day.Add(40*time.Minute)),
	})

	now := day.Add(65 * time.Minute)
	a.CompletedBuckets(now)
	completed := a.CompletedBuckets(now)

	buckets := completed[Gran15m]
	if len(buckets) != 2 {
		t.Fatalf("Expected 2 buckets after catch-up, got %d", len(buckets))
	}
	if !buckets[0].Start.Equal(day) {
		t.Errorf("Expected first bucket at 00:00, got %v", buckets[0].Start)
	}
	if !buckets[1].Start.Equal(day.Add(30 * time.Minute)) {
		t.Errorf("Expected second bucket at 00:30, got %v", buckets[1].Start)
	}
	// Empty windows in between advanced the boundary without emitting.
	if a.QueuedCount(Gran15m) != 0 {
		t.Errorf("Expected empty queue, got %d", a.QueuedCount(Gran15m))
	}

	// 1h window [00:00, 01:00) also closed, holding both executions.
	hour := completed[Gran1h]
	if len(hour) != 1 {
		t.Fatalf("Expected 1 completed 1h bucket, got %d", len(hour))
	}
	if len(hour[0].Executions) != 2 {
		t.Errorf("Expected both executions in the 1h bucket, got %d", len(hour[0].Executions))
	}
}

func TestStragglersAreDiscarded(t *testing.T) {
	a := NewAggregator()
	a.SetBoundary(Gran15m, day.Add(time.Hour))
	a.AddExecutions([]types.Execution{
		exec("late", day.Add(50*time.Minute)),
		exec("ok", day.Add(70*time.Minute)),
	})

	completed := a.CompletedBuckets(day.Add(80 * time.Minute))
	buckets := completed[Gran15m]
	if len(buckets) != 1 {
		t.Fatalf("Expected 1 bucket, got %d", len(buckets))
	}
	if len(buckets[0].Executions) != 1 || buckets[0].Executions[0].ExecID != "ok" {
		t.Fatalf("Expected only the in-window execution, got %d", len(buckets[0].Executions))
	}
	if a.QueuedCount(Gran15m) != 0 {
		t.Errorf("Expected the straggler discarded, got %d queued", a.QueuedCount(Gran15m))
	}
}

func TestUpdatePositionsIsolatesBooks(t *testing.T) {
	a := NewAggregator()
	a.UpdatePositions([]types.Position{{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   decimal.NewFromInt(100),
		CostBasis:  decimal.NewFromInt(150),
	}})

	a.Book(Gran15m).ApplyExecution(types.Execution{
		Instrument: types.Stock("AAPL", "USD"),
		Quantity:   decimal.NewFromInt(40),
		Price:      decimal.NewFromInt(160),
		Side:       types.SideSell,
		Currency:   "USD",
		Timestamp:  day,
	})

	key := types.Stock("AAPL", "USD").Key()
	pos15, _ := a.Book(Gran15m).Get(key)
	if !pos15.Quantity.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected 15m book at 60, got %s", pos15.Quantity)
	}
	pos1h, _ := a.Book(Gran1h).Get(key)
	if !pos1h.Quantity.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected 1h book untouched at 100, got %s", pos1h.Quantity)
	}
}
