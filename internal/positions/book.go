// Package positions tracks the known holdings per instrument and
// folds residual aggregates from reconciliation runs back in.
package positions

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/recon"
	"tradecast/internal/types"
)

// Book is an instrument-keyed set of positions. The reconciliation
// engine only reads position snapshots; all writes go through the book.
// A book has a single logical owner and does no locking of its own.
type Book struct {
	byKey map[string]types.Position
}

func NewBook(positions []types.Position) *Book {
	b := &Book{byKey: make(map[string]types.Position, len(positions))}
	b.Replace(positions)
	return b
}

// Replace swaps the book contents for a fresh snapshot.
func (b *Book) Replace(positions []types.Position) {
	b.byKey = make(map[string]types.Position, len(positions))
	for _, pos := range positions {
		b.byKey[pos.Instrument.Key()] = pos
	}
}

// Get returns the position for an instrument key.
func (b *Book) Get(key string) (types.Position, bool) {
	pos, ok := b.byKey[key]
	return pos, ok
}

// Snapshot returns a copy of all positions, ordered by instrument key
// so callers see a deterministic listing.
func (b *Book) Snapshot() []types.Position {
	keys := make([]string, 0, len(b.byKey))
	for key := range b.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]types.Position, 0, len(keys))
	for _, key := range keys {
		out = append(out, b.byKey[key])
	}
	return out
}

func (b *Book) Len() int {
	return len(b.byKey)
}

// ApplyResult folds one reconciliation result into the book. Closed
// matches reduce the matched position quantity; open aggregates are
// applied as signed deltas.
func (b *Book) ApplyResult(res recon.Result) {
	switch res.Kind {
	case recon.ResultOpen:
		b.ApplyAggregate(*res.Open)
	case recon.ResultClosed:
		// Only the synthetic position side consumed book quantity; the
		// fill sides already netted against each other.
		if res.Closed.Buy.Origin == recon.FromPosition {
			b.applyDelta(res.Closed.Buy.Instrument, res.Closed.Buy.Quantity.Neg(), res.Closed.Buy.WeightedPrice, res.Closed.Buy.Timestamp)
		}
		if res.Closed.Sell.Origin == recon.FromPosition {
			b.applyDelta(res.Closed.Sell.Instrument, res.Closed.Sell.Quantity, res.Closed.Sell.WeightedPrice, res.Closed.Sell.Timestamp)
		}
	}
}

// ApplyAggregate folds an open aggregate into the book: BUY adds to the
// signed quantity, SELL subtracts.
func (b *Book) ApplyAggregate(agg recon.Aggregate) {
	delta := agg.Quantity
	if agg.Side == types.SideSell {
		delta = delta.Neg()
	}
	b.applyDelta(agg.Instrument, delta, agg.WeightedPrice, agg.Timestamp)
}

// ApplyExecution folds a single fill into the book, used when
// rebuilding state from stored executions.
func (b *Book) ApplyExecution(exec types.Execution) {
	delta := exec.Quantity
	if exec.Side == types.SideSell {
		delta = delta.Neg()
	}
	b.applyDelta(exec.Instrument, delta, exec.Price, exec.Timestamp)
}

// applyDelta merges a signed quantity at the given price into the
// position for the instrument. Additive deltas re-average the cost
// basis; reducing deltas keep it. Crossing through zero starts a new
// position at the delta's price. Flat positions are removed.
func (b *Book) applyDelta(instrument types.Instrument, delta, price decimal.Decimal, reportTime time.Time) {
	key := instrument.Key()
	pos, ok := b.byKey[key]
	if !ok {
		b.byKey[key] = types.Position{
			Instrument:  instrument,
			Quantity:    delta,
			CostBasis:   price,
			MarketPrice: price,
			ReportTime:  reportTime,
		}
		return
	}

	next := pos.Quantity.Add(delta)
	switch {
	case next.IsZero():
		delete(b.byKey, key)
		return
	case pos.Quantity.Sign() == delta.Sign():
		// Same direction: re-average the cost basis.
		total := pos.CostBasis.Mul(pos.Quantity.Abs()).Add(price.Mul(delta.Abs()))
		pos.CostBasis = total.Div(next.Abs())
	case pos.Quantity.Sign() != next.Sign():
		// Crossed through zero: the remainder is a new position opened
		// at the delta's price.
		pos.CostBasis = price
	}
	// A plain reduction keeps the original cost basis.

	pos.Quantity = next
	pos.MarketPrice = price
	pos.ReportTime = reportTime
	b.byKey[key] = pos
}
