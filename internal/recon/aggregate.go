package recon

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/types"
)

// Origin says where an Aggregate's quantity came from.
type Origin int

const (
	// FromFills marks an aggregate built from real executions; Fills
	// holds its constituents and their quantities sum to Quantity.
	FromFills Origin = iota
	// FromPosition marks a synthetic aggregate standing in for a held
	// position. It has no constituent fills; its price is the position's
	// cost basis.
	FromPosition
)

// Aggregate is the weighted-average merge of same-instrument,
// same-direction executions, or a synthetic stand-in for a held
// position. It is created fresh on every reconciliation run.
type Aggregate struct {
	Instrument    types.Instrument
	Side          types.Side
	Quantity      decimal.Decimal
	WeightedPrice decimal.Decimal
	Timestamp     time.Time
	Currency      string
	Origin        Origin
	Fills         []types.Execution
}

// PositionAggregate builds the synthetic aggregate that represents the
// matched slice of a held position. The timestamp is taken from the
// closing aggregate, mirroring when the match was observed.
func PositionAggregate(pos types.Position, quantity decimal.Decimal, ts time.Time, currency string) Aggregate {
	side := types.SideBuy
	if pos.IsShort() {
		side = types.SideSell
	}
	return Aggregate{
		Instrument:    pos.Instrument,
		Side:          side,
		Quantity:      quantity,
		WeightedPrice: pos.CostBasis,
		Timestamp:     ts,
		Currency:      currency,
		Origin:        FromPosition,
	}
}

// Partial returns a copy of the aggregate capped at target quantity.
// Constituents are consumed in stored order; the one that would
// overshoot is replaced by a synthesized fill carrying the exact
// remainder. The weighted price is inherited unchanged, never
// recomputed, so a partial keeps the average price of its source.
// FromPosition aggregates have nothing to split and simply carry the
// reduced quantity.
func (a Aggregate) Partial(target decimal.Decimal) Aggregate {
	out := a
	out.Quantity = target

	if a.Origin == FromPosition {
		return out
	}

	remaining := target
	fills := make([]types.Execution, 0, len(a.Fills))
	for _, fill := range a.Fills {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(fill.Quantity, remaining)
		remaining = remaining.Sub(take)
		if take.Equal(fill.Quantity) {
			fills = append(fills, fill)
			continue
		}
		partial := fill
		partial.Quantity = take
		fills = append(fills, partial)
	}
	out.Fills = fills
	return out
}
