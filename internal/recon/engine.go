package recon

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"tradecast/internal/logger"
	"tradecast/internal/types"
)

// Engine runs the reconciliation pipeline: combine fills, self-match
// opposing aggregates, match the remainder against held positions, and
// pass through whatever is left as open trades. It holds no state
// between runs and never mutates its inputs; the caller applies
// residual deltas back into the position book.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Reconcile turns one batch of executions plus a snapshot of the known
// positions into an ordered list of results. Results are sorted by
// (symbol, timestamp, kind) with closed matches before open aggregates;
// that ordering is the contract.
func (e *Engine) Reconcile(ctx context.Context, execs []types.Execution, positions []types.Position) []Result {
	if len(execs) == 0 {
		return nil
	}

	book := make(map[string]types.Position, len(positions))
	for _, pos := range positions {
		book[pos.Instrument.Key()] = pos
	}

	combined := Combine(execs)
	logger.Debug(ctx, "Executions combined", "instruments", len(combined), "executions", len(execs))

	var results []Result

	// Self-match: an instrument with both a BUY and a SELL aggregate
	// closes against itself first.
	for key, aggs := range combined {
		if len(aggs) != 2 {
			continue
		}
		buy, sell := aggs[0], aggs[1]
		if buy.Side != types.SideBuy {
			buy, sell = sell, buy
		}
		match, residuals := Match(buy, sell)
		results = append(results, ClosedResult(match))
		combined[key] = residuals
	}

	// Position-match: remaining aggregates close against held positions
	// when their side reduces the position.
	for key, aggs := range combined {
		pos, ok := book[key]
		if !ok {
			continue
		}
		var unmatched []Aggregate
		for _, agg := range aggs {
			if !reducesPosition(pos, agg.Side) {
				unmatched = append(unmatched, agg)
				continue
			}
			matchedQty := decimal.Min(pos.Quantity.Abs(), agg.Quantity)
			posAgg := PositionAggregate(pos, matchedQty, agg.Timestamp, agg.Currency)

			buy, sell := agg, posAgg
			if agg.Side == types.SideSell {
				buy, sell = posAgg, agg
			}
			match, residuals := Match(buy, sell)
			results = append(results, ClosedResult(match))

			// The position side was capped at matchedQty, so any
			// residual belongs to the execution-side aggregate.
			unmatched = append(unmatched, residuals...)
		}
		combined[key] = unmatched
	}

	// Leftovers pass through unchanged as open or unmatched trades.
	for _, aggs := range combined {
		for _, agg := range aggs {
			results = append(results, OpenResult(agg))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Symbol() != results[j].Symbol() {
			return results[i].Symbol() < results[j].Symbol()
		}
		if !results[i].Timestamp().Equal(results[j].Timestamp()) {
			return results[i].Timestamp().Before(results[j].Timestamp())
		}
		return results[i].Kind < results[j].Kind
	})

	return results
}

// reducesPosition reports whether an aggregate of the given side would
// shrink the position: selling into a long, or buying back a short.
func reducesPosition(pos types.Position, side types.Side) bool {
	if pos.Quantity.IsZero() {
		return false
	}
	if pos.IsShort() {
		return side == types.SideBuy
	}
	return side == types.SideSell
}
