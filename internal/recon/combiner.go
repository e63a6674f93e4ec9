package recon

import (
	"sort"

	"github.com/shopspring/decimal"

	"tradecast/internal/types"
)

// Combine groups executions by instrument identity and merges each
// side into at most one aggregate per direction. Input order does not
// matter. Constituents are stored newest-first, which is the order
// partial splits consume them in.
func Combine(execs []types.Execution) map[string][]Aggregate {
	if len(execs) == 0 {
		return map[string][]Aggregate{}
	}

	grouped := make(map[string][]types.Execution)
	for _, exec := range execs {
		key := exec.Instrument.Key()
		grouped[key] = append(grouped[key], exec)
	}

	combined := make(map[string][]Aggregate, len(grouped))
	for key, fills := range grouped {
		sort.SliceStable(fills, func(i, j int) bool {
			return fills[i].Timestamp.After(fills[j].Timestamp)
		})

		var buys, sells []types.Execution
		for _, fill := range fills {
			if fill.Side == types.SideBuy {
				buys = append(buys, fill)
			} else {
				sells = append(sells, fill)
			}
		}

		aggs := make([]Aggregate, 0, 2)
		if len(buys) > 0 {
			aggs = append(aggs, combineSide(buys, types.SideBuy))
		}
		if len(sells) > 0 {
			aggs = append(aggs, combineSide(sells, types.SideSell))
		}
		combined[key] = aggs
	}
	return combined
}

// combineSide merges same-direction fills into one aggregate with a
// weighted-average price and the latest constituent timestamp.
func combineSide(fills []types.Execution, side types.Side) Aggregate {
	total := decimal.Zero
	weightedSum := decimal.Zero
	latest := fills[0].Timestamp
	for _, fill := range fills {
		qty := fill.Quantity.Abs()
		total = total.Add(qty)
		weightedSum = weightedSum.Add(qty.Mul(fill.Price))
		if fill.Timestamp.After(latest) {
			latest = fill.Timestamp
		}
	}

	price := decimal.Zero
	if total.IsPositive() {
		price = weightedSum.Div(total)
	}

	return Aggregate{
		Instrument:    fills[0].Instrument,
		Side:          side,
		Quantity:      total,
		WeightedPrice: price,
		Timestamp:     latest,
		Currency:      fills[0].Currency,
		Origin:        FromFills,
		Fills:         fills,
	}
}
