package recon

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecast/internal/types"
)

var hundred = decimal.NewFromInt(100)

// ClosedMatch is a resolved pairing of an opening and a closing
// aggregate with computed P&L. Either side may be the synthetic
// FromPosition aggregate. ProfitPercent is absent (PercentValid false)
// when the opening price is zero, which makes the percentage undefined.
type ClosedMatch struct {
	Buy           Aggregate
	Sell          Aggregate
	ProfitAmount  decimal.Decimal
	ProfitPercent decimal.Decimal
	PercentValid  bool
}

// Timestamp is the later of the two sides.
func (m ClosedMatch) Timestamp() time.Time {
	if m.Buy.Timestamp.After(m.Sell.Timestamp) {
		return m.Buy.Timestamp
	}
	return m.Sell.Timestamp
}

// HoldTime is the duration between the opening and closing sides.
func (m ClosedMatch) HoldTime() time.Duration {
	d := m.Sell.Timestamp.Sub(m.Buy.Timestamp)
	if d < 0 {
		d = -d
	}
	return d
}

// Match pairs one BUY against one SELL aggregate for the same
// instrument. It closes min(buy, sell) units and returns the residual
// aggregates, zero or one per side, for any unmatched remainder.
//
// The chronologically earlier side is the opening one; when the opening
// side is SELL the position was opened short, so the raw price delta is
// inverted. Option profits are scaled by the 100-share contract
// multiplier.
func Match(buy, sell Aggregate) (ClosedMatch, []Aggregate) {
	matchedQty := decimal.Min(buy.Quantity, sell.Quantity)

	matchedBuy := buy.Partial(matchedQty)
	matchedSell := sell.Partial(matchedQty)

	// The earlier side opened the trade. A synthetic position side
	// carries the closing side's timestamp, so on a tie it wins: the
	// held position necessarily predates the batch. Ties between two
	// fill-backed sides open with the sell.
	opening, closing := matchedBuy, matchedSell
	switch {
	case matchedBuy.Timestamp.Before(matchedSell.Timestamp):
	case matchedSell.Timestamp.Before(matchedBuy.Timestamp):
		opening, closing = matchedSell, matchedBuy
	case matchedBuy.Origin == FromPosition:
	default:
		opening, closing = matchedSell, matchedBuy
	}

	priceDelta := closing.WeightedPrice.Sub(opening.WeightedPrice)
	multiplier := buy.Instrument.Multiplier()
	amount := priceDelta.Mul(matchedQty).Mul(multiplier)

	percent := decimal.Zero
	percentValid := !opening.WeightedPrice.IsZero()
	if percentValid {
		percent = priceDelta.Div(opening.WeightedPrice).Mul(hundred)
	}

	if opening.Side == types.SideSell {
		amount = amount.Neg()
		percent = percent.Neg()
	}

	match := ClosedMatch{
		Buy:           matchedBuy,
		Sell:          matchedSell,
		ProfitAmount:  amount,
		ProfitPercent: percent,
		PercentValid:  percentValid,
	}

	var residuals []Aggregate
	if buy.Quantity.GreaterThan(matchedQty) {
		residuals = append(residuals, buy.Partial(buy.Quantity.Sub(matchedQty)))
	}
	if sell.Quantity.GreaterThan(matchedQty) {
		residuals = append(residuals, sell.Partial(sell.Quantity.Sub(matchedQty)))
	}
	return match, residuals
}
