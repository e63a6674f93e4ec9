package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a holding as last reported by a source. Quantity is
// signed: positive means long, negative means short.
type Position struct {
	Instrument  Instrument
	Quantity    decimal.Decimal
	CostBasis   decimal.Decimal
	MarketPrice decimal.Decimal
	ReportTime  time.Time
}

func (p Position) IsShort() bool {
	return p.Quantity.IsNegative()
}

func (p Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.MarketPrice)
}

func (p Position) CostBasisValue() decimal.Decimal {
	return p.Quantity.Mul(p.CostBasis)
}

func (p Position) UnrealizedPNL() decimal.Decimal {
	return p.MarketValue().Sub(p.CostBasisValue())
}

// UnrealizedPNLPercent returns the unrealized P&L relative to the cost
// basis value. A zero cost basis yields zero rather than a division fault.
func (p Position) UnrealizedPNLPercent() decimal.Decimal {
	base := p.CostBasisValue()
	if base.IsZero() {
		return decimal.Zero
	}
	return p.UnrealizedPNL().Div(base.Abs()).Mul(decimal.NewFromInt(100))
}

// Description renders a short human-readable summary of the holding.
func (p Position) Description() string {
	if !p.Instrument.IsOption() {
		return fmt.Sprintf("%s %s", p.Quantity.String(), p.Instrument.Symbol)
	}
	direction := "long"
	if p.IsShort() {
		direction = "short"
	}
	opt := p.Instrument.Option
	return fmt.Sprintf("%s %s %s %s %s %s",
		p.Quantity.Abs().String(),
		direction,
		p.Instrument.Symbol,
		opt.Kind,
		opt.Strike.StringFixed(2),
		opt.Expiry.Format("2006-01-02"),
	)
}
