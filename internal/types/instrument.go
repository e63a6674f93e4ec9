package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AssetKind string

const (
	AssetStock  AssetKind = "stock"
	AssetOption AssetKind = "option"
)

type OptionKind string

const (
	OptionCall OptionKind = "call"
	OptionPut  OptionKind = "put"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

var ErrMissingOptionDetails = errors.New("option instrument requires strike, expiry and option kind")

// OptionDetails carries the contract terms of an option instrument.
// Expiry is a calendar date; the time-of-day component is always zero.
type OptionDetails struct {
	Strike decimal.Decimal
	Expiry time.Time
	Kind   OptionKind
}

// Instrument identifies what was traded. Two instruments are the same
// entity iff every field matches; Key() is the canonical form of that
// identity and is the grouping key used by the reconciliation pipeline.
type Instrument struct {
	Symbol   string
	Kind     AssetKind
	Currency string
	Option   *OptionDetails
}

// Stock builds a stock instrument.
func Stock(symbol, currency string) Instrument {
	return Instrument{Symbol: symbol, Kind: AssetStock, Currency: currency}
}

// Option builds an option instrument. Expiry must be non-zero.
func Option(symbol string, strike decimal.Decimal, expiry time.Time, kind OptionKind, currency string) (Instrument, error) {
	if expiry.IsZero() {
		return Instrument{}, ErrMissingOptionDetails
	}
	return Instrument{
		Symbol:   symbol,
		Kind:     AssetOption,
		Currency: currency,
		Option: &OptionDetails{
			Strike: strike,
			Expiry: expiry,
			Kind:   kind,
		},
	}, nil
}

func (i Instrument) IsOption() bool {
	return i.Kind == AssetOption && i.Option != nil
}

// Multiplier returns the contract multiplier applied to profit amounts:
// 100 for option contracts, 1 for everything else.
func (i Instrument) Multiplier() decimal.Decimal {
	if i.IsOption() {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

// Key renders the instrument identity as a string. It includes every
// identity field, so two instruments share a key iff they are the same
// entity.
func (i Instrument) Key() string {
	switch {
	case i.Kind == AssetStock:
		return fmt.Sprintf("stock_%s_%s", i.Symbol, i.Currency)
	case i.IsOption():
		return fmt.Sprintf("option_%s_%s_%s_%s_%s",
			i.Symbol,
			i.Currency,
			i.Option.Strike.String(),
			i.Option.Expiry.Format("2006-01-02"),
			i.Option.Kind,
		)
	default:
		return fmt.Sprintf("other_%s_%s", i.Symbol, i.Currency)
	}
}

func (i Instrument) String() string {
	if i.IsOption() {
		kind := "Call"
		if i.Option.Kind == OptionPut {
			kind = "Put"
		}
		return fmt.Sprintf("%s %s %s %s",
			i.Symbol,
			i.Option.Expiry.Format("02-Jan-2006"),
			i.Option.Strike.StringFixed(2),
			kind,
		)
	}
	return i.Symbol
}
