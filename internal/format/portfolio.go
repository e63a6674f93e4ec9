package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tradecast/internal/types"
)

// PortfolioFormatter renders a portfolio snapshot into one message.
type PortfolioFormatter struct{}

func NewPortfolioFormatter() *PortfolioFormatter {
	return &PortfolioFormatter{}
}

// FormatPortfolio renders a dated header, the stock section sorted by
// market value, and the option section grouped by expiry.
func (f *PortfolioFormatter) FormatPortfolio(positions []types.Position, now time.Time) types.Message {
	var stocks, options []types.Position
	for _, pos := range positions {
		if pos.Instrument.IsOption() {
			options = append(options, pos)
		} else {
			stocks = append(stocks, pos)
		}
	}

	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].MarketValue().Abs().GreaterThan(stocks[j].MarketValue().Abs())
	})
	sort.SliceStable(options, func(i, j int) bool {
		ei, ej := options[i].Instrument.Option.Expiry, options[j].Instrument.Option.Expiry
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return options[i].Instrument.Option.Strike.LessThan(options[j].Instrument.Option.Strike)
	})

	sections := []string{
		fmt.Sprintf("Portfolio on %s", strings.ToUpper(now.Format(headerTimeLayout))),
	}

	if len(stocks) > 0 {
		lines := []string{"📈 Stock Positions:"}
		for _, pos := range stocks {
			lines = append(lines, fmt.Sprintf("$%s: %s@%s%s",
				pos.Instrument.Symbol,
				pos.Quantity.Abs().String(),
				currencySymbol(pos.Instrument.Currency),
				pos.MarketPrice.String(),
			))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(options) > 0 {
		lines := []string{"🎯 Option Positions:"}
		var currentExpiry time.Time
		for _, pos := range options {
			opt := pos.Instrument.Option
			if !opt.Expiry.Equal(currentExpiry) {
				if !currentExpiry.IsZero() {
					lines = append(lines, "")
				}
				currentExpiry = opt.Expiry
				lines = append(lines, strings.ToUpper(opt.Expiry.Format("02Jan2006"))+":")
			}
			kind := "C"
			if opt.Kind == types.OptionPut {
				kind = "P"
			}
			symbol := currencySymbol(pos.Instrument.Currency)
			lines = append(lines, fmt.Sprintf("$%s %s%s%s: %s@%s%s",
				pos.Instrument.Symbol,
				symbol,
				opt.Strike.String(),
				kind,
				pos.Quantity.Abs().String(),
				symbol,
				pos.MarketPrice.String(),
			))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return types.NewMessage(strings.Join(sections, "\n\n"), now, map[string]any{
		"type": types.MessageTypePortfolio,
	})
}
