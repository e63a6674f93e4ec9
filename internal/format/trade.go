// Package format renders reconciliation results and portfolio
// snapshots into human-readable narrative messages.
package format

import (
	"fmt"
	"strings"
	"time"

	"tradecast/internal/recon"
	"tradecast/internal/types"
)

const headerTimeLayout = "02 Jan 2006 15:04"

// TradeFormatter renders reconciliation results into message lines.
type TradeFormatter struct{}

func NewTradeFormatter() *TradeFormatter {
	return &TradeFormatter{}
}

// FormatBatch renders one window of results into a single message:
// a dated header followed by one line per result.
func (f *TradeFormatter) FormatBatch(results []recon.Result) (types.Message, bool) {
	if len(results) == 0 {
		return types.Message{}, false
	}

	latest := results[0].Timestamp()
	for _, res := range results[1:] {
		if res.Timestamp().After(latest) {
			latest = res.Timestamp()
		}
	}

	lines := []string{
		fmt.Sprintf("Trades on %s", strings.ToUpper(latest.Format(headerTimeLayout))),
		"",
	}
	for _, res := range results {
		lines = append(lines, f.FormatResult(res))
	}

	msg := types.NewMessage(strings.Join(lines, "\n"), latest, map[string]any{
		"type": types.MessageTypeTrade,
	})
	return msg, true
}

// FormatResult renders a single result line.
func (f *TradeFormatter) FormatResult(res recon.Result) string {
	if res.Kind == recon.ResultClosed {
		return f.formatClosed(*res.Closed)
	}
	return f.formatOpen(*res.Open)
}

// formatOpen renders an open or unmatched aggregate, e.g.
// "🚨 BUY  $AAPL 100@$150.25".
func (f *TradeFormatter) formatOpen(agg recon.Aggregate) string {
	return fmt.Sprintf("🚨 %-4s $%s %s@%s%s",
		agg.Side,
		instrumentLabel(agg.Instrument),
		agg.Quantity.String(),
		currencySymbol(agg.Currency),
		agg.WeightedPrice.StringFixed(2),
	)
}

// formatClosed renders a closed match with its P&L, e.g.
// "📊 $AAPL P&L: +6.65% ($600.00), held 2 hours 30 minutes".
func (f *TradeFormatter) formatClosed(match recon.ClosedMatch) string {
	symbol := currencySymbol(match.Buy.Currency)
	amount := fmt.Sprintf("%s%s", symbol, match.ProfitAmount.StringFixed(2))

	pnl := amount
	if match.PercentValid {
		sign := ""
		if !match.ProfitPercent.IsNegative() {
			sign = "+"
		}
		pnl = fmt.Sprintf("%s%s%% (%s)", sign, match.ProfitPercent.StringFixed(2), amount)
	}

	return fmt.Sprintf("📊 $%s P&L: %s, held %s",
		instrumentLabel(match.Buy.Instrument),
		pnl,
		formatHoldTime(match.HoldTime()),
	)
}

// instrumentLabel renders the compact instrument form used in message
// lines: "AAPL" for stock, "AAPL 15JUN24 $150C" for options.
func instrumentLabel(instrument types.Instrument) string {
	if !instrument.IsOption() {
		return instrument.Symbol
	}
	opt := instrument.Option
	kind := "C"
	if opt.Kind == types.OptionPut {
		kind = "P"
	}
	return fmt.Sprintf("%s %s %s%s%s",
		instrument.Symbol,
		strings.ToUpper(opt.Expiry.Format("02Jan06")),
		currencySymbol(instrument.Currency),
		opt.Strike.String(),
		kind,
	)
}

func currencySymbol(currency string) string {
	switch currency {
	case "EUR":
		return "€"
	case "JPY":
		return "¥"
	default:
		return "$"
	}
}

// formatHoldTime renders a duration the way a person would say it:
// days, then hours and minutes, then minutes alone.
func formatHoldTime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		if minutes > 0 {
			return plural(hours, "hour") + " " + plural(minutes, "minute")
		}
		return plural(hours, "hour")
	default:
		return plural(minutes, "minute")
	}
}
