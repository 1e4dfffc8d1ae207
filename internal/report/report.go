// Package report renders backtest results and run history as styled
// terminal text.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"backtester/internal/domain"
)

// Summary is one backtest result with its identifying request fields.
type Summary struct {
	RunID          string
	Symbol         string
	Strategy       string
	InitialCapital float64
	Result         domain.BacktestResult
}

// styles is built per writer so colour support follows the destination.
type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	gain   lipgloss.Style
	loss   lipgloss.Style
	header lipgloss.Style
	dim    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:  r.NewStyle().Foreground(lipgloss.Color("245")).Width(24),
		value:  r.NewStyle().Foreground(lipgloss.Color("15")),
		gain:   r.NewStyle().Foreground(lipgloss.Color("10")),
		loss:   r.NewStyle().Foreground(lipgloss.Color("9")),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Render writes the metrics block and trade log for s.
func Render(w io.Writer, s Summary) error {
	st := newStyles(w)
	res := s.Result
	var b strings.Builder

	title := fmt.Sprintf("%s  %s", s.Symbol, strings.ToUpper(s.Strategy))
	if len(res.Dates) > 0 {
		title += fmt.Sprintf("  %s → %s", res.Dates[0], res.Dates[len(res.Dates)-1])
	}
	b.WriteString(st.title.Render(title) + "\n")
	if s.RunID != "" {
		b.WriteString(st.dim.Render("run "+s.RunID) + "\n")
	}
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(st.label.Render(label) + value + "\n")
	}
	row("Initial capital", st.value.Render(Money(s.InitialCapital)))
	row("Final value", st.value.Render(Money(res.FinalValue)))
	row("Total return", st.signed(res.TotalReturn, Percent(res.TotalReturn)))
	row("Annualized return", st.signed(res.AnnualizedReturn, Percent(res.AnnualizedReturn)))
	row("Annualized volatility", st.value.Render(Percent(res.AnnualizedVolatility)))
	row("Sharpe ratio", st.signed(res.SharpeRatio, Fixed(res.SharpeRatio, 2)))
	row("Max drawdown", st.signed(res.MaxDrawdown, Percent(res.MaxDrawdown)))
	row("Trading days", st.value.Render(fmt.Sprint(len(res.Dates))))
	b.WriteString("\n")

	if len(res.Trades) == 0 {
		b.WriteString(st.dim.Render("no trades") + "\n")
	} else {
		b.WriteString(st.header.Render(fmt.Sprintf("%-12s %-5s %14s", "DATE", "SIDE", "PRICE")) + "\n")
		for _, t := range res.Trades {
			side := st.gain
			if t.Side == domain.SideSell {
				side = st.loss
			}
			b.WriteString(fmt.Sprintf("%-12s %s %14s\n",
				t.Date, side.Render(fmt.Sprintf("%-5s", t.Side)), Fixed(t.Price, 2)))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRuns writes a table of stored runs, newest first.
func RenderRuns(w io.Writer, runs []domain.Run) error {
	st := newStyles(w)
	var b strings.Builder

	if len(runs) == 0 {
		b.WriteString(st.dim.Render("no runs recorded") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(st.header.Render(fmt.Sprintf("%-36s  %-6s %-4s %-23s %16s %9s %7s %6s",
		"ID", "SYMBOL", "TYPE", "RANGE", "FINAL", "RETURN", "SHARPE", "TRADES")) + "\n")
	for _, r := range runs {
		ret := st.signed(r.TotalReturn, fmt.Sprintf("%9s", Percent(r.TotalReturn)))
		b.WriteString(fmt.Sprintf("%-36s  %-6s %-4s %-23s %16s %s %7s %6d\n",
			r.ID, r.Symbol, r.Strategy, r.StartDate+".."+r.EndDate,
			Money(r.FinalValue), ret, Fixed(r.SharpeRatio, 2), r.TradeCount))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (st styles) signed(v float64, text string) string {
	switch {
	case v > 0:
		return st.gain.Render(text)
	case v < 0:
		return st.loss.Render(text)
	default:
		return st.value.Render(text)
	}
}

// ---------------------------------------------------------------------------
// Number formatting
// ---------------------------------------------------------------------------

// Money formats v as dollars rounded half away from zero to cents, with
// thousands separators.
func Money(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	out := "$" + groupThousands(whole) + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Percent formats a fraction as a percentage with two decimals.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

// Fixed formats v with the given number of decimals.
func Fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
