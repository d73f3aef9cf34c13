// Package render prints a reconciliation diagnosis to the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/reckon/internal/entity"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	alert     = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF6B6B"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Width(24)

	warnStyle = lipgloss.NewStyle().
			Foreground(alert).
			Bold(true).
			Border(lipgloss.NormalBorder()).
			BorderForeground(alert).
			Padding(0, 1)

	totalStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)
)

// Report formats the diagnosis for a human operator.
func Report(d entity.Diagnosis) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Equity reconciliation · %s · %s",
		d.Venue, d.TakenAt.Format("2006-01-02 15:04:05 MST"))))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Account subtotals"))
	b.WriteString("\n")
	writeRow(&b, "spot", money(d.SpotSubtotal))
	writeRow(&b, "derivatives", money(d.DerivativesSubtotal))
	fundingLabel := "funding"
	if d.FundingSource != "" {
		fundingLabel = fmt.Sprintf("funding (%s)", d.FundingSource)
	}
	writeRow(&b, fundingLabel, money(d.FundingSubtotal))
	for _, m := range d.Missing {
		writeRow(&b, string(m), "unavailable, counted as zero")
	}
	b.WriteString("\n")

	if d.Verdict.PoolsAreShared {
		b.WriteString(warnStyle.Render("SHARED POOL DETECTED\n" + d.Verdict.Rationale))
	} else {
		b.WriteString(sectionStyle.Render("Pool verdict"))
		b.WriteString("\n" + d.Verdict.Rationale)
	}
	b.WriteString("\n\n")

	if len(d.OpenPositions) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Open positions (%d)", len(d.OpenPositions))))
		b.WriteString("\n")
		for _, p := range d.OpenPositions {
			writeRow(&b, p.Symbol, fmt.Sprintf("%s %s @ %s, uPnL %s",
				p.Side, p.Size.String(), p.EntryPrice.String(), money(p.UnrealizedPnl)))
		}
		writeRow(&b, "total notional", money(d.TotalNotional))
		writeRow(&b, "total unrealized PnL", money(d.TotalUnrealizedPnl))
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render("Recent activity"))
	b.WriteString("\n")
	writeRow(&b, "fills", fmt.Sprintf("%d", d.FillCount))
	writeRow(&b, "volume", money(d.TotalVolume))
	writeRow(&b, "fees", money(d.TotalFees))
	b.WriteString("\n")

	if len(d.UnpricedSpotAssets) > 0 {
		b.WriteString(sectionStyle.Render("Counted but unpriced"))
		b.WriteString("\n")
		writeRow(&b, "spot assets", strings.Join(d.UnpricedSpotAssets, ", "))
		b.WriteString("\n")
	}

	if len(d.Capabilities) > 0 {
		caps := make([]string, 0, len(d.Capabilities))
		for _, c := range d.Capabilities {
			caps = append(caps, string(c))
		}
		b.WriteString(sectionStyle.Render("Venue markets"))
		b.WriteString("\n")
		writeRow(&b, "capabilities", strings.Join(caps, ", "))
		b.WriteString("\n")
	}

	b.WriteString(totalStyle.Render(fmt.Sprintf("TOTAL EQUITY  %s", money(d.TotalEquity))))
	b.WriteString("\n")

	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
