package tui

import "github.com/charmbracelet/lipgloss"

// Palette mirrors the web dashboard: emerald for gains and BUY, red for
// losses and SELL, amber for HOLD, violet for the projection.
const (
	colorText    = lipgloss.Color("#F4F4F5")
	colorMuted   = lipgloss.Color("#8B8B94")
	colorFrame   = lipgloss.Color("#3F3F46")
	colorAccent  = lipgloss.Color("#6D28D9")
	colorGain    = lipgloss.Color("#10B981")
	colorGainDim = lipgloss.Color("#065F46")
	colorLoss    = lipgloss.Color("#EF4444")
	colorLossDim = lipgloss.Color("#7F1D1D")
	colorHold    = lipgloss.Color("#F59E0B")
	colorProject = lipgloss.Color("#A855F7")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	TabStyle         = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle   = TabStyle.Bold(true).Foreground(colorText).Background(colorAccent)
	InactiveTabStyle = TabStyle.Foreground(colorMuted)

	PriceUpStyle   = fg(colorGain)
	PriceDownStyle = fg(colorLoss)
	PriceZeroStyle = fg(colorMuted)

	SignalBuyStyle  = fg(colorGain).Bold(true)
	SignalSellStyle = fg(colorLoss).Bold(true)
	SignalHoldStyle = fg(colorHold)

	// RSI above 70 reads as a warning, below 30 as an opportunity.
	RSIOverboughtStyle = fg(colorLoss)
	RSIOversoldStyle   = fg(colorGain)
	RSINeutralStyle    = fg(colorText)

	HeaderStyle     = fg(colorText).Bold(true)
	SubtextStyle    = fg(colorMuted)
	ErrorStyle      = fg(colorLoss)
	ProjectionStyle = fg(colorProject)
	BorderStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFrame)
	CardStyle       = BorderStyle.Padding(0, 1)
	SpinnerColor    = colorAccent
)

// heatColor grades a daily change into a background shade.
func heatColor(changePct float64) lipgloss.Color {
	switch {
	case changePct >= 3:
		return colorGain
	case changePct >= 0.5:
		return colorGainDim
	case changePct <= -3:
		return colorLoss
	case changePct <= -0.5:
		return colorLossDim
	}
	return colorFrame
}
