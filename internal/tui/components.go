package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"sentinel/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Quote is a watchlist row derived from the two most recent daily bars.
type Quote struct {
	Symbol    string
	Last      float64
	ChangePct float64
	Volume    float64
}

// QuoteFromBars returns the last close and its change against the previous
// close. ok is false when bars is empty.
func QuoteFromBars(symbol string, bars []domain.PriceBar) (Quote, bool) {
	if len(bars) == 0 {
		return Quote{}, false
	}
	last := bars[len(bars)-1]
	q := Quote{Symbol: symbol, Last: last.Close, Volume: last.Volume}
	if len(bars) > 1 {
		if prev := bars[len(bars)-2].Close; prev != 0 {
			q.ChangePct = (last.Close - prev) / prev * 100
		}
	}
	return q, true
}

func changeStyle(pct float64) lipgloss.Style {
	switch {
	case pct > 0:
		return PriceUpStyle
	case pct < 0:
		return PriceDownStyle
	}
	return PriceZeroStyle
}

func formatChange(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return changeStyle(pct).Render(fmt.Sprintf("%s%.2f%%", sign, pct))
}

// FormatQuote renders a quote as a single line.
func FormatQuote(q Quote) string {
	return fmt.Sprintf("%-10s %12s  %s  Vol: %s",
		q.Symbol,
		formatUSD(q.Last),
		formatChange(q.ChangePct),
		formatVolume(q.Volume),
	)
}

// FormatBar renders a history row.
func FormatBar(b domain.PriceBar, interval string) string {
	layout := "2006-01-02 15:04"
	if interval == "1d" || interval == "1w" {
		layout = "2006-01-02"
	}
	return fmt.Sprintf("%-16s %12s %12s %12s %12s  %s",
		time.Unix(b.Time, 0).UTC().Format(layout),
		formatUSD(b.Open),
		formatUSD(b.High),
		formatUSD(b.Low),
		formatUSD(b.Close),
		formatVolume(b.Volume),
	)
}

// FormatSignal renders a trade signal in its color.
func FormatSignal(s domain.TradeSignal) string {
	switch s {
	case domain.SignalBuy:
		return SignalBuyStyle.Render(string(s))
	case domain.SignalSell:
		return SignalSellStyle.Render(string(s))
	}
	return SignalHoldStyle.Render(string(s))
}

// RSIZone labels an RSI reading with the engine thresholds.
func RSIZone(rsi int) string {
	switch {
	case rsi > 70:
		return "overbought"
	case rsi < 30:
		return "oversold"
	}
	return "neutral"
}

func renderRSI(rsi int) string {
	style := RSINeutralStyle
	switch RSIZone(rsi) {
	case "overbought":
		style = RSIOverboughtStyle
	case "oversold":
		style = RSIOversoldStyle
	}
	return style.Render(fmt.Sprintf("%d", rsi))
}

// RenderPriceCard shows the last price and its change over the previous bar.
func RenderPriceCard(a *domain.Analysis) string {
	q, _ := QuoteFromBars(a.Symbol, a.History)
	return lipgloss.JoinVertical(lipgloss.Left,
		SubtextStyle.Render("Price"),
		HeaderStyle.Render(formatUSD(a.LastPrice)),
		formatChange(q.ChangePct),
	)
}

// RenderRSICard shows RSI(14) with its zone.
func RenderRSICard(p *domain.PredictionResult) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		SubtextStyle.Render("RSI (14)"),
		renderRSI(p.RSIValue),
		SubtextStyle.Render(RSIZone(p.RSIValue)),
	)
}

// RenderSignalCard shows the signal and confidence.
func RenderSignalCard(p *domain.PredictionResult) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		SubtextStyle.Render("Signal"),
		FormatSignal(p.Signal),
		fmt.Sprintf("%d%% confidence", p.Confidence),
	)
}

// RenderPredictionPanel lists the engine context and projection target.
func RenderPredictionPanel(a *domain.Analysis) string {
	p := a.Prediction
	lines := []string{HeaderStyle.Render("Prediction")}
	if p.Trend4h != "" {
		lines = append(lines, fmt.Sprintf("4h trend: %s", p.Trend4h))
	}
	if p.VolumeAnalysis != "" {
		lines = append(lines, fmt.Sprintf("Volume:   %s", p.VolumeAnalysis))
	}
	if n := len(p.PredictedData); n > 0 && a.LastPrice != 0 {
		target := p.PredictedData[n-1].Value
		pct := (target - a.LastPrice) / a.LastPrice * 100
		lines = append(lines, fmt.Sprintf("%d-day target: %s %s", n, ProjectionStyle.Render(formatUSD(target)), formatChange(pct)))
	}
	for _, s := range p.Signals {
		lines = append(lines, SubtextStyle.Render("• "+s))
	}
	return strings.Join(lines, "\n")
}

// Sparkline maps values onto eight block levels. Only the last width values
// are drawn.
func Sparkline(values []float64, width int) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return sparkRange(values, lo, hi)
}

func sparkRange(values []float64, lo, hi float64) string {
	var b strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range values {
		level := top / 2
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		level = max(0, min(top, level))
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

// RenderSparklineWithProjection draws the closes followed by the projected
// points on a shared scale, the projection in its own color.
func RenderSparklineWithProjection(history []domain.PriceBar, projection []domain.ProjectedPoint, width int) string {
	if width <= len(projection) {
		width = len(projection) + 1
	}
	closes := make([]float64, 0, len(history))
	for _, bar := range history {
		closes = append(closes, bar.Close)
	}
	if keep := width - len(projection); len(closes) > keep {
		closes = closes[len(closes)-keep:]
	}
	projected := make([]float64, 0, len(projection))
	for _, p := range projection {
		projected = append(projected, p.Value)
	}
	all := append(append([]float64{}, closes...), projected...)
	if len(all) == 0 {
		return SubtextStyle.Render("No price data")
	}
	lo, hi := all[0], all[0]
	for _, v := range all {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return sparkRange(closes, lo, hi) + ProjectionStyle.Render(sparkRange(projected, lo, hi))
}

// RenderHeatMap lays the quotes out as a grid of cells shaded by daily change.
func RenderHeatMap(quotes []Quote, width int) string {
	if len(quotes) == 0 {
		return SubtextStyle.Render("No price data")
	}

	const cellWidth = 10
	perRow := max(1, width/cellWidth)
	cell := lipgloss.NewStyle().Foreground(colorText).Bold(true).Width(cellWidth - 1).Align(lipgloss.Center)

	rows := make([]string, 0, (len(quotes)+perRow-1)/perRow)
	for start := 0; start < len(quotes); start += perRow {
		end := min(start+perRow, len(quotes))
		cells := make([]string, 0, end-start)
		for _, q := range quotes[start:end] {
			cells = append(cells, cell.Background(heatColor(q.ChangePct)).Render(strings.TrimSuffix(q.Symbol, "USDT")))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(rows, "\n")
}

func formatUSD(v float64) string {
	if v >= 1000 {
		whole := fmt.Sprintf("%.2f", v)
		return "$" + addCommas(whole[:len(whole)-3]) + whole[len(whole)-3:]
	}
	if v >= 1 {
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("$%.4f", v)
}

func addCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}

func formatVolume(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.1fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
