package tui

import (
	"context"
	"fmt"
	"strings"

	"sentinel/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// History message types.
type historyMsg struct {
	mode     domain.AssetMode
	symbol   string
	interval string
	bars     []domain.PriceBar
}
type historyErrMsg struct {
	mode     domain.AssetMode
	symbol   string
	interval string
	err      error
}

const historyLimit = 200

// HistoryModel is the Bubble Tea model for the bar history screen. Rows are
// listed newest first.
type HistoryModel struct {
	services     Services
	mode         domain.AssetMode
	symbol       string
	intervalIdx  int
	bars         []domain.PriceBar
	scrollOffset int
	loading      bool
	err          error
	width        int
	height       int
}

// NewHistoryModel creates a history screen on the default crypto symbol.
func NewHistoryModel(svc Services) HistoryModel {
	return HistoryModel{
		services:    svc,
		mode:        domain.ModeCrypto,
		symbol:      domain.DefaultSymbol(domain.ModeCrypto),
		intervalIdx: intervalIndex(domain.DefaultInterval),
		loading:     true,
	}
}

func intervalIndex(interval string) int {
	for i, iv := range domain.SupportedIntervals {
		if iv == interval {
			return i
		}
	}
	return 0
}

// Init fires the initial history fetch.
func (m HistoryModel) Init() tea.Cmd {
	return m.fetchHistoryCmd()
}

// Update handles incoming messages.
func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case assetChangedMsg:
		m.mode = msg.mode
		m.symbol = msg.symbol
		if m.mode == domain.ModeStock {
			m.intervalIdx = intervalIndex(domain.DefaultInterval)
		}
		m.bars = nil
		m.loading = true
		m.err = nil
		return m, m.fetchHistoryCmd()

	case historyMsg:
		if msg.mode != m.mode || msg.symbol != m.symbol || msg.interval != m.Interval() {
			return m, nil
		}
		m.bars = msg.bars
		m.loading = false
		m.scrollOffset = 0
		m.err = nil
		return m, nil

	case historyErrMsg:
		if msg.mode != m.mode || msg.symbol != m.symbol || msg.interval != m.Interval() {
			return m, nil
		}
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.CycleInterval):
			// Stock history is daily only.
			if m.mode == domain.ModeStock {
				return m, nil
			}
			m.intervalIdx = (m.intervalIdx + 1) % len(domain.SupportedIntervals)
			m.loading = true
			return m, m.fetchHistoryCmd()

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchHistoryCmd()

		case key.Matches(msg, DefaultKeyMap.ScrollDown):
			if m.scrollOffset < len(m.bars)-m.visibleRows() {
				m.scrollOffset++
			}
			return m, nil

		case key.Matches(msg, DefaultKeyMap.ScrollUp):
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the history table.
func (m HistoryModel) View() string {
	var sections []string

	sections = append(sections, HeaderStyle.Render(fmt.Sprintf("  History %s [%s]", m.symbol, m.mode)))
	sections = append(sections, "")
	sections = append(sections, "  "+m.renderIntervals())
	sections = append(sections, SubtextStyle.Render(strings.Repeat("─", max(10, m.width-2))))

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.bars) == 0 {
		sections = append(sections, SubtextStyle.Render("  No bars for this symbol"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  %-16s %12s %12s %12s %12s  %s", "Time", "Open", "High", "Low", "Close", "Volume"),
	))

	maxVisible := m.visibleRows()
	end := min(len(m.bars), m.scrollOffset+maxVisible)
	for i := m.scrollOffset; i < end; i++ {
		bar := m.bars[len(m.bars)-1-i]
		sections = append(sections, "  "+FormatBar(bar, m.Interval()))
	}

	if len(m.bars) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(m.bars)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, helpLine(DefaultKeyMap.CycleInterval, DefaultKeyMap.Refresh, DefaultKeyMap.ScrollDown, DefaultKeyMap.ScrollUp))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *HistoryModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Interval returns the selected bar interval.
func (m HistoryModel) Interval() string {
	return domain.SupportedIntervals[m.intervalIdx]
}

// BarCount returns the number of loaded bars (for testing).
func (m HistoryModel) BarCount() int { return len(m.bars) }

func (m HistoryModel) renderIntervals() string {
	parts := []string{SubtextStyle.Render("Interval: ")}
	for i, iv := range domain.SupportedIntervals {
		switch {
		case i == m.intervalIdx:
			parts = append(parts, ActiveTabStyle.Render(iv))
		case m.mode == domain.ModeStock:
			continue
		default:
			parts = append(parts, SubtextStyle.Render(iv))
		}
		parts = append(parts, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m HistoryModel) fetchHistoryCmd() tea.Cmd {
	mode, symbol, interval := m.mode, m.symbol, m.Interval()
	history := m.services.History
	return func() tea.Msg {
		if history == nil {
			return historyErrMsg{mode: mode, symbol: symbol, interval: interval, err: fmt.Errorf("history service not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		bars, err := history.History(ctx, mode, symbol, interval, historyLimit)
		if err != nil {
			return historyErrMsg{mode: mode, symbol: symbol, interval: interval, err: err}
		}
		return historyMsg{mode: mode, symbol: symbol, interval: interval, bars: bars}
	}
}

func (m HistoryModel) visibleRows() int {
	// header, intervals, table header, footer
	available := m.height - 10
	if available < 5 {
		return 5
	}
	return available
}
