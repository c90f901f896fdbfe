package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const watchRefreshInterval = time.Minute

// Watchlist message types.
type watchlistMsg struct {
	quotes []Quote
	err    error
}
type watchTickMsg time.Time

// WatchlistModel shows the daily change of the configured symbols.
type WatchlistModel struct {
	services Services
	quotes   []Quote
	loading  bool
	err      error
	width    int
	height   int
}

// NewWatchlistModel creates a new watchlist model.
func NewWatchlistModel(svc Services) WatchlistModel {
	return WatchlistModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the first quote fetch and starts the refresh timer.
func (m WatchlistModel) Init() tea.Cmd {
	return tea.Batch(m.fetchQuotesCmd(), m.tickCmd())
}

// Update handles incoming messages.
func (m WatchlistModel) Update(msg tea.Msg) (WatchlistModel, tea.Cmd) {
	switch msg := msg.(type) {
	case watchlistMsg:
		if len(msg.quotes) > 0 || m.quotes == nil {
			m.quotes = msg.quotes
		}
		m.err = msg.err
		m.loading = false
		return m, nil

	case watchTickMsg:
		return m, tea.Batch(m.fetchQuotesCmd(), m.tickCmd())

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Refresh) {
			m.loading = true
			return m, m.fetchQuotesCmd()
		}
	}
	return m, nil
}

// View renders the heat map and quote table.
func (m WatchlistModel) View() string {
	if len(m.services.Watchlist) == 0 {
		return SubtextStyle.Render("  Watchlist is empty. Set WARM_SYMBOLS to populate it.")
	}
	if m.loading && len(m.quotes) == 0 {
		return SubtextStyle.Render("  Loading quotes...")
	}
	if m.err != nil && len(m.quotes) == 0 {
		return ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err))
	}

	tableWidth := max(50, m.width*2/3-2)
	heatWidth := max(20, m.width-tableWidth-4)

	lines := []string{
		HeaderStyle.Render("  Watchlist"),
		SubtextStyle.Render(fmt.Sprintf("  %-10s %12s  %-8s %s", "Symbol", "Close", "Change", "Volume")),
		SubtextStyle.Render(strings.Repeat("─", tableWidth-2)),
	}
	for _, q := range m.quotes {
		lines = append(lines, "  "+FormatQuote(q))
	}
	if m.err != nil {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  %v", m.err)))
	}

	table := BorderStyle.Width(tableWidth).Render(strings.Join(lines, "\n"))
	heat := BorderStyle.Width(heatWidth).Render(
		HeaderStyle.Render("  Heat Map") + "\n" + RenderHeatMap(m.quotes, heatWidth),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, table, heat)
}

// SetSize updates the model dimensions.
func (m *WatchlistModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Quotes returns the loaded quotes (for testing).
func (m WatchlistModel) Quotes() []Quote { return m.quotes }

func (m WatchlistModel) fetchQuotesCmd() tea.Cmd {
	symbols := m.services.Watchlist
	history := m.services.History
	return func() tea.Msg {
		if len(symbols) == 0 {
			return watchlistMsg{}
		}
		if history == nil {
			return watchlistMsg{err: fmt.Errorf("history service not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		var (
			quotes []Quote
			errs   []error
		)
		for _, entry := range symbols {
			bars, err := history.History(ctx, entry.Mode, entry.Symbol, domain.DefaultInterval, 2)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", entry, err))
				continue
			}
			if q, ok := QuoteFromBars(entry.Symbol, bars); ok {
				quotes = append(quotes, q)
			}
		}
		return watchlistMsg{quotes: quotes, err: errors.Join(errs...)}
	}
}

func (m WatchlistModel) tickCmd() tea.Cmd {
	return tea.Tick(watchRefreshInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}
