package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	dashRefreshInterval = time.Minute
	fetchTimeout        = 20 * time.Second
)

// Dashboard message types.
type analysisMsg struct {
	mode     domain.AssetMode
	symbol   string
	analysis *domain.Analysis
}
type analysisErrMsg struct {
	mode   domain.AssetMode
	symbol string
	err    error
}
type dashTickMsg time.Time

// assetChangedMsg tells the other screens the dashboard switched symbol or mode.
type assetChangedMsg struct {
	mode   domain.AssetMode
	symbol string
}

// DashboardModel is the Bubble Tea model for the single-symbol dashboard.
type DashboardModel struct {
	services Services
	mode     domain.AssetMode
	symbol   string
	input    textinput.Model
	spinner  spinner.Model
	analysis *domain.Analysis
	loading  bool
	err      error
	width    int
	height   int
}

// NewDashboardModel creates a dashboard on the default crypto symbol.
func NewDashboardModel(svc Services) DashboardModel {
	ti := textinput.New()
	ti.Placeholder = "BTCUSDT"
	ti.CharLimit = 20
	ti.Width = 20

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	return DashboardModel{
		services: svc,
		mode:     domain.ModeCrypto,
		symbol:   domain.DefaultSymbol(domain.ModeCrypto),
		input:    ti,
		spinner:  sp,
		loading:  true,
	}
}

// Init fires the initial prediction and starts the refresh timer.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchAnalysisCmd(),
		m.spinner.Tick,
		m.tickCmd(),
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case analysisMsg:
		if msg.mode != m.mode || msg.symbol != m.symbol {
			return m, nil
		}
		m.analysis = msg.analysis
		m.loading = false
		m.err = nil
		return m, nil

	case analysisErrMsg:
		if msg.mode != m.mode || msg.symbol != m.symbol {
			return m, nil
		}
		m.err = msg.err
		m.loading = false
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case dashTickMsg:
		if m.loading {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.fetchAnalysisCmd(), m.tickCmd())

	case tea.KeyMsg:
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		switch {
		case key.Matches(msg, DefaultKeyMap.EditSymbol):
			m.input.SetValue("")
			m.input.Placeholder = domain.DefaultSymbol(m.mode)
			m.input.Focus()
			return m, textinput.Blink

		case key.Matches(msg, DefaultKeyMap.ToggleMode):
			mode := domain.ModeStock
			if m.mode == domain.ModeStock {
				mode = domain.ModeCrypto
			}
			return m.load(mode, domain.DefaultSymbol(mode))

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, tea.Batch(m.fetchAnalysisCmd(), m.spinner.Tick)
		}
		return m, nil
	}

	// cursor blink
	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m DashboardModel) updateInput(msg tea.KeyMsg) (DashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Submit):
		symbol, ok := domain.NormalizeSymbol(m.input.Value())
		if !ok {
			m.err = fmt.Errorf("invalid symbol %q", strings.TrimSpace(m.input.Value()))
			return m, nil
		}
		m.input.Blur()
		return m.load(m.mode, symbol)

	case key.Matches(msg, DefaultKeyMap.Cancel):
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m DashboardModel) load(mode domain.AssetMode, symbol string) (DashboardModel, tea.Cmd) {
	m.mode = mode
	m.symbol = symbol
	m.analysis = nil
	m.err = nil
	m.loading = true
	changed := assetChangedMsg{mode: mode, symbol: symbol}
	return m, tea.Batch(
		m.fetchAnalysisCmd(),
		m.spinner.Tick,
		func() tea.Msg { return changed },
	)
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	sections := []string{m.renderHeader()}

	switch {
	case m.analysis == nil && m.err != nil:
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case m.analysis == nil:
		sections = append(sections, fmt.Sprintf("  %s Loading %s...", m.spinner.View(), m.symbol))
	default:
		sections = append(sections, m.renderAnalysis())
		if m.err != nil {
			sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Refresh failed: %v", m.err)))
		}
	}

	sections = append(sections, "", helpLine(DefaultKeyMap.EditSymbol, DefaultKeyMap.ToggleMode, DefaultKeyMap.Refresh, DefaultKeyMap.Tab, DefaultKeyMap.Quit))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Editing reports whether the symbol input has focus.
func (m DashboardModel) Editing() bool { return m.input.Focused() }

// Asset returns the active mode and symbol.
func (m DashboardModel) Asset() (domain.AssetMode, string) { return m.mode, m.symbol }

// Analysis returns the last loaded analysis (for testing).
func (m DashboardModel) Analysis() *domain.Analysis { return m.analysis }

func (m DashboardModel) renderHeader() string {
	title := HeaderStyle.Render(fmt.Sprintf("  %s", m.symbol))
	mode := SubtextStyle.Render(fmt.Sprintf(" [%s]", m.mode))
	if m.input.Focused() {
		return title + mode + "   " + m.input.View()
	}
	if m.loading && m.analysis != nil {
		return title + mode + "  " + m.spinner.View()
	}
	return title + mode
}

func (m DashboardModel) renderAnalysis() string {
	a := m.analysis
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		CardStyle.Width(22).Render(RenderPriceCard(a)),
		CardStyle.Width(16).Render(RenderRSICard(a.Prediction)),
		CardStyle.Width(18).Render(RenderSignalCard(a.Prediction)),
	)

	chartWidth := max(30, m.width-6)
	chart := BorderStyle.Width(chartWidth).Render(
		SubtextStyle.Render("Closes + projection") + "\n" +
			RenderSparklineWithProjection(a.History, a.Prediction.PredictedData, chartWidth-2),
	)
	panel := BorderStyle.Width(chartWidth).Render(RenderPredictionPanel(a))

	return lipgloss.JoinVertical(lipgloss.Left, cards, chart, panel)
}

func (m DashboardModel) fetchAnalysisCmd() tea.Cmd {
	mode, symbol := m.mode, m.symbol
	predictor := m.services.Predictor
	return func() tea.Msg {
		if predictor == nil {
			return analysisErrMsg{mode: mode, symbol: symbol, err: fmt.Errorf("prediction service not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		analysis, err := predictor.Predict(ctx, mode, symbol)
		if err != nil {
			return analysisErrMsg{mode: mode, symbol: symbol, err: err}
		}
		return analysisMsg{mode: mode, symbol: symbol, analysis: analysis}
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(dashRefreshInterval, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
