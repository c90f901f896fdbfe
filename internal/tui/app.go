package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab identifies one of the app screens.
type Tab int

const (
	TabDashboard Tab = iota
	TabHistory
	TabWatchlist
)

var tabNames = []string{"1:Dashboard", "2:History", "3:Watchlist"}

// tabBarHeight is the rows taken by the tab bar and its spacing.
const tabBarHeight = 2

// AppModel switches between the dashboard, history and watchlist screens.
// Fetch results are delivered to the screen that asked for them whatever tab
// is active; keys only reach the active screen.
type AppModel struct {
	services  Services
	activeTab Tab
	dashboard DashboardModel
	history   HistoryModel
	watchlist WatchlistModel
	width     int
	height    int
	quitting  bool
}

func NewAppModel(svc Services) AppModel {
	return AppModel{
		services:  svc,
		activeTab: TabDashboard,
		dashboard: NewDashboardModel(svc),
		history:   NewHistoryModel(svc),
		watchlist: NewWatchlistModel(svc),
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.dashboard.Init(), m.history.Init(), m.watchlist.Init())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if handled, cmd := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	owner, ok := screenFor(msg)
	if !ok {
		owner = m.activeTab
	}
	return m, m.updateScreen(owner, msg)
}

// handleGlobalKey processes quit and tab navigation. While the symbol input
// has focus only ctrl+c is global.
func (m *AppModel) handleGlobalKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if m.activeTab == TabDashboard && m.dashboard.Editing() {
		if msg.String() != "ctrl+c" {
			return false, nil
		}
		m.quitting = true
		return true, tea.Quit
	}

	switch {
	case key.Matches(msg, DefaultKeyMap.Quit):
		m.quitting = true
		return true, tea.Quit
	case key.Matches(msg, DefaultKeyMap.Tab):
		m.activeTab = m.shiftTab(1)
		return true, nil
	case key.Matches(msg, DefaultKeyMap.ShiftTab):
		m.activeTab = m.shiftTab(-1)
		return true, nil
	}

	for i, name := range tabNames {
		if msg.String() == name[:1] {
			m.activeTab = Tab(i)
			return true, nil
		}
	}
	return false, nil
}

func (m AppModel) shiftTab(delta int) Tab {
	n := len(tabNames)
	return Tab(((int(m.activeTab)+delta)%n + n) % n)
}

// screenFor reports which screen owns an asynchronous message.
func screenFor(msg tea.Msg) (Tab, bool) {
	switch msg.(type) {
	case analysisMsg, analysisErrMsg, dashTickMsg, spinner.TickMsg:
		return TabDashboard, true
	case assetChangedMsg, historyMsg, historyErrMsg:
		return TabHistory, true
	case watchlistMsg, watchTickMsg:
		return TabWatchlist, true
	}
	return 0, false
}

func (m *AppModel) updateScreen(tab Tab, msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch tab {
	case TabDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case TabHistory:
		m.history, cmd = m.history.Update(msg)
	case TabWatchlist:
		m.watchlist, cmd = m.watchlist.Update(msg)
	}
	return cmd
}

func (m AppModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var content string
	switch m.activeTab {
	case TabDashboard:
		content = m.dashboard.View()
	case TabHistory:
		content = m.history.View()
	case TabWatchlist:
		content = m.watchlist.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabBar(), content)
}

func (m *AppModel) SetSize(w, h int) {
	m.width, m.height = w, h
	contentHeight := h - tabBarHeight
	m.dashboard.SetSize(w, contentHeight)
	m.history.SetSize(w, contentHeight)
	m.watchlist.SetSize(w, contentHeight)
}

// ActiveTab returns the currently active tab.
func (m AppModel) ActiveTab() Tab { return m.activeTab }

func (m AppModel) renderTabBar() string {
	tabs := make([]string, 0, len(tabNames)+1)
	for i, name := range tabNames {
		style := InactiveTabStyle
		if Tab(i) == m.activeTab {
			style = ActiveTabStyle
		}
		tabs = append(tabs, style.Render(name))
	}
	if m.services.Username != "" {
		tabs = append(tabs, SubtextStyle.Render("  "+m.services.Username))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
