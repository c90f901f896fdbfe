package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sentinel/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

// --- stub services ---

type stubPredictor struct {
	analysis *domain.Analysis
	err      error
}

func (s *stubPredictor) Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	a := *s.analysis
	a.Mode = mode
	a.Symbol = symbol
	return &a, nil
}

type stubHistory struct {
	bars map[string][]domain.PriceBar
	err  error

	mu    sync.Mutex
	calls []string
}

func (s *stubHistory) History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error) {
	s.mu.Lock()
	s.calls = append(s.calls, string(mode)+":"+symbol)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	bars, ok := s.bars[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func makeBars(n int, start float64) []domain.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		c := start + float64(i)
		bars[i] = domain.PriceBar{Time: base + int64(i)*86400, Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func testAnalysis() *domain.Analysis {
	history := makeBars(60, 100)
	return &domain.Analysis{
		Symbol:    "BTCUSDT",
		Mode:      domain.ModeCrypto,
		Interval:  "1d",
		LastPrice: history[len(history)-1].Close,
		History:   history,
		Prediction: &domain.PredictionResult{
			Signal:         domain.SignalBuy,
			Confidence:     80,
			RSIValue:       65,
			Trend4h:        domain.TrendUp,
			VolumeAnalysis: domain.VolumeNormal,
			PredictedData: []domain.ProjectedPoint{
				{Time: history[len(history)-1].Time + 86400, Value: 160},
				{Time: history[len(history)-1].Time + 2*86400, Value: 161},
			},
			Signals: []string{"4H Trend is BULLISH"},
		},
	}
}

func testServices() Services {
	return Services{
		Predictor: &stubPredictor{analysis: testAnalysis()},
		History: &stubHistory{bars: map[string][]domain.PriceBar{
			"BTCUSDT": makeBars(30, 100),
			"ETHUSDT": makeBars(30, 50),
			"IBM":     makeBars(30, 180),
		}},
		Watchlist: []domain.WatchEntry{
			{Mode: domain.ModeCrypto, Symbol: "BTCUSDT"},
			{Mode: domain.ModeCrypto, Symbol: "ETHUSDT"},
		},
		Username:  "testuser",
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestAppModelInitialTab(t *testing.T) {
	m := NewAppModel(testServices())
	if m.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard, got %d", m.ActiveTab())
	}
}

func TestAppModelTabSwitchByNumber(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(runeKey('2'))
	app := updated.(AppModel)
	if app.ActiveTab() != TabHistory {
		t.Fatalf("expected TabHistory after pressing 2, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(runeKey('3'))
	app = updated.(AppModel)
	if app.ActiveTab() != TabWatchlist {
		t.Fatalf("expected TabWatchlist after pressing 3, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(runeKey('1'))
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after pressing 1, got %d", app.ActiveTab())
	}
}

func TestAppModelTabSwitchByTab(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	app := updated.(AppModel)
	if app.ActiveTab() != TabHistory {
		t.Fatalf("expected TabHistory after Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after Shift+Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabWatchlist {
		t.Fatalf("expected wrap to TabWatchlist, got %d", app.ActiveTab())
	}
}

func TestAppModelSymbolInputSwallowsGlobalKeys(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(runeKey('/'))
	app := updated.(AppModel)
	if !app.dashboard.Editing() {
		t.Fatal("expected symbol input to be focused")
	}

	updated, _ = app.Update(runeKey('q'))
	app = updated.(AppModel)
	if app.quitting {
		t.Fatal("q must not quit while editing")
	}
	updated, _ = app.Update(runeKey('2'))
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected to stay on dashboard, got %d", app.ActiveTab())
	}
	if got := app.dashboard.input.Value(); got != "q2" {
		t.Fatalf("expected typed value q2, got %q", got)
	}
}

func TestAppModelRoutesAssetChangeToHistory(t *testing.T) {
	m := NewAppModel(testServices())

	updated, cmd := m.Update(assetChangedMsg{mode: domain.ModeStock, symbol: "IBM"})
	app := updated.(AppModel)
	if app.history.symbol != "IBM" || app.history.mode != domain.ModeStock {
		t.Fatalf("expected history to follow dashboard, got %s %s", app.history.mode, app.history.symbol)
	}
	if cmd == nil {
		t.Fatal("expected history refetch command")
	}
}

func TestAppModelWindowResize(t *testing.T) {
	m := NewAppModel(testServices())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	app := updated.(AppModel)
	if app.width != 100 || app.height != 50 {
		t.Fatalf("expected 100x50, got %dx%d", app.width, app.height)
	}
}

func TestAppModelViewRendersWithoutPanic(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)
	m.dashboard.analysis = testAnalysis()
	m.dashboard.loading = false

	for _, tab := range []Tab{TabDashboard, TabHistory, TabWatchlist} {
		m.activeTab = tab
		view := m.View()
		if view == "" {
			t.Fatalf("expected non-empty view for tab %d", tab)
		}
	}
}

func TestAppModelRoutesResultsToInactiveScreens(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	msg := m.watchlist.fetchQuotesCmd()()
	updated, _ := m.Update(msg)
	app := updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected dashboard to stay active, got %d", app.ActiveTab())
	}
	if len(app.watchlist.Quotes()) != 2 {
		t.Fatalf("expected watchlist to receive quotes while hidden, got %d", len(app.watchlist.Quotes()))
	}
}

func TestAppModelQuit(t *testing.T) {
	m := NewAppModel(testServices())
	updated, cmd := m.Update(runeKey('q'))
	app := updated.(AppModel)
	if !app.quitting || cmd == nil {
		t.Fatal("expected q to quit outside the symbol input")
	}
	if app.View() != "Goodbye!\n" {
		t.Fatalf("unexpected quit view %q", app.View())
	}
}
