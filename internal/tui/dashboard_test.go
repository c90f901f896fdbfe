package tui

import (
	"errors"
	"strings"
	"testing"

	"sentinel/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

func TestDashboardFetchAnalysis(t *testing.T) {
	m := NewDashboardModel(testServices())

	msg := m.fetchAnalysisCmd()()
	got, ok := msg.(analysisMsg)
	if !ok {
		t.Fatalf("expected analysisMsg, got %T", msg)
	}
	if got.symbol != "BTCUSDT" || got.analysis.Prediction.Signal != domain.SignalBuy {
		t.Fatalf("unexpected analysis message %+v", got)
	}

	updated, _ := m.Update(got)
	if updated.Analysis() == nil || updated.loading {
		t.Fatal("expected analysis to be stored and loading cleared")
	}
}

func TestDashboardFetchError(t *testing.T) {
	svc := testServices()
	svc.Predictor = &stubPredictor{err: domain.ErrInsufficientData}
	m := NewDashboardModel(svc)
	m.SetSize(120, 40)

	updated, _ := m.Update(m.fetchAnalysisCmd()())
	if !errors.Is(updated.err, domain.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", updated.err)
	}
	if !strings.Contains(updated.View(), "Error") {
		t.Fatal("expected error in view")
	}
}

func TestDashboardIgnoresStaleAnalysis(t *testing.T) {
	m := NewDashboardModel(testServices())

	stale := analysisMsg{mode: domain.ModeCrypto, symbol: "ETHUSDT", analysis: testAnalysis()}
	updated, _ := m.Update(stale)
	if updated.Analysis() != nil {
		t.Fatal("expected stale analysis to be dropped")
	}
}

func TestDashboardToggleMode(t *testing.T) {
	m := NewDashboardModel(testServices())

	updated, cmd := m.Update(runeKey('m'))
	mode, symbol := updated.Asset()
	if mode != domain.ModeStock || symbol != "IBM" {
		t.Fatalf("expected stock IBM, got %s %s", mode, symbol)
	}
	if cmd == nil || !updated.loading {
		t.Fatal("expected reload after toggling mode")
	}

	updated, _ = updated.Update(runeKey('m'))
	if mode, symbol = updated.Asset(); mode != domain.ModeCrypto || symbol != "BTCUSDT" {
		t.Fatalf("expected crypto BTCUSDT, got %s %s", mode, symbol)
	}
}

func TestDashboardSubmitSymbol(t *testing.T) {
	m := NewDashboardModel(testServices())

	updated, _ := m.Update(runeKey('/'))
	if !updated.Editing() {
		t.Fatal("expected input focus")
	}

	updated.input.SetValue("bad/sym")
	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if updated.err == nil || !updated.Editing() {
		t.Fatal("expected invalid symbol to keep input open with an error")
	}

	updated.input.SetValue(" ethusdt ")
	updated, cmd := updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if updated.Editing() {
		t.Fatal("expected input to blur after submit")
	}
	if _, symbol := updated.Asset(); symbol != "ETHUSDT" {
		t.Fatalf("expected ETHUSDT, got %s", symbol)
	}
	if cmd == nil {
		t.Fatal("expected fetch command")
	}
}

func TestDashboardCancelEdit(t *testing.T) {
	m := NewDashboardModel(testServices())
	updated, _ := m.Update(runeKey('/'))
	updated.input.SetValue("ETH")
	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if updated.Editing() {
		t.Fatal("expected esc to leave edit mode")
	}
	if _, symbol := updated.Asset(); symbol != "BTCUSDT" {
		t.Fatalf("expected symbol unchanged, got %s", symbol)
	}
}

func TestDashboardViewWithData(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	m.analysis = testAnalysis()
	m.loading = false

	view := m.View()
	for _, want := range []string{"BTCUSDT", "BUY", "RSI (14)", "80% confidence", "2-day target"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
}

func TestDashboardViewLoading(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	if !strings.Contains(m.View(), "Loading BTCUSDT") {
		t.Fatal("expected loading message")
	}
}
