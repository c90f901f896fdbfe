package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"sentinel/internal/domain"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"
	"sentinel/internal/signal"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubEngine struct {
	primary   []domain.PriceBar
	secondary []domain.PriceBar
	result    *domain.PredictionResult
	err       error
}

func (s *stubEngine) Generate(primary, secondary []domain.PriceBar) (*domain.PredictionResult, error) {
	s.primary = primary
	s.secondary = secondary
	return s.result, s.err
}

func TestPredictCryptoUsesSecondary(t *testing.T) {
	crypto := &stubKlineProvider{byInterval: map[string][]domain.PriceBar{
		"1d": makeBars(150, 100),
		"4h": makeBars(100, 200),
	}}
	market := NewMarketService(testTracer(), crypto, &stubDailyProvider{}, nil, nil)
	engine := &stubEngine{result: &domain.PredictionResult{Signal: domain.SignalHold}}
	m := metrics.New()
	svc := NewPredictionService(testTracer(), market, engine, m)

	analysis, err := svc.Predict(context.Background(), domain.ModeCrypto, "btcusdt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Symbol != "BTCUSDT" || analysis.Mode != domain.ModeCrypto || analysis.Interval != "1d" {
		t.Fatalf("unexpected analysis header %+v", analysis)
	}
	if len(engine.primary) != 150 || len(engine.secondary) != 100 {
		t.Fatalf("expected 150 primary and 100 secondary bars, got %d and %d", len(engine.primary), len(engine.secondary))
	}
	if analysis.LastPrice != 249 {
		t.Fatalf("expected last close 249, got %.2f", analysis.LastPrice)
	}
	if got := testutil.ToFloat64(m.Predictions.WithLabelValues("crypto", "HOLD")); got != 1 {
		t.Fatalf("expected prediction metric, got %.0f", got)
	}
}

func TestPredictCryptoSecondaryFailureDegrades(t *testing.T) {
	crypto := &stubKlineProvider{
		byInterval:    map[string][]domain.PriceBar{"1d": makeBars(150, 100)},
		errByInterval: map[string]error{"4h": &provider.StatusError{StatusCode: 503}},
	}
	market := NewMarketService(testTracer(), crypto, &stubDailyProvider{}, nil, nil)
	engine := &stubEngine{result: &domain.PredictionResult{Signal: domain.SignalBuy}}
	svc := NewPredictionService(testTracer(), market, engine, nil)

	if _, err := svc.Predict(context.Background(), domain.ModeCrypto, "ETHUSDT"); err != nil {
		t.Fatalf("expected secondary failure to be tolerated, got %v", err)
	}
	if engine.secondary != nil {
		t.Fatalf("expected nil secondary, got %d bars", len(engine.secondary))
	}
}

func TestPredictStockIsSingleTimeframe(t *testing.T) {
	stock := &stubDailyProvider{bars: makeBars(100, 50)}
	crypto := &stubKlineProvider{}
	market := NewMarketService(testTracer(), crypto, stock, nil, nil)
	engine := &stubEngine{result: &domain.PredictionResult{Signal: domain.SignalSell}}
	svc := NewPredictionService(testTracer(), market, engine, nil)

	analysis, err := svc.Predict(context.Background(), domain.ModeStock, "IBM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if crypto.calls != 0 || stock.calls != 1 {
		t.Fatalf("expected only the daily stock fetch, crypto=%d stock=%d", crypto.calls, stock.calls)
	}
	if engine.secondary != nil || len(engine.primary) != 100 {
		t.Fatalf("unexpected engine inputs: primary=%d secondary=%v", len(engine.primary), engine.secondary)
	}
	if analysis.Prediction.Signal != domain.SignalSell {
		t.Fatalf("unexpected signal %s", analysis.Prediction.Signal)
	}
}

func TestPredictPrimaryFailure(t *testing.T) {
	market := NewMarketService(testTracer(), &stubKlineProvider{err: &provider.StatusError{StatusCode: 500}}, &stubDailyProvider{}, nil, nil)
	m := metrics.New()
	svc := NewPredictionService(testTracer(), market, &stubEngine{}, m)

	_, err := svc.Predict(context.Background(), domain.ModeCrypto, "BTCUSDT")
	if ErrorKind(err) != "upstream" {
		t.Fatalf("expected upstream error kind, got %q (%v)", ErrorKind(err), err)
	}
	if got := testutil.ToFloat64(m.PredictFailures.WithLabelValues("upstream")); got != 1 {
		t.Fatalf("expected failure metric, got %.0f", got)
	}
}

func TestPredictInvalidSymbol(t *testing.T) {
	svc := NewPredictionService(testTracer(), NewMarketService(testTracer(), &stubKlineProvider{}, &stubDailyProvider{}, nil, nil), &stubEngine{}, nil)
	if _, err := svc.Predict(context.Background(), domain.ModeCrypto, "no spaces"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPredictWithRealEngine(t *testing.T) {
	stock := &stubDailyProvider{bars: makeBars(20, 50)}
	market := NewMarketService(testTracer(), &stubKlineProvider{}, stock, nil, nil)
	engine := signal.NewEngine(signal.DefaultConfig(), rand.New(rand.NewSource(1)))
	svc := NewPredictionService(testTracer(), market, engine, nil)

	_, err := svc.Predict(context.Background(), domain.ModeStock, "IBM")
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for 20 bars, got %v", err)
	}

	stock.bars = makeBars(60, 50)
	analysis, err := svc.Predict(context.Background(), domain.ModeStock, "IBM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(analysis.Prediction.PredictedData) != 7 {
		t.Fatalf("expected 7 projected points, got %d", len(analysis.Prediction.PredictedData))
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"invalid_input":     domain.ErrInvalidInput,
		"insufficient_data": domain.ErrInsufficientData,
		"no_data":           provider.ErrNoData,
		"upstream":          &provider.StatusError{StatusCode: 429},
		"internal":          errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v): expected %s, got %s", err, want, got)
		}
	}
}
