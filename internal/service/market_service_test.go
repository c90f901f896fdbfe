package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sentinel/internal/cache"
	"sentinel/internal/domain"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
)

type stubKlineProvider struct {
	bars          []domain.PriceBar
	raw           json.RawMessage
	err           error
	calls         int
	lastQuery     [3]any
	byInterval    map[string][]domain.PriceBar
	errByInterval map[string]error
}

func (s *stubKlineProvider) FetchKlines(_ context.Context, symbol, interval string, limit int) ([]domain.PriceBar, error) {
	s.calls++
	s.lastQuery = [3]any{symbol, interval, limit}
	if err, ok := s.errByInterval[interval]; ok {
		return nil, err
	}
	if bars, ok := s.byInterval[interval]; ok {
		return bars, nil
	}
	return s.bars, s.err
}

func (s *stubKlineProvider) RawKlines(_ context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	s.calls++
	s.lastQuery = [3]any{symbol, interval, limit}
	return s.raw, s.err
}

type stubDailyProvider struct {
	bars  []domain.PriceBar
	err   error
	calls int
}

func (s *stubDailyProvider) FetchDaily(_ context.Context, _ string) ([]domain.PriceBar, error) {
	s.calls++
	return s.bars, s.err
}

type memoryCache struct {
	entries map[string][]domain.PriceBar
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]domain.PriceBar{}}
}

func (m *memoryCache) Get(_ context.Context, key cache.SeriesKey) ([]domain.PriceBar, bool) {
	bars, ok := m.entries[key.String()]
	return bars, ok
}

func (m *memoryCache) Set(_ context.Context, key cache.SeriesKey, bars []domain.PriceBar) {
	m.entries[key.String()] = bars
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("service-test")
}

func makeBars(n int, start float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		price := start + float64(i)
		bars[i] = domain.PriceBar{
			Time:   1_700_000_000 + int64(i)*86400,
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func TestHistoryCryptoUsesCache(t *testing.T) {
	crypto := &stubKlineProvider{bars: makeBars(3, 100)}
	mem := newMemoryCache()
	m := metrics.New()
	svc := NewMarketService(testTracer(), crypto, &stubDailyProvider{}, mem, m)

	bars, err := svc.History(context.Background(), domain.ModeCrypto, " btcusdt ", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if crypto.lastQuery != [3]any{"BTCUSDT", "1d", 100} {
		t.Fatalf("unexpected upstream query %v", crypto.lastQuery)
	}
	if _, ok := mem.entries["sentinel:bars:crypto:BTCUSDT:1d:100"]; !ok {
		t.Fatalf("expected cache entry, got keys %v", mem.entries)
	}

	if _, err := svc.History(context.Background(), domain.ModeCrypto, "BTCUSDT", "1d", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if crypto.calls != 1 {
		t.Fatalf("expected second call to hit cache, upstream calls=%d", crypto.calls)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("expected one cache hit, got %.0f", got)
	}
}

func TestHistoryWithoutCache(t *testing.T) {
	crypto := &stubKlineProvider{bars: makeBars(2, 10)}
	svc := NewMarketService(testTracer(), crypto, &stubDailyProvider{}, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.History(context.Background(), domain.ModeCrypto, "ETHUSDT", "4h", 50); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if crypto.calls != 2 {
		t.Fatalf("expected every call to reach upstream, got %d", crypto.calls)
	}
}

func TestHistorySortsAndDedupes(t *testing.T) {
	crypto := &stubKlineProvider{bars: []domain.PriceBar{
		{Time: 3, Close: 3},
		{Time: 1, Close: 1},
		{Time: 2, Close: 2},
		{Time: 2, Close: 2.5},
	}}
	svc := NewMarketService(testTracer(), crypto, &stubDailyProvider{}, nil, nil)

	bars, err := svc.History(context.Background(), domain.ModeCrypto, "BTCUSDT", "1h", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 3 || bars[0].Time != 1 || bars[1].Close != 2.5 || bars[2].Time != 3 {
		t.Fatalf("unexpected ordering %+v", bars)
	}
}

func TestHistoryStockTrimsToLimit(t *testing.T) {
	stock := &stubDailyProvider{bars: makeBars(100, 50)}
	svc := NewMarketService(testTracer(), &stubKlineProvider{}, stock, newMemoryCache(), nil)

	bars, err := svc.History(context.Background(), domain.ModeStock, "ibm", "", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 30 {
		t.Fatalf("expected 30 bars, got %d", len(bars))
	}
	if bars[29].Close != 149 {
		t.Fatalf("expected most recent bars kept, last close %.2f", bars[29].Close)
	}
}

func TestHistoryValidation(t *testing.T) {
	svc := NewMarketService(testTracer(), &stubKlineProvider{bars: makeBars(1, 1)}, &stubDailyProvider{}, nil, nil)
	cases := []struct {
		name     string
		mode     domain.AssetMode
		symbol   string
		interval string
		limit    int
	}{
		{"bad symbol", domain.ModeCrypto, "BTC/USDT", "1d", 10},
		{"empty symbol", domain.ModeCrypto, "", "1d", 10},
		{"bad interval", domain.ModeCrypto, "BTCUSDT", "3d", 10},
		{"limit too large", domain.ModeCrypto, "BTCUSDT", "1d", 1001},
		{"negative limit", domain.ModeCrypto, "BTCUSDT", "1d", -5},
		{"intraday stock", domain.ModeStock, "IBM", "1h", 10},
		{"unknown mode", domain.AssetMode("forex"), "EURUSD", "1d", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.History(context.Background(), tc.mode, tc.symbol, tc.interval, tc.limit)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestHistoryEmptyUpstreamIsNoData(t *testing.T) {
	svc := NewMarketService(testTracer(), &stubKlineProvider{bars: []domain.PriceBar{}}, &stubDailyProvider{}, newMemoryCache(), nil)
	_, err := svc.History(context.Background(), domain.ModeCrypto, "BTCUSDT", "1d", 10)
	if !errors.Is(err, provider.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestHistoryUpstreamError(t *testing.T) {
	upstream := &provider.StatusError{StatusCode: 502}
	m := metrics.New()
	svc := NewMarketService(testTracer(), &stubKlineProvider{err: upstream}, &stubDailyProvider{}, nil, m)

	_, err := svc.History(context.Background(), domain.ModeCrypto, "BTCUSDT", "1d", 10)
	var statusErr *provider.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if got := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("binance", "error")); got != 1 {
		t.Fatalf("expected upstream error metric, got %.0f", got)
	}
}

func TestRawKlinesDefaults(t *testing.T) {
	crypto := &stubKlineProvider{raw: json.RawMessage(`[[1]]`)}
	svc := NewMarketService(testTracer(), crypto, &stubDailyProvider{}, nil, nil)

	raw, err := svc.RawKlines(context.Background(), "btcusdt", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `[[1]]` {
		t.Fatalf("unexpected payload %s", raw)
	}
	if crypto.lastQuery != [3]any{"btcusdt", "1d", 100} {
		t.Fatalf("expected symbol passed through with defaults, got %v", crypto.lastQuery)
	}

	if _, err := svc.RawKlines(context.Background(), "  ", "1d", 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank symbol, got %v", err)
	}
}
