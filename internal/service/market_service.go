package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"sentinel/internal/cache"
	"sentinel/internal/domain"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type KlineProvider interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.PriceBar, error)
	RawKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error)
}

type DailyProvider interface {
	FetchDaily(ctx context.Context, symbol string) ([]domain.PriceBar, error)
}

type SeriesCache interface {
	Get(ctx context.Context, key cache.SeriesKey) ([]domain.PriceBar, bool)
	Set(ctx context.Context, key cache.SeriesKey, bars []domain.PriceBar)
}

// MarketService serves normalized bar history for both asset modes.
type MarketService struct {
	tracer  trace.Tracer
	crypto  KlineProvider
	stock   DailyProvider
	cache   SeriesCache
	metrics *metrics.Metrics
}

func NewMarketService(
	tracer trace.Tracer,
	crypto KlineProvider,
	stock DailyProvider,
	seriesCache SeriesCache,
	m *metrics.Metrics,
) *MarketService {
	return &MarketService{
		tracer:  tracer,
		crypto:  crypto,
		stock:   stock,
		cache:   seriesCache,
		metrics: m,
	}
}

// History returns up to limit bars in ascending time order. An empty
// interval or zero limit selects the defaults. Stock history is daily only.
func (s *MarketService) History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.history")
	defer span.End()

	symbol, interval, limit, err := normalizeQuery(mode, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("symbol", symbol),
		attribute.String("interval", interval),
		attribute.Int("limit", limit),
	)

	key := cache.SeriesKey{Mode: mode, Symbol: symbol, Interval: interval, Limit: limit}
	if s.cache != nil {
		if bars, ok := s.cache.Get(ctx, key); ok {
			s.metrics.CacheResult(true)
			return bars, nil
		}
		s.metrics.CacheResult(false)
	}

	bars, err := s.fetch(ctx, mode, symbol, interval, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s %s: %w", mode, symbol, interval, provider.ErrNoData)
	}

	bars = sortUnique(bars)
	if s.cache != nil {
		s.cache.Set(ctx, key, bars)
	}
	return bars, nil
}

// RawKlines proxies the Binance klines payload without normalization.
func (s *MarketService) RawKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.raw-klines")
	defer span.End()

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", domain.ErrInvalidInput)
	}
	if interval == "" {
		interval = domain.DefaultInterval
	}
	if limit <= 0 {
		limit = domain.DefaultLimit
	}

	started := time.Now()
	raw, err := s.crypto.RawKlines(ctx, symbol, interval, limit)
	s.metrics.ObserveUpstream("binance", started, err)
	return raw, err
}

func (s *MarketService) fetch(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error) {
	started := time.Now()
	switch mode {
	case domain.ModeCrypto:
		bars, err := s.crypto.FetchKlines(ctx, symbol, interval, limit)
		s.metrics.ObserveUpstream("binance", started, err)
		return bars, err
	case domain.ModeStock:
		bars, err := s.stock.FetchDaily(ctx, symbol)
		s.metrics.ObserveUpstream("alphavantage", started, err)
		if err != nil {
			return nil, err
		}
		bars = sortUnique(bars)
		if len(bars) > limit {
			bars = bars[len(bars)-limit:]
		}
		return bars, nil
	}
	return nil, fmt.Errorf("unsupported mode %q: %w", mode, domain.ErrInvalidInput)
}

func normalizeQuery(mode domain.AssetMode, symbol, interval string, limit int) (string, string, int, error) {
	if mode != domain.ModeCrypto && mode != domain.ModeStock {
		return "", "", 0, fmt.Errorf("unsupported mode %q: %w", mode, domain.ErrInvalidInput)
	}
	sym, ok := domain.NormalizeSymbol(symbol)
	if !ok {
		return "", "", 0, fmt.Errorf("invalid symbol %q: %w", symbol, domain.ErrInvalidInput)
	}
	if interval == "" {
		interval = domain.DefaultInterval
	}
	if !domain.IsSupportedInterval(interval) {
		return "", "", 0, fmt.Errorf("unsupported interval %q: %w", interval, domain.ErrInvalidInput)
	}
	if mode == domain.ModeStock && interval != domain.DefaultInterval {
		return "", "", 0, fmt.Errorf("stock history is daily only, got %q: %w", interval, domain.ErrInvalidInput)
	}
	if limit == 0 {
		limit = domain.DefaultLimit
	}
	if limit < 1 || limit > domain.MaxLimit {
		return "", "", 0, fmt.Errorf("limit must be between 1 and %d: %w", domain.MaxLimit, domain.ErrInvalidInput)
	}
	return sym, interval, limit, nil
}

// sortUnique orders bars by time and keeps the last bar seen for a duplicate
// timestamp.
func sortUnique(bars []domain.PriceBar) []domain.PriceBar {
	out := append([]domain.PriceBar(nil), bars...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	n := 0
	for i := range out {
		if n > 0 && out[n-1].Time == out[i].Time {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}
