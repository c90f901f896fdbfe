package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sentinel/internal/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultBinanceBaseURL = "https://api.binance.com"

// BinanceProvider reads candlestick history from the Binance klines endpoint.
type BinanceProvider struct {
	client  *Client
	baseURL string
	tracer  trace.Tracer
	logger  zerolog.Logger
}

func NewBinanceProvider(client *Client, baseURL string, tracer trace.Tracer) *BinanceProvider {
	if baseURL == "" {
		baseURL = DefaultBinanceBaseURL
	}
	return &BinanceProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
		logger:  log.With().Str("component", "binance_provider").Logger(),
	}
}

// RawKlines returns the upstream JSON untouched.
func (p *BinanceProvider) RawKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	ctx, span := p.tracer.Start(ctx, "binance.raw-klines")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("interval", interval),
		attribute.Int("limit", limit),
	)

	endpoint := p.klinesURL(symbol, interval, limit)
	p.logger.Debug().Str("url", endpoint).Msg("fetching klines")

	body, err := p.client.Get(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("binance klines %s %s: invalid json", symbol, interval)
	}
	return json.RawMessage(body), nil
}

// FetchKlines returns normalized bars in ascending time order.
func (p *BinanceProvider) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.PriceBar, error) {
	raw, err := p.RawKlines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	bars, err := ParseKlines(raw)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	p.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("bars", len(bars)).Msg("klines fetched")
	return bars, nil
}

func (p *BinanceProvider) klinesURL(symbol, interval string, limit int) string {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	return p.baseURL + "/api/v3/klines?" + q.Encode()
}

// ParseKlines decodes Binance kline rows:
// [openTimeMs, open, high, low, close, volume, closeTime, ...].
func ParseKlines(raw []byte) ([]domain.PriceBar, error) {
	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	bars := make([]domain.PriceBar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}
		openMs, err := toFloat(row[0])
		if err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		var vals [5]float64
		for j := 1; j <= 5; j++ {
			v, err := toFloat(row[j])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j, err)
			}
			vals[j-1] = v
		}
		bars = append(bars, domain.PriceBar{
			Time:   int64(openMs) / 1000,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	case json.Number:
		return t.Float64()
	}
	return 0, fmt.Errorf("unexpected value type %T", v)
}
