package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"sentinel/internal/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultAlphaVantageBaseURL = "https://www.alphavantage.co"
	DefaultAlphaVantageAPIKey  = "demo"

	// alphaVantageMaxPoints matches the compact output size of TIME_SERIES_DAILY.
	alphaVantageMaxPoints = 100
	dailySeriesKey        = "Time Series (Daily)"
)

// AlphaVantageProvider reads daily equity bars from TIME_SERIES_DAILY.
type AlphaVantageProvider struct {
	client  *Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	logger  zerolog.Logger
}

func NewAlphaVantageProvider(client *Client, baseURL, apiKey string, tracer trace.Tracer) *AlphaVantageProvider {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageBaseURL
	}
	if apiKey == "" {
		apiKey = DefaultAlphaVantageAPIKey
	}
	return &AlphaVantageProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tracer:  tracer,
		logger:  log.With().Str("component", "alphavantage_provider").Logger(),
	}
}

type alphaVantageDaily struct {
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	ErrorMessage string                       `json:"Error Message"`
	Series       map[string]alphaVantageEntry `json:"Time Series (Daily)"`
}

type alphaVantageEntry struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// FetchDaily returns up to the 100 most recent daily bars, oldest first.
func (p *AlphaVantageProvider) FetchDaily(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch-daily")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("apikey", p.apiKey)

	body, err := p.client.Get(ctx, p.baseURL+"/query?"+q.Encode())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("alphavantage daily %s: %w", symbol, err)
	}

	bars, err := ParseDailySeries(body)
	if err != nil {
		p.logger.Warn().Err(err).Str("symbol", symbol).Msg("daily series unavailable")
		return nil, fmt.Errorf("alphavantage daily %s: %w", symbol, err)
	}
	p.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("daily series fetched")
	return bars, nil
}

// ParseDailySeries decodes a TIME_SERIES_DAILY payload. Dates are read as
// UTC midnight.
func ParseDailySeries(raw []byte) ([]domain.PriceBar, error) {
	var payload alphaVantageDaily
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode daily series: %w", err)
	}
	if len(payload.Series) == 0 {
		for _, msg := range []string{payload.ErrorMessage, payload.Note, payload.Information} {
			if msg != "" {
				return nil, fmt.Errorf("%w: %s", ErrNoData, msg)
			}
		}
		return nil, fmt.Errorf("%w: missing %q", ErrNoData, dailySeriesKey)
	}

	dates := make([]string, 0, len(payload.Series))
	for d := range payload.Series {
		dates = append(dates, d)
	}
	// ISO dates sort lexically; newest first so the cut keeps the recent end.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > alphaVantageMaxPoints {
		dates = dates[:alphaVantageMaxPoints]
	}

	bars := make([]domain.PriceBar, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		day, err := time.Parse("2006-01-02", dates[i])
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dates[i], err)
		}
		entry := payload.Series[dates[i]]
		bar := domain.PriceBar{Time: day.UTC().Unix()}
		fields := []struct {
			dst *float64
			raw string
		}{
			{&bar.Open, entry.Open},
			{&bar.High, entry.High},
			{&bar.Low, entry.Low},
			{&bar.Close, entry.Close},
			{&bar.Volume, entry.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s value %q: %w", dates[i], f.raw, err)
			}
			*f.dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
