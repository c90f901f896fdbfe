package mcp

import (
	"fmt"
	"strings"

	"sentinel/internal/domain"
)

const maxHistoryLimit = 500

type marketHistoryInput struct {
	Mode     string `json:"mode,omitempty" jsonschema:"asset mode: crypto (default) or stock"`
	Symbol   string `json:"symbol,omitempty" jsonschema:"trading pair or ticker (e.g. BTCUSDT, IBM); defaults per mode"`
	Interval string `json:"interval,omitempty" jsonschema:"bar interval: 1m, 5m, 15m, 1h, 4h, 1d, 1w; stocks are daily only"`
	Limit    int    `json:"limit,omitempty" jsonschema:"number of bars to return, max 500"`
}

type marketHistoryOutput struct {
	Symbol   string            `json:"symbol"`
	Mode     domain.AssetMode  `json:"mode"`
	Interval string            `json:"interval"`
	Bars     []domain.PriceBar `json:"bars"`
}

type marketPredictInput struct {
	Mode   string `json:"mode,omitempty" jsonschema:"asset mode: crypto (default) or stock"`
	Symbol string `json:"symbol,omitempty" jsonschema:"trading pair or ticker (e.g. BTCUSDT, IBM); defaults per mode"`
}

type marketPredictOutput struct {
	Symbol      string                   `json:"symbol"`
	Mode        domain.AssetMode         `json:"mode"`
	Interval    string                   `json:"interval"`
	LastPrice   float64                  `json:"lastPrice"`
	HistoryBars int                      `json:"historyBars"`
	Prediction  *domain.PredictionResult `json:"prediction"`
}

type marketQuoteInput struct {
	Mode   string `json:"mode,omitempty" jsonschema:"asset mode: crypto (default) or stock"`
	Symbol string `json:"symbol,omitempty" jsonschema:"trading pair or ticker (e.g. BTCUSDT, IBM); defaults per mode"`
}

type marketQuoteOutput struct {
	Symbol    string           `json:"symbol"`
	Mode      domain.AssetMode `json:"mode"`
	Last      float64          `json:"last"`
	ChangePct float64          `json:"changePct"`
	Volume    float64          `json:"volume"`
	Time      int64            `json:"time"`
}

type modeInfo struct {
	Mode          domain.AssetMode `json:"mode"`
	DefaultSymbol string           `json:"defaultSymbol"`
	Intervals     []string         `json:"intervals"`
}

func supportedModes() []modeInfo {
	return []modeInfo{
		{Mode: domain.ModeCrypto, DefaultSymbol: domain.DefaultCryptoSymbol, Intervals: domain.SupportedIntervals},
		{Mode: domain.ModeStock, DefaultSymbol: domain.DefaultStockSymbol, Intervals: []string{domain.DefaultInterval}},
	}
}

func normalizeAsset(rawMode, rawSymbol string) (domain.AssetMode, string, error) {
	mode, ok := domain.ParseAssetMode(rawMode)
	if !ok {
		return "", "", fmt.Errorf("unsupported mode: %s", strings.TrimSpace(rawMode))
	}
	if strings.TrimSpace(rawSymbol) == "" {
		return mode, domain.DefaultSymbol(mode), nil
	}
	symbol, ok := domain.NormalizeSymbol(rawSymbol)
	if !ok {
		return "", "", fmt.Errorf("invalid symbol: %s", strings.TrimSpace(rawSymbol))
	}
	return mode, symbol, nil
}

func normalizeInterval(mode domain.AssetMode, interval string) (string, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return domain.DefaultInterval, nil
	}
	if !domain.IsSupportedInterval(interval) {
		return "", fmt.Errorf("unsupported interval: %s", interval)
	}
	if mode == domain.ModeStock && interval != domain.DefaultInterval {
		return "", fmt.Errorf("stock history is daily only, got %s", interval)
	}
	return interval, nil
}

func normalizeHistoryLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func quoteFromBars(mode domain.AssetMode, symbol string, bars []domain.PriceBar) marketQuoteOutput {
	out := marketQuoteOutput{Symbol: symbol, Mode: mode}
	if len(bars) == 0 {
		return out
	}
	last := bars[len(bars)-1]
	out.Last, out.Volume, out.Time = last.Close, last.Volume, last.Time
	if len(bars) > 1 {
		if prev := bars[len(bars)-2].Close; prev != 0 {
			out.ChangePct = (last.Close - prev) / prev * 100
		}
	}
	return out
}
