package domain

import "strings"

// PriceBar is one OHLCV observation. Time is Unix seconds.
type PriceBar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type ProjectedPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

type TradeSignal string

const (
	SignalBuy  TradeSignal = "BUY"
	SignalSell TradeSignal = "SELL"
	SignalHold TradeSignal = "HOLD"
)

type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

type VolumeRegime string

const (
	VolumeHigh   VolumeRegime = "HIGH"
	VolumeLow    VolumeRegime = "LOW"
	VolumeNormal VolumeRegime = "NORMAL"
)

// PredictionResult is the output of a single engine evaluation. The trend,
// volume and signals fields are only populated by the extended variant.
type PredictionResult struct {
	PredictedData  []ProjectedPoint `json:"predictedData"`
	Signal         TradeSignal      `json:"signal"`
	Confidence     int              `json:"confidence"`
	RSIValue       int              `json:"rsiValue"`
	Trend4h        Trend            `json:"trend4h,omitempty"`
	VolumeAnalysis VolumeRegime     `json:"volumeAnalysis,omitempty"`
	Signals        []string         `json:"signals,omitempty"`
}

// AssetMode selects which upstream feed serves a symbol.
type AssetMode string

const (
	ModeCrypto AssetMode = "crypto"
	ModeStock  AssetMode = "stock"
)

func ParseAssetMode(raw string) (AssetMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "crypto", "":
		return ModeCrypto, true
	case "stock", "stocks":
		return ModeStock, true
	}
	return "", false
}

// WatchEntry is one symbol of the warm and watch lists. Entries are written
// as "SYMBOL" for crypto or "mode:SYMBOL", e.g. "stock:IBM".
type WatchEntry struct {
	Mode   AssetMode
	Symbol string
}

func (e WatchEntry) String() string {
	if e.Mode == ModeCrypto {
		return e.Symbol
	}
	return string(e.Mode) + ":" + e.Symbol
}

func ParseWatchEntry(raw string) (WatchEntry, bool) {
	mode := ModeCrypto
	rest := raw
	if prefix, symbol, found := strings.Cut(raw, ":"); found {
		if strings.TrimSpace(prefix) == "" {
			return WatchEntry{}, false
		}
		parsed, ok := ParseAssetMode(prefix)
		if !ok {
			return WatchEntry{}, false
		}
		mode, rest = parsed, symbol
	}
	symbol, ok := NormalizeSymbol(rest)
	if !ok {
		return WatchEntry{}, false
	}
	return WatchEntry{Mode: mode, Symbol: symbol}, true
}

// ParseWatchList parses every entry and drops duplicates, keeping the first
// occurrence. Invalid entries are returned separately.
func ParseWatchList(raw []string) (entries []WatchEntry, invalid []string) {
	seen := make(map[WatchEntry]struct{}, len(raw))
	for _, r := range raw {
		e, ok := ParseWatchEntry(r)
		if !ok {
			invalid = append(invalid, r)
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		entries = append(entries, e)
	}
	return entries, invalid
}

// Analysis bundles the history a prediction was computed from with the result.
type Analysis struct {
	Symbol     string            `json:"symbol"`
	Mode       AssetMode         `json:"mode"`
	Interval   string            `json:"interval"`
	LastPrice  float64           `json:"lastPrice"`
	History    []PriceBar        `json:"history"`
	Prediction *PredictionResult `json:"prediction"`
}

const (
	DefaultInterval     = "1d"
	SecondaryInterval   = "4h"
	DefaultLimit        = 100
	MaxLimit            = 1000
	DefaultCryptoSymbol = "BTCUSDT"
	DefaultStockSymbol  = "IBM"
)

var SupportedIntervals = []string{"1m", "5m", "15m", "1h", "4h", "1d", "1w"}

func IsSupportedInterval(interval string) bool {
	for _, iv := range SupportedIntervals {
		if iv == interval {
			return true
		}
	}
	return false
}

// DefaultSymbol returns the symbol the dashboard loads when switching mode.
func DefaultSymbol(mode AssetMode) string {
	if mode == ModeStock {
		return DefaultStockSymbol
	}
	return DefaultCryptoSymbol
}
