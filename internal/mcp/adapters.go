package mcp

import (
	"context"

	"sentinel/internal/domain"
)

// HistoryReader exposes OHLCV history for both asset modes.
type HistoryReader interface {
	History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error)
}

// Predictor produces the signal analysis for a symbol.
type Predictor interface {
	Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error)
}
