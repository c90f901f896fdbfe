package tui

import (
	"context"

	"sentinel/internal/domain"
)

// Predictor runs the signal engine for one symbol.
type Predictor interface {
	Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error)
}

// HistoryQuerier provides OHLCV bars to the TUI.
type HistoryQuerier interface {
	History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Predictor Predictor
	History   HistoryQuerier
	Watchlist []domain.WatchEntry
	Username  string
}
