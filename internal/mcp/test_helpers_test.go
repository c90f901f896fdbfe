package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sentinel/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type historyCall struct {
	mode     domain.AssetMode
	symbol   string
	interval string
	limit    int
}

type stubHistory struct {
	bars map[string][]domain.PriceBar
	last historyCall
}

func (s *stubHistory) History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error) {
	s.last = historyCall{mode: mode, symbol: symbol, interval: interval, limit: limit}
	bars, ok := s.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]domain.PriceBar(nil), bars...), nil
}

type stubPredictor struct {
	lastMode   domain.AssetMode
	lastSymbol string
}

func (s *stubPredictor) Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error) {
	s.lastMode, s.lastSymbol = mode, symbol
	return &domain.Analysis{
		Symbol:    symbol,
		Mode:      mode,
		Interval:  domain.DefaultInterval,
		LastPrice: 110,
		History:   testBars(3),
		Prediction: &domain.PredictionResult{
			Signal:     domain.SignalBuy,
			Confidence: 72,
			RSIValue:   28,
			PredictedData: []domain.ProjectedPoint{
				{Time: 1, Value: 111},
			},
		},
	}, nil
}

func testBars(n int) []domain.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)*5
		bars[i] = domain.PriceBar{Time: base + int64(i)*86400, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return bars
}

func testServer() (*sdkmcp.Server, *stubHistory, *stubPredictor) {
	history := &stubHistory{bars: map[string][]domain.PriceBar{
		"BTCUSDT": testBars(3),
		"IBM":     testBars(3),
	}}
	predictor := &stubPredictor{}

	srv := NewServer(nil, history, predictor, ServerConfig{RequestTimeout: time.Second})
	return srv, history, predictor
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
