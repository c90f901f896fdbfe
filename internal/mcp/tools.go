package mcp

import (
	"context"
	"fmt"

	"sentinel/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, history HistoryReader, predictor Predictor) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_history",
		Description: "Get OHLCV bars for a crypto pair or stock ticker, oldest first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in marketHistoryInput) (*mcp.CallToolResult, marketHistoryOutput, error) {
		if history == nil {
			return nil, marketHistoryOutput{}, fmt.Errorf("market service unavailable")
		}
		out, err := readHistory(ctx, history, in)
		if err != nil {
			return nil, marketHistoryOutput{}, err
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_predict",
		Description: "Compute the BUY/SELL/HOLD signal, confidence, RSI and 7-day projection for a symbol",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in marketPredictInput) (*mcp.CallToolResult, marketPredictOutput, error) {
		if predictor == nil {
			return nil, marketPredictOutput{}, fmt.Errorf("prediction service unavailable")
		}
		out, err := readPrediction(ctx, predictor, in.Mode, in.Symbol)
		if err != nil {
			return nil, marketPredictOutput{}, err
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_quote",
		Description: "Get the latest daily close and change for a symbol",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in marketQuoteInput) (*mcp.CallToolResult, marketQuoteOutput, error) {
		if history == nil {
			return nil, marketQuoteOutput{}, fmt.Errorf("market service unavailable")
		}
		mode, symbol, err := normalizeAsset(in.Mode, in.Symbol)
		if err != nil {
			return nil, marketQuoteOutput{}, err
		}
		bars, err := history.History(ctx, mode, symbol, domain.DefaultInterval, 2)
		if err != nil {
			return nil, marketQuoteOutput{}, err
		}
		return nil, quoteFromBars(mode, symbol, bars), nil
	})
}

func readHistory(ctx context.Context, history HistoryReader, in marketHistoryInput) (marketHistoryOutput, error) {
	mode, symbol, err := normalizeAsset(in.Mode, in.Symbol)
	if err != nil {
		return marketHistoryOutput{}, err
	}
	interval, err := normalizeInterval(mode, in.Interval)
	if err != nil {
		return marketHistoryOutput{}, err
	}
	bars, err := history.History(ctx, mode, symbol, interval, normalizeHistoryLimit(in.Limit))
	if err != nil {
		return marketHistoryOutput{}, err
	}
	return marketHistoryOutput{Symbol: symbol, Mode: mode, Interval: interval, Bars: bars}, nil
}

func readPrediction(ctx context.Context, predictor Predictor, rawMode, rawSymbol string) (marketPredictOutput, error) {
	mode, symbol, err := normalizeAsset(rawMode, rawSymbol)
	if err != nil {
		return marketPredictOutput{}, err
	}
	analysis, err := predictor.Predict(ctx, mode, symbol)
	if err != nil {
		return marketPredictOutput{}, err
	}
	return marketPredictOutput{
		Symbol:      analysis.Symbol,
		Mode:        analysis.Mode,
		Interval:    analysis.Interval,
		LastPrice:   analysis.LastPrice,
		HistoryBars: len(analysis.History),
		Prediction:  analysis.Prediction,
	}, nil
}
