package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sentinel/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const jsonMIME = "application/json"

type staticResource struct {
	uri, name, description string
	payload                func() any
}

var staticResources = []staticResource{
	{"market://supported-intervals", "supported-intervals", "Bar intervals accepted for crypto history",
		func() any { return domain.SupportedIntervals }},
	{"market://modes", "asset-modes", "Asset modes with their default symbol and intervals",
		func() any { return supportedModes() }},
}

type assetResources struct {
	history   HistoryReader
	predictor Predictor
}

func registerResources(server *mcp.Server, history HistoryReader, predictor Predictor) {
	for _, res := range staticResources {
		payload := res.payload
		server.AddResource(&mcp.Resource{URI: res.uri, Name: res.name, Description: res.description, MIMEType: jsonMIME},
			func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return jsonResource(req.Params.URI, payload())
			})
	}

	h := assetResources{history: history, predictor: predictor}
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "history://{mode}/{symbol}{?interval,limit}",
		Name:        "history-by-symbol",
		Description: "OHLCV bars for a mode and symbol; optional interval and limit query params",
		MIMEType:    jsonMIME,
	}, h.readHistory)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "predict://{mode}/{symbol}",
		Name:        "prediction-by-symbol",
		Description: "Signal, confidence and 7-day projection for a mode and symbol",
		MIMEType:    jsonMIME,
	}, h.readPrediction)
}

func (h assetResources) readHistory(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if h.history == nil {
		return nil, fmt.Errorf("market service unavailable")
	}
	mode, symbol, query, err := parseAssetURI(req.Params.URI, "history")
	if err != nil {
		return nil, err
	}

	in := marketHistoryInput{Mode: mode, Symbol: symbol, Interval: query.Get("interval")}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if in.Limit, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("invalid limit: %s", raw)
		}
	}

	out, err := readHistory(ctx, h.history, in)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, out)
}

func (h assetResources) readPrediction(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if h.predictor == nil {
		return nil, fmt.Errorf("prediction service unavailable")
	}
	mode, symbol, _, err := parseAssetURI(req.Params.URI, "predict")
	if err != nil {
		return nil, err
	}
	out, err := readPrediction(ctx, h.predictor, mode, symbol)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, out)
}

// parseAssetURI splits scheme://{mode}/{symbol}?query.
func parseAssetURI(uri, scheme string) (string, string, url.Values, error) {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != scheme {
		return "", "", nil, mcp.ResourceNotFoundError(uri)
	}
	symbol := strings.Trim(strings.TrimSpace(parsed.Path), "/")
	if parsed.Host == "" || symbol == "" || strings.Contains(symbol, "/") {
		return "", "", nil, mcp.ResourceNotFoundError(uri)
	}
	return parsed.Host, symbol, parsed.Query(), nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	contents := &mcp.ResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(body)}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{contents}}, nil
}
