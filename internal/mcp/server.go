package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serverName             = "sentinel-mcp"
	serverVersion          = "1.0.0"
	defaultRequestTimeout  = 5 * time.Second
	slowRequestLogInterval = 2 * time.Second
)

type ServerConfig struct {
	// RequestTimeout bounds every incoming method call. Zero uses 5s.
	RequestTimeout time.Duration
}

// NewServer exposes market history and predictions as MCP tools and resources.
func NewServer(tracer trace.Tracer, history HistoryReader, predictor Predictor, cfg ServerConfig) *sdkmcp.Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: serverName, Version: serverVersion}, &sdkmcp.ServerOptions{
		Instructions: "Read crypto (Binance) and stock (Alpha Vantage) price history, and the indicator-based " +
			"BUY/SELL/HOLD signal with confidence, RSI and a 7-day projection. Stocks are daily only.",
		Logger: slog.Default(),
	})

	srv.AddReceivingMiddleware(observeMiddleware(tracer), timeoutMiddleware(timeout))

	registerTools(srv, history, predictor)
	registerResources(srv, history, predictor)
	return srv
}

// NewHTTPTransportHandler serves the streamable HTTP transport behind the
// auth, rate and body guards.
func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

func timeoutMiddleware(timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

// observeMiddleware opens a span per method when a tracer is set and logs
// failed or slow calls.
func observeMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			target := requestTarget(req)

			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, mcpSpanName(method, target))
				span.SetAttributes(attribute.String("mcp.method", method))
				if target != "" {
					span.SetAttributes(attribute.String("mcp.target", target))
				}
				defer span.End()
			}

			start := time.Now()
			result, err := next(ctx, method, req)
			elapsed := time.Since(start)

			if err != nil {
				if span != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				}
				log.Warn().Err(err).Str("component", "mcp").Str("method", method).Str("target", target).Msg("request failed")
			} else if elapsed > slowRequestLogInterval {
				log.Info().Str("component", "mcp").Str("method", method).Str("target", target).Dur("elapsed", elapsed).Msg("slow request")
			}
			return result, err
		}
	}
}

// requestTarget names the tool or resource a request addresses.
func requestTarget(req sdkmcp.Request) string {
	switch r := req.(type) {
	case *sdkmcp.CallToolRequest:
		return strings.TrimSpace(r.Params.Name)
	case *sdkmcp.ReadResourceRequest:
		return strings.TrimSpace(r.Params.URI)
	}
	return ""
}

func mcpSpanName(method, target string) string {
	switch method {
	case "tools/call":
		if target != "" {
			return "mcp.tool." + target
		}
		return "mcp.tool.call"
	case "resources/read":
		return "mcp.resource.read"
	}
	return "mcp." + strings.ReplaceAll(method, "/", ".")
}
