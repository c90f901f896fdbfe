package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/domain"
	mcpserver "sentinel/internal/mcp"
	"sentinel/internal/provider"
	"sentinel/internal/service"
	"sentinel/pkg/tracing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// replace swaps a package-level hook for the duration of the test.
func replace[T any](t *testing.T, hook *T, v T) {
	t.Helper()
	prev := *hook
	*hook = v
	t.Cleanup(func() { *hook = prev })
}

func testConfig(transport string) *config.Config {
	return &config.Config{
		MCPTransport:          transport,
		MCPHTTPEnabled:        true,
		MCPHTTPBind:           "127.0.0.1",
		MCPHTTPPort:           8090,
		MCPAuthToken:          "secret",
		MCPRequestTimeoutSecs: 1,
		MCPRateLimitPerMin:    60,
		Predict: config.PredictConfig{
			RSIPeriod: 14, FastEMA: 20, SlowEMA: 50, ProjectionDays: 7, VolumeWindow: 5, Seed: 1,
		},
	}
}

// wireStubs replaces everything that touches the environment or the network.
// The real MCP server is kept so tests exercise the full wiring.
func wireStubs(t *testing.T, cfg *config.Config) {
	replace(t, &loadEnvFunc, func(...string) error { return nil })
	replace(t, &loadConfigFunc, func() (*config.Config, error) { return cfg, nil })
	replace(t, &initLoggingFunc, func(string, bool) {})
	replace(t, &initRedisFunc, func(context.Context, string) error {
		t.Error("redis must not be initialised when the cache is disabled")
		return nil
	})
	replace(t, &initTracerFunc, func(context.Context, tracing.Options) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	})
	replace(t, &newCryptoProviderFunc, func(*provider.Client, *config.Config, trace.Tracer) service.KlineProvider {
		return fakeExchange{}
	})
	replace(t, &newStockProviderFunc, func(*provider.Client, *config.Config, trace.Tracer) service.DailyProvider {
		return fakeExchange{}
	})
}

func TestStdioServesWiredTools(t *testing.T) {
	wireStubs(t, testConfig("stdio"))

	var structured json.RawMessage
	replace(t, &runStdioFunc, func(ctx context.Context, server *sdkmcp.Server) error {
		clientT, serverT := sdkmcp.NewInMemoryTransports()
		if _, err := server.Connect(ctx, serverT, nil); err != nil {
			return err
		}
		client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "stdio-client"}, nil)
		session, err := client.Connect(ctx, clientT, nil)
		if err != nil {
			return err
		}
		defer session.Close()

		res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name:      "market_predict",
			Arguments: map[string]any{"mode": "crypto", "symbol": "ethusdt"},
		})
		if err != nil {
			return err
		}
		if res.IsError {
			t.Errorf("market_predict failed: %+v", res.Content)
		}
		structured, err = json.Marshal(res.StructuredContent)
		return err
	})

	main()

	var out struct {
		Symbol     string `json:"symbol"`
		Prediction struct {
			PredictedData []domain.ProjectedPoint `json:"predictedData"`
		} `json:"prediction"`
	}
	if err := json.Unmarshal(structured, &out); err != nil {
		t.Fatalf("decode prediction: %v (%s)", err, structured)
	}
	if out.Symbol != "ETHUSDT" || len(out.Prediction.PredictedData) != 7 {
		t.Fatalf("unexpected prediction payload %s", structured)
	}
}

func TestHTTPTransportUsesConfiguredGuard(t *testing.T) {
	wireStubs(t, testConfig("http"))

	handlerCfg := make(chan mcpserver.HTTPHandlerConfig, 1)
	addrs := make(chan string, 1)
	replace(t, &newMCPHandlerFunc, func(_ *sdkmcp.Server, cfg mcpserver.HTTPHandlerConfig) http.Handler {
		handlerCfg <- cfg
		return http.NotFoundHandler()
	})
	replace(t, &startHTTPServerFunc, func(srv *http.Server) error {
		addrs <- srv.Addr
		return http.ErrServerClosed
	})
	replace(t, &setupSignalNotify, func(chan<- os.Signal, ...os.Signal) {})
	replace(t, &waitForSignalFunc, func(<-chan os.Signal) {
		select {
		case <-addrs:
		case <-time.After(time.Second):
			t.Error("http server was never started")
		}
	})
	replace(t, &shutdownHTTPServerFn, func(*http.Server, context.Context) error { return nil })

	main()

	select {
	case cfg := <-handlerCfg:
		if cfg.AuthToken != "secret" || cfg.RateLimitPerMin != 60 || cfg.MaxBodyBytes != defaultMCPHTTPMaxBodyBytes {
			t.Fatalf("unexpected handler config %+v", cfg)
		}
	default:
		t.Fatal("expected the http handler to be built")
	}
}

func TestRunHTTPModePreconditions(t *testing.T) {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test"}, nil)
	cases := []struct {
		name string
		cfg  *config.Config
		want string
	}{
		{"disabled", &config.Config{MCPAuthToken: "secret"}, "MCP_HTTP_ENABLED"},
		{"no token", &config.Config{MCPHTTPEnabled: true, MCPHTTPBind: "127.0.0.1", MCPHTTPPort: 8090}, "MCP_AUTH_TOKEN is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			err := runHTTPMode(ctx, cancel, tc.cfg, srv)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

type fakeExchange struct{}

func (fakeExchange) bars(n int) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		c := 50 + float64(i)/2
		bars[i] = domain.PriceBar{Time: int64(1704067200 + i*86400), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return bars
}

func (f fakeExchange) FetchKlines(_ context.Context, _, _ string, limit int) ([]domain.PriceBar, error) {
	return f.bars(limit), nil
}

func (fakeExchange) RawKlines(context.Context, string, string, int) (json.RawMessage, error) {
	return json.RawMessage("[]"), nil
}

func (f fakeExchange) FetchDaily(context.Context, string) ([]domain.PriceBar, error) {
	return f.bars(100), nil
}
