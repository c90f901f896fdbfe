package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"sentinel/internal/cache"
	"sentinel/internal/config"
	"sentinel/internal/logging"
	mcpserver "sentinel/internal/mcp"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"
	"sentinel/internal/service"
	signalengine "sentinel/internal/signal"
	"sentinel/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName                = "sentinel-mcp"
	defaultMCPHTTPMaxBodyBytes = int64(1 << 20) // 1MiB
)

var (
	loadEnvFunc           = godotenv.Load
	loadConfigFunc        = config.Load
	initLoggingFunc       = logging.Init
	initRedisFunc         = cache.InitRedis
	initTracerFunc        = tracing.InitTracer
	newCryptoProviderFunc = func(client *provider.Client, cfg *config.Config, tracer trace.Tracer) service.KlineProvider {
		return provider.NewBinanceProvider(client, cfg.BinanceBaseURL, tracer)
	}
	newStockProviderFunc = func(client *provider.Client, cfg *config.Config, tracer trace.Tracer) service.DailyProvider {
		return provider.NewAlphaVantageProvider(client, cfg.AlphaVantageBaseURL, cfg.AlphaVantageAPIKey, tracer)
	}
	newSignalEngineFunc = signalengine.NewEngine
	newMCPServerFunc    = mcpserver.NewServer
	newMCPHandlerFunc   = mcpserver.NewHTTPTransportHandler
	runStdioFunc        = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	// stdout carries the stdio transport, logging stays on stderr.
	initLoggingFunc(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Options{
		ServiceName: serviceName,
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	if cfg.CacheEnabled {
		if err := initRedisFunc(ctx, cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without series cache")
		}
	}

	engineCfg := cfg.PredictionConfig()
	if err := engineCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid prediction configuration")
	}

	m := metrics.New()
	client := provider.NewClient(cfg.ClientOptions())
	seriesCache := cache.NewSeriesCache(cache.Client, cfg.CacheTTL(), tracer)
	marketService := service.NewMarketService(tracer,
		newCryptoProviderFunc(client, cfg, tracer),
		newStockProviderFunc(client, cfg, tracer),
		seriesCache, m)
	predictionService := service.NewPredictionService(tracer, marketService,
		newSignalEngineFunc(engineCfg, cfg.PredictionRand()), m)

	mcpSrv := newMCPServerFunc(tracer, marketService, predictionService, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	switch strings.ToLower(strings.TrimSpace(cfg.MCPTransport)) {
	case "", "stdio":
		log.Info().Msg("mcp server running on stdio")
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatal().Err(err).Msg("mcp stdio server failed")
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatal().Err(err).Msg("mcp http server failed")
		}
	default:
		log.Fatal().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT")
	}

	if cache.Client != nil {
		_ = cache.Client.Close()
	}
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("mcp http server listening")
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("mcp http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
