package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"sentinel/internal/bot"
	"sentinel/internal/cache"
	"sentinel/internal/chart"
	"sentinel/internal/config"
	"sentinel/internal/handler"
	"sentinel/internal/job"
	"sentinel/internal/logging"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"
	"sentinel/internal/service"
	signalengine "sentinel/internal/signal"
	"sentinel/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "sentinel/docs"
)

const serviceName = "sentinel"

var (
	loadEnvFunc           = godotenv.Load
	loadConfigFunc        = config.Load
	initLoggingFunc       = logging.Init
	initRedisFunc         = cache.InitRedis
	initTracerFunc        = tracing.InitTracer
	newMetricsFunc        = metrics.New
	newCryptoProviderFunc = func(client *provider.Client, cfg *config.Config, tracer trace.Tracer) service.KlineProvider {
		return provider.NewBinanceProvider(client, cfg.BinanceBaseURL, tracer)
	}
	newStockProviderFunc = func(client *provider.Client, cfg *config.Config, tracer trace.Tracer) service.DailyProvider {
		return provider.NewAlphaVantageProvider(client, cfg.AlphaVantageBaseURL, cfg.AlphaVantageAPIKey, tracer)
	}
	newSignalEngineFunc    = signalengine.NewEngine
	newChartRendererFunc   = chart.NewRenderer
	newCacheWarmerFunc     = job.NewCacheWarmer
	startCacheWarmerFunc   = func(w *job.CacheWarmer, ctx context.Context) { go w.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Sentinel Market API
// @version         1.0
// @description     Market history, indicator signals and 7-day projections for crypto and stocks.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	initLoggingFunc(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init tracing
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

	// Redis is optional; without it every lookup is a miss.
	if cfg.CacheEnabled {
		if err := initRedisFunc(ctx, cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without series cache")
		}
	}

	engineCfg := cfg.PredictionConfig()
	if err := engineCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid prediction configuration")
	}

	// Providers and services
	m := newMetricsFunc()
	client := provider.NewClient(cfg.ClientOptions())
	crypto := newCryptoProviderFunc(client, cfg, tracer)
	stock := newStockProviderFunc(client, cfg, tracer)
	seriesCache := cache.NewSeriesCache(cache.Client, cfg.CacheTTL(), tracer)
	marketService := service.NewMarketService(tracer, crypto, stock, seriesCache, m)
	engine := newSignalEngineFunc(engineCfg, cfg.PredictionRand())
	predictionService := service.NewPredictionService(tracer, marketService, engine, m)
	renderer := newChartRendererFunc()

	// Telegram bot
	alerts := startTelegramBotFunc(cfg.TelegramBotToken, predictionService, marketService, renderer)

	// Background cache warmer (stopped by ctx cancel)
	if cfg.WarmCron != "" {
		warmer := newCacheWarmerFunc(tracer, predictionService, cfg.WatchEntries(), m)
		if alerts != nil {
			warmer.SetNotifier(alerts)
		}
		if err := warmer.Schedule(ctx, cfg.WarmCron); err != nil {
			log.Error().Err(err).Str("cron", cfg.WarmCron).Msg("cache warmer not scheduled")
		} else {
			startCacheWarmerFunc(warmer, ctx)
		}
	}

	// Handlers and routes
	h := handler.New(tracer, marketService, predictionService, renderer, m)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(serviceName))
	r.Use(handler.CORSMiddleware(cfg.CORSOrigins))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if cache.Client != nil {
		_ = cache.Client.Close()
	}

	log.Info().Msg("Server exiting")
}
