package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"sentinel/internal/cache"
	"sentinel/internal/config"
	"sentinel/internal/logging"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"
	"sentinel/internal/service"
	signalengine "sentinel/internal/signal"
	"sentinel/internal/tui"
	"sentinel/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName  = "sentinel-dashboard"
	localLogFile = "sentinel-dashboard.log"
)

var (
	loadEnvFunc     = godotenv.Load
	loadConfigFunc  = config.Load
	initLoggingFunc = logging.Init
	initRedisFunc   = cache.InitRedis
	initTracerFunc  = tracing.InitTracer
	argsFunc        = func() []string { return os.Args[1:] }
	newServicesFunc = buildServices
	logToFileFunc   = func(path string) (*os.File, error) {
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	}
	runLocalFunc = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
	newSSHServerFunc      = newSSHServer
	startSSHServerFunc    = func(s *ssh.Server) error { return s.ListenAndServe() }
	shutdownSSHServerFunc = func(s *ssh.Server, ctx context.Context) error { return s.Shutdown(ctx) }
	setupSignalNotify     = ossignal.Notify
	waitForSignalFunc     = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	serveSSH := fs.Bool("ssh", false, "serve the dashboard over SSH instead of the local terminal")
	if err := fs.Parse(argsFunc()); err != nil {
		os.Exit(2)
	}

	_ = loadEnvFunc()
	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *serveSSH {
		initLoggingFunc(cfg.LogLevel, cfg.LogPretty)
	} else {
		// The local program owns the terminal.
		f, err := logToFileFunc(localLogFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open dashboard log file")
		}
		defer f.Close()
		log.Logger = logging.New(f, cfg.LogLevel)
	}

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

	svc, err := newServicesFunc(cfg, tracer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dashboard services")
	}

	if !*serveSSH {
		if err := runLocalFunc(tui.NewAppModel(svc)); err != nil {
			log.Fatal().Err(err).Msg("dashboard exited with error")
		}
		return
	}

	s, err := newSSHServerFunc(cfg, svc)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ssh server")
	}

	go func() {
		log.Info().Str("addr", cfg.SSHAddr).Msg("ssh dashboard listening")
		if err := startSSHServerFunc(s); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ssh listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("Shutting down ssh dashboard...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownSSHServerFunc(s, shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		log.Error().Err(err).Msg("ssh server forced to shutdown")
	}
	if cache.Client != nil {
		_ = cache.Client.Close()
	}
}

func buildServices(cfg *config.Config, tracer trace.Tracer) (tui.Services, error) {
	engineCfg := cfg.PredictionConfig()
	if err := engineCfg.Validate(); err != nil {
		return tui.Services{}, err
	}

	m := metrics.New()
	client := provider.NewClient(cfg.ClientOptions())
	marketService := service.NewMarketService(tracer,
		provider.NewBinanceProvider(client, cfg.BinanceBaseURL, tracer),
		provider.NewAlphaVantageProvider(client, cfg.AlphaVantageBaseURL, cfg.AlphaVantageAPIKey, tracer),
		cache.NewSeriesCache(cache.Client, cfg.CacheTTL(), tracer), m)
	predictionService := service.NewPredictionService(tracer, marketService,
		signalengine.NewEngine(engineCfg, cfg.PredictionRand()), m)

	return tui.Services{
		Predictor: predictionService,
		History:   marketService,
		Watchlist: cfg.WatchEntries(),
		Username:  os.Getenv("USER"),
	}, nil
}

func newSSHServer(cfg *config.Config, svc tui.Services) (*ssh.Server, error) {
	return wish.NewServer(
		wish.WithAddress(cfg.SSHAddr),
		wish.WithHostKeyPath(cfg.SSHHostKey),
		wish.WithMiddleware(
			bm.Middleware(sessionHandler(svc)),
			activeterm.Middleware(),
			sessionLogMiddleware(),
		),
	)
}

// sessionHandler gives every SSH session its own dashboard keyed to the
// connecting user.
func sessionHandler(svc tui.Services) bm.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		sessionSvc := svc
		sessionSvc.Username = s.User()

		m := tui.NewAppModel(sessionSvc)
		if pty, _, ok := s.Pty(); ok {
			m.SetSize(pty.Window.Width, pty.Window.Height)
		}
		return m, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

func sessionLogMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			start := time.Now()
			logger := log.With().Str("component", "ssh").Str("user", s.User()).Str("remote", s.RemoteAddr().String()).Logger()
			logger.Info().Msg("session opened")
			next(s)
			logger.Info().Dur("duration", time.Since(start)).Msg("session closed")
		}
	}
}
