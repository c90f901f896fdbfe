package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sentinel/internal/domain"
	"sentinel/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Predictor interface {
	Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error)
}

// Notifier receives the analyses produced by each warm pass.
type Notifier interface {
	NotifyAnalyses(ctx context.Context, analyses []*domain.Analysis) error
}

// CacheWarmer periodically runs predictions for a fixed symbol list, each in
// its own asset mode, so the series cache holds fresh history. Schedules
// shorter than the cache TTL only re-read cached entries.
type CacheWarmer struct {
	tracer    trace.Tracer
	predictor Predictor
	symbols   []domain.WatchEntry
	metrics   *metrics.Metrics
	notifier  Notifier
	cron      *cron.Cron
	logger    zerolog.Logger
}

func NewCacheWarmer(tracer trace.Tracer, predictor Predictor, symbols []domain.WatchEntry, m *metrics.Metrics) *CacheWarmer {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &CacheWarmer{
		tracer:    tracer,
		predictor: predictor,
		symbols:   symbols,
		metrics:   m,
		cron:      cron.New(cron.WithParser(parser)),
		logger:    log.With().Str("component", "cache_warmer").Logger(),
	}
}

// SetNotifier attaches n to every subsequent warm pass. A nil n disables
// notifications.
func (w *CacheWarmer) SetNotifier(n Notifier) {
	w.notifier = n
}

// Schedule registers the warm run on spec. Both five and six field
// expressions and descriptors such as "@every 5m" are accepted.
func (w *CacheWarmer) Schedule(ctx context.Context, spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return fmt.Errorf("empty cron expression: %w", domain.ErrInvalidInput)
	}
	if _, err := w.cron.AddFunc(spec, func() {
		if err := w.RunOnce(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("cache warm run finished with errors")
		}
	}); err != nil {
		return fmt.Errorf("register warm schedule %q: %w", spec, err)
	}
	return nil
}

// Start runs one warm pass, then hands over to the scheduler. Blocks until
// ctx is cancelled.
func (w *CacheWarmer) Start(ctx context.Context) {
	if w.predictor == nil || len(w.symbols) == 0 {
		w.logger.Info().Msg("cache warmer disabled: nothing to warm")
		<-ctx.Done()
		return
	}

	names := make([]string, len(w.symbols))
	for i, e := range w.symbols {
		names[i] = e.String()
	}
	w.logger.Info().Strs("symbols", names).Msg("cache warmer starting")
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("initial cache warm finished with errors")
	}
	w.cron.Start()

	<-ctx.Done()
	stopped := w.cron.Stop()
	<-stopped.Done()
	w.logger.Info().Msg("cache warmer stopped")
}

// RunOnce warms every configured symbol and joins the per-symbol errors.
func (w *CacheWarmer) RunOnce(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "job.cache-warm")
	defer span.End()
	span.SetAttributes(attribute.Int("symbols", len(w.symbols)))

	var (
		errs     []error
		analyses []*domain.Analysis
	)
	for _, entry := range w.symbols {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		analysis, err := w.predictor.Predict(ctx, entry.Mode, entry.Symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry, err))
			continue
		}
		w.logger.Debug().
			Str("mode", string(entry.Mode)).
			Str("symbol", entry.Symbol).
			Str("signal", string(analysis.Prediction.Signal)).
			Int("confidence", analysis.Prediction.Confidence).
			Msg("warmed")
		analyses = append(analyses, analysis)
	}

	if w.notifier != nil && len(analyses) > 0 {
		if err := w.notifier.NotifyAnalyses(ctx, analyses); err != nil {
			w.logger.Warn().Err(err).Msg("failed to deliver warm run alerts")
		}
	}

	err := errors.Join(errs...)
	w.metrics.WarmRun(err)
	return err
}
