package service

import (
	"context"
	"errors"
	"fmt"

	"sentinel/internal/domain"
	"sentinel/internal/metrics"
	"sentinel/internal/provider"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// cryptoPrimaryLimit gives the slow EMA enough warm-up on daily bars.
	cryptoPrimaryLimit = 150
	secondaryLimit     = 100
)

type HistorySource interface {
	History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error)
}

type SignalEngine interface {
	Generate(primary, secondary []domain.PriceBar) (*domain.PredictionResult, error)
}

// PredictionService fetches the series an asset mode needs and runs the
// signal engine over them.
type PredictionService struct {
	tracer  trace.Tracer
	history HistorySource
	engine  SignalEngine
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewPredictionService(tracer trace.Tracer, history HistorySource, engine SignalEngine, m *metrics.Metrics) *PredictionService {
	return &PredictionService{
		tracer:  tracer,
		history: history,
		engine:  engine,
		metrics: m,
		logger:  log.With().Str("component", "prediction_service").Logger(),
	}
}

// Predict analyses symbol. Crypto uses daily bars confirmed by a 4h
// secondary series; when the secondary fetch fails the daily trend is used.
func (s *PredictionService) Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "prediction-service.predict")
	defer span.End()
	span.SetAttributes(attribute.String("mode", string(mode)), attribute.String("symbol", symbol))

	analysis, err := s.predict(ctx, mode, symbol)
	if err != nil {
		span.RecordError(err)
		s.metrics.PredictionFailed(ErrorKind(err))
		return nil, err
	}
	s.metrics.PredictionServed(string(mode), string(analysis.Prediction.Signal))
	return analysis, nil
}

func (s *PredictionService) predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error) {
	sym, ok := domain.NormalizeSymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("invalid symbol %q: %w", symbol, domain.ErrInvalidInput)
	}

	primaryLimit := domain.DefaultLimit
	if mode == domain.ModeCrypto {
		primaryLimit = cryptoPrimaryLimit
	}
	primary, err := s.history.History(ctx, mode, sym, domain.DefaultInterval, primaryLimit)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", sym, err)
	}

	var secondary []domain.PriceBar
	if mode == domain.ModeCrypto {
		secondary, err = s.history.History(ctx, mode, sym, domain.SecondaryInterval, secondaryLimit)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", sym).Msg("secondary series unavailable, using daily trend")
			secondary = nil
		}
	}

	result, err := s.engine.Generate(primary, secondary)
	if err != nil {
		return nil, fmt.Errorf("generate prediction for %s: %w", sym, err)
	}

	return &domain.Analysis{
		Symbol:     sym,
		Mode:       mode,
		Interval:   domain.DefaultInterval,
		LastPrice:  primary[len(primary)-1].Close,
		History:    primary,
		Prediction: result,
	}, nil
}

// Error kinds reported by ErrorKind.
const (
	KindInvalidInput     = "invalid_input"
	KindInsufficientData = "insufficient_data"
	KindNoData           = "no_data"
	KindUpstream         = "upstream"
	KindInternal         = "internal"
)

// ErrorKind classifies err for metrics and HTTP status mapping.
func ErrorKind(err error) string {
	var statusErr *provider.StatusError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, domain.ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, provider.ErrNoData):
		return KindNoData
	case errors.As(err, &statusErr):
		return KindUpstream
	}
	return KindInternal
}
