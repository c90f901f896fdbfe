package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sentinel/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "sentinel:bars"

// SeriesKey identifies one cached bar series.
type SeriesKey struct {
	Mode     domain.AssetMode
	Symbol   string
	Interval string
	Limit    int
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", keyPrefix, k.Mode, k.Symbol, k.Interval, k.Limit)
}

// SeriesCache stores bar series as JSON with a fixed TTL. A nil client makes
// every lookup a miss and every store a no-op.
type SeriesCache struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger zerolog.Logger
}

func NewSeriesCache(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *SeriesCache {
	return &SeriesCache{
		client: client,
		ttl:    ttl,
		tracer: tracer,
		logger: log.With().Str("component", "series_cache").Logger(),
	}
}

// Get reports whether key was found. Redis and decode failures are logged
// and treated as misses.
func (c *SeriesCache) Get(ctx context.Context, key SeriesKey) ([]domain.PriceBar, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	ctx, span := c.tracer.Start(ctx, "cache.get-series")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	raw, err := c.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache read failed")
		}
		return nil, false
	}

	var bars []domain.PriceBar
	if err := json.Unmarshal(raw, &bars); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache entry corrupt")
		return nil, false
	}
	span.SetAttributes(attribute.Bool("hit", true))
	return bars, true
}

// Set stores bars under key. Failures are logged only.
func (c *SeriesCache) Set(ctx context.Context, key SeriesKey, bars []domain.PriceBar) {
	if c == nil || c.client == nil || len(bars) == 0 {
		return
	}
	ctx, span := c.tracer.Start(ctx, "cache.set-series")
	defer span.End()

	payload, err := json.Marshal(bars)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key.String(), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache write failed")
	}
}
