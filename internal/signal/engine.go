package signal

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/indicator"
)

const (
	secondsPerDay     = 24 * 60 * 60
	driftLookback     = 5
	highVolumeRatio   = 1.5
	lowVolumeRatio    = 0.5
	oversoldLevel     = 30
	overboughtLevel   = 70
	volumeAdjustment  = 10
	trendedRSIBonus   = 30
	reversalRSIBonus  = 10
	alignmentBonus    = 10
	defaultSecondary  = 50
	defaultNoiseRatio = 0.01
)

// Config holds the engine periods and scoring bounds.
type Config struct {
	RSIPeriod        int
	FastEMA          int
	SlowEMA          int
	ProjectionDays   int
	VolumeWindow     int
	SecondaryMinBars int
	BaseConfidence   int
	MaxConfidence    int
	// NoiseFraction scales the projection jitter; 0.01 gives +/-0.5% of the last close.
	NoiseFraction float64
	// Extended enables trend, volume regime and signal list output.
	Extended bool
}

func DefaultConfig() Config {
	return Config{
		RSIPeriod:        indicator.DefaultRSIPeriod,
		FastEMA:          20,
		SlowEMA:          50,
		ProjectionDays:   7,
		VolumeWindow:     5,
		SecondaryMinBars: defaultSecondary,
		BaseConfidence:   50,
		MaxConfidence:    98,
		NoiseFraction:    defaultNoiseRatio,
		Extended:         true,
	}
}

func (c Config) Validate() error {
	if c.RSIPeriod <= 0 || c.FastEMA <= 0 || c.SlowEMA <= 0 || c.ProjectionDays <= 0 || c.VolumeWindow <= 0 {
		return fmt.Errorf("engine periods must be positive: %w", domain.ErrInvalidInput)
	}
	if c.MaxConfidence < 0 || c.NoiseFraction < 0 {
		return fmt.Errorf("engine bounds must be non-negative: %w", domain.ErrInvalidInput)
	}
	return nil
}

// MinBars is the shortest primary series the projection can be computed from.
func (c Config) MinBars() int {
	return c.FastEMA + driftLookback - 1
}

// Engine turns a bar series into a rule-scored trade signal and a short
// price projection. It is safe for concurrent use.
type Engine struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine uses rng for projection jitter; a nil rng is seeded from the clock.
func NewEngine(cfg Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, rng: rng}
}

func (e *Engine) Config() Config { return e.cfg }

// Generate evaluates primary, optionally confirming the trend on a
// higher-timeframe secondary series.
func (e *Engine) Generate(primary, secondary []domain.PriceBar) (*domain.PredictionResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(primary) == 0 {
		return nil, fmt.Errorf("primary series is empty: %w", domain.ErrInvalidInput)
	}
	if len(primary) < e.cfg.MinBars() {
		return nil, fmt.Errorf("need at least %d bars, got %d: %w", e.cfg.MinBars(), len(primary), domain.ErrInsufficientData)
	}

	bars := normalizeBars(primary)
	closes := indicator.Closes(bars)

	emaFast, err := indicator.EMA(closes, e.cfg.FastEMA)
	if err != nil {
		return nil, err
	}
	emaSlow, err := indicator.EMA(closes, e.cfg.SlowEMA)
	if err != nil {
		return nil, err
	}
	rsi, err := indicator.RSI(closes, e.cfg.RSIPeriod)
	if err != nil {
		return nil, err
	}
	volume := AnalyzeVolume(bars, e.cfg.VolumeWindow)

	lastClose := indicator.Last(closes)
	signal := domain.SignalHold
	confidence := e.cfg.BaseConfidence
	var signals []string

	uptrend, fromSecondary, err := e.detectTrend(lastClose, indicator.Last(emaSlow), secondary)
	if err != nil {
		return nil, err
	}
	if fromSecondary {
		signals = append(signals, "4H Trend is "+pick(uptrend, "BULLISH", "BEARISH"))
	} else {
		signals = append(signals, "Daily Trend is "+pick(uptrend, "UP", "DOWN"))
	}

	switch volume {
	case domain.VolumeHigh:
		signals = append(signals, "High Volume Confirmation")
		confidence += volumeAdjustment
	case domain.VolumeLow:
		signals = append(signals, "Low Volume (Weak Trend)")
		confidence -= volumeAdjustment
	}

	if rsi < oversoldLevel {
		signals = append(signals, "RSI Oversold (<30)")
		if uptrend {
			signal = domain.SignalBuy
			confidence += trendedRSIBonus
		} else {
			confidence += reversalRSIBonus
		}
	} else if rsi > overboughtLevel {
		signals = append(signals, "RSI Overbought (>70)")
		if !uptrend {
			signal = domain.SignalSell
			confidence += trendedRSIBonus
		} else {
			confidence += reversalRSIBonus
		}
	}

	if indicator.Last(emaFast) > indicator.Last(emaSlow) {
		signals = append(signals, "Bullish EMA Alignment")
		if signal == domain.SignalBuy {
			confidence += alignmentBonus
		}
	} else {
		signals = append(signals, "Bearish EMA Alignment")
		if signal == domain.SignalSell {
			confidence += alignmentBonus
		}
	}

	result := &domain.PredictionResult{
		PredictedData: e.project(bars[len(bars)-1].Time, lastClose, emaFast),
		Signal:        signal,
		Confidence:    clampInt(confidence, 0, e.cfg.MaxConfidence),
		RSIValue:      int(math.Round(rsi)),
	}
	if e.cfg.Extended {
		result.Trend4h = domain.Trend(pick(uptrend, string(domain.TrendUp), string(domain.TrendDown)))
		result.VolumeAnalysis = volume
		result.Signals = signals
	}
	return result, nil
}

// detectTrend prefers the secondary series when it is long enough.
func (e *Engine) detectTrend(lastClose, lastSlow float64, secondary []domain.PriceBar) (uptrend, fromSecondary bool, err error) {
	if len(secondary) > e.cfg.SecondaryMinBars {
		closes := indicator.Closes(normalizeBars(secondary))
		slow, emaErr := indicator.EMA(closes, e.cfg.SlowEMA)
		if emaErr != nil {
			return false, false, emaErr
		}
		return indicator.Last(closes) > indicator.Last(slow), true, nil
	}
	return lastClose > lastSlow, false, nil
}

func (e *Engine) project(lastTime int64, lastClose float64, emaFast []float64) []domain.ProjectedPoint {
	drift := (lastClose - emaFast[len(emaFast)-driftLookback]) / driftLookback

	e.mu.Lock()
	defer e.mu.Unlock()

	points := make([]domain.ProjectedPoint, 0, e.cfg.ProjectionDays)
	for i := 1; i <= e.cfg.ProjectionDays; i++ {
		noise := (e.rng.Float64() - 0.5) * lastClose * e.cfg.NoiseFraction
		points = append(points, domain.ProjectedPoint{
			Time:  lastTime + int64(i)*secondsPerDay,
			Value: lastClose + drift*float64(i) + noise,
		})
	}
	return points
}

// AnalyzeVolume compares the mean volume of the last window bars with the
// window before it.
func AnalyzeVolume(bars []domain.PriceBar, window int) domain.VolumeRegime {
	if window <= 0 || len(bars) < 2*window {
		return domain.VolumeNormal
	}
	volumes := indicator.Volumes(bars)
	recent := indicator.Mean(volumes[len(volumes)-window:])
	older := indicator.Mean(volumes[len(volumes)-2*window : len(volumes)-window])

	switch {
	case recent > older*highVolumeRatio:
		return domain.VolumeHigh
	case recent < older*lowVolumeRatio:
		return domain.VolumeLow
	}
	return domain.VolumeNormal
}

func normalizeBars(in []domain.PriceBar) []domain.PriceBar {
	out := append([]domain.PriceBar(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time < out[j].Time
	})
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
