// Package indicator implements the moving averages and momentum oscillator
// the prediction engine is built on. All functions are pure.
package indicator

import (
	"fmt"

	"sentinel/internal/domain"
)

const DefaultRSIPeriod = 14

// SMA returns the simple moving average of every full window in series.
// A period longer than the series yields an empty slice.
func SMA(series []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sma period %d: %w", period, domain.ErrInvalidInput)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("sma over empty series: %w", domain.ErrInvalidInput)
	}
	if period > len(series) {
		return []float64{}, nil
	}

	out := make([]float64, 0, len(series)-period+1)
	var sum float64
	for i, v := range series {
		sum += v
		if i >= period {
			sum -= series[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out, nil
}

// EMA returns an exponential moving average seeded from series[0], so the
// first period-1 values are warm-up approximations.
func EMA(series []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema period %d: %w", period, domain.ErrInvalidInput)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("ema over empty series: %w", domain.ErrInvalidInput)
	}

	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*alpha + out[i-1]*(1-alpha)
	}
	return out, nil
}

// RSI returns the relative strength index over the last period transitions
// using plain (not Wilder-smoothed) averages. Series shorter than period+1
// report the neutral value 50.
func RSI(series []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("rsi period %d: %w", period, domain.ErrInvalidInput)
	}
	if len(series) == 0 {
		return 0, fmt.Errorf("rsi over empty series: %w", domain.ErrInvalidInput)
	}
	if len(series) < period+1 {
		return 50, nil
	}

	var gains, losses float64
	for i := len(series) - period; i < len(series); i++ {
		delta := series[i] - series[i-1]
		if delta >= 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	return rsiFromAvg(gains/float64(period), losses/float64(period)), nil
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
