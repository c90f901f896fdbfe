package indicator

import "sentinel/internal/domain"

func Closes(bars []domain.PriceBar) []float64 {
	values := make([]float64, len(bars))
	for i := range bars {
		values[i] = bars[i].Close
	}
	return values
}

func Volumes(bars []domain.PriceBar) []float64 {
	values := make([]float64, len(bars))
	for i := range bars {
		values[i] = bars[i].Volume
	}
	return values
}

// Mean returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Last returns the final element, or 0 when values is empty.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
