package indicator

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"sentinel/internal/domain"
)

func TestSMAMatchesNaiveWindowMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	series := make([]float64, 64)
	for i := range series {
		series[i] = 50 + rng.Float64()*100
	}

	for _, period := range []int{1, 3, 14, 64} {
		got, err := SMA(series, period)
		if err != nil {
			t.Fatalf("period %d: unexpected error: %v", period, err)
		}
		if len(got) != len(series)-period+1 {
			t.Fatalf("period %d: expected length %d, got %d", period, len(series)-period+1, len(got))
		}
		for i := range got {
			var sum float64
			for _, v := range series[i : i+period] {
				sum += v
			}
			want := sum / float64(period)
			if math.Abs(got[i]-want) > 1e-9 {
				t.Fatalf("period %d index %d: expected %.12f, got %.12f", period, i, want, got[i])
			}
		}
	}
}

func TestSMAPeriodLongerThanSeries(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSMAInvalidInput(t *testing.T) {
	if _, err := SMA([]float64{1, 2}, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero period, got %v", err)
	}
	if _, err := SMA(nil, 3); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty series, got %v", err)
	}
}

func TestEMASeedAndLength(t *testing.T) {
	series := []float64{10, 11, 12, 11, 13, 15, 14}
	got, err := EMA(series, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(series) {
		t.Fatalf("expected length %d, got %d", len(series), len(got))
	}
	if got[0] != series[0] {
		t.Fatalf("expected seed %.2f, got %.2f", series[0], got[0])
	}
	// k = 0.5 for period 3
	if math.Abs(got[1]-10.5) > 1e-12 || math.Abs(got[2]-11.25) > 1e-12 {
		t.Fatalf("unexpected recurrence values: %v", got[:3])
	}
}

func TestEMAInvalidInput(t *testing.T) {
	if _, err := EMA(nil, 20); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty series, got %v", err)
	}
	if _, err := EMA([]float64{1}, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative period, got %v", err)
	}
}

func TestRSINeutralForShortSeries(t *testing.T) {
	for n := 1; n <= 14; n++ {
		series := make([]float64, n)
		for i := range series {
			series[i] = float64(100 - i*3)
		}
		got, err := RSI(series, DefaultRSIPeriod)
		if err != nil {
			t.Fatalf("length %d: unexpected error: %v", n, err)
		}
		if got != 50 {
			t.Fatalf("length %d: expected neutral 50, got %.4f", n, got)
		}
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	series := []float64{5, 4, 3}
	for i := 0; i < 14; i++ {
		// flat steps count as non-negative transitions
		series = append(series, 3+float64(i/2))
	}
	got, err := RSI(series, DefaultRSIPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100 {
		t.Fatalf("expected 100, got %.4f", got)
	}
}

func TestRSIKnownValue(t *testing.T) {
	// one gain of 2 and one loss of 1 over period 2 => RS 2 => 66.67
	got, err := RSI([]float64{10, 12, 11}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-200.0/3.0) > 1e-9 {
		t.Fatalf("expected 66.667, got %.6f", got)
	}
}

func TestRSIBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 15 + rng.Intn(100)
		series := make([]float64, n)
		price := 100.0
		for i := range series {
			price *= 1 + (rng.Float64()-0.5)*0.1
			series[i] = price
		}
		got, err := RSI(series, DefaultRSIPeriod)
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		if got < 0 || got > 100 || math.IsNaN(got) {
			t.Fatalf("trial %d: rsi out of bounds: %.4f", trial, got)
		}
	}
}

func TestRSIInvalidInput(t *testing.T) {
	if _, err := RSI([]float64{}, DefaultRSIPeriod); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty series, got %v", err)
	}
	if _, err := RSI([]float64{1, 2, 3}, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero period, got %v", err)
	}
}

func TestSeriesHelpers(t *testing.T) {
	bars := []domain.PriceBar{
		{Time: 1, Close: 10, Volume: 100},
		{Time: 2, Close: 12, Volume: 300},
	}
	closes := Closes(bars)
	volumes := Volumes(bars)
	if closes[1] != 12 || volumes[0] != 100 {
		t.Fatalf("unexpected extraction: %v %v", closes, volumes)
	}
	if Mean(volumes) != 200 || Mean(nil) != 0 {
		t.Fatalf("unexpected mean: %.2f", Mean(volumes))
	}
	if Last(closes) != 12 || Last(nil) != 0 {
		t.Fatalf("unexpected last: %.2f", Last(closes))
	}
}
