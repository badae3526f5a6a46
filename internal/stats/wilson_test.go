package stats_test

import (
	"errors"
	"math"
	"testing"

	"github.com/headline-goat/ab-report/internal/stats"
)

func mustWilson(t *testing.T, successes, trials int) (float64, float64) {
	t.Helper()
	lower, upper, err := stats.WilsonInterval(successes, trials, 0.95)
	if err != nil {
		t.Fatalf("WilsonInterval(%d, %d) failed: %v", successes, trials, err)
	}
	return lower, upper
}

func TestWilsonInterval_50PercentConversion(t *testing.T) {
	// 50 successes out of 100 trials
	lower, upper := mustWilson(t, 50, 100)

	if math.Abs(lower-0.4038) > 0.0005 {
		t.Errorf("lower bound %f, want ~0.4038", lower)
	}
	if math.Abs(upper-0.5962) > 0.0005 {
		t.Errorf("upper bound %f, want ~0.5962", upper)
	}
}

func TestWilsonInterval_LowConversion(t *testing.T) {
	lower, upper := mustWilson(t, 5, 100)

	if math.Abs(lower-0.0215) > 0.0005 {
		t.Errorf("lower bound %f, want ~0.0215", lower)
	}
	if math.Abs(upper-0.1118) > 0.0005 {
		t.Errorf("upper bound %f, want ~0.1118", upper)
	}
}

func TestWilsonInterval_HighConversion(t *testing.T) {
	lower, upper := mustWilson(t, 95, 100)

	if math.Abs(lower-0.8882) > 0.0005 {
		t.Errorf("lower bound %f, want ~0.8882", lower)
	}
	if math.Abs(upper-0.9785) > 0.0005 {
		t.Errorf("upper bound %f, want ~0.9785", upper)
	}
}

func TestWilsonInterval_TwoTrials(t *testing.T) {
	// Same as statsmodels proportion_confint(1, 2, method="wilson")
	lower, upper := mustWilson(t, 1, 2)

	if math.Abs(lower-0.0945) > 0.0005 || math.Abs(upper-0.9055) > 0.0005 {
		t.Errorf("got [%f, %f], want ~[0.0945, 0.9055]", lower, upper)
	}
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	_, _, err := stats.WilsonInterval(0, 0, 0.95)

	if !errors.Is(err, stats.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for zero trials, got %v", err)
	}
}

func TestWilsonInterval_InvalidCounts(t *testing.T) {
	cases := [][2]int{{5, 3}, {-1, 10}, {0, -1}}
	for _, c := range cases {
		_, _, err := stats.WilsonInterval(c[0], c[1], 0.95)
		if !errors.Is(err, stats.ErrInvalidInput) {
			t.Errorf("WilsonInterval(%d, %d): expected ErrInvalidInput, got %v", c[0], c[1], err)
		}
	}
}

func TestWilsonInterval_ZeroSuccesses(t *testing.T) {
	lower, upper := mustWilson(t, 0, 100)

	if lower != 0 {
		t.Errorf("expected lower bound 0, got %f", lower)
	}
	if upper < 0.03 || upper > 0.04 {
		t.Errorf("upper bound %f not in expected range [0.03, 0.04]", upper)
	}
}

func TestWilsonInterval_AllSuccesses(t *testing.T) {
	lower, upper := mustWilson(t, 100, 100)

	if lower < 0.96 || lower > 0.97 {
		t.Errorf("lower bound %f not in expected range [0.96, 0.97]", lower)
	}
	if upper != 1 {
		t.Errorf("expected upper bound 1, got %f", upper)
	}
}

func TestWilsonInterval_SmallSample(t *testing.T) {
	// Small sample size should have wider interval
	lower, upper := mustWilson(t, 5, 10)

	if width := upper - lower; width < 0.3 {
		t.Errorf("interval width %f too narrow for small sample", width)
	}
}

func TestWilsonInterval_HigherConfidenceIsWider(t *testing.T) {
	l90, u90, err := stats.WilsonInterval(30, 200, 0.90)
	if err != nil {
		t.Fatal(err)
	}
	l99, u99, err := stats.WilsonInterval(30, 200, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	if !(l99 < l90 && u99 > u90) {
		t.Errorf("99%% interval [%f, %f] should contain 90%% interval [%f, %f]", l99, u99, l90, u90)
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   float64
		tolerance  float64
	}{
		{0.80, 1.2816, 0.0001},
		{0.90, 1.6449, 0.0001},
		{0.95, 1.959964, 0.000001},
		{0.99, 2.5758, 0.0001},
	}

	for _, tt := range tests {
		z, err := stats.ZScore(tt.confidence)
		if err != nil {
			t.Fatalf("ZScore(%f) failed: %v", tt.confidence, err)
		}
		if math.Abs(z-tt.expected) > tt.tolerance {
			t.Errorf("ZScore(%f) = %f, want %f (tolerance %f)", tt.confidence, z, tt.expected, tt.tolerance)
		}
	}
}

func TestZScore_OutOfRange(t *testing.T) {
	for _, c := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		if _, err := stats.ZScore(c); !errors.Is(err, stats.ErrInvalidInput) {
			t.Errorf("ZScore(%v): expected ErrInvalidInput, got %v", c, err)
		}
	}
}
