package stats_test

import (
	"errors"
	"math"
	"testing"

	"github.com/headline-goat/ab-report/internal/stats"
)

func TestTwoProportionZTest_ClearDifference(t *testing.T) {
	// 10% (100/1000) vs 5% (50/1000)
	res, err := stats.TwoProportionZTest(100, 1000, 50, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(res.Z-4.2447) > 0.001 {
		t.Errorf("z = %f, want ~4.2447", res.Z)
	}
	if res.PValue > 0.0001 {
		t.Errorf("expected p-value < 0.0001, got %f", res.PValue)
	}
}

func TestTwoProportionZTest_EqualRates(t *testing.T) {
	res, err := stats.TwoProportionZTest(50, 1000, 50, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Z != 0 {
		t.Errorf("expected z = 0 for equal rates, got %f", res.Z)
	}
	if math.Abs(res.PValue-1) > 1e-12 {
		t.Errorf("expected p-value 1 for equal rates, got %f", res.PValue)
	}
}

func TestTwoProportionZTest_KnownValue(t *testing.T) {
	// 1/2 vs 2/2: pooled 0.75, z = -0.5/sqrt(0.1875)
	res, err := stats.TwoProportionZTest(1, 2, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(res.Z-(-1.154700)) > 1e-6 {
		t.Errorf("z = %f, want -1.154700", res.Z)
	}
	if math.Abs(res.PValue-0.248213) > 1e-5 {
		t.Errorf("p-value = %f, want ~0.248213", res.PValue)
	}
	if res.Pooled != 0.75 {
		t.Errorf("pooled = %f, want 0.75", res.Pooled)
	}
}

func TestTwoProportionZTest_SmallSample(t *testing.T) {
	// Small samples should not be significant even with different rates
	res, err := stats.TwoProportionZTest(5, 20, 2, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PValue < 0.05 {
		t.Errorf("expected p-value >= 0.05 for small sample, got %f", res.PValue)
	}
}

func TestTwoProportionZTest_ZeroTrials(t *testing.T) {
	cases := [][4]int{
		{0, 0, 0, 0},
		{10, 100, 0, 0},
		{0, 0, 3, 10},
	}

	for _, c := range cases {
		_, err := stats.TwoProportionZTest(c[0], c[1], c[2], c[3])
		if !errors.Is(err, stats.ErrInsufficientData) {
			t.Errorf("%v: expected ErrInsufficientData, got %v", c, err)
		}
	}
}

func TestTwoProportionZTest_DegeneratePooledProportion(t *testing.T) {
	if _, err := stats.TwoProportionZTest(0, 50, 0, 40); !errors.Is(err, stats.ErrInsufficientData) {
		t.Errorf("no conversions: expected ErrInsufficientData, got %v", err)
	}
	if _, err := stats.TwoProportionZTest(50, 50, 40, 40); !errors.Is(err, stats.ErrInsufficientData) {
		t.Errorf("all conversions: expected ErrInsufficientData, got %v", err)
	}
}

func TestTwoProportionZTest_InvalidCounts(t *testing.T) {
	if _, err := stats.TwoProportionZTest(11, 10, 1, 10); !errors.Is(err, stats.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
