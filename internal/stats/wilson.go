package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInsufficientData is returned when a statistic cannot be defined
	// for the given counts (zero trials, degenerate pooled proportion).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidInput is returned for counts or confidence levels outside
	// their domain.
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultConfidence is the confidence level used when none is configured.
const DefaultConfidence = 0.95

// WilsonInterval calculates the Wilson score confidence interval
// for a binomial proportion. It stays inside [0, 1] and behaves well for
// small samples and rates near 0 or 1, unlike the normal approximation.
func WilsonInterval(successes, trials int, confidence float64) (lower, upper float64, err error) {
	if successes < 0 || trials < 0 || successes > trials {
		return 0, 0, fmt.Errorf("%w: %d successes out of %d trials", ErrInvalidInput, successes, trials)
	}
	if trials == 0 {
		return 0, 0, fmt.Errorf("wilson interval: %w: zero trials", ErrInsufficientData)
	}

	z, err := ZScore(confidence)
	if err != nil {
		return 0, 0, err
	}

	p := float64(successes) / float64(trials)
	n := float64(trials)
	z2 := z * z

	denominator := 1 + z2/n
	center := (p + z2/(2*n)) / denominator
	spread := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denominator

	lower = center - spread
	upper = center + spread

	// Rounding can push a bound a few ulps past the point estimate or [0, 1].
	lower = math.Max(0, math.Min(lower, p))
	upper = math.Min(1, math.Max(upper, p))

	return lower, upper, nil
}

// ZScore returns the two-sided critical value of the standard normal
// distribution for a confidence level, e.g. 0.95 -> 1.959964.
func ZScore(confidence float64) (float64, error) {
	if !(confidence > 0 && confidence < 1) {
		return 0, fmt.Errorf("%w: confidence %v not in (0, 1)", ErrInvalidInput, confidence)
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2), nil
}
