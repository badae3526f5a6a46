package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ZTest is the outcome of a two-proportion z-test.
type ZTest struct {
	Z      float64
	PValue float64 // two-sided
	Pooled float64
	SE     float64
}

// TwoProportionZTest compares conversion rates c1/n1 and c2/n2 using the
// pooled standard error. Z is positive when the first proportion is larger.
func TwoProportionZTest(c1, n1, c2, n2 int) (ZTest, error) {
	if c1 < 0 || n1 < 0 || c1 > n1 || c2 < 0 || n2 < 0 || c2 > n2 {
		return ZTest{}, fmt.Errorf("%w: %d/%d vs %d/%d", ErrInvalidInput, c1, n1, c2, n2)
	}
	if n1 == 0 || n2 == 0 {
		return ZTest{}, fmt.Errorf("z-test: %w: a group has no trials", ErrInsufficientData)
	}

	p1 := float64(c1) / float64(n1)
	p2 := float64(c2) / float64(n2)

	// Pooled proportion under the null hypothesis (p1 = p2)
	pooled := float64(c1+c2) / float64(n1+n2)
	if pooled == 0 || pooled == 1 {
		return ZTest{}, fmt.Errorf("z-test: %w: pooled proportion is %v", ErrInsufficientData, pooled)
	}

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	z := (p1 - p2) / se

	return ZTest{
		Z:      z,
		PValue: 2 * distuv.UnitNormal.Survival(math.Abs(z)),
		Pooled: pooled,
		SE:     se,
	}, nil
}
