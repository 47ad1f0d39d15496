package colmean

import (
	"fmt"
	"math"

	"github.com/LynnColeArt/colmean/device"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int

	// CheckNaN determines if NaN values should be considered equal
	CheckNaN bool
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-7,
		RelTol:   1e-5,
		ULPTol:   4,
		CheckNaN: true,
	}
}

// RelaxedTolerance returns relaxed tolerance for accumulated operations.
// Atomic accumulation reorders additions, so long float32 columns need it.
func RelaxedTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-5,
		RelTol:   1e-3,
		ULPTol:   16,
		CheckNaN: true,
	}
}

// NearEqual checks if two values are equal within tolerance
func NearEqual[T device.Float](a, b T, tol ToleranceConfig) bool {
	fa, fb := float64(a), float64(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return tol.CheckNaN && math.IsNaN(fa) && math.IsNaN(fb)
	}

	// Exact equality also covers matching infinities and ±0
	if a == b {
		return true
	}
	if math.IsInf(fa, 0) || math.IsInf(fb, 0) {
		return false
	}

	diff := math.Abs(fa - fb)
	if diff <= tol.AbsTol {
		return true
	}
	if diff <= math.Max(math.Abs(fa), math.Abs(fb))*tol.RelTol {
		return true
	}
	return tol.ULPTol > 0 && ULPDiff(a, b) <= tol.ULPTol
}

// ULPDiff computes the difference in ULPs between two values of the same
// sign. Values of different signs report math.MaxInt32.
func ULPDiff[T device.Float](a, b T) int {
	var ua, ub uint64
	var sign uint64
	switch any(a).(type) {
	case float32:
		ua, ub = uint64(math.Float32bits(float32(a))), uint64(math.Float32bits(float32(b)))
		sign = 1 << 31
	default:
		ua, ub = math.Float64bits(float64(a)), math.Float64bits(float64(b))
		sign = 1 << 63
	}
	if (ua^ub)&sign != 0 {
		return math.MaxInt32
	}
	d := ua - ub
	if ub > ua {
		d = ub - ua
	}
	if d > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(d)
}

// VerificationResult summarizes an element-wise comparison
type VerificationResult struct {
	MaxAbsError float64
	MaxRelError float64
	MaxULPError int
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyArray compares two arrays and returns detailed results
func VerifyArray[T device.Float](expected, actual []T, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		result.FirstError = min(len(expected), len(actual))
		return result
	}

	for i := range expected {
		if NearEqual(expected[i], actual[i], tol) {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}

		absDiff := math.Abs(float64(expected[i]) - float64(actual[i]))
		result.MaxAbsError = math.Max(result.MaxAbsError, absDiff)
		if expected[i] != 0 {
			result.MaxRelError = math.Max(result.MaxRelError, absDiff/math.Abs(float64(expected[i])))
		}
		result.MaxULPError = max(result.MaxULPError, ULPDiff(expected[i], actual[i]))
	}

	return result
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(max(r.TotalItems, 1)) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  Max ULP difference: %d\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError, r.MaxULPError,
		r.FirstError)
}
