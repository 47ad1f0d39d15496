package colmean

import (
	"testing"

	"github.com/LynnColeArt/colmean/device"
)

// newStream creates a stream that is destroyed when the test ends.
func newStream(t testing.TB) *device.Stream {
	t.Helper()
	ctx := device.NewContext(device.WithWorkers(4))
	t.Cleanup(func() { ctx.Destroy() })
	return ctx.CreateStream()
}

// meanOrFail runs MeanWithOptions on q, synchronizes and returns the D means.
func meanOrFail[T device.Float](t testing.TB, q device.Queue, data []T, D, N int, sample, rowMajor bool, opts Options) []T {
	t.Helper()
	mu := make([]T, D)
	if err := MeanWithOptions[T](device.HostPtr(mu), device.HostPtr(data), D, N, sample, rowMajor, q, opts); err != nil {
		t.Fatalf("Mean(D=%d, N=%d, sample=%v, rowMajor=%v) failed: %v", D, N, sample, rowMajor, err)
	}
	if err := q.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	return mu
}

// tolFor returns the tolerance suited to the element type.
func tolFor[T device.Float]() ToleranceConfig {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return RelaxedTolerance()
	}
	return DefaultTolerance()
}

// checkClose fails the test when actual differs from expected beyond tol.
func checkClose[T device.Float](t testing.TB, name string, expected, actual []T, tol ToleranceConfig) {
	t.Helper()
	if r := VerifyArray(expected, actual, tol); r.NumErrors != 0 {
		t.Fatalf("%s:\n%s", name, r)
	}
}
