package device

import "fmt"

// ScalarMultiply enqueues out[i] = alpha * in[i] for i < n. out and in may
// alias.
func ScalarMultiply[T Float](q Queue, out, in DevicePtr, alpha T, n int) error {
	const op = "ScalarMultiply"
	if n <= 0 {
		return NewInvalidArgError(op, fmt.Sprintf("length must be positive, got %d", n))
	}
	o, x := View[T](out), View[T](in)
	if len(o) < n || len(x) < n {
		return NewInvalidArgError(op, fmt.Sprintf("buffers hold %d and %d elements, need %d", len(o), len(x), n))
	}
	o, x = o[:n], x[:n]

	cfg := LaunchConfig{
		Grid:  Dim3{X: CeilDiv(n, DefaultBlockSize)},
		Block: Dim3{X: DefaultBlockSize},
	}
	return Launch(q, func(tid ThreadID) {
		if i := tid.Global(); i < n {
			o[i] = alpha * x[i]
		}
	}, cfg)
}

// CeilDiv returns a/b rounded up, for positive b.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
