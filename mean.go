package colmean

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/LynnColeArt/colmean/device"
	"github.com/LynnColeArt/colmean/internal/logging"
)

// Mean enqueues the per-column mean of the N×D matrix in data onto q and
// stores it in the first D elements of mu.
//
// rowMajor selects the layout of data. sample divides by N-1 instead of N
// and is only supported for row-major input. The call returns once the
// work is enqueued; errors raised while it runs are reported by
// q.Synchronize. mu and data must stay valid until then.
func Mean[T device.Float](mu, data device.DevicePtr, D, N int, sample, rowMajor bool, q device.Queue) error {
	return MeanWithOptions[T](mu, data, D, N, sample, rowMajor, q, DefaultOptions())
}

// MeanWithOptions is Mean with explicit launch geometry.
func MeanWithOptions[T device.Float](mu, data device.DevicePtr, D, N int, sample, rowMajor bool, q device.Queue, opts Options) error {
	const op = "Mean"
	out, x, err := checkArgs[T](op, mu, data, D, N, opts)
	if err != nil {
		return err
	}
	if sample {
		if !rowMajor {
			return ErrSampleColumnMajor
		}
		if N < 2 {
			return ErrSampleTooFewRows
		}
	}

	if !rowMajor {
		return launchColMajor(op, q, out, x, D, N, T(N), opts)
	}

	if err := launchRowMajorSum(op, q, mu, out, x, D, N, opts); err != nil {
		return err
	}
	divisor := N
	if sample {
		divisor = N - 1
	}
	ratio := T(1) / T(divisor)
	if err := device.ScalarMultiply(q, mu, mu, ratio, D); err != nil {
		return fmt.Errorf("%s: normalize: %w", op, err)
	}
	return nil
}

// Sum enqueues the per-column sum of the N×D matrix in data onto q and
// stores it in the first D elements of out.
func Sum[T device.Float](out, data device.DevicePtr, D, N int, rowMajor bool, q device.Queue) error {
	const op = "Sum"
	opts := DefaultOptions()
	o, x, err := checkArgs[T](op, out, data, D, N, opts)
	if err != nil {
		return err
	}
	if rowMajor {
		return launchRowMajorSum(op, q, out, o, x, D, N, opts)
	}
	return launchColMajor(op, q, o, x, D, N, 1, opts)
}

// MeanOf returns the column means of a host matrix. It runs the reduction
// on a private stream of the default context and waits for it.
func MeanOf[T device.Float](data []T, D, N int, sample, rowMajor bool) ([]T, error) {
	return MeanOfWithOptions(data, D, N, sample, rowMajor, DefaultOptions())
}

// MeanOfWithOptions is MeanOf with explicit launch geometry.
func MeanOfWithOptions[T device.Float](data []T, D, N int, sample, rowMajor bool, opts Options) ([]T, error) {
	if D <= 0 {
		return nil, device.NewInvalidArgError("Mean", fmt.Sprintf("invalid dimensions D=%d N=%d", D, N))
	}
	mu := make([]T, D)

	ctx := device.DefaultContext()
	s := ctx.CreateStream()
	defer ctx.DestroyStream(s)

	if err := MeanWithOptions[T](device.HostPtr(mu), device.HostPtr(data), D, N, sample, rowMajor, s, opts); err != nil {
		return nil, err
	}
	if err := s.Synchronize(); err != nil {
		return nil, err
	}
	return mu, nil
}

// checkArgs validates dimensions and buffer sizes and returns the typed
// output (length D) and input (length N*D) views.
func checkArgs[T device.Float](op string, out, data device.DevicePtr, D, N int, opts Options) ([]T, []T, error) {
	if D <= 0 || N <= 0 {
		return nil, nil, device.NewInvalidArgError(op, fmt.Sprintf("invalid dimensions D=%d N=%d", D, N))
	}
	if N > int(^uint(0)>>1)/D {
		return nil, nil, device.NewInvalidArgError(op, fmt.Sprintf("N*D overflows: D=%d N=%d", D, N))
	}
	if err := opts.validate(op); err != nil {
		return nil, nil, err
	}
	o, x := device.View[T](out), device.View[T](data)
	if len(o) < D {
		return nil, nil, device.NewInvalidArgError(op, fmt.Sprintf("output holds %d elements, need %d", len(o), D))
	}
	if len(x) < N*D {
		return nil, nil, device.NewInvalidArgError(op, fmt.Sprintf("input holds %d elements, need %d", len(x), N*D))
	}
	return o[:D], x[:N*D], nil
}

// launchRowMajorSum zeroes out and accumulates column sums into it.
func launchRowMajorSum[T device.Float](op string, q device.Queue, outPtr device.DevicePtr, out, x []T, D, N int, opts Options) error {
	var zero T
	elem := int(unsafe.Sizeof(zero))
	if err := device.MemsetAsync(q, outPtr, 0, D*elem); err != nil {
		return fmt.Errorf("%s: zero output: %w", op, err)
	}

	cfg := opts.rowMajorGrid(D, N, elem)
	logLaunch(op, "row-major", cfg, D, N)
	if err := device.LaunchCooperative(q, rowMajorSumKernel(out, x, D, N, opts.TileWidth), cfg); err != nil {
		return fmt.Errorf("%s: row-major kernel: %w", op, err)
	}
	return nil
}

func launchColMajor[T device.Float](op string, q device.Queue, out, x []T, D, N int, divisor T, opts Options) error {
	var zero T
	cfg := opts.colMajorGrid(D, int(unsafe.Sizeof(zero)))
	logLaunch(op, "column-major", cfg, D, N)
	if err := device.LaunchCooperative(q, colMajorKernel(out, x, N, divisor), cfg); err != nil {
		return fmt.Errorf("%s: column-major kernel: %w", op, err)
	}
	return nil
}

func logLaunch(op, layout string, cfg device.LaunchConfig, D, N int) {
	log := logging.Get()
	if !log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	log.WithFields(logrus.Fields{
		"op":     op,
		"layout": layout,
		"D":      D,
		"N":      N,
		"grid":   cfg.Grid.String(),
		"block":  cfg.Block.String(),
		"shared": cfg.SharedMem,
	}).Debug("launching reduction kernel")
}
