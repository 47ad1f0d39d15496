package colmean

import (
	"fmt"

	"github.com/LynnColeArt/colmean/device"
)

// MeanCenter enqueues out[i,j] = data[i,j] - mu[j] for every element of the
// N×D matrix, in the layout given by rowMajor. out may alias data.
// Typical use is centering features with the vector produced by Mean on
// the same queue.
func MeanCenter[T device.Float](out, data, mu device.DevicePtr, D, N int, rowMajor bool, q device.Queue) error {
	return broadcastColumns[T]("MeanCenter", out, data, mu, D, N, rowMajor, q, func(x, m T) T { return x - m })
}

// MeanAdd is the inverse of MeanCenter: out[i,j] = data[i,j] + mu[j].
func MeanAdd[T device.Float](out, data, mu device.DevicePtr, D, N int, rowMajor bool, q device.Queue) error {
	return broadcastColumns[T]("MeanAdd", out, data, mu, D, N, rowMajor, q, func(x, m T) T { return x + m })
}

func broadcastColumns[T device.Float](op string, out, data, mu device.DevicePtr, D, N int, rowMajor bool, q device.Queue, fn func(x, m T) T) error {
	m, x, err := checkArgs[T](op, mu, data, D, N, DefaultOptions())
	if err != nil {
		return err
	}
	o := device.View[T](out)
	if len(o) < N*D {
		return device.NewInvalidArgError(op, fmt.Sprintf("output holds %d elements, need %d", len(o), N*D))
	}
	o = o[:N*D]

	n := N * D
	cfg := device.LaunchConfig{
		Grid:  device.Dim3{X: device.CeilDiv(n, device.DefaultBlockSize)},
		Block: device.Dim3{X: device.DefaultBlockSize},
	}
	err = device.Launch(q, func(tid device.ThreadID) {
		i := tid.Global()
		if i >= n {
			return
		}
		col := i / N
		if rowMajor {
			col = i % D
		}
		o[i] = fn(x[i], m[col])
	}, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
