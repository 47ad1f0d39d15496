package colmean

import "github.com/LynnColeArt/colmean/device"

// colMajorKernel reduces column blockIdx.x of a column-major N×D matrix and
// writes sum/divisor to mu[blockIdx.x]. Each output slot is written once,
// by thread 0 of its block.
func colMajorKernel[T device.Float](mu, data []T, N int, divisor T) device.KernelFunc {
	return func(tid device.ThreadID) {
		col := tid.BlockIdx.X
		start := N * col

		var acc T
		for i := tid.ThreadIdx.X; i < N; i += tid.BlockDim.X {
			acc += data[start+i]
		}

		total := blockReduceSum(tid, acc)
		if tid.ThreadIdx.X == 0 {
			mu[col] = total / divisor
		}
	}
}

// blockReduceSum combines one value per thread into a block total with a
// pairwise tree in shared memory. The shared buffer must hold BlockDim.X
// elements. Only thread 0 is guaranteed to receive the total.
func blockReduceSum[T device.Float](tid device.ThreadID, v T) T {
	n := tid.BlockDim.X
	t := tid.ThreadIdx.X
	sh := device.View[T](tid.Shared())[:n]

	sh[t] = v
	tid.SyncThreads()

	// Fold the tail beyond the largest power of two onto the head so the
	// tree below always halves evenly.
	pow := 1
	for pow*2 <= n {
		pow *= 2
	}
	if t >= pow {
		sh[t-pow] += sh[t]
	}
	tid.SyncThreads()

	for s := pow / 2; s > 0; s >>= 1 {
		if t < s {
			sh[t] += sh[t+s]
		}
		tid.SyncThreads()
	}
	return sh[0]
}
