package colmean

import "github.com/LynnColeArt/colmean/device"

// rowMajorSumKernel accumulates column sums of a row-major N×D matrix into
// mu, which must be zeroed beforehand.
//
// Block (bx, by) owns columns [by*tile, (by+1)*tile). Thread t works on
// column t%tile of the tile and visits rows t/tile + bx*rowsPerIter,
// advancing by rowsPerIter*gridDim.x so a fixed grid covers any N.
// Per-thread sums are combined per column in shared memory, then one
// thread per column adds the block's sum into mu. Both steps are atomic:
// several row groups of a block share a tile slot, and many blocks share
// an output slot.
func rowMajorSumKernel[T device.Float](mu, data []T, D, N, tile int) device.KernelFunc {
	return func(tid device.ThreadID) {
		t := tid.ThreadIdx.X
		rowsPerIter := tid.BlockDim.X / tile
		thisCol := t % tile
		thisRow := t / tile
		col := thisCol + tid.BlockIdx.Y*tile
		row := thisRow + tid.BlockIdx.X*rowsPerIter
		stride := rowsPerIter * tid.GridDim.X

		var acc T
		if col < D {
			for i := row; i < N; i += stride {
				acc += data[i*D+col]
			}
		}

		smu := device.View[T](tid.Shared())[:tile]
		if t < tile {
			smu[t] = 0
		}
		tid.SyncThreads()
		device.AtomicAdd(&smu[thisCol], acc)
		tid.SyncThreads()
		if t < tile && col < D {
			device.AtomicAdd(&mu[col], smu[t])
		}
	}
}
