package colmean

import (
	"fmt"

	"github.com/LynnColeArt/colmean/device"
)

// Options tunes the launch geometry of the reduction kernels.
type Options struct {
	// ThreadsPerBlock is the block size of both kernels.
	ThreadsPerBlock int

	// TileWidth is the number of columns one row-major block owns. It must
	// divide ThreadsPerBlock.
	TileWidth int

	// RowsPerThread sizes the row-major grid: each block covers
	// (ThreadsPerBlock/TileWidth)*RowsPerThread rows per grid-stride step.
	RowsPerThread int

	// MaxRowBlocks caps the row-major grid along rows; the grid-stride loop
	// covers the remaining rows. Zero means no cap.
	MaxRowBlocks int
}

// DefaultOptions returns the geometry the kernels are tuned for:
// 256 threads per block, 32-column tiles and 4 rows per thread.
func DefaultOptions() Options {
	return Options{
		ThreadsPerBlock: device.DefaultBlockSize,
		TileWidth:       device.WarpSize,
		RowsPerThread:   4,
	}
}

func (o Options) validate(op string) error {
	switch {
	case o.ThreadsPerBlock < 1 || o.ThreadsPerBlock > device.MaxThreadsPerBlock:
		return device.NewInvalidArgError(op, fmt.Sprintf("threads per block must be in [1, %d], got %d", device.MaxThreadsPerBlock, o.ThreadsPerBlock))
	case o.TileWidth < 1 || o.ThreadsPerBlock%o.TileWidth != 0:
		return device.NewInvalidArgError(op, fmt.Sprintf("tile width %d must be positive and divide %d threads per block", o.TileWidth, o.ThreadsPerBlock))
	case o.RowsPerThread < 1:
		return device.NewInvalidArgError(op, fmt.Sprintf("rows per thread must be positive, got %d", o.RowsPerThread))
	case o.MaxRowBlocks < 0:
		return device.NewInvalidArgError(op, fmt.Sprintf("max row blocks must not be negative, got %d", o.MaxRowBlocks))
	}
	return nil
}

// rowMajorGrid returns the launch geometry of the row-major kernel.
func (o Options) rowMajorGrid(D, N int, elemSize int) device.LaunchConfig {
	rowsPerBlk := (o.ThreadsPerBlock / o.TileWidth) * o.RowsPerThread
	rowBlocks := device.CeilDiv(N, rowsPerBlk)
	if o.MaxRowBlocks > 0 && rowBlocks > o.MaxRowBlocks {
		rowBlocks = o.MaxRowBlocks
	}
	return device.LaunchConfig{
		Grid:      device.Dim3{X: rowBlocks, Y: device.CeilDiv(D, o.TileWidth)},
		Block:     device.Dim3{X: o.ThreadsPerBlock},
		SharedMem: o.TileWidth * elemSize,
	}
}

// colMajorGrid returns the launch geometry of the column-major kernel.
func (o Options) colMajorGrid(D int, elemSize int) device.LaunchConfig {
	return device.LaunchConfig{
		Grid:      device.Dim3{X: D},
		Block:     device.Dim3{X: o.ThreadsPerBlock},
		SharedMem: o.ThreadsPerBlock * elemSize,
	}
}
