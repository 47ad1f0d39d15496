package colmean

import "github.com/LynnColeArt/colmean/device"

// GenerateMatrix generates a deterministic rows×cols matrix in [0, 1) using a
// linear congruential generator (LCG), so runs are reproducible.
//
// Example:
//
//	x := GenerateMatrix[float32](1000, 33, 42) // row-major 1000×33
func GenerateMatrix[T device.Float](rows, cols int, seed uint64) []T {
	data := make([]T, rows*cols)
	rng := seed
	for i := range data {
		rng = rng*1103515245 + 12345 // LCG parameters from Numerical Recipes
		// 24 bits are exact in float32, keeping every value below 1.
		data[i] = T(float64(uint32(rng>>16)>>8) / float64(1<<24))
	}
	return data
}

// GenerateMatrixRange generates deterministic data in [lo, hi).
func GenerateMatrixRange[T device.Float](rows, cols int, seed uint64, lo, hi T) []T {
	data := GenerateMatrix[T](rows, cols, seed)
	scale := hi - lo
	for i := range data {
		data[i] = data[i]*scale + lo
	}
	return data
}

// Transpose converts a row-major rows×cols matrix to column-major storage
// of the same logical values (and vice versa with rows and cols swapped).
func Transpose[T any](data []T, rows, cols int) []T {
	out := make([]T, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = data[i*cols+j]
		}
	}
	return out
}
