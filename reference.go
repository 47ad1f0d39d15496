package colmean

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/LynnColeArt/colmean/device"
)

// Reference contains simple, correct implementations of the reductions,
// computed in float64 with gonum. They are used for testing and by the
// verify command to check the kernels.
type Reference struct{}

// matrix views data as an N×D gonum matrix regardless of layout.
func (Reference) matrix(data []float64, D, N int, rowMajor bool) mat.Matrix {
	if rowMajor {
		return mat.NewDense(N, D, data[:N*D])
	}
	return mat.NewDense(D, N, data[:N*D]).T()
}

// ColumnSums returns the sum of every column.
func (r Reference) ColumnSums(data []float64, D, N int, rowMajor bool) []float64 {
	m := r.matrix(data, D, N, rowMajor)
	out := make([]float64, D)
	col := make([]float64, N)
	for j := range out {
		mat.Col(col, j, m)
		out[j] = floats.Sum(col)
	}
	return out
}

// ColumnMeans returns the mean of every column, dividing by N-1 when sample
// is set.
func (r Reference) ColumnMeans(data []float64, D, N int, sample, rowMajor bool) []float64 {
	if sample {
		out := r.ColumnSums(data, D, N, rowMajor)
		floats.Scale(1/float64(N-1), out)
		return out
	}
	m := r.matrix(data, D, N, rowMajor)
	out := make([]float64, D)
	col := make([]float64, N)
	for j := range out {
		mat.Col(col, j, m)
		out[j] = stat.Mean(col, nil)
	}
	return out
}

// ReferenceMean runs Reference.ColumnMeans on data of any float type.
func ReferenceMean[T device.Float](data []T, D, N int, sample, rowMajor bool) []T {
	return fromFloat64[T](Reference{}.ColumnMeans(toFloat64(data[:N*D]), D, N, sample, rowMajor))
}

// ReferenceSum runs Reference.ColumnSums on data of any float type.
func ReferenceSum[T device.Float](data []T, D, N int, rowMajor bool) []T {
	return fromFloat64[T](Reference{}.ColumnSums(toFloat64(data[:N*D]), D, N, rowMajor))
}

func toFloat64[T device.Float](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

func fromFloat64[T device.Float](s []float64) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = T(v)
	}
	return out
}
