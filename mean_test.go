package colmean

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/LynnColeArt/colmean/device"
)

func TestMeanSmallMatrix(t *testing.T) {
	// [[1,2],[3,4],[5,6]]
	rowMajor := []float64{1, 2, 3, 4, 5, 6}
	colMajor := []float64{1, 3, 5, 2, 4, 6}

	cases := []struct {
		name     string
		data     []float64
		sample   bool
		rowMajor bool
		want     []float64
	}{
		{"row-major population", rowMajor, false, true, []float64{3, 4}},
		{"row-major sample", rowMajor, true, true, []float64{4.5, 6}},
		{"column-major population", colMajor, false, false, []float64{3, 4}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := meanOrFail(t, &device.Immediate{}, tc.data, 2, 3, tc.sample, tc.rowMajor, DefaultOptions())
			checkClose(t, tc.name, tc.want, got, DefaultTolerance())
		})
	}

	t.Run("column-major sample is rejected", func(t *testing.T) {
		q := &device.Immediate{}
		mu := make([]float64, 2)
		err := Mean[float64](device.HostPtr(mu), device.HostPtr(colMajor), 2, 3, true, false, q)
		if !errors.Is(err, ErrSampleColumnMajor) {
			t.Fatalf("Expected ErrSampleColumnMajor, got %v", err)
		}
		if !device.IsNotImplementedError(err) {
			t.Errorf("Expected a not-implemented error type, got %v", err)
		}
	})
}

func TestMeanMatchesReference(t *testing.T) {
	t.Run("float32", func(t *testing.T) { testMeanMatchesReference[float32](t) })
	t.Run("float64", func(t *testing.T) { testMeanMatchesReference[float64](t) })
}

func testMeanMatchesReference[T device.Float](t *testing.T) {
	shapes := []struct{ D, N int }{
		{1, 1},
		{1, 257},
		{32, 32},
		{33, 100},
		{5, 1000},
		{70, 129},
	}

	for _, sh := range shapes {
		data := GenerateMatrixRange[T](sh.N, sh.D, uint64(sh.D*1000+sh.N), -2, 3)
		for _, rowMajor := range []bool{true, false} {
			for _, sample := range []bool{false, true} {
				if sample && (!rowMajor || sh.N < 2) {
					continue
				}
				name := fmt.Sprintf("D=%d/N=%d/rowMajor=%v/sample=%v", sh.D, sh.N, rowMajor, sample)
				t.Run(name, func(t *testing.T) {
					got := meanOrFail(t, newStream(t), data, sh.D, sh.N, sample, rowMajor, DefaultOptions())
					want := ReferenceMean(data, sh.D, sh.N, sample, rowMajor)
					checkClose(t, name, want, got, tolFor[T]())
				})
			}
		}
	}
}

func TestMeanTileWidths(t *testing.T) {
	const D, N = 45, 300
	data := GenerateMatrix[float64](N, D, 7)
	want := ReferenceMean(data, D, N, false, true)
	wantSample := ReferenceMean(data, D, N, true, true)

	cases := []Options{
		{ThreadsPerBlock: 256, TileWidth: 8, RowsPerThread: 4},
		{ThreadsPerBlock: 256, TileWidth: 16, RowsPerThread: 2},
		{ThreadsPerBlock: 256, TileWidth: 32, RowsPerThread: 4},
		{ThreadsPerBlock: 256, TileWidth: 64, RowsPerThread: 1},
		{ThreadsPerBlock: 96, TileWidth: 32, RowsPerThread: 3},
		{ThreadsPerBlock: 64, TileWidth: 64, RowsPerThread: 8},
	}

	for _, opts := range cases {
		name := fmt.Sprintf("tpb=%d/tile=%d", opts.ThreadsPerBlock, opts.TileWidth)
		t.Run(name, func(t *testing.T) {
			q := &device.Immediate{NumWorkers: 3}
			checkClose(t, "population", want, meanOrFail(t, q, data, D, N, false, true, opts), DefaultTolerance())
			checkClose(t, "sample", wantSample, meanOrFail(t, q, data, D, N, true, true, opts), DefaultTolerance())

			colMajor := Transpose(data, N, D)
			checkClose(t, "column-major", want, meanOrFail(t, q, colMajor, D, N, false, false, opts), DefaultTolerance())
		})
	}
}

func TestMeanMaxRowBlocks(t *testing.T) {
	const D, N = 7, 5000
	data := GenerateMatrix[float64](N, D, 99)
	want := ReferenceMean(data, D, N, false, true)

	for _, limit := range []int{1, 2, 13} {
		opts := DefaultOptions()
		opts.MaxRowBlocks = limit
		got := meanOrFail(t, newStream(t), data, D, N, false, true, opts)
		checkClose(t, fmt.Sprintf("limit=%d", limit), want, got, DefaultTolerance())
	}
}

func TestMeanLayoutEquivalence(t *testing.T) {
	const D, N = 41, 213
	data := GenerateMatrixRange[float32](N, D, 2024, -10, 10)
	s := newStream(t)

	fromRows := meanOrFail(t, s, data, D, N, false, true, DefaultOptions())
	fromCols := meanOrFail(t, s, Transpose(data, N, D), D, N, false, false, DefaultOptions())
	checkClose(t, "layouts", fromRows, fromCols, RelaxedTolerance())
}

func TestMeanIdempotent(t *testing.T) {
	const D, N = 37, 555
	// Small integers keep every partial sum exact, so atomic reordering
	// cannot change the result and outputs must match bitwise.
	data := make([]float64, N*D)
	for i := range data {
		data[i] = float64(i%17 - 8)
	}

	for _, rowMajor := range []bool{true, false} {
		s := newStream(t)
		first := meanOrFail(t, s, data, D, N, false, rowMajor, DefaultOptions())
		for run := 0; run < 5; run++ {
			got := meanOrFail(t, s, data, D, N, false, rowMajor, DefaultOptions())
			for j := range got {
				if math.Float64bits(got[j]) != math.Float64bits(first[j]) {
					t.Fatalf("rowMajor=%v run %d column %d: %v != %v", rowMajor, run, j, got[j], first[j])
				}
			}
		}
	}

	// Random float32 data may differ in the last bits between runs.
	rnd := GenerateMatrix[float32](N, D, 5)
	s := newStream(t)
	first := meanOrFail(t, s, rnd, D, N, false, true, DefaultOptions())
	for run := 0; run < 3; run++ {
		checkClose(t, "repeat", first, meanOrFail(t, s, rnd, D, N, false, true, DefaultOptions()), RelaxedTolerance())
	}
}

func TestMeanPartialTileNoOutOfBounds(t *testing.T) {
	const D, N = 33, 64
	const sentinel = 777.0
	data := GenerateMatrix[float64](N, D, 33)
	want := ReferenceMean(data, D, N, false, true)

	for _, rowMajor := range []bool{true, false} {
		x := data
		if !rowMajor {
			x = Transpose(data, N, D)
		}
		mu := make([]float64, D+8)
		for i := range mu {
			mu[i] = sentinel
		}
		q := &device.Immediate{}
		if err := Mean[float64](device.HostPtr(mu), device.HostPtr(x), D, N, false, rowMajor, q); err != nil {
			t.Fatal(err)
		}
		if err := q.Synchronize(); err != nil {
			t.Fatal(err)
		}
		checkClose(t, "means", want, mu[:D], DefaultTolerance())
		for i := D; i < len(mu); i++ {
			if mu[i] != sentinel {
				t.Errorf("rowMajor=%v: element %d beyond D was overwritten with %v", rowMajor, i, mu[i])
			}
		}
	}
}

func TestMeanSingleRow(t *testing.T) {
	row := []float32{1.5, -2, 0, 1e6}
	for _, rowMajor := range []bool{true, false} {
		got := meanOrFail(t, &device.Immediate{}, row, len(row), 1, false, rowMajor, DefaultOptions())
		for j := range row {
			if got[j] != row[j] {
				t.Errorf("rowMajor=%v column %d: expected %v, got %v", rowMajor, j, row[j], got[j])
			}
		}
	}

	mu := make([]float32, len(row))
	err := Mean[float32](device.HostPtr(mu), device.HostPtr(row), len(row), 1, true, true, &device.Immediate{})
	if !errors.Is(err, ErrSampleTooFewRows) {
		t.Errorf("Expected ErrSampleTooFewRows, got %v", err)
	}
}

func TestMeanInvalidArguments(t *testing.T) {
	data := make([]float64, 12)
	mu := make([]float64, 4)

	cases := []struct {
		name string
		mu   []float64
		data []float64
		D, N int
		opts Options
	}{
		{"zero columns", mu, data, 0, 3, DefaultOptions()},
		{"zero rows", mu, data, 4, 0, DefaultOptions()},
		{"negative rows", mu, data, 4, -1, DefaultOptions()},
		{"short output", mu[:3], data, 4, 3, DefaultOptions()},
		{"short input", mu, data[:11], 4, 3, DefaultOptions()},
		{"tile does not divide block", mu, data, 4, 3, Options{ThreadsPerBlock: 100, TileWidth: 32, RowsPerThread: 1}},
		{"oversized block", mu, data, 4, 3, Options{ThreadsPerBlock: 2048, TileWidth: 32, RowsPerThread: 1}},
		{"zero rows per thread", mu, data, 4, 3, Options{ThreadsPerBlock: 256, TileWidth: 32}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &device.Immediate{}
			err := MeanWithOptions[float64](device.HostPtr(tc.mu), device.HostPtr(tc.data), tc.D, tc.N, false, true, q, tc.opts)
			if !device.IsInvalidArgError(err) {
				t.Fatalf("Expected invalid argument error, got %v", err)
			}
		})
	}
}

func TestMeanLaunchErrorIsImmediate(t *testing.T) {
	// More column tiles than the grid's Y dimension allows.
	D := device.MaxGridDimYZ*device.WarpSize + 1
	data := make([]float32, D)
	mu := make([]float32, D)

	q := &device.Immediate{}
	err := Mean[float32](device.HostPtr(mu), device.HostPtr(data), D, 1, false, true, q)
	if !device.IsLaunchError(err) {
		t.Fatalf("Expected launch error, got %v", err)
	}
}

func TestMeanOnFailedQueue(t *testing.T) {
	s := newStream(t)
	boom := errors.New("earlier failure")
	s.Enqueue(func() error { return boom })

	data := []float64{1, 2, 3, 4}
	mu := []float64{-1, -1}
	if err := Mean[float64](device.HostPtr(mu), device.HostPtr(data), 2, 2, false, true, s); err != nil {
		t.Fatal(err)
	}
	if err := s.Synchronize(); !errors.Is(err, boom) {
		t.Fatalf("Expected the earlier failure, got %v", err)
	}
	if mu[0] != -1 || mu[1] != -1 {
		t.Errorf("Output must not be touched after a failure, got %v", mu)
	}
}

func TestMeanOf(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	got, err := MeanOf(data, 2, 3, true, true)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "MeanOf", []float64{4.5, 6}, got, DefaultTolerance())

	if _, err := MeanOf(data, 2, 3, true, false); !errors.Is(err, ErrSampleColumnMajor) {
		t.Errorf("Expected ErrSampleColumnMajor, got %v", err)
	}
	if _, err := MeanOf(data, 0, 3, false, true); !device.IsInvalidArgError(err) {
		t.Errorf("Expected invalid argument error, got %v", err)
	}
}

func TestSum(t *testing.T) {
	const D, N = 19, 77
	data := GenerateMatrix[float64](N, D, 3)
	want := ReferenceSum(data, D, N, true)

	for _, rowMajor := range []bool{true, false} {
		x := data
		if !rowMajor {
			x = Transpose(data, N, D)
		}
		s := newStream(t)
		out := make([]float64, D)
		if err := Sum[float64](device.HostPtr(out), device.HostPtr(x), D, N, rowMajor, s); err != nil {
			t.Fatal(err)
		}
		if err := s.Synchronize(); err != nil {
			t.Fatal(err)
		}
		checkClose(t, fmt.Sprintf("rowMajor=%v", rowMajor), want, out, DefaultTolerance())
	}
}

func TestMeanCenterRoundTrip(t *testing.T) {
	const D, N = 6, 50
	data := GenerateMatrixRange[float64](N, D, 11, 100, 200)

	for _, rowMajor := range []bool{true, false} {
		x := data
		if !rowMajor {
			x = Transpose(data, N, D)
		}
		s := newStream(t)
		mu := make([]float64, D)
		centered := make([]float64, N*D)
		restored := make([]float64, N*D)
		muPtr, xPtr, cPtr := device.HostPtr(mu), device.HostPtr(x), device.HostPtr(centered)

		if err := Mean[float64](muPtr, xPtr, D, N, false, rowMajor, s); err != nil {
			t.Fatal(err)
		}
		if err := MeanCenter[float64](cPtr, xPtr, muPtr, D, N, rowMajor, s); err != nil {
			t.Fatal(err)
		}
		if err := MeanAdd[float64](device.HostPtr(restored), cPtr, muPtr, D, N, rowMajor, s); err != nil {
			t.Fatal(err)
		}
		if err := s.Synchronize(); err != nil {
			t.Fatal(err)
		}

		// Centered columns have zero mean.
		colMeans := meanOrFail(t, s, centered, D, N, false, rowMajor, DefaultOptions())
		for j, m := range colMeans {
			if math.Abs(m) > 1e-9 {
				t.Errorf("rowMajor=%v column %d: centered mean %v", rowMajor, j, m)
			}
		}
		checkClose(t, "restored", x, restored, DefaultTolerance())
	}

	q := &device.Immediate{}
	short := make([]float64, N*D-1)
	err := MeanCenter[float64](device.HostPtr(short), device.HostPtr(data), device.HostPtr(make([]float64, D)), D, N, true, q)
	if !device.IsInvalidArgError(err) {
		t.Errorf("Expected invalid argument error for short output, got %v", err)
	}
}

func BenchmarkMean(b *testing.B) {
	const D, N = 128, 4096
	data := GenerateMatrix[float32](N, D, 1)
	mu := make([]float32, D)
	s := newStream(b)

	for _, rowMajor := range []bool{true, false} {
		x := data
		if !rowMajor {
			x = Transpose(data, N, D)
		}
		b.Run(fmt.Sprintf("rowMajor=%v", rowMajor), func(b *testing.B) {
			b.SetBytes(int64(N * D * 4))
			for i := 0; i < b.N; i++ {
				if err := Mean[float32](device.HostPtr(mu), device.HostPtr(x), D, N, false, rowMajor, s); err != nil {
					b.Fatal(err)
				}
				if err := s.Synchronize(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
