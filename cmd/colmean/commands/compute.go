package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zeebo/xxh3"

	"github.com/LynnColeArt/colmean"
	"github.com/LynnColeArt/colmean/device"
	"github.com/LynnColeArt/colmean/internal/logging"
	"github.com/LynnColeArt/colmean/internal/matfile"
)

var (
	computeInput  string
	computeOutput string
	computeSample bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the column means of a matrix file",
	Long: `Compute the per-column mean of a CMAT matrix and print one value per
line. --sample divides by N-1 and requires a row-major file.`,
	Args: cobra.NoArgs,
	RunE: runCompute,
}

func init() {
	computeCmd.Flags().StringVarP(&computeInput, "input", "i", "", "input CMAT file")
	computeCmd.Flags().StringVarP(&computeOutput, "output", "o", "", "write the means to this file instead of stdout")
	computeCmd.Flags().BoolVar(&computeSample, "sample", false, "normalize by N-1")
	computeCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, args []string) error {
	m, err := matfile.ReadFile(computeInput)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", computeInput, err)
	}

	ctx := newContext()
	defer ctx.Destroy()

	res, err := columnMeans(m, computeSample, ctx.DefaultStream(), cfg.Kernel.Options())
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if computeOutput != "" {
		f, err := os.Create(computeOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	for _, v := range res.values() {
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, res.bits()))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if computeOutput != "" {
		logging.Infof("wrote %d means to %s", m.Cols, computeOutput)
	}
	return nil
}

// meanResult holds the output vector in the element type of the input.
type meanResult struct {
	f32 []float32
	f64 []float64
}

func (r meanResult) values() []float64 {
	if r.f64 != nil {
		return r.f64
	}
	out := make([]float64, len(r.f32))
	for i, v := range r.f32 {
		out[i] = float64(v)
	}
	return out
}

func (r meanResult) bits() int {
	if r.f64 != nil {
		return 64
	}
	return 32
}

// digest hashes the raw bytes of the output vector.
func (r meanResult) digest() uint64 {
	if r.f64 != nil {
		return xxh3.Hash(device.HostPtr(r.f64).Byte())
	}
	return xxh3.Hash(device.HostPtr(r.f32).Byte())
}

// columnMeans runs Mean on q for whichever element type m holds and waits
// for the result.
func columnMeans(m *matfile.Matrix, sample bool, q device.Queue, opts colmean.Options) (meanResult, error) {
	var res meanResult
	var err error
	if m.F64 != nil {
		res.f64, err = meanOnQueue(m.F64, m, sample, q, opts)
	} else {
		res.f32, err = meanOnQueue(m.F32, m, sample, q, opts)
	}
	return res, err
}

func meanOnQueue[T device.Float](data []T, m *matfile.Matrix, sample bool, q device.Queue, opts colmean.Options) ([]T, error) {
	mu := make([]T, m.Cols)
	if err := colmean.MeanWithOptions[T](device.HostPtr(mu), device.HostPtr(data), m.Cols, m.Rows, sample, m.RowMajor, q, opts); err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	if err := q.Synchronize(); err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	return mu, nil
}
