package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/colmean/internal/logging"
	"github.com/LynnColeArt/colmean/internal/matfile"
)

var (
	benchInput  string
	benchRuns   int
	benchSample bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time repeated mean computations",
	Long: `Run the column mean of a CMAT matrix repeatedly and report latency.

Every run's output is hashed with xxh3. A single distinct digest means all
runs produced bitwise identical results; atomic accumulation may reorder
floating-point additions and yield several.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVarP(&benchInput, "input", "i", "", "input CMAT file")
	benchCmd.Flags().IntVar(&benchRuns, "runs", 10, "number of timed runs")
	benchCmd.Flags().BoolVar(&benchSample, "sample", false, "normalize by N-1")
	benchCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchRuns < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", benchRuns)
	}
	m, err := matfile.ReadFile(benchInput)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", benchInput, err)
	}

	ctx := newContext()
	defer ctx.Destroy()
	s := ctx.DefaultStream()
	opts := cfg.Kernel.Options()

	digests := make(map[uint64]int)
	var total, fastest, slowest time.Duration
	for run := 0; run < benchRuns; run++ {
		start := time.Now()
		res, err := columnMeans(m, benchSample, s, opts)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		total += elapsed
		if run == 0 || elapsed < fastest {
			fastest = elapsed
		}
		slowest = max(slowest, elapsed)
		digests[res.digest()]++
		logging.Debugf("run %d: %v", run, elapsed)
	}

	mean := total / time.Duration(benchRuns)
	size := float64(m.Rows * m.Cols * m.DType().Size())

	w := cmd.OutOrStdout()
	printTitle(w, "Benchmark")
	printField(w, "File", benchInput)
	printField(w, "Shape", fmt.Sprintf("%d x %d %s %s", m.Rows, m.Cols, m.DType(), layoutName(m.RowMajor)))
	printField(w, "Workers", ctx.Workers())
	printField(w, "Runs", benchRuns)
	printField(w, "Mean", mean)
	printField(w, "Min / Max", fmt.Sprintf("%v / %v", fastest, slowest))
	printField(w, "Throughput", fmt.Sprintf("%.2f GB/s", size/mean.Seconds()/1e9))
	printField(w, "Digests", len(digests))

	keys := make([]uint64, 0, len(digests))
	for k := range digests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return digests[keys[i]] > digests[keys[j]] })
	for _, k := range keys {
		fmt.Fprintf(w, "  %016x  x%d\n", k, digests[k])
	}
	return nil
}
