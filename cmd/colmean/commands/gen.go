package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/colmean"
	"github.com/LynnColeArt/colmean/internal/logging"
	"github.com/LynnColeArt/colmean/internal/matfile"
)

var (
	genRows     int
	genCols     int
	genLayout   string
	genDType    string
	genCompress string
	genSeed     uint64
	genOutput   string
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a random matrix file",
	Long: `Generate a deterministic pseudo-random matrix with values in [0, 1)
and write it as a CMAT file.`,
	Args: cobra.NoArgs,
	RunE: runGen,
}

func init() {
	genCmd.Flags().IntVar(&genRows, "rows", 1024, "number of rows (N)")
	genCmd.Flags().IntVar(&genCols, "cols", 64, "number of columns (D)")
	genCmd.Flags().StringVar(&genLayout, "layout", "row", "storage layout: row or col")
	genCmd.Flags().StringVar(&genDType, "dtype", "f32", "element type: f32 or f64")
	genCmd.Flags().StringVar(&genCompress, "compress", "raw", "payload compression: raw, zstd or lz4")
	genCmd.Flags().Uint64Var(&genSeed, "seed", 42, "generator seed")
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "output file")
	genCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(genCmd)
}

func runGen(cmd *cobra.Command, args []string) error {
	if genRows <= 0 || genCols <= 0 {
		return fmt.Errorf("invalid shape %dx%d", genRows, genCols)
	}
	rowMajor, err := parseLayout(genLayout)
	if err != nil {
		return err
	}
	comp, err := matfile.ParseCompression(genCompress)
	if err != nil {
		return err
	}

	m := &matfile.Matrix{Rows: genRows, Cols: genCols, RowMajor: rowMajor}
	switch genDType {
	case "f32":
		m.F32 = generate[float32](genRows, genCols, genSeed, rowMajor)
	case "f64":
		m.F64 = generate[float64](genRows, genCols, genSeed, rowMajor)
	default:
		return fmt.Errorf("unknown dtype %q", genDType)
	}

	if err := matfile.WriteFile(genOutput, m, comp); err != nil {
		return fmt.Errorf("failed to write %s: %w", genOutput, err)
	}
	logging.Infof("wrote %dx%d %s %s matrix to %s (%s)", genRows, genCols, genDType, genLayout, genOutput, comp)
	return nil
}

func generate[T float32 | float64](rows, cols int, seed uint64, rowMajor bool) []T {
	data := colmean.GenerateMatrix[T](rows, cols, seed)
	if rowMajor {
		return data
	}
	return colmean.Transpose(data, rows, cols)
}

func parseLayout(s string) (rowMajor bool, err error) {
	switch s {
	case "row":
		return true, nil
	case "col":
		return false, nil
	}
	return false, fmt.Errorf("unknown layout %q (want row or col)", s)
}
