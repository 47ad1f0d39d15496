package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/colmean"
	"github.com/LynnColeArt/colmean/internal/matfile"
)

var (
	verifyInput  string
	verifySample bool
)

// errMismatch makes the command exit non-zero after the report is printed.
var errMismatch = errors.New("means differ from the reference")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the kernels against the reference implementation",
	Long: `Compute the column means of a CMAT matrix and compare them with a
float64 gonum reference using the configured tolerance.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyInput, "input", "i", "", "input CMAT file")
	verifyCmd.Flags().BoolVar(&verifySample, "sample", false, "normalize by N-1")
	verifyCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	m, err := matfile.ReadFile(verifyInput)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", verifyInput, err)
	}

	ctx := newContext()
	defer ctx.Destroy()

	res, err := columnMeans(m, verifySample, ctx.DefaultStream(), cfg.Kernel.Options())
	if err != nil {
		return err
	}

	tol := cfg.Verify.Tolerance()
	var result colmean.VerificationResult
	if res.f64 != nil {
		result = colmean.VerifyArray(colmean.ReferenceMean(m.F64, m.Cols, m.Rows, verifySample, m.RowMajor), res.f64, tol)
	} else {
		result = colmean.VerifyArray(colmean.ReferenceMean(m.F32, m.Cols, m.Rows, verifySample, m.RowMajor), res.f32, tol)
	}

	w := cmd.OutOrStdout()
	printTitle(w, "Verification")
	printField(w, "File", verifyInput)
	printField(w, "Shape", fmt.Sprintf("%d x %d %s %s", m.Rows, m.Cols, m.DType(), layoutName(m.RowMajor)))
	printField(w, "Tolerance", fmt.Sprintf("abs %g, rel %g, ulp %d", tol.AbsTol, tol.RelTol, tol.ULPTol))
	if result.NumErrors == 0 {
		fmt.Fprintln(w, passStyle.Render(result.String()))
		return nil
	}
	fmt.Fprintln(w, failStyle.Render(result.String()))
	return errMismatch
}

func layoutName(rowMajor bool) string {
	if rowMajor {
		return "row-major"
	}
	return "column-major"
}
