package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/colmean/device"
)

var deviceInfoCmd = &cobra.Command{
	Use:   "device",
	Short: "Show device information",
	Long: `Display the emulated compute device, the CPU features it detected
and the launch geometry the kernels will use.`,
	Args: cobra.NoArgs,
	RunE: runDeviceInfo,
}

func init() {
	rootCmd.AddCommand(deviceInfoCmd)
}

func runDeviceInfo(cmd *cobra.Command, args []string) error {
	dev := device.GetDevice()
	opts := cfg.Kernel.Options()

	w := cmd.OutOrStdout()
	printTitle(w, "Device")
	printField(w, "Name", dev.Name)
	printField(w, "Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
	printField(w, "Cores", dev.NumCores)
	printField(w, "Memory", fmt.Sprintf("%.2f GB", float64(dev.TotalMem)/(1<<30)))
	printField(w, "Features", dev.Features)
	printField(w, "Vector width", fmt.Sprintf("%d bytes", dev.Features.VectorWidth()))
	fmt.Fprintln(w)

	workers := cfg.Kernel.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	printTitle(w, "Kernels")
	printField(w, "Block", fmt.Sprintf("%d threads", opts.ThreadsPerBlock))
	printField(w, "Tile", fmt.Sprintf("%d columns", opts.TileWidth))
	printField(w, "Rows/thread", opts.RowsPerThread)
	printField(w, "Row blocks", maxRowBlocks(opts.MaxRowBlocks))
	printField(w, "Workers", workers)
	return nil
}

func maxRowBlocks(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("at most %d", n)
}
