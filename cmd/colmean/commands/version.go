package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/colmean"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "colmean v%s\n", version)
		if mod, sum := colmean.Version(); mod != "" {
			fmt.Fprintf(w, "Module: %s %s\n", mod, sum)
		}
		fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
