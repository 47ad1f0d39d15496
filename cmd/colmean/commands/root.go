package commands

import (
	"github.com/spf13/cobra"

	"github.com/LynnColeArt/colmean/device"
	"github.com/LynnColeArt/colmean/internal/config"
	"github.com/LynnColeArt/colmean/internal/logging"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	workers  int

	// cfg is loaded before every command runs.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "colmean",
	Short: "Parallel per-column mean of dense matrices",
	Long: `colmean computes the per-column mean of an N×D matrix with the
row-major tile kernel or the column-major block reduction kernel.

Matrices are read from CMAT files, which the gen command creates.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.colmean/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "goroutines that execute blocks (0 = one per CPU)")
}

// initConfig loads the configuration, applies flag overrides and sets up
// logging.
func initConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("workers") {
		c.Kernel.Workers = workers
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := logging.Init(c.Logging.Level, c.Logging.File, c.Logging.Console); err != nil {
		return err
	}
	cfg = c
	return nil
}

// newContext creates a device context sized by the kernel configuration.
func newContext() *device.Context {
	return device.NewContext(device.WithWorkers(cfg.Kernel.Workers))
}
