// Package config loads colmean settings from defaults, an optional YAML
// file and COLMEAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/LynnColeArt/colmean"
)

// Config represents the application configuration
type Config struct {
	Kernel  KernelConfig  `mapstructure:"kernel"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type KernelConfig struct {
	ThreadsPerBlock int `mapstructure:"threads_per_block"`
	TileWidth       int `mapstructure:"tile_width"`
	RowsPerThread   int `mapstructure:"rows_per_thread"`
	MaxRowBlocks    int `mapstructure:"max_row_blocks"`
	Workers         int `mapstructure:"workers"`
}

type VerifyConfig struct {
	AbsTol float64 `mapstructure:"abs_tol"`
	RelTol float64 `mapstructure:"rel_tol"`
	ULPTol int     `mapstructure:"ulp_tol"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	opts := colmean.DefaultOptions()
	tol := colmean.RelaxedTolerance()
	return &Config{
		Kernel: KernelConfig{
			ThreadsPerBlock: opts.ThreadsPerBlock,
			TileWidth:       opts.TileWidth,
			RowsPerThread:   opts.RowsPerThread,
			MaxRowBlocks:    256,
			Workers:         0,
		},
		Verify: VerifyConfig{
			AbsTol: tol.AbsTol,
			RelTol: tol.RelTol,
			ULPTol: tol.ULPTol,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load loads configuration from file, environment, and defaults. An empty
// cfgFile searches $HOME/.colmean and the working directory for
// config.yaml; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".colmean"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("COLMEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Kernel.ThreadsPerBlock <= 0 || c.Kernel.TileWidth <= 0 || c.Kernel.ThreadsPerBlock%c.Kernel.TileWidth != 0 {
		return fmt.Errorf("kernel.tile_width (%d) must divide kernel.threads_per_block (%d)", c.Kernel.TileWidth, c.Kernel.ThreadsPerBlock)
	}
	if c.Kernel.RowsPerThread <= 0 {
		return errors.New("kernel.rows_per_thread must be positive")
	}
	if c.Kernel.MaxRowBlocks < 0 || c.Kernel.Workers < 0 {
		return errors.New("kernel.max_row_blocks and kernel.workers must not be negative")
	}
	if c.Verify.AbsTol < 0 || c.Verify.RelTol < 0 || c.Verify.ULPTol < 0 {
		return errors.New("verify tolerances must not be negative")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	return nil
}

// Options converts the kernel section to launch options.
func (k KernelConfig) Options() colmean.Options {
	return colmean.Options{
		ThreadsPerBlock: k.ThreadsPerBlock,
		TileWidth:       k.TileWidth,
		RowsPerThread:   k.RowsPerThread,
		MaxRowBlocks:    k.MaxRowBlocks,
	}
}

// Tolerance converts the verify section to a tolerance configuration.
func (v VerifyConfig) Tolerance() colmean.ToleranceConfig {
	return colmean.ToleranceConfig{
		AbsTol:   v.AbsTol,
		RelTol:   v.RelTol,
		ULPTol:   v.ULPTol,
		CheckNaN: true,
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("kernel.threads_per_block", cfg.Kernel.ThreadsPerBlock)
	v.SetDefault("kernel.tile_width", cfg.Kernel.TileWidth)
	v.SetDefault("kernel.rows_per_thread", cfg.Kernel.RowsPerThread)
	v.SetDefault("kernel.max_row_blocks", cfg.Kernel.MaxRowBlocks)
	v.SetDefault("kernel.workers", cfg.Kernel.Workers)

	v.SetDefault("verify.abs_tol", cfg.Verify.AbsTol)
	v.SetDefault("verify.rel_tol", cfg.Verify.RelTol)
	v.SetDefault("verify.ulp_tol", cfg.Verify.ULPTol)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
}
