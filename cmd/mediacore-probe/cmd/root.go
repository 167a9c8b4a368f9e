// Package cmd implements the CLI commands for mediacore-probe.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediacore/internal/config"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/internal/version"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mediacore-probe",
	Short:   "Inspect and decode media containers with the mediacore library",
	Version: version.Short(),
	Long: `mediacore-probe is a thin harness over the mediacore decode/demux
library: it detects container formats, dumps packet streams, and decodes
elementary streams to frames, the way ffprobe sits on top of libavformat
and libavcodec.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, see 'config dump')")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error), overrides config")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json), overrides config")
}

// loadConfig reads internal/config.Load (file + MEDIACORE_* env + defaults),
// layers the --log-level/--log-format flags on top, and builds the shared
// *slog.Logger every command's decoder/demuxer construction is given.
func loadConfig() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	cfg = c
	logger = logging.New(cfg.Logging)
	return nil
}
