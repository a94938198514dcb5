// Package commands implements the hifisampler command tree: "serve"
// and "render".
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hifisampler",
	Short: "UTAU-compatible singing-voice sample resampler",
	Long: `hifisampler renders a single UTAU note from a source recording:
mel-spectrogram analysis, pitch-aware time-stretching, an external
neural vocoder, and a post-effects chain matching the legacy UTAU
flag set.

Run as a server for the resample RPC:

  hifisampler serve --config sampler.yaml

Or run a single render from the legacy CLI bridge convention:

  hifisampler render in.wav out.wav C4 100 "" 0 500 0 0 100 0 !120 ""`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sampler.yaml", "path to the Sampler YAML config file")
}
