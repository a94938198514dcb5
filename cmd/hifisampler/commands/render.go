package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/LingYi0110/HifiSamplerSharp/internal/cliargs"
	"github.com/LingYi0110/HifiSamplerSharp/internal/config"
	"github.com/LingYi0110/HifiSamplerSharp/internal/render"
	"github.com/LingYi0110/HifiSamplerSharp/internal/renderresult"
	"github.com/LingYi0110/HifiSamplerSharp/internal/vocoder"
)

var renderCmd = &cobra.Command{
	Use:   "render <in.wav> <out.wav> <note> <velocity> [flags] <offset> <length> <consonant> <cutoff> <volume> <modulation> !<tempo> <pitchBendBase64>",
	Short: "Run a single render using the legacy UTAU CLI bridge convention",
	Args:  cobra.RangeArgs(12, 13),
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	logger := slog.Default()

	req, err := cliargs.ParseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	renderer := render.New(
		cfg.Sampler.RenderConfig(),
		vocoder.NullVocoder{SampleRate: cfg.Sampler.SampleRate, Hop: cfg.Sampler.HopSize},
		vocoder.PassthroughSeparator{},
	)

	logger.Info("render start", "input", req.InputPath, "output", req.OutputPath)
	if err := renderer.Render(context.Background(), req); err != nil {
		result := renderresult.FromError(err, "")
		logger.Error("render failed", "error", err)
		return fmt.Errorf("%s", result.Message)
	}

	fmt.Printf("Success: '%s' -> '%s'\n", req.InputPath, req.OutputPath)
	return nil
}
