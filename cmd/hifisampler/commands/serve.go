package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LingYi0110/HifiSamplerSharp/internal/config"
	"github.com/LingYi0110/HifiSamplerSharp/internal/render"
	"github.com/LingYi0110/HifiSamplerSharp/internal/server"
	"github.com/LingYi0110/HifiSamplerSharp/internal/vocoder"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resample RPC server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	renderer := render.New(
		cfg.Sampler.RenderConfig(),
		vocoder.NullVocoder{SampleRate: cfg.Sampler.SampleRate, Hop: cfg.Sampler.HopSize},
		vocoder.PassthroughSeparator{},
	)
	srv := server.New(renderer, cfg.Sampler.ResolvedMaxWorkers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	addr := fmt.Sprintf(":%d", cfg.Sampler.Port)
	logger.Info("resample server ready", "addr", addr, "maxWorkers", cfg.Sampler.ResolvedMaxWorkers())
	return server.Serve(ctx, addr, srv)
}
