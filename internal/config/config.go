// Package config loads the process-wide Sampler configuration: the
// analysis/synthesis parameters and worker-pool sizing shared by every
// render the server or CLI bridge runs, plus opaque configuration
// blobs for the external vocoder and harmonic separator runtimes.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/LingYi0110/HifiSamplerSharp/internal/render"
)

// Sampler mirrors the documented Sampler config section.
type Sampler struct {
	Port          int     `yaml:"port"`
	CachePath     string  `yaml:"cachePath"`
	MaxWorkers    int     `yaml:"maxWorkers"`
	SampleRate    int     `yaml:"sampleRate"`
	HopSize       int     `yaml:"hopSize"`
	OriginHopSize int     `yaml:"originHopSize"`
	NFft          int     `yaml:"nFft"`
	WinSize       int     `yaml:"winSize"`
	NumMels       int     `yaml:"numMels"`
	MelFMin       float64 `yaml:"melFMin"`
	MelFMax       float64 `yaml:"melFMax"`
	Fill          int     `yaml:"fill"`
	PeakLimit     float64 `yaml:"peakLimit"`
	WaveNorm      bool    `yaml:"waveNorm"`
	LoopMode      bool    `yaml:"loopMode"`

	// VocoderConfig and HnSepConfig are opaque runtime-specific blobs
	// handed to whichever external inference process is wired in;
	// this repository only ever reads them through as configuration
	// and never interprets their keys.
	VocoderConfig map[string]any `yaml:"vocoderConfig"`
	HnSepConfig   map[string]any `yaml:"hnSepConfig"`
}

// Config is the top-level YAML document, keyed by the "sampler" section.
type Config struct {
	Sampler Sampler `yaml:"sampler"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Sampler: Sampler{
			Port:          8572,
			MaxWorkers:    2,
			SampleRate:    44100,
			HopSize:       512,
			OriginHopSize: 128,
			NFft:          2048,
			WinSize:       2048,
			NumMels:       128,
			MelFMin:       40,
			MelFMax:       16000,
			Fill:          8,
			PeakLimit:     0.9,
			WaveNorm:      true,
			LoopMode:      false,
		},
	}
}

// Load reads a YAML config file, applying Default() first so any
// field absent from the file keeps its documented default. A missing
// file is not an error: Load returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvedMaxWorkers returns max(1, s.MaxWorkers).
func (s Sampler) ResolvedMaxWorkers() int {
	if s.MaxWorkers < 1 {
		return 1
	}
	return s.MaxWorkers
}

// RenderConfig maps the Sampler section onto the render orchestrator's
// own configuration type.
func (s Sampler) RenderConfig() render.Config {
	return render.Config{
		SampleRate:    s.SampleRate,
		HopSize:       s.HopSize,
		OriginHopSize: s.OriginHopSize,
		NFft:          s.NFft,
		WinSize:       s.WinSize,
		NumMels:       s.NumMels,
		MelFMin:       s.MelFMin,
		MelFMax:       s.MelFMax,
		Fill:          s.Fill,
		PeakLimit:     s.PeakLimit,
		WaveNorm:      s.WaveNorm,
		LoopMode:      s.LoopMode,
	}
}
