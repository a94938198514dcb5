// Command hifisampler is the UTAU-compatible resampler process: a
// "serve" subcommand runs the HTTP render dispatcher, and a "render"
// subcommand runs a single render from the legacy UTAU CLI bridge
// convention.
package main

import (
	"fmt"
	"os"

	"github.com/LingYi0110/HifiSamplerSharp/cmd/hifisampler/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
