// Package flags parses and validates the UTAU-style integer flag set that
// tunes formant shift, breath/voice mix, growl, loudness blend, pitch
// shift, tension and amplitude modulation for a single render.
package flags

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

// Flags holds the clamped knob values for one render request.
type Flags struct {
	G_ int `yaml:"g"`  // formant/gender shift, cents/100 = semitones
	Hb int `yaml:"Hb"` // breath gain %
	Hv int `yaml:"Hv"` // voice gain %
	HG int `yaml:"HG"` // growl strength
	P  int `yaml:"P"`  // loudness-normalize blend
	T  int `yaml:"t"`  // pitch shift in cents
	Ht int `yaml:"Ht"` // tension
	A  int `yaml:"A"`  // amplitude-from-pitch depth

	Force    bool `yaml:"G"`  // bypass the feature cache
	LoopMode bool `yaml:"He"` // mel loop mode
}

// Default returns the flag set with every field at its documented default.
func Default() Flags {
	return Flags{
		G_: 0,
		Hb: 100,
		Hv: 100,
		HG: 0,
		P:  100,
		T:  0,
		Ht: 0,
		A:  0,
	}
}

// Clamp returns a copy of f with every integer knob clamped to its
// declared range. Boolean fields pass through unchanged.
func (f Flags) Clamp() Flags {
	out := f
	out.G_ = clampInt(out.G_, -600, 600)
	out.Hb = clampInt(out.Hb, 0, 500)
	out.Hv = clampInt(out.Hv, 0, 150)
	out.HG = clampInt(out.HG, 0, 100)
	out.P = clampInt(out.P, 0, 100)
	out.T = clampInt(out.T, -1200, 1200)
	out.Ht = clampInt(out.Ht, -100, 100)
	out.A = clampInt(out.A, -100, 100)
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Signature returns the first six hex characters of
// SHA-256("g=<g>;Hb=<Hb>;Hv=<Hv>;Ht=<Ht>"), the only flags that affect
// cached features.
func (f Flags) Signature() string {
	s := fmt.Sprintf("g=%d;Hb=%d;Hv=%d;Ht=%d", f.G_, f.Hb, f.Hv, f.Ht)
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)[:6]
}

// ShouldBypassCache reports whether the force-regeneration flag is set.
func (f Flags) ShouldBypassCache() bool {
	return f.Force
}

// Parse decodes a UTAU flag string such as "g-10Hb80He" into a Flags
// value seeded with Default(). Unknown flag letters are ignored;
// malformed numeric suffixes are treated as absent (value left at
// default) rather than rejected, matching the permissive behavior of
// the legacy UTAU ecosystem.
func Parse(s string) Flags {
	f := Default()
	if strings.TrimSpace(s) == "" {
		return f
	}

	i := 0
	for i < len(s) {
		// Flag names are one or two letters; try the two-letter form first.
		name, rest, ok := matchName(s[i:])
		if !ok {
			i++
			continue
		}
		i += len(name)

		numStart := i
		for i < len(s) && (s[i] == '-' || s[i] == '+' || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
		numStr := s[numStart:i]

		switch name {
		case "G", "He":
			setBool(&f, name, numStr == "" || numStr != "0")
		default:
			if numStr == "" {
				continue
			}
			v, err := strconv.Atoi(numStr)
			if err != nil {
				continue
			}
			setInt(&f, name, v)
		}
		_ = rest
	}

	return f
}

var knownNames = []string{"He", "Hb", "Hv", "HG", "Ht", "g", "P", "t", "A", "G"}

func matchName(s string) (string, string, bool) {
	for _, n := range knownNames {
		if strings.HasPrefix(s, n) {
			return n, s[len(n):], true
		}
	}
	return "", s, false
}

func setInt(f *Flags, name string, v int) {
	switch name {
	case "g":
		f.G_ = v
	case "Hb":
		f.Hb = v
	case "Hv":
		f.Hv = v
	case "HG":
		f.HG = v
	case "P":
		f.P = v
	case "t":
		f.T = v
	case "Ht":
		f.Ht = v
	case "A":
		f.A = v
	}
}

func setBool(f *Flags, name string, v bool) {
	switch name {
	case "G":
		f.Force = v
	case "He":
		f.LoopMode = v
	}
}
