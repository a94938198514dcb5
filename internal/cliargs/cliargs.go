// Package cliargs decodes the UTAU legacy command-line convention — a
// single space-delimited argument line — into a render.Request. It
// covers the 12-vs-13 token flags-absent recovery and the
// base64-like, run-length-compressed pitch-bend encoding.
package cliargs

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/LingYi0110/HifiSamplerSharp/internal/flags"
	"github.com/LingYi0110/HifiSamplerSharp/internal/render"
	"github.com/LingYi0110/HifiSamplerSharp/internal/renderresult"
)

// ParseArgs parses the 12-or-13-token UTAU argument convention:
//
//	<in.wav> <out.wav> <note> <velocity> <flags> <offset> <length>
//	<consonant> <cutoff> <volume> <modulation> !<tempo> <pitchBendBase64>
//
// When flags are omitted the line has 12 tokens; an empty flags slot
// is inserted at position 4 to recover the 13-token shape.
func ParseArgs(args []string) (render.Request, error) {
	switch len(args) {
	case 12:
		recovered := make([]string, 0, 13)
		recovered = append(recovered, args[:4]...)
		recovered = append(recovered, "")
		recovered = append(recovered, args[4:]...)
		args = recovered
	case 13:
		// already in canonical shape
	default:
		return render.Request{}, fmt.Errorf("%w: cliargs: expected 12 or 13 arguments, got %d", renderresult.ErrInvalidArgument, len(args))
	}

	midi, err := NoteToMIDI(args[2])
	if err != nil {
		return render.Request{}, fmt.Errorf("%w: cliargs: %v", renderresult.ErrInvalidArgument, err)
	}

	fields := make([]float64, 0, 7)
	for _, tok := range []string{args[3], args[5], args[6], args[7], args[8], args[9], args[10]} {
		v, err := parseFloat(tok)
		if err != nil {
			return render.Request{}, fmt.Errorf("%w: cliargs: %v", renderresult.ErrInvalidArgument, err)
		}
		fields = append(fields, v)
	}
	velocity, offset, length, consonant, cutoff, volume, modulation := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]

	tempo, err := parseFloat(strings.TrimPrefix(args[11], "!"))
	if err != nil {
		return render.Request{}, fmt.Errorf("%w: cliargs: invalid tempo %q: %v", renderresult.ErrInvalidArgument, args[11], err)
	}

	cents, err := DecodePitchBend(args[12])
	if err != nil {
		return render.Request{}, fmt.Errorf("%w: %v", renderresult.ErrInvalidArgument, err)
	}

	return render.Request{
		InputPath:      args[0],
		OutputPath:     args[1],
		PitchMidi:      midi,
		Velocity:       velocity,
		Flags:          flags.Parse(args[4]),
		OffsetMs:       offset,
		LengthMs:       length,
		ConsonantMs:    consonant,
		CutoffMs:       cutoff,
		VolumePct:      volume,
		Modulation:     modulation,
		TempoBpm:       tempo,
		PitchBendCents: cents,
	}, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

var noteSemitone = map[rune]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// NoteToMIDI converts a note name such as "C4" or "A#3" into a MIDI
// note number using the standard C4 = 60 convention.
func NoteToMIDI(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty note")
	}
	letter := unicode.ToUpper(rune(s[0]))
	base, ok := noteSemitone[letter]
	if !ok {
		return 0, fmt.Errorf("invalid note letter in %q", s)
	}

	i := 1
	if i < len(s) && s[i] == '#' {
		base++
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("missing octave in note %q", s)
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note %q: %w", s, err)
	}
	return (octave+1)*12 + base, nil
}

const pitchBendAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var pitchBendIndex = buildPitchBendIndex()

func buildPitchBendIndex() map[byte]int {
	m := make(map[byte]int, len(pitchBendAlphabet))
	for i := 0; i < len(pitchBendAlphabet); i++ {
		m[pitchBendAlphabet[i]] = i
	}
	return m
}

// DecodePitchBend decodes the base64-like, run-length-compressed pitch
// bend encoding into a cents array: pairs of alphabet characters form
// signed 12-bit integers, and a "#<n>" segment repeats the previously
// decoded value n more times. A trailing 0 is always appended.
func DecodePitchBend(s string) ([]float64, error) {
	out := make([]float64, 0, len(s)/2+1)
	var last float64

	i := 0
	for i < len(s) {
		if s[i] == '#' {
			i++
			start := i
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("cliargs: malformed repeat segment in pitch bend %q", s)
			}
			n, err := strconv.Atoi(s[start:i])
			if err != nil {
				return nil, fmt.Errorf("cliargs: malformed repeat count in pitch bend %q: %w", s, err)
			}
			for k := 0; k < n; k++ {
				out = append(out, last)
			}
			continue
		}

		if i+1 >= len(s) {
			return nil, fmt.Errorf("cliargs: truncated pitch-bend pair in %q at offset %d", s, i)
		}
		c0, ok0 := pitchBendIndex[s[i]]
		c1, ok1 := pitchBendIndex[s[i+1]]
		if !ok0 || !ok1 {
			return nil, fmt.Errorf("cliargs: invalid pitch-bend character in %q at offset %d", s, i)
		}

		v := (c0 << 6) | c1
		if v&(1<<11) != 0 {
			v -= 4096
		}
		last = float64(v)
		out = append(out, last)
		i += 2
	}

	out = append(out, 0)
	return out, nil
}
