// Package cache implements the content-addressed (by filename + flag
// signature, not by file content — see the package-level note below)
// feature cache for mel spectrograms, their recorded peak-normalize
// scale, and harmonic-separator output. Entries live next to the
// source audio file and are written atomically via a temp-file
// rename.
//
// The cache keys on filename and flag signature only. If a source
// file is replaced in place without changing its name, a stale cache
// entry can be served; this is a documented limitation, not a bug.
package cache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/matrix"
)

// ErrMiss is returned whenever a load cannot produce a usable entry:
// the file is missing, its magic tag doesn't match, its declared shape
// is inconsistent with the data present, or I/O fails outright. All of
// these collapse to a plain cache miss by contract.
var ErrMiss = errors.New("cache: miss")

const (
	magicMel = "MEL1"
	magicScl = "SCL1"
	magicHnp = "HNP1"
)

func stem(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	if dir == "" {
		dir = "."
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base)
}

// MelPath returns the mel cache filename for a given signature.
func MelPath(sourcePath, signature string) string {
	return stem(sourcePath) + "_" + signature + ".mel.bin"
}

// ScalePath returns the scale cache filename for a given signature.
func ScalePath(sourcePath, signature string) string {
	return stem(sourcePath) + "_" + signature + ".scale.bin"
}

// SepPath returns the separator-output cache filename. It carries no
// signature suffix since the separator's output doesn't depend on the
// cache-relevant flags.
func SepPath(sourcePath string) string {
	return stem(sourcePath) + ".hnsep.bin"
}

// LoadMel reads a mel matrix previously written by SaveMel.
func LoadMel(sourcePath, signature string) (*matrix.Matrix, error) {
	f, err := os.Open(MelPath(sourcePath, signature))
	if err != nil {
		return nil, ErrMiss
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if !readMagic(r, magicMel) {
		return nil, ErrMiss
	}

	var rows, cols int32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, ErrMiss
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, ErrMiss
	}
	if rows < 0 || cols < 0 {
		return nil, ErrMiss
	}

	m := matrix.New(int(rows), int(cols))
	buf := make([]float32, cols)
	for r32 := int32(0); r32 < rows; r32++ {
		if err := binary.Read(r, binary.LittleEndian, &buf); err != nil {
			return nil, ErrMiss
		}
		dst := m.Row(int(r32))
		for c, v := range buf {
			dst[c] = float64(v)
		}
	}
	return m, nil
}

// SaveMel atomically writes m under the signature-suffixed mel path.
func SaveMel(sourcePath, signature string, m *matrix.Matrix) error {
	return atomicWrite(MelPath(sourcePath, signature), func(w io.Writer) error {
		if err := writeMagic(w, magicMel); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(m.Rows())); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(m.Cols())); err != nil {
			return err
		}
		buf := make([]float32, m.Cols())
		for r := 0; r < m.Rows(); r++ {
			row := m.Row(r)
			for c, v := range row {
				buf[c] = float32(v)
			}
			if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadScale reads the recorded peak-normalize scale.
func LoadScale(sourcePath, signature string) (float64, error) {
	f, err := os.Open(ScalePath(sourcePath, signature))
	if err != nil {
		return 0, ErrMiss
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if !readMagic(r, magicScl) {
		return 0, ErrMiss
	}
	var v float32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, ErrMiss
	}
	return float64(v), nil
}

// SaveScale atomically writes the recorded peak-normalize scale.
func SaveScale(sourcePath, signature string, scale float64) error {
	return atomicWrite(ScalePath(sourcePath, signature), func(w io.Writer) error {
		if err := writeMagic(w, magicScl); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, float32(scale))
	})
}

// LoadSep reads cached separator output, discarding it unless its
// length equals expectedLength.
func LoadSep(sourcePath string, expectedLength int) ([]float64, error) {
	f, err := os.Open(SepPath(sourcePath))
	if err != nil {
		return nil, ErrMiss
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if !readMagic(r, magicHnp) {
		return nil, ErrMiss
	}
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, ErrMiss
	}
	if int(length) != expectedLength {
		return nil, ErrMiss
	}

	buf := make([]float32, length)
	if err := binary.Read(r, binary.LittleEndian, &buf); err != nil {
		return nil, ErrMiss
	}
	out := make([]float64, length)
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out, nil
}

// SaveSep atomically writes separator output.
func SaveSep(sourcePath string, samples []float64) error {
	return atomicWrite(SepPath(sourcePath), func(w io.Writer) error {
		if err := writeMagic(w, magicHnp); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(samples))); err != nil {
			return err
		}
		buf := make([]float32, len(samples))
		for i, v := range samples {
			buf[i] = float32(v)
		}
		return binary.Write(w, binary.LittleEndian, buf)
	})
}

func readMagic(r io.Reader, want string) bool {
	got := make([]byte, 4)
	if _, err := io.ReadFull(r, got); err != nil {
		return false
	}
	return string(got) == want
}

func writeMagic(w io.Writer, tag string) error {
	_, err := w.Write([]byte(tag))
	return err
}

// atomicWrite writes via a temp file in the destination directory,
// then renames it into place, so a crash or cancellation mid-write
// never leaves a partial cache entry visible under the final name.
func atomicWrite(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	writeErr := write(w)
	if writeErr == nil {
		writeErr = w.Flush()
	}
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}

	return os.Rename(tmpPath, path)
}
