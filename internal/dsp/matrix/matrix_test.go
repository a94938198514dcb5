package matrix

import (
	"math"
	"testing"
)

func TestNewStridedRejectsBadShape(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for stride < cols")
		}
	}()
	NewStrided(2, 4, 2)
}

func TestSetAtRoundtrip(t *testing.T) {
	m := New(3, 4)
	m.Set(1, 2, 5.5)
	if got := m.At(1, 2); got != 5.5 {
		t.Fatalf("At = %v, want 5.5", got)
	}
	if m.At(0, 0) != 0 {
		t.Fatalf("expected zero-initialized matrix")
	}
}

func TestRowIsAView(t *testing.T) {
	m := New(2, 3)
	row := m.Row(0)
	row[1] = 9
	if m.At(0, 1) != 9 {
		t.Fatalf("Row did not alias the backing buffer")
	}
}

func TestMultiplyIdentity(t *testing.T) {
	a := New(2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 3)
	a.Set(1, 1, 4)

	id := New(2, 2)
	id.Set(0, 0, 1)
	id.Set(1, 1, 1)

	out := Multiply(a, id)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if out.At(r, c) != a.At(r, c) {
				t.Fatalf("Multiply by identity changed (%d,%d): %v vs %v", r, c, out.At(r, c), a.At(r, c))
			}
		}
	}
}

func TestMultiplyKnownProduct(t *testing.T) {
	a := New(2, 3)
	vals := []float64{1, 2, 3, 4, 5, 6}
	for i, v := range vals {
		a.Set(i/3, i%3, v)
	}
	b := New(3, 2)
	bvals := []float64{7, 8, 9, 10, 11, 12}
	for i, v := range bvals {
		b.Set(i/2, i%2, v)
	}

	out := Multiply(a, b)
	want := [][]float64{{58, 64}, {139, 154}}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if math.Abs(out.At(r, c)-want[r][c]) > 1e-9 {
				t.Fatalf("out[%d][%d] = %v, want %v", r, c, out.At(r, c), want[r][c])
			}
		}
	}
}

func TestMultiplyLargeMatchesNaive(t *testing.T) {
	const m, k, n = 40, 40, 40
	a := New(m, k)
	b := New(k, n)
	for r := 0; r < m; r++ {
		for c := 0; c < k; c++ {
			a.Set(r, c, float64((r*7+c*3)%11)-5)
		}
	}
	for r := 0; r < k; r++ {
		for c := 0; c < n; c++ {
			b.Set(r, c, float64((r*5+c*2)%9)-4)
		}
	}

	out := Multiply(a, b)
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			var want float64
			for i := 0; i < k; i++ {
				want += a.At(r, i) * b.At(i, c)
			}
			if math.Abs(out.At(r, c)-want) > 1e-9 {
				t.Fatalf("mismatch at (%d,%d): got %v want %v", r, c, out.At(r, c), want)
			}
		}
	}
}

func TestTransposeRoundtrip(t *testing.T) {
	m := New(5, 3)
	for r := 0; r < 5; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, float64(r*3+c))
		}
	}
	tr := Transpose(m)
	if tr.Rows() != 3 || tr.Cols() != 5 {
		t.Fatalf("Transpose shape = %dx%d, want 3x5", tr.Rows(), tr.Cols())
	}
	for r := 0; r < 5; r++ {
		for c := 0; c < 3; c++ {
			if tr.At(c, r) != m.At(r, c) {
				t.Fatalf("transpose mismatch at (%d,%d)", r, c)
			}
		}
	}
}

func TestScaleInPlace(t *testing.T) {
	m := New(2, 2)
	m.Set(0, 0, 2)
	m.Set(1, 1, 3)
	ScaleInPlace(m, 2)
	if m.At(0, 0) != 4 || m.At(1, 1) != 6 {
		t.Fatalf("ScaleInPlace produced %v, %v", m.At(0, 0), m.At(1, 1))
	}
}

func TestAddInPlaceShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on shape mismatch")
		}
	}()
	AddInPlace(New(2, 2), New(3, 3))
}
