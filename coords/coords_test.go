package coords

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMultiplyOrder(t *testing.T) {
	// Scale then translate: the translation must not be scaled.
	m := Scale(2, 2).Multiply(Translate(10, 0))
	p := m.Transform(Point{X: 1, Y: 1})
	if !approx(p.X, 12) || !approx(p.Y, 2) {
		t.Fatalf("got (%v, %v), want (12, 2)", p.X, p.Y)
	}

	// Translate then scale: it must.
	m = Translate(10, 0).Multiply(Scale(2, 2))
	p = m.Transform(Point{X: 1, Y: 1})
	if !approx(p.X, 22) || !approx(p.Y, 2) {
		t.Fatalf("got (%v, %v), want (22, 2)", p.X, p.Y)
	}
}

func TestRotate(t *testing.T) {
	p := Rotate(math.Pi / 2).Transform(Point{X: 1})
	if !approx(p.X, 0) || !approx(p.Y, 1) {
		t.Fatalf("rotated point = (%v, %v)", p.X, p.Y)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translate(5, -3).Multiply(Scale(2, 4)).Multiply(Rotate(0.3))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	id := m.Multiply(inv)
	want := Identity()
	for i := range id {
		if !approx(id[i], want[i]) {
			t.Fatalf("m * m^-1 = %v", id)
		}
	}
}

func TestInverseSingular(t *testing.T) {
	if _, err := (Matrix{0, 0, 0, 0, 1, 2}).Inverse(); err == nil {
		t.Fatal("singular matrix must not invert")
	}
}

func TestIdentityTransform(t *testing.T) {
	p := Identity().Transform(Point{X: 3.5, Y: -8})
	if p.X != 3.5 || p.Y != -8 {
		t.Fatalf("identity moved the point: %+v", p)
	}
}
