package geom

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestPointDistance(t *testing.T) {
	a := Pt(0, 0)
	b := Pt(3, 4)
	if !approxEqual(a.Distance(b), 5.0, tolerance) {
		t.Errorf("expected distance 5.0, got %f", a.Distance(b))
	}
}

func TestPointNormalize(t *testing.T) {
	n := Pt(3, 4).Normalize()
	if !approxEqual(n.Length(), 1.0, tolerance) {
		t.Errorf("expected unit length, got %f", n.Length())
	}

	zero := Pt(0, 0).Normalize()
	if zero != (Point{}) {
		t.Errorf("expected zero vector, got %+v", zero)
	}
}

func TestPointArithmetic(t *testing.T) {
	p := Pt(1, 2).Add(Pt(3, 4)).Sub(Pt(1, 1)).Scale(2)
	if p != Pt(6, 10) {
		t.Errorf("expected (6,10), got %+v", p)
	}
}

func TestPointIsFinite(t *testing.T) {
	if !Pt(1, 2).IsFinite() {
		t.Error("expected finite point")
	}
	if Pt(math.NaN(), 0).IsFinite() || Pt(0, math.Inf(1)).IsFinite() {
		t.Error("expected non-finite point to be rejected")
	}
}

func TestClonePath(t *testing.T) {
	src := []Point{Pt(1, 1), Pt(2, 2)}
	dst := ClonePath(src)
	dst[0] = Pt(9, 9)
	if src[0] != Pt(1, 1) {
		t.Error("clone shares backing array with source")
	}
	if ClonePath(nil) != nil {
		t.Error("expected nil clone of nil path")
	}
}
