package viewport

import (
	"math"
	"math/rand"
	"testing"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

func TestZoomAt_InAtPoint(t *testing.T) {
	v := New(DefaultOptions())
	require.Equal(t, 1.0, v.Scale())

	mouse := geom.Pt(100, 100)
	v.ZoomAt(1, mouse)

	assert.InDelta(t, 1.12, v.Scale(), tolerance)
	tr := v.Translate()
	assert.InDelta(t, (100-0)/1.0, (100-tr.X)/1.12, tolerance)
	assert.InDelta(t, (100-0)/1.0, (100-tr.Y)/1.12, tolerance)
	assert.InDelta(t, -12.0, tr.X, tolerance)
}

func TestZoomAt_KeepsWorldPointUnderCursor(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := New(DefaultOptions())
	v.UpdateHostSize(1280, 720, true)

	for i := 0; i < 500; i++ {
		mouse := geom.Pt(rng.Float64()*1600-160, rng.Float64()*900-90)
		delta := 120
		if rng.Intn(2) == 0 {
			delta = -120
		}

		before := v.ViewToWorld(mouse)
		v.ZoomAt(delta, mouse)
		after := v.ViewToWorld(mouse)

		require.InDelta(t, before.X, after.X, 1e-6, "iteration %d", i)
		require.InDelta(t, before.Y, after.Y, 1e-6, "iteration %d", i)
	}
}

func TestZoomAt_StaysWithinBounds(t *testing.T) {
	opts := DefaultOptions()
	v := New(opts)

	for i := 0; i < 100; i++ {
		v.ZoomAt(1, geom.Pt(10, 10))
		assert.LessOrEqual(t, v.Scale(), opts.MaxZoom)
	}
	assert.InDelta(t, opts.MaxZoom, v.Scale(), tolerance)

	for i := 0; i < 100; i++ {
		v.ZoomAt(-1, geom.Pt(10, 10))
		assert.GreaterOrEqual(t, v.Scale(), opts.MinZoom)
	}
	assert.InDelta(t, opts.MinZoom, v.Scale(), tolerance)
}

func TestZoomAt_NoOpAtBound(t *testing.T) {
	v := New(DefaultOptions())
	for i := 0; i < 50; i++ {
		v.ZoomAt(1, geom.Pt(0, 0))
	}
	before := v.State()
	v.ZoomAt(1, geom.Pt(500, 300))
	assert.Equal(t, before, v.State(), "zoom past max must not move the translation")
}

func TestZoomAt_ZeroDeltaZoomsOut(t *testing.T) {
	v := New(DefaultOptions())
	v.ZoomAt(0, geom.Pt(0, 0))
	assert.InDelta(t, 1/1.12, v.Scale(), tolerance)
}

func TestZoomAt_IgnoresNaNPosition(t *testing.T) {
	v := New(DefaultOptions())
	before := v.State()
	v.ZoomAt(1, geom.Pt(math.NaN(), 0))
	assert.Equal(t, before, v.State())
}

func TestPan(t *testing.T) {
	t.Run("moves translation by pointer delta", func(t *testing.T) {
		v := New(DefaultOptions())
		v.ZoomAt(1, geom.Pt(50, 50))
		start := v.Translate()

		v.BeginPan(geom.Pt(200, 200))
		v.PanTo(geom.Pt(250, 180))
		assert.True(t, v.IsPanning())
		assert.InDelta(t, start.X+50, v.Translate().X, tolerance)
		assert.InDelta(t, start.Y-20, v.Translate().Y, tolerance)

		v.PanTo(geom.Pt(200, 200))
		assert.InDelta(t, start.X, v.Translate().X, tolerance)

		v.EndPan()
		assert.False(t, v.IsPanning())
	})

	t.Run("pan without begin is ignored", func(t *testing.T) {
		v := New(DefaultOptions())
		v.PanTo(geom.Pt(999, 999))
		assert.Equal(t, geom.Pt(0, 0), v.Translate())
	})

	t.Run("panning beyond content is allowed", func(t *testing.T) {
		v := New(DefaultOptions())
		v.BeginPan(geom.Pt(0, 0))
		v.PanTo(geom.Pt(-100000, 100000))
		assert.Equal(t, geom.Pt(-100000, 100000), v.Translate())
	})

	t.Run("pan after end is ignored", func(t *testing.T) {
		v := New(DefaultOptions())
		v.BeginPan(geom.Pt(0, 0))
		v.EndPan()
		v.PanTo(geom.Pt(10, 10))
		assert.Equal(t, geom.Pt(0, 0), v.Translate())
	})
}

func TestFitToContent(t *testing.T) {
	t.Run("centers content", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ContentWidth = 1000
		opts.ContentHeight = 500
		opts.FitPadding = 0
		v := New(opts)
		v.UpdateHostSize(1000, 1000, true)

		assert.InDelta(t, 1.0, v.Scale(), tolerance)
		assert.InDelta(t, 0.0, v.Translate().X, tolerance)
		assert.InDelta(t, 250.0, v.Translate().Y, tolerance)
	})

	t.Run("clamps to zoom bounds", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ContentWidth = 10
		opts.ContentHeight = 10
		v := New(opts)
		v.UpdateHostSize(4000, 4000, true)
		assert.InDelta(t, opts.MaxZoom, v.Scale(), tolerance)
		assert.InDelta(t, (4000-10*opts.MaxZoom)/2, v.Translate().X, tolerance)
	})

	t.Run("is idempotent", func(t *testing.T) {
		v := New(DefaultOptions())
		v.UpdateHostSize(1366, 768, false)
		v.ZoomAt(1, geom.Pt(30, 40))
		v.FitToContent()
		first := v.State()
		v.FitToContent()
		assert.Equal(t, first, v.State())
	})

	t.Run("no-op without host size", func(t *testing.T) {
		v := New(DefaultOptions())
		v.FitToContent()
		assert.Equal(t, 1.0, v.Scale())
		assert.Equal(t, geom.Pt(0, 0), v.Translate())
	})

	t.Run("padding larger than host keeps a positive scale", func(t *testing.T) {
		opts := DefaultOptions()
		opts.FitPadding = 500
		v := New(opts)
		v.UpdateHostSize(100, 100, true)
		assert.Greater(t, v.Scale(), 0.0)
		assert.GreaterOrEqual(t, v.Scale(), opts.MinZoom)
	})
}

func TestUpdateHostSize_IgnoresDegenerate(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
	}{
		{"zero width", 0, 100},
		{"negative height", 100, -1},
		{"NaN", math.NaN(), 100},
		{"infinite", math.Inf(1), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(DefaultOptions())
			v.UpdateHostSize(800, 600, false)
			v.UpdateHostSize(tt.w, tt.h, true)
			st := v.State()
			assert.Equal(t, 800.0, st.HostWidth)
			assert.Equal(t, 600.0, st.HostHeight)
			assert.Equal(t, 1.0, st.Scale)
		})
	}
}

func TestReset(t *testing.T) {
	t.Run("identity without host", func(t *testing.T) {
		v := New(DefaultOptions())
		v.ZoomAt(1, geom.Pt(10, 10))
		v.Reset()
		assert.Equal(t, 1.0, v.Scale())
		assert.Equal(t, geom.Pt(0, 0), v.Translate())
	})

	t.Run("fits with host", func(t *testing.T) {
		v := New(DefaultOptions())
		v.UpdateHostSize(1600, 900, true)
		fitted := v.State()
		v.ZoomAt(1, geom.Pt(10, 10))
		v.Reset()
		assert.Equal(t, fitted, v.State())
	})
}

func TestWorldViewRoundTrip(t *testing.T) {
	v := New(DefaultOptions())
	v.UpdateHostSize(1024, 768, true)
	v.ZoomAt(1, geom.Pt(300, 200))

	w := geom.Pt(1234.5, 678.9)
	back := v.ViewToWorld(v.WorldToView(w))
	assert.InDelta(t, w.X, back.X, tolerance)
	assert.InDelta(t, w.Y, back.Y, tolerance)
}

func TestOptionsNormalize(t *testing.T) {
	v := New(Options{MinZoom: 4, MaxZoom: 2, ZoomStep: 0.5, FitPadding: -3})
	st := v.State()
	assert.Equal(t, 2.0, st.MinZoom)
	assert.Equal(t, 4.0, st.MaxZoom)
	assert.Equal(t, 2.0, v.Scale(), "initial scale is clamped into bounds")

	v.ZoomAt(1, geom.Pt(0, 0))
	assert.InDelta(t, 2.0*1.12, v.Scale(), tolerance, "invalid zoom step falls back to default")
}
