// Package viewport owns the scale/translate transform between world (map) space
// and view (screen) space.
//
// All operations tolerate degenerate input (NaN, zero or negative sizes) by
// ignoring it. Nothing here returns an error or panics on a resize race.
package viewport

import (
	"math"

	"github.com/fas-floormap/backend/internal/geom"
)

// scaleEpsilon is the smallest scale change ZoomAt will apply.
const scaleEpsilon = 0.0001

// minScale guards divisions by the current scale.
const minScale = 1e-6

// Options holds the tunables for a Viewport.
type Options struct {
	MinZoom       float64
	MaxZoom       float64
	ZoomStep      float64
	FitPadding    float64
	ContentWidth  float64
	ContentHeight float64
}

// DefaultOptions returns the settings used by the factory floor map.
func DefaultOptions() Options {
	return Options{
		MinZoom:       0.5,
		MaxZoom:       3.0,
		ZoomStep:      1.12,
		FitPadding:    24.0,
		ContentWidth:  3100.0,
		ContentHeight: 1700.0,
	}
}

// normalize clamps options into a usable range instead of rejecting them.
func (o Options) normalize() Options {
	d := DefaultOptions()
	if !(o.MinZoom > 0) || math.IsInf(o.MinZoom, 0) {
		o.MinZoom = d.MinZoom
	}
	if !(o.MaxZoom > 0) || math.IsInf(o.MaxZoom, 0) {
		o.MaxZoom = d.MaxZoom
	}
	if o.MinZoom > o.MaxZoom {
		o.MinZoom, o.MaxZoom = o.MaxZoom, o.MinZoom
	}
	if !(o.ZoomStep > 1) || math.IsInf(o.ZoomStep, 0) {
		o.ZoomStep = d.ZoomStep
	}
	if !(o.FitPadding >= 0) {
		o.FitPadding = 0
	}
	if math.IsNaN(o.ContentWidth) || o.ContentWidth < 0 {
		o.ContentWidth = 0
	}
	if math.IsNaN(o.ContentHeight) || o.ContentHeight < 0 {
		o.ContentHeight = 0
	}
	return o
}

// State is a read-only copy of the transform, suitable for serialization.
type State struct {
	Scale         float64 `json:"scale" msgpack:"scale"`
	TranslateX    float64 `json:"translateX" msgpack:"translateX"`
	TranslateY    float64 `json:"translateY" msgpack:"translateY"`
	HostWidth     float64 `json:"hostWidth" msgpack:"hostWidth"`
	HostHeight    float64 `json:"hostHeight" msgpack:"hostHeight"`
	ContentWidth  float64 `json:"contentWidth" msgpack:"contentWidth"`
	ContentHeight float64 `json:"contentHeight" msgpack:"contentHeight"`
	MinZoom       float64 `json:"minZoom" msgpack:"minZoom"`
	MaxZoom       float64 `json:"maxZoom" msgpack:"maxZoom"`
	IsPanning     bool    `json:"isPanning" msgpack:"isPanning"`
}

// panState records where a pan gesture started.
type panState struct {
	active         bool
	startMouse     geom.Point
	startTranslate geom.Point
}

// Viewport maps world coordinates to view coordinates: view = world*scale + translate.
type Viewport struct {
	opts       Options
	scale      float64
	translateX float64
	translateY float64
	hostWidth  float64
	hostHeight float64
	pan        panState
}

// New creates a viewport at scale 1 with no translation.
func New(opts Options) *Viewport {
	opts = opts.normalize()
	v := &Viewport{opts: opts}
	v.scale = clamp(1.0, opts.MinZoom, opts.MaxZoom)
	return v
}

// Scale returns the current world-to-view scale.
func (v *Viewport) Scale() float64 { return v.scale }

// Translate returns the current view-space translation.
func (v *Viewport) Translate() geom.Point { return geom.Pt(v.translateX, v.translateY) }

// IsPanning reports whether a pan gesture is in progress.
func (v *Viewport) IsPanning() bool { return v.pan.active }

// State returns a copy of the transform.
func (v *Viewport) State() State {
	return State{
		Scale:         v.scale,
		TranslateX:    v.translateX,
		TranslateY:    v.translateY,
		HostWidth:     v.hostWidth,
		HostHeight:    v.hostHeight,
		ContentWidth:  v.opts.ContentWidth,
		ContentHeight: v.opts.ContentHeight,
		MinZoom:       v.opts.MinZoom,
		MaxZoom:       v.opts.MaxZoom,
		IsPanning:     v.pan.active,
	}
}

// WorldToView converts a world point into view space.
func (v *Viewport) WorldToView(w geom.Point) geom.Point {
	return geom.Pt(w.X*v.scale+v.translateX, w.Y*v.scale+v.translateY)
}

// ViewToWorld converts a view point into world space.
func (v *Viewport) ViewToWorld(p geom.Point) geom.Point {
	s := v.scale
	if s < minScale {
		s = 1
	}
	return geom.Pt((p.X-v.translateX)/s, (p.Y-v.translateY)/s)
}

// ZoomAt zooms one step in (wheelDelta > 0) or out, keeping the world point
// under the cursor fixed in view space.
func (v *Viewport) ZoomAt(wheelDelta int, mouse geom.Point) {
	if !mouse.IsFinite() {
		return
	}

	oldScale := v.scale
	if oldScale < minScale {
		return
	}

	newScale := oldScale
	if wheelDelta > 0 {
		newScale *= v.opts.ZoomStep
	} else {
		newScale /= v.opts.ZoomStep
	}
	newScale = clamp(newScale, v.opts.MinZoom, v.opts.MaxZoom)
	if math.Abs(newScale-oldScale) < scaleEpsilon {
		return
	}

	wx := (mouse.X - v.translateX) / oldScale
	wy := (mouse.Y - v.translateY) / oldScale

	v.scale = newScale
	v.translateX = mouse.X - wx*newScale
	v.translateY = mouse.Y - wy*newScale
}

// BeginPan starts a pan gesture at the given view position.
func (v *Viewport) BeginPan(mouse geom.Point) {
	if !mouse.IsFinite() {
		return
	}
	v.pan = panState{
		active:         true,
		startMouse:     mouse,
		startTranslate: geom.Pt(v.translateX, v.translateY),
	}
}

// PanTo moves the translation by the pointer delta since BeginPan.
// Panning beyond the content bounds is allowed.
func (v *Viewport) PanTo(mouse geom.Point) {
	if !v.pan.active || !mouse.IsFinite() {
		return
	}
	delta := mouse.Sub(v.pan.startMouse)
	v.translateX = v.pan.startTranslate.X + delta.X
	v.translateY = v.pan.startTranslate.Y + delta.Y
}

// EndPan finishes the current pan gesture.
func (v *Viewport) EndPan() {
	v.pan = panState{}
}

// FitToContent scales and centers the content rectangle inside the host.
// Only the transform changes; world coordinates are never touched.
func (v *Viewport) FitToContent() {
	if !(v.hostWidth > 0) || !(v.hostHeight > 0) {
		return
	}
	cw, ch := v.opts.ContentWidth, v.opts.ContentHeight
	if !(cw > 0) || !(ch > 0) {
		return
	}

	pad := math.Max(0, v.opts.FitPadding)
	availW := math.Max(1, v.hostWidth-pad*2)
	availH := math.Max(1, v.hostHeight-pad*2)

	newScale := math.Min(availW/cw, availH/ch)
	newScale = clamp(newScale, v.opts.MinZoom, v.opts.MaxZoom)

	v.scale = newScale
	v.translateX = (v.hostWidth - cw*newScale) / 2.0
	v.translateY = (v.hostHeight - ch*newScale) / 2.0
}

// UpdateHostSize records the view size. NaN and non-positive sizes are ignored.
func (v *Viewport) UpdateHostSize(width, height float64, autoFit bool) {
	if math.IsNaN(width) || math.IsNaN(height) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return
	}
	if width <= 0 || height <= 0 {
		return
	}

	v.hostWidth = width
	v.hostHeight = height

	if autoFit {
		v.FitToContent()
	}
}

// SetContentSize changes the world extent used by FitToContent.
func (v *Viewport) SetContentSize(width, height float64) {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return
	}
	v.opts.ContentWidth = width
	v.opts.ContentHeight = height
}

// Reset fits the content when the host size is known, otherwise returns to identity.
func (v *Viewport) Reset() {
	v.EndPan()
	if v.hostWidth > 0 && v.hostHeight > 0 && v.opts.ContentWidth > 0 && v.opts.ContentHeight > 0 {
		v.FitToContent()
		return
	}
	v.scale = clamp(1.0, v.opts.MinZoom, v.opts.MaxZoom)
	v.translateX = 0
	v.translateY = 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
