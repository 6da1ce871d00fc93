// Package drag turns view-space pointer input into world-space moves of a
// single map entity, with optional grid snapping.
package drag

import (
	"math"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
)

const (
	MinGridSize = 1
	MaxGridSize = 512

	// scales at or below this are treated as 1 when converting pixels to world units
	minUsableScale = 1e-6
)

// Options tunes the drag controller.
type Options struct {
	GridSize          int
	SnapToGrid        bool
	Threshold         float64 // view px, measured as |dx|+|dy|
	NudgeStep         float64
	NudgeStepModified float64
}

// DefaultOptions returns the editor defaults.
func DefaultOptions() Options {
	return Options{
		GridSize:          10,
		SnapToGrid:        true,
		Threshold:         2,
		NudgeStep:         1,
		NudgeStepModified: 10,
	}
}

func (o *Options) normalize() {
	o.GridSize = ClampGridSize(o.GridSize)
	if o.Threshold < 0 || math.IsNaN(o.Threshold) {
		o.Threshold = 0
	}
	if o.NudgeStep <= 0 || math.IsNaN(o.NudgeStep) {
		o.NudgeStep = 1
	}
	if o.NudgeStepModified <= 0 || math.IsNaN(o.NudgeStepModified) {
		o.NudgeStepModified = 10
	}
}

// ClampGridSize pulls a grid size into [MinGridSize, MaxGridSize].
func ClampGridSize(g int) int {
	if g < MinGridSize {
		return MinGridSize
	}
	if g > MaxGridSize {
		return MaxGridSize
	}
	return g
}

// Snap rounds v to the nearest multiple of grid. Grids of 1 or less leave v unchanged.
func Snap(v, grid float64) float64 {
	if grid <= 1 || math.IsNaN(grid) {
		return v
	}
	return math.Round(v/grid) * grid
}

// Target is the entity storage the controller reads from and writes to.
type Target interface {
	Get(id string) (models.MapEntity, bool)
	Move(id string, x, y float64) bool
}

// State is the in-progress drag. The zero value is idle.
type State struct {
	Active       bool       `json:"active" msgpack:"active"`
	EntityID     string     `json:"entityId,omitempty" msgpack:"entityId,omitempty"`
	StartWorld   geom.Point `json:"startWorld" msgpack:"startWorld"`
	StartPointer geom.Point `json:"startPointer" msgpack:"startPointer"`
	Scale        float64    `json:"scale" msgpack:"scale"`
	HasMoved     bool       `json:"hasMoved" msgpack:"hasMoved"`
}

// Controller drives one drag at a time.
type Controller struct {
	opts     Options
	viewMode bool
	state    State
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	opts.normalize()
	return &Controller{opts: opts}
}

// Options returns the effective options.
func (c *Controller) Options() Options {
	return c.opts
}

// State returns a copy of the current drag state.
func (c *Controller) State() State {
	return c.state
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	return c.state.Active
}

// ViewMode reports whether editing is disabled.
func (c *Controller) ViewMode() bool {
	return c.viewMode
}

// SetViewMode toggles read-only mode. Entering view mode mid-drag aborts the drag.
func (c *Controller) SetViewMode(on bool) {
	c.viewMode = on
	if on {
		c.Abort()
	}
}

// SetGridSize changes the snap grid, clamping to the valid range.
func (c *Controller) SetGridSize(g int) {
	c.opts.GridSize = ClampGridSize(g)
}

// SetSnapToGrid enables or disables grid snapping.
func (c *Controller) SetSnapToGrid(on bool) {
	c.opts.SnapToGrid = on
}

func (c *Controller) snapping() bool {
	return c.opts.SnapToGrid && c.opts.GridSize > 1
}

func (c *Controller) snapPoint(x, y float64) (float64, float64) {
	if !c.snapping() {
		return x, y
	}
	g := float64(c.opts.GridSize)
	return Snap(x, g), Snap(y, g)
}

// PointerDown starts dragging the entity. The scale is captured here and used
// for the whole drag. It returns false when the entity is unknown, not
// interactive, or the controller is in view mode.
func (c *Controller) PointerDown(t Target, id string, pointer geom.Point, scale float64) bool {
	if c.viewMode || !pointer.IsFinite() {
		return false
	}
	e, ok := t.Get(id)
	if !ok || !e.IsInteractive {
		return false
	}
	if scale <= minUsableScale || math.IsNaN(scale) || math.IsInf(scale, 0) {
		scale = 1
	}

	c.state = State{
		Active:       true,
		EntityID:     id,
		StartWorld:   geom.Pt(e.X, e.Y),
		StartPointer: pointer,
		Scale:        scale,
	}
	return true
}

// PointerMove moves the dragged entity. Moves within the click threshold are
// ignored until the pointer first leaves it. It returns true when the entity moved.
func (c *Controller) PointerMove(t Target, pointer geom.Point) bool {
	if !c.state.Active || !pointer.IsFinite() {
		return false
	}
	if c.viewMode {
		c.Abort()
		return false
	}

	delta := pointer.Sub(c.state.StartPointer)
	if !c.state.HasMoved {
		if math.Abs(delta.X)+math.Abs(delta.Y) < c.opts.Threshold {
			return false
		}
		c.state.HasMoved = true
	}

	world := c.state.StartWorld.Add(delta.Scale(1 / c.state.Scale))
	x, y := c.snapPoint(world.X, world.Y)
	if !t.Move(c.state.EntityID, x, y) {
		c.Abort()
		return false
	}
	return true
}

// PointerUp ends the drag, snapping the entity one last time.
func (c *Controller) PointerUp(t Target) bool {
	if !c.state.Active {
		return false
	}
	id := c.state.EntityID
	c.state = State{}

	if !c.snapping() {
		return true
	}
	e, ok := t.Get(id)
	if !ok {
		return false
	}
	x, y := c.snapPoint(e.X, e.Y)
	if x != e.X || y != e.Y {
		t.Move(id, x, y)
	}
	return true
}

// Abort ends the drag without the final snap, leaving the entity where the
// last move put it.
func (c *Controller) Abort() {
	c.state = State{}
}

// Nudge moves an entity one step in dir, or a larger step when modifier is
// held, then snaps. It returns false when the snap lands back on the start.
func (c *Controller) Nudge(t Target, id string, dir models.Direction, modifier bool) bool {
	if c.viewMode {
		return false
	}
	e, ok := t.Get(id)
	if !ok || !e.IsInteractive {
		return false
	}

	step := c.opts.NudgeStep
	if modifier {
		step = c.opts.NudgeStepModified
	}
	x, y := e.X, e.Y
	switch dir {
	case models.DirectionLeft:
		x -= step
	case models.DirectionRight:
		x += step
	case models.DirectionUp:
		y -= step
	case models.DirectionDown:
		y += step
	default:
		return false
	}

	x, y = c.snapPoint(x, y)
	if x == e.X && y == e.Y {
		return false
	}
	return t.Move(id, x, y)
}
