package floor

import (
	"context"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
)

// InputResult describes how the floor handled a pointer event.
type InputResult struct {
	Gesture  string `json:"gesture"`
	EntityID string `json:"entityId,omitempty"`
	Moved    bool   `json:"moved,omitempty"`
	Tooltip  string `json:"tooltip,omitempty"`
}

func (f *Floor) result(id string, moved bool) InputResult {
	r := InputResult{Gesture: f.gesture.String(), EntityID: id, Moved: moved}
	if id != "" {
		if e, ok := f.store.Get(id); ok {
			r.Tooltip = e.Describe()
		}
	}
	return r
}

// Wheel zooms about the pointer position.
func (f *Floor) Wheel(ctx context.Context, delta int, pos geom.Point) error {
	return f.Do(ctx, func() {
		if !pos.IsFinite() {
			return
		}
		f.vp.ZoomAt(delta, pos)
	})
}

// PointerDown starts a drag when targetID (or, if empty, the entity under the
// pointer) is interactive and the floor is in edit mode. Anything else pans.
func (f *Floor) PointerDown(ctx context.Context, pos geom.Point, targetID string) (InputResult, error) {
	var res InputResult
	err := f.Do(ctx, func() {
		if !pos.IsFinite() {
			res = f.result("", false)
			return
		}
		f.cancelGesture()

		id := targetID
		if id == "" {
			if e, ok := f.store.HitTest(f.vp.ViewToWorld(pos), true); ok {
				id = e.ID
			}
		}
		if id != "" && f.editMode && f.drag.PointerDown(f.store, id, pos, f.vp.Scale()) {
			f.gesture = gestureDrag
			res = f.result(id, false)
			return
		}

		f.vp.BeginPan(pos)
		f.gesture = gesturePan
		res = f.result("", false)
	})
	return res, err
}

// PointerMove continues the active gesture, or updates the hover target when
// idle. Equipment wins over the layout overlays beneath it.
func (f *Floor) PointerMove(ctx context.Context, pos geom.Point) (InputResult, error) {
	var res InputResult
	err := f.Do(ctx, func() {
		if !pos.IsFinite() {
			res = f.result("", false)
			return
		}
		switch f.gesture {
		case gestureDrag:
			moved := f.drag.PointerMove(f.store, pos)
			id := f.drag.State().EntityID
			if !f.drag.Dragging() {
				f.gesture = gestureNone
			}
			res = f.result(id, moved)
		case gesturePan:
			f.vp.PanTo(pos)
			res = f.result("", true)
		default:
			f.hover = ""
			world := f.vp.ViewToWorld(pos)
			if e, ok := f.store.HitTest(world, true); ok {
				f.hover = e.ID
			} else if e, ok := f.store.HitTest(world, false); ok {
				f.hover = e.ID
			}
			res = f.result(f.hover, false)
		}
	})
	return res, err
}

// PointerUp ends the active gesture. A drag gets its final grid snap.
func (f *Floor) PointerUp(ctx context.Context, pos geom.Point) (InputResult, error) {
	var res InputResult
	err := f.Do(ctx, func() {
		switch f.gesture {
		case gestureDrag:
			id := f.drag.State().EntityID
			f.drag.PointerUp(f.store)
			f.gesture = gestureNone
			res = f.result(id, false)
		case gesturePan:
			if pos.IsFinite() {
				f.vp.PanTo(pos)
			}
			f.vp.EndPan()
			f.gesture = gestureNone
			res = f.result("", false)
		default:
			res = f.result("", false)
		}
	})
	return res, err
}

// LostCapture abandons the active gesture without a final snap.
func (f *Floor) LostCapture(ctx context.Context) error {
	return f.Do(ctx, f.cancelGesture)
}

func (f *Floor) cancelGesture() {
	switch f.gesture {
	case gestureDrag:
		f.drag.Abort()
	case gesturePan:
		f.vp.EndPan()
	}
	f.gesture = gestureNone
}

// Nudge moves an entity by one keyboard step. It reports whether the entity moved.
func (f *Floor) Nudge(ctx context.Context, entityID string, dir models.Direction, modifier bool) (bool, error) {
	var ok bool
	err := f.Do(ctx, func() {
		if !f.editMode {
			return
		}
		ok = f.drag.Nudge(f.store, entityID, dir, modifier)
	})
	return ok, err
}

// Resize records the host size, refitting when configured to.
func (f *Floor) Resize(ctx context.Context, width, height float64) error {
	return f.Do(ctx, func() {
		f.vp.UpdateHostSize(width, height, f.opts.FitOnResize)
	})
}

// SetEditMode switches between edit and view mode. Leaving edit mode aborts a drag.
func (f *Floor) SetEditMode(ctx context.Context, on bool) error {
	return f.Do(ctx, func() {
		f.editMode = on
		f.drag.SetViewMode(!on)
		if !on && f.gesture == gestureDrag {
			f.gesture = gestureNone
		}
	})
}

// SetGridSize changes the snap grid; sizes are clamped to the valid range.
func (f *Floor) SetGridSize(ctx context.Context, size int, snap bool) error {
	return f.Do(ctx, func() {
		f.drag.SetGridSize(size)
		f.drag.SetSnapToGrid(snap)
	})
}

// FitToContent fits the map into the host.
func (f *Floor) FitToContent(ctx context.Context) error {
	return f.Do(ctx, f.vp.FitToContent)
}

// ResetViewport returns the viewport to its fitted or identity transform.
func (f *Floor) ResetViewport(ctx context.Context) error {
	return f.Do(ctx, func() {
		if f.gesture == gesturePan {
			f.gesture = gestureNone
		}
		f.vp.Reset()
	})
}
