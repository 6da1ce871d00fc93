package floor

import (
	"context"

	"github.com/fas-floormap/backend/internal/drag"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/viewport"
)

// EntityView is an entity plus its hover text.
type EntityView struct {
	models.MapEntity `msgpack:",inline"`
	Tooltip          string `json:"tooltip" msgpack:"tooltip"`
}

// Snapshot is a consistent copy of everything a client renders.
type Snapshot struct {
	SessionID string          `json:"sessionId" msgpack:"sessionId"`
	EditMode  bool            `json:"editMode" msgpack:"editMode"`
	GridSize  int             `json:"gridSize" msgpack:"gridSize"`
	Gesture   string          `json:"gesture" msgpack:"gesture"`
	Hover     string          `json:"hover,omitempty" msgpack:"hover,omitempty"`
	Viewport  viewport.State  `json:"viewport" msgpack:"viewport"`
	Drag      drag.State      `json:"drag" msgpack:"drag"`
	Entities  []EntityView    `json:"entities" msgpack:"entities"`
	Sim       models.SimState `json:"sim" msgpack:"sim"`
	Frame     models.Frame    `json:"frame" msgpack:"frame"`
	Dropped   int64           `json:"droppedFrames" msgpack:"droppedFrames"`
}

// StartSimulation starts the tick source. Starting a running simulation is a no-op.
func (f *Floor) StartSimulation(ctx context.Context) error {
	return f.Do(ctx, func() {
		f.startSim()
		f.publish()
	})
}

// StopSimulation stops the tick source.
func (f *Floor) StopSimulation(ctx context.Context) error {
	return f.Do(ctx, func() {
		f.stopSim()
		f.publish()
	})
}

// ResetSimulation empties the stations and parks the carts at Output.
func (f *Floor) ResetSimulation(ctx context.Context) error {
	return f.Do(ctx, func() {
		f.sim.Reset()
		f.publish()
	})
}

// AddStock changes a station's stock by n, clamped at zero. ok is false for
// an unknown station.
func (f *Floor) AddStock(ctx context.Context, station models.StationID, n int) (stock int, ok bool, err error) {
	err = f.Do(ctx, func() {
		stock, ok = f.sim.AddStock(station, n)
		if ok {
			f.publish()
		}
	})
	return stock, ok, err
}

// SetSpawnProbability changes the per-tick production chance at Output and
// returns the value in effect after clamping.
func (f *Floor) SetSpawnProbability(ctx context.Context, p float64) (float64, error) {
	var applied float64
	err := f.Do(ctx, func() {
		f.sim.SetSpawnProbability(p)
		applied = f.sim.Config().SpawnProbability
	})
	return applied, err
}

// Step advances the simulation by dt seconds outside the clock, clamped to
// the clock's maximum step.
func (f *Floor) Step(ctx context.Context, dt float64) error {
	return f.Do(ctx, func() {
		if max := f.clock.MaxStep().Seconds(); dt > max {
			dt = max
		}
		f.advance(dt)
	})
}

// SetStatus changes an entity's runtime status.
func (f *Floor) SetStatus(ctx context.Context, id string, status models.EntityStatus) (bool, error) {
	var ok bool
	err := f.Do(ctx, func() { ok = f.store.SetStatus(id, status) })
	return ok, err
}

// SetHasItem marks whether an entity holds a product.
func (f *Floor) SetHasItem(ctx context.Context, id string, hasItem bool) (bool, error) {
	var ok bool
	err := f.Do(ctx, func() { ok = f.store.SetHasItem(id, hasItem) })
	return ok, err
}

// Entities returns copies of all entities in paint order.
func (f *Floor) Entities(ctx context.Context) ([]models.MapEntity, error) {
	var list []models.MapEntity
	err := f.Do(ctx, func() { list = f.store.List() })
	return list, err
}

// Entity returns a copy of one entity.
func (f *Floor) Entity(ctx context.Context, id string) (models.MapEntity, bool, error) {
	var (
		e  models.MapEntity
		ok bool
	)
	err := f.Do(ctx, func() { e, ok = f.store.Get(id) })
	return e, ok, err
}

// ReplaceEntities swaps in a new entity set, abandoning any gesture. The
// viewport content size grows to the new extent. It returns how many
// entities were accepted.
func (f *Floor) ReplaceEntities(ctx context.Context, entities []models.MapEntity) (int, error) {
	var n int
	err := f.Do(ctx, func() {
		f.cancelGesture()
		f.hover = ""
		n = f.store.Replace(entities)
		if _, max, ok := f.store.Extent(); ok {
			f.vp.SetContentSize(max.X, max.Y)
		}
	})
	return n, err
}

// Frame returns the most recent view-sync frame.
func (f *Floor) Frame(ctx context.Context) (models.Frame, error) {
	var fr models.Frame
	err := f.Do(ctx, func() { fr = f.frame })
	return fr, err
}

// Snapshot returns the full floor state.
func (f *Floor) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := f.Do(ctx, func() {
		list := f.store.List()
		views := make([]EntityView, len(list))
		for i, e := range list {
			views[i] = EntityView{MapEntity: e, Tooltip: e.Describe()}
		}
		snap = Snapshot{
			SessionID: f.id,
			EditMode:  f.editMode,
			GridSize:  f.drag.Options().GridSize,
			Gesture:   f.gesture.String(),
			Hover:     f.hover,
			Viewport:  f.vp.State(),
			Drag:      f.drag.State(),
			Entities:  views,
			Sim:       f.simState(),
			Frame:     f.frame,
			Dropped:   f.DroppedFrames(),
		}
	})
	return snap, err
}
