// Package entity owns the set of placed map entities.
//
// The Store is the only owner of entity state. Callers get copies back and
// change entities through the mutation methods, each of which stamps
// LastUpdated. The Store is not safe for concurrent use; the floor runtime
// serializes access onto a single goroutine.
package entity

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
)

// Store holds map entities keyed by id, remembering insertion order.
type Store struct {
	entities map[string]*models.MapEntity
	order    []string
	now      func() time.Time
}

// NewStore creates an empty store stamping with the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates an empty store that stamps LastUpdated using now.
func NewStoreWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entities: make(map[string]*models.MapEntity),
		now:      now,
	}
}

// Add registers an entity. Entities with a blank id and duplicates are
// ignored; the first registration wins.
func (s *Store) Add(e models.MapEntity) bool {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return false
	}
	if _, exists := s.entities[id]; exists {
		return false
	}

	cp := e.Clone()
	cp.ID = id
	if cp.LastUpdated.IsZero() {
		cp.LastUpdated = s.now()
	}
	s.entities[id] = &cp
	s.order = append(s.order, id)
	return true
}

// Replace drops every entity and loads the given list. It returns how many
// entities were accepted.
func (s *Store) Replace(list []models.MapEntity) int {
	s.entities = make(map[string]*models.MapEntity, len(list))
	s.order = s.order[:0]

	added := 0
	for _, e := range list {
		if s.Add(e) {
			added++
		}
	}
	return added
}

// Len returns the number of entities.
func (s *Store) Len() int {
	return len(s.order)
}

// Get returns a copy of the entity with the given id.
func (s *Store) Get(id string) (models.MapEntity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return models.MapEntity{}, false
	}
	return e.Clone(), true
}

// List returns copies of all entities in paint order: ascending ZIndex,
// ties broken by insertion order.
func (s *Store) List() []models.MapEntity {
	out := make([]models.MapEntity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex < out[j].ZIndex
	})
	return out
}

// Move sets the world position of an entity and marks it updated.
func (s *Store) Move(id string, x, y float64) bool {
	e, ok := s.entities[id]
	if !ok || !finite(x) || !finite(y) {
		return false
	}
	e.X = x
	e.Y = y
	e.LastUpdated = s.now()
	return true
}

// SetStatus changes the runtime status of an entity.
func (s *Store) SetStatus(id string, status models.EntityStatus) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	if _, valid := models.ParseEntityStatus(string(status)); !valid {
		return false
	}
	e.Status = status
	e.LastUpdated = s.now()
	return true
}

// SetHasItem marks whether an entity currently carries a product.
func (s *Store) SetHasItem(id string, hasItem bool) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.HasItem = hasItem
	e.LastUpdated = s.now()
	return true
}

// HitTest returns the top-most entity containing the world point.
// When interactiveOnly is set, layout overlays are skipped.
func (s *Store) HitTest(p geom.Point, interactiveOnly bool) (models.MapEntity, bool) {
	var best *models.MapEntity
	bestOrder := -1
	for i, id := range s.order {
		e := s.entities[id]
		if interactiveOnly && !e.IsInteractive {
			continue
		}
		if !e.Contains(p) {
			continue
		}
		if best == nil || e.ZIndex > best.ZIndex || (e.ZIndex == best.ZIndex && i > bestOrder) {
			best = e
			bestOrder = i
		}
	}
	if best == nil {
		return models.MapEntity{}, false
	}
	return best.Clone(), true
}

// Extent returns the bounding box of all entities, including path points.
// ok is false when the store is empty.
func (s *Store) Extent() (min, max geom.Point, ok bool) {
	if len(s.order) == 0 {
		return geom.Point{}, geom.Point{}, false
	}
	min = geom.Pt(math.Inf(1), math.Inf(1))
	max = geom.Pt(math.Inf(-1), math.Inf(-1))
	grow := func(p geom.Point) {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	for _, id := range s.order {
		e := s.entities[id]
		lo, hi := e.Bounds()
		grow(lo)
		grow(hi)
		for _, pt := range e.Points {
			grow(pt)
		}
	}
	return min, max, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
