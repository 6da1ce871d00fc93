package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
)

// RouteKey identifies a directional route between two stations.
type RouteKey struct {
	From models.StationID `yaml:"from" json:"from"`
	To   models.StationID `yaml:"to" json:"to"`
}

func (k RouteKey) String() string {
	return fmt.Sprintf("%s->%s", k.From, k.To)
}

// Graph is the fixed set of station anchors and the waypoint routes between
// them. It is built once and never edited; lookups hand out copies.
type Graph struct {
	anchors map[models.StationID]geom.Point
	routes  map[RouteKey][]geom.Point
}

var (
	ErrMissingAnchor = errors.New("missing station anchor")
	ErrMissingRoute  = errors.New("missing route")
	ErrBadRoute      = errors.New("invalid route")
)

// RequiredRoutes lists the routes the cart cycle needs: out to each rack and
// back from each rack.
func RequiredRoutes() []RouteKey {
	keys := make([]RouteKey, 0, 2*len(models.Racks))
	for _, r := range models.Racks {
		keys = append(keys,
			RouteKey{From: models.StationOutput, To: r},
			RouteKey{From: r, To: models.StationOutput})
	}
	return keys
}

// DefaultAnchors returns the built-in station positions.
func DefaultAnchors() map[models.StationID]geom.Point {
	return map[models.StationID]geom.Point{
		models.StationOutput: geom.Pt(1010, 760),
		models.StationRackA:  geom.Pt(250, 155),
		models.StationRackB:  geom.Pt(650, 155),
	}
}

// DefaultRoutes returns the built-in floor routes. Each return leg is its own
// list; on the default floor it retraces the outbound corners.
func DefaultRoutes() map[RouteKey][]geom.Point {
	return map[RouteKey][]geom.Point{
		{From: models.StationOutput, To: models.StationRackA}: {
			geom.Pt(1010, 760), geom.Pt(1010, 570), geom.Pt(470, 570),
			geom.Pt(470, 440), geom.Pt(250, 440), geom.Pt(250, 155),
		},
		{From: models.StationOutput, To: models.StationRackB}: {
			geom.Pt(1010, 760), geom.Pt(1010, 570), geom.Pt(790, 570),
			geom.Pt(790, 440), geom.Pt(650, 440), geom.Pt(650, 155),
		},
		{From: models.StationRackA, To: models.StationOutput}: {
			geom.Pt(250, 155), geom.Pt(250, 440), geom.Pt(470, 440),
			geom.Pt(470, 570), geom.Pt(1010, 570), geom.Pt(1010, 760),
		},
		{From: models.StationRackB, To: models.StationOutput}: {
			geom.Pt(650, 155), geom.Pt(650, 440), geom.Pt(790, 440),
			geom.Pt(790, 570), geom.Pt(1010, 570), geom.Pt(1010, 760),
		},
	}
}

// DefaultGraph returns the built-in floor graph.
func DefaultGraph() *Graph {
	g, err := NewGraph(DefaultAnchors(), DefaultRoutes())
	if err != nil {
		panic(err)
	}
	return g
}

// NewGraph validates and copies anchors and routes. Every station needs an
// anchor, every required route must exist, and each route must end on its
// destination anchor so arrival is reachable.
func NewGraph(anchors map[models.StationID]geom.Point, routes map[RouteKey][]geom.Point) (*Graph, error) {
	g := &Graph{
		anchors: make(map[models.StationID]geom.Point, len(anchors)),
		routes:  make(map[RouteKey][]geom.Point, len(routes)),
	}

	for _, id := range []models.StationID{models.StationOutput, models.StationRackA, models.StationRackB} {
		a, ok := anchors[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingAnchor, id)
		}
		if !a.IsFinite() {
			return nil, fmt.Errorf("%w: %s anchor is not finite", ErrMissingAnchor, id)
		}
		g.anchors[id] = a
	}

	for key, pts := range routes {
		if _, ok := g.anchors[key.From]; !ok {
			return nil, fmt.Errorf("%w %s: unknown origin", ErrBadRoute, key)
		}
		dest, ok := g.anchors[key.To]
		if !ok {
			return nil, fmt.Errorf("%w %s: unknown destination", ErrBadRoute, key)
		}
		if len(pts) == 0 {
			return nil, fmt.Errorf("%w %s: no waypoints", ErrBadRoute, key)
		}
		for i, p := range pts {
			if !p.IsFinite() {
				return nil, fmt.Errorf("%w %s: waypoint %d is not finite", ErrBadRoute, key, i)
			}
		}
		if last := pts[len(pts)-1]; last.Distance(dest) > 1e-6 {
			return nil, fmt.Errorf("%w %s: ends at (%g,%g), not at the destination anchor", ErrBadRoute, key, last.X, last.Y)
		}
		g.routes[key] = geom.ClonePath(pts)
	}

	for _, key := range RequiredRoutes() {
		if _, ok := g.routes[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRoute, key)
		}
	}
	return g, nil
}

// Anchor returns the world position of a station.
func (g *Graph) Anchor(id models.StationID) (geom.Point, bool) {
	p, ok := g.anchors[id]
	return p, ok
}

// Route returns a copy of the waypoints from one station to another.
func (g *Graph) Route(from, to models.StationID) ([]geom.Point, bool) {
	pts, ok := g.routes[RouteKey{From: from, To: to}]
	if !ok {
		return nil, false
	}
	return geom.ClonePath(pts), true
}

// Keys lists every route in a stable order.
func (g *Graph) Keys() []RouteKey {
	keys := make([]RouteKey, 0, len(g.routes))
	for k := range g.routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
	return keys
}
