// Package sim runs the transport cart simulation: carts shuttle products from
// the Output station to one of the racks along fixed waypoint routes.
//
// A Simulation is a plain state machine advanced by Tick. It holds no locks
// and must be driven from one goroutine.
package sim

import (
	"math"
	"math/rand"
	"time"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
)

// Config holds the simulation tunables.
type Config struct {
	CartSpeed          float64 // world units per second
	ArriveEpsilon      float64
	SpawnProbability   float64 // chance per tick that Output gains one product
	CartCount          int
	InitialOutputStock int
	Seed               int64 // 0 picks a time-based seed
}

// DefaultConfig returns the standard floor tuning.
func DefaultConfig() Config {
	return Config{
		CartSpeed:        260,
		ArriveEpsilon:    6,
		SpawnProbability: 0.08,
		CartCount:        1,
	}
}

func (c *Config) normalize() {
	if c.CartSpeed <= 0 || math.IsNaN(c.CartSpeed) || math.IsInf(c.CartSpeed, 0) {
		c.CartSpeed = 260
	}
	if c.ArriveEpsilon <= 0 || math.IsNaN(c.ArriveEpsilon) {
		c.ArriveEpsilon = 6
	}
	if math.IsNaN(c.SpawnProbability) || c.SpawnProbability < 0 {
		c.SpawnProbability = 0
	}
	if c.SpawnProbability > 1 {
		c.SpawnProbability = 1
	}
	if c.CartCount < 1 {
		c.CartCount = 1
	}
	if c.InitialOutputStock < 0 {
		c.InitialOutputStock = 0
	}
}

// Simulation moves carts between stations and keeps stock counts.
type Simulation struct {
	cfg      Config
	graph    *Graph
	rng      *rand.Rand
	stations map[models.StationID]*models.Station
	carts    []*models.Cart
	ticks    int64
	elapsed  float64
	onEvent  func(models.SimEvent)
	now      func() time.Time
}

// New builds a simulation on the graph with all carts parked at Output.
// A nil graph uses DefaultGraph.
func New(graph *Graph, cfg Config) *Simulation {
	cfg.normalize()
	if graph == nil {
		graph = DefaultGraph()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulation{
		cfg:      cfg,
		graph:    graph,
		rng:      rand.New(rand.NewSource(seed)),
		stations: make(map[models.StationID]*models.Station, 3),
		now:      time.Now,
	}
	for _, id := range []models.StationID{models.StationOutput, models.StationRackA, models.StationRackB} {
		anchor, _ := graph.Anchor(id)
		s.stations[id] = &models.Station{ID: id, Anchor: anchor}
	}
	for i := 0; i < cfg.CartCount; i++ {
		s.carts = append(s.carts, &models.Cart{Index: i, Speed: cfg.CartSpeed})
	}
	s.Reset()
	s.stations[models.StationOutput].Stock = cfg.InitialOutputStock
	return s
}

// Config returns the effective configuration.
func (s *Simulation) Config() Config {
	return s.cfg
}

// Graph returns the route graph in use.
func (s *Simulation) Graph() *Graph {
	return s.graph
}

// SetEventHandler registers fn to receive every transition, stock change and
// spawn. fn runs inline on the ticking goroutine and must not block.
func (s *Simulation) SetEventHandler(fn func(models.SimEvent)) {
	s.onEvent = fn
}

// SetClock replaces the timestamp source for events.
func (s *Simulation) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetSpawnProbability changes the per-tick production chance.
func (s *Simulation) SetSpawnProbability(p float64) {
	s.cfg.SpawnProbability = p
	s.cfg.normalize()
}

// Reset empties every station and parks all carts at Output, empty and
// waiting for stock. Tick and elapsed counters are kept.
func (s *Simulation) Reset() {
	for _, st := range s.stations {
		st.Stock = 0
	}
	out := s.stations[models.StationOutput].Anchor
	back, _ := s.graph.Route(models.StationRackA, models.StationOutput)
	for _, c := range s.carts {
		c.Position = out
		c.HasLoad = false
		c.State = models.CartToOutput
		c.Target = models.StationRackA
		// parked at the end of the return leg
		c.CurrentRoute = geom.ClonePath(back)
		c.RouteIndex = len(c.CurrentRoute)
	}
}

// Stock returns the stock of a station.
func (s *Simulation) Stock(id models.StationID) int {
	if st, ok := s.stations[id]; ok {
		return st.Stock
	}
	return 0
}

// AddStock changes a station's stock by n, clamping at zero. It returns the
// new stock and false for an unknown station.
func (s *Simulation) AddStock(id models.StationID, n int) (int, bool) {
	st, ok := s.stations[id]
	if !ok {
		return 0, false
	}
	next := st.Stock + n
	if next < 0 {
		next = 0
	}
	if next != st.Stock {
		delta := next - st.Stock
		st.Stock = next
		s.emit(models.SimEvent{Kind: models.EventStock, Cart: -1, Station: id, Delta: delta, Stock: next})
	}
	return st.Stock, true
}

// Ticks returns how many ticks have run.
func (s *Simulation) Ticks() int64 {
	return s.ticks
}

// State returns a deep copy of stations and carts. Running is left false; the
// owner of the clock fills it in.
func (s *Simulation) State() models.SimState {
	st := models.SimState{
		Ticks:   s.ticks,
		Elapsed: s.elapsed,
	}
	for _, id := range []models.StationID{models.StationOutput, models.StationRackA, models.StationRackB} {
		st.Stations = append(st.Stations, *s.stations[id])
	}
	for _, c := range s.carts {
		st.Carts = append(st.Carts, c.Clone())
	}
	return st
}

// Tick advances the simulation by dt seconds. Non-positive or non-finite dt
// is ignored. Production at Output happens before the carts move.
func (s *Simulation) Tick(dt float64) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return
	}
	s.ticks++
	s.elapsed += dt

	if s.cfg.SpawnProbability > 0 && s.rng.Float64() < s.cfg.SpawnProbability {
		out := s.stations[models.StationOutput]
		out.Stock++
		s.emit(models.SimEvent{Kind: models.EventSpawn, Cart: -1, Station: out.ID, Delta: 1, Stock: out.Stock})
	}

	for _, c := range s.carts {
		s.step(c, dt)
	}
}

func (s *Simulation) step(c *models.Cart, dt float64) {
	switch c.State {
	case models.CartToOutput:
		s.stepMove(c, dt)
		if s.arrived(c, models.StationOutput) {
			s.transition(c, models.CartLoading)
		}

	case models.CartLoading:
		out := s.stations[models.StationOutput]
		if c.HasLoad || out.Stock <= 0 {
			return
		}
		out.Stock--
		s.emit(models.SimEvent{Kind: models.EventStock, Cart: c.Index, Station: out.ID, Delta: -1, Stock: out.Stock})

		c.HasLoad = true
		c.Target = models.Racks[s.rng.Intn(len(models.Racks))]
		route, _ := s.graph.Route(models.StationOutput, c.Target)
		s.setRoute(c, route)
		s.transition(c, models.CartToRack)

	case models.CartToRack:
		s.stepMove(c, dt)
		if s.arrived(c, c.Target) {
			s.transition(c, models.CartUnloading)
		}

	case models.CartUnloading:
		visited := c.Target
		if c.HasLoad {
			rack := s.stations[visited]
			rack.Stock++
			c.HasLoad = false
			s.emit(models.SimEvent{Kind: models.EventStock, Cart: c.Index, Station: visited, Delta: 1, Stock: rack.Stock})
		}
		route, _ := s.graph.Route(visited, models.StationOutput)
		s.setRoute(c, route)
		s.transition(c, models.CartToOutput)
	}
}

// arrived requires the route to be finished as well as the anchor being
// within epsilon, so the cursor always reaches the end before a reassignment.
func (s *Simulation) arrived(c *models.Cart, id models.StationID) bool {
	if !c.RouteDone() {
		return false
	}
	st, ok := s.stations[id]
	if !ok {
		return false
	}
	return c.Position.Distance(st.Anchor) < s.cfg.ArriveEpsilon
}

// setRoute installs a private copy of route and skips leading waypoints the
// cart is already standing on.
func (s *Simulation) setRoute(c *models.Cart, route []geom.Point) {
	c.CurrentRoute = geom.ClonePath(route)
	c.RouteIndex = 0
	for c.RouteIndex < len(c.CurrentRoute) &&
		c.Position.Distance(c.CurrentRoute[c.RouteIndex]) < s.cfg.ArriveEpsilon {
		c.RouteIndex++
	}
}

// stepMove advances toward the next waypoint, never past it.
func (s *Simulation) stepMove(c *models.Cart, dt float64) {
	if c.RouteDone() {
		return
	}
	target := c.CurrentRoute[c.RouteIndex]
	to := target.Sub(c.Position)
	dist := to.Length()

	if dist < s.cfg.ArriveEpsilon {
		c.Position = target
		c.RouteIndex++
		return
	}

	step := c.Speed * dt
	if step >= dist {
		c.Position = target
		c.RouteIndex++
		return
	}
	c.Position = c.Position.Add(to.Normalize().Scale(step))
}

func (s *Simulation) transition(c *models.Cart, to models.CartState) {
	from := c.State
	c.State = to
	s.emit(models.SimEvent{Kind: models.EventTransition, Cart: c.Index, From: from, To: to, Station: c.Target, Stock: s.stations[models.StationOutput].Stock})
}

func (s *Simulation) emit(ev models.SimEvent) {
	if s.onEvent == nil {
		return
	}
	ev.Timestamp = s.now()
	ev.Tick = s.ticks
	s.onEvent(ev)
}
