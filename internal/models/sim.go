package models

import (
	"strings"

	"github.com/fas-floormap/backend/internal/geom"
)

// StationID names one of the fixed stations the cart travels between.
type StationID string

const (
	StationOutput StationID = "Output"
	StationRackA  StationID = "RackA"
	StationRackB  StationID = "RackB"
)

// Racks lists the drop-off stations in a fixed order.
var Racks = []StationID{StationRackA, StationRackB}

// ParseStationID accepts a station name in any case.
func ParseStationID(s string) (StationID, bool) {
	for _, id := range []StationID{StationOutput, StationRackA, StationRackB} {
		if strings.EqualFold(strings.TrimSpace(s), string(id)) {
			return id, true
		}
	}
	return "", false
}

// CartState is the position of a cart in its delivery cycle.
type CartState string

const (
	CartToOutput  CartState = "ToOutput"
	CartLoading   CartState = "Loading"
	CartToRack    CartState = "ToRack"
	CartUnloading CartState = "Unloading"
)

// Station is a pickup or drop-off point with a stock counter.
type Station struct {
	ID     StationID  `json:"id" msgpack:"id"`
	Anchor geom.Point `json:"anchor" msgpack:"anchor"`
	Stock  int        `json:"stock" msgpack:"stock"`
}

// Cart is a transport cart following waypoint routes.
type Cart struct {
	Index        int          `json:"index" msgpack:"index"`
	Position     geom.Point   `json:"position" msgpack:"position"`
	Speed        float64      `json:"speed" msgpack:"speed"`
	HasLoad      bool         `json:"hasLoad" msgpack:"hasLoad"`
	State        CartState    `json:"state" msgpack:"state"`
	Target       StationID    `json:"target" msgpack:"target"`
	CurrentRoute []geom.Point `json:"currentRoute" msgpack:"currentRoute"`
	RouteIndex   int          `json:"routeIndex" msgpack:"routeIndex"`
}

// Clone returns a copy of the cart that does not share its route.
func (c Cart) Clone() Cart {
	c.CurrentRoute = geom.ClonePath(c.CurrentRoute)
	return c
}

// RouteDone reports whether every waypoint of the current route has been reached.
func (c Cart) RouteDone() bool {
	return c.RouteIndex >= len(c.CurrentRoute)
}

// SimState is a read-only copy of the simulation.
type SimState struct {
	Running  bool      `json:"running" msgpack:"running"`
	Ticks    int64     `json:"ticks" msgpack:"ticks"`
	Elapsed  float64   `json:"elapsed" msgpack:"elapsed"`
	Stations []Station `json:"stations" msgpack:"stations"`
	Carts    []Cart    `json:"carts" msgpack:"carts"`
}

// Station returns the station with the given id from the copy.
func (s SimState) Station(id StationID) (Station, bool) {
	for _, st := range s.Stations {
		if st.ID == id {
			return st, true
		}
	}
	return Station{}, false
}
