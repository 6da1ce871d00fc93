package models

import (
	"time"

	"github.com/fas-floormap/backend/internal/geom"
)

// CartMarker is the view-sync description of one cart.
// X/Y is the top-left of the marker in world space.
type CartMarker struct {
	Index   int        `json:"index" msgpack:"index"`
	X       float64    `json:"x" msgpack:"x"`
	Y       float64    `json:"y" msgpack:"y"`
	Size    float64    `json:"size" msgpack:"size"`
	HasLoad bool       `json:"hasLoad" msgpack:"hasLoad"`
	State   CartState  `json:"state" msgpack:"state"`
	Center  geom.Point `json:"center" msgpack:"center"`
}

// ProductDot is one rendered product marker in world space.
type ProductDot struct {
	X       float64   `json:"x" msgpack:"x"`
	Y       float64   `json:"y" msgpack:"y"`
	Station StationID `json:"station,omitempty" msgpack:"station,omitempty"`
}

// Frame is the derived view state rebuilt after every simulation tick.
type Frame struct {
	Seq       int64             `json:"seq" msgpack:"seq"`
	Timestamp time.Time         `json:"timestamp" msgpack:"timestamp"`
	Running   bool              `json:"running" msgpack:"running"`
	Carts     []CartMarker      `json:"carts" msgpack:"carts"`
	Dots      []ProductDot      `json:"dots" msgpack:"dots"`
	Stock     map[StationID]int `json:"stock" msgpack:"stock"`
}
